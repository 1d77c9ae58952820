package phone

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widgetServer struct {
	*httptest.Server

	renders  []map[string]string
	tokens   int
	deletes  []string
	tokenVal string
}

func newWidgetServer(t *testing.T) *widgetServer {
	t.Helper()
	ws := &widgetServer{tokenVal: "challenge-abc"}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/widgets", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		ws.renders = append(ws.renders, body)
		_ = json.NewEncoder(w).Encode(map[string]string{"widgetId": "w-1"})
	})
	mux.HandleFunc("POST /v1/widgets/w-1/token", func(w http.ResponseWriter, r *http.Request) {
		ws.tokens++
		_ = json.NewEncoder(w).Encode(map[string]string{"token": ws.tokenVal})
	})
	mux.HandleFunc("DELETE /v1/widgets/{id}", func(w http.ResponseWriter, r *http.Request) {
		ws.deletes = append(ws.deletes, r.PathValue("id"))
		w.WriteHeader(http.StatusNoContent)
	})
	ws.Server = httptest.NewServer(mux)
	t.Cleanup(ws.Close)
	return ws
}

func newTestFactory(t *testing.T, srv *widgetServer) *WidgetFactory {
	t.Helper()
	f, err := NewWidgetFactory(WidgetConfig{BaseURL: srv.URL, SiteKey: "site-key-1"})
	require.NoError(t, err)
	return f
}

func TestWidgetFactoryValidation(t *testing.T) {
	_, err := NewWidgetFactory(WidgetConfig{SiteKey: "k"})
	require.Error(t, err)
	_, err = NewWidgetFactory(WidgetConfig{BaseURL: "http://challenge.local"})
	require.Error(t, err)
}

func TestWidgetRenderSizes(t *testing.T) {
	ctx := context.Background()
	srv := newWidgetServer(t)
	f := newTestFactory(t, srv)

	_, err := f.Render(ctx, true)
	require.NoError(t, err)
	_, err = f.Render(ctx, false)
	require.NoError(t, err)

	require.Len(t, srv.renders, 2)
	assert.Equal(t, "normal", srv.renders[0]["size"])
	assert.Equal(t, "invisible", srv.renders[1]["size"])
	assert.Equal(t, "site-key-1", srv.renders[0]["siteKey"])
}

func TestWidgetToken(t *testing.T) {
	ctx := context.Background()
	srv := newWidgetServer(t)
	f := newTestFactory(t, srv)

	w, err := f.Render(ctx, false)
	require.NoError(t, err)

	token, err := w.Token(ctx)
	require.NoError(t, err)
	assert.Equal(t, "challenge-abc", token)
}

func TestWidgetDestroyIdempotent(t *testing.T) {
	ctx := context.Background()
	srv := newWidgetServer(t)
	f := newTestFactory(t, srv)

	w, err := f.Render(ctx, false)
	require.NoError(t, err)

	w.Destroy()
	w.Destroy()
	assert.Equal(t, []string{"w-1"}, srv.deletes)
}

func TestWidgetRenderUpstreamFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	f, err := NewWidgetFactory(WidgetConfig{BaseURL: srv.URL, SiteKey: "k"})
	require.NoError(t, err)

	_, err = f.Render(context.Background(), false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}
