package graphql

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicloop/portal-auth/internal/ports"
)

type staticHeaders map[string]string

func (h staticHeaders) AuthorizationHeaders(context.Context) map[string]string { return h }

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{EndpointURL: srv.URL}, staticHeaders{
		"Authorization": "Bearer primary-access",
		"X-Tenant-ID":   "tenant-1",
	})
	require.NoError(t, err)
	return client
}

func TestClient_CurrentUser_Registered(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer primary-access", r.Header.Get("Authorization"))
		assert.Equal(t, "tenant-1", r.Header.Get("X-Tenant-ID"))

		var body struct {
			Query string `json:"query"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.Query, "currentUser")

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"currentUser": map[string]string{
					"id":          "user-1",
					"displayName": "Aiko",
					"email":       "aiko@example.com",
					"phoneNumber": "+819012345678",
				},
			},
		})
	}))

	record, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "user-1", record.ID)
	assert.Equal(t, "Aiko", record.DisplayName)
}

func TestClient_CurrentUser_NotRegistered(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"currentUser": nil},
			"errors": []map[string]any{{
				"message":    "user not found",
				"extensions": map[string]string{"code": "USER_NOT_FOUND"},
			}},
		})
	}))

	record, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestClient_CurrentUser_NullDataWithoutErrors(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{"currentUser": nil},
		})
	}))

	record, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestClient_CurrentUser_BackendFault(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))

	_, err := client.CurrentUser(context.Background())
	require.Error(t, err)
}

func TestClient_CurrentUser_PermissionError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"errors": []map[string]any{{
				"message":    "not allowed",
				"extensions": map[string]string{"code": "PERMISSION_DENIED"},
			}},
		})
	}))

	_, err := client.CurrentUser(context.Background())
	require.Error(t, err)

	var gqlErr *GraphQLError
	require.ErrorAs(t, err, &gqlErr)
	assert.Equal(t, "PERMISSION_DENIED", gqlErr.Extensions.Code)
}

func TestClient_CreateUser(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string `json:"query"`
			Variables struct {
				Input map[string]string `json:"input"`
			} `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body.Query, "createUser")
		assert.Equal(t, "Aiko", body.Variables.Input["displayName"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"data": map[string]any{
				"createUser": map[string]string{
					"id":          "user-9",
					"displayName": "Aiko",
				},
			},
		})
	}))

	record, err := client.CreateUser(context.Background(), ports.CreateUserInput{
		DisplayName: "Aiko",
		Email:       "aiko@example.com",
		PhoneNumber: "+819012345678",
	})
	require.NoError(t, err)
	assert.Equal(t, "user-9", record.ID)
}

func TestClient_CreateUser_RequiresDisplayName(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.CreateUser(context.Background(), ports.CreateUserInput{})
	require.Error(t, err)
}
