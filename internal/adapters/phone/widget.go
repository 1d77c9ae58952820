package phone

// Package phone implements the one-shot phone verification flow: bot-check
// widget lifecycle, OTP dispatch, and code confirmation with a single
// fallback retry.

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/civicloop/portal-auth/internal/ports"
)

// WidgetConfig holds configuration for the challenge widget factory.
type WidgetConfig struct {
	BaseURL    string
	SiteKey    string
	Timeout    time.Duration // default 15s when zero
	HTTPClient *http.Client  // Optional
}

// WidgetFactory renders bot-check widgets against the challenge provider.
type WidgetFactory struct {
	baseURL    string
	siteKey    string
	httpClient *http.Client
}

// NewWidgetFactory creates a challenge widget factory.
func NewWidgetFactory(cfg WidgetConfig) (*WidgetFactory, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.SiteKey == "" {
		return nil, errors.New("site key is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &WidgetFactory{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		siteKey:    cfg.SiteKey,
		httpClient: httpClient,
	}, nil
}

// Render creates a live widget. Visible widgets are required inside the
// embedded webview, where invisible challenge flows are unreliable.
func (f *WidgetFactory) Render(ctx context.Context, visible bool) (ports.ChallengeWidget, error) {
	size := "invisible"
	if visible {
		size = "normal"
	}

	payload, err := json.Marshal(map[string]string{"siteKey": f.siteKey, "size": size})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.baseURL+"/v1/widgets", strings.NewReader(string(payload)))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("render widget: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("challenge provider returned status %d", resp.StatusCode)
	}

	var body struct {
		WidgetID string `json:"widgetId"`
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr != nil {
		return nil, fmt.Errorf("decode response: %w", decodeErr)
	}
	if body.WidgetID == "" {
		return nil, errors.New("challenge provider returned no widget id")
	}

	return &widget{factory: f, id: body.WidgetID}, nil
}

// widget is one live challenge instance. Destroy is idempotent and
// best-effort; the provider reaps orphaned widgets on its own schedule.
type widget struct {
	factory *WidgetFactory
	id      string
	once    sync.Once
}

func (w *widget) Token(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		w.factory.baseURL+"/v1/widgets/"+w.id+"/token", nil)
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}

	resp, err := w.factory.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("challenge token: %w", err)
	}
	defer drain(resp)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("challenge provider returned status %d", resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}
	return body.Token, nil
}

func (w *widget) Destroy() {
	w.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
			w.factory.baseURL+"/v1/widgets/"+w.id, nil)
		if err != nil {
			return
		}
		resp, err := w.factory.httpClient.Do(req)
		if err != nil {
			return
		}
		drain(resp)
	})
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
}
