package liff

// Package liff wraps the chat-app mini-program host: the host session REST
// surface and the primary sign-in provider built on top of it.

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

	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
)

// HostConfig holds configuration for the host session client.
type HostConfig struct {
	BaseURL    string
	ChannelID  string
	Timeout    time.Duration // default 15s when zero
	HTTPClient *http.Client  // Optional
}

// Host implements ports.HostSession over the mini-program host's REST API.
// The host owns the native login UI; this client only observes and drives it.
type Host struct {
	baseURL    string
	channelID  string
	httpClient *http.Client

	mu          sync.Mutex
	initialized bool
	embedded    bool
	accessToken string
}

// NewHost creates a host session client.
func NewHost(cfg HostConfig) (*Host, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.ChannelID == "" {
		return nil, errors.New("channel ID is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Host{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		channelID:  cfg.ChannelID,
		httpClient: httpClient,
	}, nil
}

// Init prepares the embedding SDK. Safe to call repeatedly; only the first
// call hits the network.
func (h *Host) Init(ctx context.Context) error {
	h.mu.Lock()
	if h.initialized {
		h.mu.Unlock()
		return nil
	}
	h.mu.Unlock()

	var resp struct {
		Embedded    bool   `json:"embedded"`
		AccessToken string `json:"accessToken"`
	}
	if err := h.get(ctx, "/v2/context?channelId="+h.channelID, &resp); err != nil {
		return fmt.Errorf("init host context: %w", err)
	}

	h.mu.Lock()
	h.initialized = true
	h.embedded = resp.Embedded
	h.accessToken = resp.AccessToken
	h.mu.Unlock()
	return nil
}

// Login triggers the host's native login UI when the user is not already
// linked. Returns whether the user is now linked to the host platform.
func (h *Host) Login(ctx context.Context, redirectTarget string) (bool, error) {
	if h.LoggedIn(ctx) {
		return true, nil
	}

	var resp struct {
		Linked      bool   `json:"linked"`
		AccessToken string `json:"accessToken"`
	}
	err := h.post(ctx, "/v2/auth/login", map[string]string{
		"channelId":      h.channelID,
		"redirectTarget": redirectTarget,
	}, &resp)
	if err != nil {
		return false, fmt.Errorf("host login: %w", err)
	}

	h.mu.Lock()
	if resp.Linked {
		h.accessToken = resp.AccessToken
	}
	h.mu.Unlock()
	return resp.Linked, nil
}

func (h *Host) LoggedIn(_ context.Context) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.accessToken != ""
}

func (h *Host) AccessToken(_ context.Context) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.accessToken, nil
}

func (h *Host) Profile(ctx context.Context) (domainauth.HostProfile, error) {
	token, _ := h.AccessToken(ctx)
	if token == "" {
		return domainauth.HostProfile{}, errors.New("not logged in to host")
	}

	var resp struct {
		UserID      string `json:"userId"`
		DisplayName string `json:"displayName"`
		PictureURL  string `json:"pictureUrl"`
	}
	if err := h.getAuthed(ctx, "/v2/profile", token, &resp); err != nil {
		return domainauth.HostProfile{}, fmt.Errorf("host profile: %w", err)
	}
	return domainauth.HostProfile{
		SubjectID:   resp.UserID,
		DisplayName: resp.DisplayName,
		PictureURL:  resp.PictureURL,
	}, nil
}

// Logout revokes the host-side session. Callers must revoke here before
// clearing local tokens so the host never outlives local state.
func (h *Host) Logout(ctx context.Context) error {
	token, _ := h.AccessToken(ctx)
	if token == "" {
		return nil
	}

	if err := h.post(ctx, "/v2/auth/logout", map[string]string{"accessToken": token}, nil); err != nil {
		return fmt.Errorf("host logout: %w", err)
	}

	h.mu.Lock()
	h.accessToken = ""
	h.mu.Unlock()
	return nil
}

func (h *Host) Embedded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.embedded
}

func (h *Host) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	return h.do(req, out)
}

func (h *Host) getAuthed(ctx context.Context, path, token string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return h.do(req, out)
}

func (h *Host) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.baseURL+path, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return h.do(req, out)
}

func (h *Host) do(req *http.Request, out any) error {
	resp, err := h.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("host request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("host returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	return nil
}
