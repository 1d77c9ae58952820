package identity

// Package identity provides the REST client for the managed identity
// backend. Token issuance is opaque upstream: the contract is "exchange
// credential for a signed token with an explicit expiry".

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
	"github.com/civicloop/portal-auth/internal/ports"
)

// Config holds configuration for the identity backend client.
type Config struct {
	BaseURL    string
	APIKey     string
	Timeout    time.Duration // default 15s when zero
	HTTPClient *http.Client  // Optional, defaults to a client with Timeout
}

// Client implements ports.IdentityClient over the backend's REST surface.
// Refresh goes through the backend's OAuth2-style token endpoint.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	oauthCfg   *oauth2.Config

	mu        sync.Mutex
	callbacks []func(ports.Session)
}

// DefaultTimeout bounds every identity backend call. The upstream flow has
// no timeout of its own; an unbounded hang would pin the caller's busy flag
// forever.
const DefaultTimeout = 15 * time.Second

// NewClient creates an identity backend client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if cfg.APIKey == "" {
		return nil, errors.New("API key is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	return &Client{
		baseURL:    baseURL,
		apiKey:     cfg.APIKey,
		httpClient: httpClient,
		oauthCfg: &oauth2.Config{
			ClientID: cfg.APIKey,
			Endpoint: oauth2.Endpoint{
				TokenURL:  baseURL + "/v1/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}, nil
}

// OnSessionChange registers fn to run after every successful sign-in,
// refresh, or sign-out. A zero session signals sign-out.
func (c *Client) OnSessionChange(fn func(ports.Session)) {
	if fn == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.callbacks = append(c.callbacks, fn)
}

func (c *Client) fireSessionChange(sess ports.Session) {
	c.mu.Lock()
	callbacks := make([]func(ports.Session), len(c.callbacks))
	copy(callbacks, c.callbacks)
	c.mu.Unlock()

	for _, fn := range callbacks {
		fn(sess)
	}
}

// tokenResponse is the backend's token payload shape, shared by custom-token
// and phone-credential sign-in.
type tokenResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"` // seconds
}

func (c *Client) SignInWithCustomToken(ctx context.Context, customToken string) (ports.Session, error) {
	if customToken == "" {
		return ports.Session{}, errors.New("custom token is required")
	}

	var resp tokenResponse
	err := c.post(ctx, "/v1/sessions:signInWithCustomToken",
		map[string]string{"token": customToken}, &resp)
	if err != nil {
		return ports.Session{}, fmt.Errorf("sign in with custom token: %w", err)
	}

	sess := c.sessionFromTokenResponse(resp)
	c.fireSessionChange(sess)
	return sess, nil
}

func (c *Client) SendVerificationCode(ctx context.Context, phoneNumber, challengeToken string) (string, error) {
	if phoneNumber == "" {
		return "", errors.New("phone number is required")
	}
	if challengeToken == "" {
		return "", errors.New("challenge token is required")
	}

	var resp struct {
		VerificationID string `json:"verificationId"`
	}
	err := c.post(ctx, "/v1/phone:sendCode", map[string]string{
		"phoneNumber":    phoneNumber,
		"challengeToken": challengeToken,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("send verification code: %w", err)
	}
	if resp.VerificationID == "" {
		return "", errors.New("backend returned no verification id")
	}
	return resp.VerificationID, nil
}

func (c *Client) SignInWithPhoneCredential(ctx context.Context, verificationID, code string) (ports.Session, error) {
	if verificationID == "" {
		return ports.Session{}, errors.New("verification id is required")
	}
	if code == "" {
		return ports.Session{}, errors.New("code is required")
	}

	var resp tokenResponse
	err := c.post(ctx, "/v1/phone:confirm", map[string]string{
		"verificationId": verificationID,
		"code":           code,
	}, &resp)
	if err != nil {
		return ports.Session{}, fmt.Errorf("sign in with phone credential: %w", err)
	}

	sess := c.sessionFromTokenResponse(resp)
	c.fireSessionChange(sess)
	return sess, nil
}

// Refresh mints a fresh token pair through the OAuth2 refresh grant. The
// underlying session must still be valid upstream; this is a refresh, not a
// re-authentication.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (ports.Session, error) {
	if refreshToken == "" {
		return ports.Session{}, errors.New("refresh token is required")
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	src := c.oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return ports.Session{}, fmt.Errorf("refresh token grant: %w", normalizeOAuthError(err))
	}

	sess := ports.Session{
		TokenSet: domainauth.TokenSet{
			AccessToken:  tok.AccessToken,
			RefreshToken: tok.RefreshToken,
			ExpiresAt:    tok.Expiry,
		},
	}
	if sess.TokenSet.RefreshToken == "" {
		// Backend may omit a rotated refresh token; keep the old one.
		sess.TokenSet.RefreshToken = refreshToken
	}
	if sess.TokenSet.ExpiresAt.IsZero() {
		sess.TokenSet.ExpiresAt = expiryFromClaims(tok.AccessToken)
	}
	sess.User = userFromClaims(tok.AccessToken)

	c.fireSessionChange(sess)
	return sess, nil
}

func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil // Nothing to revoke
	}

	err := c.post(ctx, "/v1/sessions:revoke", map[string]string{"accessToken": accessToken}, nil)
	if err != nil {
		return fmt.Errorf("sign out: %w", err)
	}

	c.fireSessionChange(ports.Session{})
	return nil
}

func (c *Client) ExchangeHostToken(ctx context.Context, hostToken string) (string, error) {
	if hostToken == "" {
		return "", errors.New("host token is required")
	}

	var resp struct {
		CustomToken string `json:"customToken"`
	}
	err := c.post(ctx, "/v1/sessions:exchangeHostToken",
		map[string]string{"hostAccessToken": hostToken}, &resp)
	if err != nil {
		return "", fmt.Errorf("exchange host token: %w", err)
	}
	if resp.CustomToken == "" {
		return "", errors.New("backend returned no custom token")
	}
	return resp.CustomToken, nil
}

func (c *Client) sessionFromTokenResponse(resp tokenResponse) ports.Session {
	sess := ports.Session{
		TokenSet: domainauth.TokenSet{
			AccessToken:  resp.AccessToken,
			RefreshToken: resp.RefreshToken,
		},
	}
	if resp.ExpiresIn > 0 {
		sess.TokenSet.ExpiresAt = time.Now().Add(time.Duration(resp.ExpiresIn) * time.Second)
	} else {
		sess.TokenSet.ExpiresAt = expiryFromClaims(resp.AccessToken)
	}
	sess.User = userFromClaims(resp.AccessToken)
	return sess
}

func (c *Client) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity backend request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		return nil
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(out); decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	return nil
}
