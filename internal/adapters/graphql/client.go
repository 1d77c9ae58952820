package graphql

// Package graphql talks to the business backend's GraphQL API. Only the
// auth-adjacent operations live here: the registration check and user
// creation. Every request carries the authorization header set assembled
// from both token tracks, so the backend decides per request which identity
// authorizes the operation.

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
	"github.com/civicloop/portal-auth/internal/ports"
)

// HeaderSource supplies the per-request authorization headers.
type HeaderSource interface {
	AuthorizationHeaders(ctx context.Context) map[string]string
}

// Config holds configuration for the business backend client.
type Config struct {
	EndpointURL string
	Timeout     time.Duration // default 15s when zero
	HTTPClient  *http.Client  // Optional
}

// Client implements ports.RegistrationChecker and ports.AccountCreator.
type Client struct {
	endpointURL string
	httpClient  *http.Client
	headers     HeaderSource
}

// NewClient creates a business backend client.
func NewClient(cfg Config, headers HeaderSource) (*Client, error) {
	if cfg.EndpointURL == "" {
		return nil, errors.New("endpoint URL is required")
	}
	if headers == nil {
		return nil, errors.New("header source is required")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		endpointURL: cfg.EndpointURL,
		httpClient:  httpClient,
		headers:     headers,
	}, nil
}

const currentUserQuery = `query CurrentUser {
  currentUser {
    id
    displayName
    email
    phoneNumber
  }
}`

const createUserMutation = `mutation CreateUser($input: CreateUserInput!) {
  createUser(input: $input) {
    id
    displayName
    email
    phoneNumber
  }
}`

type userPayload struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Email       string `json:"email"`
	PhoneNumber string `json:"phoneNumber"`
}

func (u *userPayload) toRecord() *domainauth.AccountRecord {
	if u == nil {
		return nil
	}
	return &domainauth.AccountRecord{
		ID:          u.ID,
		DisplayName: u.DisplayName,
		Email:       u.Email,
		PhoneNumber: u.PhoneNumber,
	}
}

// CurrentUser runs the registration check. A missing record is an expected
// outcome and returns (nil, nil); only transport or backend faults error.
func (c *Client) CurrentUser(ctx context.Context) (*domainauth.AccountRecord, error) {
	var data struct {
		CurrentUser *userPayload `json:"currentUser"`
	}
	err := c.run(ctx, currentUserQuery, nil, &data)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("current user query: %w", err)
	}
	return data.CurrentUser.toRecord(), nil
}

// CreateUser registers an application user for the current identity.
func (c *Client) CreateUser(ctx context.Context, in ports.CreateUserInput) (*domainauth.AccountRecord, error) {
	if in.DisplayName == "" {
		return nil, errors.New("display name is required")
	}

	var data struct {
		CreateUser *userPayload `json:"createUser"`
	}
	vars := map[string]any{"input": map[string]string{
		"displayName": in.DisplayName,
		"email":       in.Email,
		"phoneNumber": in.PhoneNumber,
	}}
	if err := c.run(ctx, createUserMutation, vars, &data); err != nil {
		return nil, fmt.Errorf("create user mutation: %w", err)
	}
	if data.CreateUser == nil {
		return nil, errors.New("backend returned no user record")
	}
	return data.CreateUser.toRecord(), nil
}

// GraphQLError is a single error from the backend's errors array.
type GraphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

func (e *GraphQLError) Error() string {
	if e.Extensions.Code != "" {
		return fmt.Sprintf("graphql: %s (%s)", e.Message, e.Extensions.Code)
	}
	return "graphql: " + e.Message
}

func isNotFound(err error) bool {
	var gqlErr *GraphQLError
	if !errors.As(err, &gqlErr) {
		return false
	}
	code := gqlErr.Extensions.Code
	return code == "USER_NOT_FOUND" || code == "NOT_FOUND" ||
		strings.Contains(strings.ToLower(gqlErr.Message), "not found")
}

func (c *Client) run(ctx context.Context, query string, variables map[string]any, out any) error {
	payload, err := json.Marshal(map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpointURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers.AuthorizationHeaders(ctx) {
		req.Header.Set(k, v)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("backend request: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("backend returned status %d", resp.StatusCode)
	}

	var body struct {
		Data   json.RawMessage `json:"data"`
		Errors []*GraphQLError `json:"errors"`
	}
	if decodeErr := json.NewDecoder(resp.Body).Decode(&body); decodeErr != nil {
		return fmt.Errorf("decode response: %w", decodeErr)
	}
	if len(body.Errors) > 0 {
		return body.Errors[0]
	}
	if out != nil && len(body.Data) > 0 {
		if dataErr := json.Unmarshal(body.Data, out); dataErr != nil {
			return fmt.Errorf("decode data: %w", dataErr)
		}
	}
	return nil
}
