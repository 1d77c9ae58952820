package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicloop/portal-auth/internal/ports"
)

// signTestToken mints a syntactically valid JWT carrying the given claims.
// The client never verifies signatures, so any key works.
func signTestToken(t *testing.T, sub string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":          sub,
		"name":         "Aiko Tanaka",
		"email":        "aiko@example.com",
		"phone_number": "+819012345678",
		"picture":      "https://cdn.example.com/p/aiko.png",
		"exp":          exp.Unix(),
	}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := NewClient(Config{BaseURL: srv.URL, APIKey: "api-key-1"})
	require.NoError(t, err)
	return client, srv
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Config{APIKey: "k"})
	require.Error(t, err)

	_, err = NewClient(Config{BaseURL: "https://id.example.com"})
	require.Error(t, err)
}

func TestClient_SignInWithCustomToken(t *testing.T) {
	exp := time.Now().Add(time.Hour)
	accessToken := signTestToken(t, "subject-1", exp)

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sessions:signInWithCustomToken", r.URL.Path)
		assert.Equal(t, "api-key-1", r.Header.Get("X-API-Key"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "custom-1", body["token"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  accessToken,
			"refreshToken": "refresh-1",
			"expiresIn":    3600,
		})
	}))

	sess, err := client.SignInWithCustomToken(context.Background(), "custom-1")
	require.NoError(t, err)
	assert.Equal(t, accessToken, sess.TokenSet.AccessToken)
	assert.Equal(t, "refresh-1", sess.TokenSet.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.TokenSet.ExpiresAt, 5*time.Second)
	assert.Equal(t, "subject-1", sess.User.SubjectID)
	assert.Equal(t, "Aiko Tanaka", sess.User.DisplayName)
	assert.Equal(t, "+819012345678", sess.User.PhoneNumber)
}

func TestClient_SignInWithCustomToken_ExpiryFromClaims(t *testing.T) {
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	accessToken := signTestToken(t, "subject-1", exp)

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		// No expiresIn in the payload; expiry must come from the exp claim.
		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  accessToken,
			"refreshToken": "refresh-1",
		})
	}))

	sess, err := client.SignInWithCustomToken(context.Background(), "custom-1")
	require.NoError(t, err)
	assert.Equal(t, exp.Unix(), sess.TokenSet.ExpiresAt.Unix())
}

func TestClient_SignInWithCustomToken_BackendError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]string{
				"code":    "INVALID_CUSTOM_TOKEN",
				"message": "custom token rejected",
			},
		})
	}))

	_, err := client.SignInWithCustomToken(context.Background(), "bad")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "INVALID_CUSTOM_TOKEN", apiErr.Code)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestClient_SendVerificationCode(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/phone:sendCode", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "+819012345678", body["phoneNumber"])
		assert.Equal(t, "challenge-1", body["challengeToken"])

		_ = json.NewEncoder(w).Encode(map[string]string{"verificationId": "verify-1"})
	}))

	id, err := client.SendVerificationCode(context.Background(), "+819012345678", "challenge-1")
	require.NoError(t, err)
	assert.Equal(t, "verify-1", id)
}

func TestClient_SendVerificationCode_RequiredParams(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))

	_, err := client.SendVerificationCode(context.Background(), "", "challenge")
	require.Error(t, err)
	_, err = client.SendVerificationCode(context.Background(), "+8190", "")
	require.Error(t, err)
}

func TestClient_SignInWithPhoneCredential(t *testing.T) {
	accessToken := signTestToken(t, "phone-subject", time.Now().Add(time.Hour))

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/phone:confirm", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "verify-1", body["verificationId"])
		assert.Equal(t, "000000", body["code"])

		_ = json.NewEncoder(w).Encode(map[string]any{
			"accessToken":  accessToken,
			"refreshToken": "phone-refresh",
			"expiresIn":    1800,
		})
	}))

	sess, err := client.SignInWithPhoneCredential(context.Background(), "verify-1", "000000")
	require.NoError(t, err)
	assert.Equal(t, "phone-refresh", sess.TokenSet.RefreshToken)
	assert.Equal(t, "phone-subject", sess.User.SubjectID)
}

func TestClient_Refresh(t *testing.T) {
	accessToken := signTestToken(t, "subject-1", time.Now().Add(time.Hour))

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/token", r.URL.Path)
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.Form.Get("grant_type"))
		assert.Equal(t, "refresh-old", r.Form.Get("refresh_token"))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  accessToken,
			"token_type":    "Bearer",
			"refresh_token": "refresh-new",
			"expires_in":    3600,
		})
	}))

	sess, err := client.Refresh(context.Background(), "refresh-old")
	require.NoError(t, err)
	assert.Equal(t, accessToken, sess.TokenSet.AccessToken)
	assert.Equal(t, "refresh-new", sess.TokenSet.RefreshToken)
	assert.WithinDuration(t, time.Now().Add(time.Hour), sess.TokenSet.ExpiresAt, 5*time.Second)
	assert.Equal(t, "subject-1", sess.User.SubjectID)
}

func TestClient_Refresh_KeepsOldTokenWhenNotRotated(t *testing.T) {
	accessToken := signTestToken(t, "subject-1", time.Now().Add(time.Hour))

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": accessToken,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))

	sess, err := client.Refresh(context.Background(), "refresh-old")
	require.NoError(t, err)
	assert.Equal(t, "refresh-old", sess.TokenSet.RefreshToken)
}

func TestClient_Refresh_TokenEndpointError(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error":             "invalid_grant",
			"error_description": "refresh token revoked",
		})
	}))

	_, err := client.Refresh(context.Background(), "revoked")
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, "invalid_grant", apiErr.Code)
}

func TestClient_SignOut(t *testing.T) {
	var revoked string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sessions:revoke", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		revoked = body["accessToken"]
		w.WriteHeader(http.StatusNoContent)
	}))

	var gotZero bool
	client.OnSessionChange(func(sess ports.Session) { gotZero = sess.IsZero() })

	require.NoError(t, client.SignOut(context.Background(), "access-1"))
	assert.Equal(t, "access-1", revoked)
	assert.True(t, gotZero)

	// Empty token is a no-op, not an error.
	require.NoError(t, client.SignOut(context.Background(), ""))
}

func TestClient_ExchangeHostToken(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/sessions:exchangeHostToken", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "host-token-1", body["hostAccessToken"])

		_ = json.NewEncoder(w).Encode(map[string]string{"customToken": "custom-1"})
	}))

	customToken, err := client.ExchangeHostToken(context.Background(), "host-token-1")
	require.NoError(t, err)
	assert.Equal(t, "custom-1", customToken)

	_, err = client.ExchangeHostToken(context.Background(), "")
	require.Error(t, err)
}

func TestClient_SessionChangeCallbackOrdering(t *testing.T) {
	accessToken := signTestToken(t, "subject-1", time.Now().Add(time.Hour))

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v1/sessions:signInWithCustomToken":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"accessToken":  accessToken,
				"refreshToken": "r",
				"expiresIn":    3600,
			})
		case "/v1/sessions:revoke":
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	var events []bool // true = live session, false = sign-out
	client.OnSessionChange(func(sess ports.Session) { events = append(events, !sess.IsZero()) })

	ctx := context.Background()
	_, err := client.SignInWithCustomToken(ctx, "custom-1")
	require.NoError(t, err)
	require.NoError(t, client.SignOut(ctx, accessToken))

	assert.Equal(t, []bool{true, false}, events)
}
