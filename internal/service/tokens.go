package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"sync"
	"time"

	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
	"github.com/civicloop/portal-auth/internal/ports"
)

// RefreshThreshold converts "expired" into "expiring soon enough that a
// renewal should be attempted before use". It guards against sending a
// token that expires mid-request.
const RefreshThreshold = 5 * time.Minute

// DefaultRetention is how long persisted token fields are kept.
const DefaultRetention = 30 * 24 * time.Hour

// Storage keys, one per token field per track. Enumerated so "clear all
// phone tokens" is a single call and typos cannot create stray keys.
const (
	keyPrimaryAccessToken  = "primary.access_token"
	keyPrimaryRefreshToken = "primary.refresh_token"
	keyPrimaryExpiresAt    = "primary.expires_at"
	keyPhoneAccessToken    = "phone.access_token"
	keyPhoneRefreshToken   = "phone.refresh_token"
	keyPhoneExpiresAt      = "phone.expires_at"
)

func trackKeys(track domainauth.Track) (access, refresh, expires string) {
	if track == domainauth.TrackPhone {
		return keyPhoneAccessToken, keyPhoneRefreshToken, keyPhoneExpiresAt
	}
	return keyPrimaryAccessToken, keyPrimaryRefreshToken, keyPrimaryExpiresAt
}

// TokenStoreOptions groups dependencies for TokenStore.
type TokenStoreOptions struct {
	Storage  ports.KeyValue // Required: durable key-value backend
	TenantID string         // Required: sent as X-Tenant-ID on backend calls
	Logger   *slog.Logger   // Optional: structured logger
}

// TokenStore persists and retrieves the two per-track token sets. Storage is
// best-effort: when the backend is unavailable every operation degrades to a
// no-op so callers never have to handle storage failures on read paths.
type TokenStore struct {
	storage   ports.KeyValue
	tenantID  string
	retention time.Duration
	logger    *slog.Logger
	now       func() time.Time

	mu        sync.Mutex
	listeners []func(domainauth.Track)
}

// NewTokenStore constructs a TokenStore with the default retention.
func NewTokenStore(opts TokenStoreOptions) *TokenStore {
	if opts.Storage == nil {
		panic("service: TokenStore requires a Storage backend")
	}
	return &TokenStore{
		storage:   opts.Storage,
		tenantID:  opts.TenantID,
		retention: DefaultRetention,
		logger:    opts.Logger,
		now:       time.Now,
	}
}

// WithRetention overrides the per-field retention. Intended for tests and
// tenant-specific policies.
func (s *TokenStore) WithRetention(d time.Duration) *TokenStore {
	if d > 0 {
		s.retention = d
	}
	return s
}

// WithClock overrides the time source. Intended for tests.
func (s *TokenStore) WithClock(now func() time.Time) *TokenStore {
	if now != nil {
		s.now = now
	}
	return s
}

// OnChange registers a listener invoked synchronously after every write to
// the given store, in write order. Writes are never coalesced.
func (s *TokenStore) OnChange(fn func(domainauth.Track)) {
	if fn == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, fn)
}

func (s *TokenStore) notify(track domainauth.Track) {
	s.mu.Lock()
	listeners := make([]func(domainauth.Track), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()

	for _, fn := range listeners {
		fn(track)
	}
}

// Get returns the token set held for track. A missing or unavailable
// backend yields the zero set; Get never fails.
func (s *TokenStore) Get(ctx context.Context, track domainauth.Track) domainauth.TokenSet {
	if !s.storage.Available() {
		return domainauth.TokenSet{}
	}

	accessKey, refreshKey, expiresKey := trackKeys(track)
	var set domainauth.TokenSet

	if v, err := s.storage.Get(ctx, accessKey); err == nil {
		set.AccessToken = v
	} else {
		s.logMiss(ctx, accessKey, err)
	}
	if v, err := s.storage.Get(ctx, refreshKey); err == nil {
		set.RefreshToken = v
	} else {
		s.logMiss(ctx, refreshKey, err)
	}
	if v, err := s.storage.Get(ctx, expiresKey); err == nil {
		if unix, parseErr := strconv.ParseInt(v, 10, 64); parseErr == nil {
			set.ExpiresAt = time.Unix(unix, 0)
		}
	} else {
		s.logMiss(ctx, expiresKey, err)
	}

	return set
}

// Save writes only the non-zero fields of set; omitted fields are left
// untouched. Each field gets its own retention-bearing storage entry so
// partial invalidation stays possible.
func (s *TokenStore) Save(ctx context.Context, track domainauth.Track, set domainauth.TokenSet) error {
	if !s.storage.Available() {
		return nil
	}

	accessKey, refreshKey, expiresKey := trackKeys(track)

	if set.AccessToken != "" {
		if err := s.storage.Set(ctx, accessKey, set.AccessToken, s.retention); err != nil {
			return err
		}
	}
	if set.RefreshToken != "" {
		if err := s.storage.Set(ctx, refreshKey, set.RefreshToken, s.retention); err != nil {
			return err
		}
	}
	if !set.ExpiresAt.IsZero() {
		v := strconv.FormatInt(set.ExpiresAt.Unix(), 10)
		if err := s.storage.Set(ctx, expiresKey, v, s.retention); err != nil {
			return err
		}
	}

	s.notify(track)
	return nil
}

// Clear expires all three fields for track immediately.
func (s *TokenStore) Clear(ctx context.Context, track domainauth.Track) error {
	if !s.storage.Available() {
		return nil
	}

	accessKey, refreshKey, expiresKey := trackKeys(track)
	for _, key := range []string{accessKey, refreshKey, expiresKey} {
		if err := s.storage.Set(ctx, key, "", -24*time.Hour); err != nil {
			return err
		}
	}

	s.notify(track)
	return nil
}

// IsExpired reports whether the track's token is absent or inside the
// refresh threshold.
func (s *TokenStore) IsExpired(ctx context.Context, track domainauth.Track) bool {
	set := s.Get(ctx, track)
	if set.ExpiresAt.IsZero() {
		return true
	}
	return !s.now().Add(RefreshThreshold).Before(set.ExpiresAt)
}

// AuthorizationHeaders flattens both tracks into the header set sent with
// every backend call, letting the backend decide per request which identity
// track authorizes an operation. Absent fields are omitted.
func (s *TokenStore) AuthorizationHeaders(ctx context.Context) map[string]string {
	headers := make(map[string]string)

	primary := s.Get(ctx, domainauth.TrackPrimary)
	if primary.AccessToken != "" {
		headers["Authorization"] = "Bearer " + primary.AccessToken
	}
	if s.tenantID != "" {
		headers["X-Tenant-ID"] = s.tenantID
	}
	if primary.RefreshToken != "" {
		headers["X-Refresh-Token"] = primary.RefreshToken
	}
	if !primary.ExpiresAt.IsZero() {
		headers["X-Token-Expires-At"] = strconv.FormatInt(primary.ExpiresAt.Unix(), 10)
	}

	phone := s.Get(ctx, domainauth.TrackPhone)
	if phone.AccessToken != "" {
		headers["X-Phone-Authorization"] = "Bearer " + phone.AccessToken
	}
	if phone.RefreshToken != "" {
		headers["X-Phone-Refresh-Token"] = phone.RefreshToken
	}
	if !phone.ExpiresAt.IsZero() {
		headers["X-Phone-Token-Expires-At"] = strconv.FormatInt(phone.ExpiresAt.Unix(), 10)
	}

	return headers
}

func (s *TokenStore) logMiss(ctx context.Context, key string, err error) {
	if s.logger == nil {
		return
	}
	if errors.Is(err, ports.ErrNotFound) {
		return
	}
	s.logger.WarnContext(ctx, "token storage read failed", "key", key, "error", err)
}
