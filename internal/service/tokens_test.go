package service

import (
	"context"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/civicloop/portal-auth/internal/adapters/memory"
	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
	"github.com/civicloop/portal-auth/internal/testutil"
)

func newTestTokenStore(t *testing.T) (*TokenStore, time.Time) {
	t.Helper()
	now := testutil.TestTime()
	kv := memory.NewKeyValueAt(testutil.FixedTimeFunc(now))
	store := NewTokenStore(TokenStoreOptions{
		Storage:  kv,
		TenantID: "tenant-1",
	}).WithClock(testutil.FixedTimeFunc(now))
	return store, now
}

func TestTokenStore_SaveAndGet(t *testing.T) {
	store, now := newTestTokenStore(t)
	ctx := context.Background()

	err := store.Save(ctx, domainauth.TrackPrimary, domainauth.TokenSet{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(time.Hour),
	})
	require.NoError(t, err)

	got := store.Get(ctx, domainauth.TrackPrimary)
	assert.Equal(t, "access-1", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	assert.WithinDuration(t, now.Add(time.Hour), got.ExpiresAt, time.Second)

	// The other track is untouched.
	assert.True(t, store.Get(ctx, domainauth.TrackPhone).IsZero())
}

func TestTokenStore_PartialSaveLeavesOtherFields(t *testing.T) {
	store, now := newTestTokenStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainauth.TrackPrimary, domainauth.TokenSet{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(time.Hour),
	}))
	require.NoError(t, store.Save(ctx, domainauth.TrackPrimary, domainauth.TokenSet{
		AccessToken: "access-2",
	}))

	got := store.Get(ctx, domainauth.TrackPrimary)
	assert.Equal(t, "access-2", got.AccessToken)
	assert.Equal(t, "refresh-1", got.RefreshToken)
	assert.WithinDuration(t, now.Add(time.Hour), got.ExpiresAt, time.Second)
}

func TestTokenStore_Clear(t *testing.T) {
	store, now := newTestTokenStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainauth.TrackPhone, domainauth.TokenSet{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		ExpiresAt:    now.Add(time.Hour),
	}))
	require.NoError(t, store.Clear(ctx, domainauth.TrackPhone))

	assert.True(t, store.Get(ctx, domainauth.TrackPhone).IsZero())
	assert.True(t, store.IsExpired(ctx, domainauth.TrackPhone))
}

func TestTokenStore_IsExpired_Property(t *testing.T) {
	// For any stored expiry, IsExpired is true exactly when the expiry is
	// absent or within the refresh threshold of now.
	store, now := newTestTokenStore(t)
	ctx := context.Background()

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		offset := time.Duration(rng.Int63n(int64(48*time.Hour))) - 24*time.Hour
		expiresAt := now.Add(offset)

		require.NoError(t, store.Save(ctx, domainauth.TrackPrimary, domainauth.TokenSet{
			AccessToken: "access",
			ExpiresAt:   expiresAt,
		}))

		want := !now.Add(RefreshThreshold).Before(expiresAt)
		assert.Equal(t, want, store.IsExpired(ctx, domainauth.TrackPrimary),
			"offset=%s", offset)
	}
}

func TestTokenStore_IsExpired_NoExpiryStored(t *testing.T) {
	store, _ := newTestTokenStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainauth.TrackPrimary, domainauth.TokenSet{
		AccessToken: "access-only",
	}))
	assert.True(t, store.IsExpired(ctx, domainauth.TrackPrimary))
}

func TestTokenStore_AuthorizationHeaders(t *testing.T) {
	store, now := newTestTokenStore(t)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainauth.TrackPrimary, domainauth.TokenSet{
		AccessToken:  "primary-access",
		RefreshToken: "primary-refresh",
		ExpiresAt:    now.Add(time.Hour),
	}))
	require.NoError(t, store.Save(ctx, domainauth.TrackPhone, domainauth.TokenSet{
		AccessToken:  "phone-access",
		RefreshToken: "phone-refresh",
		ExpiresAt:    now.Add(2 * time.Hour),
	}))

	headers := store.AuthorizationHeaders(ctx)
	assert.Equal(t, "Bearer primary-access", headers["Authorization"])
	assert.Equal(t, "tenant-1", headers["X-Tenant-ID"])
	assert.Equal(t, "primary-refresh", headers["X-Refresh-Token"])
	assert.Equal(t, "Bearer phone-access", headers["X-Phone-Authorization"])
	assert.Equal(t, "phone-refresh", headers["X-Phone-Refresh-Token"])
	assert.NotEmpty(t, headers["X-Token-Expires-At"])
	assert.NotEmpty(t, headers["X-Phone-Token-Expires-At"])
}

func TestTokenStore_AuthorizationHeaders_OmitsAbsentFields(t *testing.T) {
	store, _ := newTestTokenStore(t)

	headers := store.AuthorizationHeaders(context.Background())
	_, hasAuth := headers["Authorization"]
	assert.False(t, hasAuth)
	_, hasPhone := headers["X-Phone-Authorization"]
	assert.False(t, hasPhone)
	// Tenant id is configuration, not credential material.
	assert.Equal(t, "tenant-1", headers["X-Tenant-ID"])
}

func TestTokenStore_UnavailableStorage(t *testing.T) {
	store := NewTokenStore(TokenStoreOptions{
		Storage:  memory.Unavailable{},
		TenantID: "tenant-1",
	})
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, domainauth.TrackPrimary, domainauth.TokenSet{
		AccessToken: "access",
		ExpiresAt:   time.Now().Add(time.Hour),
	}))
	assert.True(t, store.Get(ctx, domainauth.TrackPrimary).IsZero())
	assert.True(t, store.IsExpired(ctx, domainauth.TrackPrimary))
	require.NoError(t, store.Clear(ctx, domainauth.TrackPrimary))
}

func TestTokenStore_OnChange_OrderedNotifications(t *testing.T) {
	store, now := newTestTokenStore(t)
	ctx := context.Background()

	var seen []domainauth.Track
	store.OnChange(func(track domainauth.Track) { seen = append(seen, track) })

	require.NoError(t, store.Save(ctx, domainauth.TrackPrimary, domainauth.TokenSet{AccessToken: "a", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.Save(ctx, domainauth.TrackPhone, domainauth.TokenSet{AccessToken: "b", ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, store.Clear(ctx, domainauth.TrackPrimary))

	assert.Equal(t, []domainauth.Track{
		domainauth.TrackPrimary,
		domainauth.TrackPhone,
		domainauth.TrackPrimary,
	}, seen)
}
