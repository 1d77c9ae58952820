package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/singleflight"

	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
	"github.com/civicloop/portal-auth/internal/ports"
)

// LifecycleOptions groups dependencies for Lifecycle.
type LifecycleOptions struct {
	Tokens   *TokenStore          // Required: persistence for both tracks
	Identity ports.IdentityClient // Required: renewal upstream
	Logger   *slog.Logger         // Optional: structured logger
}

// Lifecycle decides whether each track's token is expired and performs
// renewal against the identity backend. It also keeps the last live user
// projection seen per track, so callers can read identity fields without
// re-parsing tokens.
type Lifecycle struct {
	tokens   *TokenStore
	identity ports.IdentityClient
	logger   *slog.Logger

	group singleflight.Group

	mu    sync.Mutex
	users map[domainauth.Track]domainauth.User
}

// NewLifecycle constructs a Lifecycle.
func NewLifecycle(opts LifecycleOptions) *Lifecycle {
	if opts.Tokens == nil {
		panic("service: Lifecycle requires a TokenStore")
	}
	if opts.Identity == nil {
		panic("service: Lifecycle requires an IdentityClient")
	}
	return &Lifecycle{
		tokens:   opts.Tokens,
		identity: opts.Identity,
		logger:   opts.Logger,
		users:    make(map[domainauth.Track]domainauth.User),
	}
}

// IsExpired reports whether the track's token is absent or within the
// refresh threshold.
func (l *Lifecycle) IsExpired(ctx context.Context, track domainauth.Track) bool {
	return l.tokens.IsExpired(ctx, track)
}

// Renew refreshes the track's token. The primary track is refreshed through
// the identity backend and re-persisted; concurrent renewals of the same
// track collapse into one upstream call. Phone renewal is not possible by
// contract: an expired phone token requires re-verification, so Renew
// returns false and the caller falls back.
func (l *Lifecycle) Renew(ctx context.Context, track domainauth.Track) (bool, error) {
	if track == domainauth.TrackPhone {
		return false, nil
	}

	result, err, _ := l.group.Do("renew:"+string(track), func() (any, error) {
		return l.renewPrimary(ctx)
	})
	if err != nil {
		return false, err
	}
	renewed, _ := result.(bool)
	return renewed, nil
}

func (l *Lifecycle) renewPrimary(ctx context.Context) (bool, error) {
	set := l.tokens.Get(ctx, domainauth.TrackPrimary)
	if set.RefreshToken == "" {
		return false, nil
	}

	sess, err := l.identity.Refresh(ctx, set.RefreshToken)
	if err != nil {
		return false, err
	}

	if syncErr := l.SyncFromSession(ctx, domainauth.TrackPrimary, sess); syncErr != nil {
		return false, syncErr
	}
	return true, nil
}

// SyncFromSession writes a live session's tokens into the store and caches
// its user projection. The write completes before this returns, so a state
// transition that follows can already read the token back.
func (l *Lifecycle) SyncFromSession(ctx context.Context, track domainauth.Track, sess ports.Session) error {
	if err := l.tokens.Save(ctx, track, sess.TokenSet); err != nil {
		return fmt.Errorf("persist %s tokens: %w", track, err)
	}

	l.mu.Lock()
	l.users[track] = sess.User
	l.mu.Unlock()

	if l.logger != nil {
		l.logger.DebugContext(ctx, "token sync", "track", track,
			"expires_at", sess.TokenSet.ExpiresAt)
	}
	return nil
}

// User returns the last live user projection seen for track. Zero when no
// live session has been observed this process lifetime.
func (l *Lifecycle) User(track domainauth.Track) domainauth.User {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.users[track]
}

// Forget drops the cached user projection for track.
func (l *Lifecycle) Forget(track domainauth.Track) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.users, track)
}

// Watch subscribes the lifecycle to a client's session-change events so the
// primary track stays in sync with every observed live-session change. Only
// the primary identity client should be watched; the phone flow uses its
// own client whose sessions are one-shot.
func (l *Lifecycle) Watch(client ports.IdentityClient) {
	client.OnSessionChange(func(sess ports.Session) {
		if sess.IsZero() {
			return
		}
		ctx := context.Background()
		if err := l.SyncFromSession(ctx, domainauth.TrackPrimary, sess); err != nil && l.logger != nil {
			l.logger.ErrorContext(ctx, "session change sync failed", "error", err)
		}
	})
}
