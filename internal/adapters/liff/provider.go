package liff

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
	"github.com/civicloop/portal-auth/internal/ports"
)

// ErrNoHostToken indicates SignInWithHostToken was called without a linked
// host login. That is a caller bug, not an expected auth outcome.
var ErrNoHostToken = errors.New("liff: no host access token available")

// ProviderOptions groups dependencies for Provider.
type ProviderOptions struct {
	Host     ports.HostSession
	Identity ports.IdentityClient
	Sync     ports.TokenSync
}

// Provider implements the primary (chat-app) sign-in flow: host access token
// in, backend session plus persisted primary tokens out.
type Provider struct {
	host     ports.HostSession
	identity ports.IdentityClient
	sync     ports.TokenSync
	logger   *slog.Logger
}

// NewProvider constructs the primary sign-in provider.
func NewProvider(opts ProviderOptions) *Provider {
	if opts.Host == nil {
		panic("liff: Provider requires a HostSession")
	}
	if opts.Identity == nil {
		panic("liff: Provider requires an IdentityClient")
	}
	if opts.Sync == nil {
		panic("liff: Provider requires a TokenSync")
	}
	return &Provider{
		host:     opts.Host,
		identity: opts.Identity,
		sync:     opts.Sync,
	}
}

// WithLogger attaches a structured logger.
func (p *Provider) WithLogger(logger *slog.Logger) *Provider {
	p.logger = logger
	return p
}

// Initialize prepares the host SDK. Idempotent.
func (p *Provider) Initialize(ctx context.Context) error {
	if err := p.host.Init(ctx); err != nil {
		return fmt.Errorf("initialize host: %w", err)
	}
	return nil
}

// Login triggers the host's native login UI if not already linked and
// reports whether the user is now linked to the host platform. Host linkage
// is not yet a backend session; follow with SignInWithHostToken.
func (p *Provider) Login(ctx context.Context, redirectTarget string) (bool, error) {
	linked, err := p.host.Login(ctx, redirectTarget)
	if err != nil {
		return false, fmt.Errorf("host login: %w", err)
	}
	return linked, nil
}

// SignInWithHostToken exchanges the host-issued access token for a backend
// session and persists the resulting primary tokens before returning.
// Ordinary auth failures come back as (false, nil); a missing host token is
// a programmer error and returns ErrNoHostToken.
func (p *Provider) SignInWithHostToken(ctx context.Context) (bool, error) {
	hostToken, err := p.host.AccessToken(ctx)
	if err != nil {
		return false, fmt.Errorf("read host token: %w", err)
	}
	if hostToken == "" {
		return false, ErrNoHostToken
	}

	customToken, err := p.identity.ExchangeHostToken(ctx, hostToken)
	if err != nil {
		p.logFailure(ctx, "host token exchange rejected", err)
		return false, nil
	}

	sess, err := p.identity.SignInWithCustomToken(ctx, customToken)
	if err != nil {
		p.logFailure(ctx, "custom token sign-in rejected", err)
		return false, nil
	}

	// Persist before reporting success so a follow-up registration check
	// sees the fresh token in its authorization headers.
	if syncErr := p.sync.SyncFromSession(ctx, domainauth.TrackPrimary, sess); syncErr != nil {
		return false, fmt.Errorf("persist primary tokens: %w", syncErr)
	}
	return true, nil
}

// Logout revokes the host-side session. The caller clears local tokens
// afterwards; revoking first avoids a half-logged-out host.
func (p *Provider) Logout(ctx context.Context) error {
	if err := p.host.Logout(ctx); err != nil {
		return fmt.Errorf("host logout: %w", err)
	}
	return nil
}

func (p *Provider) logFailure(ctx context.Context, msg string, err error) {
	if p.logger == nil {
		return
	}
	p.logger.WarnContext(ctx, msg, "error", err)
}
