package bootstrap

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/civicloop/portal-auth/config"
	"github.com/civicloop/portal-auth/internal/adapters/graphql"
	"github.com/civicloop/portal-auth/internal/adapters/identity"
	"github.com/civicloop/portal-auth/internal/adapters/liff"
	"github.com/civicloop/portal-auth/internal/adapters/phone"
	"github.com/civicloop/portal-auth/internal/service"
)

// AuthDeps is the wired authentication subsystem.
type AuthDeps struct {
	Machine     *service.Machine
	Tokens      *service.TokenStore
	RedisClient redis.UniversalClient
}

// Close releases infrastructure owned by the subsystem.
func (d *AuthDeps) Close() error {
	if d.RedisClient != nil {
		if err := d.RedisClient.Close(); err != nil {
			return fmt.Errorf("close redis: %w", err)
		}
	}
	return nil
}

// BuildAuthMachine wires storage, the identity backend, the host SSO and
// phone providers, and the registration backend into an auth machine.
//
// Two identity clients are built on purpose: the primary client's
// session-change events feed the primary token track, while the phone flow
// runs on its own client so its one-shot sessions never leak into the
// primary track.
func BuildAuthMachine(cfg *config.AppConfig, logger *slog.Logger) (*AuthDeps, error) {
	storage, err := BuildStorage(cfg, logger)
	if err != nil {
		return nil, err
	}

	tokens := service.NewTokenStore(service.TokenStoreOptions{
		Storage:  storage.KeyValue,
		TenantID: cfg.Auth.TenantID,
		Logger:   logger,
	}).WithRetention(cfg.Auth.TokenRetention)

	primaryIdentity, err := identity.NewClient(identity.Config{
		BaseURL: cfg.Identity.BaseURL,
		APIKey:  cfg.Identity.APIKey,
		Timeout: cfg.Identity.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build identity client: %w", err)
	}
	phoneIdentity, err := identity.NewClient(identity.Config{
		BaseURL: cfg.Identity.BaseURL,
		APIKey:  cfg.Identity.APIKey,
		Timeout: cfg.Identity.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build phone identity client: %w", err)
	}

	lifecycle := service.NewLifecycle(service.LifecycleOptions{
		Tokens:   tokens,
		Identity: primaryIdentity,
		Logger:   logger,
	})
	lifecycle.Watch(primaryIdentity)

	host, err := liff.NewHost(liff.HostConfig{
		BaseURL:   cfg.Liff.BaseURL,
		ChannelID: cfg.Liff.ChannelID,
		Timeout:   cfg.Liff.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build host session: %w", err)
	}
	primary := liff.NewProvider(liff.ProviderOptions{
		Host:     host,
		Identity: primaryIdentity,
		Sync:     lifecycle,
	}).WithLogger(logger)

	widgets, err := phone.NewWidgetFactory(phone.WidgetConfig{
		BaseURL: cfg.Challenge.BaseURL,
		SiteKey: cfg.Challenge.SiteKey,
		Timeout: cfg.Challenge.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("build widget factory: %w", err)
	}
	verifier := phone.NewVerifier(phone.VerifierOptions{
		Identity: phoneIdentity,
		Widgets:  widgets,
		Sync:     lifecycle,
	}, host.Embedded).WithLogger(logger)

	backend, err := graphql.NewClient(graphql.Config{
		EndpointURL: cfg.Backend.GraphQLURL,
		Timeout:     cfg.Backend.Timeout,
	}, tokens)
	if err != nil {
		return nil, fmt.Errorf("build backend client: %w", err)
	}

	machine := service.NewMachine(service.MachineOptions{
		Primary:      primary,
		Phone:        verifier,
		Registration: backend,
		Accounts:     backend,
		Tokens:       tokens,
		Lifecycle:    lifecycle,
		Logger:       logger,
	})

	return &AuthDeps{
		Machine:     machine,
		Tokens:      tokens,
		RedisClient: storage.RedisClient,
	}, nil
}
