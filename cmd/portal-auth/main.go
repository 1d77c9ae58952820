package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/civicloop/portal-auth/config"
	"github.com/civicloop/portal-auth/internal/bootstrap"
	domainauth "github.com/civicloop/portal-auth/internal/domain/auth"
	"github.com/civicloop/portal-auth/internal/service"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logStartupInfo(ctx, logger, &cfg)

	deps, err := bootstrap.BuildAuthMachine(&cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := deps.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close auth subsystem failed", "error", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	unsubscribe := deps.Machine.Subscribe(func(snap service.Snapshot) {
		args := []any{"state", string(snap.State), "authenticating", snap.IsAuthenticating}
		if snap.Err != nil {
			args = append(args, "error_kind", string(snap.Err.Kind))
		}
		logger.InfoContext(ctx, "auth state", args...)
	})
	defer unsubscribe()

	if err := deps.Machine.Initialize(ctx); err != nil {
		return err
	}

	go watchLogout(ctx, logger, deps.Machine)

	return pollTokenExpiry(ctx, logger, deps.Machine, cfg.Auth.ExpiryPollInterval)
}

// pollTokenExpiry re-checks token freshness on a fixed interval and drives
// renewal whenever a track ages out, until the context is cancelled.
func pollTokenExpiry(ctx context.Context, logger *slog.Logger, machine *service.Machine, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "shutting down")
			return nil
		case <-ticker.C:
			machine.CheckTokenExpiration(ctx)
			switch machine.Snapshot().State {
			case domainauth.StatePrimaryTokenExpired, domainauth.StatePhoneTokenExpired:
				if err := machine.RenewTokens(ctx); err != nil {
					logger.WarnContext(ctx, "token renewal failed", "error", err)
				}
			}
		}
	}
}

func watchLogout(ctx context.Context, logger *slog.Logger, machine *service.Machine) {
	notifications := machine.LogoutNotifications()
	for {
		select {
		case <-ctx.Done():
			return
		case <-notifications:
			logger.InfoContext(ctx, "logout broadcast received")
		}
	}
}

func logStartupInfo(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) {
	logger.InfoContext(ctx, "starting portal-auth",
		"storage_mode", string(cfg.Storage.Mode),
		"identity_base_url", cfg.Identity.BaseURL,
		"tenant", cfg.Auth.TenantID,
		"dev", cfg.IsDev)
}
