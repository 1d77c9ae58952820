package config

import (
	"os"
	"strings"
)

// AppConfig is the main application configuration struct that composes
// domain-specific configuration from separate files.
//
// Configuration is loaded from environment variables using the
// github.com/caarlos0/env library. See individual domain config
// files for details on available environment variables:
//   - auth.go: identity backend, host SSO, phone verification, backend API
//   - storage.go: token storage mode and Redis connection
type AppConfig struct {
	// IsDev controls development mode behavior (verbose logging, relaxed
	// defaults). Set DEV=true or NODE_ENV=development for development mode.
	IsDev bool `env:"DEV" envDefault:"false"`

	// Auth holds token lifecycle behavior.
	Auth AuthConfig `envPrefix:"AUTH_"`

	// Identity backend configuration.
	Identity IdentityConfig `envPrefix:"IDENTITY_"`

	// Liff is the chat-app mini-program host configuration.
	Liff LiffConfig `envPrefix:"LIFF_"`

	// Challenge is the bot-check widget provider configuration.
	Challenge ChallengeConfig `envPrefix:"CHALLENGE_"`

	// Backend is the business backend GraphQL API configuration.
	Backend BackendConfig `envPrefix:"BACKEND_"`

	// Storage selects where token tracks persist.
	Storage StorageConfig
	Redis   RedisConfig `envPrefix:"REDIS_"`
}

// Sanitize applies guardrails to configuration values loaded from env.
// This should be called after loading configuration from environment variables.
func (c *AppConfig) Sanitize() {
	c.Auth.Sanitize()
	c.Identity.Sanitize()
	c.Liff.Sanitize()
	c.Challenge.Sanitize()
	c.Backend.Sanitize()
	c.Storage.Sanitize()

	c.detectDevMode()
}

// detectDevMode checks both DEV and NODE_ENV environment variables.
// NODE_ENV is checked as a fallback (common in frontend tooling).
func (c *AppConfig) detectDevMode() {
	if !c.IsDev {
		nodeEnv := strings.ToLower(os.Getenv("NODE_ENV"))
		c.IsDev = nodeEnv == "development" || nodeEnv == "dev"
	}
}
