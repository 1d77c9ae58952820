package config

import "time"

const defaultNetworkTimeout = 15 * time.Second

// AuthConfig holds token lifecycle behavior.
type AuthConfig struct {
	// TenantID is sent as X-Tenant-ID on authorized backend requests.
	TenantID string `env:"TENANT_ID" envDefault:"default"`

	// TokenRetention is how long stored token entries are kept.
	TokenRetention time.Duration `env:"TOKEN_RETENTION" envDefault:"720h"`

	// ExpiryPollInterval is how often the runtime re-checks token freshness.
	ExpiryPollInterval time.Duration `env:"EXPIRY_POLL_INTERVAL" envDefault:"1m"`

	// RedirectTarget is where the host returns after its native login.
	RedirectTarget string `env:"REDIRECT_TARGET" envDefault:"/"`
}

// Sanitize applies guardrails to auth configuration.
func (c *AuthConfig) Sanitize() {
	if c.TokenRetention <= 0 {
		c.TokenRetention = 720 * time.Hour
	}
	if c.ExpiryPollInterval <= 0 {
		c.ExpiryPollInterval = time.Minute
	}
}

// IdentityConfig contains identity backend configuration.
type IdentityConfig struct {
	BaseURL string        `env:"BASE_URL,required"`
	APIKey  string        `env:"API_KEY,required"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to identity configuration.
func (c *IdentityConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = defaultNetworkTimeout
	}
}

// LiffConfig contains chat-app mini-program host configuration.
type LiffConfig struct {
	BaseURL   string        `env:"BASE_URL,required"`
	ChannelID string        `env:"CHANNEL_ID,required"`
	Timeout   time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to host configuration.
func (c *LiffConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = defaultNetworkTimeout
	}
}

// ChallengeConfig contains bot-check widget provider configuration.
type ChallengeConfig struct {
	BaseURL string        `env:"BASE_URL,required"`
	SiteKey string        `env:"SITE_KEY,required"`
	Timeout time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to challenge configuration.
func (c *ChallengeConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = defaultNetworkTimeout
	}
}

// BackendConfig contains business backend GraphQL API configuration.
type BackendConfig struct {
	GraphQLURL string        `env:"GRAPHQL_URL,required"`
	Timeout    time.Duration `env:"TIMEOUT" envDefault:"15s"`
}

// Sanitize applies guardrails to backend configuration.
func (c *BackendConfig) Sanitize() {
	if c.Timeout <= 0 {
		c.Timeout = defaultNetworkTimeout
	}
}
