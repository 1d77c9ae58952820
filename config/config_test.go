package config

import (
	"testing"
	"time"

	env "github.com/caarlos0/env/v11"
)

func TestStorageModeUnmarshalText(t *testing.T) {
	tests := []struct {
		name        string
		input       string
		expected    StorageMode
		expectError bool
	}{
		{name: "redis", input: "redis", expected: StorageModeRedis},
		{name: "memory", input: "memory", expected: StorageModeMemory},
		{name: "off", input: "off", expected: StorageModeOff},
		{name: "mixed case", input: "Redis", expected: StorageModeRedis},
		{name: "invalid", input: "disk", expectError: true},
		{name: "empty", input: "", expectError: true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var m StorageMode
			err := m.UnmarshalText([]byte(tc.input))
			if tc.expectError {
				if err == nil {
					t.Fatalf("expected error for input %q", tc.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if m != tc.expected {
				t.Errorf("got %q, want %q", m, tc.expected)
			}
		})
	}
}

func TestAppConfigFromEnv(t *testing.T) {
	t.Setenv("IDENTITY_BASE_URL", "https://identity.example.com")
	t.Setenv("IDENTITY_API_KEY", "key-123")
	t.Setenv("LIFF_BASE_URL", "https://liff.example.com")
	t.Setenv("LIFF_CHANNEL_ID", "channel-1")
	t.Setenv("CHALLENGE_BASE_URL", "https://challenge.example.com")
	t.Setenv("CHALLENGE_SITE_KEY", "site-key")
	t.Setenv("BACKEND_GRAPHQL_URL", "https://api.example.com/graphql")
	t.Setenv("STORAGE_MODE", "memory")
	t.Setenv("AUTH_TENANT_ID", "tenant-9")

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		t.Fatalf("parse config: %v", err)
	}
	cfg.Sanitize()

	if cfg.Identity.BaseURL != "https://identity.example.com" {
		t.Errorf("identity base URL = %q", cfg.Identity.BaseURL)
	}
	if cfg.Storage.Mode != StorageModeMemory {
		t.Errorf("storage mode = %q", cfg.Storage.Mode)
	}
	if cfg.Auth.TenantID != "tenant-9" {
		t.Errorf("tenant = %q", cfg.Auth.TenantID)
	}
	if cfg.Identity.Timeout != 15*time.Second {
		t.Errorf("identity timeout = %v", cfg.Identity.Timeout)
	}
	if cfg.Auth.TokenRetention != 720*time.Hour {
		t.Errorf("token retention = %v", cfg.Auth.TokenRetention)
	}
}

func TestSanitizeGuardsZeroValues(t *testing.T) {
	cfg := AppConfig{}
	cfg.Sanitize()

	if cfg.Auth.ExpiryPollInterval != time.Minute {
		t.Errorf("poll interval = %v", cfg.Auth.ExpiryPollInterval)
	}
	if cfg.Identity.Timeout <= 0 {
		t.Error("identity timeout not defaulted")
	}
	if cfg.Storage.Mode != StorageModeRedis {
		t.Errorf("storage mode = %q", cfg.Storage.Mode)
	}
	if cfg.Storage.KeyPrefix == "" {
		t.Error("storage key prefix not defaulted")
	}
}

func TestDetectDevModeFromNodeEnv(t *testing.T) {
	t.Setenv("NODE_ENV", "development")
	cfg := AppConfig{}
	cfg.Sanitize()
	if !cfg.IsDev {
		t.Error("NODE_ENV=development should enable dev mode")
	}
}
