package config

import (
	"fmt"
	"strings"
)

// StorageMode selects where token tracks persist.
type StorageMode string

const (
	// StorageModeRedis persists tokens in Redis.
	StorageModeRedis StorageMode = "redis"
	// StorageModeMemory persists tokens in process memory only.
	StorageModeMemory StorageMode = "memory"
	// StorageModeOff disables persistence entirely; reads resolve to
	// empty token sets and the machine stays unauthenticated.
	StorageModeOff StorageMode = "off"
)

// UnmarshalText implements encoding.TextUnmarshaler for StorageMode.
func (m *StorageMode) UnmarshalText(text []byte) error {
	v := strings.ToLower(string(text))
	switch v {
	case "redis", "memory", "off":
		*m = StorageMode(v)
		return nil
	default:
		return fmt.Errorf("invalid StorageMode: %q (valid options: redis, memory, off)", v)
	}
}

// StorageConfig selects and namespaces the token store backend.
type StorageConfig struct {
	Mode StorageMode `env:"STORAGE_MODE" envDefault:"redis"`

	// KeyPrefix namespaces token entries in shared Redis deployments.
	KeyPrefix string `env:"STORAGE_KEY_PREFIX" envDefault:"authtoken:"`
}

// Sanitize applies guardrails to storage configuration.
func (c *StorageConfig) Sanitize() {
	if c.Mode == "" {
		c.Mode = StorageModeRedis
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "authtoken:"
	}
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	SentinelPort       string   `env:"SENTINEL_PORT"        envDefault:"26379"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
	ClusterNodes       []string `env:"CLUSTER_NODES"        envDefault:""`
	UseCluster         bool     `env:"USE_CLUSTER"          envDefault:"false"`
}
