// Package config loads node configuration from the environment.
// Settings are read once at startup and treated as immutable for the
// process lifetime.
package config

import (
	"os"
	"strings"
	"time"
)

// Settings holds all node configuration.
type Settings struct {
	// NodeName identifies this node in events and diagnostics.
	NodeName string

	// Peers is the list of replication target base URLs.
	Peers []string

	// ReplicaToken is the shared inter-node secret, distinct from end-user JWTs.
	ReplicaToken string

	// RetryInterval is the fixed delay between dispatch attempts after a
	// send failure.
	RetryInterval time.Duration

	// RequestTimeout bounds a single outbound replication call.
	RequestTimeout time.Duration

	// LedgerRetention bounds how long applied event ids are remembered.
	LedgerRetention time.Duration

	DatabasePath string

	JWTSecret     string
	JWTExpiry     time.Duration
	AdminUser     string
	AdminPassword string

	Port     string
	LogLevel string
	AppEnv   string
}

// Load reads Settings from environment variables with defaults matching a
// single-node development setup.
func Load() Settings {
	node := getEnv("NODE_NAME", "node-a")
	return Settings{
		NodeName:        node,
		Peers:           splitCSV(os.Getenv("PEERS")),
		ReplicaToken:    getEnv("REPLICATION_TOKEN", "replica-secret"),
		RetryInterval:   getEnvDuration("REPLICATION_RETRY_INTERVAL", 10*time.Second),
		RequestTimeout:  getEnvDuration("REPLICATION_REQUEST_TIMEOUT", 10*time.Second),
		LedgerRetention: getEnvDuration("LEDGER_RETENTION", 7*24*time.Hour),
		DatabasePath:    getEnv("DATABASE_PATH", "data/"+node+".db"),
		JWTSecret:       getEnv("JWT_SECRET", "acme-jwt-secret"),
		JWTExpiry:       getEnvDuration("JWT_EXPIRES", time.Hour),
		AdminUser:       getEnv("ADMIN_USER", "admin"),
		AdminPassword:   getEnv("ADMIN_PASSWORD", "admin123"),
		Port:            getEnv("APP_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		AppEnv:          getEnv("APP_ENV", "development"),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func splitCSV(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimRight(strings.TrimSpace(p), "/")
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
