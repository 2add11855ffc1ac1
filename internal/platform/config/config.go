package config

import (
	"os"
	"strconv"
	"time"
)

// Config captures process-level configuration for the intake service.
type Config struct {
	Addr string

	// Outbound analysis webhook.
	WebhookURL     string
	WebhookTimeout time.Duration

	// Upload validation. The API handler enforces MaxUploadSize per file.
	// MaxSessionFileSize is the staging-session threshold, consumed by
	// embedders that construct intake sessions; cmd/server itself only
	// runs the API handler.
	MaxUploadSize      int64
	MaxSessionFileSize int64

	// Ingress mailbox capacity (retained webhook completions).
	IngressCapacity int

	// Notification sync intervals.
	SyncInterval      time.Duration
	BurstSyncInterval time.Duration

	// Persistent notification retention applied at load time.
	NotificationRetention time.Duration

	// Optional backing stores. Empty means in-memory only.
	PostgresDSN string
	Redis       RedisConfig

	Airtable AirtableConfig
}

// RedisConfig controls the optional Redis-backed ingress mailbox.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AirtableConfig identifies the record store boundary.
type AirtableConfig struct {
	APIKey    string
	BaseID    string
	TableName string
	BaseURL   string
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:                  envOr("CV_INTAKE_ADDR", ":8080"),
		WebhookURL:            os.Getenv("WEBHOOK_URL"),
		WebhookTimeout:        envDuration("WEBHOOK_TIMEOUT", 30*time.Second),
		MaxUploadSize:         envBytes("MAX_UPLOAD_SIZE", 10<<20),
		MaxSessionFileSize:    envBytes("MAX_SESSION_FILE_SIZE", 25<<20),
		IngressCapacity:       envInt("INGRESS_CAPACITY", 100),
		SyncInterval:          envDuration("SYNC_INTERVAL", 5*time.Second),
		BurstSyncInterval:     envDuration("BURST_SYNC_INTERVAL", 2*time.Second),
		NotificationRetention: envDuration("NOTIFICATION_RETENTION", 7*24*time.Hour),
		PostgresDSN:           os.Getenv("POSTGRES_DSN"),
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Airtable: AirtableConfig{
			APIKey:    os.Getenv("AIRTABLE_API_KEY"),
			BaseID:    os.Getenv("AIRTABLE_BASE_ID"),
			TableName: os.Getenv("AIRTABLE_TABLE_NAME"),
			BaseURL:   envOr("AIRTABLE_BASE_URL", "https://api.airtable.com/v0"),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envBytes(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
