package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config captures everything the server needs from the environment.
type Config struct {
	Server   ServerConfig
	Redis    RedisConfig
	Postgres PostgresConfig
	Kafka    KafkaConfig

	// ShortlistSize caps how many ranked candidates the search endpoint
	// returns for display.
	ShortlistSize int
	LogLevel      string
}

// ServerConfig captures HTTP server level configuration.
type ServerConfig struct {
	Addr string
}

// RedisConfig selects the Redis document store when URL is set.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// PostgresConfig selects the Postgres document store when DSN is set.
// Redis wins when both are configured; neither means in-memory.
type PostgresConfig struct {
	DSN string
}

// KafkaConfig enables audit publishing when brokers are set.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// FromEnv builds the config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Server: ServerConfig{
			Addr: envOr("ROLLCALL_ADDR", ":8080"),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("ROLLCALL_REDIS_URL"),
			PoolSize:     envInt("ROLLCALL_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("ROLLCALL_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("ROLLCALL_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("ROLLCALL_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("ROLLCALL_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: PostgresConfig{
			DSN: os.Getenv("ROLLCALL_POSTGRES_DSN"),
		},
		Kafka: KafkaConfig{
			Brokers: splitNonEmpty(os.Getenv("ROLLCALL_KAFKA_BROKERS")),
			Topic:   envOr("ROLLCALL_AUDIT_TOPIC", "rollcall.audit"),
		},
		ShortlistSize: envInt("ROLLCALL_SHORTLIST_SIZE", 5),
		LogLevel:      envOr("ROLLCALL_LOG_LEVEL", "info"),
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

func splitNonEmpty(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
