// Package config builds runtime configuration from the environment so main
// stays lean.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures process-level configuration.
type Server struct {
	Addr          string
	DatabaseURL   string
	JWTSigningKey string

	Redis  Redis
	Kafka  Kafka
	Domain Domain
}

// Redis captures cache connection settings. An empty URL disables the cache
// layer entirely.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Kafka captures event stream settings. No brokers disables event publishing.
type Kafka struct {
	Brokers []string
	Topic   string
}

// Domain carries the dev-traffic lists consulted by domain normalization.
type Domain struct {
	DevDomains        []string
	DevTLDs           []string
	DevSubdomainWords []string
}

// FromEnv builds a Server config from environment variables.
func FromEnv() Server {
	return Server{
		Addr:          envOr("LICENSENET_ADDR", ":8080"),
		DatabaseURL:   envOr("LICENSENET_DATABASE_URL", "postgres://localhost:5432/licensenet?sslmode=disable"),
		JWTSigningKey: envOr("LICENSENET_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Redis: Redis{
			URL:          os.Getenv("LICENSENET_REDIS_URL"),
			PoolSize:     envInt("LICENSENET_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("LICENSENET_REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Kafka: Kafka{
			Brokers: envList("LICENSENET_KAFKA_BROKERS", nil),
			Topic:   envOr("LICENSENET_KAFKA_TOPIC", "license-events"),
		},
		Domain: Domain{
			DevDomains: envList("LICENSENET_DEV_DOMAINS", []string{
				"localhost", "example.com", "example.org", "example.net",
			}),
			DevTLDs: envList("LICENSENET_DEV_TLDS", []string{
				"test", "local", "localhost", "invalid", "example", "dev",
			}),
			DevSubdomainWords: envList("LICENSENET_DEV_SUBDOMAIN_WORDS", []string{
				"dev", "test", "testing", "staging", "stage", "sandbox", "local", "demo", "beta",
			}),
		},
	}
}

func envOr(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	value, err := strconv.Atoi(os.Getenv(name))
	if err != nil {
		return fallback
	}
	return value
}

func envList(name string, fallback []string) []string {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	var out []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
