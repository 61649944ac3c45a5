// Package config loads service configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"
)

type StoreMode string

const (
	StoreMemory   StoreMode = "memory"
	StorePostgres StoreMode = "postgres"
)

type Config struct {
	Addr       string
	LogLevel   string
	RegistryID string
	StoreMode  StoreMode

	PostgresURL string

	RedisURL string

	KafkaBrokers []string
	KafkaTopic   string

	// AdminKeys maps key IDs to hex-encoded Ed25519 public keys accepted on
	// mint proofs. Format: "kid1=hex,kid2=hex".
	AdminKeys map[string]string

	JWTSigningKey string
	JWTIssuer     string
	JWTTTL        time.Duration

	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration

	RelayInterval  time.Duration
	RelayBatchSize int
}

func FromEnv() (Config, error) {
	cfg := Config{
		Addr:            envOr("WRAP_ADDR", ":8080"),
		LogLevel:        envOr("WRAP_LOG_LEVEL", "info"),
		RegistryID:      os.Getenv("WRAP_REGISTRY_ID"),
		StoreMode:       StoreMode(envOr("WRAP_STORE", string(StoreMemory))),
		PostgresURL:     os.Getenv("WRAP_POSTGRES_URL"),
		RedisURL:        os.Getenv("WRAP_REDIS_URL"),
		KafkaTopic:      envOr("WRAP_KAFKA_TOPIC", "wrap.mints"),
		JWTSigningKey:   os.Getenv("WRAP_JWT_SIGNING_KEY"),
		JWTIssuer:       envOr("WRAP_JWT_ISSUER", "wrap-registry"),
		JWTTTL:          durationOr("WRAP_JWT_TTL", time.Hour),
		RequestTimeout:  durationOr("WRAP_REQUEST_TIMEOUT", 10*time.Second),
		ShutdownTimeout: durationOr("WRAP_SHUTDOWN_TIMEOUT", 15*time.Second),
		RelayInterval:   durationOr("WRAP_RELAY_INTERVAL", time.Second),
		RelayBatchSize:  100,
	}

	if cfg.RegistryID == "" {
		return Config{}, fmt.Errorf("WRAP_REGISTRY_ID is required")
	}

	switch cfg.StoreMode {
	case StoreMemory:
	case StorePostgres:
		if cfg.PostgresURL == "" {
			return Config{}, fmt.Errorf("WRAP_POSTGRES_URL is required when WRAP_STORE=postgres")
		}
	default:
		return Config{}, fmt.Errorf("unknown WRAP_STORE %q", cfg.StoreMode)
	}

	if brokers := os.Getenv("WRAP_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}

	if keys := os.Getenv("WRAP_ADMIN_KEYS"); keys != "" {
		cfg.AdminKeys = make(map[string]string)
		for _, pair := range strings.Split(keys, ",") {
			kid, hexKey, ok := strings.Cut(pair, "=")
			if !ok || kid == "" || hexKey == "" {
				return Config{}, fmt.Errorf("malformed WRAP_ADMIN_KEYS entry %q", pair)
			}
			cfg.AdminKeys[kid] = hexKey
		}
	}

	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func durationOr(key string, fallback time.Duration) time.Duration {
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
