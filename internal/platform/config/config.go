package config

import (
	"os"
	"strings"
	"time"
)

// Config captures everything main needs to wire the service. Values come from
// the environment so deployments stay twelve-factor.
type Config struct {
	Addr          string
	DatabaseURL   string
	Redis         RedisConfig
	KafkaBrokers  []string
	KafkaTopic    string
	JWTSigningKey string

	// PublicScheme and PublicHost build the links embedded in notifications
	// ("https" in production, "http" behind a dev proxy).
	PublicScheme string
	PublicHost   string
}

// RedisConfig tunes the shared Redis client used by the realtime broker.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	cfg := Config{
		Addr:          getenv("GESSERV_ADDR", ":8080"),
		DatabaseURL:   os.Getenv("GESSERV_DATABASE_URL"),
		KafkaTopic:    getenv("GESSERV_KAFKA_TOPIC", "gesserv.auditoria"),
		JWTSigningKey: os.Getenv("GESSERV_JWT_SIGNING_KEY"),
		PublicScheme:  getenv("GESSERV_PUBLIC_SCHEME", "https"),
		PublicHost:    getenv("GESSERV_PUBLIC_HOST", "localhost:8080"),
		Redis: RedisConfig{
			URL:          os.Getenv("GESSERV_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
	}
	if brokers := os.Getenv("GESSERV_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = strings.Split(brokers, ",")
	}
	if cfg.JWTSigningKey == "" {
		// Development default; must be overridden in production.
		cfg.JWTSigningKey = "dev-secret-key-change-in-production"
	}
	return cfg
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
