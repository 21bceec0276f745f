/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// EmptySlotPolicy controls what the assembler does when a slot has no
// eligible candidates.
type EmptySlotPolicy string

const (
	EmptySlotSkip     EmptySlotPolicy = "skip"
	EmptySlotFallback EmptySlotPolicy = "fallback"
	EmptySlotStrict   EmptySlotPolicy = "strict"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	DBBackend   DatabaseBackend
	DBDSN       string
	MetricsBind string

	// Generation behaviour
	ArtistSeparation time.Duration
	EmptySlotPolicy  EmptySlotPolicy
	DaemonInterval   time.Duration

	// Run lock (per-station advisory lock)
	RedisEnabled  bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RunLockTTL    time.Duration

	// Event publishing
	NATSEnabled bool
	NATSURL     string

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("PLGEN_ENV", "development"),
		DBBackend:   DatabaseBackend(getEnv("PLGEN_DB_BACKEND", string(DatabasePostgres))),
		DBDSN:       getEnv("PLGEN_DB_DSN", ""),
		MetricsBind: getEnv("PLGEN_METRICS_BIND", "127.0.0.1:9100"),

		ArtistSeparation: time.Duration(getEnvInt("PLGEN_ARTIST_SEPARATION_MINUTES", 45)) * time.Minute,
		EmptySlotPolicy:  EmptySlotPolicy(getEnv("PLGEN_EMPTY_SLOT_POLICY", string(EmptySlotSkip))),
		DaemonInterval:   time.Duration(getEnvInt("PLGEN_DAEMON_INTERVAL_SECONDS", 300)) * time.Second,

		RedisEnabled:  getEnvBool("PLGEN_REDIS_ENABLED", false),
		RedisAddr:     getEnv("PLGEN_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("PLGEN_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("PLGEN_REDIS_DB", 0),
		RunLockTTL:    time.Duration(getEnvInt("PLGEN_RUN_LOCK_TTL_SECONDS", 60)) * time.Second,

		NATSEnabled: getEnvBool("PLGEN_NATS_ENABLED", false),
		NATSURL:     getEnv("PLGEN_NATS_URL", "nats://localhost:4222"),

		TracingEnabled:    getEnvBool("PLGEN_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("PLGEN_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("PLGEN_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("PLGEN_DB_DSN must be provided")
	}

	switch cfg.EmptySlotPolicy {
	case EmptySlotSkip, EmptySlotFallback, EmptySlotStrict:
	default:
		return nil, fmt.Errorf("unknown empty slot policy %q", cfg.EmptySlotPolicy)
	}

	if cfg.ArtistSeparation < 0 {
		return nil, fmt.Errorf("PLGEN_ARTIST_SEPARATION_MINUTES must not be negative")
	}

	return cfg, nil
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		v = strings.ToLower(strings.TrimSpace(v))
		if v == "true" || v == "1" || v == "yes" {
			return true
		}
		if v == "false" || v == "0" || v == "no" {
			return false
		}
	}
	return def
}

func getEnvFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}
