/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"testing"
	"time"
)

func setBaseEnv(t *testing.T) {
	t.Helper()
	t.Setenv("PLGEN_DB_DSN", "file::memory:?cache=shared")
	t.Setenv("PLGEN_DB_BACKEND", "sqlite")
}

func TestLoadDefaults(t *testing.T) {
	setBaseEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Environment != "development" {
		t.Errorf("Environment = %q, want development", cfg.Environment)
	}
	if cfg.MetricsBind != "127.0.0.1:9100" {
		t.Errorf("MetricsBind = %q", cfg.MetricsBind)
	}
	if cfg.ArtistSeparation != 45*time.Minute {
		t.Errorf("ArtistSeparation = %v, want 45m", cfg.ArtistSeparation)
	}
	if cfg.EmptySlotPolicy != EmptySlotSkip {
		t.Errorf("EmptySlotPolicy = %q, want skip", cfg.EmptySlotPolicy)
	}
	if cfg.RedisEnabled || cfg.NATSEnabled || cfg.TracingEnabled {
		t.Error("optional integrations should default to disabled")
	}
	if cfg.RunLockTTL != time.Minute {
		t.Errorf("RunLockTTL = %v, want 1m", cfg.RunLockTTL)
	}
}

func TestLoadOverrides(t *testing.T) {
	setBaseEnv(t)
	t.Setenv("PLGEN_ENV", "production")
	t.Setenv("PLGEN_ARTIST_SEPARATION_MINUTES", "30")
	t.Setenv("PLGEN_EMPTY_SLOT_POLICY", "strict")
	t.Setenv("PLGEN_REDIS_ENABLED", "true")
	t.Setenv("PLGEN_TRACING_SAMPLE_RATE", "0.25")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Environment != "production" {
		t.Errorf("Environment = %q", cfg.Environment)
	}
	if cfg.ArtistSeparation != 30*time.Minute {
		t.Errorf("ArtistSeparation = %v, want 30m", cfg.ArtistSeparation)
	}
	if cfg.EmptySlotPolicy != EmptySlotStrict {
		t.Errorf("EmptySlotPolicy = %q, want strict", cfg.EmptySlotPolicy)
	}
	if !cfg.RedisEnabled {
		t.Error("RedisEnabled = false, want true")
	}
	if cfg.TracingSampleRate != 0.25 {
		t.Errorf("TracingSampleRate = %v, want 0.25", cfg.TracingSampleRate)
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing DSN",
			env:  map[string]string{"PLGEN_DB_BACKEND": "sqlite"},
		},
		{
			name: "unknown backend",
			env: map[string]string{
				"PLGEN_DB_DSN":     "dsn",
				"PLGEN_DB_BACKEND": "oracle",
			},
		},
		{
			name: "unknown empty slot policy",
			env: map[string]string{
				"PLGEN_DB_DSN":            "dsn",
				"PLGEN_DB_BACKEND":        "sqlite",
				"PLGEN_EMPTY_SLOT_POLICY": "panic",
			},
		},
		{
			name: "negative artist separation",
			env: map[string]string{
				"PLGEN_DB_DSN":                    "dsn",
				"PLGEN_DB_BACKEND":                "sqlite",
				"PLGEN_ARTIST_SEPARATION_MINUTES": "-5",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("PLGEN_DB_DSN", "")
			for key, val := range tt.env {
				t.Setenv(key, val)
			}
			if _, err := Load(); err == nil {
				t.Error("Load() succeeded, want error")
			}
		})
	}
}
