package config

import (
	"testing"
	"time"
)

func TestLoadAppliesDefaults(t *testing.T) {
	configViper := NewViper()
	configViper.Set("tauth.signing_secret", "secret")

	cfg, err := Load(configViper)
	if err != nil {
		t.Fatalf("unexpected load error: %v", err)
	}
	if cfg.HTTPAddress != defaultHTTPAddress {
		t.Fatalf("unexpected http address %q", cfg.HTTPAddress)
	}
	if cfg.DatabaseDriver != DatabaseDriverSQLite {
		t.Fatalf("unexpected database driver %q", cfg.DatabaseDriver)
	}
	if cfg.UploadTTL != 15*time.Minute {
		t.Fatalf("unexpected upload ttl %s", cfg.UploadTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 1 || cfg.CORSAllowedOrigins[0] != "*" {
		t.Fatalf("unexpected cors origins %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoadValidationFailures(t *testing.T) {
	testCases := []struct {
		name   string
		values map[string]any
	}{
		{
			name:   "missing-signing-secret",
			values: map[string]any{},
		},
		{
			name: "unknown-driver",
			values: map[string]any{
				"tauth.signing_secret": "secret",
				"database.driver":      "mysql",
			},
		},
		{
			name: "postgres-without-dsn",
			values: map[string]any{
				"tauth.signing_secret": "secret",
				"database.driver":      "postgres",
			},
		},
		{
			name: "negative-rate-limit",
			values: map[string]any{
				"tauth.signing_secret":           "secret",
				"ratelimit.mutations_per_minute": -1,
			},
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			configViper := NewViper()
			for key, value := range testCase.values {
				configViper.Set(key, value)
			}
			if _, err := Load(configViper); err == nil {
				t.Fatalf("expected validation error")
			}
		})
	}
}

func TestSplitListTrimsEntries(t *testing.T) {
	values := splitList(" https://a.example , ,https://b.example")
	if len(values) != 2 || values[0] != "https://a.example" || values[1] != "https://b.example" {
		t.Fatalf("unexpected values %v", values)
	}
}
