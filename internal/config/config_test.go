package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("gin mode = %q", cfg.GinMode)
	}
	if cfg.APIBasePath != "/api" {
		t.Fatalf("base path = %q", cfg.APIBasePath)
	}
	if cfg.DBPath != "polybot.db" {
		t.Fatalf("db path = %q", cfg.DBPath)
	}
	if cfg.Backend.BaseURL != "" {
		t.Fatalf("backend url should default empty, got %q", cfg.Backend.BaseURL)
	}
	if cfg.Backend.Timeout != 60*time.Second {
		t.Fatalf("backend timeout = %v", cfg.Backend.Timeout)
	}
	if cfg.IdempotencyTTL != 24*time.Hour {
		t.Fatalf("idempotency ttl = %v", cfg.IdempotencyTTL)
	}
	if cfg.OTEL.Enabled {
		t.Fatal("otel should default off")
	}
	if cfg.OTEL.ServiceName != "polybot-backend" {
		t.Fatalf("service name = %q", cfg.OTEL.ServiceName)
	}
}

func TestLoad_BackendURLTrailingSlashTrimmed(t *testing.T) {
	t.Setenv("BACKEND_URL", "https://inference.internal///")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Backend.BaseURL != "https://inference.internal" {
		t.Fatalf("base url = %q", cfg.Backend.BaseURL)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("LOG_LEVEL", "warning") // normalized to warn
	t.Setenv("GIN_MODE", "weird")    // normalized to release
	t.Setenv("AUTH_JWT_SECRET", "s3cret")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Fatalf("port = %q", cfg.Port)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("log level = %q", cfg.LogLevel)
	}
	if cfg.GinMode != "release" {
		t.Fatalf("gin mode = %q", cfg.GinMode)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Fatalf("jwt secret = %q", cfg.Auth.JWTSecret)
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins = %v", cfg.CORS.AllowedOrigins)
	}
}

func TestLoad_Validation(t *testing.T) {
	cases := []struct {
		key, val, wantErr string
	}{
		{"LOG_LEVEL", "verbose", "LOG_LEVEL"},
		{"READ_TIMEOUT", "-5s", "timeouts"},
		{"MAX_HEADER_BYTES", "-1", "MAX_HEADER_BYTES"},
		{"BACKEND_TIMEOUT", "-1s", "BACKEND_TIMEOUT"},
		{"RATE_RPS", "-1", "RATE_RPS"},
		{"RATE_BURST", "0", "RATE_BURST"},
		{"IDEMPOTENCY_TTL", "-1h", "IDEMPOTENCY_TTL"},
		{"OTEL_TRACES_SAMPLER_ARG", "1.5", "OTEL_TRACES_SAMPLER_ARG"},
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv(tc.key, tc.val)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("expected error mentioning %s, got %v", tc.wantErr, err)
			}
		})
	}
}

func TestMustLoad_PanicsOnInvalid(t *testing.T) {
	t.Setenv("RATE_BURST", "0")
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic")
		}
	}()
	MustLoad()
}
