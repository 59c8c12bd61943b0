package config

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validConfig(t *testing.T) Config {
	return Config{
		Port:               "8081",
		DataBackend:        BackendSQLite,
		SQLiteDBPath:       filepath.Join(t.TempDir(), "db", "spendlog.db"),
		JWTSecret:          "0123456789abcdef0123",
		TokenTTL:           24 * time.Hour,
		RateLimitPerMinute: 60,
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*Config)
		errorString string
	}{
		{name: "valid sqlite backend config", mutate: func(*Config) {}},
		{
			name: "valid postgres backend config",
			mutate: func(c *Config) {
				c.DataBackend = BackendPostgres
				c.DatabaseURL = "postgres://u:p@localhost:5432/spendlog"
			},
		},
		{
			name:   "memory backend accepts dev secret",
			mutate: func(c *Config) { c.DataBackend = BackendMemory; c.JWTSecret = DevJWTSecret },
		},
		{
			name:        "invalid port - non-numeric",
			mutate:      func(c *Config) { c.Port = "abc" },
			errorString: "invalid port 'abc': must be a number",
		},
		{
			name:        "invalid port - out of range high",
			mutate:      func(c *Config) { c.Port = "70000" },
			errorString: "invalid port 70000: must be between 1 and 65535",
		},
		{
			name:        "invalid backend",
			mutate:      func(c *Config) { c.DataBackend = "sheets" },
			errorString: "invalid data backend 'sheets'",
		},
		{
			name:        "postgres without url",
			mutate:      func(c *Config) { c.DataBackend = BackendPostgres },
			errorString: "DATABASE_URL is required",
		},
		{
			name:        "postgres with wrong scheme",
			mutate:      func(c *Config) { c.DataBackend = BackendPostgres; c.DatabaseURL = "mysql://x" },
			errorString: "invalid DATABASE_URL",
		},
		{
			name:        "short jwt secret",
			mutate:      func(c *Config) { c.JWTSecret = "short" },
			errorString: "JWT_SECRET must be at least 16 characters",
		},
		{
			name:        "dev secret outside memory backend",
			mutate:      func(c *Config) { c.JWTSecret = DevJWTSecret },
			errorString: "only allowed with the memory backend",
		},
		{
			name:        "token ttl too short",
			mutate:      func(c *Config) { c.TokenTTL = time.Second },
			errorString: "invalid token TTL",
		},
		{
			name:        "invalid amqp scheme",
			mutate:      func(c *Config) { c.AMQPURL = "http://localhost"; c.AMQPExchange = "x"; c.AMQPQueue = "q" },
			errorString: "invalid AMQP URL scheme 'http'",
		},
		{
			name:        "amqp without queue",
			mutate:      func(c *Config) { c.AMQPURL = "amqp://localhost"; c.AMQPExchange = "x" },
			errorString: "AMQP queue name cannot be empty",
		},
		{
			name:        "sheets mirror without credentials",
			mutate:      func(c *Config) { c.GoogleSpreadsheetID = "sheet-id" },
			errorString: "GOOGLE_OAUTH_CLIENT_FILE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig(t)
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.errorString == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorString) {
				t.Fatalf("expected error containing %q, got %v", tt.errorString, err)
			}
		})
	}
}

func TestConfig_ValidateCollectsAllErrors(t *testing.T) {
	cfg := Config{Port: "x", DataBackend: "nope", JWTSecret: "", TokenTTL: 0}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	if n := strings.Count(err.Error(), "\n- "); n < 4 {
		t.Fatalf("expected several problems, got %d: %v", n, err)
	}
}

func TestLoad(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATA_BACKEND", "MEMORY")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("RATE_LIMIT_PER_MINUTE", "not-a-number")

	cfg := Load()
	if cfg.Port != "9090" || cfg.DataBackend != BackendMemory {
		t.Fatalf("got %+v", cfg)
	}
	if cfg.JWTSecret != DevJWTSecret {
		t.Fatalf("memory backend should fall back to the dev secret")
	}
	if cfg.TokenTTL != 2*time.Hour {
		t.Fatalf("ttl %v", cfg.TokenTTL)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[1] != "https://b.example" {
		t.Fatalf("origins %v", cfg.CORSAllowedOrigins)
	}
	if cfg.RateLimitPerMinute != 60 {
		t.Fatalf("bad int should keep default, got %d", cfg.RateLimitPerMinute)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("loaded memory config should validate: %v", err)
	}
}
