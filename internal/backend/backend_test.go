package backend

import (
	"context"
	"path/filepath"
	"testing"

	"spendlog/internal/config"
	sheetsmem "spendlog/internal/sheets/memory"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("nil config must fail")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("unknown backend must fail")
	}
	cfg, err := FromAppConfig(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://x/y", AMQPQueue: "q"})
	if err != nil || cfg.Type != Postgres || cfg.DatabaseURL != "postgres://x/y" || cfg.AMQPQueue != "q" {
		t.Fatalf("unexpected: %+v %v", cfg, err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"sqlite ok", Config{Type: SQLite, SQLiteDBPath: "x.db"}, false},
		{"sqlite missing path", Config{Type: SQLite}, true},
		{"postgres missing url", Config{Type: Postgres}, true},
		{"memory", Config{Type: Memory}, false},
		{"invalid", Config{Type: "sheets"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCreateBackend(t *testing.T) {
	ctx := context.Background()
	f := NewFactory(nil)

	for _, cfg := range []Config{
		{Type: Memory},
		{Type: SQLite, SQLiteDBPath: filepath.Join(t.TempDir(), "spendlog.db")},
	} {
		res, err := f.CreateBackend(ctx, cfg)
		if err != nil {
			t.Fatalf("%s: %v", cfg.Type, err)
		}
		if err := res.Store.Ping(ctx); err != nil {
			t.Fatalf("%s ping: %v", cfg.Type, err)
		}
		if res.Publisher != nil {
			t.Fatalf("%s: publisher without AMQP_URL", cfg.Type)
		}
		if err := res.Cleanup(); err != nil {
			t.Fatalf("%s cleanup: %v", cfg.Type, err)
		}
	}
}

func TestNewMirror(t *testing.T) {
	ctx := context.Background()
	m, err := NewMirror(ctx, Config{Type: SQLite}, nil)
	if err != nil || m != nil {
		t.Fatalf("expected no mirror, got %v %v", m, err)
	}
	m, err = NewMirror(ctx, Config{Type: Memory}, nil)
	if _, ok := m.(*sheetsmem.Mirror); err != nil || !ok {
		t.Fatalf("expected memory mirror, got %T %v", m, err)
	}
	if _, err := NewMirror(ctx, Config{Type: SQLite, GoogleSpreadsheetID: "id"}, nil); err == nil {
		t.Fatal("expected credential error")
	}
}
