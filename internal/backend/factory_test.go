package backend

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"tally/internal/config"
	"tally/internal/core"
	sheetsmem "tally/internal/sheets/memory"
)

func TestFromAppConfig(t *testing.T) {
	if _, err := FromAppConfig(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
	if _, err := FromAppConfig(&config.Config{DataBackend: "sheets"}); err == nil {
		t.Fatal("expected error for unknown backend")
	}
	got, err := FromAppConfig(&config.Config{DataBackend: "postgres", DatabaseURL: "postgres://x/y"})
	if err != nil {
		t.Fatalf("FromAppConfig: %v", err)
	}
	if got.Type != PostgresBackend || got.DatabaseURL != "postgres://x/y" {
		t.Fatalf("unexpected config %+v", got)
	}

	got, err = FromAppConfig(&config.Config{DataBackend: " SQLite ", SQLiteDBPath: "x.db"})
	if err != nil || got.Type != SQLiteBackend {
		t.Fatalf("expected case-insensitive sqlite, got %+v, %v", got, err)
	}
	got, err = FromAppConfig(&config.Config{})
	if err != nil || got.Type != MemoryBackend {
		t.Fatalf("expected memory default, got %+v, %v", got, err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"memory", Config{Type: MemoryBackend}, false},
		{"sqlite", Config{Type: SQLiteBackend, SQLiteDBPath: "x.db"}, false},
		{"sqlite without path", Config{Type: SQLiteBackend}, true},
		{"postgres without url", Config{Type: PostgresBackend}, true},
		{"unknown", Config{Type: "csv"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.cfg.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBackendTypePersistent(t *testing.T) {
	if MemoryBackend.Persistent() || !SQLiteBackend.Persistent() || !PostgresBackend.Persistent() {
		t.Fatal("unexpected persistence flags")
	}
	if len(GetBackendTypes()) != 3 {
		t.Fatal("expected three backend types")
	}
}

func TestCreateBackend(t *testing.T) {
	f := NewFactory(nil)
	ctx := context.Background()

	for _, cfg := range []Config{
		{Type: MemoryBackend},
		{Type: SQLiteBackend, SQLiteDBPath: filepath.Join(t.TempDir(), "tally.db")},
	} {
		t.Run(cfg.Type.String(), func(t *testing.T) {
			res, err := f.CreateBackend(ctx, cfg)
			if err != nil {
				t.Fatalf("CreateBackend: %v", err)
			}
			defer res.Close()

			saved, err := res.Backend.InsertTransaction(ctx, core.Transaction{
				OwnerID: "u1",
				Date:    core.NewDate(2025, 1, 1),
				Type:    core.Income,
				Method:  core.Cash,
				Amount:  decimal.NewFromInt(5),
			})
			if err != nil {
				t.Fatalf("insert: %v", err)
			}
			pending, err := res.Backend.PendingSync(ctx, 10)
			if err != nil || len(pending) != 1 || pending[0].ID != saved.ID {
				t.Fatalf("unexpected pending %v err=%v", pending, err)
			}
		})
	}
}

func TestCreateBackendRejectsInvalid(t *testing.T) {
	if _, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend}); err == nil {
		t.Fatal("expected validation error")
	}
}

func TestNewPublisherWithoutAMQP(t *testing.T) {
	if p := NewFactory(nil).NewPublisher(&config.Config{}); p != nil {
		t.Fatal("expected nil publisher when AMQP_URL is empty")
	}
}

func TestNewMirrorFallsBackToMemory(t *testing.T) {
	m, err := NewFactory(nil).NewMirror(context.Background(), &config.Config{})
	if err != nil {
		t.Fatalf("NewMirror: %v", err)
	}
	if _, ok := m.(*sheetsmem.Store); !ok {
		t.Fatalf("expected memory mirror, got %T", m)
	}
}
