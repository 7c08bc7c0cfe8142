package repository

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/file"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/portfolio-views/pkg/config"
)

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		cfg     config.Config
		check   func(t *testing.T, store interface{})
		wantErr bool
	}{
		{
			name: "memory",
			cfg:  config.Config{StoreDriver: config.DriverMemory},
			check: func(t *testing.T, store interface{}) {
				if _, ok := store.(*memory.MemoryRepository); !ok {
					t.Errorf("got %T", store)
				}
			},
		},
		{
			name: "file with scheme",
			cfg:  config.Config{DatabaseURL: "file://" + filepath.Join(dir, "visitors.json")},
			check: func(t *testing.T, store interface{}) {
				if _, ok := store.(*file.FileRepository); !ok {
					t.Errorf("got %T", store)
				}
			},
		},
		{
			name: "sqlite",
			cfg:  config.Config{DatabaseURL: "file:" + filepath.Join(dir, "views.db")},
			check: func(t *testing.T, store interface{}) {
				if _, ok := store.(*sqlite.SQLiteRepository); !ok {
					t.Errorf("got %T", store)
				}
			},
		},
		{
			name:    "unknown driver",
			cfg:     config.Config{StoreDriver: "mongo"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := Open(&tt.cfg, zap.NewNop())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Open() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				if store != nil {
					t.Error("store should be nil on error")
				}
				return
			}
			defer store.Close()
			tt.check(t, store)
		})
	}
}

func TestFilePath(t *testing.T) {
	tests := []struct {
		url  string
		want string
	}{
		{"file:///var/data/visitors.json", "/var/data/visitors.json"},
		{"file:visitors.json", "visitors.json"},
		{"file:/var/data/visitors.json", "/var/data/visitors.json"},
		{"visitors.json", "visitors.json"},
	}
	for _, tt := range tests {
		if got := filePath(tt.url); got != tt.want {
			t.Errorf("filePath(%q) = %q, want %q", tt.url, got, tt.want)
		}
	}
}

func TestOpenFileSchemeWithoutSlashes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitors.json")
	cfg := &config.Config{DatabaseURL: "file:" + path}

	store, err := Open(cfg, zap.NewNop())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := store.UpsertVisit(context.Background(), "1.2.3.4", time.UnixMilli(1000), time.Hour); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("visitor file not written at %s: %v", path, err)
	}
}
