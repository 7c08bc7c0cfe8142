package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/portfolio-views/pkg/core/domain"
)

func TestRestoreIfEmpty(t *testing.T) {
	ctx := context.Background()
	cooldown := 24 * time.Hour
	t0 := time.UnixMilli(1_700_000_000_000)

	backup := domain.NewSnapshot(t0)
	backup.TotalViews = 5
	backup.Add(domain.VisitorRecord{IP: "9.9.9.9", FirstSeen: t0, LastSeen: t0, VisitCount: 5})

	tests := []struct {
		name         string
		setup        func(t *testing.T, path string, store *memory.MemoryRepository)
		wantRestored bool
		wantViews    int64
	}{
		{
			name: "restores into empty store",
			setup: func(t *testing.T, path string, _ *memory.MemoryRepository) {
				if err := WriteFile(path, backup); err != nil {
					t.Fatal(err)
				}
			},
			wantRestored: true,
			wantViews:    5,
		},
		{
			name:      "missing file",
			setup:     func(*testing.T, string, *memory.MemoryRepository) {},
			wantViews: 0,
		},
		{
			name: "corrupt file",
			setup: func(t *testing.T, path string, _ *memory.MemoryRepository) {
				if err := os.WriteFile(path, []byte("garbage"), 0o644); err != nil {
					t.Fatal(err)
				}
			},
			wantViews: 0,
		},
		{
			name: "parseable but invalid file",
			setup: func(t *testing.T, path string, _ *memory.MemoryRepository) {
				raw := `{"totalViews":-7,"visitors":{"":{"first_visit":5000,"last_visit":1,"visit_count":0}}}`
				if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
					t.Fatal(err)
				}
			},
			wantViews: 0,
		},
		{
			name: "store already has data",
			setup: func(t *testing.T, path string, store *memory.MemoryRepository) {
				if err := WriteFile(path, backup); err != nil {
					t.Fatal(err)
				}
				store.UpsertVisit(ctx, "1.1.1.1", t0, cooldown)
			},
			wantViews: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := memory.NewMemoryRepository()
			path := filepath.Join(t.TempDir(), "backup.json")
			tt.setup(t, path, store)

			restored, err := RestoreIfEmpty(ctx, store, path, zap.NewNop())
			if err != nil {
				t.Fatalf("RestoreIfEmpty: %v", err)
			}
			if restored != tt.wantRestored {
				t.Errorf("restored = %v, want %v", restored, tt.wantRestored)
			}
			if n, _ := store.TotalViews(ctx); n != tt.wantViews {
				t.Errorf("totalViews = %d, want %d", n, tt.wantViews)
			}
			if !tt.wantRestored && tt.wantViews == 0 {
				if stats, _ := store.Stats(ctx); stats.UniqueVisitors != 0 {
					t.Errorf("uniqueVisitors = %d, want 0", stats.UniqueVisitors)
				}
			}
		})
	}
}

func TestRestoredStateKeepsCooldown(t *testing.T) {
	ctx := context.Background()
	t0 := time.UnixMilli(1_700_000_000_000)
	path := filepath.Join(t.TempDir(), "backup.json")

	backup := domain.NewSnapshot(t0)
	backup.TotalViews = 5
	backup.Add(domain.VisitorRecord{IP: "9.9.9.9", FirstSeen: t0, LastSeen: t0, VisitCount: 5})
	if err := WriteFile(path, backup); err != nil {
		t.Fatal(err)
	}

	store := memory.NewMemoryRepository()
	if _, err := RestoreIfEmpty(ctx, store, path, nil); err != nil {
		t.Fatal(err)
	}

	if counted, _ := store.UpsertVisit(ctx, "9.9.9.9", t0.Add(time.Hour), 24*time.Hour); counted {
		t.Error("restored visitor counted inside cool-down")
	}
	if counted, _ := store.UpsertVisit(ctx, "8.8.8.8", t0.Add(time.Hour), 24*time.Hour); !counted {
		t.Error("new visitor not counted")
	}
	if n, _ := store.TotalViews(ctx); n != 6 {
		t.Errorf("totalViews = %d, want 6", n)
	}
}

func TestRestoreIfEmptyNoPath(t *testing.T) {
	restored, err := RestoreIfEmpty(context.Background(), memory.NewMemoryRepository(), "", nil)
	if err != nil || restored {
		t.Errorf("RestoreIfEmpty(\"\") = (%v, %v), want (false, nil)", restored, err)
	}
}
