package memory

import (
	"context"
	"testing"
	"time"

	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/storetest"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

func TestMemoryRepository(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.VisitorStore {
		return NewMemoryRepository()
	})
}

func TestVersionTracksMutations(t *testing.T) {
	repo := NewMemoryRepository()
	ctx := context.Background()

	if repo.Version() != 0 {
		t.Fatalf("fresh version = %d, want 0", repo.Version())
	}

	repo.UpsertVisit(ctx, "1.2.3.4", storetest.T0, 24*time.Hour)
	v1 := repo.Version()
	if v1 == 0 {
		t.Fatal("version did not move after a counted visit")
	}

	repo.UpsertVisit(ctx, "1.2.3.4", storetest.T0.Add(time.Minute), 24*time.Hour)
	if repo.Version() != v1 {
		t.Error("version moved after an uncounted visit")
	}

	snap, version := repo.DumpVersion()
	if version != v1 || snap.TotalViews != 1 {
		t.Errorf("DumpVersion = (%d views, v%d), want (1 views, v%d)", snap.TotalViews, version, v1)
	}
}

func TestUpsertHonoursCancelledContext(t *testing.T) {
	repo := NewMemoryRepository()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := repo.UpsertVisit(ctx, "1.2.3.4", storetest.T0, 24*time.Hour); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}
	if n, _ := repo.TotalViews(context.Background()); n != 0 {
		t.Errorf("total views = %d, want 0", n)
	}
}
