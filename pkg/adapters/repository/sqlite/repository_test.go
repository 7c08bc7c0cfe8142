package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/storetest"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

func newTestRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	dbURL := "file:" + filepath.Join(t.TempDir(), "views.db")
	repo, err := NewSQLiteRepository(dbURL)
	if err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}
	return repo
}

func TestSQLiteRepository(t *testing.T) {
	storetest.Run(t, func(t *testing.T) ports.VisitorStore {
		return newTestRepo(t)
	})
}

func TestInMemoryDatabase(t *testing.T) {
	repo, err := NewSQLiteRepository(":memory:")
	if err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}
	defer repo.Close()

	counted, err := repo.UpsertVisit(context.Background(), "1.2.3.4", storetest.T0, 24*time.Hour)
	if err != nil || !counted {
		t.Fatalf("UpsertVisit = (%v, %v), want (true, nil)", counted, err)
	}
	if n, err := repo.TotalViews(context.Background()); err != nil || n != 1 {
		t.Errorf("TotalViews = (%d, %v), want (1, nil)", n, err)
	}
}

func TestStateSurvivesReopen(t *testing.T) {
	dbURL := "file:" + filepath.Join(t.TempDir(), "views.db")
	ctx := context.Background()

	repo, err := NewSQLiteRepository(dbURL)
	if err != nil {
		t.Fatal(err)
	}
	repo.UpsertVisit(ctx, "1.2.3.4", storetest.T0, 24*time.Hour)
	repo.UpsertVisit(ctx, "5.6.7.8", storetest.T0, 24*time.Hour)
	if err := repo.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopening runs migrate again; it must not reset the counter.
	repo, err = NewSQLiteRepository(dbURL)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()

	stats, err := repo.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stats.TotalViews != 2 || stats.UniqueVisitors != 2 {
		t.Errorf("stats after reopen = %+v", stats)
	}
	if counted, _ := repo.UpsertVisit(ctx, "1.2.3.4", storetest.T0.Add(time.Hour), 24*time.Hour); counted {
		t.Error("cool-down was lost across reopen")
	}
}

func TestClosedDatabaseReturnsError(t *testing.T) {
	repo := newTestRepo(t)
	repo.Close()

	if _, err := repo.UpsertVisit(context.Background(), "1.2.3.4", storetest.T0, 24*time.Hour); err == nil {
		t.Error("expected an error from a closed database")
	}
	if _, err := repo.Stats(context.Background()); err == nil {
		t.Error("expected an error from a closed database")
	}
}

func TestIsRemoteURL(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"libsql://views-example.turso.io?authToken=abc", true},
		{"wss://views-example.turso.io", true},
		{"file:views.db", false},
		{":memory:", false},
	}
	for _, tt := range tests {
		if got := IsRemoteURL(tt.url); got != tt.want {
			t.Errorf("IsRemoteURL(%q) = %v, want %v", tt.url, got, tt.want)
		}
	}
}

func TestTotalViewsWithoutCounterRow(t *testing.T) {
	repo := newTestRepo(t)
	defer repo.Close()

	if _, err := repo.db.Exec(`DELETE FROM stats`); err != nil {
		t.Fatal(err)
	}
	n, err := repo.TotalViews(context.Background())
	if err != nil || n != 0 {
		t.Errorf("TotalViews = (%d, %v), want (0, nil)", n, err)
	}
}
