package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/handler"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/sqlite"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/snapshot"
	"github.com/wadjakorntonsri/portfolio-views/pkg/config"
	"github.com/wadjakorntonsri/portfolio-views/pkg/core/services"
)

func TestIntegration(t *testing.T) {
	dir := t.TempDir()

	// 1. Setup DB
	repo, err := sqlite.NewSQLiteRepository("file:" + filepath.Join(dir, "views.db"))
	if err != nil {
		t.Fatalf("Failed to init db: %v", err)
	}
	defer repo.Close()

	// 2. Setup Services and Router
	tracker := services.NewVisitTracker(repo)
	cfg := &config.Config{}
	server := httptest.NewServer(handler.NewRouter(cfg, tracker, services.NewSnapshotService(repo, nil), nil))
	defer server.Close()

	client := server.Client()

	post := func(ip string) handler.ViewsResponse {
		t.Helper()
		req, _ := http.NewRequest(http.MethodPost, server.URL+"/api/views", nil)
		req.Header.Set("X-Forwarded-For", ip)
		resp, err := client.Do(req)
		if err != nil {
			t.Fatalf("Failed POST: %v", err)
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("POST expected 200, got %d", resp.StatusCode)
		}
		var out handler.ViewsResponse
		json.NewDecoder(resp.Body).Decode(&out)
		return out
	}

	// TEST 1: First visit is counted
	first := post("1.2.3.4")
	if first.Views != 1 || first.Incremented == nil || !*first.Incremented {
		t.Errorf("first visit = %+v", first)
	}

	// TEST 2: Repeat inside the cool-down is not
	repeat := post("1.2.3.4")
	if repeat.Views != 1 || repeat.Incremented == nil || *repeat.Incremented {
		t.Errorf("repeat visit = %+v", repeat)
	}

	// TEST 3: Another visitor
	post("5.6.7.8")

	// TEST 4: Stats
	resp, err := client.Get(server.URL + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var stats handler.StatsResponse
	json.NewDecoder(resp.Body).Decode(&stats)
	if stats.TotalViews != 2 || stats.UniqueVisitors != 2 || stats.LastVisit == nil {
		t.Errorf("stats = %+v", stats)
	}

	// TEST 5: Backup to file and restore into a fresh store
	backup := filepath.Join(dir, "backup.json")
	scheduler := snapshot.NewScheduler(repo, backup, 0, nil)
	if err := scheduler.Stop(context.Background()); err != nil {
		t.Fatalf("export failed: %v", err)
	}

	fresh, err := sqlite.NewSQLiteRepository("file:" + filepath.Join(dir, "fresh.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer fresh.Close()

	restored, err := snapshot.RestoreIfEmpty(context.Background(), fresh, backup, nil)
	if err != nil || !restored {
		t.Fatalf("RestoreIfEmpty = (%v, %v)", restored, err)
	}
	n, err := fresh.TotalViews(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("restored total = %d, want 2", n)
	}
}
