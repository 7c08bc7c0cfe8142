// Package storetest holds behaviour tests shared by every ports.VisitorStore
// implementation.
package storetest

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/wadjakorntonsri/portfolio-views/pkg/core/domain"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

// T0 is the reference clock used by the suite.
var T0 = time.UnixMilli(1_700_000_000_000)

const cooldown = 24 * time.Hour

// Run executes the suite. newStore must return an empty store; the suite
// closes it.
func Run(t *testing.T, newStore func(t *testing.T) ports.VisitorStore) {
	tests := []struct {
		name string
		fn   func(t *testing.T, s ports.VisitorStore)
	}{
		{"FirstVisitCounts", testFirstVisitCounts},
		{"RepeatWithinCooldown", testRepeatWithinCooldown},
		{"CooldownBoundary", testCooldownBoundary},
		{"EmptyStats", testEmptyStats},
		{"StatsAcrossVisitors", testStatsAcrossVisitors},
		{"ConcurrentSameIP", testConcurrentSameIP},
		{"ConcurrentDistinctIPs", testConcurrentDistinctIPs},
		{"RestoreReplacesState", testRestoreReplacesState},
		{"DumpRoundTrip", testDumpRoundTrip},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newStore(t)
			t.Cleanup(func() {
				if err := s.Close(); err != nil {
					t.Errorf("Close: %v", err)
				}
			})
			tt.fn(t, s)
		})
	}
}

func upsert(t *testing.T, s ports.VisitorStore, ip string, now time.Time) bool {
	t.Helper()
	counted, err := s.UpsertVisit(context.Background(), ip, now, cooldown)
	if err != nil {
		t.Fatalf("UpsertVisit(%s): %v", ip, err)
	}
	return counted
}

func total(t *testing.T, s ports.VisitorStore) int64 {
	t.Helper()
	n, err := s.TotalViews(context.Background())
	if err != nil {
		t.Fatalf("TotalViews: %v", err)
	}
	return n
}

func stats(t *testing.T, s ports.VisitorStore) domain.AggregateStats {
	t.Helper()
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	return st
}

func testFirstVisitCounts(t *testing.T, s ports.VisitorStore) {
	if !upsert(t, s, "1.2.3.4", T0) {
		t.Fatal("first visit was not counted")
	}
	if got := total(t, s); got != 1 {
		t.Errorf("total views = %d, want 1", got)
	}
	if got := stats(t, s).UniqueVisitors; got != 1 {
		t.Errorf("unique visitors = %d, want 1", got)
	}
}

func testRepeatWithinCooldown(t *testing.T, s ports.VisitorStore) {
	upsert(t, s, "1.2.3.4", T0)
	for i := 1; i <= 5; i++ {
		if upsert(t, s, "1.2.3.4", T0.Add(time.Duration(i)*time.Hour)) {
			t.Fatalf("repeat visit %d inside cool-down was counted", i)
		}
	}
	if got := total(t, s); got != 1 {
		t.Errorf("total views = %d, want 1", got)
	}

	snap, err := s.Dump(context.Background())
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	v := snap.Visitors["1.2.3.4"]
	if v.VisitCount != 1 || v.LastVisit != T0.UnixMilli() {
		t.Errorf("record changed inside cool-down: %+v", v)
	}
}

func testCooldownBoundary(t *testing.T, s ports.VisitorStore) {
	upsert(t, s, "1.2.3.4", T0)

	if upsert(t, s, "1.2.3.4", T0.Add(cooldown-time.Second)) {
		t.Fatal("visit at 23h59m59s was counted")
	}
	if !upsert(t, s, "1.2.3.4", T0.Add(cooldown)) {
		t.Fatal("visit at exactly 24h was not counted")
	}
	if got := total(t, s); got != 2 {
		t.Errorf("total views = %d, want 2", got)
	}

	// The cool-down restarts from the last counted visit.
	if upsert(t, s, "1.2.3.4", T0.Add(cooldown+time.Hour)) {
		t.Fatal("visit one hour after a counted visit was counted")
	}

	snap, err := s.Dump(context.Background())
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	v := snap.Visitors["1.2.3.4"]
	want := domain.SnapshotVisitor{
		FirstVisit: T0.UnixMilli(),
		LastVisit:  T0.Add(cooldown).UnixMilli(),
		VisitCount: 2,
	}
	if v != want {
		t.Errorf("record = %+v, want %+v", v, want)
	}
}

func testEmptyStats(t *testing.T, s ports.VisitorStore) {
	st := stats(t, s)
	if st.TotalViews != 0 || st.UniqueVisitors != 0 {
		t.Errorf("stats = %+v, want zero", st)
	}
	if st.LastVisit != nil {
		t.Errorf("last visit = %v, want nil", st.LastVisit)
	}
	if got := total(t, s); got != 0 {
		t.Errorf("total views = %d, want 0", got)
	}
}

func testStatsAcrossVisitors(t *testing.T, s ports.VisitorStore) {
	upsert(t, s, "10.0.0.1", T0)
	upsert(t, s, "10.0.0.2", T0.Add(time.Minute))
	// inside the cool-down, then past it
	upsert(t, s, "10.0.0.1", T0.Add(2*time.Minute))
	upsert(t, s, "10.0.0.1", T0.Add(25*time.Hour))
	upsert(t, s, "10.0.0.3", T0.Add(3*time.Minute))

	st := stats(t, s)
	if st.TotalViews != 4 {
		t.Errorf("total views = %d, want 4", st.TotalViews)
	}
	if st.UniqueVisitors != 3 {
		t.Errorf("unique visitors = %d, want 3", st.UniqueVisitors)
	}
	if st.LastVisit == nil || !st.LastVisit.Equal(T0.Add(25*time.Hour)) {
		t.Errorf("last visit = %v, want %v", st.LastVisit, T0.Add(25*time.Hour))
	}
}

func testConcurrentSameIP(t *testing.T, s ports.VisitorStore) {
	const workers = 16

	var wg sync.WaitGroup
	var mu sync.Mutex
	counted := 0
	errs := make(chan error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.UpsertVisit(context.Background(), "5.5.5.5", T0, cooldown)
			if err != nil {
				errs <- err
				return
			}
			if ok {
				mu.Lock()
				counted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Fatalf("UpsertVisit: %v", err)
	}
	if counted != 1 {
		t.Errorf("counted %d times, want 1", counted)
	}
	if got := total(t, s); got != 1 {
		t.Errorf("total views = %d, want 1", got)
	}
	if got := stats(t, s).UniqueVisitors; got != 1 {
		t.Errorf("unique visitors = %d, want 1", got)
	}
}

func testConcurrentDistinctIPs(t *testing.T, s ports.VisitorStore) {
	const visitors = 20

	var wg sync.WaitGroup
	errs := make(chan error, visitors*2)
	for i := 0; i < visitors; i++ {
		ip := fmt.Sprintf("192.168.0.%d", i)
		for _, at := range []time.Time{T0, T0.Add(cooldown)} {
			wg.Add(1)
			go func(at time.Time) {
				defer wg.Done()
				if _, err := s.UpsertVisit(context.Background(), ip, at, cooldown); err != nil {
					errs <- err
				}
			}(at)
		}
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("UpsertVisit: %v", err)
	}

	snap, err := s.Dump(context.Background())
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	var sum int64
	for _, v := range snap.Visitors {
		sum += v.VisitCount
	}
	if snap.TotalViews != sum {
		t.Errorf("total views %d drifted from sum of visit counts %d", snap.TotalViews, sum)
	}
	if len(snap.Visitors) != visitors {
		t.Errorf("visitors = %d, want %d", len(snap.Visitors), visitors)
	}
}

func testRestoreReplacesState(t *testing.T, s ports.VisitorStore) {
	upsert(t, s, "1.1.1.1", T0)

	snap := domain.NewSnapshot(T0)
	snap.TotalViews = 5
	snap.Visitors["9.9.9.9"] = domain.SnapshotVisitor{
		FirstVisit: T0.UnixMilli(),
		LastVisit:  T0.UnixMilli(),
		VisitCount: 1,
	}
	if err := s.Restore(context.Background(), snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}

	st := stats(t, s)
	if st.TotalViews != 5 || st.UniqueVisitors != 1 {
		t.Errorf("stats = %+v, want totalViews 5 and uniqueVisitors 1", st)
	}
	if st.LastVisit == nil || !st.LastVisit.Equal(T0) {
		t.Errorf("last visit = %v, want %v", st.LastVisit, T0)
	}

	// Restored records keep their cool-down.
	if upsert(t, s, "9.9.9.9", T0.Add(time.Hour)) {
		t.Error("restored visitor counted inside cool-down")
	}
	if !upsert(t, s, "1.1.1.1", T0.Add(time.Hour)) {
		t.Error("visitor dropped by restore was not treated as new")
	}
	if got := total(t, s); got != 6 {
		t.Errorf("total views = %d, want 6", got)
	}
}

func testDumpRoundTrip(t *testing.T, s ports.VisitorStore) {
	upsert(t, s, "1.1.1.1", T0)
	upsert(t, s, "2.2.2.2", T0.Add(time.Second))
	upsert(t, s, "1.1.1.1", T0.Add(48*time.Hour))

	snap, err := s.Dump(context.Background())
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if snap.TotalViews != 3 || len(snap.Visitors) != 2 {
		t.Fatalf("dump = %+v", snap)
	}

	if err := s.Restore(context.Background(), snap); err != nil {
		t.Fatalf("Restore: %v", err)
	}
	again, err := s.Dump(context.Background())
	if err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if again.TotalViews != snap.TotalViews {
		t.Errorf("total views = %d, want %d", again.TotalViews, snap.TotalViews)
	}
	for ip, v := range snap.Visitors {
		if again.Visitors[ip] != v {
			t.Errorf("visitor %s = %+v, want %+v", ip, again.Visitors[ip], v)
		}
	}
}
