package memory

import (
	"context"
	"sync"
	"time"

	"github.com/wadjakorntonsri/portfolio-views/pkg/core/domain"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

// MemoryRepository keeps visitors in a map. A single mutex covers both the
// visitor map and the total, so the two can never drift.
type MemoryRepository struct {
	mu         sync.RWMutex
	visitors   map[string]*domain.VisitorRecord
	totalViews int64
	version    uint64
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		visitors: make(map[string]*domain.VisitorRecord),
	}
}

func (r *MemoryRepository) UpsertVisit(ctx context.Context, ip string, now time.Time, cooldown time.Duration) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec := r.visitors[ip]
	if !rec.Counts(now, cooldown) {
		return false, nil
	}

	if rec == nil {
		r.visitors[ip] = &domain.VisitorRecord{
			IP:         ip,
			FirstSeen:  now,
			LastSeen:   now,
			VisitCount: 1,
		}
	} else {
		rec.LastSeen = now
		rec.VisitCount++
	}
	r.totalViews++
	r.version++
	return true, nil
}

func (r *MemoryRepository) TotalViews(ctx context.Context) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.totalViews, nil
}

func (r *MemoryRepository) Stats(ctx context.Context) (domain.AggregateStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := domain.AggregateStats{
		TotalViews:     r.totalViews,
		UniqueVisitors: int64(len(r.visitors)),
	}
	for _, rec := range r.visitors {
		if stats.LastVisit == nil || rec.LastSeen.After(*stats.LastVisit) {
			last := rec.LastSeen
			stats.LastVisit = &last
		}
	}
	return stats, nil
}

func (r *MemoryRepository) Dump(ctx context.Context) (*domain.Snapshot, error) {
	snap, _ := r.DumpVersion()
	return snap, nil
}

// DumpVersion returns a snapshot together with the mutation counter it was
// taken at.
func (r *MemoryRepository) DumpVersion() (*domain.Snapshot, uint64) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap := domain.NewSnapshot(time.Now())
	snap.TotalViews = r.totalViews
	for _, rec := range r.visitors {
		snap.Add(*rec)
	}
	return snap, r.version
}

// Version increases on every mutation.
func (r *MemoryRepository) Version() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.version
}

func (r *MemoryRepository) Restore(ctx context.Context, snap *domain.Snapshot) error {
	visitors := make(map[string]*domain.VisitorRecord, len(snap.Visitors))
	for _, rec := range snap.Records() {
		rec := rec
		visitors[rec.IP] = &rec
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.visitors = visitors
	r.totalViews = snap.TotalViews
	r.version++
	return nil
}

func (r *MemoryRepository) Close() error {
	return nil
}

// Ensure interface compliance
var _ ports.VisitorStore = (*MemoryRepository)(nil)
