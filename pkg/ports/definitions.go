package ports

import (
	"context"
	"time"

	"github.com/wadjakorntonsri/portfolio-views/pkg/core/domain"
)

// VisitorStore defines storage operations for visitor records.
// Every implementation must apply UpsertVisit's record change and the
// total_views increment as one atomic unit.
type VisitorStore interface {
	// UpsertVisit inserts ip, or bumps it when now is at least cooldown past
	// its last counted visit. It reports whether the visit was counted.
	UpsertVisit(ctx context.Context, ip string, now time.Time, cooldown time.Duration) (bool, error)
	TotalViews(ctx context.Context) (int64, error)
	Stats(ctx context.Context) (domain.AggregateStats, error)

	// Backup
	Dump(ctx context.Context) (*domain.Snapshot, error)
	Restore(ctx context.Context, snap *domain.Snapshot) error

	Close() error
}

// VisitService defines the business logic operations
type VisitService interface {
	RecordVisit(ctx context.Context, ip string) (bool, error)
	GetStats(ctx context.Context) (domain.AggregateStats, error)
	GetTotalViewCount(ctx context.Context) (int64, error)
}

// SnapshotService exports and restores store state
type SnapshotService interface {
	Export(ctx context.Context) (*domain.Snapshot, error)
	Import(ctx context.Context, snap *domain.Snapshot) error
}
