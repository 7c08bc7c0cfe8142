package services

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/portfolio-views/pkg/core/domain"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

// VisitTracker decides whether an incoming request is a new view.
// It holds no visitor state of its own; every call goes to the store.
type VisitTracker struct {
	repo     ports.VisitorStore
	cooldown time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

type Option func(*VisitTracker)

// WithCooldown overrides domain.DefaultCooldown.
func WithCooldown(d time.Duration) Option {
	return func(t *VisitTracker) {
		if d > 0 {
			t.cooldown = d
		}
	}
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *VisitTracker) {
		t.now = now
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(t *VisitTracker) {
		t.logger = logger
	}
}

func NewVisitTracker(repo ports.VisitorStore, opts ...Option) *VisitTracker {
	t := &VisitTracker{
		repo:     repo,
		cooldown: domain.DefaultCooldown,
		now:      time.Now,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *VisitTracker) RecordVisit(ctx context.Context, ip string) (bool, error) {
	ip = strings.TrimSpace(ip)
	if ip == "" {
		return false, domain.ErrEmptyIP
	}

	// Millisecond precision is what the SQL and Redis stores persist.
	now := time.UnixMilli(t.now().UnixMilli())

	counted, err := t.repo.UpsertVisit(ctx, ip, now, t.cooldown)
	if err != nil {
		return false, domain.WrapStorage("record visit", err)
	}

	t.logger.Debug("visit recorded", zap.String("ip", ip), zap.Bool("counted", counted))
	return counted, nil
}

func (t *VisitTracker) GetStats(ctx context.Context) (domain.AggregateStats, error) {
	stats, err := t.repo.Stats(ctx)
	if err != nil {
		return domain.AggregateStats{}, domain.WrapStorage("stats", err)
	}
	return stats, nil
}

func (t *VisitTracker) GetTotalViewCount(ctx context.Context) (int64, error) {
	total, err := t.repo.TotalViews(ctx)
	if err != nil {
		return 0, domain.WrapStorage("total views", err)
	}
	return total, nil
}

var _ ports.VisitService = (*VisitTracker)(nil)
