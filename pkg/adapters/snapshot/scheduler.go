package snapshot

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

const DefaultInterval = 5 * time.Minute

// Scheduler exports the store to a JSON file on a fixed interval.
// Call Stop before closing the store so the final export sees every write.
type Scheduler struct {
	store    ports.VisitorStore
	path     string
	interval time.Duration
	logger   *zap.Logger

	exportMu sync.Mutex // one export at a time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool
}

func NewScheduler(store ports.VisitorStore, path string, interval time.Duration, logger *zap.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		store:    store,
		path:     path,
		interval: interval,
		logger:   logger.With(zap.String("component", "snapshot"), zap.String("path", path)),
	}
}

// Start launches the export loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil || s.stopped {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := s.Export(ctx); err != nil {
				s.logger.Warn("periodic export failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}

// Export writes one snapshot now.
func (s *Scheduler) Export(ctx context.Context) error {
	s.exportMu.Lock()
	defer s.exportMu.Unlock()

	snap, err := s.store.Dump(ctx)
	if err != nil {
		return err
	}
	if err := WriteFile(s.path, snap); err != nil {
		return err
	}
	s.logger.Debug("snapshot exported",
		zap.Int64("total_views", snap.TotalViews),
		zap.Int("visitors", len(snap.Visitors)),
	)
	return nil
}

// Stop cancels the loop, waits for an in-flight export and writes a final
// snapshot. It is safe to call more than once.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true
	cancel, done := s.cancel, s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	return s.Export(ctx)
}
