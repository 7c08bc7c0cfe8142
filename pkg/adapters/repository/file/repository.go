package file

import (
	"context"
	"errors"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/repository/memory"
	"github.com/wadjakorntonsri/portfolio-views/pkg/adapters/snapshot"
	"github.com/wadjakorntonsri/portfolio-views/pkg/core/domain"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

// FileRepository serves reads and writes from memory and persists the whole
// state as a JSON snapshot after every counted visit.
type FileRepository struct {
	mem    *memory.MemoryRepository
	path   string
	logger *zap.Logger

	flushMu sync.Mutex
	flushed uint64
}

// NewFileRepository loads path if it exists. A corrupt or invalid file is
// logged and replaced on the next flush.
func NewFileRepository(path string, logger *zap.Logger) (*FileRepository, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &FileRepository{
		mem:    memory.NewMemoryRepository(),
		path:   path,
		logger: logger.With(zap.String("store", "file"), zap.String("path", path)),
	}

	snap, err := snapshot.ReadFile(path)
	if err == nil {
		err = snap.Validate()
	}
	switch {
	case errors.Is(err, os.ErrNotExist):
		r.logger.Info("starting with empty visitor file")
	case err != nil:
		r.logger.Warn("visitor file unreadable, starting empty", zap.Error(err))
	default:
		if err := r.mem.Restore(context.Background(), snap); err != nil {
			return nil, err
		}
	}
	r.flushed = r.mem.Version()
	return r, nil
}

func (r *FileRepository) UpsertVisit(ctx context.Context, ip string, now time.Time, cooldown time.Duration) (bool, error) {
	counted, err := r.mem.UpsertVisit(ctx, ip, now, cooldown)
	if err != nil || !counted {
		return counted, err
	}
	if err := r.Flush(); err != nil {
		// The visit stays counted in memory; the next flush retries.
		r.logger.Error("failed to persist visitor file", zap.Error(err))
	}
	return true, nil
}

func (r *FileRepository) TotalViews(ctx context.Context) (int64, error) {
	return r.mem.TotalViews(ctx)
}

func (r *FileRepository) Stats(ctx context.Context) (domain.AggregateStats, error) {
	return r.mem.Stats(ctx)
}

func (r *FileRepository) Dump(ctx context.Context) (*domain.Snapshot, error) {
	return r.mem.Dump(ctx)
}

func (r *FileRepository) Restore(ctx context.Context, snap *domain.Snapshot) error {
	if err := r.mem.Restore(ctx, snap); err != nil {
		return err
	}
	return r.Flush()
}

// Flush writes the current state if it changed since the last write.
func (r *FileRepository) Flush() error {
	r.flushMu.Lock()
	defer r.flushMu.Unlock()

	snap, version := r.mem.DumpVersion()
	if version == r.flushed {
		return nil
	}
	if err := snapshot.WriteFile(r.path, snap); err != nil {
		return err
	}
	r.flushed = version
	return nil
}

func (r *FileRepository) Close() error {
	return r.Flush()
}

var _ ports.VisitorStore = (*FileRepository)(nil)
