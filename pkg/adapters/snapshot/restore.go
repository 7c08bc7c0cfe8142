package snapshot

import (
	"context"
	"errors"
	"os"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

// RestoreIfEmpty loads the backup at path into store when the store has no
// visitors and no views. A missing, unreadable or invalid backup is logged and
// ignored so startup continues from zero state. Only store failures are
// returned.
func RestoreIfEmpty(ctx context.Context, store ports.VisitorStore, path string, logger *zap.Logger) (bool, error) {
	if path == "" {
		return false, nil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	stats, err := store.Stats(ctx)
	if err != nil {
		return false, err
	}
	if stats.TotalViews > 0 || stats.UniqueVisitors > 0 {
		return false, nil
	}

	snap, err := ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Info("no backup to restore", zap.String("path", path))
		return false, nil
	}
	if err != nil {
		logger.Warn("ignoring unreadable backup", zap.String("path", path), zap.Error(err))
		return false, nil
	}
	if err := snap.Validate(); err != nil {
		logger.Warn("ignoring invalid backup", zap.String("path", path), zap.Error(err))
		return false, nil
	}

	if err := store.Restore(ctx, snap); err != nil {
		return false, err
	}
	logger.Info("restored backup",
		zap.String("path", path),
		zap.Int64("total_views", snap.TotalViews),
		zap.Int("visitors", len(snap.Visitors)),
	)
	return true, nil
}
