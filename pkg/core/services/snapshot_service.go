package services

import (
	"context"

	"go.uber.org/zap"

	"github.com/wadjakorntonsri/portfolio-views/pkg/core/domain"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

var ErrInvalidSnapshot = domain.ErrInvalidSnapshot

type SnapshotService struct {
	repo   ports.VisitorStore
	logger *zap.Logger
}

func NewSnapshotService(repo ports.VisitorStore, logger *zap.Logger) *SnapshotService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SnapshotService{
		repo:   repo,
		logger: logger,
	}
}

func (s *SnapshotService) Export(ctx context.Context) (*domain.Snapshot, error) {
	snap, err := s.repo.Dump(ctx)
	if err != nil {
		return nil, domain.WrapStorage("dump", err)
	}
	return snap, nil
}

// Import replaces the store contents with snap after validating it.
func (s *SnapshotService) Import(ctx context.Context, snap *domain.Snapshot) error {
	if err := s.Validate(snap); err != nil {
		return err
	}
	if err := s.repo.Restore(ctx, snap); err != nil {
		return domain.WrapStorage("restore", err)
	}
	s.logger.Info("snapshot restored",
		zap.Int64("total_views", snap.TotalViews),
		zap.Int("visitors", len(snap.Visitors)),
	)
	return nil
}

func (s *SnapshotService) Validate(snap *domain.Snapshot) error {
	return snap.Validate()
}

var _ ports.SnapshotService = (*SnapshotService)(nil)
