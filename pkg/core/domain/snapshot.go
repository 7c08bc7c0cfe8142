package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var ErrInvalidSnapshot = errors.New("invalid snapshot")

var validate = validator.New()

// Snapshot is a point-in-time copy of a store, used for backup and restore.
// Times are milliseconds since the Unix epoch.
type Snapshot struct {
	TotalViews  int64                      `json:"totalViews" validate:"min=0"`
	Visitors    map[string]SnapshotVisitor `json:"visitors" validate:"dive"`
	LastUpdated time.Time                  `json:"lastUpdated"`
}

type SnapshotVisitor struct {
	FirstVisit int64 `json:"first_visit" validate:"min=0"`
	LastVisit  int64 `json:"last_visit" validate:"gtefield=FirstVisit"`
	VisitCount int64 `json:"visit_count" validate:"min=1"`
}

// NewSnapshot returns an empty snapshot stamped with now.
func NewSnapshot(now time.Time) *Snapshot {
	return &Snapshot{
		Visitors:    make(map[string]SnapshotVisitor),
		LastUpdated: now.UTC(),
	}
}

// Records converts the snapshot visitors into records.
func (s *Snapshot) Records() []VisitorRecord {
	records := make([]VisitorRecord, 0, len(s.Visitors))
	for ip, v := range s.Visitors {
		records = append(records, VisitorRecord{
			IP:         ip,
			FirstSeen:  time.UnixMilli(v.FirstVisit),
			LastSeen:   time.UnixMilli(v.LastVisit),
			VisitCount: v.VisitCount,
		})
	}
	return records
}

// Add stores rec in the snapshot.
func (s *Snapshot) Add(rec VisitorRecord) {
	s.Visitors[rec.IP] = SnapshotVisitor{
		FirstVisit: rec.FirstSeen.UnixMilli(),
		LastVisit:  rec.LastSeen.UnixMilli(),
		VisitCount: rec.VisitCount,
	}
}

// Validate checks the invariants a store relies on: a non-negative total,
// non-empty IPs, visit_count >= 1 and first_visit <= last_visit.
func (s *Snapshot) Validate() error {
	if s == nil {
		return fmt.Errorf("%w: empty body", ErrInvalidSnapshot)
	}
	for ip := range s.Visitors {
		if strings.TrimSpace(ip) == "" {
			return fmt.Errorf("%w: visitor with empty ip", ErrInvalidSnapshot)
		}
	}
	if err := validate.Struct(s); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return nil
}
