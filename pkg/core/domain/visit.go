package domain

import "time"

// DefaultCooldown is how long a visitor stays uncounted after a counted visit.
const DefaultCooldown = 24 * time.Hour

// VisitorRecord is the durable per-IP state
type VisitorRecord struct {
	IP         string    `json:"ip"`
	FirstSeen  time.Time `json:"first_seen"`
	LastSeen   time.Time `json:"last_seen"`
	VisitCount int64     `json:"visit_count"`
}

// Counts reports whether a visit at now clears the cool-down of rec.
// A nil record is a first-ever visit. The boundary is inclusive.
func (rec *VisitorRecord) Counts(now time.Time, cooldown time.Duration) bool {
	if rec == nil {
		return true
	}
	return now.Sub(rec.LastSeen) >= cooldown
}

// AggregateStats represents summary counters over all visitors
type AggregateStats struct {
	TotalViews     int64      `json:"totalViews"`
	UniqueVisitors int64      `json:"uniqueVisitors"`
	LastVisit      *time.Time `json:"lastVisit"` // nil when nobody has visited yet
}
