package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "github.com/tursodatabase/libsql-client-go/libsql" // Turso driver
	"github.com/wadjakorntonsri/portfolio-views/pkg/core/domain"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
	_ "modernc.org/sqlite" // Local SQLite driver
)

const totalViewsKey = "total_views"

type SQLiteRepository struct {
	db *sql.DB
}

func NewSQLiteRepository(dbURL string) (*SQLiteRepository, error) {
	driverName := "sqlite"
	if IsRemoteURL(dbURL) {
		driverName = "libsql"
	}

	db, err := sql.Open(driverName, dbURL)
	if err != nil {
		return nil, err
	}

	if driverName == "sqlite" {
		// One writer at a time avoids SQLITE_BUSY between the upsert and the
		// counter update; it also keeps ":memory:" databases on one connection.
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteRepository{db: db}, nil
}

// IsRemoteURL reports whether dbURL points at a libSQL server.
func IsRemoteURL(dbURL string) bool {
	return strings.Contains(dbURL, "libsql://") || strings.Contains(dbURL, "wss://")
}

func migrate(db *sql.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS visitors (
		ip TEXT PRIMARY KEY,
		first_visit INTEGER NOT NULL,
		last_visit INTEGER NOT NULL,
		visit_count INTEGER NOT NULL DEFAULT 1
	);
	CREATE INDEX IF NOT EXISTS idx_visitors_last_visit ON visitors(last_visit);

	CREATE TABLE IF NOT EXISTS stats (
		key TEXT PRIMARY KEY,
		value INTEGER NOT NULL
	);
	`
	if _, err := db.Exec(query); err != nil {
		return err
	}

	_, err := db.Exec(`INSERT OR IGNORE INTO stats (key, value) VALUES (?, 0)`, totalViewsKey)
	return err
}

func (r *SQLiteRepository) UpsertVisit(ctx context.Context, ip string, now time.Time, cooldown time.Duration) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	// 1. Insert, or bump only when the cool-down has elapsed.
	// RETURNING yields no row when the WHERE clause skipped the update.
	queryUpsert := `
		INSERT INTO visitors (ip, first_visit, last_visit, visit_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(ip) DO UPDATE SET
			last_visit = excluded.last_visit,
			visit_count = visitors.visit_count + 1
		WHERE excluded.last_visit - visitors.last_visit >= ?
		RETURNING visit_count`

	nowMs := now.UnixMilli()
	var visitCount int64
	err = tx.QueryRowContext(ctx, queryUpsert, ip, nowMs, nowMs, cooldown.Milliseconds()).Scan(&visitCount)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	// 2. Increment the total in the same transaction
	queryCount := `UPDATE stats SET value = value + 1 WHERE key = ?`
	if _, err := tx.ExecContext(ctx, queryCount, totalViewsKey); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *SQLiteRepository) TotalViews(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, `SELECT value FROM stats WHERE key = ?`, totalViewsKey).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return total, err
}

func (r *SQLiteRepository) Stats(ctx context.Context) (domain.AggregateStats, error) {
	query := `
		SELECT
			COALESCE((SELECT value FROM stats WHERE key = ?), 0),
			COUNT(*),
			MAX(last_visit)
		FROM visitors`

	var stats domain.AggregateStats
	var lastVisit sql.NullInt64
	err := r.db.QueryRowContext(ctx, query, totalViewsKey).Scan(&stats.TotalViews, &stats.UniqueVisitors, &lastVisit)
	if err != nil {
		return domain.AggregateStats{}, err
	}
	if lastVisit.Valid {
		t := time.UnixMilli(lastVisit.Int64)
		stats.LastVisit = &t
	}
	return stats, nil
}

func (r *SQLiteRepository) Dump(ctx context.Context) (*domain.Snapshot, error) {
	// Read both tables in one transaction so the total matches the rows.
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	snap := domain.NewSnapshot(time.Now())
	err = tx.QueryRowContext(ctx, `SELECT COALESCE((SELECT value FROM stats WHERE key = ?), 0)`, totalViewsKey).Scan(&snap.TotalViews)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `SELECT ip, first_visit, last_visit, visit_count FROM visitors`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ip string
		var v domain.SnapshotVisitor
		if err := rows.Scan(&ip, &v.FirstVisit, &v.LastVisit, &v.VisitCount); err != nil {
			return nil, err
		}
		snap.Visitors[ip] = v
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return snap, nil
}

func (r *SQLiteRepository) Restore(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM visitors`); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO visitors (ip, first_visit, last_visit, visit_count) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for ip, v := range snap.Visitors {
		if _, err := stmt.ExecContext(ctx, ip, v.FirstVisit, v.LastVisit, v.VisitCount); err != nil {
			return err
		}
	}

	queryTotal := `INSERT INTO stats (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`
	if _, err := tx.ExecContext(ctx, queryTotal, totalViewsKey, snap.TotalViews); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Ensure interface compliance
var _ ports.VisitorStore = (*SQLiteRepository)(nil)
