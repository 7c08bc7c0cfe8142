package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/wadjakorntonsri/portfolio-views/pkg/core/domain"
	"github.com/wadjakorntonsri/portfolio-views/pkg/ports"
)

const totalViewsKey = "total_views"

// PostgresRepository implements ports.VisitorStore on PostgreSQL.
type PostgresRepository struct {
	db *sqlx.DB
}

type visitorRow struct {
	IP         string `db:"ip"`
	FirstVisit int64  `db:"first_visit"`
	LastVisit  int64  `db:"last_visit"`
	VisitCount int64  `db:"visit_count"`
}

// NewPostgresRepository connects to dsn and creates the schema if needed.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	db, err := sqlx.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error opening database connection: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database (ping failed): %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("error creating schema: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

func migrate(db *sqlx.DB) error {
	query := `
	CREATE TABLE IF NOT EXISTS visitors (
		ip TEXT PRIMARY KEY,
		first_visit BIGINT NOT NULL,
		last_visit BIGINT NOT NULL,
		visit_count BIGINT NOT NULL DEFAULT 1
	);
	CREATE TABLE IF NOT EXISTS stats (
		key TEXT PRIMARY KEY,
		value BIGINT NOT NULL
	);
	`
	if _, err := db.Exec(query); err != nil {
		return err
	}
	_, err := db.Exec(`INSERT INTO stats (key, value) VALUES ($1, 0) ON CONFLICT (key) DO NOTHING`, totalViewsKey)
	return err
}

func (r *PostgresRepository) UpsertVisit(ctx context.Context, ip string, now time.Time, cooldown time.Duration) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	// Concurrent inserts of the same ip wait on the row lock and then see
	// the committed last_visit in the WHERE clause.
	query := `
		INSERT INTO visitors (ip, first_visit, last_visit, visit_count)
		VALUES ($1, $2, $2, 1)
		ON CONFLICT (ip) DO UPDATE SET
			last_visit = EXCLUDED.last_visit,
			visit_count = visitors.visit_count + 1
		WHERE EXCLUDED.last_visit - visitors.last_visit >= $3
		RETURNING visit_count`

	var visitCount int64
	err = tx.GetContext(ctx, &visitCount, query, ip, now.UnixMilli(), cooldown.Milliseconds())
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `UPDATE stats SET value = value + 1 WHERE key = $1`, totalViewsKey); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	return true, nil
}

func (r *PostgresRepository) TotalViews(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.GetContext(ctx, &total, `SELECT value FROM stats WHERE key = $1`, totalViewsKey)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return total, err
}

func (r *PostgresRepository) Stats(ctx context.Context) (domain.AggregateStats, error) {
	var row struct {
		TotalViews     int64         `db:"total_views"`
		UniqueVisitors int64         `db:"unique_visitors"`
		LastVisit      sql.NullInt64 `db:"last_visit"`
	}
	query := `
		SELECT
			COALESCE((SELECT value FROM stats WHERE key = $1), 0) AS total_views,
			COUNT(*) AS unique_visitors,
			MAX(last_visit) AS last_visit
		FROM visitors`
	if err := r.db.GetContext(ctx, &row, query, totalViewsKey); err != nil {
		return domain.AggregateStats{}, err
	}

	stats := domain.AggregateStats{
		TotalViews:     row.TotalViews,
		UniqueVisitors: row.UniqueVisitors,
	}
	if row.LastVisit.Valid {
		t := time.UnixMilli(row.LastVisit.Int64)
		stats.LastVisit = &t
	}
	return stats, nil
}

func (r *PostgresRepository) Dump(ctx context.Context) (*domain.Snapshot, error) {
	// REPEATABLE READ gives the total and the rows the same view.
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	snap := domain.NewSnapshot(time.Now())
	if err := tx.GetContext(ctx, &snap.TotalViews, `SELECT COALESCE((SELECT value FROM stats WHERE key = $1), 0)`, totalViewsKey); err != nil {
		return nil, err
	}

	var rows []visitorRow
	if err := tx.SelectContext(ctx, &rows, `SELECT ip, first_visit, last_visit, visit_count FROM visitors`); err != nil {
		return nil, err
	}
	for _, v := range rows {
		snap.Visitors[v.IP] = domain.SnapshotVisitor{
			FirstVisit: v.FirstVisit,
			LastVisit:  v.LastVisit,
			VisitCount: v.VisitCount,
		}
	}
	return snap, tx.Commit()
}

func (r *PostgresRepository) Restore(ctx context.Context, snap *domain.Snapshot) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM visitors`); err != nil {
		return err
	}

	rows := make([]visitorRow, 0, len(snap.Visitors))
	for ip, v := range snap.Visitors {
		rows = append(rows, visitorRow{IP: ip, FirstVisit: v.FirstVisit, LastVisit: v.LastVisit, VisitCount: v.VisitCount})
	}
	if len(rows) > 0 {
		query := `INSERT INTO visitors (ip, first_visit, last_visit, visit_count)
			VALUES (:ip, :first_visit, :last_visit, :visit_count)`
		if _, err := tx.NamedExecContext(ctx, query, rows); err != nil {
			return err
		}
	}

	queryTotal := `INSERT INTO stats (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`
	if _, err := tx.ExecContext(ctx, queryTotal, totalViewsKey, snap.TotalViews); err != nil {
		return err
	}

	return tx.Commit()
}

func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

var _ ports.VisitorStore = (*PostgresRepository)(nil)
