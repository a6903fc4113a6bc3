package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"demand_service/internal/domain/model"
)

// recorded_at is stored as fixed-width UTC text so it sorts lexically on both drivers.
const recordedAtLayout = "2006-01-02T15:04:05.000000Z"

type journalRow struct {
	ID         string  `db:"id"`
	Kind       string  `db:"kind"`
	Location   string  `db:"location"`
	Lat        float64 `db:"lat"`
	Lng        float64 `db:"lng"`
	Mode       string  `db:"mode"`
	Payload    string  `db:"payload"`
	RecordedAt string  `db:"recorded_at"`
}

// EstimateJournal keeps a history of computed estimates in Postgres or SQLite.
type EstimateJournal struct {
	db     *sqlx.DB
	driver string
}

func OpenEstimateJournal(ctx context.Context, driver, dsn string) (*EstimateJournal, error) {
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s journal: %w", driver, err)
	}
	if driver == "sqlite" {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s journal: %w", driver, err)
	}
	return NewEstimateJournal(db, driver), nil
}

func NewEstimateJournal(db *sqlx.DB, driver string) *EstimateJournal {
	return &EstimateJournal{db: db, driver: driver}
}

func (j *EstimateJournal) Close() error {
	return j.db.Close()
}

// InitSchema ensures the journal table exists.
func (j *EstimateJournal) InitSchema(ctx context.Context) error {
	latType := "DOUBLE PRECISION"
	if j.driver == "sqlite" {
		latType = "REAL"
	}
	stmts := []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS estimate_journal (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			location TEXT NOT NULL,
			lat %[1]s NOT NULL,
			lng %[1]s NOT NULL,
			mode TEXT NOT NULL,
			payload TEXT NOT NULL,
			recorded_at TEXT NOT NULL
		)`, latType),
		`CREATE INDEX IF NOT EXISTS idx_estimate_journal_recorded_at ON estimate_journal(recorded_at)`,
	}
	for _, stmt := range stmts {
		if _, err := j.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init journal schema: %w", err)
		}
	}
	return nil
}

func (j *EstimateJournal) Record(ctx context.Context, rec model.EstimateRecord) error {
	query := j.db.Rebind(`
		INSERT INTO estimate_journal (id, kind, location, lat, lng, mode, payload, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err := j.db.ExecContext(ctx, query,
		rec.ID, rec.Kind, rec.Location,
		rec.Lat, rec.Lng,
		string(rec.Mode), rec.Payload,
		rec.RecordedAt.UTC().Format(recordedAtLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record estimate %s: %w", rec.ID, err)
	}
	return nil
}

// Recent returns the newest journal rows first.
func (j *EstimateJournal) Recent(ctx context.Context, limit int) ([]model.EstimateRecord, error) {
	query := j.db.Rebind(`
		SELECT id, kind, location, lat, lng, mode, payload, recorded_at
		FROM estimate_journal
		ORDER BY recorded_at DESC, id
		LIMIT ?`)

	var rows []journalRow
	if err := j.db.SelectContext(ctx, &rows, query, limit); err != nil {
		return nil, fmt.Errorf("failed to query recent estimates: %w", err)
	}

	out := make([]model.EstimateRecord, 0, len(rows))
	for _, r := range rows {
		at, err := time.Parse(recordedAtLayout, r.RecordedAt)
		if err != nil {
			return nil, fmt.Errorf("estimate %s has bad timestamp %q: %w", r.ID, r.RecordedAt, err)
		}
		out = append(out, model.EstimateRecord{
			ID:         r.ID,
			Kind:       r.Kind,
			Location:   r.Location,
			Lat:        r.Lat,
			Lng:        r.Lng,
			Mode:       model.Mode(r.Mode),
			Payload:    r.Payload,
			RecordedAt: at,
		})
	}
	return out, nil
}
