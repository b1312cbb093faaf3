package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// ResultRow is one extraction stored by the developer CLI.
type ResultRow struct {
	CorrelationID string
	ImageRef      string
	Domain        string
	Confidence    float64
	Degraded      bool
	Fallback      bool
	ErrorKind     string
	Strategy      string
	Attempts      int
	MetadataJSON  string
	DurationMs    int64
	CreatedAt     time.Time
}

// SQLiteStore keeps CLI results in a local SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at path. ":memory:" works for tests.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}
	// Batch mode writes from several goroutines; serialise on one connection
	// so an in-memory database is shared too.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("error enabling WAL mode: %w", err)
	}
	schema, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("error reading schema file: %w", err)
	}
	if _, err := db.Exec(string(schema)); err != nil {
		db.Close()
		return nil, fmt.Errorf("error executing schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// SaveResult upserts by correlation id.
func (s *SQLiteStore) SaveResult(ctx context.Context, r *ResultRow) error {
	const query = `
		INSERT INTO extraction_results (
			correlation_id, image_ref, domain, confidence, degraded, fallback,
			error_kind, strategy, attempts, metadata_json, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(correlation_id) DO UPDATE SET
			confidence = excluded.confidence,
			degraded = excluded.degraded,
			fallback = excluded.fallback,
			error_kind = excluded.error_kind,
			strategy = excluded.strategy,
			attempts = excluded.attempts,
			metadata_json = excluded.metadata_json,
			duration_ms = excluded.duration_ms
	`
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, query,
		r.CorrelationID, r.ImageRef, r.Domain, r.Confidence, r.Degraded, r.Fallback,
		nullString(r.ErrorKind), nullString(r.Strategy), r.Attempts, r.MetadataJSON,
		r.DurationMs, r.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save result %s: %w", r.CorrelationID, err)
	}
	return nil
}

// RecentResults returns up to limit rows, newest first.
func (s *SQLiteStore) RecentResults(ctx context.Context, limit int) ([]*ResultRow, error) {
	const query = `
		SELECT correlation_id, image_ref, domain, confidence, degraded, fallback,
			coalesce(error_kind, ''), coalesce(strategy, ''), attempts, metadata_json,
			duration_ms, created_at
		FROM extraction_results
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*ResultRow
	for rows.Next() {
		r := &ResultRow{}
		if err := rows.Scan(
			&r.CorrelationID, &r.ImageRef, &r.Domain, &r.Confidence, &r.Degraded, &r.Fallback,
			&r.ErrorKind, &r.Strategy, &r.Attempts, &r.MetadataJSON, &r.DurationMs, &r.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
