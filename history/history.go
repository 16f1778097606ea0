// Package history appends a row per pipeline run to a SQLite database so
// failure rates can be tracked across runs.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/use-agent/fundscrape/models"
)

// Run is one recorded pipeline run.
type Run struct {
	RunID      string
	RunDate    string
	FinishedAt time.Time
	Stats      models.RunStats
	FailedURLs []string
	FundsCSV   string
	SectorsCSV string
}

// Store persists runs.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	slog.Debug("history opened", "path", path)
	return s, nil
}

func (s *Store) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id       TEXT PRIMARY KEY,
			run_date     TEXT NOT NULL,
			finished_at  INTEGER NOT NULL,
			total_urls   INTEGER NOT NULL,
			scraped_ok   INTEGER NOT NULL,
			failed       INTEGER NOT NULL,
			failure_rate REAL NOT NULL,
			sector_rows  INTEGER NOT NULL,
			funds_csv    TEXT,
			sectors_csv  TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at)`,

		`CREATE TABLE IF NOT EXISTS failed_urls (
			run_id TEXT NOT NULL REFERENCES runs(run_id),
			url    TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_failed_run ON failed_urls(run_id)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Record stores a finished run and its failed URLs in one transaction.
func (s *Store) Record(ctx context.Context, r Run) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, run_date, finished_at, total_urls, scraped_ok, failed,
			failure_rate, sector_rows, funds_csv, sectors_csv)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.RunDate, r.FinishedAt.Unix(),
		r.Stats.TotalURLs, r.Stats.ScrapedOK, r.Stats.Failed,
		r.Stats.FailureRate, r.Stats.SectorRows,
		r.FundsCSV, r.SectorsCSV,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	for _, u := range r.FailedURLs {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO failed_urls (run_id, url) VALUES (?, ?)`, r.RunID, u); err != nil {
			return fmt.Errorf("insert failed url: %w", err)
		}
	}
	return tx.Commit()
}

// Recent returns up to n runs, newest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT r.run_id, r.run_date, r.finished_at, r.total_urls, r.scraped_ok, r.failed,
			r.failure_rate, r.sector_rows, COALESCE(r.funds_csv, ''), COALESCE(r.sectors_csv, ''),
			COALESCE((SELECT group_concat(url, char(10)) FROM failed_urls f WHERE f.run_id = r.run_id), '')
		FROM runs r ORDER BY r.finished_at DESC, r.rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		var (
			r        Run
			finished int64
			failed   string
		)
		if err := rows.Scan(&r.RunID, &r.RunDate, &finished,
			&r.Stats.TotalURLs, &r.Stats.ScrapedOK, &r.Stats.Failed,
			&r.Stats.FailureRate, &r.Stats.SectorRows,
			&r.FundsCSV, &r.SectorsCSV, &failed); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.FinishedAt = time.Unix(finished, 0)
		if failed != "" {
			r.FailedURLs = strings.Split(failed, "\n")
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
