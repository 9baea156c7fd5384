// Package store persists generated incident reports in SQLite. Incident
// ids inside a report restart at 1 per report; the globally unique
// identifier lives here, on the stored report row.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Ashfaaq98/incident-triage/internal/report"
)

// ErrNotFound is returned when a report id does not exist.
var ErrNotFound = errors.New("report not found")

// Store is the SQLite-backed report store.
type Store struct {
	db *sql.DB
}

// Summary is one row of the report listing.
type Summary struct {
	ID        string         `json:"id"`
	FileName  string         `json:"file_name"`
	CreatedAt time.Time      `json:"created_at"`
	Summary   report.Summary `json:"summary"`
}

// Stored is a persisted report with its identifier and source file name.
type Stored struct {
	ID        string         `json:"id"`
	FileName  string         `json:"file_name"`
	CreatedAt time.Time      `json:"created_at"`
	Report    *report.Report `json:"report"`
}

// NewStore opens (and migrates) the report database at dbPath. Parent
// directories are created as needed; ":memory:" works for tests.
func NewStore(dbPath string) (*Store, error) {
	if dir := filepath.Dir(dbPath); dir != "" && dir != "." && dbPath != ":memory:" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", dir, err)
		}
	}

	db, err := sql.Open(sqliteDriver, dbPath+"?_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS reports (
			id TEXT PRIMARY KEY,
			file_name TEXT NOT NULL,
			created_at INTEGER NOT NULL,
			total_incidents INTEGER NOT NULL,
			summary_json TEXT NOT NULL,
			report_json TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reports_created_at ON reports(created_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return fmt.Errorf("run migration: %w", err)
		}
	}
	return nil
}

// SaveReport persists a report under a fresh UUID and returns that id.
func (s *Store) SaveReport(ctx context.Context, fileName string, rep *report.Report) (string, error) {
	summaryJSON, err := json.Marshal(rep.Summary)
	if err != nil {
		return "", fmt.Errorf("marshal summary: %w", err)
	}
	reportJSON, err := json.Marshal(rep)
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO reports (id, file_name, created_at, total_incidents, summary_json, report_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id, fileName, time.Now().Unix(), rep.Summary.TotalIncidents, string(summaryJSON), string(reportJSON))
	if err != nil {
		return "", fmt.Errorf("insert report: %w", err)
	}
	return id, nil
}

// ListReports returns report summaries, newest first. A non-positive limit
// returns everything.
func (s *Store) ListReports(ctx context.Context, limit int) ([]Summary, error) {
	query := `SELECT id, file_name, created_at, summary_json FROM reports ORDER BY created_at DESC, id`
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var (
			item        Summary
			createdAt   int64
			summaryJSON string
		)
		if err := rows.Scan(&item.ID, &item.FileName, &createdAt, &summaryJSON); err != nil {
			return nil, fmt.Errorf("scan report summary: %w", err)
		}
		item.CreatedAt = time.Unix(createdAt, 0).UTC()
		if err := json.Unmarshal([]byte(summaryJSON), &item.Summary); err != nil {
			return nil, fmt.Errorf("decode summary for %s: %w", item.ID, err)
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// GetReport loads a full report by id, or ErrNotFound.
func (s *Store) GetReport(ctx context.Context, id string) (*Stored, error) {
	var (
		stored     Stored
		createdAt  int64
		reportJSON string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, file_name, created_at, report_json FROM reports WHERE id = ?`, id).
		Scan(&stored.ID, &stored.FileName, &createdAt, &reportJSON)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get report %s: %w", id, err)
	}
	stored.CreatedAt = time.Unix(createdAt, 0).UTC()
	stored.Report = &report.Report{}
	if err := json.Unmarshal([]byte(reportJSON), stored.Report); err != nil {
		return nil, fmt.Errorf("decode report %s: %w", id, err)
	}
	return &stored, nil
}
