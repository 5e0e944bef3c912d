// Package history persists scoring runs in an append-only SQLite table so
// the dashboard can chart score trends. Rows are never updated or deleted
// by the application.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/schmug/scubascore/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS scores (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	created_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ', 'now')),
	overall_score REAL,
	service_scores TEXT NOT NULL,
	results_json TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_scores_created_at ON scores(created_at);
`

// Entry is one stored scoring run. ServiceScores holds only the per-service
// percentages; the full result lives in Result.
type Entry struct {
	ID            int64              `json:"id"`
	CreatedAt     time.Time          `json:"timestamp"`
	OverallScore  *float64           `json:"overall_score"`
	ServiceScores map[string]float64 `json:"service_scores"`
}

// Store wraps the SQLite score history.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the history database at path and ensures the
// schema exists.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// A single writer keeps SQLite happy under the daemon + server combo.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("history: init schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Save appends one scoring run and returns its row ID.
func (s *Store) Save(ctx context.Context, result model.ScoreResult) (int64, error) {
	serviceScores := make(map[string]float64, len(result.PerService))
	for name, svc := range result.PerService {
		if svc.Score != nil {
			serviceScores[name] = *svc.Score
		}
	}

	scoresJSON, err := json.Marshal(serviceScores)
	if err != nil {
		return 0, fmt.Errorf("history: marshal service scores: %w", err)
	}
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return 0, fmt.Errorf("history: marshal result: %w", err)
	}

	var overall any
	if result.OverallScore != nil {
		overall = *result.OverallScore
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scores (created_at, overall_score, service_scores, results_json) VALUES (?, ?, ?, ?)`,
		result.GeneratedAt.UTC().Format(time.RFC3339), overall, string(scoresJSON), string(resultJSON))
	if err != nil {
		return 0, fmt.Errorf("history: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("history: last insert id: %w", err)
	}
	return id, nil
}

// List returns all stored runs ordered oldest first.
func (s *Store) List(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, overall_score, service_scores FROM scores ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			createdAt string
			overall   sql.NullFloat64
			scores    string
		)
		if err := rows.Scan(&e.ID, &createdAt, &overall, &scores); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("history: bad created_at for row %d: %w", e.ID, err)
		}
		e.CreatedAt = t
		if overall.Valid {
			v := overall.Float64
			e.OverallScore = &v
		}
		if err := json.Unmarshal([]byte(scores), &e.ServiceScores); err != nil {
			return nil, fmt.Errorf("history: decode service scores for row %d: %w", e.ID, err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Get returns the full stored result for one run, or sql.ErrNoRows.
func (s *Store) Get(ctx context.Context, id int64) (model.ScoreResult, error) {
	var resultJSON string
	err := s.db.QueryRowContext(ctx,
		`SELECT results_json FROM scores WHERE id = ?`, id).Scan(&resultJSON)
	if err != nil {
		return model.ScoreResult{}, err
	}

	var result model.ScoreResult
	if err := json.Unmarshal([]byte(resultJSON), &result); err != nil {
		return model.ScoreResult{}, fmt.Errorf("history: decode result %d: %w", id, err)
	}
	return result, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
