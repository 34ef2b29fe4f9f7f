// Package storage persists the decision journal: an append-only audit
// trail of every approve/reject outcome and adjustment decision. It is an
// audit log, not a recovery log — suggestion state is server-owned and
// refetched, never reconstructed from here.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"
)

// Decision is one audited coordinator outcome.
type Decision struct {
	ID           int64
	SuggestionID string
	Side         string
	Action       string // "approve", "reject", "adjustment"
	Outcome      string // "dispatched", "ok", "need_adjustment", "error", "accepted", "discarded", "settled"
	Quantity     int
	Price        int64
	Forced       bool
	Detail       string
	CreatedAt    time.Time
}

// Journal handles persistent storage of decisions in SQLite.
type Journal struct {
	db *sql.DB
}

// NewJournal opens the journal database with WAL mode enabled.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("failed to set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS decisions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			suggestion_id TEXT NOT NULL,
			side TEXT NOT NULL,
			action TEXT NOT NULL,
			outcome TEXT NOT NULL,
			quantity INTEGER NOT NULL DEFAULT 0,
			price INTEGER NOT NULL DEFAULT 0,
			forced INTEGER NOT NULL DEFAULT 0,
			detail TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create decisions table: %w", err)
	}

	return &Journal{db: db}, nil
}

// Record appends one decision row.
func (j *Journal) Record(ctx context.Context, d Decision) error {
	forced := 0
	if d.Forced {
		forced = 1
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO decisions (suggestion_id, side, action, outcome, quantity, price, forced, detail, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.SuggestionID, d.Side, d.Action, d.Outcome, d.Quantity, d.Price, forced, d.Detail,
		d.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert decision: %w", err)
	}
	return nil
}

// Recent returns the newest decisions, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, suggestion_id, side, action, outcome, quantity, price, forced, detail, created_at
		 FROM decisions ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var forced int
		var createdMilli int64
		if err := rows.Scan(&d.ID, &d.SuggestionID, &d.Side, &d.Action, &d.Outcome,
			&d.Quantity, &d.Price, &forced, &d.Detail, &createdMilli); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.Forced = forced != 0
		d.CreatedAt = time.UnixMilli(createdMilli)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// BySuggestion returns every decision recorded for one suggestion id in
// chronological order.
func (j *Journal) BySuggestion(ctx context.Context, suggestionID string) ([]Decision, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, suggestion_id, side, action, outcome, quantity, price, forced, detail, created_at
		 FROM decisions WHERE suggestion_id = ? ORDER BY id ASC`, suggestionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query decisions: %w", err)
	}
	defer rows.Close()

	var out []Decision
	for rows.Next() {
		var d Decision
		var forced int
		var createdMilli int64
		if err := rows.Scan(&d.ID, &d.SuggestionID, &d.Side, &d.Action, &d.Outcome,
			&d.Quantity, &d.Price, &forced, &d.Detail, &createdMilli); err != nil {
			return nil, fmt.Errorf("failed to scan decision: %w", err)
		}
		d.Forced = forced != 0
		d.CreatedAt = time.UnixMilli(createdMilli)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	return j.db.Close()
}
