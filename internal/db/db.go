// Package db stores quota refresh history in a local SQLite database so
// usage can be inspected over time.
package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/j-veylop/antigravity-account-manager/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS quota_history (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	account_id TEXT NOT NULL,
	email TEXT NOT NULL,
	model TEXT NOT NULL,
	percentage INTEGER NOT NULL,
	recorded_at INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_quota_history_lookup
	ON quota_history (account_id, model, recorded_at);
`

// DB wraps the history database connection.
type DB struct {
	conn *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.Exec(schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &DB{conn: conn}, nil
}

// RecordQuota inserts one row per model in the quota snapshot.
func (d *DB) RecordQuota(accountID, email string, quota models.QuotaData) error {
	if len(quota.Models) == 0 {
		return nil
	}

	tx, err := d.conn.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.Prepare(`INSERT INTO quota_history (account_id, email, model, percentage, recorded_at)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().Unix()
	for _, m := range quota.Models {
		if _, err := stmt.Exec(accountID, email, m.Name, m.Percentage, now); err != nil {
			return fmt.Errorf("failed to insert history row: %w", err)
		}
	}
	return tx.Commit()
}

// HistoryPoint is one recorded percentage for a model.
type HistoryPoint struct {
	Model      string
	Percentage int
	RecordedAt int64
}

// History returns the most recent points for one account, newest first,
// capped at limit. An empty model matches every model.
func (d *DB) History(accountID, model string, limit int) ([]HistoryPoint, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT model, percentage, recorded_at FROM quota_history
		WHERE account_id = ?`
	args := []any{accountID}
	if model != "" {
		query += ` AND model = ?`
		args = append(args, model)
	}
	query += ` ORDER BY recorded_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var points []HistoryPoint
	for rows.Next() {
		var p HistoryPoint
		if err := rows.Scan(&p.Model, &p.Percentage, &p.RecordedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		points = append(points, p)
	}
	return points, rows.Err()
}

// AccountStats summarizes the recorded history of one account.
type AccountStats struct {
	Samples int
	FirstAt int64
	LastAt  int64
}

// Stats returns sample count and time span for one account.
func (d *DB) Stats(accountID string) (AccountStats, error) {
	var stats AccountStats
	var first, last sql.NullInt64
	err := d.conn.QueryRow(`SELECT COUNT(*), MIN(recorded_at), MAX(recorded_at)
		FROM quota_history WHERE account_id = ?`, accountID).
		Scan(&stats.Samples, &first, &last)
	if err != nil {
		return AccountStats{}, fmt.Errorf("failed to query stats: %w", err)
	}
	stats.FirstAt = first.Int64
	stats.LastAt = last.Int64
	return stats, nil
}

// Close checkpoints the WAL and closes the connection.
func (d *DB) Close() error {
	_, _ = d.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return d.conn.Close()
}
