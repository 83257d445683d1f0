package recorder

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// History is a sqlite-backed log of completed recording sessions. Opening
// it enables WAL mode and foreign keys and tunes the connection pool, then
// bootstraps a single fixed schema inline: one table never needs a
// migration path of its own.
type History struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS recordings (
	id            TEXT PRIMARY KEY,
	file_path     TEXT NOT NULL,
	format        TEXT NOT NULL,
	sample_rate   INTEGER NOT NULL,
	channels      INTEGER NOT NULL,
	started_at    DATETIME NOT NULL,
	stopped_at    DATETIME,
	bytes         INTEGER NOT NULL DEFAULT 0,
	stop_reason   TEXT NOT NULL DEFAULT ''
)`

func OpenHistory(dbPath string) (*History, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}
	sqlDB, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if _, err := sqlDB.Exec("PRAGMA journal_mode = WAL"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := sqlDB.Exec("PRAGMA foreign_keys = ON"); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("bootstrap schema: %w", err)
	}
	return &History{db: sqlDB}, nil
}

func (h *History) Close() error { return h.db.Close() }

func (h *History) RecordStarted(s *Session) error {
	_, err := h.db.Exec(
		`INSERT INTO recordings (id, file_path, format, sample_rate, channels, started_at, bytes)
		 VALUES (?, ?, ?, ?, ?, ?, 0)`,
		s.ID, s.FilePath, s.Config.Format, s.Config.SampleRate, s.Config.Channels, s.StartedAt,
	)
	return err
}

func (h *History) RecordStopped(id string, stoppedAt time.Time, bytes int64, reason string) error {
	_, err := h.db.Exec(
		`UPDATE recordings SET stopped_at = ?, bytes = ?, stop_reason = ? WHERE id = ?`,
		stoppedAt, bytes, reason, id,
	)
	return err
}

// Recent returns the most recently started sessions, newest first.
func (h *History) Recent(limit int) ([]Summary, error) {
	rows, err := h.db.Query(
		`SELECT id, file_path, bytes, stop_reason,
		        COALESCE((julianday(stopped_at) - julianday(started_at)) * 86400, 0)
		 FROM recordings ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		if err := rows.Scan(&s.ID, &s.FilePath, &s.Bytes, &s.StoppedReason, &s.DurationSec); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
