package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/lotas/tabgruppen/internal/stats"
)

// Increment adds one to the named counter, creating it if needed.
func Increment(db *sql.DB, name string) error {
	_, err := db.Exec(
		`INSERT INTO counters (name, value) VALUES (?, 1)
		 ON CONFLICT(name) DO UPDATE SET value = value + 1, updated_at = CURRENT_TIMESTAMP`,
		name,
	)
	if err != nil {
		return fmt.Errorf("increment %s: %w", name, err)
	}
	return nil
}

// Counters returns every counter by name.
func Counters(db *sql.DB) (map[string]int, error) {
	rows, err := db.Query(`SELECT name, value FROM counters ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("query counters: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var name string
		var value int
		if err := rows.Scan(&name, &value); err != nil {
			return nil, fmt.Errorf("scan counter: %w", err)
		}
		result[name] = value
	}
	return result, rows.Err()
}

// ResetCounters sets every counter back to zero.
func ResetCounters(db *sql.DB) error {
	if _, err := db.Exec(`UPDATE counters SET value = 0, updated_at = CURRENT_TIMESTAMP`); err != nil {
		return fmt.Errorf("reset counters: %w", err)
	}
	return nil
}

// RecordAction appends an entry to the action history.
func RecordAction(db *sql.DB, a stats.Action) error {
	at := a.At
	if at.IsZero() {
		at = time.Now()
	}
	_, err := db.Exec(
		`INSERT INTO actions (kind, detail, created_at) VALUES (?, ?, ?)`,
		a.Kind, a.Detail, at.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert action: %w", err)
	}
	return nil
}

// RecentActions returns the n newest actions, newest first.
func RecentActions(db *sql.DB, n int) ([]stats.Action, error) {
	rows, err := db.Query(
		`SELECT kind, detail, created_at FROM actions
		 ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var result []stats.Action
	for rows.Next() {
		var a stats.Action
		if err := rows.Scan(&a.Kind, &a.Detail, &a.At); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		result = append(result, a)
	}
	return result, rows.Err()
}

// PruneActions deletes history entries older than the cutoff.
func PruneActions(db *sql.DB, before time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM actions WHERE created_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("prune actions: %w", err)
	}
	return res.RowsAffected()
}

// Recorder persists engine statistics in the database.
type Recorder struct {
	db *sql.DB
}

// NewRecorder returns a stats.Recorder backed by db.
func NewRecorder(db *sql.DB) *Recorder {
	return &Recorder{db: db}
}

// Increment implements stats.Recorder.
func (r *Recorder) Increment(name string) error { return Increment(r.db, name) }

// RecordAction implements stats.Recorder.
func (r *Recorder) RecordAction(a stats.Action) error { return RecordAction(r.db, a) }

// Counters returns the persisted counters.
func (r *Recorder) Counters() (map[string]int, error) { return Counters(r.db) }
