// Package store provides SQLite-backed persistence for widget hosts.
// Uses ncruces/go-sqlite3/driver which provides a database/sql interface.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/asg017/sqlite-vec-go-bindings/ncruces"
	_ "github.com/ncruces/go-sqlite3/driver"
)

// SQLiteStore is the SQLite-backed label store.
// Thread-safe for concurrent host callbacks.
type SQLiteStore struct {
	mu sync.RWMutex
	db *sql.DB
}

// schema defines the label table with temporal versioning.
const schema = `
-- Labels (Temporal versioning pattern)
-- Composite primary key (key, version) keeps every version of a label
CREATE TABLE IF NOT EXISTS labels (
    key TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 0,
    group_id TEXT NOT NULL,
    category TEXT NOT NULL DEFAULT '',
    left_bound REAL NOT NULL,
    right_bound REAL NOT NULL,
    valid_from INTEGER NOT NULL,
    valid_to INTEGER,
    is_current INTEGER DEFAULT 1,
    PRIMARY KEY (key, version)
);

-- Partial indexes for current versions (fast queries)
CREATE INDEX IF NOT EXISTS idx_labels_current ON labels(key) WHERE is_current = 1;
CREATE INDEX IF NOT EXISTS idx_labels_group ON labels(group_id, left_bound) WHERE is_current = 1;
-- Index for history queries
CREATE INDEX IF NOT EXISTS idx_labels_history ON labels(key, valid_from);
`

const labelColumns = `key, version, group_id, category, left_bound, right_bound, valid_from, valid_to, is_current`

// NewSQLiteStore creates a new in-memory SQLite store.
func NewSQLiteStore() (*SQLiteStore, error) {
	return NewSQLiteStoreWithDSN(":memory:")
}

// NewSQLiteStoreWithDSN creates a store with a specific data source name.
// Use ":memory:" for in-memory or a file path for persistent storage.
func NewSQLiteStoreWithDSN(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A second connection to ":memory:" would see an empty database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// =============================================================================
// Label CRUD
// =============================================================================

// UpsertLabel writes l as the current version of its key.
func (s *SQLiteStore) UpsertLabel(l *Label) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var current int
	err = tx.QueryRow(`SELECT version FROM labels WHERE key = ? AND is_current = 1`, l.Key).Scan(&current)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := insertLabel(tx, l); err != nil {
			return false, err
		}
	case err != nil:
		return false, err
	case l.Version < current:
		// Stale echo; the stored version is newer.
		return false, nil
	case l.Version == current:
		_, err = tx.Exec(`
			UPDATE labels SET group_id = ?, category = ?, left_bound = ?, right_bound = ?
			WHERE key = ? AND version = ?
		`, l.Group, l.Category, l.Left, l.Right, l.Key, l.Version)
		if err != nil {
			return false, err
		}
	default:
		// Close old current version
		_, err = tx.Exec(`
			UPDATE labels SET valid_to = ?, is_current = 0
			WHERE key = ? AND is_current = 1
		`, l.ValidFrom, l.Key)
		if err != nil {
			return false, err
		}
		if err := insertLabel(tx, l); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, err
	}
	l.IsCurrent, l.ValidTo = true, nil
	return true, nil
}

func insertLabel(tx *sql.Tx, l *Label) error {
	_, err := tx.Exec(`
		INSERT INTO labels (`+labelColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, 1)
	`, l.Key, l.Version, l.Group, l.Category, l.Left, l.Right, l.ValidFrom)
	return err
}

// GetLabel retrieves the current version of a label by key.
func (s *SQLiteStore) GetLabel(key string) (*Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(`SELECT `+labelColumns+` FROM labels WHERE key = ? AND is_current = 1`, key)
	l, err := scanLabel(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return l, nil
}

// DeleteLabel removes all versions of a label.
func (s *SQLiteStore) DeleteLabel(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`DELETE FROM labels WHERE key = ?`, key)
	return err
}

// ListLabels returns the current labels of a group.
func (s *SQLiteStore) ListLabels(group string) ([]*Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rows *sql.Rows
	var err error
	if group == "" {
		rows, err = s.db.Query(`
			SELECT ` + labelColumns + ` FROM labels
			WHERE is_current = 1
			ORDER BY left_bound, key
		`)
	} else {
		rows, err = s.db.Query(`
			SELECT `+labelColumns+` FROM labels
			WHERE is_current = 1 AND group_id = ?
			ORDER BY left_bound, key
		`, group)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLabels(rows)
}

// ListLabelVersions returns all versions of a label, newest first.
func (s *SQLiteStore) ListLabelVersions(key string) ([]*Label, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT `+labelColumns+` FROM labels WHERE key = ? ORDER BY version DESC
	`, key)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanLabels(rows)
}

// CountLabels returns the number of current labels in a group.
func (s *SQLiteStore) CountLabels(group string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	var err error
	if group == "" {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM labels WHERE is_current = 1`).Scan(&count)
	} else {
		err = s.db.QueryRow(`SELECT COUNT(*) FROM labels WHERE is_current = 1 AND group_id = ?`, group).Scan(&count)
	}
	return count, err
}

// =============================================================================
// Helpers
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanLabel(row rowScanner) (*Label, error) {
	var l Label
	var validTo sql.NullInt64
	var isCurrent int
	if err := row.Scan(
		&l.Key, &l.Version, &l.Group, &l.Category, &l.Left, &l.Right,
		&l.ValidFrom, &validTo, &isCurrent,
	); err != nil {
		return nil, err
	}
	l.IsCurrent = isCurrent != 0
	if validTo.Valid {
		l.ValidTo = &validTo.Int64
	}
	return &l, nil
}

func scanLabels(rows *sql.Rows) ([]*Label, error) {
	labels := []*Label{}
	for rows.Next() {
		l, err := scanLabel(rows)
		if err != nil {
			return nil, err
		}
		labels = append(labels, l)
	}
	return labels, rows.Err()
}

// Compile-time interface check
var _ Storer = (*SQLiteStore)(nil)
