package persist

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// Preference keys the client reads and writes.
const (
	KeyLastUsername    = "last_username"
	KeyLastDisplayName = "last_display_name"
	KeyDeviceID        = "device_id"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS preferences (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`

// Store is the on-disk preference cache. It remembers the last account used
// on this device so the login prompt can prefill, and mints a stable device
// id on first open.
type Store struct {
	db *sql.DB
}

// Open creates or opens the preference database at path. ":memory:" works for
// tests.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open preference store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect preference store: %w", err)
	}

	// SQLite allows one writer; a preference cache never needs more.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply preference schema: %w", err)
	}

	s := &Store{db: db}
	if err := s.ensureDeviceID(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Get returns the stored value for key, or "" when the key is absent.
func (s *Store) Get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read preference %q: %w", key, err)
	}
	return value, nil
}

// Set stores value under key, replacing any previous value.
func (s *Store) Set(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("write preference %q: %w", key, err)
	}
	return nil
}

// DeviceID returns the id minted for this installation on first open.
func (s *Store) DeviceID() (string, error) {
	return s.Get(KeyDeviceID)
}

func (s *Store) ensureDeviceID() error {
	existing, err := s.Get(KeyDeviceID)
	if err != nil {
		return err
	}
	if existing != "" {
		return nil
	}
	return s.Set(KeyDeviceID, uuid.NewString())
}
