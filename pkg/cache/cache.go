// Copyright (c) Bartłomiej Płotka @bwplotka
// Licensed under the Apache License 2.0.

// Package cache remembers which file contents were already stripped, so unchanged files can be skipped on next runs.
package cache

import (
	"database/sql"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const (
	driverName = "sqlite3"
)

// SQLite3Storage implements a SQLite3 cache of processed file digests.
type SQLite3Storage struct {
	// Sqlite filename.
	Filename string
	// Duration for which a processed entry is valid.
	Validity time.Duration
	// Clear cache at start if true.
	ClearCache bool

	dbHandle *sql.DB
	// Mutex used for clearing cache database.
	mu sync.RWMutex
}

// Init initializes cache database.
func (s *SQLite3Storage) Init() error {
	if s.dbHandle == nil {
		database, err := sql.Open(driverName, s.Filename)
		if err != nil {
			return errors.Wrap(err, "unable to open cache database file")
		}

		if err := database.Ping(); err != nil {
			return errors.Wrap(err, "verify connection to cache database")
		}
		s.dbHandle = database
	}
	if s.ClearCache {
		if err := s.Clear(); err != nil {
			return err
		}
	}

	if _, err := s.dbHandle.Exec("CREATE TABLE IF NOT EXISTS processed (id INTEGER PRIMARY KEY, path TEXT NOT NULL, digest TEXT NOT NULL, timestamp DATETIME)"); err != nil {
		return errors.Wrap(err, "create processed table")
	}
	if _, err := s.dbHandle.Exec("CREATE UNIQUE INDEX IF NOT EXISTS idx_processed ON processed (path)"); err != nil {
		return errors.Wrap(err, "create processed index")
	}
	return nil
}

// Clear removes all entries from cache.
func (s *SQLite3Storage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.dbHandle.Exec("DROP TABLE IF EXISTS processed")
	return err
}

// Close cache database.
func (s *SQLite3Storage) Close() error {
	if s.dbHandle == nil {
		return nil
	}
	return s.dbHandle.Close()
}

// Processed records that file under path with given digest does not need stripping.
// Previous entry for the same path is replaced.
func (s *SQLite3Storage) Processed(path, digest string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	// Insert with current UTC Unix timestamp.
	_, err := s.dbHandle.Exec(
		"INSERT OR REPLACE INTO processed (path, digest, timestamp) VALUES (?, ?, strftime('%s', 'now'))",
		path, digest,
	)
	return errors.Wrapf(err, "insert %v", path)
}

// IsProcessed checks if file under path with given digest was recorded as processed within validity.
func (s *SQLite3Storage) IsProcessed(path, digest string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		recorded  string
		timestamp time.Time
	)
	if err := s.dbHandle.QueryRow("SELECT digest, timestamp FROM processed WHERE path = ?", path).Scan(&recorded, &timestamp); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, errors.Wrapf(err, "query %v", path)
	}
	if recorded != digest {
		return false, nil
	}

	// Zero validity means entries never expire.
	if s.Validity <= 0 {
		return true, nil
	}
	return !timestamp.IsZero() && time.Now().UTC().Sub(timestamp) <= s.Validity, nil
}
