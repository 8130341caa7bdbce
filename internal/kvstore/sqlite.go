package kvstore

import (
	"database/sql"
	"os"
	"path/filepath"
	"time"

	"resumeflow/internal/errors"

	_ "modernc.org/sqlite"
)

// SQLiteStore keeps values in a single kv table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath in WAL mode.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to create database directory", err)
		}
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal=WAL&_sync=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead, "failed to open database", err)
	}
	// One writer keeps SQLITE_BUSY out of the picture for a single CLI process.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.NewStorageError(errors.ErrCodeStorageRead, "failed to ping database", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at INTEGER NOT NULL
	);
	`
	if _, err := s.db.Exec(query); err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to create schema", err)
	}
	return nil
}

func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.NewStorageError(errors.ErrCodeStorageRead, "failed to read key", err).
			WithContext("key", key)
	}
	return value, true, nil
}

func (s *SQLiteStore) Set(key string, value []byte) error {
	query := `
	INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		updated_at = excluded.updated_at`
	if _, err := s.db.Exec(query, key, value, time.Now().Unix()); err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to write key", err).
			WithContext("key", key)
	}
	return nil
}

func (s *SQLiteStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return errors.NewStorageError(errors.ErrCodeStorageWrite, "failed to delete key", err).
			WithContext("key", key)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
