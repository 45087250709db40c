package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"
)

// SQLite driver names accepted by NewSQLiteBackend.
const (
	DriverModernc = "sqlite"  // modernc.org/sqlite, pure Go
	DriverMattn   = "sqlite3" // github.com/mattn/go-sqlite3, requires cgo
)

// SQLiteBackend stores every value as one row of a key/value table.
// Sets use the same newline-separated encoding as the flat files so a
// database dump reads like the file backend.
type SQLiteBackend struct {
	db *sql.DB
}

// NewSQLiteBackend opens (or creates) scorebot.db under dataPath.
func NewSQLiteBackend(dataPath, driver string) (*SQLiteBackend, error) {
	if strings.TrimSpace(dataPath) == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if driver == "" {
		driver = DriverModernc
	}
	if driver != DriverModernc && driver != DriverMattn {
		return nil, fmt.Errorf("unsupported sqlite driver %q", driver)
	}
	if err := os.MkdirAll(dataPath, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open(driver, filepath.Join(dataPath, "scorebot.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Stores already serialize their writes; one connection avoids
	// SQLITE_BUSY between pooled connections.
	db.SetMaxOpenConns(1)

	b := &SQLiteBackend{db: db}
	if err := b.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key TEXT PRIMARY KEY,
			value BLOB NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}
	for _, m := range migrations {
		if _, err := b.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}
	return nil
}

// LoadSet implements Backend.
func (b *SQLiteBackend) LoadSet(key string) ([]int64, LoadStatus, error) {
	data, status, err := b.LoadRecord(key)
	if status != StatusLoaded {
		return nil, status, err
	}
	ids, err := DecodeSet(data)
	if err != nil {
		return nil, StatusCorrupt, err
	}
	return ids, StatusLoaded, nil
}

// SaveSet implements Backend.
func (b *SQLiteBackend) SaveSet(key string, ids []int64) error {
	return b.SaveRecord(key, EncodeSet(ids))
}

// LoadRecord implements Backend.
func (b *SQLiteBackend) LoadRecord(key string) ([]byte, LoadStatus, error) {
	var data []byte
	err := b.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, StatusAbsent, nil
		}
		return nil, StatusCorrupt, err
	}
	return data, StatusLoaded, nil
}

// SaveRecord implements Backend.
func (b *SQLiteBackend) SaveRecord(key string, data []byte) error {
	if data == nil {
		data = []byte{}
	}
	_, err := b.db.Exec(`
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, key, data)
	if err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	return b.db.Close()
}
