package storage

import "fmt"

// Backend names accepted by Open.
const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
)

// Open returns the backend named kind rooted at dataDir.
func Open(kind, dataDir, sqliteDriver string) (Backend, error) {
	switch kind {
	case BackendFile, "":
		return NewFileBackend(dataDir)
	case BackendSQLite:
		return NewSQLiteBackend(dataDir, sqliteDriver)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", kind)
	}
}
