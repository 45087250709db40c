package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// recordExt maps record keys to file extensions; other keys use ".txt".
var recordExt = map[string]string{
	KeySelections: ".json",
}

// FileBackend keeps each value in its own file under dir:
// allowed_users.txt, allowed_groups.txt, api_token.txt, selected_tasks.json.
type FileBackend struct {
	dir string
}

// NewFileBackend creates the data directory if needed.
func NewFileBackend(dir string) (*FileBackend, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("data directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	return &FileBackend{dir: dir}, nil
}

// LoadSet implements Backend.
func (b *FileBackend) LoadSet(key string) ([]int64, LoadStatus, error) {
	data, status, err := b.read(b.setPath(key))
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
func (b *FileBackend) SaveSet(key string, ids []int64) error {
	return b.write(b.setPath(key), EncodeSet(ids))
}

// LoadRecord implements Backend.
func (b *FileBackend) LoadRecord(key string) ([]byte, LoadStatus, error) {
	return b.read(b.recordPath(key))
}

// SaveRecord implements Backend.
func (b *FileBackend) SaveRecord(key string, data []byte) error {
	return b.write(b.recordPath(key), data)
}

// Close implements Backend.
func (b *FileBackend) Close() error {
	return nil
}

func (b *FileBackend) setPath(key string) string {
	return filepath.Join(b.dir, key+".txt")
}

func (b *FileBackend) recordPath(key string) string {
	ext, ok := recordExt[key]
	if !ok {
		ext = ".txt"
	}
	return filepath.Join(b.dir, key+ext)
}

func (b *FileBackend) read(path string) ([]byte, LoadStatus, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, StatusAbsent, nil
		}
		return nil, StatusCorrupt, err
	}
	return data, StatusLoaded, nil
}

// write replaces path atomically through a temp file in the same directory.
func (b *FileBackend) write(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to sync %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", filepath.Base(path), err)
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
