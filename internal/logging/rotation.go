package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

const (
	defaultMaxSize    = 10 * 1024 * 1024
	defaultMaxAge     = 30 * 24 * time.Hour
	defaultMaxBackups = 5
)

// rotatingWriter is an io.WriteCloser that renames the log file once it
// grows past maxSize and prunes old backups by age and count.
type rotatingWriter struct {
	filename   string
	maxSize    int64
	maxAge     time.Duration
	maxBackups int

	mu   sync.Mutex
	file *os.File
	size int64
}

func newRotatingWriter(filename string, cfg *RotationConfig) (io.WriteCloser, error) {
	w := &rotatingWriter{
		filename:   filename,
		maxSize:    defaultMaxSize,
		maxAge:     defaultMaxAge,
		maxBackups: defaultMaxBackups,
	}

	if cfg != nil {
		if cfg.MaxSize != "" {
			size, err := humanize.ParseBytes(cfg.MaxSize)
			if err != nil {
				return nil, fmt.Errorf("invalid max_size: %w", err)
			}
			w.maxSize = int64(size)
		}
		if cfg.MaxAge != "" {
			age, err := parseAge(cfg.MaxAge)
			if err != nil {
				return nil, fmt.Errorf("invalid max_age: %w", err)
			}
			w.maxAge = age
		}
		if cfg.MaxBackups > 0 {
			w.maxBackups = cfg.MaxBackups
		}
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}
	if err := w.open(); err != nil {
		return nil, err
	}
	w.prune()

	return w, nil
}

// Write implements io.Writer.
func (w *rotatingWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		if err := w.open(); err != nil {
			return 0, err
		}
	}
	if w.size > 0 && w.size+int64(len(p)) > w.maxSize {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}

	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

// Close implements io.Closer.
func (w *rotatingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file == nil {
		return nil
	}
	err := w.file.Close()
	w.file = nil
	return err
}

func (w *rotatingWriter) open() error {
	file, err := os.OpenFile(w.filename, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to stat log file: %w", err)
	}
	w.file = file
	w.size = info.Size()
	return nil
}

func (w *rotatingWriter) rotate() error {
	if w.file != nil {
		_ = w.file.Close()
		w.file = nil
	}

	if err := os.Rename(w.filename, w.backupName(time.Now())); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to rotate log file: %w", err)
	}
	if err := w.open(); err != nil {
		return err
	}
	w.prune()
	return nil
}

// backupName returns "<base>.<timestamp><ext>", e.g. bot.20260101-120000.log.
func (w *rotatingWriter) backupName(now time.Time) string {
	ext := filepath.Ext(w.filename)
	base := strings.TrimSuffix(w.filename, ext)
	return fmt.Sprintf("%s.%s%s", base, now.Format("20060102-150405.000"), ext)
}

func (w *rotatingWriter) prune() {
	ext := filepath.Ext(w.filename)
	pattern := strings.TrimSuffix(w.filename, ext) + ".*" + ext
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return
	}

	type backup struct {
		path    string
		modTime time.Time
	}
	var backups []backup
	cutoff := time.Now().Add(-w.maxAge)
	for _, match := range matches {
		if match == w.filename {
			continue
		}
		info, err := os.Stat(match)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			_ = os.Remove(match)
			continue
		}
		backups = append(backups, backup{path: match, modTime: info.ModTime()})
	}

	sort.Slice(backups, func(i, j int) bool {
		return backups[i].modTime.Before(backups[j].modTime)
	})
	for len(backups) > w.maxBackups {
		_ = os.Remove(backups[0].path)
		backups = backups[1:]
	}
}

// parseAge accepts Go durations plus day ("7d") and week ("2w") suffixes.
func parseAge(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.ToLower(s))

	for suffix, unit := range map[string]time.Duration{"d": 24 * time.Hour, "w": 7 * 24 * time.Hour} {
		if strings.HasSuffix(s, suffix) {
			n, err := strconv.Atoi(strings.TrimSuffix(s, suffix))
			if err != nil {
				return 0, err
			}
			return time.Duration(n) * unit, nil
		}
	}
	return time.ParseDuration(s)
}
