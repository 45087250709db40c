// Package storage persists the bot's small pieces of durable state: the
// allow-listed user and group sets, the scoring API token, and the per-user
// task selection snapshot.
//
// Each value is stored under its own key and is read and written as a whole.
// Backends report why a load came back empty through LoadStatus so callers
// can tell a fresh install from a corrupt file.
package storage

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/is57/scorebot/internal/logging"
)

// Keys of the persisted values.
const (
	KeyAllowedUsers  = "allowed_users"
	KeyAllowedGroups = "allowed_groups"
	KeyAPIToken      = "api_token"
	KeySelections    = "selected_tasks"
)

// LoadStatus describes the outcome of a load.
type LoadStatus int

const (
	// StatusLoaded means the value was present and decoded.
	StatusLoaded LoadStatus = iota
	// StatusAbsent means nothing was stored under the key yet.
	StatusAbsent
	// StatusCorrupt means the value exists but could not be read or decoded.
	StatusCorrupt
)

func (s LoadStatus) String() string {
	switch s {
	case StatusLoaded:
		return "loaded"
	case StatusAbsent:
		return "absent"
	case StatusCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// ErrCorrupt is wrapped by load errors caused by undecodable content.
var ErrCorrupt = errors.New("corrupt stored value")

// Backend reads and writes whole values by key.
//
// LoadSet and LoadRecord return StatusAbsent with a nil error when the key
// has never been written. Any other failure returns StatusCorrupt and the
// underlying error.
type Backend interface {
	LoadSet(key string) ([]int64, LoadStatus, error)
	SaveSet(key string, ids []int64) error
	LoadRecord(key string) ([]byte, LoadStatus, error)
	SaveRecord(key string, data []byte) error
	Close() error
}

// Observer receives persistence failures that the stores absorb.
type Observer interface {
	LoadFailed(key string, status LoadStatus, err error)
	SaveFailed(key string, err error)
}

// LogObserver reports persistence failures to the structured log.
type LogObserver struct{}

// LoadFailed implements Observer.
func (LogObserver) LoadFailed(key string, status LoadStatus, err error) {
	logging.WithComponent("storage").Warn("Failed to load persisted value, using empty default",
		slog.String("key", key),
		slog.String("status", status.String()),
		slog.Any("error", err))
}

// SaveFailed implements Observer.
func (LogObserver) SaveFailed(key string, err error) {
	logging.WithComponent("storage").Error("Failed to persist value, keeping in-memory state",
		slog.String("key", key),
		slog.Any("error", err))
}

// EncodeSet renders ids as newline-separated integers in ascending order.
func EncodeSet(ids []int64) []byte {
	sorted := append([]int64(nil), ids...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	lines := make([]string, len(sorted))
	for i, id := range sorted {
		lines[i] = strconv.FormatInt(id, 10)
	}
	return []byte(strings.Join(lines, "\n"))
}

// DecodeSet parses newline-separated integers. Blank lines are skipped;
// any other unparsable line rejects the whole value.
func DecodeSet(data []byte) ([]int64, error) {
	var ids []int64
	for n, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		id, err := strconv.ParseInt(line, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: line %d: %q", ErrCorrupt, n+1, line)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
