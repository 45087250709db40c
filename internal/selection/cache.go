// Package selection remembers the task each user picked with /choose_task
// so score entry can omit the subject and task name.
package selection

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/is57/scorebot/internal/logging"
	"github.com/is57/scorebot/internal/scoring"
	"github.com/is57/scorebot/internal/storage"
)

// ErrPersistence wraps snapshot write failures. The in-memory change has
// already been applied when it is returned.
var ErrPersistence = errors.New("failed to persist task selection")

// Entry is the task a user has selected.
type Entry struct {
	UserID  int64  `json:"-"`
	TaskID  int64  `json:"task_id"`
	Subject string `json:"subject"`
	Name    string `json:"name"`
}

// Cache maps a user to their selected task. Every change writes the whole
// mapping through to the backend. Entries never expire.
type Cache struct {
	backend  storage.Backend
	observer storage.Observer

	mu      sync.RWMutex
	entries map[int64]Entry
}

// NewCache creates an empty cache. Call Load to read the persisted snapshot.
func NewCache(backend storage.Backend, observer storage.Observer) *Cache {
	if observer == nil {
		observer = storage.LogObserver{}
	}
	return &Cache{
		backend:  backend,
		observer: observer,
		entries:  make(map[int64]Entry),
	}
}

// Load replaces the in-memory mapping with the persisted snapshot. Any read
// or parse failure leaves the cache empty.
func (c *Cache) Load() storage.LoadStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[int64]Entry)

	data, status, err := c.backend.LoadRecord(storage.KeySelections)
	if status == storage.StatusAbsent {
		return status
	}
	if status == storage.StatusLoaded {
		var entries map[int64]Entry
		entries, err = decodeSnapshot(data)
		if err == nil {
			c.entries = entries
			logging.WithComponent("selection").Info("Task selections loaded", slog.Int("users", len(entries)))
			return storage.StatusLoaded
		}
	}

	c.observer.LoadFailed(storage.KeySelections, storage.StatusCorrupt, err)
	return storage.StatusCorrupt
}

// Set records task as userID's selection, replacing any previous one.
func (c *Cache) Set(userID int64, task scoring.Task) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[userID] = Entry{
		UserID:  userID,
		TaskID:  task.ID,
		Subject: task.Subject,
		Name:    task.Name,
	}
	return c.save()
}

// Get returns userID's selection. The boolean is false when the user has
// not selected a task.
func (c *Cache) Get(userID int64) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[userID]
	return e, ok
}

// Clear removes userID's selection. Clearing a missing selection does
// nothing.
func (c *Cache) Clear(userID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.entries[userID]; !ok {
		return nil
	}
	delete(c.entries, userID)
	return c.save()
}

// Len returns the number of users with a selection.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// save must be called with c.mu held.
func (c *Cache) save() error {
	data, err := encodeSnapshot(c.entries)
	if err == nil {
		err = c.backend.SaveRecord(storage.KeySelections, data)
	}
	if err != nil {
		c.observer.SaveFailed(storage.KeySelections, err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// The snapshot is a JSON object keyed by the decimal user ID:
//
//	{"123": {"task_id": 7, "subject": "математика", "name": "Задание 1"}}
func encodeSnapshot(entries map[int64]Entry) ([]byte, error) {
	out := make(map[string]Entry, len(entries))
	for id, e := range entries {
		out[strconv.FormatInt(id, 10)] = e
	}
	return json.MarshalIndent(out, "", "  ")
}

func decodeSnapshot(data []byte) (map[int64]Entry, error) {
	var raw map[string]Entry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", storage.ErrCorrupt, err)
	}
	entries := make(map[int64]Entry, len(raw))
	for key, e := range raw {
		id, err := strconv.ParseInt(key, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: user key %q", storage.ErrCorrupt, key)
		}
		e.UserID = id
		entries[id] = e
	}
	return entries, nil
}
