// Package access decides who may talk to the bot.
//
// Store holds the persisted allow-lists and the scoring API token; Gate is
// the pure authorization predicate evaluated before every command.
package access

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/is57/scorebot/internal/logging"
	"github.com/is57/scorebot/internal/storage"
)

// ErrPersistence wraps write failures. The in-memory change has already
// been applied when it is returned.
var ErrPersistence = errors.New("failed to persist access state")

// LoadReport records how each persisted value was loaded.
type LoadReport struct {
	Users  storage.LoadStatus
	Groups storage.LoadStatus
	Token  storage.LoadStatus
}

// Store is the allow-list of users and groups plus the scoring API token.
// It is safe for concurrent use; each mutation and its write happen under
// one lock so concurrent commands cannot lose updates.
type Store struct {
	adminID  int64
	backend  storage.Backend
	observer storage.Observer

	mu     sync.RWMutex
	users  map[int64]struct{}
	groups map[int64]struct{}
	token  string
}

// NewStore creates an empty store. Call Load to read persisted state.
func NewStore(adminID int64, backend storage.Backend, observer storage.Observer) *Store {
	if observer == nil {
		observer = storage.LogObserver{}
	}
	return &Store{
		adminID:  adminID,
		backend:  backend,
		observer: observer,
		users:    make(map[int64]struct{}),
		groups:   make(map[int64]struct{}),
	}
}

// Load reads the user set, group set and token independently. A value that
// is missing or unreadable stays empty without affecting the others.
func (s *Store) Load() LoadReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	var report LoadReport
	s.users, report.Users = s.loadSet(storage.KeyAllowedUsers)
	s.groups, report.Groups = s.loadSet(storage.KeyAllowedGroups)

	data, status, err := s.backend.LoadRecord(storage.KeyAPIToken)
	if status == storage.StatusCorrupt {
		s.observer.LoadFailed(storage.KeyAPIToken, status, err)
	}
	s.token = strings.TrimSpace(string(data))
	report.Token = status

	// The admin is implicit and never listed.
	delete(s.users, s.adminID)

	logging.WithComponent("access").Info("Access state loaded",
		slog.Int("users", len(s.users)),
		slog.Int("groups", len(s.groups)),
		slog.Bool("token_set", s.token != ""),
		slog.String("users_status", report.Users.String()),
		slog.String("groups_status", report.Groups.String()),
		slog.String("token_status", report.Token.String()))

	return report
}

func (s *Store) loadSet(key string) (map[int64]struct{}, storage.LoadStatus) {
	set := make(map[int64]struct{})
	ids, status, err := s.backend.LoadSet(key)
	if status == storage.StatusCorrupt {
		s.observer.LoadFailed(key, status, err)
		return set, status
	}
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, status
}

// AdminID returns the configured admin user ID.
func (s *Store) AdminID() int64 {
	return s.adminID
}

// IsAdmin reports whether userID is the admin.
func (s *Store) IsAdmin(userID int64) bool {
	return userID == s.adminID
}

// HasUser reports whether userID is on the user allow-list.
func (s *Store) HasUser(userID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.users[userID]
	return ok
}

// HasGroup reports whether chatID is on the group allow-list.
func (s *Store) HasGroup(chatID int64) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.groups[chatID]
	return ok
}

// AllowedUsers returns the allow-listed user IDs in ascending order.
func (s *Store) AllowedUsers() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.users)
}

// AllowedGroups returns the allow-listed group IDs in ascending order.
func (s *Store) AllowedGroups() []int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return sortedKeys(s.groups)
}

// Token returns the scoring API token, or "" when unset.
func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// AddUser allow-lists a user. Adding the admin is a no-op.
func (s *Store) AddUser(userID int64) error {
	if s.IsAdmin(userID) {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[userID] = struct{}{}
	return s.saveSet(storage.KeyAllowedUsers, s.users)
}

// RemoveUser removes a user from the allow-list. Removing an unknown user
// leaves the set unchanged but still rewrites it.
func (s *Store) RemoveUser(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.users, userID)
	return s.saveSet(storage.KeyAllowedUsers, s.users)
}

// AddGroup allow-lists a group chat.
func (s *Store) AddGroup(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.groups[chatID] = struct{}{}
	return s.saveSet(storage.KeyAllowedGroups, s.groups)
}

// RemoveGroup removes a group chat from the allow-list.
func (s *Store) RemoveGroup(chatID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.groups, chatID)
	return s.saveSet(storage.KeyAllowedGroups, s.groups)
}

// SetToken replaces the scoring API token. An empty token unsets it.
func (s *Store) SetToken(token string) error {
	token = strings.TrimSpace(token)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = token
	if err := s.backend.SaveRecord(storage.KeyAPIToken, []byte(token)); err != nil {
		s.observer.SaveFailed(storage.KeyAPIToken, err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// saveSet must be called with s.mu held.
func (s *Store) saveSet(key string, set map[int64]struct{}) error {
	if err := s.backend.SaveSet(key, sortedKeys(set)); err != nil {
		s.observer.SaveFailed(key, err)
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

func sortedKeys(set map[int64]struct{}) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
