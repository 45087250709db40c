package access

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/is57/scorebot/internal/storage"
)

const testAdminID = 1000

// flakyBackend wraps a real backend and can be told to fail writes.
type flakyBackend struct {
	storage.Backend
	failSaves bool
}

var errDiskFull = errors.New("disk full")

func (f *flakyBackend) SaveSet(key string, ids []int64) error {
	if f.failSaves {
		return errDiskFull
	}
	return f.Backend.SaveSet(key, ids)
}

func (f *flakyBackend) SaveRecord(key string, data []byte) error {
	if f.failSaves {
		return errDiskFull
	}
	return f.Backend.SaveRecord(key, data)
}

// recordingObserver captures reported failures.
type recordingObserver struct {
	mu       sync.Mutex
	loadKeys []string
	saveKeys []string
}

func (o *recordingObserver) LoadFailed(key string, _ storage.LoadStatus, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loadKeys = append(o.loadKeys, key)
}

func (o *recordingObserver) SaveFailed(key string, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.saveKeys = append(o.saveKeys, key)
}

func newFileStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	backend, err := storage.NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	s := NewStore(testAdminID, backend, &recordingObserver{})
	s.Load()
	return s, dir
}

func TestStoreLoadFreshInstall(t *testing.T) {
	s, _ := newFileStore(t)

	if len(s.AllowedUsers()) != 0 || len(s.AllowedGroups()) != 0 || s.Token() != "" {
		t.Errorf("expected empty state, got users=%v groups=%v token=%q",
			s.AllowedUsers(), s.AllowedGroups(), s.Token())
	}
}

func TestStoreLoadReport(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "allowed_users.txt"), "1\n2\n")
	mustWrite(t, filepath.Join(dir, "allowed_groups.txt"), "-100\nnot-a-number\n")
	// api_token.txt is absent.

	backend, err := storage.NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	obs := &recordingObserver{}
	s := NewStore(testAdminID, backend, obs)

	report := s.Load()

	want := LoadReport{Users: storage.StatusLoaded, Groups: storage.StatusCorrupt, Token: storage.StatusAbsent}
	if report != want {
		t.Errorf("Load() report = %+v, want %+v", report, want)
	}
	if diff := cmp.Diff([]int64{1, 2}, s.AllowedUsers()); diff != "" {
		t.Errorf("users loaded despite corrupt groups (-want +got):\n%s", diff)
	}
	if len(s.AllowedGroups()) != 0 {
		t.Errorf("corrupt group file should load empty, got %v", s.AllowedGroups())
	}
	if diff := cmp.Diff([]string{storage.KeyAllowedGroups}, obs.loadKeys); diff != "" {
		t.Errorf("observer load keys (-want +got):\n%s", diff)
	}
}

func TestStoreLoadTrimsTokenAndDropsAdmin(t *testing.T) {
	dir := t.TempDir()
	mustWrite(t, filepath.Join(dir, "api_token.txt"), "  secret\n")
	mustWrite(t, filepath.Join(dir, "allowed_users.txt"), "1000\n5")

	backend, _ := storage.NewFileBackend(dir)
	s := NewStore(testAdminID, backend, nil)
	s.Load()

	if s.Token() != "secret" {
		t.Errorf("Token() = %q, want %q", s.Token(), "secret")
	}
	if diff := cmp.Diff([]int64{5}, s.AllowedUsers()); diff != "" {
		t.Errorf("admin must not be listed (-want +got):\n%s", diff)
	}
}

func TestStoreMutationsPersist(t *testing.T) {
	s, dir := newFileStore(t)

	for _, err := range []error{
		s.AddUser(3),
		s.AddUser(1),
		s.AddGroup(-200),
		s.AddGroup(-100),
		s.SetToken("tok"),
	} {
		if err != nil {
			t.Fatalf("mutation failed: %v", err)
		}
	}

	if got := readFile(t, filepath.Join(dir, "allowed_users.txt")); got != "1\n3" {
		t.Errorf("allowed_users.txt = %q", got)
	}
	if got := readFile(t, filepath.Join(dir, "allowed_groups.txt")); got != "-200\n-100" {
		t.Errorf("allowed_groups.txt = %q", got)
	}
	if got := readFile(t, filepath.Join(dir, "api_token.txt")); got != "tok" {
		t.Errorf("api_token.txt = %q", got)
	}

	// A fresh store over the same directory sees the same state.
	backend, _ := storage.NewFileBackend(dir)
	reloaded := NewStore(testAdminID, backend, nil)
	reloaded.Load()
	if diff := cmp.Diff(s.AllowedUsers(), reloaded.AllowedUsers()); diff != "" {
		t.Errorf("users after reload (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(s.AllowedGroups(), reloaded.AllowedGroups()); diff != "" {
		t.Errorf("groups after reload (-want +got):\n%s", diff)
	}
	if reloaded.Token() != "tok" {
		t.Errorf("token after reload = %q", reloaded.Token())
	}

	if err := s.RemoveUser(3); err != nil {
		t.Fatal(err)
	}
	if err := s.RemoveGroup(-200); err != nil {
		t.Fatal(err)
	}
	if s.HasUser(3) || s.HasGroup(-200) {
		t.Error("removed ids still present")
	}
	if !s.HasUser(1) || !s.HasGroup(-100) {
		t.Error("unrelated ids were removed")
	}
}

func TestStoreRemoveAbsentIsNoop(t *testing.T) {
	s, dir := newFileStore(t)
	_ = s.AddUser(7)
	before := readFile(t, filepath.Join(dir, "allowed_users.txt"))

	if err := s.RemoveUser(42); err != nil {
		t.Fatalf("RemoveUser(absent) error = %v", err)
	}
	if err := s.RemoveGroup(-42); err != nil {
		t.Fatalf("RemoveGroup(absent) error = %v", err)
	}

	if after := readFile(t, filepath.Join(dir, "allowed_users.txt")); after != before {
		t.Errorf("file content changed: %q -> %q", before, after)
	}
	if diff := cmp.Diff([]int64{7}, s.AllowedUsers()); diff != "" {
		t.Errorf("set changed (-want +got):\n%s", diff)
	}
}

func TestStoreAddAdminIsNoop(t *testing.T) {
	s, dir := newFileStore(t)

	if err := s.AddUser(testAdminID); err != nil {
		t.Fatal(err)
	}
	if s.HasUser(testAdminID) {
		t.Error("admin must never be stored in the user list")
	}
	if _, err := os.Stat(filepath.Join(dir, "allowed_users.txt")); !os.IsNotExist(err) {
		t.Errorf("adding the admin should not write the user file, stat err = %v", err)
	}
}

func TestStoreSaveFailureKeepsMemory(t *testing.T) {
	backend, err := storage.NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	flaky := &flakyBackend{Backend: backend, failSaves: true}
	obs := &recordingObserver{}
	s := NewStore(testAdminID, flaky, obs)
	s.Load()

	err = s.AddUser(5)
	if !errors.Is(err, ErrPersistence) || !errors.Is(err, errDiskFull) {
		t.Fatalf("AddUser error = %v, want ErrPersistence wrapping disk full", err)
	}
	if !s.HasUser(5) {
		t.Error("in-memory state must survive a failed write")
	}

	if err := s.SetToken("tok"); !errors.Is(err, ErrPersistence) {
		t.Fatalf("SetToken error = %v", err)
	}
	if s.Token() != "tok" {
		t.Error("token must be set in memory despite failed write")
	}

	want := []string{storage.KeyAllowedUsers, storage.KeyAPIToken}
	if diff := cmp.Diff(want, obs.saveKeys); diff != "" {
		t.Errorf("observer save keys (-want +got):\n%s", diff)
	}
}

func TestStoreConcurrentMutations(t *testing.T) {
	s, dir := newFileStore(t)

	var wg sync.WaitGroup
	for i := int64(1); i <= 50; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			_ = s.AddUser(id)
		}(i)
	}
	wg.Wait()

	if n := len(s.AllowedUsers()); n != 50 {
		t.Fatalf("expected 50 users, got %d", n)
	}

	backend, _ := storage.NewFileBackend(dir)
	reloaded := NewStore(testAdminID, backend, nil)
	reloaded.Load()
	if n := len(reloaded.AllowedUsers()); n != 50 {
		t.Errorf("persisted %d users, want 50 (lost update)", n)
	}
}

func TestStoreSQLiteBackend(t *testing.T) {
	backend, err := storage.NewSQLiteBackend(t.TempDir(), storage.DriverModernc)
	if err != nil {
		t.Fatal(err)
	}
	defer backend.Close()

	s := NewStore(testAdminID, backend, nil)
	report := s.Load()
	if report.Users != storage.StatusAbsent || report.Token != storage.StatusAbsent {
		t.Errorf("fresh database report = %+v", report)
	}

	_ = s.AddUser(11)
	_ = s.SetToken("db-token")

	again := NewStore(testAdminID, backend, nil)
	again.Load()
	if !again.HasUser(11) || again.Token() != "db-token" {
		t.Errorf("state not persisted through sqlite: users=%v token=%q", again.AllowedUsers(), again.Token())
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}
