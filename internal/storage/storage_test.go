package storage

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncodeSet(t *testing.T) {
	got := string(EncodeSet([]int64{30, -100, 7}))
	want := "-100\n7\n30"
	if got != want {
		t.Errorf("EncodeSet() = %q, want %q", got, want)
	}
	if got := string(EncodeSet(nil)); got != "" {
		t.Errorf("EncodeSet(nil) = %q, want empty", got)
	}
}

func TestDecodeSet(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int64
		wantErr bool
	}{
		{name: "empty", input: "", want: nil},
		{name: "single", input: "42", want: []int64{42}},
		{name: "blank lines and spaces", input: "1\n\n  2 \n-3\n", want: []int64{1, 2, -3}},
		{name: "windows newlines", input: "1\r\n2\r\n", want: []int64{1, 2}},
		{name: "garbage rejects whole value", input: "1\nabc\n3", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeSet([]byte(tt.input))
			if tt.wantErr {
				if !errors.Is(err, ErrCorrupt) {
					t.Fatalf("expected ErrCorrupt, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("DecodeSet() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestLoadStatusString(t *testing.T) {
	for status, want := range map[LoadStatus]string{
		StatusLoaded:   "loaded",
		StatusAbsent:   "absent",
		StatusCorrupt:  "corrupt",
		LoadStatus(99): "unknown",
	} {
		if got := status.String(); got != want {
			t.Errorf("LoadStatus(%d).String() = %q, want %q", status, got, want)
		}
	}
}

// backendContract runs the same checks against every Backend implementation.
func backendContract(t *testing.T, b Backend) {
	t.Helper()

	t.Run("absent set", func(t *testing.T) {
		ids, status, err := b.LoadSet("missing_set")
		if err != nil || status != StatusAbsent || ids != nil {
			t.Errorf("LoadSet(missing) = %v, %v, %v", ids, status, err)
		}
	})

	t.Run("absent record", func(t *testing.T) {
		data, status, err := b.LoadRecord("missing_record")
		if err != nil || status != StatusAbsent || data != nil {
			t.Errorf("LoadRecord(missing) = %q, %v, %v", data, status, err)
		}
	})

	t.Run("set round trip", func(t *testing.T) {
		if err := b.SaveSet(KeyAllowedUsers, []int64{5, 1, 3}); err != nil {
			t.Fatalf("SaveSet: %v", err)
		}
		ids, status, err := b.LoadSet(KeyAllowedUsers)
		if err != nil || status != StatusLoaded {
			t.Fatalf("LoadSet: %v, %v", status, err)
		}
		if diff := cmp.Diff([]int64{1, 3, 5}, ids); diff != "" {
			t.Errorf("LoadSet mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("empty set is loaded not absent", func(t *testing.T) {
		if err := b.SaveSet(KeyAllowedGroups, nil); err != nil {
			t.Fatalf("SaveSet: %v", err)
		}
		ids, status, err := b.LoadSet(KeyAllowedGroups)
		if err != nil || status != StatusLoaded || len(ids) != 0 {
			t.Errorf("LoadSet(empty) = %v, %v, %v", ids, status, err)
		}
	})

	t.Run("record overwrite", func(t *testing.T) {
		if err := b.SaveRecord(KeyAPIToken, []byte("first")); err != nil {
			t.Fatalf("SaveRecord: %v", err)
		}
		if err := b.SaveRecord(KeyAPIToken, []byte("second")); err != nil {
			t.Fatalf("SaveRecord: %v", err)
		}
		data, status, err := b.LoadRecord(KeyAPIToken)
		if err != nil || status != StatusLoaded || string(data) != "second" {
			t.Errorf("LoadRecord = %q, %v, %v", data, status, err)
		}
	})

	t.Run("corrupt set", func(t *testing.T) {
		if err := b.SaveRecord("broken_set", []byte("1\nnope")); err != nil {
			t.Fatalf("SaveRecord: %v", err)
		}
		_, status, err := b.LoadSet("broken_set")
		if status != StatusCorrupt || !errors.Is(err, ErrCorrupt) {
			t.Errorf("LoadSet(corrupt) = %v, %v", status, err)
		}
	})
}

func TestFileBackend(t *testing.T) {
	b, err := NewFileBackend(filepath.Join(t.TempDir(), "data"))
	if err != nil {
		t.Fatalf("NewFileBackend: %v", err)
	}
	defer b.Close()

	backendContract(t, b)
}

func TestFileBackendLayout(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}

	_ = b.SaveSet(KeyAllowedUsers, []int64{2, 1})
	_ = b.SaveRecord(KeyAPIToken, []byte("tok"))
	_ = b.SaveRecord(KeySelections, []byte("{}"))

	for name, want := range map[string]string{
		"allowed_users.txt":   "1\n2",
		"api_token.txt":       "tok",
		"selected_tasks.json": "{}",
	} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			t.Errorf("expected %s: %v", name, err)
			continue
		}
		if string(data) != want {
			t.Errorf("%s = %q, want %q", name, data, want)
		}
	}

	leftovers, _ := filepath.Glob(filepath.Join(dir, ".*"))
	if len(leftovers) != 0 {
		t.Errorf("temp files left behind: %v", leftovers)
	}
}

func TestFileBackendUnreadable(t *testing.T) {
	dir := t.TempDir()
	b, err := NewFileBackend(dir)
	if err != nil {
		t.Fatal(err)
	}
	// A directory where the token file should be cannot be read as a file.
	if err := os.Mkdir(filepath.Join(dir, "api_token.txt"), 0o700); err != nil {
		t.Fatal(err)
	}

	_, status, err := b.LoadRecord(KeyAPIToken)
	if status != StatusCorrupt || err == nil {
		t.Errorf("LoadRecord(unreadable) = %v, %v", status, err)
	}
}

func TestNewFileBackendRequiresDir(t *testing.T) {
	if _, err := NewFileBackend("  "); err == nil {
		t.Error("expected error for blank directory")
	}
}

func TestSQLiteBackend(t *testing.T) {
	b, err := NewSQLiteBackend(t.TempDir(), DriverModernc)
	if err != nil {
		t.Fatalf("NewSQLiteBackend: %v", err)
	}
	defer b.Close()

	backendContract(t, b)
}

func TestSQLiteBackendPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	b, err := NewSQLiteBackend(dir, DriverModernc)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.SaveSet(KeyAllowedUsers, []int64{9}); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	b2, err := NewSQLiteBackend(dir, DriverModernc)
	if err != nil {
		t.Fatal(err)
	}
	defer b2.Close()

	ids, status, err := b2.LoadSet(KeyAllowedUsers)
	if err != nil || status != StatusLoaded {
		t.Fatalf("LoadSet after reopen: %v, %v", status, err)
	}
	if diff := cmp.Diff([]int64{9}, ids); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestNewSQLiteBackendRejectsUnknownDriver(t *testing.T) {
	if _, err := NewSQLiteBackend(t.TempDir(), "postgres"); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestOpen(t *testing.T) {
	tests := []struct {
		kind    string
		wantErr bool
	}{
		{kind: "", wantErr: false},
		{kind: BackendFile, wantErr: false},
		{kind: BackendSQLite, wantErr: false},
		{kind: "redis", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.kind, func(t *testing.T) {
			b, err := Open(tt.kind, t.TempDir(), DriverModernc)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			_ = b.Close()
		})
	}
}
