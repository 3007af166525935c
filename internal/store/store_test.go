package store

import (
	"path/filepath"
	"testing"
)

func TestOpen_Pragmas(t *testing.T) {
	s := createTestStore(t)

	checks := map[string]string{
		"journal_mode": "wal",
		"foreign_keys": "1",
		"busy_timeout": "5000",
		"synchronous":  "1",
	}
	for name, want := range checks {
		if err := s.verifyPragma(name, want); err != nil {
			t.Errorf("pragma: %v", err)
		}
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 2; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() #%d failed: %v", i+1, err)
		}
		if err := s.verifyPragma("user_version", "1"); err != nil {
			t.Errorf("Open() #%d: %v", i+1, err)
		}
		s.Close()
	}
}

func TestOpen_MigrationCreatesItemIndex(t *testing.T) {
	s := createTestStore(t)

	var name string
	err := s.DB().QueryRow(`
		SELECT name FROM sqlite_master
		WHERE type = 'index' AND name = 'idx_observation_filter_items_item'
	`).Scan(&name)
	if err != nil {
		t.Fatalf("index lookup failed: %v", err)
	}
}

func TestOpenWithOptions_MaxOpenConns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := OpenWithOptions(path, Options{MaxOpenConns: 2})
	if err != nil {
		t.Fatalf("OpenWithOptions() failed: %v", err)
	}
	defer s.Close()

	if got := s.DB().Stats().MaxOpenConnections; got != 2 {
		t.Errorf("MaxOpenConnections = %d, want 2", got)
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on empty store = %v, want nil", err)
	}
}
