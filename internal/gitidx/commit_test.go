package gitidx

import (
	"os"
	"path/filepath"
	"testing"
)

func TestInitCommitAndHistory(t *testing.T) {
	dir := t.TempDir()
	repo, err := Init(dir)
	if err != nil {
		t.Fatalf("init: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"dl":"x","api":"y"}`), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	sig := NewSignature("test", "test@example.com")
	if _, err := Commit(repo, "Initialize empty registry index.", []string{"config.json"}, sig); err != nil {
		t.Fatalf("commit: %v", err)
	}

	count, err := HeadCommitCount(repo)
	if err != nil {
		t.Fatalf("head commit count: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 commit, got %d", count)
	}

	if err := os.WriteFile(filepath.Join(dir, "foo"), []byte("bar"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Commit(repo, "Add foo-0.1.0", []string{"foo"}, sig); err != nil {
		t.Fatalf("commit: %v", err)
	}

	count, err = HeadCommitCount(repo)
	if err != nil {
		t.Fatalf("head commit count: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 commits, got %d", count)
	}
}

func TestOpenExistingRepo(t *testing.T) {
	dir := t.TempDir()
	if _, err := Init(dir); err != nil {
		t.Fatalf("init: %v", err)
	}
	if _, err := Open(dir); err != nil {
		t.Fatalf("open: %v", err)
	}
}
