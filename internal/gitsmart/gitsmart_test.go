package gitsmart

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

func writeFile(path, contents string) error {
	return os.WriteFile(path, []byte(contents), 0644)
}

func testSignature() object.Signature {
	return object.Signature{Name: "test", Email: "test@example.com", When: time.Unix(0, 0)}
}

func requireGitUploadPack(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git-upload-pack"); err != nil {
		t.Skip("git-upload-pack not available on PATH")
	}
}

func newRepoWithCommit(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("init repo: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("worktree: %v", err)
	}
	readme := filepath.Join(dir, "README")
	if err := writeFile(readme, "hello\n"); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := wt.Add("README"); err != nil {
		t.Fatalf("add: %v", err)
	}
	sig := testSignature()
	if _, err := wt.Commit("initial commit", &git.CommitOptions{Author: &sig, Committer: &sig}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	return dir
}

func TestAdvertiseRefsIncludesServicePrefix(t *testing.T) {
	requireGitUploadPack(t)
	dir := newRepoWithCommit(t)

	out, err := AdvertiseRefs(dir)
	if err != nil {
		t.Fatalf("advertise refs: %v", err)
	}
	if !bytes.HasPrefix(out, []byte(infoRefsPrefix)) {
		t.Fatalf("expected output to start with service prefix, got %q", out)
	}
	if !bytes.Contains(out, []byte("refs/heads/")) {
		t.Fatalf("expected advertisement to list refs/heads, got %q", out)
	}
}

func TestAdvertiseRefsFailsForMissingRepo(t *testing.T) {
	requireGitUploadPack(t)
	if _, err := AdvertiseRefs("/nonexistent/repo"); err == nil {
		t.Fatal("expected error for missing repository")
	}
}

func TestUploadPackFailsForMissingRepo(t *testing.T) {
	requireGitUploadPack(t)
	var out bytes.Buffer
	if err := UploadPack("/nonexistent/repo", bytes.NewReader(nil), &out); err == nil {
		t.Fatal("expected error for missing repository")
	}
}
