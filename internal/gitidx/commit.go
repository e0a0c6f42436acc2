// Package gitidx commits writes to a Cargo index repository using go-git,
// enforcing the preconditions that keep concurrent, unfinished external
// work from being silently folded into a registry mutation.
package gitidx

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// RepoBusyError reports that the repository is mid-merge, mid-rebase, or
// mid-cherry-pick and cannot accept a new commit right now.
type RepoBusyError struct {
	Dir string
}

func (e *RepoBusyError) Error() string {
	return fmt.Sprintf("repository %s has unfinished merge/rebase state", e.Dir)
}

// IndexDirtyError reports that the git index already has staged changes
// that differ from HEAD's tree before this commit even began staging.
type IndexDirtyError struct {
	Dir string
}

func (e *IndexDirtyError) Error() string {
	return fmt.Sprintf("repository %s has staged changes outside this commit", e.Dir)
}

// CommitFailedError wraps any go-git failure encountered while committing.
type CommitFailedError struct {
	Dir string
	Err error
}

func (e *CommitFailedError) Error() string {
	return fmt.Sprintf("failed to commit changes in %s: %v", e.Dir, e.Err)
}

func (e *CommitFailedError) Unwrap() error { return e.Err }

// Init creates a new git repository at dir.
func Init(dir string) (*git.Repository, error) {
	return git.PlainInit(dir, false)
}

// Open opens an existing git repository at dir.
func Open(dir string) (*git.Repository, error) {
	return git.PlainOpen(dir)
}

// busy reports whether dir's .git carries evidence of an unfinished
// merge, rebase, or cherry-pick. A process that only ever commits through
// Commit never produces these files itself; their presence means something
// else touched the repository concurrently.
func busy(gitDir string) bool {
	markers := []string{"MERGE_HEAD", "CHERRY_PICK_HEAD", "rebase-apply", "rebase-merge"}
	for _, m := range markers {
		if _, err := os.Stat(filepath.Join(gitDir, m)); err == nil {
			return true
		}
	}
	return false
}

// Commit stages each of paths (relative to the worktree root) by content,
// and commits them with the given message and signature.
//
// Preconditions, matching the index's mutation discipline:
//   - the repository must not be mid-merge/rebase/cherry-pick (RepoBusyError)
//   - the index must not already carry staged changes unrelated to this
//     commit, detected before any of paths are staged (IndexDirtyError)
//
// HEAD's prior commit, if any, becomes the new commit's sole parent; an
// unborn HEAD (no commits yet) produces a parentless initial commit.
func Commit(repo *git.Repository, message string, paths []string, sig object.Signature) (*object.Commit, error) {
	wtFS, err := repo.Worktree()
	if err != nil {
		return nil, &CommitFailedError{Err: err}
	}

	gitDir := filepath.Join(wtFS.Filesystem.Root(), ".git")
	if busy(gitDir) {
		return nil, &RepoBusyError{Dir: wtFS.Filesystem.Root()}
	}

	statusBefore, err := wtFS.Status()
	if err != nil {
		return nil, &CommitFailedError{Dir: wtFS.Filesystem.Root(), Err: err}
	}
	for _, fileStatus := range statusBefore {
		// Untracked means the index agrees with HEAD (the file simply
		// isn't tracked yet); anything else means the index already
		// diverges from HEAD before this commit staged a single path.
		if fileStatus.Staging != git.Unmodified && fileStatus.Staging != git.Untracked {
			return nil, &IndexDirtyError{Dir: wtFS.Filesystem.Root()}
		}
	}

	for _, p := range paths {
		if _, err := wtFS.Add(p); err != nil {
			return nil, &CommitFailedError{Dir: wtFS.Filesystem.Root(), Err: err}
		}
	}

	hash, err := wtFS.Commit(message, &git.CommitOptions{
		Author:    &sig,
		Committer: &sig,
	})
	if err != nil {
		return nil, &CommitFailedError{Dir: wtFS.Filesystem.Root(), Err: err}
	}

	commitObj, err := repo.CommitObject(hash)
	if err != nil {
		return nil, &CommitFailedError{Dir: wtFS.Filesystem.Root(), Err: err}
	}
	return commitObj, nil
}

// NewSignature builds the committer/author signature used for every
// registry-driven commit.
func NewSignature(name, email string) object.Signature {
	return object.Signature{Name: name, Email: email, When: time.Now()}
}

// HeadCommitCount returns the number of commits reachable from HEAD,
// used by tests to assert commit counts without caring about hashes.
func HeadCommitCount(repo *git.Repository) (int, error) {
	head, err := repo.Head()
	if err != nil {
		return 0, nil
	}
	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return 0, err
	}
	count := 0
	err = iter.ForEach(func(*object.Commit) error {
		count++
		return nil
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}
