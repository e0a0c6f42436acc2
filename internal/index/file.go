package index

import (
	"bytes"
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// NotFoundError reports that a per-crate index file does not exist.
type NotFoundError struct {
	Path string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("index file not found: %s", e.Path)
}

// LockMode selects the advisory lock flavor acquired over a whole file.
type LockMode int

const (
	LockShared LockMode = iota
	LockExclusive
)

// LockFailedError wraps a flock(2) failure with the path and requested mode.
type LockFailedError struct {
	Path string
	Mode LockMode
	Err  error
}

func (e *LockFailedError) Error() string {
	mode := "shared"
	if e.Mode == LockExclusive {
		mode = "exclusive"
	}
	return fmt.Sprintf("failed to acquire %s lock on %s: %v", mode, e.Path, e.Err)
}

func (e *LockFailedError) Unwrap() error { return e.Err }

func flock(f *os.File, path string, mode LockMode) error {
	how := unix.LOCK_SH
	if mode == LockExclusive {
		how = unix.LOCK_EX
	}
	if err := unix.Flock(int(f.Fd()), how); err != nil {
		return &LockFailedError{Path: path, Mode: mode, Err: err}
	}
	return nil
}

func funlock(f *os.File) {
	_ = unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

// parseLines splits raw index file content on "\n", dropping empty lines,
// and parses each remaining line as an Entry.
func parseLines(data []byte) ([]*Entry, error) {
	lines := bytes.Split(data, []byte("\n"))
	entries := make([]*Entry, 0, len(lines))
	for i, line := range lines {
		if len(line) == 0 {
			continue
		}
		entry, err := ParseEntry(line)
		if err != nil {
			return nil, fmt.Errorf("failed to parse index entry at line %d: %w", i, err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// ReadOrEmpty opens path shared-locked and returns its parsed entries, or an
// empty slice if the file does not exist.
func ReadOrEmpty(path string) ([]*Entry, error) {
	entries, err := Read(path)
	if _, ok := err.(*NotFoundError); ok {
		return nil, nil
	}
	return entries, err
}

// Read opens path shared-locked and returns its parsed entries. Returns
// *NotFoundError if the file does not exist.
func Read(path string) ([]*Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &NotFoundError{Path: path}
		}
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := flock(f, path, LockShared); err != nil {
		return nil, err
	}
	defer funlock(f)

	data, err := readAll(f, path)
	if err != nil {
		return nil, err
	}
	return parseLines(data)
}

func readAll(f *os.File, path string) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(f); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return buf.Bytes(), nil
}

// DuplicateVersionError reports that Append found an existing entry with
// the same version already present in the index file.
type DuplicateVersionError struct {
	Name, Version string
}

func (e *DuplicateVersionError) Error() string {
	return fmt.Sprintf("duplicate crate: %s-%s already exists in the index", e.Name, e.Version)
}

// Append opens path for create+append+read, takes an exclusive lock, checks
// for a duplicate version under the lock, and appends one JSON line. The
// check and the write happen under the same lock acquisition, so a
// concurrent appender for a different version of the same crate serializes
// behind this one rather than racing it.
func Append(path string, entry *Entry) error {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s for writing: %w", path, err)
	}
	defer f.Close()

	if err := flock(f, path, LockExclusive); err != nil {
		return err
	}
	defer funlock(f)

	data, err := readAll(f, path)
	if err != nil {
		return err
	}
	existing, err := parseLines(data)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Version == entry.Version {
			return &DuplicateVersionError{Name: entry.Name, Version: entry.Version}
		}
	}

	line, err := entry.Marshal()
	if err != nil {
		return err
	}
	line = append(line, '\n')
	if _, err := f.Write(line); err != nil {
		return fmt.Errorf("failed to write to index file %s: %w", path, err)
	}
	return nil
}

// Mutate opens path for read+write, takes an exclusive lock, applies fn to
// the parsed entries, and if fn reports a change, truncates the file and
// rewrites every entry in its original order. fn returns the number of
// entries it changed; a zero return leaves the file untouched.
func Mutate(path string, fn func(entries []*Entry) (changed int, err error)) (int, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0644)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, &NotFoundError{Path: path}
		}
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := flock(f, path, LockExclusive); err != nil {
		return 0, err
	}
	defer funlock(f)

	data, err := readAll(f, path)
	if err != nil {
		return 0, err
	}
	entries, err := parseLines(data)
	if err != nil {
		return 0, err
	}

	changed, err := fn(entries)
	if err != nil {
		return 0, err
	}
	if changed == 0 {
		return 0, nil
	}

	var out bytes.Buffer
	for _, e := range entries {
		line, err := e.Marshal()
		if err != nil {
			return 0, err
		}
		out.Write(line)
		out.WriteByte('\n')
	}

	if err := f.Truncate(0); err != nil {
		return 0, fmt.Errorf("failed to truncate %s: %w", path, err)
	}
	if _, err := f.Seek(0, 0); err != nil {
		return 0, fmt.Errorf("failed to seek %s: %w", path, err)
	}
	if _, err := f.Write(out.Bytes()); err != nil {
		return 0, fmt.Errorf("failed to rewrite %s: %w", path, err)
	}
	return changed, nil
}
