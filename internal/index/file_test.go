package index

import (
	"path/filepath"
	"testing"
)

func strPtr(s string) *string { return &s }

func sampleEntry(name, version string) *Entry {
	return &Entry{
		Name:           name,
		Version:        version,
		Dependencies:   []Dependency{},
		ChecksumSHA256: "deadbeef",
		Features:       map[string][]string{},
		Yanked:         false,
	}
}

func TestReadMissingFile(t *testing.T) {
	_, err := Read(filepath.Join(t.TempDir(), "missing"))
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected *NotFoundError, got %T: %v", err, err)
	}
}

func TestReadOrEmptyMissingFile(t *testing.T) {
	entries, err := ReadOrEmpty(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty slice, got %v", entries)
	}
}

func TestAppendAndRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foo")

	if err := Append(path, sampleEntry("foo", "0.1.0")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := Append(path, sampleEntry("foo", "0.2.0")); err != nil {
		t.Fatalf("append: %v", err)
	}

	entries, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Version != "0.1.0" || entries[1].Version != "0.2.0" {
		t.Fatalf("unexpected order: %+v", entries)
	}
}

func TestAppendDuplicateVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foo")
	if err := Append(path, sampleEntry("foo", "0.1.0")); err != nil {
		t.Fatalf("append: %v", err)
	}
	err := Append(path, sampleEntry("foo", "0.1.0"))
	if _, ok := err.(*DuplicateVersionError); !ok {
		t.Fatalf("expected *DuplicateVersionError, got %T: %v", err, err)
	}
}

func TestMutateYankToggles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "foo")
	if err := Append(path, sampleEntry("foo", "0.1.0")); err != nil {
		t.Fatalf("append: %v", err)
	}

	changed, err := Mutate(path, func(entries []*Entry) (int, error) {
		n := 0
		for _, e := range entries {
			if e.Version == "0.1.0" && !e.Yanked {
				e.Yanked = true
				n++
			}
		}
		return n, nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if changed != 1 {
		t.Fatalf("expected 1 change, got %d", changed)
	}

	entries, err := Read(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !entries[0].Yanked {
		t.Fatalf("expected entry to be yanked")
	}

	// Yanking again is a no-op: Mutate reports zero changes and leaves the
	// file untouched.
	changed, err = Mutate(path, func(entries []*Entry) (int, error) {
		n := 0
		for _, e := range entries {
			if e.Version == "0.1.0" && !e.Yanked {
				e.Yanked = true
				n++
			}
		}
		return n, nil
	})
	if err != nil {
		t.Fatalf("mutate: %v", err)
	}
	if changed != 0 {
		t.Fatalf("expected 0 changes on already-yanked entry, got %d", changed)
	}
}

func TestMutateMissingFile(t *testing.T) {
	_, err := Mutate(filepath.Join(t.TempDir(), "missing"), func(entries []*Entry) (int, error) {
		return 0, nil
	})
	if _, ok := err.(*NotFoundError); !ok {
		t.Fatalf("expected *NotFoundError, got %T: %v", err, err)
	}
}
