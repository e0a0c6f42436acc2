package metadatacache

import (
	"context"
	"testing"
)

func TestDescribePopulatesOnceAndCaches(t *testing.T) {
	d, err := NewDescriber(Config{Driver: DriverSQLite, DSN: "file::memory:?cache=shared"})
	if err != nil {
		t.Fatalf("new describer: %v", err)
	}
	defer d.Close()

	calls := 0
	populate := func() (string, error) {
		calls++
		return "a neat crate", nil
	}

	desc, err := d.Describe(context.Background(), "foo", populate)
	if err != nil {
		t.Fatalf("describe: %v", err)
	}
	if desc != "a neat crate" {
		t.Fatalf("unexpected description: %q", desc)
	}
	if calls != 1 {
		t.Fatalf("expected populate called once, got %d", calls)
	}

	desc, err = d.Describe(context.Background(), "foo", populate)
	if err != nil {
		t.Fatalf("describe again: %v", err)
	}
	if desc != "a neat crate" {
		t.Fatalf("unexpected description on second call: %q", desc)
	}
	if calls != 1 {
		t.Fatalf("expected populate not called again, got %d calls", calls)
	}
}

func TestDescribeCachesEmptyDescription(t *testing.T) {
	d, err := NewDescriber(Config{Driver: DriverSQLite, DSN: "file:describer_empty?mode=memory&cache=shared"})
	if err != nil {
		t.Fatalf("new describer: %v", err)
	}
	defer d.Close()

	calls := 0
	populate := func() (string, error) {
		calls++
		return "", nil
	}

	if _, err := d.Describe(context.Background(), "bar", populate); err != nil {
		t.Fatalf("describe: %v", err)
	}
	if _, err := d.Describe(context.Background(), "bar", populate); err != nil {
		t.Fatalf("describe again: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected populate called once even for empty description, got %d", calls)
	}
}
