package registrypath

import "testing"

func TestResolve(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"a", "1/a"},
		{"ab", "2/ab"},
		{"abc", "3/a/abc"},
		{"abcd", "ab/cd/abcd"},
		{"foo", "3/f/foo"},
		{"serde", "se/rd/serde"},
		{"FOO", "3/f/foo"},
		{"Serde_Derive", "se/rd/serde_derive"},
	}
	for _, c := range cases {
		got, err := Resolve(c.name)
		if err != nil {
			t.Fatalf("Resolve(%q) returned error: %v", c.name, err)
		}
		if got != c.want {
			t.Errorf("Resolve(%q) = %q, want %q", c.name, got, c.want)
		}
	}
}

func TestResolveEmptyName(t *testing.T) {
	_, err := Resolve("")
	if err == nil {
		t.Fatal("expected error for empty name")
	}
	var invalid *ErrInvalidName
	if !asInvalidName(err, &invalid) {
		t.Fatalf("expected *ErrInvalidName, got %T", err)
	}
}

func asInvalidName(err error, target **ErrInvalidName) bool {
	e, ok := err.(*ErrInvalidName)
	if !ok {
		return false
	}
	*target = e
	return true
}
