package index

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/palletizer/registry/internal/manifest"
)

func TestParseEntryRejectsUnknownFields(t *testing.T) {
	line := []byte(`{"name":"foo","vers":"0.1.0","deps":[],"cksum":"abc","features":{},"yanked":false,"links":null,"bogus":1}`)
	_, err := ParseEntry(line)
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestParseEntryRoundTrip(t *testing.T) {
	e := &Entry{
		Name:           "foo",
		Version:        "0.1.0",
		Dependencies:   []Dependency{{Name: "bar", Req: "^1.0", Kind: KindNormal}},
		ChecksumSHA256: "abc123",
		Features:       map[string][]string{"default": {"bar"}},
		Yanked:         false,
	}
	data, err := e.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	parsed, err := ParseEntry(data)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed.Name != e.Name || parsed.Version != e.Version || parsed.ChecksumSHA256 != e.ChecksumSHA256 {
		t.Fatalf("round trip mismatch: %+v vs %+v", parsed, e)
	}
	if len(parsed.Dependencies) != 1 || parsed.Dependencies[0].Req != "^1.0" {
		t.Fatalf("unexpected dependencies: %+v", parsed.Dependencies)
	}
}

func TestDependencyKindSerializesLowercase(t *testing.T) {
	d := Dependency{Name: "bar", Kind: KindDev}
	data, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m["kind"] != "dev" {
		t.Fatalf("expected kind=dev, got %v", m["kind"])
	}
}

func TestDependencyKindRejectsUnknownTag(t *testing.T) {
	line := []byte(`{"name":"foo","vers":"0.1.0","deps":[{"name":"bar","req":"1.0","features":[],"optional":false,"default_features":true,"target":null,"kind":"weird"}],"cksum":"abc","features":{},"yanked":false,"links":null}`)
	_, err := ParseEntry(line)
	if err == nil {
		t.Fatal("expected error for unknown dependency kind")
	}
	var kindErr *UnknownKindError
	if !errors.As(err, &kindErr) {
		t.Fatalf("expected *UnknownKindError somewhere in the chain, got %T: %v", err, err)
	}
}

func TestFromManifestGathersAllTables(t *testing.T) {
	m := &manifest.Manifest{
		Package: manifest.Package{Name: "foo", Version: "0.1.0"},
		Features: map[string][]string{},
		DependencySet: manifest.DependencySet{
			Dependencies: map[string]manifest.Dependency{
				"bar": {Version: "1.0"},
			},
			DevDependencies: map[string]manifest.Dependency{
				"baz": {Version: "2.0"},
			},
		},
		Target: map[string]manifest.DependencySet{
			"cfg(windows)": {
				Dependencies: map[string]manifest.Dependency{
					"winapi": {Version: "0.3"},
				},
			},
		},
	}
	e := FromManifest(m, "checksum")
	if e.Name != "foo" || e.Version != "0.1.0" || e.ChecksumSHA256 != "checksum" {
		t.Fatalf("unexpected entry base fields: %+v", e)
	}
	if len(e.Dependencies) != 3 {
		t.Fatalf("expected 3 dependencies, got %d: %+v", len(e.Dependencies), e.Dependencies)
	}
	var sawTargeted bool
	for _, d := range e.Dependencies {
		if d.Name == "winapi" {
			sawTargeted = true
			if d.Target == nil || *d.Target != "cfg(windows)" {
				t.Fatalf("expected winapi to carry target cfg, got %+v", d)
			}
		}
	}
	if !sawTargeted {
		t.Fatalf("expected winapi dependency among %+v", e.Dependencies)
	}
}

func TestFromNewCrateMetaUsesMetaNameVerbatim(t *testing.T) {
	links := "foo_native"
	meta := &NewCrateMeta{
		Name:     "foo",
		Version:  "0.1.0",
		Features: map[string][]string{},
		Links:    &links,
	}
	e := FromNewCrateMeta(meta, "checksum")
	if e.Name != "foo" {
		t.Fatalf("expected entry name to match meta name, got %q", e.Name)
	}
}

func TestFromNewCrateMetaSwapsDependencyRename(t *testing.T) {
	meta := &NewCrateMeta{
		Name:     "foo",
		Version:  "0.1.0",
		Features: map[string][]string{},
		Deps: []NewCrateDependency{
			{Name: "bar", VersionReq: "1.0", ExplicitNameInToml: "bar-renamed"},
		},
	}
	e := FromNewCrateMeta(meta, "checksum")
	if len(e.Dependencies) != 1 {
		t.Fatalf("expected 1 dependency, got %d", len(e.Dependencies))
	}
	d := e.Dependencies[0]
	if d.Name != "bar-renamed" {
		t.Fatalf("expected dependency name to be the rename, got %q", d.Name)
	}
	if d.Package == nil || *d.Package != "bar" {
		t.Fatalf("expected dependency package to be the real name, got %v", d.Package)
	}
}
