// Package index models the Cargo sparse/git index entry format and
// provides locked, append-only file access to per-crate index files.
package index

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/palletizer/registry/internal/manifest"
)

// DependencyKind tags the Cargo.toml table an index dependency came from.
type DependencyKind string

const (
	KindNormal DependencyKind = "normal"
	KindBuild  DependencyKind = "build"
	KindDev    DependencyKind = "dev"
)

// UnknownKindError reports a "kind" tag outside normal|build|dev.
type UnknownKindError struct {
	Tag string
}

func (e *UnknownKindError) Error() string {
	return fmt.Sprintf("unknown dependency kind %q", e.Tag)
}

// MarshalJSON rejects any DependencyKind value outside the three known
// tags, so a programming error never silently produces an invalid index
// line.
func (k DependencyKind) MarshalJSON() ([]byte, error) {
	switch k {
	case KindNormal, KindBuild, KindDev:
		return json.Marshal(string(k))
	default:
		return nil, &UnknownKindError{Tag: string(k)}
	}
}

// UnmarshalJSON rejects any "kind" tag outside normal|build|dev.
func (k *DependencyKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	switch DependencyKind(s) {
	case KindNormal, KindBuild, KindDev:
		*k = DependencyKind(s)
		return nil
	default:
		return &UnknownKindError{Tag: s}
	}
}

// Dependency is one entry of an index line's "deps" array.
type Dependency struct {
	Name            string         `json:"name"`
	Req             string         `json:"req"`
	Features        []string       `json:"features"`
	Optional        bool           `json:"optional"`
	DefaultFeatures bool           `json:"default_features"`
	Target          *string        `json:"target"`
	Kind            DependencyKind `json:"kind"`
	Registry        *string        `json:"registry,omitempty"`
	Package         *string        `json:"package,omitempty"`
}

// Entry is one line of a crate's index file.
type Entry struct {
	Name           string              `json:"name"`
	Version        string              `json:"vers"`
	Dependencies   []Dependency        `json:"deps"`
	ChecksumSHA256 string              `json:"cksum"`
	Features       map[string][]string `json:"features"`
	Yanked         bool                `json:"yanked"`
	Links          *string             `json:"links"`
}

// unknownFieldDecode rejects JSON objects carrying fields the target
// struct doesn't declare, matching the strict schema used for our own
// on-disk entries (the Cargo wire type is deliberately more lenient).
func unknownFieldDecode(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// ParseEntry parses one JSON-line index entry, rejecting unknown fields.
func ParseEntry(line []byte) (*Entry, error) {
	var e Entry
	if err := unknownFieldDecode(line, &e); err != nil {
		return nil, fmt.Errorf("failed to parse index entry: %w", err)
	}
	return &e, nil
}

// Marshal serializes an entry as one compact JSON line, without the
// trailing newline.
func (e *Entry) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize index entry %s-%s: %w", e.Name, e.Version, err)
	}
	return data, nil
}

// FromManifest builds an index entry from a parsed Cargo.toml manifest and
// the crate blob's SHA-256 checksum. Yanked is always false for a freshly
// published crate.
func FromManifest(m *manifest.Manifest, checksumSHA256 string) *Entry {
	var deps []Dependency
	deps = appendDeps(deps, m.Dependencies, KindNormal, nil)
	deps = appendDeps(deps, m.DevDependencies, KindDev, nil)
	deps = appendDeps(deps, m.BuildDependencies, KindBuild, nil)

	for cfg, set := range m.Target {
		cfg := cfg
		deps = appendDeps(deps, set.Dependencies, KindNormal, &cfg)
		deps = appendDeps(deps, set.DevDependencies, KindDev, &cfg)
		deps = appendDeps(deps, set.BuildDependencies, KindBuild, &cfg)
	}

	var links *string
	if m.Links != "" {
		links = &m.Links
	}

	return &Entry{
		Name:           m.Package.Name,
		Version:        m.Package.Version,
		ChecksumSHA256: checksumSHA256,
		Features:       m.Features,
		Yanked:         false,
		Links:          links,
		Dependencies:   deps,
	}
}

func appendDeps(out []Dependency, deps map[string]manifest.Dependency, kind DependencyKind, target *string) []Dependency {
	for name, d := range deps {
		var registry, pkg *string
		if d.Registry != "" {
			registry = &d.Registry
		}
		if d.Package != "" {
			pkg = &d.Package
		}
		out = append(out, Dependency{
			Name:            name,
			Req:             d.Version,
			Features:        d.Features,
			Optional:        d.Optional,
			DefaultFeatures: d.DefaultFeatures,
			Target:          target,
			Kind:            kind,
			Registry:        registry,
			Package:         pkg,
		})
	}
	return out
}

// NewCrateDependency is one element of the Cargo publish wire body's
// "deps" array. Unknown fields are ignored on decode.
type NewCrateDependency struct {
	Name               string   `json:"name"`
	VersionReq         string   `json:"version_req"`
	Features           []string `json:"features"`
	Optional           bool     `json:"optional"`
	DefaultFeatures    bool     `json:"default_features"`
	Target             *string  `json:"target"`
	Kind               string   `json:"kind"`
	Registry           *string  `json:"registry"`
	ExplicitNameInToml string   `json:"explicit_name_in_toml"`
}

// NewCrateMeta is the "meta" JSON segment of a Cargo publish wire body.
// Unknown fields beyond the ones declared here are ignored on decode,
// tolerating future additions from newer Cargo clients.
type NewCrateMeta struct {
	Name     string               `json:"name"`
	Version  string               `json:"vers"`
	Deps     []NewCrateDependency `json:"deps"`
	Features map[string][]string  `json:"features"`
	Links    *string              `json:"links"`
}

// FromNewCrateMeta converts a Cargo publish wire body into an index entry.
//
// Unlike dependencies, a published crate's own name carries no rename: the
// wire body's ExplicitNameInToml only ever appears per-dependency (a
// publisher renaming one of their dependencies in their own Cargo.toml), so
// the entry's Name is always just meta.Name.
func FromNewCrateMeta(meta *NewCrateMeta, checksumSHA256 string) *Entry {
	deps := make([]Dependency, 0, len(meta.Deps))
	for _, d := range meta.Deps {
		kind := DependencyKind(d.Kind)
		if kind == "" {
			kind = KindNormal
		}
		var depPackage *string
		if d.ExplicitNameInToml != "" {
			realName := d.Name
			depPackage = &realName
		}
		depName := d.Name
		if d.ExplicitNameInToml != "" {
			depName = d.ExplicitNameInToml
		}
		deps = append(deps, Dependency{
			Name:            depName,
			Req:             d.VersionReq,
			Features:        d.Features,
			Optional:        d.Optional,
			DefaultFeatures: d.DefaultFeatures,
			Target:          d.Target,
			Kind:            kind,
			Registry:        d.Registry,
			Package:         depPackage,
		})
	}

	return &Entry{
		Name:           meta.Name,
		Version:        meta.Version,
		ChecksumSHA256: checksumSHA256,
		Features:       meta.Features,
		Yanked:         false,
		Links:          meta.Links,
		Dependencies:   deps,
	}
}
