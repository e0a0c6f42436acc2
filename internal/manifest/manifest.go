// Package manifest extracts and parses Cargo.toml manifests out of
// gzip-compressed tar package archives.
package manifest

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// Package identifies the crate a manifest describes.
type Package struct {
	Name        string `toml:"name"`
	Version     string `toml:"version"`
	Description string `toml:"description"`
}

// Dependency mirrors one entry of a Cargo.toml dependency table.
type Dependency struct {
	Version         string   `toml:"version"`
	Optional        bool     `toml:"optional"`
	Features        []string `toml:"features"`
	DefaultFeatures bool     `toml:"default_features"`
	Package         string   `toml:"package"`
	Registry        string   `toml:"registry"`
}

// DependencySet groups a manifest's dependency tables, used both at the
// top level and under a per-target cfg expression.
type DependencySet struct {
	Dependencies    map[string]Dependency `toml:"dependencies"`
	DevDependencies map[string]Dependency `toml:"dev-dependencies"`
	BuildDependencies map[string]Dependency `toml:"build-dependencies"`
}

// Manifest is the parsed shape of a crate's Cargo.toml, restricted to the
// fields the registry needs to build an index entry.
type Manifest struct {
	Package  Package             `toml:"package"`
	Links    string              `toml:"links"`
	Features map[string][]string `toml:"features"`
	DependencySet
	Target map[string]DependencySet `toml:"target"`
}

// MissingError reports that no Cargo.toml was found at the expected
// archive depth.
type MissingError struct{}

func (e *MissingError) Error() string {
	return "failed to find Cargo.toml in package archive"
}

// ParseError wraps a TOML decoding failure with the offending path.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// Extract decompresses archive as a gzip-compressed tar stream and parses
// the first entry whose path, relative to the top of the archive, equals
// "Cargo.toml" at depth exactly 2 — the packaging convention produced by
// `cargo package` is "<name>-<version>/Cargo.toml".
func Extract(archive io.Reader) (*Manifest, error) {
	gz, err := gzip.NewReader(archive)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize gzip decoder: %w", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read archive entry header: %w", err)
		}
		if !atDepthTwoNamedCargoToml(header.Name) {
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, fmt.Errorf("failed to read archive data for %s: %w", header.Name, err)
		}
		var m Manifest
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, &ParseError{Path: header.Name, Err: err}
		}
		return &m, nil
	}
	return nil, &MissingError{}
}

func atDepthTwoNamedCargoToml(name string) bool {
	name = strings.TrimPrefix(name, "./")
	parts := strings.Split(name, "/")
	return len(parts) == 2 && parts[1] == "Cargo.toml"
}
