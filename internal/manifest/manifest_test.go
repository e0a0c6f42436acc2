package manifest

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"testing"
)

func buildArchive(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)
	for name, body := range entries {
		hdr := &tar.Header{Name: name, Size: int64(len(body)), Mode: 0644}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if _, err := tw.Write([]byte(body)); err != nil {
			t.Fatalf("write body: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	if err := gz.Close(); err != nil {
		t.Fatalf("close gzip: %v", err)
	}
	return buf.Bytes()
}

func TestExtractFindsCargoTomlAtConventionalPath(t *testing.T) {
	toml := `
[package]
name = "foo"
version = "0.1.0"

[dependencies]
serde = { version = "1.0", features = ["derive"] }

[target.'cfg(windows)'.dependencies]
winapi = { version = "0.3" }
`
	archive := buildArchive(t, map[string]string{
		"foo-0.1.0/Cargo.toml":       toml,
		"foo-0.1.0/src/lib.rs":       "",
		"foo-0.1.0/nested/Cargo.toml": "should not be picked",
	})

	m, err := Extract(bytes.NewReader(archive))
	if err != nil {
		t.Fatalf("Extract returned error: %v", err)
	}
	if m.Package.Name != "foo" || m.Package.Version != "0.1.0" {
		t.Errorf("unexpected package: %+v", m.Package)
	}
	dep, ok := m.Dependencies["serde"]
	if !ok {
		t.Fatalf("expected serde dependency")
	}
	if dep.Version != "1.0" || len(dep.Features) != 1 || dep.Features[0] != "derive" {
		t.Errorf("unexpected serde dependency: %+v", dep)
	}
	target, ok := m.Target["cfg(windows)"]
	if !ok {
		t.Fatalf("expected cfg(windows) target table")
	}
	if _, ok := target.Dependencies["winapi"]; !ok {
		t.Errorf("expected winapi dependency under target")
	}
}

func TestExtractMissingManifest(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"foo-0.1.0/src/lib.rs": "",
	})
	_, err := Extract(bytes.NewReader(archive))
	if err == nil {
		t.Fatal("expected error for missing manifest")
	}
	if _, ok := err.(*MissingError); !ok {
		t.Fatalf("expected *MissingError, got %T: %v", err, err)
	}
}

func TestExtractMalformedToml(t *testing.T) {
	archive := buildArchive(t, map[string]string{
		"foo-0.1.0/Cargo.toml": "this is not [ valid toml",
	})
	_, err := Extract(bytes.NewReader(archive))
	if err == nil {
		t.Fatal("expected error for malformed toml")
	}
	if _, ok := err.(*ParseError); !ok {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}
