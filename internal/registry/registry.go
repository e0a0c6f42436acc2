// Package registry implements the Cargo sparse/git index registry: the
// init/open/publish/yank/unyank/search/download operations that sit on top
// of the path resolver, manifest extractor, index file I/O, and git
// committer packages.
package registry

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/go-git/go-git/v5"
	"github.com/rs/zerolog/log"

	"github.com/palletizer/registry/internal/config"
	"github.com/palletizer/registry/internal/gitidx"
	"github.com/palletizer/registry/internal/index"
	"github.com/palletizer/registry/internal/manifest"
	"github.com/palletizer/registry/internal/registrypath"
)

const configFileName = "palletizer.toml"

// CommitterName and CommitterEmail identify the author/committer of every
// registry-driven commit to the index repository.
const (
	CommitterName  = "palletizer registry"
	CommitterEmail = "noreply@palletizer.invalid"
)

// Registry owns the on-disk state (config file, index repository, crate
// blobs) and the git handle for a single Cargo registry instance.
//
// One Registry value is meant to be shared across request handlers. Reads
// (Search, IterCrateNames, CrateBytes, ReadIndex) may proceed concurrently.
// Mutations (AddCrate*, Yank, Unyank) take an exclusive lock on the
// Registry for the duration of the call, on top of the OS-level file lock
// each one already acquires on the touched per-crate index file.
type Registry struct {
	root   string
	config *config.Config

	mu      sync.RWMutex
	gitMu   sync.Mutex
	repo    *git.Repository
}

// Init creates a brand new registry at root: writes palletizer.toml,
// initializes the index git repository, writes config.json, and makes the
// first commit.
func Init(root string, cfg *config.Config) (*Registry, error) {
	configPath := filepath.Join(root, configFileName)
	if _, err := os.Stat(configPath); err == nil {
		return nil, &AlreadyExistsError{Path: configPath}
	}

	data, err := cfg.Marshal()
	if err != nil {
		return nil, err
	}
	if err := writeNewFile(configPath, data); err != nil {
		return nil, err
	}

	indexDir := cfg.IndexDirAbs(root)
	if err := os.MkdirAll(indexDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", indexDir, err)
	}

	repo, err := gitidx.Init(indexDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize git repository at %s: %w", indexDir, err)
	}

	cargoJSON, err := json.MarshalIndent(cfg.CargoJSON(), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config.json: %w", err)
	}
	cargoJSON = append(cargoJSON, '\n')
	if err := writeNewFile(filepath.Join(indexDir, "config.json"), cargoJSON); err != nil {
		return nil, err
	}

	sig := gitidx.NewSignature(CommitterName, CommitterEmail)
	if _, err := gitidx.Commit(repo, "Initialize empty registry index.", []string{"config.json"}, sig); err != nil {
		return nil, err
	}

	log.Info().Str("root", root).Msg("initialized registry")
	return &Registry{root: root, config: cfg, repo: repo}, nil
}

// Open loads an existing registry from root.
func Open(root string) (*Registry, error) {
	cfg, err := config.Load(root)
	if err != nil {
		return nil, err
	}
	repo, err := gitidx.Open(cfg.IndexDirAbs(root))
	if err != nil {
		return nil, fmt.Errorf("failed to open git repository at %s: %w", cfg.IndexDirAbs(root), err)
	}
	return &Registry{root: root, config: cfg, repo: repo}, nil
}

// Path returns the registry's root directory.
func (r *Registry) Path() string { return r.root }

// Config returns the registry's configuration.
func (r *Registry) Config() *config.Config { return r.config }

func (r *Registry) indexDir() string { return r.config.IndexDirAbs(r.root) }
func (r *Registry) crateDir() string { return r.config.CrateDirAbs(r.root) }

func (r *Registry) indexPathAbs(name string) (string, string, error) {
	rel, err := registrypath.Resolve(name)
	if err != nil {
		return "", "", err
	}
	return rel, filepath.Join(r.indexDir(), rel), nil
}

func (r *Registry) cratePathAbs(name, version string) string {
	return filepath.Join(r.crateDir(), name, fmt.Sprintf("%s-%s.crate", name, version))
}

// ReadIndex returns the parsed index entries for a single crate, or an
// empty slice if the crate has never been published.
func (r *Registry) ReadIndex(name string) ([]*index.Entry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, path, err := r.indexPathAbs(name)
	if err != nil {
		return nil, err
	}
	return index.ReadOrEmpty(path)
}

// IterCrateNames walks the index directory to depth 5, skipping dotfiles
// (notably .git), and returns the file name of every regular file at
// depth >= 3 (i.e. every per-crate index file).
func (r *Registry) IterCrateNames() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	root := r.indexDir()
	var names []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel != "." && strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		depth := 0
		if rel != "." {
			depth = len(strings.Split(rel, string(filepath.Separator)))
		}
		if depth > 5 {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if depth >= 3 && !d.IsDir() {
			names = append(names, d.Name())
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to walk index directory: %w", err)
	}
	return names, nil
}

// AddCrateWithMetadata validates, appends, and commits a crate given its
// already-built index entry and raw blob.
func (r *Registry) AddCrateWithMetadata(entry *index.Entry, blob []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, dep := range entry.Dependencies {
		if dep.Registry != nil && *dep.Registry != "" {
			if !containsString(r.config.AllowedRegistries, *dep.Registry) {
				return &DisallowedDependencyRegistryError{Dependency: dep.Name, Registry: *dep.Registry}
			}
		}
	}

	indexPathRel, indexPathAbs, err := r.indexPathAbs(entry.Name)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(indexPathAbs), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(indexPathAbs), err)
	}

	existing, err := index.ReadOrEmpty(indexPathAbs)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Version == entry.Version {
			return &index.DuplicateVersionError{Name: entry.Name, Version: entry.Version}
		}
	}

	blobPath := r.cratePathAbs(entry.Name, entry.Version)
	if err := os.MkdirAll(filepath.Dir(blobPath), 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", filepath.Dir(blobPath), err)
	}
	if _, err := os.Stat(blobPath); err == nil {
		return &BlobExistsError{Path: blobPath}
	}

	if err := writeNewFile(blobPath, blob); err != nil {
		return err
	}

	if err := index.Append(indexPathAbs, entry); err != nil {
		return err
	}

	r.gitMu.Lock()
	defer r.gitMu.Unlock()
	sig := gitidx.NewSignature(CommitterName, CommitterEmail)
	msg := fmt.Sprintf("Add %s-%s", entry.Name, entry.Version)
	if _, err := gitidx.Commit(r.repo, msg, []string{indexPathRel}, sig); err != nil {
		return err
	}

	log.Info().Str("name", entry.Name).Str("version", entry.Version).Msg("published crate")
	return nil
}

// AddCrate extracts the manifest from blob, computes its checksum, builds
// an index entry, and publishes it.
func (r *Registry) AddCrate(blob []byte) error {
	entry, err := entryFromBlob(blob)
	if err != nil {
		return err
	}
	return r.AddCrateWithMetadata(entry, blob)
}

func entryFromBlob(blob []byte) (*index.Entry, error) {
	m, err := manifest.Extract(bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256(blob)
	return index.FromManifest(m, hex.EncodeToString(sum[:])), nil
}

// Yank marks every entry for (name, version) as yanked. Returns true if any
// entry's state changed, false if all matching entries were already
// yanked.
func (r *Registry) Yank(name, version string) (bool, error) {
	return r.setYanked(name, version, true, fmt.Sprintf("Yanked %s-%s", name, version))
}

// Unyank marks every entry for (name, version) as not yanked.
func (r *Registry) Unyank(name, version string) (bool, error) {
	return r.setYanked(name, version, false, fmt.Sprintf("Unyanked %s-%s", name, version))
}

func (r *Registry) setYanked(name, version string, target bool, commitMsg string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	indexPathRel, indexPathAbs, err := r.indexPathAbs(name)
	if err != nil {
		return false, err
	}

	found := 0
	changed, err := index.Mutate(indexPathAbs, func(entries []*index.Entry) (int, error) {
		n := 0
		for _, e := range entries {
			if e.Version != version {
				continue
			}
			found++
			if e.Yanked != target {
				e.Yanked = target
				n++
			}
		}
		return n, nil
	})
	if err != nil {
		if _, ok := err.(*index.NotFoundError); ok {
			return false, &CrateNotFoundError{Name: name}
		}
		return false, err
	}
	if found == 0 {
		return false, &VersionNotFoundError{Name: name, Version: version}
	}
	if changed == 0 {
		return false, nil
	}

	r.gitMu.Lock()
	defer r.gitMu.Unlock()
	sig := gitidx.NewSignature(CommitterName, CommitterEmail)
	if _, err := gitidx.Commit(r.repo, commitMsg, []string{indexPathRel}, sig); err != nil {
		return false, err
	}
	return true, nil
}

// SearchHit is one result of Search.
type SearchHit struct {
	Name        string
	MaxVersion  string
	Description string
}

// SearchResult carries the page of hits plus the pre-truncation count.
type SearchResult struct {
	Hits  []SearchHit
	Total int
}

// Search returns crates whose name contains query as a case-sensitive
// substring, each represented by its greatest semver version, in
// discovery order, truncated to limit (or 10 if limit <= 0).
func (r *Registry) Search(query string, limit int) (*SearchResult, error) {
	if limit <= 0 {
		limit = 10
	}

	names, err := r.IterCrateNames()
	if err != nil {
		return nil, err
	}

	var hits []SearchHit
	for _, name := range names {
		if !strings.Contains(name, query) {
			continue
		}
		entries, err := r.ReadIndex(name)
		if err != nil {
			return nil, err
		}
		best := greatestSemver(entries)
		if best == nil {
			continue
		}
		hits = append(hits, SearchHit{Name: name, MaxVersion: best.Version, Description: ""})
	}

	total := len(hits)
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return &SearchResult{Hits: hits, Total: total}, nil
}

func greatestSemver(entries []*index.Entry) *index.Entry {
	var best *index.Entry
	var bestVer *semver.Version
	for _, e := range entries {
		v, err := semver.NewVersion(e.Version)
		if err != nil {
			log.Warn().Str("name", e.Name).Str("version", e.Version).Err(err).Msg("invalid semver version in index")
			continue
		}
		if bestVer == nil || v.GreaterThan(bestVer) {
			bestVer = v
			best = e
		}
	}
	return best
}

// VerifyBlobs walks the crate directory and returns the path of every blob
// that has no matching index entry: the inconsistent state left behind by a
// crash between AddCrateWithMetadata's blob write and its index commit,
// which spec §7 documents as requiring administrative repair.
func (r *Registry) VerifyBlobs() ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	root := r.crateDir()
	var orphans []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".crate") {
			return nil
		}
		name := filepath.Base(filepath.Dir(path))
		version := strings.TrimSuffix(strings.TrimPrefix(d.Name(), name+"-"), ".crate")

		_, indexPath, err := r.indexPathAbs(name)
		if err != nil {
			return nil
		}
		entries, err := index.ReadOrEmpty(indexPath)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Version == version {
				return nil
			}
		}
		orphans = append(orphans, path)
		return nil
	})
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to walk crate directory: %w", err)
	}
	return orphans, nil
}

// CrateBytes returns the raw blob for (name, version).
func (r *Registry) CrateBytes(name, version string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, err := os.ReadFile(r.cratePathAbs(name, version))
	if err != nil {
		return nil, err
	}
	return data, nil
}

func containsString(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

func writeNewFile(path string, data []byte) error {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
