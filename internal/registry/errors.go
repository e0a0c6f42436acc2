package registry

import "fmt"

// DisallowedDependencyRegistryError reports that a dependency named a
// registry URL not present in the registry's allowed_registries list.
type DisallowedDependencyRegistryError struct {
	Dependency, Registry string
}

func (e *DisallowedDependencyRegistryError) Error() string {
	return fmt.Sprintf("dependency %q has a non-allowed registry: %q", e.Dependency, e.Registry)
}

// CrateNotFoundError reports that a crate has no index file at all.
type CrateNotFoundError struct {
	Name string
}

func (e *CrateNotFoundError) Error() string {
	return fmt.Sprintf("no such crate in index: %s", e.Name)
}

// VersionNotFoundError reports that a crate exists but not the requested
// version.
type VersionNotFoundError struct {
	Name, Version string
}

func (e *VersionNotFoundError) Error() string {
	return fmt.Sprintf("failed to find %s-%s: no such version in index", e.Name, e.Version)
}

// BlobExistsError reports that add_crate_with_metadata found a pre-existing
// blob on disk without a matching index entry, which indicates a previous
// publish crashed between the blob write and the index append.
type BlobExistsError struct {
	Path string
}

func (e *BlobExistsError) Error() string {
	return fmt.Sprintf("crate blob already exists at %s but has no index entry; registry state is inconsistent and needs administrative repair", e.Path)
}

// AlreadyExistsError reports that Init was called against a root that
// already has a palletizer.toml.
type AlreadyExistsError struct {
	Path string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("%s already exists", e.Path)
}
