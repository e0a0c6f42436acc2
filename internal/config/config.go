// Package config loads and validates palletizer.toml, the registry's
// strict-schema TOML configuration file.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/palletizer/registry/internal/logging"
)

// TLS names the certificate files used by a TLS-terminating listener.
type TLS struct {
	PrivateKey       string `toml:"private_key"`
	CertificateChain string `toml:"certificate_chain"`
}

// Listener is one entry of the `[[listener]]` array.
type Listener struct {
	Bind string `toml:"bind"`
	TLS  *TLS   `toml:"tls,omitempty"`
}

// MetadataCache configures the optional search-description cache.
type MetadataCache struct {
	Driver        string `toml:"driver"` // "sqlite" or "postgres"
	DSN           string `toml:"dsn"`
	RedisAddr     string `toml:"redis_addr,omitempty"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db,omitempty"`
}

// Config is the parsed shape of palletizer.toml.
type Config struct {
	DownloadURL       string         `toml:"download_url"`
	APIURL            string         `toml:"api_url"`
	IndexDir          string         `toml:"index_dir"`
	CrateDir          string         `toml:"crate_dir"`
	AllowedRegistries []string       `toml:"allowed_registries,omitempty"`
	Listener          []Listener     `toml:"listener,omitempty"`
	Logging           logging.Config `toml:"logging,omitempty"`
	MetadataCache     *MetadataCache `toml:"metadata_cache,omitempty"`
}

// CargoJSON is the "dl"/"api" advertisement written to
// <index_dir>/config.json.
type CargoJSON struct {
	DL  string `json:"dl"`
	API string `json:"api"`
}

// Example returns a config suitable for seeding a freshly-initialized
// registry.
func Example() *Config {
	return &Config{
		DownloadURL: "https://example.com/crates/{crate}/{crate}-{version}.crate",
		APIURL:      "https://example.com",
		IndexDir:    "index",
		CrateDir:    "crates",
		Logging:     logging.Config{Level: "info", Format: "json"},
	}
}

// Marshal serializes the config as TOML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize config: %w", err)
	}
	return data, nil
}

// Load reads and strictly parses palletizer.toml from dir.
func Load(dir string) (*Config, error) {
	path := filepath.Join(dir, "palletizer.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	var c Config
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return &c, nil
}

// CargoJSON builds the index advertisement document for this config.
func (c *Config) CargoJSON() CargoJSON {
	return CargoJSON{DL: c.DownloadURL, API: c.APIURL}
}

// IndexDirAbs resolves the index directory relative to root.
func (c *Config) IndexDirAbs(root string) string {
	return filepath.Join(root, c.IndexDir)
}

// CrateDirAbs resolves the crate directory relative to root.
func (c *Config) CrateDirAbs(root string) string {
	return filepath.Join(root, c.CrateDir)
}
