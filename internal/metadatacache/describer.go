package metadatacache

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// Config selects the description cache's storage backends.
type Config struct {
	Driver        Driver
	DSN           string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// Describer answers a crate's search description, populating the cache on
// first miss via a caller-supplied extraction function.
type Describer struct {
	store *Store
	hot   *hotCache
}

// NewDescriber opens the durable store and, if RedisAddr is set, the
// optional hot tier in front of it.
func NewDescriber(cfg Config) (*Describer, error) {
	store, err := Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}
	hot, err := newHotCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		log.Warn().Err(err).Msg("metadata cache: redis tier unavailable, continuing without it")
		hot = nil
	}
	return &Describer{store: store, hot: hot}, nil
}

// Describe returns crateName's cached description. On a cache miss it
// calls populate to derive one (typically by reading the crate's
// Cargo.toml out of its most recent blob) and stores the result, including
// an empty string, so a crate with no description is not re-extracted on
// every subsequent search.
func (d *Describer) Describe(ctx context.Context, crateName string, populate func() (string, error)) (string, error) {
	if desc, ok := d.hot.get(ctx, crateName); ok {
		return desc, nil
	}

	desc, found, err := d.store.Get(crateName)
	if err != nil {
		return "", err
	}
	if found {
		d.hot.set(ctx, crateName, desc)
		return desc, nil
	}

	desc, err = populate()
	if err != nil {
		return "", fmt.Errorf("failed to populate description for %s: %w", crateName, err)
	}
	if err := d.store.Put(crateName, desc); err != nil {
		return "", err
	}
	d.hot.set(ctx, crateName, desc)
	return desc, nil
}

// Close releases the store and, if present, the hot tier.
func (d *Describer) Close() error {
	if err := d.hot.close(); err != nil {
		return err
	}
	return d.store.Close()
}
