// Package metadatacache backs the registry's search description field
// (deliberately left empty by the core registry, see the registry
// package's Search) with a small lazily-populated store: a GORM-backed
// table of record, fronted by an optional Redis tier for hot lookups.
package metadatacache

import (
	"fmt"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Description is the persisted row for one crate's cached description.
type Description struct {
	CrateName   string `gorm:"primaryKey;column:crate_name"`
	Description string
}

func (Description) TableName() string { return "crate_descriptions" }

// Store wraps the GORM connection backing the description cache.
type Store struct {
	db *gorm.DB
}

// Driver selects the SQL backend for the description cache.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// Open connects to the description cache database and ensures its schema
// exists.
func Open(driver Driver, dsn string) (*Store, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres:
		dialector = postgres.Open(dsn)
	case DriverSQLite, "":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported metadata cache driver: %s", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to metadata cache database: %w", err)
	}

	if err := db.AutoMigrate(&Description{}); err != nil {
		return nil, fmt.Errorf("failed to migrate metadata cache schema: %w", err)
	}

	return &Store{db: db}, nil
}

// Get returns a crate's cached description, and whether a row existed.
func (s *Store) Get(crateName string) (string, bool, error) {
	var row Description
	err := s.db.Where("crate_name = ?", crateName).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to read description for %s: %w", crateName, err)
	}
	return row.Description, true, nil
}

// Put upserts a crate's description.
func (s *Store) Put(crateName, description string) error {
	row := Description{CrateName: crateName, Description: description}
	err := s.db.Save(&row).Error
	if err != nil {
		return fmt.Errorf("failed to store description for %s: %w", crateName, err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
