// Package storage owns the sqlite database and the persistence models for
// journal notes, users and auth clients.
package storage

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	platformerrors "voicenote-server-go/internal/platform/errors"
)

// Open initializes the sqlite database at path and migrates the schema.
func Open(path string) (*gorm.DB, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, platformerrors.Wrap(platformerrors.KindStorage, "open",
				"create data directory", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "open",
			"open sqlite database", err)
	}

	if err := db.AutoMigrate(&User{}, &Note{}, &AuthClient{}); err != nil {
		return nil, platformerrors.Wrap(platformerrors.KindStorage, "open",
			"migrate schema", err)
	}
	return db, nil
}

// OpenInMemory opens a private in-memory database, used by tests.
func OpenInMemory() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open("file::memory:?cache=shared"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&User{}, &Note{}, &AuthClient{}); err != nil {
		return nil, err
	}
	return db, nil
}
