package database

import (
	"gorm.io/gorm"

	"github.com/souqly/marketd/internal/models"
)

// AutoMigrate creates or updates the schema for every table the worker reads or writes.
// In production the marketplace owns these tables; migrating is a no-op when they already match.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return ErrNilDatabase
	}
	return db.AutoMigrate(
		&models.Listing{},
		&models.Bid{},
		&models.Notification{},
		&models.PushSubscription{},
		&models.Signal{},
	)
}
