package database

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/souqly/marketd/internal/models"
	apperrors "github.com/souqly/marketd/pkg/errors"
)

func TestOpenSQLiteMemory(t *testing.T) {
	db := openTestDB(t)

	if err := db.Exec("SELECT 1").Error; err != nil {
		t.Fatalf("expected health query to succeed: %v", err)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := Open(Config{Driver: "oracle"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported database driver")
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	db := openTestDB(t)

	require.NoError(t, AutoMigrate(db))

	migrator := db.Migrator()
	for _, model := range []any{
		&models.Listing{},
		&models.Bid{},
		&models.Notification{},
		&models.PushSubscription{},
		&models.Signal{},
	} {
		require.True(t, migrator.HasTable(model), "expected table for %T", model)
	}
	require.True(t, migrator.HasColumn(&models.Listing{}, "auction_status"))
	require.True(t, migrator.HasColumn(&models.Notification{}, "listing_id"))
}

func TestAutoMigrateNilHandle(t *testing.T) {
	require.ErrorIs(t, AutoMigrate(nil), ErrNilDatabase)
}

func TestPing(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, Ping(context.Background(), db, time.Second))

	require.ErrorIs(t, Ping(context.Background(), nil, time.Second), apperrors.ErrStoreUnreachable)

	require.NoError(t, Close(db))
	err := Ping(context.Background(), db, time.Second)
	require.ErrorIs(t, err, apperrors.ErrStoreUnreachable)
}

func TestOpenAndMigrateFileDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "marketd.sqlite")

	db, err := OpenAndMigrate(context.Background(), Config{Driver: "sqlite", Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = Close(db) })

	require.True(t, db.Migrator().HasTable(&models.Signal{}))
}

func TestTimestampsAreUTC(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, AutoMigrate(db))

	signal := models.Signal{UserID: "u1", Kind: models.SignalView}
	require.NoError(t, db.Create(&signal).Error)
	require.Equal(t, time.UTC, signal.CreatedAt.Location())
}

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := Open(Config{Driver: "sqlite", DSN: "file:" + t.Name() + "?mode=memory&cache=shared&_foreign_keys=1"})
	if err != nil {
		t.Fatalf("open database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	return db
}
