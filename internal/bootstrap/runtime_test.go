package bootstrap

import (
	"context"
	"testing"

	"chronicle/internal/config"
	"chronicle/internal/database"
	"chronicle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, database.AutoMigrate(db))
	return db
}

func devConfig() *config.Config {
	return &config.Config{
		Env:              "development",
		DevBootstrapRoot: true,
		DevRootEmail:     "Root@Example.com",
		DevRootPassword:  "rootpass",
	}
}

func TestEnsureDevRootAdminCreates(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, EnsureDevRootAdmin(context.Background(), devConfig(), db))

	var root models.User
	require.NoError(t, db.Where("email = ?", "root@example.com").First(&root).Error)
	assert.Equal(t, models.RoleAdmin, root.Role)
	assert.Equal(t, "chronicle_root", root.Username)

	// Second run is idempotent.
	require.NoError(t, EnsureDevRootAdmin(context.Background(), devConfig(), db))
	var n int64
	db.Model(&models.User{}).Count(&n)
	assert.EqualValues(t, 1, n)
}

func TestEnsureDevRootAdminPromotesExisting(t *testing.T) {
	db := setupDB(t)
	require.NoError(t, db.Create(&models.User{
		Username: "someone", Email: "root@example.com", Password: "x", Name: "S", Role: models.RoleUser,
	}).Error)

	require.NoError(t, EnsureDevRootAdmin(context.Background(), devConfig(), db))

	var root models.User
	require.NoError(t, db.Where("email = ?", "root@example.com").First(&root).Error)
	assert.Equal(t, models.RoleAdmin, root.Role)
	assert.Equal(t, "someone", root.Username)
}

func TestEnsureDevRootAdminSkips(t *testing.T) {
	db := setupDB(t)

	prod := devConfig()
	prod.Env = "production"
	require.NoError(t, EnsureDevRootAdmin(context.Background(), prod, db))

	off := devConfig()
	off.DevBootstrapRoot = false
	require.NoError(t, EnsureDevRootAdmin(context.Background(), off, db))

	var n int64
	db.Model(&models.User{}).Count(&n)
	assert.Zero(t, n)

	noPass := devConfig()
	noPass.DevRootPassword = ""
	assert.Error(t, EnsureDevRootAdmin(context.Background(), noPass, db))
}

func TestSeedIfEmpty(t *testing.T) {
	db := setupDB(t)
	cfg := &config.Config{Env: "development"}
	require.NoError(t, seedIfEmpty(context.Background(), cfg, db))

	var n int64
	db.Model(&models.Post{}).Count(&n)
	assert.EqualValues(t, 40, n)

	require.NoError(t, seedIfEmpty(context.Background(), cfg, db))
	db.Model(&models.Post{}).Count(&n)
	assert.EqualValues(t, 40, n)
}
