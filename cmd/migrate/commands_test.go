package main

import (
	"bytes"
	"testing"

	"chronicle/internal/config"
	"chronicle/internal/database"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testOpener(t *testing.T, cfg *config.Config) (*gorm.DB, opener) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db, func() (*gorm.DB, *config.Config, error) { return db, cfg, nil }
}

func execute(t *testing.T, open opener, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(open)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestStatusBeforeAndAfterAuto(t *testing.T) {
	db, open := testOpener(t, &config.Config{Env: "development", DBSchemaMode: database.SchemaModeAuto})

	out, err := execute(t, open, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "mode=auto env=development sql=false auto=true")
	assert.Contains(t, out, "missing table: posts")
	assert.Contains(t, out, "slug index: missing")

	_, err = execute(t, open, "status", "--strict")
	assert.ErrorIs(t, err, errNotReady)

	out, err = execute(t, open, "auto")
	require.NoError(t, err)
	assert.Contains(t, out, "models migrated")
	assert.True(t, db.Migrator().HasTable("posts"))

	out, err = execute(t, open, "status", "--strict")
	require.NoError(t, err)
	assert.NotContains(t, out, "missing table")
	assert.Contains(t, out, "slug index: present")
}

func TestStatusReportsDuplicateSlugs(t *testing.T) {
	db, open := testOpener(t, &config.Config{Env: "development", DBSchemaMode: database.SchemaModeAuto})
	require.NoError(t, db.Exec(`CREATE TABLE posts (id INTEGER PRIMARY KEY, slug TEXT)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO posts (slug) VALUES ('hello'), ('hello')`).Error)

	out, err := execute(t, open, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "duplicate slugs: 1")
}

func TestAutoRefusedInProduction(t *testing.T) {
	_, open := testOpener(t, &config.Config{Env: "production"})
	_, err := execute(t, open, "auto")
	assert.ErrorContains(t, err, "not allowed")
}

func TestDownArguments(t *testing.T) {
	_, open := testOpener(t, &config.Config{Env: "development"})

	_, err := execute(t, open, "down", "zero")
	assert.ErrorContains(t, err, "invalid version")

	_, err = execute(t, open, "down", "999")
	assert.ErrorContains(t, err, "not found")

	_, err = execute(t, open, "down")
	assert.Error(t, err)
}
