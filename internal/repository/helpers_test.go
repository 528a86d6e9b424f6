package repository

import (
	"context"
	"fmt"
	"testing"

	"chronicle/internal/database"
	"chronicle/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	return gormDB, mock
}

// setupSQLite returns a migrated in-memory database on a single connection.
func setupSQLite(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.AutoMigrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, username, role string) *models.User {
	t.Helper()
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "hash",
		Name:     username,
		Role:     role,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

type postOpt func(*models.Post)

func withStatus(s string) postOpt { return func(p *models.Post) { p.Status = s } }
func withCategory(c string) postOpt { return func(p *models.Post) { p.Category = c } }
func withTags(tags ...string) postOpt { return func(p *models.Post) { p.Tags = tags } }
func withTitle(title string) postOpt { return func(p *models.Post) { p.Title = title } }
func withContent(body string) postOpt { return func(p *models.Post) { p.Content = body } }
func withLikes(n int) postOpt { return func(p *models.Post) { p.Likes = n } }

var postSeq int

func seedPost(t *testing.T, repo PostRepository, authorID uint, opts ...postOpt) *models.Post {
	t.Helper()
	postSeq++
	p := &models.Post{
		Title:    fmt.Sprintf("Post %d", postSeq),
		Content:  "Some body text",
		Excerpt:  "Excerpt",
		AuthorID: authorID,
		Category: "Technology",
		Status:   models.StatusPublished,
	}
	for _, o := range opts {
		o(p)
	}
	p.Slug = fmt.Sprintf("post-%d", postSeq)
	require.NoError(t, repo.Create(context.Background(), p))
	return p
}
