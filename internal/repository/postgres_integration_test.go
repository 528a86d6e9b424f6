//go:build integration

package repository_test

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"chronicle/internal/authz"
	"chronicle/internal/config"
	"chronicle/internal/database"
	"chronicle/internal/models"
	"chronicle/internal/repository"
	"chronicle/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

func configFromURL(t *testing.T, dsn string) *config.Config {
	t.Helper()
	u, err := url.Parse(dsn)
	require.NoError(t, err)
	password, _ := u.User.Password()
	return &config.Config{
		DBHost:       u.Hostname(),
		DBPort:       u.Port(),
		DBUser:       u.User.Username(),
		DBPassword:   password,
		DBName:       strings.TrimPrefix(u.Path, "/"),
		DBSSLMode:    "disable",
		DBSchemaMode: database.SchemaModeSQL,
		Env:          "test",
	}
}

func startPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pg, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("chronicle"),
		postgres.WithUsername("chronicle"),
		postgres.WithPassword("chronicle"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pg.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := database.Connect(configFromURL(t, dsn))
	require.NoError(t, err)
	return db
}

func TestPostgresIntegration(t *testing.T) {
	db := startPostgres(t)
	ctx := context.Background()

	author := &models.User{Username: "writer", Email: "writer@example.com", Password: "x", Name: "Writer", Role: models.RoleUser}
	require.NoError(t, repository.NewUserRepository(db).Create(ctx, author))
	posts := repository.NewPostRepository(db)

	t.Run("unique slug index maps to ErrSlugTaken", func(t *testing.T) {
		first := &models.Post{Title: "Same", Slug: "same", Content: "a", Excerpt: "a", AuthorID: author.ID, Category: "Technology", Status: models.StatusPublished}
		require.NoError(t, posts.Create(ctx, first))

		dup := &models.Post{Title: "Same", Slug: "same", Content: "b", Excerpt: "b", AuthorID: author.ID, Category: "Technology", Status: models.StatusPublished}
		err := posts.Create(ctx, dup)
		require.Error(t, err)
		assert.True(t, errors.Is(err, repository.ErrSlugTaken))
		assert.True(t, models.HasCode(err, models.CodeConflict))
	})

	t.Run("full-text search uses stemming", func(t *testing.T) {
		p := &models.Post{
			Title: "Gophers love channels", Slug: "gophers-love-channels",
			Content: "Select statements multiplex communication", Excerpt: "x",
			AuthorID: author.ID, Category: "Development", Status: models.StatusPublished,
			Tags: []string{"concurrency"},
		}
		require.NoError(t, posts.Create(ctx, p))

		page, err := posts.List(ctx, repository.PostQuery{Search: "channel"})
		require.NoError(t, err)
		require.Len(t, page.Posts, 1)
		assert.Equal(t, p.ID, page.Posts[0].ID)

		page, err = posts.List(ctx, repository.PostQuery{Search: "concurrency"})
		require.NoError(t, err)
		assert.Len(t, page.Posts, 1)
	})

	t.Run("concurrent creates with one title get distinct slugs", func(t *testing.T) {
		svc := service.NewPostService(posts, repository.NewCommentRepository(db), nil)
		principal := authz.Principal{ID: author.ID, Role: models.RoleUser}

		const n = 3
		var wg sync.WaitGroup
		slugs := make([]string, n)
		errs := make([]error, n)
		for i := 0; i < n; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				p, err := svc.CreatePost(ctx, service.CreatePostInput{
					Principal: principal, Title: "Race Day", Content: "body", Excerpt: "e", Category: "Technology",
				})
				errs[i] = err
				if err == nil {
					slugs[i] = p.Slug
				}
			}(i)
		}
		wg.Wait()

		seen := map[string]bool{}
		for i := 0; i < n; i++ {
			require.NoError(t, errs[i])
			assert.False(t, seen[slugs[i]], "duplicate slug %q", slugs[i])
			seen[slugs[i]] = true
		}
		assert.True(t, seen["race-day"])
	})
}
