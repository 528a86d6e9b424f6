package repository

import (
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"chronicle/internal/models"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_CreateAndGet(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "writer", models.RoleUser)
	ctx := context.Background()

	post := &models.Post{
		Title:    "Hello, World!",
		Slug:     "hello-world",
		Content:  "one two three",
		Excerpt:  "greeting",
		AuthorID: author.ID,
		Category: "Technology",
		Tags:     []string{"intro", "meta"},
	}
	require.NoError(t, repo.Create(ctx, post))
	assert.NotZero(t, post.ID)
	assert.Equal(t, "1 min read", post.ReadTime)

	byID, err := repo.GetByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", byID.Slug)
	assert.Equal(t, []string{"intro", "meta"}, byID.Tags)
	assert.Equal(t, models.StatusPublished, byID.Status)
	assert.Equal(t, 0, byID.Likes)
	assert.Equal(t, "writer", byID.Author.Username)

	bySlug, err := repo.GetBySlug(ctx, "hello-world")
	require.NoError(t, err)
	assert.Equal(t, post.ID, bySlug.ID)

	_, err = repo.GetBySlug(ctx, "missing")
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestPostRepository_DuplicateSlugIsConflict(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "writer", models.RoleUser)
	ctx := context.Background()

	first := &models.Post{Title: "A", Slug: "same", Content: "x", Excerpt: "x", AuthorID: author.ID, Category: "Technology"}
	require.NoError(t, repo.Create(ctx, first))

	second := &models.Post{Title: "A", Slug: "same", Content: "x", Excerpt: "x", AuthorID: author.ID, Category: "Technology"}
	err := repo.Create(ctx, second)

	assert.True(t, models.HasCode(err, models.CodeConflict))
	assert.ErrorIs(t, err, ErrSlugTaken)
}

func TestPostRepository_SlugExists(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "writer", models.RoleUser)
	p := seedPost(t, repo, author.ID)
	ctx := context.Background()

	taken, err := repo.SlugExists(ctx, p.Slug, 0)
	require.NoError(t, err)
	assert.True(t, taken)

	taken, err = repo.SlugExists(ctx, p.Slug, p.ID)
	require.NoError(t, err)
	assert.False(t, taken, "a post does not collide with itself")
}

func TestPostRepository_UpdateReplacesTags(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "writer", models.RoleUser)
	p := seedPost(t, repo, author.ID, withTags("a", "b", "c"))
	ctx := context.Background()

	p.Title = "Renamed"
	p.Slug = "renamed"
	p.Tags = []string{"z"}
	p.Status = models.StatusDraft
	require.NoError(t, repo.Update(ctx, p))

	got, err := repo.GetByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Title)
	assert.Equal(t, "renamed", got.Slug)
	assert.Equal(t, []string{"z"}, got.Tags)
	assert.Equal(t, models.StatusDraft, got.Status)

	missing := &models.Post{ID: 999, Title: "x", Slug: "x", Content: "x", Excerpt: "x", Category: "x", Status: models.StatusPublished}
	err = repo.Update(ctx, missing)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestPostRepository_DeleteCascades(t *testing.T) {
	db := setupSQLite(t)
	posts := NewPostRepository(db)
	comments := NewCommentRepository(db)
	author := seedUser(t, db, "writer", models.RoleUser)
	reader := seedUser(t, db, "reader", models.RoleUser)
	ctx := context.Background()

	doomed := seedPost(t, posts, author.ID, withTags("x"))
	kept := seedPost(t, posts, author.ID)
	for i := 0; i < 3; i++ {
		c := &models.Comment{PostID: doomed.ID, UserID: reader.ID, Content: "nice"}
		require.NoError(t, comments.Create(ctx, c))
		require.NoError(t, comments.AddReply(ctx, &models.Reply{CommentID: c.ID, UserID: author.ID, Content: "thanks"}))
	}
	require.NoError(t, comments.Create(ctx, &models.Comment{PostID: kept.ID, UserID: reader.ID, Content: "also nice"}))

	require.NoError(t, posts.Delete(ctx, doomed.ID))

	remaining, err := comments.CountByPost(ctx, doomed.ID)
	require.NoError(t, err)
	assert.Zero(t, remaining)

	var replies, tags int64
	require.NoError(t, db.Model(&models.Reply{}).Count(&replies).Error)
	require.NoError(t, db.Model(&models.PostTag{}).Where("post_id = ?", doomed.ID).Count(&tags).Error)
	assert.Zero(t, replies)
	assert.Zero(t, tags)

	other, err := comments.CountByPost(ctx, kept.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), other)

	_, err = posts.GetByID(ctx, doomed.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))

	err = posts.Delete(ctx, doomed.ID)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestPostRepository_IncrementLikesIsAtomic(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "writer", models.RoleUser)
	p := seedPost(t, repo, author.ID)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.IncrementLikes(ctx, p.ID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	likes, err := repo.IncrementLikes(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 21, likes)

	_, err = repo.IncrementLikes(ctx, 424242)
	assert.True(t, models.HasCode(err, models.CodeNotFound))
}

func TestPostRepository_SlugExists_SQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT count(*) FROM "posts" WHERE slug = $1 AND id <> $2`)).
		WithArgs("hello-world", 5).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	taken, err := repo.SlugExists(context.Background(), "hello-world", 5)

	require.NoError(t, err)
	assert.True(t, taken)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_IncrementLikes_SQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "likes"=likes + $1 WHERE id = $2`)).
		WithArgs(1, 7).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "likes" FROM "posts" WHERE id = $1`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"likes"}).AddRow(4))
	mock.ExpectCommit()

	likes, err := repo.IncrementLikes(context.Background(), 7)

	require.NoError(t, err)
	assert.Equal(t, 4, likes)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostRepository_IncrementLikes_DatabaseError(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPostRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts"`)).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.IncrementLikes(context.Background(), 7)

	assert.True(t, models.HasCode(err, models.CodeInternal))
	assert.NoError(t, mock.ExpectationsWereMet())
}
