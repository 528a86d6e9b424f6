package repository

import (
	"context"
	"math"
	"testing"

	"chronicle/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostQuery_Normalize(t *testing.T) {
	q := PostQuery{Page: 0, Limit: 1000, Sort: "-password", Status: models.StatusDraft}.Normalize()

	assert.Equal(t, 1, q.Page)
	assert.Equal(t, MaxLimit, q.Limit)
	assert.Equal(t, DefaultSort, q.Sort)
	assert.Equal(t, models.StatusPublished, q.Status, "non-admins never see drafts")

	admin := PostQuery{Status: models.StatusDraft, IncludeDrafts: true}.Normalize()
	assert.Equal(t, models.StatusDraft, admin.Status)
	assert.Equal(t, DefaultLimit, admin.Limit)

	adminAll := PostQuery{Status: "bogus", IncludeDrafts: true}.Normalize()
	assert.Empty(t, adminAll.Status)

	far := PostQuery{Page: math.MaxInt, Limit: MaxLimit}.Normalize()
	assert.Equal(t, MaxPage, far.Page)
	assert.Positive(t, far.Offset())
	assert.LessOrEqual(t, far.Offset(), math.MaxInt32)
}

func TestPostQuery_Order(t *testing.T) {
	assert.Equal(t, "posts.created_at DESC, posts.id DESC", PostQuery{}.Order())
	assert.Equal(t, "posts.likes DESC, posts.title ASC, posts.id DESC", PostQuery{Sort: "-likes,title"}.Order())
	assert.Equal(t, "posts.created_at DESC, posts.id DESC", PostQuery{Sort: "id; DROP TABLE posts"}.Order())
}

func TestTotalPages(t *testing.T) {
	assert.Equal(t, 3, TotalPages(25, 10))
	assert.Equal(t, 2, TotalPages(20, 10))
	assert.Equal(t, 1, TotalPages(1, 10))
	assert.Equal(t, 0, TotalPages(0, 10))
}

func TestPostRepository_List_Pagination(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "writer", models.RoleUser)
	for i := 0; i < 25; i++ {
		seedPost(t, repo, author.ID)
	}
	ctx := context.Background()

	page, err := repo.List(ctx, PostQuery{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Posts, 10)
	assert.Equal(t, 3, page.TotalPages)
	assert.Equal(t, 2, page.CurrentPage)
	assert.Equal(t, int64(25), page.TotalPosts)

	last, err := repo.List(ctx, PostQuery{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, last.Posts, 5)

	beyond, err := repo.List(ctx, PostQuery{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond.Posts)
	assert.Equal(t, int64(25), beyond.TotalPosts)

	huge, err := repo.List(ctx, PostQuery{Page: math.MaxInt64/10 + 2, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, huge.Posts)
	assert.Equal(t, MaxPage, huge.CurrentPage)
	assert.Equal(t, 3, huge.TotalPages)
}

func TestPostRepository_List_DraftVisibility(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "writer", models.RoleUser)
	for i := 0; i < 3; i++ {
		seedPost(t, repo, author.ID)
	}
	seedPost(t, repo, author.ID, withStatus(models.StatusDraft))
	seedPost(t, repo, author.ID, withStatus(models.StatusDraft))
	ctx := context.Background()

	public, err := repo.List(ctx, PostQuery{Status: models.StatusDraft})
	require.NoError(t, err)
	assert.Equal(t, int64(3), public.TotalPosts)
	for _, p := range public.Posts {
		assert.Equal(t, models.StatusPublished, p.Status)
	}

	all, err := repo.List(ctx, PostQuery{IncludeDrafts: true})
	require.NoError(t, err)
	assert.Equal(t, int64(5), all.TotalPosts)

	drafts, err := repo.List(ctx, PostQuery{IncludeDrafts: true, Status: models.StatusDraft})
	require.NoError(t, err)
	assert.Equal(t, int64(2), drafts.TotalPosts)
}

func TestPostRepository_List_Filters(t *testing.T) {
	db := setupSQLite(t)
	repo := NewPostRepository(db)
	author := seedUser(t, db, "writer", models.RoleUser)

	seedPost(t, repo, author.ID, withTitle("Goroutines in practice"), withCategory("Development"), withTags("go", "concurrency"), withLikes(3))
	seedPost(t, repo, author.ID, withTitle("Colour theory"), withCategory("Design"), withTags("ui"), withLikes(9))
	seedPost(t, repo, author.ID, withTitle("Budgeting 101"), withCategory("Finance"), withContent("Spreadsheets and GOALS"), withLikes(1))
	ctx := context.Background()

	byCategory, err := repo.List(ctx, PostQuery{Category: "Design"})
	require.NoError(t, err)
	require.Len(t, byCategory.Posts, 1)
	assert.Equal(t, "Colour theory", byCategory.Posts[0].Title)

	byTag, err := repo.List(ctx, PostQuery{Tag: "concurrency"})
	require.NoError(t, err)
	require.Len(t, byTag.Posts, 1)
	assert.Equal(t, []string{"go", "concurrency"}, byTag.Posts[0].Tags)
	assert.Equal(t, "writer", byTag.Posts[0].Author.Username)

	bySearch, err := repo.List(ctx, PostQuery{Search: "goals"})
	require.NoError(t, err)
	require.Len(t, bySearch.Posts, 1)
	assert.Equal(t, "Budgeting 101", bySearch.Posts[0].Title)

	searchTag, err := repo.List(ctx, PostQuery{Search: "UI"})
	require.NoError(t, err)
	require.Len(t, searchTag.Posts, 1)

	none, err := repo.List(ctx, PostQuery{Category: "Design", Tag: "go"})
	require.NoError(t, err)
	assert.Empty(t, none.Posts)
	assert.Equal(t, 0, none.TotalPages)

	byLikes, err := repo.List(ctx, PostQuery{Sort: "-likes"})
	require.NoError(t, err)
	require.Len(t, byLikes.Posts, 3)
	assert.Equal(t, []int{9, 3, 1}, []int{byLikes.Posts[0].Likes, byLikes.Posts[1].Likes, byLikes.Posts[2].Likes})

	byTitle, err := repo.List(ctx, PostQuery{Sort: "title"})
	require.NoError(t, err)
	assert.Equal(t, "Budgeting 101", byTitle.Posts[0].Title)
}
