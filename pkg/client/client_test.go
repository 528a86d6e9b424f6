package client

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"chronicle/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const goodToken = "tok-1"

// fakeAPI serves a handful of endpoints with the real response shapes.
func fakeAPI(t *testing.T) (string, *atomic.Int32) {
	t.Helper()
	logouts := &atomic.Int32{}
	app := fiber.New()
	api := app.Group("/api")

	user := models.User{ID: 7, Username: "ada", Email: "ada@example.com", Name: "Ada", Role: models.RoleAdmin}
	authed := func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) != "Bearer "+goodToken {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{Error: "Not authorized, token failed", Code: "UNAUTHORIZED"})
		}
		return c.Next()
	}

	api.Post("/auth/login", func(c *fiber.Ctx) error {
		var body map[string]string
		_ = c.BodyParser(&body)
		if body["password"] != "secret123" {
			return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse{Error: "Invalid email or password"})
		}
		return c.JSON(fiber.Map{"token": goodToken, "user": user})
	})
	api.Get("/auth/profile", authed, func(c *fiber.Ctx) error { return c.JSON(user) })
	api.Post("/auth/logout", authed, func(c *fiber.Ctx) error {
		logouts.Add(1)
		return c.JSON(fiber.Map{"message": "Logged out"})
	})
	api.Get("/posts", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"posts":       []fiber.Map{{"id": 1, "title": c.Query("category") + "|" + c.Query("page")}},
			"totalPages":  1,
			"currentPage": 1,
			"totalPosts":  1,
		})
	})
	api.Get("/posts/:id", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse{Error: "Post with ID " + c.Params("id") + " not found", Code: "NOT_FOUND"})
	})
	api.Put("/posts/:id/like", authed, func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"likes": 3}) })
	api.Get("/categories", func(c *fiber.Ctx) error { return c.JSON([]string{"Technology", "Design"}) })

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go func() { _ = app.Listener(ln) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return "http://" + ln.Addr().String() + "/api", logouts
}

func TestSessionPersistsAcrossRestarts(t *testing.T) {
	base, logouts := fakeAPI(t)
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "credentials.yml")

	s, err := NewSession(base, NewFileStore(path))
	require.NoError(t, err)
	assert.False(t, s.IsAuthenticated())

	u, err := s.Login(ctx, "ada@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, "ada", u.Username)
	assert.True(t, s.IsAdmin())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	restored, err := NewSession(base, NewFileStore(path))
	require.NoError(t, err)
	assert.True(t, restored.IsAuthenticated())
	assert.Equal(t, uint(7), restored.User().ID)

	me, err := restored.API().Profile(ctx)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", me.Email)

	likes, err := restored.API().LikePost(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 3, likes)

	require.NoError(t, restored.Logout(ctx))
	assert.EqualValues(t, 1, logouts.Load())
	assert.False(t, restored.IsAuthenticated())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestUnauthorizedClearsSession(t *testing.T) {
	base, _ := fakeAPI(t)
	store := &MemoryStore{}
	require.NoError(t, store.Save(&Credentials{Token: "stale", User: &StoredUser{ID: 1}}))

	s, err := NewSession(base, store)
	require.NoError(t, err)
	require.True(t, s.IsAuthenticated())

	_, err = s.API().Profile(context.Background())
	assert.True(t, IsStatus(err, fiber.StatusUnauthorized))
	assert.False(t, s.IsAuthenticated())

	stored, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, stored)
}

func TestFailedLoginReturnsAPIError(t *testing.T) {
	base, _ := fakeAPI(t)
	s, err := NewSession(base, nil)
	require.NoError(t, err)

	_, err = s.Login(context.Background(), "ada@example.com", "nope")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, fiber.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Invalid email or password", apiErr.Message)
	assert.False(t, s.IsAuthenticated())
}

func TestClientDecodesResponses(t *testing.T) {
	base, _ := fakeAPI(t)
	c := New(base)
	ctx := context.Background()

	page, err := c.ListPosts(ctx, PostFilter{Category: "Design", Page: 2})
	require.NoError(t, err)
	require.Len(t, page.Posts, 1)
	assert.Equal(t, "Design|2", page.Posts[0].Title)

	_, err = c.GetPost(ctx, "missing-slug")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, fiber.StatusNotFound, apiErr.Status)
	assert.Equal(t, "NOT_FOUND", apiErr.Code)

	cats, err := c.Categories(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"Technology", "Design"}, cats)
}

func TestPostFilterEncode(t *testing.T) {
	assert.Equal(t, "", PostFilter{}.encode())
	assert.Equal(t, "?limit=5&search=go+fiber&sort=-likes",
		PostFilter{Search: "go fiber", Sort: "-likes", Limit: 5}.encode())
}

func TestFileStoreMissingFile(t *testing.T) {
	fs := NewFileStore(filepath.Join(t.TempDir(), "none.yml"))
	creds, err := fs.Load()
	require.NoError(t, err)
	assert.Nil(t, creds)
	assert.NoError(t, fs.Clear())
}

func TestFileStoreRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yml")
	require.NoError(t, os.WriteFile(path, []byte("token: [unclosed"), 0o600))
	_, err := NewSession("http://127.0.0.1:1/api", NewFileStore(path))
	assert.Error(t, err)
}
