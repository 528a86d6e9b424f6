// Package seed fills a database with demo users, posts and comments.
// It is meant for development and tests only.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"chronicle/internal/database"
	"chronicle/internal/middleware"
	"chronicle/internal/models"
	"chronicle/internal/repository"
	"chronicle/internal/slug"

	"github.com/brianvoe/gofakeit/v6"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// DefaultPassword is the password of every seeded account.
const DefaultPassword = "password123"

// Options configures a seeding run.
type Options struct {
	NumUsers    int
	NumPosts    int
	NumComments int
	// DraftRatio is the share of posts created as drafts, between 0 and 1.
	DraftRatio float64
	Categories []string
	Clean      bool
	// SkipBcrypt stores a cheap hash; only for throwaway databases.
	SkipBcrypt bool
}

// Result counts what a run created.
type Result struct {
	Users    []*models.User
	Posts    []*models.Post
	Comments int
}

// Seeder writes fake content through the repositories so slugs, tags and
// cache invalidation follow the same path as the API.
type Seeder struct {
	db       *gorm.DB
	users    repository.UserRepository
	posts    repository.PostRepository
	comments repository.CommentRepository
	slugs    *slug.Resolver
	faker    *gofakeit.Faker
}

// New builds a Seeder on db. A non-zero seed makes the content reproducible.
func New(db *gorm.DB, seed int64) *Seeder {
	posts := repository.NewPostRepository(db)
	return &Seeder{
		db:       db,
		users:    repository.NewUserRepository(db),
		posts:    posts,
		comments: repository.NewCommentRepository(db),
		slugs:    slug.NewResolver(posts.SlugExists),
		faker:    gofakeit.New(seed),
	}
}

// Run seeds according to opts.
func (s *Seeder) Run(ctx context.Context, opts Options) (*Result, error) {
	if opts.Clean {
		if err := Clean(ctx, s.db); err != nil {
			return nil, err
		}
	}
	if len(opts.Categories) == 0 {
		return nil, fmt.Errorf("seed: at least one category is required")
	}

	res := &Result{}
	hash, err := passwordHash(opts.SkipBcrypt)
	if err != nil {
		return nil, err
	}

	for i := 0; i < opts.NumUsers; i++ {
		u, err := s.CreateUser(ctx, hash)
		if err != nil {
			return res, fmt.Errorf("seed user %d: %w", i, err)
		}
		res.Users = append(res.Users, u)
	}
	if len(res.Users) == 0 {
		return res, nil
	}

	for i := 0; i < opts.NumPosts; i++ {
		author := res.Users[s.faker.Number(0, len(res.Users)-1)]
		status := models.StatusPublished
		if s.faker.Float64Range(0, 1) < opts.DraftRatio {
			status = models.StatusDraft
		}
		category := opts.Categories[s.faker.Number(0, len(opts.Categories)-1)]
		p, err := s.CreatePost(ctx, author.ID, category, status)
		if err != nil {
			return res, fmt.Errorf("seed post %d: %w", i, err)
		}
		res.Posts = append(res.Posts, p)
	}

	for i := 0; i < opts.NumComments && len(res.Posts) > 0; i++ {
		post := res.Posts[s.faker.Number(0, len(res.Posts)-1)]
		user := res.Users[s.faker.Number(0, len(res.Users)-1)]
		c := &models.Comment{PostID: post.ID, UserID: user.ID, Content: s.faker.Sentence(12)}
		if err := s.comments.Create(ctx, c); err != nil {
			return res, fmt.Errorf("seed comment %d: %w", i, err)
		}
		res.Comments++
	}

	middleware.Logger.Info("seed complete",
		slog.Int("users", len(res.Users)),
		slog.Int("posts", len(res.Posts)),
		slog.Int("comments", res.Comments))
	return res, nil
}

// CreateUser persists one fake account with the given password hash.
func (s *Seeder) CreateUser(ctx context.Context, passwordHash string) (*models.User, error) {
	first, last := s.faker.FirstName(), s.faker.LastName()
	username := strings.ToLower(fmt.Sprintf("%s%s%d", first, last, s.faker.Number(100, 9999)))
	u := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: passwordHash,
		Name:     first + " " + last,
		Gender:   s.faker.RandomString([]string{"male", "female", "other"}),
		Bio:      s.faker.Sentence(10),
		Avatar:   fmt.Sprintf("https://i.pravatar.cc/150?u=%s", s.faker.UUID()),
		Role:     models.RoleUser,
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// CreatePost persists one fake post by authorID.
func (s *Seeder) CreatePost(ctx context.Context, authorID uint, category, status string) (*models.Post, error) {
	title := strings.TrimSuffix(s.faker.Sentence(s.faker.Number(3, 8)), ".")
	if len(title) > 100 {
		title = title[:100]
	}
	slugValue, err := s.slugs.Resolve(ctx, title, 0)
	if err != nil {
		return nil, err
	}

	paragraphs := s.faker.Number(2, 6)
	var body strings.Builder
	for i := 0; i < paragraphs; i++ {
		fmt.Fprintf(&body, "<p>%s</p>", s.faker.Paragraph(1, 4, 14, " "))
	}

	tags := make([]string, 0, 3)
	for i := s.faker.Number(0, 3); i > 0; i-- {
		tags = append(tags, strings.ToLower(s.faker.HackerNoun()))
	}

	p := &models.Post{
		Title:    title,
		Slug:     slugValue,
		Content:  body.String(),
		Excerpt:  s.faker.Sentence(15),
		AuthorID: authorID,
		Image:    fmt.Sprintf("https://picsum.photos/seed/%s/800/450", s.faker.UUID()),
		Category: category,
		Tags:     tags,
		Status:   status,
	}
	if err := s.posts.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Clean removes all content rows, children first.
func Clean(ctx context.Context, db *gorm.DB) error {
	all := database.PersistentModels()
	tx := db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true})
	for i := len(all) - 1; i >= 0; i-- {
		if err := tx.Unscoped().Delete(all[i]).Error; err != nil {
			return fmt.Errorf("clean %T: %w", all[i], err)
		}
	}
	return nil
}

func passwordHash(skip bool) (string, error) {
	cost := bcrypt.DefaultCost
	if skip {
		cost = bcrypt.MinCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(DefaultPassword), cost)
	if err != nil {
		return "", fmt.Errorf("hash seed password: %w", err)
	}
	return string(h), nil
}
