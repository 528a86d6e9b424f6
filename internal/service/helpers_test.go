package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"chronicle/internal/models"
	"chronicle/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// postRepoStub is an in-memory repository.PostRepository.
type postRepoStub struct {
	mu      sync.Mutex
	posts   map[uint]*models.Post
	nextID  uint
	updates int
	// createFn, when set, runs before the default Create.
	createFn func(context.Context, *models.Post) error
	listFn   func(context.Context, repository.PostQuery) (*repository.PostPage, error)
}

func newPostRepoStub(posts ...*models.Post) *postRepoStub {
	s := &postRepoStub{posts: map[uint]*models.Post{}, nextID: 1}
	for _, p := range posts {
		s.posts[p.ID] = p
		if p.ID >= s.nextID {
			s.nextID = p.ID + 1
		}
	}
	return s
}

func (s *postRepoStub) Create(ctx context.Context, post *models.Post) error {
	if s.createFn != nil {
		if err := s.createFn(ctx, post); err != nil {
			return err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if p.Slug == post.Slug {
			return models.NewConflictError("Slug already in use", repository.ErrSlugTaken)
		}
	}
	post.ID = s.nextID
	s.nextID++
	cp := *post
	s.posts[post.ID] = &cp
	return nil
}

func (s *postRepoStub) GetByID(_ context.Context, id uint) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return nil, models.NewNotFoundError("Post", id)
	}
	cp := *p
	return &cp, nil
}

func (s *postRepoStub) GetBySlug(_ context.Context, slug string) (*models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.posts {
		if p.Slug == slug {
			cp := *p
			return &cp, nil
		}
	}
	return nil, models.NewNotFoundError("Post", slug)
}

func (s *postRepoStub) SlugExists(_ context.Context, slug string, excludeID uint) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, p := range s.posts {
		if p.Slug == slug && id != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (s *postRepoStub) List(ctx context.Context, q repository.PostQuery) (*repository.PostPage, error) {
	if s.listFn != nil {
		return s.listFn(ctx, q)
	}
	return &repository.PostPage{}, nil
}

func (s *postRepoStub) Update(_ context.Context, post *models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[post.ID]; !ok {
		return models.NewNotFoundError("Post", post.ID)
	}
	s.updates++
	cp := *post
	s.posts[post.ID] = &cp
	return nil
}

func (s *postRepoStub) Delete(_ context.Context, id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.posts[id]; !ok {
		return models.NewNotFoundError("Post", id)
	}
	delete(s.posts, id)
	return nil
}

func (s *postRepoStub) IncrementLikes(_ context.Context, id uint) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.posts[id]
	if !ok {
		return 0, models.NewNotFoundError("Post", id)
	}
	p.Likes++
	return p.Likes, nil
}

// commentRepoStub is an in-memory repository.CommentRepository.
type commentRepoStub struct {
	comments map[uint]*models.Comment
	nextID   uint
	replyID  uint
}

func newCommentRepoStub(comments ...*models.Comment) *commentRepoStub {
	s := &commentRepoStub{comments: map[uint]*models.Comment{}, nextID: 1, replyID: 1}
	for _, c := range comments {
		s.comments[c.ID] = c
		if c.ID >= s.nextID {
			s.nextID = c.ID + 1
		}
	}
	return s
}

func (s *commentRepoStub) Create(_ context.Context, c *models.Comment) error {
	c.ID = s.nextID
	s.nextID++
	cp := *c
	s.comments[c.ID] = &cp
	return nil
}

func (s *commentRepoStub) GetByID(_ context.Context, id uint) (*models.Comment, error) {
	c, ok := s.comments[id]
	if !ok {
		return nil, models.NewNotFoundError("Comment", id)
	}
	cp := *c
	return &cp, nil
}

func (s *commentRepoStub) ListByPost(_ context.Context, postID uint) ([]*models.Comment, error) {
	out := make([]*models.Comment, 0)
	for _, c := range s.comments {
		if c.PostID == postID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *commentRepoStub) CountByPost(ctx context.Context, postID uint) (int64, error) {
	list, _ := s.ListByPost(ctx, postID)
	return int64(len(list)), nil
}

func (s *commentRepoStub) UpdateContent(_ context.Context, id uint, content string) error {
	c, ok := s.comments[id]
	if !ok {
		return models.NewNotFoundError("Comment", id)
	}
	c.Content = content
	return nil
}

func (s *commentRepoStub) Delete(_ context.Context, id uint) error {
	if _, ok := s.comments[id]; !ok {
		return models.NewNotFoundError("Comment", id)
	}
	delete(s.comments, id)
	return nil
}

func (s *commentRepoStub) AddReply(_ context.Context, r *models.Reply) error {
	c, ok := s.comments[r.CommentID]
	if !ok {
		return models.NewNotFoundError("Comment", r.CommentID)
	}
	r.ID = s.replyID
	s.replyID++
	c.Replies = append(c.Replies, *r)
	return nil
}

func (s *commentRepoStub) IncrementLikes(_ context.Context, id uint) (int, error) {
	c, ok := s.comments[id]
	if !ok {
		return 0, models.NewNotFoundError("Comment", id)
	}
	c.Likes++
	return c.Likes, nil
}

// feedRecorder captures published feed events.
type feedRecorder struct {
	mu     sync.Mutex
	events []string
	// err, when set, is returned by every Publish.
	err error
}

func (f *feedRecorder) Publish(_ context.Context, eventType string, _ any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, eventType)
	return f.err
}

func (f *feedRecorder) Events() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.events...)
}

func assertCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.True(t, errors.As(err, &appErr), "expected AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
}

func publishedPost(id, authorID uint, title, slug string) *models.Post {
	return &models.Post{
		ID:       id,
		Title:    title,
		Slug:     slug,
		Content:  "body",
		Excerpt:  "excerpt",
		AuthorID: authorID,
		Category: "Technology",
		Status:   models.StatusPublished,
		Tags:     []string{},
	}
}
