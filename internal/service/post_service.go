package service

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"

	"chronicle/internal/authz"
	"chronicle/internal/middleware"
	"chronicle/internal/models"
	"chronicle/internal/notifications"
	"chronicle/internal/observability"
	"chronicle/internal/repository"
	"chronicle/internal/slug"
	"chronicle/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

// maxSlugWrites bounds how often a write is retried after losing a slug race.
const maxSlugWrites = 3

type PostService struct {
	postRepo    repository.PostRepository
	commentRepo repository.CommentRepository
	slugs       *slug.Resolver
	feed        FeedPublisher
}

type CreatePostInput struct {
	Principal authz.Principal `json:"-"`
	Title     string          `json:"title" validate:"notblank,max=100"`
	Content   string          `json:"content" validate:"notblank"`
	Excerpt   string          `json:"excerpt" validate:"notblank,max=200"`
	Category  string          `json:"category" validate:"notblank"`
	// Tags is comma separated.
	Tags   string `json:"tags"`
	Image  string `json:"image"`
	Status string `json:"status" validate:"omitempty,oneof=draft published"`
}

// UpdatePostInput applies every non-empty field; empty fields keep their value.
type UpdatePostInput struct {
	Principal authz.Principal `json:"-"`
	PostID    uint            `json:"-"`
	Title     string          `json:"title" validate:"max=100"`
	Content   string          `json:"content"`
	Excerpt   string          `json:"excerpt" validate:"max=200"`
	Category  string          `json:"category"`
	Tags      string          `json:"tags"`
	Image     string          `json:"image"`
	Status    string          `json:"status" validate:"omitempty,oneof=draft published"`
}

// PostDetail is a post with its comment thread.
type PostDetail struct {
	Post     *models.Post      `json:"post"`
	Comments []*models.Comment `json:"comments"`
}

func NewPostService(
	postRepo repository.PostRepository,
	commentRepo repository.CommentRepository,
	feed FeedPublisher,
) *PostService {
	resolver := slug.NewResolver(postRepo.SlugExists)
	resolver.OnCollision = observability.SlugCollisions.Inc
	return &PostService{
		postRepo:    postRepo,
		commentRepo: commentRepo,
		slugs:       resolver,
		feed:        feed,
	}
}

// SlugResolver exposes the resolver so callers can tune the clock or attempt limit.
func (s *PostService) SlugResolver() *slug.Resolver {
	return s.slugs
}

// ListPosts runs the listing query. Only admins may see drafts or filter by status.
func (s *PostService) ListPosts(ctx context.Context, q repository.PostQuery, viewer authz.Principal) (page *repository.PostPage, err error) {
	ctx, end := observability.StartSpan(ctx, "service", "ListPosts")
	defer end(&err)

	q.IncludeDrafts = viewer.IsAdmin()
	return s.postRepo.List(ctx, q)
}

// GetPost resolves ref as a numeric id or a slug and returns the post with its comments.
// Drafts are reported as missing to everyone but their author and admins.
func (s *PostService) GetPost(ctx context.Context, ref string, viewer authz.Principal) (detail *PostDetail, err error) {
	ctx, end := observability.StartSpan(ctx, "service", "GetPost", attribute.String("post.ref", ref))
	defer end(&err)

	post, err := s.lookup(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !visibleTo(post, viewer) {
		return nil, models.NewNotFoundError("Post", ref)
	}
	comments, err := s.commentRepo.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	return &PostDetail{Post: post, Comments: comments}, nil
}

func (s *PostService) lookup(ctx context.Context, ref string) (*models.Post, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, models.NewValidationError("Post id or slug is required")
	}
	if id, convErr := strconv.ParseUint(ref, 10, 64); convErr == nil && id > 0 {
		post, err := s.postRepo.GetByID(ctx, uint(id))
		if err == nil || !models.HasCode(err, models.CodeNotFound) {
			return post, err
		}
		// Titles like "2024" produce numeric slugs.
	}
	return s.postRepo.GetBySlug(ctx, strings.ToLower(ref))
}

func visibleTo(post *models.Post, viewer authz.Principal) bool {
	return post.IsPublished() || authz.CanModify(viewer, post.AuthorID)
}

// GetVisiblePost returns the post when viewer may read it.
func (s *PostService) GetVisiblePost(ctx context.Context, id uint, viewer authz.Principal) (*models.Post, error) {
	post, err := s.postRepo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visibleTo(post, viewer) {
		return nil, models.NewNotFoundError("Post", id)
	}
	return post, nil
}

func (s *PostService) CreatePost(ctx context.Context, in CreatePostInput) (created *models.Post, err error) {
	ctx, end := observability.StartSpan(ctx, "service", "CreatePost")
	defer end(&err)

	if in.Principal.ID == 0 {
		return nil, models.NewUnauthorizedError("Not authorized, no token")
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	status := in.Status
	if status == "" {
		status = models.StatusPublished
	}
	post := &models.Post{
		Title:    strings.TrimSpace(in.Title),
		Content:  SanitizeHTML(in.Content),
		Excerpt:  strings.TrimSpace(in.Excerpt),
		AuthorID: in.Principal.ID,
		Category: strings.TrimSpace(in.Category),
		Tags:     ParseTags(in.Tags),
		Image:    strings.TrimSpace(in.Image),
		Status:   status,
	}
	if post.Content == "" {
		return nil, models.NewValidationError("Content is required")
	}
	if err := CheckTags(post.Tags); err != nil {
		return nil, err
	}

	err = s.writeWithSlug(ctx, post, 0, func() error {
		post.ID = 0
		return s.postRepo.Create(ctx, post)
	})
	if err != nil {
		return nil, err
	}
	observability.PostsCreated.WithLabelValues(status).Inc()

	created, err = s.postRepo.GetByID(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	if created.IsPublished() {
		s.publish(ctx, notifications.EventPostPublished, postEvent(created))
	}
	return created, nil
}

func (s *PostService) UpdatePost(ctx context.Context, in UpdatePostInput) (updated *models.Post, err error) {
	ctx, end := observability.StartSpan(ctx, "service", "UpdatePost",
		attribute.Int64("post.id", int64(in.PostID)))
	defer end(&err)

	post, err := s.postRepo.GetByID(ctx, in.PostID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(in.Principal, post.AuthorID, "update", "post"); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	wasPublished := post.IsPublished()
	title := strings.TrimSpace(in.Title)
	retitled := title != "" && title != post.Title
	if retitled {
		post.Title = title
	}
	if in.Content != "" {
		if content := SanitizeHTML(in.Content); content != "" {
			post.Content = content
		}
	}
	if v := strings.TrimSpace(in.Excerpt); v != "" {
		post.Excerpt = v
	}
	if v := strings.TrimSpace(in.Category); v != "" {
		post.Category = v
	}
	if v := strings.TrimSpace(in.Image); v != "" {
		post.Image = v
	}
	if in.Status != "" {
		post.Status = in.Status
	}
	if strings.TrimSpace(in.Tags) != "" {
		tags := ParseTags(in.Tags)
		if err := CheckTags(tags); err != nil {
			return nil, err
		}
		post.Tags = tags
	}
	post.ReadTime = models.ReadTime(post.Content)

	write := func() error { return s.postRepo.Update(ctx, post) }
	if retitled {
		err = s.writeWithSlug(ctx, post, post.ID, write)
	} else {
		err = write()
	}
	if err != nil {
		return nil, err
	}

	updated, err = s.postRepo.GetByID(ctx, post.ID)
	if err != nil {
		return nil, err
	}
	if !wasPublished && updated.IsPublished() {
		s.publish(ctx, notifications.EventPostPublished, postEvent(updated))
	}
	return updated, nil
}

// writeWithSlug assigns a free slug to post and runs write, re-resolving when
// the unique index rejects the slug.
func (s *PostService) writeWithSlug(ctx context.Context, post *models.Post, excludeID uint, write func() error) error {
	for attempt := 1; ; attempt++ {
		candidate, err := s.slugs.Resolve(ctx, post.Title, excludeID)
		if err != nil {
			if errors.Is(err, slug.ErrExhausted) {
				return models.NewConflictError("Could not generate a unique slug", err)
			}
			return err
		}
		post.Slug = candidate

		err = write()
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrSlugTaken) || attempt >= maxSlugWrites {
			return err
		}
		observability.SlugCollisions.Inc()
		middleware.Logger.InfoContext(ctx, "slug taken on write, retrying",
			slog.String("slug", candidate), slog.Int("attempt", attempt))
	}
}

func (s *PostService) DeletePost(ctx context.Context, principal authz.Principal, postID uint) (err error) {
	ctx, end := observability.StartSpan(ctx, "service", "DeletePost",
		attribute.Int64("post.id", int64(postID)))
	defer end(&err)

	post, err := s.postRepo.GetByID(ctx, postID)
	if err != nil {
		return err
	}
	if err := authz.Authorize(principal, post.AuthorID, "delete", "post"); err != nil {
		return err
	}
	if err := s.postRepo.Delete(ctx, postID); err != nil {
		return err
	}
	s.publish(ctx, notifications.EventPostDeleted, notifications.PostEvent{ID: postID, Slug: post.Slug})
	return nil
}

// LikePost adds one like and returns the new total.
func (s *PostService) LikePost(ctx context.Context, viewer authz.Principal, postID uint) (int, error) {
	if _, err := s.GetVisiblePost(ctx, postID, viewer); err != nil {
		return 0, err
	}
	return s.postRepo.IncrementLikes(ctx, postID)
}

func (s *PostService) publish(ctx context.Context, eventType string, payload any) {
	publish(ctx, s.feed, eventType, payload)
}

func postEvent(p *models.Post) notifications.PostEvent {
	return notifications.PostEvent{
		ID:       p.ID,
		Slug:     p.Slug,
		Title:    p.Title,
		Category: p.Category,
		AuthorID: p.AuthorID,
	}
}
