package service

import (
	"context"

	"chronicle/internal/authz"
	"chronicle/internal/models"
	"chronicle/internal/notifications"
	"chronicle/internal/observability"
	"chronicle/internal/repository"
	"chronicle/internal/validation"

	"go.opentelemetry.io/otel/attribute"
)

type CommentService struct {
	commentRepo repository.CommentRepository
	posts       *PostService
	feed        FeedPublisher
}

type CommentInput struct {
	Principal authz.Principal `json:"-"`
	Content   string          `json:"content" validate:"notblank" msg:"Comment content is required"`
}

type ReplyInput struct {
	Principal authz.Principal `json:"-"`
	Content   string          `json:"content" validate:"notblank" msg:"Reply content is required"`
}

func NewCommentService(commentRepo repository.CommentRepository, posts *PostService, feed FeedPublisher) *CommentService {
	return &CommentService{commentRepo: commentRepo, posts: posts, feed: feed}
}

// ListComments returns the thread of a post readable by viewer, newest first.
func (s *CommentService) ListComments(ctx context.Context, postID uint, viewer authz.Principal) ([]*models.Comment, error) {
	if _, err := s.posts.GetVisiblePost(ctx, postID, viewer); err != nil {
		return nil, err
	}
	return s.commentRepo.ListByPost(ctx, postID)
}

func (s *CommentService) AddComment(ctx context.Context, postID uint, in CommentInput) (comment *models.Comment, err error) {
	ctx, end := observability.StartSpan(ctx, "service", "AddComment",
		attribute.Int64("post.id", int64(postID)))
	defer end(&err)

	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.posts.GetVisiblePost(ctx, postID, in.Principal); err != nil {
		return nil, err
	}
	content := SanitizeHTML(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Comment content is required")
	}

	created := &models.Comment{PostID: postID, UserID: in.Principal.ID, Content: content}
	if err := s.commentRepo.Create(ctx, created); err != nil {
		return nil, err
	}
	publish(ctx, s.feed, notifications.EventCommentCreated, notifications.CommentEvent{
		ID: created.ID, PostID: postID, UserID: created.UserID,
	})
	return s.commentRepo.GetByID(ctx, created.ID)
}

func (s *CommentService) UpdateComment(ctx context.Context, commentID uint, in CommentInput) (*models.Comment, error) {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return nil, err
	}
	if err := authz.Authorize(in.Principal, comment.UserID, "update", "comment"); err != nil {
		return nil, err
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	content := SanitizeHTML(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Comment content is required")
	}
	if err := s.commentRepo.UpdateContent(ctx, commentID, content); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, commentID)
}

func (s *CommentService) DeleteComment(ctx context.Context, principal authz.Principal, commentID uint) error {
	comment, err := s.commentRepo.GetByID(ctx, commentID)
	if err != nil {
		return err
	}
	if err := authz.Authorize(principal, comment.UserID, "delete", "comment"); err != nil {
		return err
	}
	return s.commentRepo.Delete(ctx, commentID)
}

// AddReply appends a reply and returns the whole comment.
func (s *CommentService) AddReply(ctx context.Context, commentID uint, in ReplyInput) (*models.Comment, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.commentRepo.GetByID(ctx, commentID); err != nil {
		return nil, err
	}
	content := SanitizeHTML(in.Content)
	if content == "" {
		return nil, models.NewValidationError("Reply content is required")
	}
	reply := &models.Reply{CommentID: commentID, UserID: in.Principal.ID, Content: content}
	if err := s.commentRepo.AddReply(ctx, reply); err != nil {
		return nil, err
	}
	return s.commentRepo.GetByID(ctx, commentID)
}

// LikeComment adds one like and returns the new total.
func (s *CommentService) LikeComment(ctx context.Context, commentID uint) (int, error) {
	return s.commentRepo.IncrementLikes(ctx, commentID)
}
