package repository

import (
	"context"

	"chronicle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CommentRepository defines persistence operations for comments and their replies.
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error)
	CountByPost(ctx context.Context, postID uint) (int64, error)
	UpdateContent(ctx context.Context, id uint, content string) error
	Delete(ctx context.Context, id uint) error
	AddReply(ctx context.Context, reply *models.Reply) error
	IncrementLikes(ctx context.Context, id uint) (int, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository returns a new CommentRepository implementation.
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

// withThread preloads the comment author and the replies, oldest first, with their authors.
func withThread(db *gorm.DB) *gorm.DB {
	summary := func(db *gorm.DB) *gorm.DB {
		return db.Unscoped().Select("id", "username", "name", "avatar")
	}
	return db.
		Preload("User", summary).
		Preload("Replies", func(db *gorm.DB) *gorm.DB {
			return db.Order("replies.created_at ASC, replies.id ASC")
		}).
		Preload("Replies.User", summary)
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(comment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := withThread(r.db.WithContext(ctx)).First(&comment, id).Error; err != nil {
		if isNotFound(err) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, models.NewInternalError(err)
	}
	return &comment, nil
}

// ListByPost returns the comments of a post, newest first.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]*models.Comment, error) {
	comments := make([]*models.Comment, 0)
	err := withThread(r.db.WithContext(ctx)).
		Where("post_id = ?", postID).
		Order("comments.created_at DESC, comments.id DESC").
		Find(&comments).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return comments, nil
}

func (r *commentRepository) CountByPost(ctx context.Context, postID uint) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.Comment{}).Where("post_id = ?", postID).Count(&count).Error; err != nil {
		return 0, models.NewInternalError(err)
	}
	return count, nil
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string) error {
	res := r.db.WithContext(ctx).Model(&models.Comment{}).Where("id = ?", id).Update("content", content)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Comment", id)
	}
	return nil
}

// Delete removes the comment and its replies in one transaction.
func (r *commentRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("comment_id = ?", id).Delete(&models.Reply{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Comment{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	if err != nil {
		if isNotFound(err) {
			return models.NewNotFoundError("Comment", id)
		}
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) AddReply(ctx context.Context, reply *models.Reply) error {
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(reply).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *commentRepository) IncrementLikes(ctx context.Context, id uint) (int, error) {
	likes, err := incrementCounter(ctx, r.db, &models.Comment{}, id)
	if err != nil {
		if isNotFound(err) {
			return 0, models.NewNotFoundError("Comment", id)
		}
		return 0, models.NewInternalError(err)
	}
	return likes, nil
}
