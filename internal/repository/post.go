package repository

import (
	"context"
	"fmt"

	"chronicle/internal/cache"
	"chronicle/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetByID(ctx context.Context, id uint) (*models.Post, error)
	GetBySlug(ctx context.Context, slug string) (*models.Post, error)
	SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error)
	List(ctx context.Context, q PostQuery) (*PostPage, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id uint) error
	IncrementLikes(ctx context.Context, id uint) (int, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

// withDetails preloads the author summary and ordered tags.
func withDetails(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author", func(db *gorm.DB) *gorm.DB {
			return db.Unscoped().Select("id", "username", "name", "avatar")
		}).
		Preload("TagRows", func(db *gorm.DB) *gorm.DB {
			return db.Order("post_tags.position ASC")
		})
}

func translatePostWriteError(err error) error {
	if isUniqueConstraintError(err) {
		return models.NewConflictError("Slug already in use", ErrSlugTaken)
	}
	return models.NewInternalError(err)
}

// Create inserts the post and its tag rows in one transaction.
func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(post).Error; err != nil {
			return err
		}
		return replaceTags(tx, post.ID, post.Tags)
	})
	if err != nil {
		return translatePostWriteError(err)
	}
	cache.InvalidatePosts(ctx)
	return nil
}

func replaceTags(tx *gorm.DB, postID uint, tags []string) error {
	if err := tx.Where("post_id = ?", postID).Delete(&models.PostTag{}).Error; err != nil {
		return err
	}
	if len(tags) == 0 {
		return nil
	}
	rows := models.TagRowsFor(postID, tags)
	return tx.Create(&rows).Error
}

func (r *postRepository) GetByID(ctx context.Context, id uint) (*models.Post, error) {
	return r.getOne(ctx, fmt.Sprintf("id:%d", id), id, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.id = ?", id)
	})
}

func (r *postRepository) GetBySlug(ctx context.Context, slug string) (*models.Post, error) {
	return r.getOne(ctx, "slug:"+slug, slug, func(db *gorm.DB) *gorm.DB {
		return db.Where("posts.slug = ?", slug)
	})
}

func (r *postRepository) getOne(ctx context.Context, key string, ref any, where func(*gorm.DB) *gorm.DB) (*models.Post, error) {
	var post models.Post
	err := cache.Aside(ctx, cache.PostDetailKey(ctx, key), &post, cache.PostDetailTTL, func() error {
		if err := where(withDetails(r.db.WithContext(ctx))).First(&post).Error; err != nil {
			if isNotFound(err) {
				return models.NewNotFoundError("Post", ref)
			}
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) SlugExists(ctx context.Context, slug string, excludeID uint) (bool, error) {
	var count int64
	q := r.db.WithContext(ctx).Model(&models.Post{}).Where("slug = ?", slug)
	if excludeID != 0 {
		q = q.Where("id <> ?", excludeID)
	}
	if err := q.Count(&count).Error; err != nil {
		return false, models.NewInternalError(err)
	}
	return count > 0, nil
}

// List runs the filtered, sorted, paginated listing described by q.
// Non-admin pages are served from cache when possible.
func (r *postRepository) List(ctx context.Context, q PostQuery) (*PostPage, error) {
	q = q.Normalize()

	fetch := func(page *PostPage) error {
		base := q.Filter(r.db.WithContext(ctx).Model(&models.Post{}))

		var total int64
		if err := base.Count(&total).Error; err != nil {
			return models.NewInternalError(err)
		}

		posts := make([]*models.Post, 0, q.Limit)
		if total > int64(q.Offset()) {
			err := withDetails(q.Filter(r.db.WithContext(ctx).Model(&models.Post{}))).
				Order(q.Order()).
				Limit(q.Limit).
				Offset(q.Offset()).
				Find(&posts).Error
			if err != nil {
				return models.NewInternalError(err)
			}
		}

		*page = PostPage{
			Posts:       posts,
			TotalPages:  TotalPages(total, q.Limit),
			CurrentPage: q.Page,
			TotalPosts:  total,
		}
		return nil
	}

	var page PostPage
	if q.IncludeDrafts {
		if err := fetch(&page); err != nil {
			return nil, err
		}
		return &page, nil
	}
	if err := cache.Aside(ctx, cache.PostsListKey(ctx, q.CacheKey()), &page, cache.PostsListTTL, func() error {
		return fetch(&page)
	}); err != nil {
		return nil, err
	}
	return &page, nil
}

// Update saves the post columns and replaces its tags in one transaction.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(post).Omit(clause.Associations).Select(
			"title", "slug", "content", "excerpt", "image", "category", "status", "read_time", "updated_at",
		).Updates(post)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return replaceTags(tx, post.ID, post.Tags)
	})
	if err != nil {
		if isNotFound(err) {
			return models.NewNotFoundError("Post", post.ID)
		}
		return translatePostWriteError(err)
	}
	cache.InvalidatePosts(ctx)
	return nil
}

// Delete removes the post with its tags, comments and replies in one transaction.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		commentIDs := tx.Model(&models.Comment{}).Select("id").Where("post_id = ?", id)
		if err := tx.Where("comment_id IN (?)", commentIDs).Delete(&models.Reply{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return err
		}
		if err := tx.Where("post_id = ?", id).Delete(&models.PostTag{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Post{}, id)
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
			return models.NewNotFoundError("Post", id)
		}
		return models.NewInternalError(err)
	}
	cache.InvalidatePosts(ctx)
	return nil
}

// IncrementLikes adds one like in the database and returns the new count.
func (r *postRepository) IncrementLikes(ctx context.Context, id uint) (int, error) {
	likes, err := incrementCounter(ctx, r.db, &models.Post{}, id)
	if err != nil {
		if isNotFound(err) {
			return 0, models.NewNotFoundError("Post", id)
		}
		return 0, models.NewInternalError(err)
	}
	cache.InvalidatePosts(ctx)
	return likes, nil
}

// incrementCounter runs likes = likes + 1 on the row and reads the result back.
func incrementCounter(ctx context.Context, db *gorm.DB, model any, id uint) (int, error) {
	var likes int
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(model).Where("id = ?", id).UpdateColumn("likes", gorm.Expr("likes + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return tx.Model(model).Where("id = ?", id).Pluck("likes", &likes).Error
	})
	return likes, err
}
