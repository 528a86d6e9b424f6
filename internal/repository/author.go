package repository

import (
	"context"

	"chronicle/internal/models"

	"gorm.io/gorm"
)

// AuthorRepository stores public author profiles.
type AuthorRepository interface {
	List(ctx context.Context) ([]models.Author, error)
	Create(ctx context.Context, author *models.Author) error
}

type authorRepository struct {
	db *gorm.DB
}

func NewAuthorRepository(db *gorm.DB) AuthorRepository {
	return &authorRepository{db: db}
}

func (r *authorRepository) List(ctx context.Context) ([]models.Author, error) {
	authors := make([]models.Author, 0)
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&authors).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return authors, nil
}

func (r *authorRepository) Create(ctx context.Context, author *models.Author) error {
	if err := r.db.WithContext(ctx).Create(author).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
