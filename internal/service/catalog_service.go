package service

import (
	"context"
	"strings"

	"chronicle/internal/models"
	"chronicle/internal/repository"
	"chronicle/internal/validation"
)

// CatalogService serves the author profiles and the category list.
type CatalogService struct {
	authorRepo repository.AuthorRepository
	categories []string
}

type CreateAuthorInput struct {
	Name   string `json:"name" validate:"notblank,max=100"`
	Bio    string `json:"bio" validate:"max=1000"`
	Avatar string `json:"avatar"`
}

func NewCatalogService(authorRepo repository.AuthorRepository, categories []string) *CatalogService {
	return &CatalogService{authorRepo: authorRepo, categories: categories}
}

func (s *CatalogService) ListAuthors(ctx context.Context) ([]models.Author, error) {
	return s.authorRepo.List(ctx)
}

func (s *CatalogService) CreateAuthor(ctx context.Context, in CreateAuthorInput) (*models.Author, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	author := &models.Author{
		Name:   strings.TrimSpace(in.Name),
		Bio:    strings.TrimSpace(in.Bio),
		Avatar: strings.TrimSpace(in.Avatar),
	}
	if err := s.authorRepo.Create(ctx, author); err != nil {
		return nil, err
	}
	return author, nil
}

// Categories returns a copy of the configured category list.
func (s *CatalogService) Categories() []string {
	out := make([]string, len(s.categories))
	copy(out, s.categories)
	return out
}
