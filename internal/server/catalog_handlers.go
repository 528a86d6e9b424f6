package server

import (
	"chronicle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetAuthors handles GET /api/authors
// @Summary List authors
// @Tags catalog
// @Produce json
// @Success 200 {array} models.Author
// @Router /authors [get]
func (s *Server) GetAuthors(c *fiber.Ctx) error {
	authors, err := s.catalogService.ListAuthors(c.UserContext())
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(authors)
}

// CreateAuthor handles POST /api/authors
// @Summary Create author
// @Tags catalog
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateAuthorInput true "Author"
// @Success 201 {object} models.Author
// @Failure 400 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /authors [post]
func (s *Server) CreateAuthor(c *fiber.Ctx) error {
	var req service.CreateAuthorInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	author, err := s.catalogService.CreateAuthor(c.UserContext(), req)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(author)
}

// GetCategories handles GET /api/categories
// @Summary List categories
// @Tags catalog
// @Produce json
// @Success 200 {array} string
// @Router /categories [get]
func (s *Server) GetCategories(c *fiber.Ctx) error {
	return c.JSON(s.catalogService.Categories())
}
