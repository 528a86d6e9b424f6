package server

import (
	"time"

	"chronicle/internal/models"
	"chronicle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// authResponse is returned by register and login.
type authResponse struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

// Register handles POST /api/auth/register
// @Summary Register
// @Description Create an account and return a JWT
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.RegisterInput true "Registration"
// @Success 201 {object} authResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/register [post]
func (s *Server) Register(c *fiber.Ctx) error {
	var req service.RegisterInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Register(c.UserContext(), req)
	if err != nil {
		return mapServiceError(c, err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return mapServiceError(c, models.NewInternalError(err))
	}
	return c.Status(fiber.StatusCreated).JSON(authResponse{Token: token, User: user})
}

// Login handles POST /api/auth/login
// @Summary Login
// @Description Authenticate with email and password
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Credentials"
// @Success 200 {object} authResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	user, err := s.userService.Authenticate(c.UserContext(), req)
	if err != nil {
		return mapServiceError(c, err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return mapServiceError(c, models.NewInternalError(err))
	}
	return c.JSON(authResponse{Token: token, User: user})
}

// GetProfile handles GET /api/auth/profile
// @Summary Current user
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/profile [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	user, err := s.userService.GetUser(c.UserContext(), principal(c).ID)
	if err != nil {
		return mapServiceError(c, err)
	}
	return c.JSON(user)
}

// UpdateProfile handles PUT /api/auth/profile
// @Summary Update current user
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.UpdateProfileInput true "Fields to change"
// @Success 200 {object} authResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /auth/profile [put]
func (s *Server) UpdateProfile(c *fiber.Ctx) error {
	var req service.UpdateProfileInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = principal(c).ID

	user, err := s.userService.UpdateProfile(c.UserContext(), req)
	if err != nil {
		return mapServiceError(c, err)
	}

	token, err := s.generateToken(user)
	if err != nil {
		return mapServiceError(c, models.NewInternalError(err))
	}
	return c.JSON(authResponse{Token: token, User: user})
}

// Logout handles POST /api/auth/logout
// @Summary Logout
// @Description Revoke the current token
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} object{message=string}
// @Router /auth/logout [post]
func (s *Server) Logout(c *fiber.Ctx) error {
	jti, _ := c.Locals(localTokenJTI).(string)
	exp, _ := c.Locals(localTokenExp).(time.Time)
	if err := s.revokeToken(c.UserContext(), jti, exp); err != nil {
		return mapServiceError(c, models.NewInternalError(err))
	}
	return c.JSON(fiber.Map{"message": "Logged out"})
}
