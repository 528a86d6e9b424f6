package service

import (
	"context"
	"errors"
	"strings"

	"chronicle/internal/models"
	"chronicle/internal/repository"
	"chronicle/internal/validation"

	"golang.org/x/crypto/bcrypt"
)

type UserService struct {
	userRepo repository.UserRepository
	// BcryptCost is lowered in tests.
	BcryptCost int
}

type RegisterInput struct {
	Username string `json:"username" validate:"notblank,max=50"`
	Email    string `json:"email" validate:"email"`
	Password string `json:"password" validate:"min=6,maxbytes=72"`
	Name     string `json:"name" validate:"notblank,max=100"`
	Gender   string `json:"gender" validate:"required,oneof=male female other" msg:"Gender is required"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileInput applies every non-empty field.
type UpdateProfileInput struct {
	UserID   uint   `json:"-"`
	Name     string `json:"name" validate:"max=100"`
	Email    string `json:"email" validate:"omitempty,email"`
	Username string `json:"username" validate:"max=50"`
	Bio      string `json:"bio" validate:"max=500"`
	Avatar   string `json:"avatar"`
	Password string `json:"password" validate:"omitempty,min=6,maxbytes=72"`
}

// AdminUpdateUserInput is what an admin may change on any account.
type AdminUpdateUserInput struct {
	Name  string `json:"name" validate:"max=100"`
	Email string `json:"email" validate:"omitempty,email"`
	Role  string `json:"role" validate:"omitempty,oneof=user admin"`
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo, BcryptCost: bcrypt.DefaultCost}
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	in.Username = strings.TrimSpace(in.Username)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	existing, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("User already exists", nil)
	}
	existing, err = s.userRepo.GetByUsername(ctx, in.Username)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, models.NewConflictError("Username is already taken", nil)
	}

	hash, err := s.hash(in.Password)
	if err != nil {
		return nil, err
	}
	user := &models.User{
		Username: in.Username,
		Email:    in.Email,
		Password: hash,
		Name:     strings.TrimSpace(in.Name),
		Gender:   in.Gender,
		Role:     models.RoleUser,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		return nil, err
	}
	return user, nil
}

// Authenticate checks the credentials and returns the matching user.
func (s *UserService) Authenticate(ctx context.Context, in LoginInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	user, err := s.userRepo.GetByEmail(ctx, in.Email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid email or password")
	}
	return user, nil
}

func (s *UserService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	return s.userRepo.GetByID(ctx, id)
}

func (s *UserService) ListUsers(ctx context.Context) ([]models.User, error) {
	return s.userRepo.List(ctx)
}

func (s *UserService) ListAdmins(ctx context.Context) ([]models.User, error) {
	return s.userRepo.ListByRole(ctx, models.RoleAdmin)
}

func (s *UserService) UpdateProfile(ctx context.Context, in UpdateProfileInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	setIf(fields, "name", in.Name)
	setIf(fields, "email", in.Email)
	setIf(fields, "username", in.Username)
	setIf(fields, "bio", in.Bio)
	setIf(fields, "avatar", in.Avatar)
	if in.Password != "" {
		hash, err := s.hash(in.Password)
		if err != nil {
			return nil, err
		}
		fields["password"] = hash
	}

	if _, err := s.userRepo.GetByID(ctx, in.UserID); err != nil {
		return nil, err
	}
	if err := s.userRepo.UpdateFields(ctx, in.UserID, fields); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, in.UserID)
}

func (s *UserService) AdminUpdateUser(ctx context.Context, id uint, in AdminUpdateUserInput) (*models.User, error) {
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, id); err != nil {
		return nil, err
	}
	fields := map[string]interface{}{}
	setIf(fields, "name", in.Name)
	setIf(fields, "email", in.Email)
	setIf(fields, "role", in.Role)
	if err := s.userRepo.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	return s.userRepo.GetByID(ctx, id)
}

// SetRole changes the role of a user. role must be user or admin.
func (s *UserService) SetRole(ctx context.Context, id uint, role string) (*models.User, error) {
	if role != models.RoleUser && role != models.RoleAdmin {
		return nil, models.NewValidationError("Role must be one of: user, admin")
	}
	return s.AdminUpdateUser(ctx, id, AdminUpdateUserInput{Role: role})
}

func (s *UserService) DeleteUser(ctx context.Context, id uint) error {
	return s.userRepo.Delete(ctx, id)
}

func (s *UserService) hash(password string) (string, error) {
	cost := s.BcryptCost
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	b, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", models.NewValidationError("Password cannot be longer than 72 bytes")
	}
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(b), nil
}

func setIf(fields map[string]interface{}, column, value string) {
	if v := strings.TrimSpace(value); v != "" {
		fields[column] = v
	}
}
