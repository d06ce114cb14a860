package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"fleet-mileage/internal/models"
	"fleet-mileage/internal/repository"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"
)

// AccountDirectory resolves the owner of a trip.
type AccountDirectory interface {
	GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error)
}

type UserService struct {
	users      repository.UserStore
	bcryptCost int
}

func NewUserService(users repository.UserStore) *UserService {
	return &UserService{
		users:      users,
		bcryptCost: bcrypt.DefaultCost,
	}
}

type CreateUserRequest struct {
	Name     string `json:"name" validate:"required,min=1,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
	Role     string `json:"role" validate:"required,oneof=driver copilot admin"`
}

type UpdateUserRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Role   *string `json:"role,omitempty" validate:"omitempty,oneof=driver copilot admin"`
	Active *bool   `json:"active,omitempty"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required,min=6"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=6"`
}

func (s *UserService) GetAllUsers(ctx context.Context) ([]*models.User, error) {
	return s.users.FindAll(ctx)
}

func (s *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	return s.users.FindByID(ctx, id)
}

func (s *UserService) GetUserProfile(ctx context.Context, userID string) (*models.UserProfile, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Profile(), nil
}

func (s *UserService) CreateUser(ctx context.Context, req *CreateUserRequest) (*models.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	name := strings.TrimSpace(req.Name)
	if email == "" || name == "" {
		return nil, models.Invalid("name and email are required")
	}
	if !validRole(req.Role) {
		return nil, models.Invalid("unknown role %q", req.Role)
	}

	existing, err := s.users.FindByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrUserNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, models.ErrDuplicateEmail
	}

	hashed, err := s.hashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	user := &models.User{
		ID:        primitive.NewObjectID(),
		Name:      name,
		Email:     email,
		Password:  hashed,
		Role:      req.Role,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	return s.users.Create(ctx, user)
}

func (s *UserService) UpdateUser(ctx context.Context, id string, req *UpdateUserRequest) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, models.Invalid("name must not be empty")
		}
		user.Name = name
	}
	if req.Role != nil {
		if !validRole(*req.Role) {
			return nil, models.Invalid("unknown role %q", *req.Role)
		}
		user.Role = *req.Role
	}
	if req.Active != nil {
		user.Active = *req.Active
	}
	user.UpdatedAt = time.Now()

	return s.users.Update(ctx, user)
}

// ResetPassword sets a password without the current one; administrators only.
func (s *UserService) ResetPassword(ctx context.Context, id string, req *ResetPasswordRequest) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}
	return s.setPassword(ctx, user, req.NewPassword)
}

func (s *UserService) ChangePassword(ctx context.Context, id string, req *ChangePasswordRequest) error {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		return err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.CurrentPassword)); err != nil {
		return models.ErrInvalidLogin
	}
	return s.setPassword(ctx, user, req.NewPassword)
}

func (s *UserService) setPassword(ctx context.Context, user *models.User, password string) error {
	hashed, err := s.hashPassword(password)
	if err != nil {
		return err
	}
	user.Password = hashed
	user.UpdatedAt = time.Now()

	_, err = s.users.Update(ctx, user)
	return err
}

func (s *UserService) hashPassword(password string) (string, error) {
	if len(password) < 6 {
		return "", models.Invalid("password must be at least 6 characters")
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hashed), nil
}

func validRole(role string) bool {
	return role == models.RoleAdmin || models.IsTripRole(role)
}
