package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"fleet-mileage/internal/models"
	"fleet-mileage/internal/repository"
	"fleet-mileage/pkg/jwt"

	"golang.org/x/crypto/bcrypt"
)

type AuthService struct {
	users   repository.UserStore
	jwtUtil *jwt.JWTUtil
}

func NewAuthService(users repository.UserStore, jwtUtil *jwt.JWTUtil) *AuthService {
	return &AuthService{
		users:   users,
		jwtUtil: jwtUtil,
	}
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type RefreshRequest struct {
	Token string `json:"token" validate:"required"`
}

type LoginResponse struct {
	User  *models.UserProfile `json:"user"`
	Token string              `json:"token"`
}

func (s *AuthService) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			return nil, models.ErrInvalidLogin
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return nil, models.ErrInvalidLogin
	}

	if !user.Active {
		return nil, models.ErrAccountInactive
	}

	now := time.Now()
	user.LastLogin = &now
	if _, err := s.users.Update(ctx, user); err != nil {
		log.Printf("Failed to record last login for %s: %v", user.ID.Hex(), err)
	}

	token, err := s.jwtUtil.GenerateToken(user.ID.Hex(), user.Email, user.Role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &LoginResponse{
		User:  user.Profile(),
		Token: token,
	}, nil
}

// Refresh reissues a token for an account that is still active. The role is
// re-read so role changes take effect.
func (s *AuthService) Refresh(ctx context.Context, tokenString string) (*LoginResponse, error) {
	claims, err := s.jwtUtil.ValidateToken(tokenString)
	if err != nil {
		return nil, models.ErrInvalidLogin
	}

	user, err := s.activeUser(ctx, claims.UserID)
	if err != nil {
		return nil, err
	}

	token := tokenString
	if user.Role != claims.Role || user.Email != claims.Email {
		token, err = s.jwtUtil.GenerateToken(user.ID.Hex(), user.Email, user.Role)
	} else {
		token, err = s.jwtUtil.RefreshToken(tokenString)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}

	return &LoginResponse{
		User:  user.Profile(),
		Token: token,
	}, nil
}

func (s *AuthService) Profile(ctx context.Context, userID string) (*models.UserProfile, error) {
	user, err := s.activeUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	return user.Profile(), nil
}

func (s *AuthService) activeUser(ctx context.Context, userID string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, models.ErrAccountInactive
	}
	return user, nil
}
