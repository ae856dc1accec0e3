// Package service implements the register, login and verify workflows.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/GunarsK-portfolio/auth-rpc-service/internal/models"
	"github.com/GunarsK-portfolio/auth-rpc-service/internal/repository"
	"github.com/google/uuid"
)

var (
	ErrUserExists         = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid token")
)

// AuthResponse is returned by every workflow operation.
type AuthResponse struct {
	User  models.UserInfo `json:"user"`
	Token string          `json:"token"`
}

type AuthService interface {
	Register(ctx context.Context, email, name, password string) (*AuthResponse, error)
	Login(ctx context.Context, email, password string) (*AuthResponse, error)
	Verify(ctx context.Context, token string) (*AuthResponse, error)
}

type authService struct {
	userRepo     repository.UserRepository
	hasher       PasswordHasher
	tokenService TokenService
}

func NewAuthService(userRepo repository.UserRepository, hasher PasswordHasher, tokenService TokenService) AuthService {
	return &authService{
		userRepo:     userRepo,
		hasher:       hasher,
		tokenService: tokenService,
	}
}

func (s *authService) Register(ctx context.Context, email, name, password string) (*AuthResponse, error) {
	_, err := s.userRepo.FindByEmail(ctx, email)
	if err == nil {
		return nil, ErrUserExists
	}
	if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
	}
	if err := s.userRepo.Create(ctx, user); err != nil {
		// A concurrent register for the same email loses on the unique index.
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrUserExists
		}
		return nil, err
	}

	return s.issue(user.Info())
}

func (s *authService) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrUserNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	if err := s.hasher.Compare(user.PasswordHash, password); err != nil {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user.Info())
}

func (s *authService) Verify(_ context.Context, token string) (*AuthResponse, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	claims, err := s.tokenService.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return s.issue(claims.Identity())
}

func (s *authService) issue(user models.UserInfo) (*AuthResponse, error) {
	token, err := s.tokenService.Sign(user)
	if err != nil {
		return nil, err
	}
	return &AuthResponse{
		User:  user,
		Token: token,
	}, nil
}
