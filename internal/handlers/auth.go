// Package handlers contains the message handlers and ops HTTP handlers for the auth service.
package handlers

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/GunarsK-portfolio/auth-rpc-service/internal/rpc"
	"github.com/GunarsK-portfolio/auth-rpc-service/internal/service"
)

// Message patterns served by AuthHandler.
const (
	PatternRegister = "auth.register.user"
	PatternLogin    = "auth.login.user"
	PatternVerify   = "auth.verify.user"
)

// AuthHandler handles authentication RPC messages.
type AuthHandler struct {
	authService service.AuthService
	binder      *Binder
}

// NewAuthHandler creates a new AuthHandler instance.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		binder:      NewBinder(),
	}
}

// RegisterRequest represents the register payload.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Name     string `json:"name" validate:"required"`
	Password string `json:"password" validate:"required,max=72"`
}

// LoginRequest represents the login payload.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// VerifyRequest represents the token verification payload.
type VerifyRequest struct {
	Token string `json:"token" validate:"required"`
}

// Register handles auth.register.user.
func (h *AuthHandler) Register(ctx context.Context, payload json.RawMessage) (any, error) {
	var req RegisterRequest
	if err := h.binder.Bind(payload, &req); err != nil {
		return nil, err
	}

	response, err := h.authService.Register(ctx, req.Email, req.Name, req.Password)
	if err != nil {
		return nil, toRPCError(err)
	}
	return response, nil
}

// Login handles auth.login.user.
func (h *AuthHandler) Login(ctx context.Context, payload json.RawMessage) (any, error) {
	var req LoginRequest
	if err := h.binder.Bind(payload, &req); err != nil {
		return nil, err
	}

	response, err := h.authService.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, toRPCError(err)
	}
	return response, nil
}

// Verify handles auth.verify.user. Any payload problem is reported as an
// invalid token.
func (h *AuthHandler) Verify(ctx context.Context, payload json.RawMessage) (any, error) {
	var req VerifyRequest
	if err := h.binder.Bind(payload, &req); err != nil {
		return nil, rpc.Unauthorized("Invalid token")
	}

	response, err := h.authService.Verify(ctx, req.Token)
	if err != nil {
		return nil, toRPCError(err)
	}
	return response, nil
}

// toRPCError maps workflow errors onto envelopes. Unknown errors are
// returned unchanged and reported as internal errors by the rpc server.
func toRPCError(err error) error {
	switch {
	case errors.Is(err, service.ErrUserExists):
		return rpc.BadRequest("User already exists")
	case errors.Is(err, service.ErrPasswordTooLong):
		return rpc.BadRequest("password must be shorter than or equal to 72 bytes")
	case errors.Is(err, service.ErrInvalidCredentials):
		return rpc.BadRequest("Invalid credentials")
	case errors.Is(err, service.ErrInvalidToken):
		return rpc.Unauthorized("Invalid token")
	default:
		return err
	}
}
