package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/GunarsK-portfolio/auth-rpc-service/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the minimum HMAC secret size for HS256.
const MinSecretLength = 32

var (
	// ErrWeakSecret is returned for signing secrets shorter than MinSecretLength.
	ErrWeakSecret = fmt.Errorf("jwt secret must be at least %d bytes", MinSecretLength)
	// ErrInvalidExpiry is returned for non-positive token lifetimes.
	ErrInvalidExpiry = errors.New("jwt expiry must be positive")
)

// Claims represents JWT token claims. The identity fields sit at the top
// level of the payload next to the registered claims.
type Claims struct {
	UserID string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	jwt.RegisteredClaims
}

// TokenService signs and verifies session tokens.
type TokenService interface {
	Sign(user models.UserInfo) (string, error)
	Verify(tokenString string) (*Claims, error)
	GetExpiry() time.Duration
}

type jwtService struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// NewJWTService creates an HS256 TokenService.
func NewJWTService(secret string, expiry time.Duration) (TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, ErrWeakSecret
	}
	if expiry <= 0 {
		return nil, ErrInvalidExpiry
	}
	return &jwtService{
		secret: []byte(secret),
		expiry: expiry,
		now:    time.Now,
	}, nil
}

func (s *jwtService) GetExpiry() time.Duration {
	return s.expiry
}

func (s *jwtService) Sign(user models.UserInfo) (string, error) {
	now := s.now()
	claims := Claims{
		UserID: user.ID,
		Email:  user.Email,
		Name:   user.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (s *jwtService) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*Claims); ok && token.Valid {
		return claims, nil
	}

	return nil, errors.New("invalid token")
}

// Identity returns the claim fields without the registered timing claims.
func (c *Claims) Identity() models.UserInfo {
	return models.UserInfo{
		ID:    c.UserID,
		Email: c.Email,
		Name:  c.Name,
	}
}
