package repository

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/GunarsK-portfolio/auth-rpc-service/internal/models"
	"github.com/redis/go-redis/v9"
)

const userCacheKeyPrefix = "auth:user:email:"

// cachedUser mirrors models.User including the hash, which models.User
// hides from JSON.
type cachedUser struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	Name         string    `json:"name"`
	PasswordHash string    `json:"password_hash"`
	CreatedAt    time.Time `json:"created_at"`
}

type cachedUserRepository struct {
	next   UserRepository
	redis  *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

// NewCachedUserRepository wraps next with a redis read-through cache for
// lookups by email. Users are never updated, so entries only expire by ttl.
// Redis failures are logged and fall through to next.
func NewCachedUserRepository(next UserRepository, client *redis.Client, ttl time.Duration, logger *slog.Logger) UserRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &cachedUserRepository{
		next:   next,
		redis:  client,
		ttl:    ttl,
		logger: logger,
	}
}

func userCacheKey(email string) string {
	return userCacheKeyPrefix + email
}

func (r *cachedUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	key := userCacheKey(email)

	raw, err := r.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entry cachedUser
		if err := json.Unmarshal(raw, &entry); err == nil {
			return &models.User{
				ID:           entry.ID,
				Email:        entry.Email,
				Name:         entry.Name,
				PasswordHash: entry.PasswordHash,
				CreatedAt:    entry.CreatedAt,
			}, nil
		}
		r.logger.WarnContext(ctx, "discarding corrupt user cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		r.logger.WarnContext(ctx, "user cache read failed", "error", err)
	}

	user, err := r.next.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	r.store(ctx, user)
	return user, nil
}

func (r *cachedUserRepository) Create(ctx context.Context, user *models.User) error {
	return r.next.Create(ctx, user)
}

func (r *cachedUserRepository) store(ctx context.Context, user *models.User) {
	payload, err := json.Marshal(cachedUser{
		ID:           user.ID,
		Email:        user.Email,
		Name:         user.Name,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	})
	if err != nil {
		return
	}
	if err := r.redis.Set(ctx, userCacheKey(user.Email), payload, r.ttl).Err(); err != nil {
		r.logger.WarnContext(ctx, "user cache write failed", "error", err)
	}
}
