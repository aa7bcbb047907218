package repository

import (
	"context"
	"errors"
	"time"

	"fungiscan/internal/apperr"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "session:"

// SessionRepository maps opaque login tokens to usernames. Expiry is left to Redis.
type SessionRepository interface {
	Create(ctx context.Context, token, username string, ttl time.Duration) error
	Get(ctx context.Context, token string) (string, error)
	Delete(ctx context.Context, token string) error
}

type sessionRepository struct {
	client *redis.Client
}

func NewSessionRepository(client *redis.Client) SessionRepository {
	return &sessionRepository{client: client}
}

func (r *sessionRepository) Create(ctx context.Context, token, username string, ttl time.Duration) error {
	if err := r.client.Set(ctx, sessionKeyPrefix+token, username, ttl).Err(); err != nil {
		return apperr.Store("create session", err)
	}
	return nil
}

func (r *sessionRepository) Get(ctx context.Context, token string) (string, error) {
	username, err := r.client.Get(ctx, sessionKeyPrefix+token).Result()
	if errors.Is(err, redis.Nil) {
		return "", apperr.ErrNotFound
	}
	if err != nil {
		return "", apperr.Store("get session", err)
	}
	return username, nil
}

func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	if err := r.client.Del(ctx, sessionKeyPrefix+token).Err(); err != nil {
		return apperr.Store("delete session", err)
	}
	return nil
}
