package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/spec-kit/member-session/internal/domain"
)

// ErrSessionNotFound is returned when no session record exists for a key.
var ErrSessionNotFound = errors.New("session not found")

const (
	sessionKeyPrefix    = "session:"
	sessionAccessField  = "access"
	sessionRefreshField = "refresh"
)

// SessionRepository stores the currently valid token pair per session key.
// Writes overwrite; the last writer wins.
type SessionRepository interface {
	SaveAccessToken(ctx context.Context, key domain.SessionKey, token string) error
	SaveRefreshToken(ctx context.Context, key domain.SessionKey, token string) error
	Find(ctx context.Context, key domain.SessionKey) (*domain.SessionRecord, error)
	Delete(ctx context.Context, key domain.SessionKey) error
}

type sessionRepository struct {
	client    *redis.Client
	retention time.Duration
}

// NewSessionRepository returns a Redis-backed implementation. A positive
// retention sets an expiry on the record after every write.
func NewSessionRepository(client *redis.Client, retention time.Duration) SessionRepository {
	return &sessionRepository{client: client, retention: retention}
}

func (r *sessionRepository) SaveAccessToken(ctx context.Context, key domain.SessionKey, token string) error {
	return r.saveField(ctx, key, sessionAccessField, token)
}

func (r *sessionRepository) SaveRefreshToken(ctx context.Context, key domain.SessionKey, token string) error {
	return r.saveField(ctx, key, sessionRefreshField, token)
}

func (r *sessionRepository) saveField(ctx context.Context, key domain.SessionKey, field, token string) error {
	redisKey := sessionRedisKey(key)
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisKey, field, token)
		if r.retention > 0 {
			pipe.Expire(ctx, redisKey, r.retention)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis session %s set: %w", field, err)
	}
	return nil
}

func (r *sessionRepository) Find(ctx context.Context, key domain.SessionKey) (*domain.SessionRecord, error) {
	values, err := r.client.HGetAll(ctx, sessionRedisKey(key)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis session get: %w", err)
	}
	if len(values) == 0 {
		return nil, ErrSessionNotFound
	}
	return &domain.SessionRecord{
		Key:          key,
		AccessToken:  values[sessionAccessField],
		RefreshToken: values[sessionRefreshField],
	}, nil
}

func (r *sessionRepository) Delete(ctx context.Context, key domain.SessionKey) error {
	if err := r.client.Del(ctx, sessionRedisKey(key)).Err(); err != nil {
		return fmt.Errorf("redis session delete: %w", err)
	}
	return nil
}

func sessionRedisKey(key domain.SessionKey) string {
	return sessionKeyPrefix + string(key)
}
