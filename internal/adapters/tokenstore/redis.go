package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const keyPrefix = "filmflare:session:"

// RedisStore keeps the token under a per-browsing-session key with a sliding
// TTL, so it disappears once the session goes idle.
type RedisStore struct {
	client *goredis.Client
	key    string
	ttl    time.Duration
}

// NewRedisStore creates a store for one browsing session.
func NewRedisStore(client *goredis.Client, sessionKey string, ttl time.Duration) (*RedisStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	sessionKey = strings.TrimSpace(sessionKey)
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty")
	}
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{
		client: client,
		key:    keyPrefix + sessionKey + ":access_token",
		ttl:    ttl,
	}, nil
}

// Load returns the stored token and renews its TTL.
func (s *RedisStore) Load(ctx context.Context) (string, error) {
	token, err := s.client.GetEx(ctx, s.key, s.ttl).Result()
	if errors.Is(err, goredis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load session token: %w", err)
	}
	return token, nil
}

func (s *RedisStore) Save(ctx context.Context, token string) error {
	if err := s.client.Set(ctx, s.key, token, s.ttl).Err(); err != nil {
		return fmt.Errorf("save session token: %w", err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return fmt.Errorf("clear session token: %w", err)
	}
	return nil
}
