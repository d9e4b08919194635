package security

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisForgeryPrefix = "csrf:"

// RedisForgeryStore backs the anti-forgery map with Redis so multiple
// instances can share it. GETDEL makes validation atomically single-use;
// Redis handles expiry itself, so there is nothing to sweep.
type RedisForgeryStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisForgeryStore(client *redis.Client, ttl time.Duration) *RedisForgeryStore {
	return &RedisForgeryStore{client: client, ttl: ttl}
}

func (s *RedisForgeryStore) Issue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := s.client.Set(ctx, redisForgeryPrefix+token, "1", s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

func (s *RedisForgeryStore) Validate(token string) bool {
	if token == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	val, err := s.client.GetDel(ctx, redisForgeryPrefix+token).Result()
	if err != nil {
		return false
	}
	return val != ""
}
