package security

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStore(t *testing.T) (*RedisForgeryStore, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisForgeryStore(client, 15*time.Minute), mr
}

func TestRedisStoreSingleUse(t *testing.T) {
	store, _ := newRedisStore(t)

	token, err := store.Issue()
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	if !store.Validate(token) {
		t.Fatal("fresh token must validate")
	}
	if store.Validate(token) {
		t.Fatal("token must not validate twice")
	}
}

func TestRedisStoreRejectsUnknownToken(t *testing.T) {
	store, _ := newRedisStore(t)

	if store.Validate("") {
		t.Fatal("empty token must not validate")
	}
	if store.Validate("deadbeef") {
		t.Fatal("unknown token must not validate")
	}
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newRedisStore(t)

	token, err := store.Issue()
	if err != nil {
		t.Fatalf("issue failed: %v", err)
	}

	mr.FastForward(16 * time.Minute)
	if store.Validate(token) {
		t.Fatal("expired token must not validate")
	}
}
