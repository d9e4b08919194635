// Package security owns the anti-forgery token store: single-use,
// time-limited tokens presented alongside state-changing requests.
package security

import (
	"crypto/rand"
	"encoding/hex"
	"sync"
	"time"
)

// ForgeryTokenStore issues and single-use-validates anti-forgery tokens.
// Implementations must guarantee that of any number of concurrent
// Validate calls with the same token, at most one returns true.
type ForgeryTokenStore interface {
	Issue() (string, error)
	Validate(token string) bool
}

// MemoryForgeryStore keeps tokens in a mutex-guarded map. Expired entries
// are swept opportunistically on each Issue; Validate re-checks expiry
// rather than trusting map presence.
type MemoryForgeryStore struct {
	mu     sync.Mutex
	tokens map[string]time.Time
	ttl    time.Duration
	now    func() time.Time
}

func NewMemoryForgeryStore(ttl time.Duration) *MemoryForgeryStore {
	return &MemoryForgeryStore{
		tokens: make(map[string]time.Time),
		ttl:    ttl,
		now:    time.Now,
	}
}

func (s *MemoryForgeryStore) Issue() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	token := hex.EncodeToString(b)

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for t, expiry := range s.tokens {
		if now.After(expiry) {
			delete(s.tokens, t)
		}
	}

	s.tokens[token] = now.Add(s.ttl)
	return token, nil
}

func (s *MemoryForgeryStore) Validate(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	expiry, ok := s.tokens[token]
	if !ok {
		return false
	}

	delete(s.tokens, token)
	return s.now().Before(expiry)
}

// Len reports live entries, for tests and diagnostics.
func (s *MemoryForgeryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tokens)
}
