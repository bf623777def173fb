package demo

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"strings"
	"sync"
)

// Store errors.
var (
	ErrEmailTaken         = errors.New("demo: email already registered")
	ErrInvalidCredentials = errors.New("demo: invalid credentials")
)

// UserStore persists demo accounts.
type UserStore interface {
	Create(ctx context.Context, name, email, password string) error
	Authenticate(ctx context.Context, email, password string) (string, error)
}

// MemoryUsers is an in-memory UserStore.
type MemoryUsers struct {
	mu    sync.RWMutex
	users map[string]memoryUser
}

type memoryUser struct {
	name string
	hash [32]byte
}

// NewMemoryUsers creates an empty store.
func NewMemoryUsers() *MemoryUsers {
	return &MemoryUsers{users: make(map[string]memoryUser)}
}

func (s *MemoryUsers) Create(ctx context.Context, name, email, password string) error {
	email = strings.ToLower(email)
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[email]; exists {
		return ErrEmailTaken
	}
	s.users[email] = memoryUser{name: name, hash: sha256.Sum256([]byte(password))}
	return nil
}

// Authenticate returns the account name.
func (s *MemoryUsers) Authenticate(ctx context.Context, email, password string) (string, error) {
	s.mu.RLock()
	u, ok := s.users[strings.ToLower(email)]
	s.mu.RUnlock()
	hash := sha256.Sum256([]byte(password))
	if !ok || subtle.ConstantTimeCompare(u.hash[:], hash[:]) != 1 {
		return "", ErrInvalidCredentials
	}
	return u.name, nil
}

// StatsSource supplies the numbers shown by Stats.
type StatsSource interface {
	Stats(ctx context.Context, rangeName string) (map[string]int, error)
}

// StaticStats returns fixed numbers.
type StaticStats map[string]int

func (s StaticStats) Stats(ctx context.Context, rangeName string) (map[string]int, error) {
	out := make(map[string]int, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out, nil
}
