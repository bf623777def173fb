package session

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process. Values are stored encoded so
// callers never share maps with the store.
type MemoryStore struct {
	mu       sync.Mutex
	sessions map[string]memoryEntry
	now      func() time.Time
}

type memoryEntry struct {
	raw     []byte
	expires time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(ctx context.Context, id string) (map[string]any, error) {
	s.mu.Lock()
	e, ok := s.sessions[id]
	if ok && !s.now().Before(e.expires) {
		delete(s.sessions, id)
		ok = false
	}
	s.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return decodeValues(e.raw)
}

func (s *MemoryStore) Put(ctx context.Context, id string, values map[string]any, expires time.Time) error {
	raw, err := encodeValues(values)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.sessions[id] = memoryEntry{raw: raw, expires: expires}
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Sweep(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	var n int64
	for id, e := range s.sessions {
		if !now.Before(e.expires) {
			delete(s.sessions, id)
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
