package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pthm/livecmp"
)

// Manager loads sessions from a Store by cookie. It implements
// livecmp.Sessions:
//
//	reg.SetSessions(session.NewManager(store, session.WithTTL(time.Hour)))
type Manager struct {
	store  Store
	cookie string
	ttl    time.Duration
	now    func() time.Time
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithCookieName sets the session cookie name. Default "live_session".
func WithCookieName(name string) ManagerOption {
	return func(m *Manager) { m.cookie = name }
}

// WithTTL sets how long an untouched session lives. Default 24h.
func WithTTL(ttl time.Duration) ManagerOption {
	return func(m *Manager) { m.ttl = ttl }
}

// NewManager creates a Manager backed by store.
func NewManager(store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:  store,
		cookie: "live_session",
		ttl:    24 * time.Hour,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load returns the request's session. Unknown or expired ids start a new,
// empty session. The commit function writes the session back and sets the
// cookie when it changed; it must run before the response body is written.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) (livecmp.Session, func(ctx context.Context) error, error) {
	s := &Values{values: map[string]any{}}
	if c, err := r.Cookie(m.cookie); err == nil && c.Value != "" {
		values, err := m.store.Get(r.Context(), c.Value)
		switch {
		case err == nil:
			s.id, s.values, s.existed = c.Value, values, true
		case !errors.Is(err, ErrNotFound):
			return nil, nil, err
		}
	}

	commit := func(ctx context.Context) error {
		s.mu.Lock()
		defer s.mu.Unlock()
		if !s.dirty {
			return nil
		}
		if len(s.values) == 0 {
			if !s.existed {
				return nil
			}
			if err := m.store.Delete(ctx, s.id); err != nil {
				return err
			}
			http.SetCookie(w, m.newCookie(r, "", -1))
			return nil
		}
		if s.id == "" {
			s.id = uuid.NewString()
		}
		if err := m.store.Put(ctx, s.id, s.values, m.now().Add(m.ttl)); err != nil {
			return fmt.Errorf("session: save: %w", err)
		}
		s.existed, s.dirty = true, false
		http.SetCookie(w, m.newCookie(r, s.id, int(m.ttl.Seconds())))
		return nil
	}
	return s, commit, nil
}

func (m *Manager) newCookie(r *http.Request, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     m.cookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	}
}

// Values is the session handed to components.
type Values struct {
	mu      sync.Mutex
	id      string
	values  map[string]any
	existed bool
	dirty   bool
}

func (s *Values) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Values) Set(key string, value any) {
	s.mu.Lock()
	s.values[key] = value
	s.dirty = true
	s.mu.Unlock()
}

func (s *Values) Remove(key string) {
	s.mu.Lock()
	if _, ok := s.values[key]; ok {
		delete(s.values, key)
		s.dirty = true
	}
	s.mu.Unlock()
}

// ID returns the session id, empty until the first commit.
func (s *Values) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.id
}
