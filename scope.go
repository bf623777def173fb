package livecmp

import (
	"context"
	"net/http"
	"sync"

	"github.com/pthm/livecmp/lib/protocol"
)

// Session is the slice of a user session components can reach.
type Session interface {
	Get(key string) (any, bool)
	Set(key string, value any)
	Remove(key string)
}

// Sessions loads the session for a request. The returned commit function
// persists changes and is called once the response is known.
type Sessions interface {
	Load(w http.ResponseWriter, r *http.Request) (Session, func(ctx context.Context) error, error)
}

// SessionsFunc adapts a function to Sessions.
type SessionsFunc func(w http.ResponseWriter, r *http.Request) (Session, func(ctx context.Context) error, error)

// Load calls f.
func (f SessionsFunc) Load(w http.ResponseWriter, r *http.Request) (Session, func(ctx context.Context) error, error) {
	return f(w, r)
}

// Scope is per-request state shared by every component rendered for one
// request: the native call queue and the session.
type Scope struct {
	mu      sync.Mutex
	natives []protocol.Event
	session Session
}

type scopeKey struct{}

// NewScope returns a scope bound to session. A nil session is replaced by
// an in-memory one that lives as long as the scope.
func NewScope(session Session) *Scope {
	if session == nil {
		session = &memorySession{values: map[string]any{}}
	}
	return &Scope{session: session}
}

// WithScope returns a context carrying s.
func WithScope(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// ScopeFrom returns the scope carried by ctx, or nil.
func ScopeFrom(ctx context.Context) *Scope {
	s, _ := ctx.Value(scopeKey{}).(*Scope)
	return s
}

// ensureScope returns ctx with a scope, creating one when ctx has none.
func ensureScope(ctx context.Context) (context.Context, *Scope) {
	if s := ScopeFrom(ctx); s != nil {
		return ctx, s
	}
	s := NewScope(nil)
	return WithScope(ctx, s), s
}

// CallNative queues a call to the host's native bridge. Calls are drained
// into the response of the current request, in order.
//
//	livecmp.CallNative(ctx, "camera.open", map[string]any{"facing": "back"})
//
// Without a scope in ctx the call is dropped.
func CallNative(ctx context.Context, name string, payload any) {
	s := ScopeFrom(ctx)
	if s == nil {
		return
	}
	s.mu.Lock()
	s.natives = append(s.natives, protocol.Event{Name: name, Detail: payload})
	s.mu.Unlock()
}

// Drain returns the queued native calls and empties the queue.
func (s *Scope) Drain() []protocol.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.natives
	s.natives = nil
	return out
}

// Session returns the scope's session.
func (s *Scope) Session() Session { return s.session }

// SessionFrom returns the session of the request in ctx. Without a scope
// an empty throwaway session is returned.
func SessionFrom(ctx context.Context) Session {
	if s := ScopeFrom(ctx); s != nil {
		return s.session
	}
	return &memorySession{values: map[string]any{}}
}

type memorySession struct {
	mu     sync.Mutex
	values map[string]any
}

func (m *memorySession) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *memorySession) Set(key string, value any) {
	m.mu.Lock()
	m.values[key] = value
	m.mu.Unlock()
}

func (m *memorySession) Remove(key string) {
	m.mu.Lock()
	delete(m.values, key)
	m.mu.Unlock()
}
