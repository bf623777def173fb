package livecmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/pthm/livecmp/lib/protocol"
)

// DefaultMaxBody bounds the size of an update request body.
const DefaultMaxBody = 1 << 20

// Registration is a registered component name.
type Registration struct {
	name      string
	factory   Factory
	sensitive bool
}

// Sensitive seals the component's lazy mount parameters with AES-GCM
// instead of signing them, making them opaque to the client.
func (r *Registration) Sensitive() *Registration {
	r.sensitive = true
	return r
}

// Name returns the registered name.
func (r *Registration) Name() string { return r.name }

// Registry maps component names to factories and serves the update
// endpoint and full pages.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*Registration
	encoder  *Encoder
	manager  *Manager
	sessions Sessions
	maxBody  int64

	// OnError is called for failures that are not answered in-band: bad
	// payloads, checksum failures, render errors and unhandled action
	// errors outside debug mode.
	OnError func(http.ResponseWriter, *http.Request, error)
}

// NewRegistry creates a registry. The key signs and seals lazy mount
// parameters and must be stable across server restarts.
func NewRegistry(key []byte, opts ...Option) *Registry {
	enc, err := NewEncoder(key)
	if err != nil {
		panic(fmt.Sprintf("livecmp: failed to create encoder: %v", err))
	}

	reg := &Registry{
		entries: make(map[string]*Registration),
		encoder: enc,
		maxBody: DefaultMaxBody,
	}
	reg.manager = newManager(reg, opts...)

	reg.OnError = func(w http.ResponseWriter, r *http.Request, err error) {
		switch {
		case errors.Is(err, ErrUnknownComponent):
			http.Error(w, "Not found", http.StatusNotFound)
		case errors.Is(err, ErrInvalidPayload), errors.Is(err, ErrChecksum):
			http.Error(w, "Bad request", http.StatusBadRequest)
		default:
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
	}

	return reg
}

// Add registers a component factory under name.
// Panics if the name is empty or already registered.
//
//	reg.Add("counter", demo.NewCounter)
//	reg.Add("billing", billing.New).Sensitive()
func (reg *Registry) Add(name string, factory Factory) *Registration {
	if name == "" {
		panic("livecmp: component name must not be empty")
	}
	reg.mu.Lock()
	defer reg.mu.Unlock()

	if _, exists := reg.entries[name]; exists {
		panic(fmt.Sprintf("livecmp: component %q registered twice", name))
	}
	r := &Registration{name: name, factory: factory}
	reg.entries[name] = r
	return r
}

func (reg *Registry) lookup(name string) (*Registration, bool) {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	r, ok := reg.entries[name]
	return r, ok
}

// Names returns the registered component names, sorted.
func (reg *Registry) Names() []string {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	names := make([]string, 0, len(reg.entries))
	for name := range reg.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Describe instantiates name and reports its declared fields and actions.
func (reg *Registry) Describe(name string) (fields, actions []string, err error) {
	c, _, err := reg.manager.instantiate(name, "")
	if err != nil {
		return nil, nil, err
	}
	b := c.state()
	return b.FieldNames(), b.Actions(), nil
}

// Encoder returns the registry's encoder.
func (reg *Registry) Encoder() *Encoder { return reg.encoder }

// Manager returns the lifecycle manager.
func (reg *Registry) Manager() *Manager { return reg.manager }

// SetSessions installs the session loader used by Handler and PageHandler.
func (reg *Registry) SetSessions(s Sessions) { reg.sessions = s }

// SetMaxBody bounds the size of update request bodies.
func (reg *Registry) SetMaxBody(n int64) { reg.maxBody = n }

// scope prepares the per-request scope with the user's session.
func (reg *Registry) scope(w http.ResponseWriter, r *http.Request) (context.Context, func(context.Context) error, error) {
	if reg.sessions == nil {
		return WithScope(r.Context(), NewScope(nil)), nil, nil
	}
	sess, commit, err := reg.sessions.Load(w, r)
	if err != nil {
		return nil, nil, fmt.Errorf("livecmp: load session: %w", err)
	}
	return WithScope(r.Context(), NewScope(sess)), commit, nil
}

// Handler returns the update endpoint. Mount it at protocol.DefaultEndpoint
// ("/live/update") unless the client runtime is configured otherwise.
//
// Requests must be POSTs carrying X-Live-Request: true. Cross-origin
// requests cannot set custom headers without a CORS preflight, so the
// header doubles as CSRF protection.
func (reg *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.Header().Set("Allow", http.MethodPost)
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		if r.Header.Get(protocol.HeaderRequest) != "true" {
			http.Error(w, "Forbidden: live request header required", http.StatusForbidden)
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, reg.maxBody))
		if err != nil {
			reg.fail(w, r, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
			return
		}
		p, err := protocol.DecodeEnvelope(body)
		if errors.Is(err, protocol.ErrNoPayload) {
			writeJSON(w, &Response{Error: "No payload"})
			return
		}
		if err != nil {
			reg.fail(w, r, fmt.Errorf("%w: %v", ErrInvalidPayload, err))
			return
		}

		ctx, commit, err := reg.scope(w, r)
		if err != nil {
			reg.fail(w, r, err)
			return
		}

		resp, err := reg.manager.HandleRequest(ctx, p)
		if err != nil {
			reg.fail(w, r, err)
			return
		}
		if commit != nil {
			if err := commit(ctx); err != nil {
				reg.manager.logger.Warn("session commit failed", "error", err)
			}
		}
		writeJSON(w, resp)
	})
}

// ParamsFunc extracts route parameters for a full-page render.
type ParamsFunc func(r *http.Request) map[string]any

// QueryParams uses the first value of every query parameter.
func QueryParams(r *http.Request) map[string]any {
	params := map[string]any{}
	for k, v := range r.URL.Query() {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}
	return params
}

// PageHandler serves a component as a full page. A redirect requested
// during Mount becomes an HTTP redirect.
//
//	mux.Handle("/counter", reg.PageHandler("counter", nil))
//	r.Get("/users/{id}", reg.PageHandler("profile", func(r *http.Request) map[string]any {
//	    return map[string]any{"userId": chi.URLParam(r, "id")}
//	}).ServeHTTP)
func (reg *Registry) PageHandler(name string, params ParamsFunc) http.Handler {
	if params == nil {
		params = QueryParams
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, commit, err := reg.scope(w, r)
		if err != nil {
			reg.failPage(w, r, err)
			return
		}

		res, err := reg.manager.RenderPage(ctx, name, params(r))
		if err != nil {
			reg.failPage(w, r, err)
			return
		}
		if commit != nil {
			if err := commit(ctx); err != nil {
				reg.manager.logger.Warn("session commit failed", "error", err)
			}
		}
		if res.Redirect != "" {
			http.Redirect(w, r, res.Redirect, http.StatusFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, res.HTML)
	})
}

// fail answers an update request that could not be completed.
func (reg *Registry) fail(w http.ResponseWriter, r *http.Request, err error) {
	reg.manager.logger.Error("update request failed", "path", r.URL.Path, "error", err)
	if reg.manager.debug {
		writeJSON(w, &Response{ErrorHTML: DiagnosticHTML(err)})
		return
	}
	reg.OnError(w, r, err)
}

func (reg *Registry) failPage(w http.ResponseWriter, r *http.Request, err error) {
	reg.manager.logger.Error("page render failed", "path", r.URL.Path, "error", err)
	if reg.manager.debug {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, DiagnosticHTML(err))
		return
	}
	reg.OnError(w, r, err)
}

func writeJSON(w http.ResponseWriter, resp *Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

// NewID returns a fresh component instance id.
func NewID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:20]
}
