package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"

	"github.com/pthm/livecmp/lib/protocol"
)

// fakeClock fires timers only when advanced.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock *fakeClock
	at    time.Time
	fn    func()
	done  bool
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(1700000000, 0)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	active := !t.done
	t.done = true
	return active
}

// Advance moves the clock and runs the timers that came due, in order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []*fakeTimer
	kept := c.timers[:0]
	for _, t := range c.timers {
		switch {
		case t.done:
		case !t.at.After(c.now):
			t.done = true
			due = append(due, t)
		default:
			kept = append(kept, t)
		}
	}
	c.timers = kept
	c.mu.Unlock()

	sort.SliceStable(due, func(i, j int) bool { return due[i].at.Before(due[j].at) })
	for _, t := range due {
		t.fn()
	}
}

// fakeSite serves fixed pages and answers update requests with respond.
type fakeSite struct {
	*httptest.Server

	mu       sync.Mutex
	pages    map[string]string
	payloads []protocol.Payload
	posts    []string
	gets     []string
	navGets  []string
	respond  func(n int, p protocol.Payload) (int, string)
}

func newFakeSite(t *testing.T) *fakeSite {
	t.Helper()
	s := &fakeSite{pages: map[string]string{}}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.Close)
	return s
}

func (s *fakeSite) serve(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		s.update(w, r)
		return
	}
	s.mu.Lock()
	s.gets = append(s.gets, r.URL.Path)
	if r.Header.Get(protocol.HeaderNavigate) == "true" {
		s.navGets = append(s.navGets, r.URL.Path)
	}
	page, ok := s.pages[r.URL.Path]
	s.mu.Unlock()

	switch {
	case r.URL.Path == "/moved":
		http.Redirect(w, r, "/b", http.StatusFound)
	case ok:
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, page)
	default:
		w.WriteHeader(http.StatusNotFound)
		_, _ = io.WriteString(w, `<html><head><title>Missing</title></head><body><p class="page">gone</p></body></html>`)
	}
}

func (s *fakeSite) update(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	p, err := protocol.DecodeEnvelope(body)
	if err != nil || r.Header.Get(protocol.HeaderRequest) != "true" {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}
	s.mu.Lock()
	s.payloads = append(s.payloads, p)
	s.posts = append(s.posts, r.URL.Path)
	n := len(s.payloads)
	respond := s.respond
	s.mu.Unlock()

	status, out := http.StatusOK, "{}"
	if respond != nil {
		status, out = respond(n, p)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, out)
}

func (s *fakeSite) setPage(path, markup string) {
	s.mu.Lock()
	s.pages[path] = markup
	s.mu.Unlock()
}

func (s *fakeSite) sent() []protocol.Payload {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]protocol.Payload(nil), s.payloads...)
}

func (s *fakeSite) postPaths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.posts...)
}

func (s *fakeSite) requested() (gets, navGets []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.gets...), append([]string(nil), s.navGets...)
}

func newRuntime(t *testing.T, base string, opts ...Option) *Runtime {
	t.Helper()
	opts = append([]Option{WithFrames(TickerFrames{Interval: time.Millisecond})}, opts...)
	r, err := New(base, opts...)
	require.NoError(t, err)
	t.Cleanup(r.Close)
	return r
}

func settle(t *testing.T, r *Runtime) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, r.Settle(ctx))
}

// liveRoot renders a component root the way the server does.
func liveRoot(tag, id, name string, data map[string]any, attrs, body string) string {
	if data == nil {
		data = map[string]any{}
	}
	state, _ := json.Marshal(protocol.State{ID: id, Name: name, Data: data})
	return `<` + tag + ` live:id="` + id + `" live:data="` + html.EscapeString(string(state)) + `"` + attrs + `>` + body + `</` + tag + `>`
}

func page(title, body string) string {
	return `<!DOCTYPE html><html><head><title>` + title + `</title></head><body>` + body + `</body></html>`
}

func encode(res protocol.Response) string {
	raw, _ := json.Marshal(res)
	return string(raw)
}

func params(t *testing.T, p protocol.Payload) []any {
	t.Helper()
	var out []any
	require.NoError(t, json.Unmarshal(p.Params, &out))
	return out
}
