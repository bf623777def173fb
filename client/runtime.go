package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pthm/livecmp/lib/protocol"
)

// NativeBridge receives native calls from update responses.
type NativeBridge interface {
	Call(name string, detail any)
}

// NativeBridgeFunc adapts a function to NativeBridge.
type NativeBridgeFunc func(name string, detail any)

func (f NativeBridgeFunc) Call(name string, detail any) { f(name, detail) }

// NativeEvent is dispatched on the window when no bridge is set.
const NativeEvent = "live:native"

// PrefetchDelay is how long a pointer rests on a hover link before its
// target is prefetched.
const PrefetchDelay = 60 * time.Millisecond

// Option configures a Runtime.
type Option func(*Runtime)

// WithHTTPClient sets the HTTP client. Its jar, if any, carries the
// session cookie.
func WithHTTPClient(c *http.Client) Option {
	return func(r *Runtime) { r.http = c }
}

// WithEndpoint overrides the update endpoint found in the page config.
func WithEndpoint(path string) Option {
	return func(r *Runtime) { r.endpoint = path }
}

// WithClock sets the clock behind debounce and prefetch timers.
func WithClock(c Clock) Option {
	return func(r *Runtime) { r.clock = c }
}

// WithFrames sets the frame source of the scheduler.
func WithFrames(f FrameSource) Option {
	return func(r *Runtime) { r.frames = f }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runtime) { r.logger = l }
}

// WithConfirm answers live:confirm prompts. The default accepts all.
func WithConfirm(fn func(message string) bool) Option {
	return func(r *Runtime) { r.confirm = fn }
}

// WithNativeBridge receives native calls.
func WithNativeBridge(b NativeBridge) Option {
	return func(r *Runtime) { r.native = b }
}

// WithOverlay is called with diagnostic markup from debug responses and
// recognised fatal error pages.
func WithOverlay(fn func(markup string)) Option {
	return func(r *Runtime) { r.onOverlay = fn }
}

// WithLoading is called when the global loading indicator turns on or off.
func WithLoading(fn func(active bool)) Option {
	return func(r *Runtime) { r.onLoading = fn }
}

// Hooks (confirm, overlay, loading, native bridge, window listeners) run
// with the runtime locked and must not call back into it.

// Runtime is a headless live component runtime over one document.
type Runtime struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc

	base     *url.URL
	endpoint string
	http     *http.Client
	clock    Clock
	frames   FrameSource
	sched    *Scheduler
	logger   *slog.Logger

	confirm   func(string) bool
	native    NativeBridge
	onOverlay func(string)
	onLoading func(bool)

	doc        *html.Node
	location   *url.URL
	components map[string]*component
	listeners  map[*html.Node][]*listener
	windowBind []*windowBinding
	subs       map[string][]*subscription
	observed   map[*html.Node]bool
	debounce   map[*html.Node]*pendingTimer
	hover      map[*html.Node]*pendingTimer
	prefetch   map[string]string

	history []string
	pos     int
	scrollX int
	scrollY int

	overlay  string
	loading  int
	inflight int
	errs     []error
	nextSub  int
}

type component struct {
	id      string
	name    string
	el      *html.Node
	data    map[string]any
	seq     uint64
	applied uint64
}

type pendingTimer struct {
	timer Timer
	gen   uint64
}

// New creates a runtime for the site at baseURL.
func New(baseURL string, opts ...Option) (*Runtime, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("client: parse base url: %w", err)
	}
	r := &Runtime{
		base:       base,
		location:   base,
		clock:      realClock{},
		confirm:    func(string) bool { return true },
		components: map[string]*component{},
		listeners:  map[*html.Node][]*listener{},
		subs:       map[string][]*subscription{},
		observed:   map[*html.Node]bool{},
		debounce:   map[*html.Node]*pendingTimer{},
		hover:      map[*html.Node]*pendingTimer{},
		prefetch:   map[string]string{},
		pos:        -1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.http == nil {
		jar, _ := cookiejar.New(nil)
		r.http = &http.Client{Jar: jar, Timeout: 30 * time.Second}
	}
	if r.logger == nil {
		r.logger = slog.Default().With("component", "live-client")
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.sched = NewScheduler(r.frames, DefaultBudget)
	r.sched.OnPanic = func(v any) {
		r.mu.Lock()
		r.recordLocked(fmt.Errorf("client: task panicked: %v", v))
		r.mu.Unlock()
	}
	return r, nil
}

// Close aborts in-flight requests.
func (r *Runtime) Close() { r.cancel() }

// Scheduler returns the scheduler applying DOM updates.
func (r *Runtime) Scheduler() *Scheduler { return r.sched }

func (r *Runtime) resolveLocked(ref string) (*url.URL, error) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, err
	}
	return r.location.ResolveReference(u), nil
}

// Open loads path as a full page and initialises its components.
func (r *Runtime) Open(ctx context.Context, path string) error {
	r.mu.Lock()
	u, err := r.resolveLocked(path)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	body, final, err := r.fetchPage(ctx, u, false)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loadDocumentLocked(final, body, true)
}

// Load replaces the document with markup served at pageURL.
func (r *Runtime) Load(pageURL, markup string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.resolveLocked(pageURL)
	if err != nil {
		return err
	}
	return r.loadDocumentLocked(u, markup, true)
}

func (r *Runtime) loadDocumentLocked(u *url.URL, markup string, push bool) error {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("client: parse page: %w", err)
	}
	r.doc = doc
	r.location = u
	r.resetLocked()
	r.prefetch = map[string]string{}
	r.overlay = ""
	if push {
		r.pushHistoryLocked(u.String())
	}
	r.readConfigLocked()
	r.initLocked()
	return nil
}

// resetLocked forgets every component and binding of the document.
func (r *Runtime) resetLocked() {
	r.components = map[string]*component{}
	r.listeners = map[*html.Node][]*listener{}
	r.windowBind = nil
	r.observed = map[*html.Node]bool{}
}

// readConfigLocked picks the endpoint from window.LiveConfig unless one
// was configured.
func (r *Runtime) readConfigLocked() {
	if r.endpoint != "" {
		return
	}
	const prefix = "window.LiveConfig ="
	walk(r.doc, func(n *html.Node) bool {
		if n.Type != html.ElementNode || n.DataAtom != atom.Script {
			return true
		}
		src := strings.TrimSpace(textContent(n))
		if !strings.HasPrefix(src, prefix) {
			return false
		}
		var cfg struct {
			Endpoint string `json:"endpoint"`
		}
		raw := strings.TrimSuffix(strings.TrimSpace(strings.TrimPrefix(src, prefix)), ";")
		if json.Unmarshal([]byte(raw), &cfg) == nil && cfg.Endpoint != "" {
			r.endpoint = cfg.Endpoint
		}
		return false
	})
}

func (r *Runtime) endpointURL() *url.URL {
	ep := r.endpoint
	if ep == "" {
		ep = protocol.DefaultEndpoint
	}
	u, err := r.resolveLocked(ep)
	if err != nil {
		return r.location
	}
	return u
}

// initLocked registers every component in the document and starts lazy
// placeholders.
func (r *Runtime) initLocked() { r.initTreeLocked(r.doc) }

func (r *Runtime) initComponentLocked(el *html.Node) {
	raw, _ := getAttr(el, protocol.AttrData)
	var state protocol.State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		r.recordLocked(fmt.Errorf("client: bad %s: %w", protocol.AttrData, err))
		return
	}
	if state.Data == nil {
		state.Data = map[string]any{}
	}
	c := &component{id: state.ID, name: state.Name, el: el, data: state.Data}
	if prev := r.components[state.ID]; prev != nil {
		c.seq, c.applied = prev.seq, prev.applied
	}
	r.components[state.ID] = c
	r.attachLocked(el, state.ID)
}

func (r *Runtime) recordLocked(err error) {
	r.logger.Warn("live client error", "error", err)
	r.errs = append(r.errs, err)
}

func (r *Runtime) pushHistoryLocked(u string) {
	r.history = append(r.history[:r.pos+1], u)
	r.pos = len(r.history) - 1
}

// begin counts a background operation for Settle.
func (r *Runtime) beginLocked() { r.inflight++ }

func (r *Runtime) end() {
	r.mu.Lock()
	r.inflight--
	r.mu.Unlock()
}

func (r *Runtime) idle() bool {
	r.mu.Lock()
	busy := r.inflight > 0 || len(r.debounce) > 0 || len(r.hover) > 0
	r.mu.Unlock()
	return !busy && r.sched.Idle()
}

// Settle waits until no request, timer or scheduled task is pending.
func (r *Runtime) Settle(ctx context.Context) error {
	t := time.NewTicker(2 * time.Millisecond)
	defer t.Stop()
	for {
		// Two consecutive idle checks, so work handed between a
		// goroutine and the scheduler is not missed.
		if r.idle() && r.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

// HTML renders the current document.
func (r *Runtime) HTML() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return ""
	}
	return outerHTML(r.doc)
}

// Title returns the document title.
func (r *Runtime) Title() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if t := findElement(r.doc, atom.Title); t != nil {
		return textContent(t)
	}
	return ""
}

// URL returns the current location.
func (r *Runtime) URL() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.location.String()
}

// History returns the visited URLs and the current position.
func (r *Runtime) History() ([]string, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.history...), r.pos
}

// Find returns the outer HTML of the first element matching selector.
func (r *Runtime) Find(selector string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.queryLocked(selector)
	if err != nil {
		return "", false
	}
	return outerHTML(n), true
}

// Text returns the text content of the first element matching selector.
func (r *Runtime) Text(selector string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.queryLocked(selector)
	if err != nil {
		return ""
	}
	return textContent(n)
}

// Attr returns an attribute of the first element matching selector.
func (r *Runtime) Attr(selector, name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.queryLocked(selector)
	if err != nil {
		return "", false
	}
	return getAttr(n, name)
}

// Count returns how many elements match selector.
func (r *Runtime) Count(selector string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return 0
	}
	nodes, err := queryAll(r.doc, selector)
	if err != nil {
		return 0
	}
	return len(nodes)
}

// ErrNotFound is returned when a selector matches nothing.
var ErrNotFound = errors.New("client: no element matches selector")

func (r *Runtime) queryLocked(selector string) (*html.Node, error) {
	if r.doc == nil {
		return nil, ErrNotFound
	}
	n, err := query(r.doc, selector)
	if err != nil {
		return nil, fmt.Errorf("client: selector %q: %w", selector, err)
	}
	if n == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, selector)
	}
	return n, nil
}

// Components returns the ids of the registered components, sorted.
func (r *Runtime) Components() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	ids := make([]string, 0, len(r.components))
	for id := range r.components {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// State returns a copy of the mirrored state of the first component
// named name.
func (r *Runtime) State(name string) (map[string]any, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.componentByNameLocked(name)
	if c == nil {
		return nil, false
	}
	return copyState(c.data), true
}

// ID returns the id of the first component named name, in document order.
func (r *Runtime) ID(name string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := r.componentByNameLocked(name)
	if c == nil {
		return "", false
	}
	return c.id, true
}

func (r *Runtime) componentByNameLocked(name string) *component {
	var found *component
	walk(r.doc, func(n *html.Node) bool {
		if found != nil {
			return false
		}
		if id, ok := getAttr(n, protocol.AttrID); ok {
			if c := r.components[id]; c != nil && c.el == n && c.name == name {
				found = c
				return false
			}
		}
		return true
	})
	return found
}

func copyState(data map[string]any) map[string]any {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil
	}
	var out map[string]any
	_ = json.Unmarshal(raw, &out)
	return out
}

// Overlay returns the last diagnostic overlay shown.
func (r *Runtime) Overlay() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.overlay
}

// Errors returns the failures recorded so far.
func (r *Runtime) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errs...)
}

// Loading reports whether the global loading indicator is on.
func (r *Runtime) Loading() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.loading > 0
}

// ScrollTo records a scroll offset; navigation restores it.
func (r *Runtime) ScrollTo(x, y int) {
	r.mu.Lock()
	r.scrollX, r.scrollY = x, y
	r.mu.Unlock()
}

// Scroll returns the scroll offset.
func (r *Runtime) Scroll() (x, y int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.scrollX, r.scrollY
}
