package livecmp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/a-h/templ"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pthm/livecmp/lib/protocol"
	"github.com/pthm/livecmp/lib/validation"
)

const tracerName = "github.com/pthm/livecmp"

// NativeSink receives the native calls drained at the end of every update
// request, in addition to them being returned to the client.
type NativeSink interface {
	PublishNative(ctx context.Context, component string, calls []Event) error
}

// Manager runs the component lifecycle for update requests, full pages and
// embedded components. It is safe for concurrent use; every request works
// on a fresh component instance.
type Manager struct {
	registry *Registry
	logger   *slog.Logger
	debug    bool
	metrics  *Metrics
	tracer   trace.Tracer
	layout   Layout
	sink     NativeSink
	scripts  ScriptsConfig
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = l.With("component", "livecmp")
	}
}

// WithDebug renders unrecovered failures as a diagnostic overlay instead
// of passing them to the registry's OnError.
func WithDebug(debug bool) Option {
	return func(m *Manager) {
		m.debug = debug
	}
}

// WithMetrics records Prometheus metrics.
func WithMetrics(metrics *Metrics) Option {
	return func(m *Manager) {
		m.metrics = metrics
	}
}

// WithTracerProvider sets the OpenTelemetry tracer provider. Defaults to
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(m *Manager) {
		m.tracer = tp.Tracer(tracerName)
	}
}

// WithLayout sets the default full-page layout.
func WithLayout(l Layout) Option {
	return func(m *Manager) {
		m.layout = l
	}
}

// WithNativeSink forwards drained native calls to sink.
func WithNativeSink(sink NativeSink) Option {
	return func(m *Manager) {
		m.sink = sink
	}
}

// WithScripts configures the client runtime tags rendered by Scripts.
func WithScripts(cfg ScriptsConfig) Option {
	return func(m *Manager) {
		m.scripts = cfg
	}
}

func newManager(reg *Registry, opts ...Option) *Manager {
	m := &Manager{
		registry: reg,
		logger:   slog.Default().With("component", "livecmp"),
		tracer:   otel.Tracer(tracerName),
		layout:   DefaultLayout,
		scripts:  DefaultScriptsConfig(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Logger returns the manager's logger.
func (m *Manager) Logger() *slog.Logger { return m.logger }

// Debug reports whether debug mode is on.
func (m *Manager) Debug() bool { return m.debug }

// instantiate creates and binds a component.
func (m *Manager) instantiate(name, id string) (Component, *Registration, error) {
	reg, ok := m.registry.lookup(name)
	if !ok {
		return nil, nil, fmt.Errorf("%w: %q", ErrUnknownComponent, name)
	}
	c := reg.factory()
	b := c.state()
	b.bind(name, c.Fields())
	if id == "" {
		id = NewID()
	}
	b.id = id
	return c, reg, nil
}

// HandleRequest runs one update request:
//
//  1. resolve and instantiate the component, Boot
//  2. hydrate from the client state, or for a lazy load from the verified
//     mount parameters followed by Mount; Hydrated
//  3. run the action unless it is $refresh or $commit
//  4. return the redirect if one was requested
//  5. Dehydrated, render with injected attributes, serialize
//
// Unknown components and actions produce a Response with Error set and a
// nil error. Field errors returned by the action are merged into the
// rendered state. Other action failures go to the component's
// ExceptionHandler and, unless it stops them, are returned as *ActionError.
func (m *Manager) HandleRequest(ctx context.Context, p Payload) (resp *Response, err error) {
	start := time.Now()
	outcome := outcomeOK

	ctx, span := m.tracer.Start(ctx, "livecmp.HandleRequest", trace.WithAttributes(
		attribute.String("live.component", p.Name),
		attribute.String("live.action", p.Action),
		attribute.Bool("live.lazy", p.LazyLoad),
	))
	defer func() {
		if err != nil {
			outcome = outcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.SetAttributes(attribute.String("live.outcome", outcome))
		span.End()
		m.metrics.observeRequest(p.Name, outcome, time.Since(start))
	}()

	ctx, scope := ensureScope(ctx)

	c, reg, err := m.instantiate(p.Name, p.ID)
	if err != nil {
		outcome = outcomeDispatch
		m.logger.Warn("unknown component", "name", p.Name)
		return &Response{Error: err.Error()}, nil
	}
	b := c.state()

	if h, ok := c.(Booter); ok {
		h.Boot(ctx)
	}

	if p.LazyLoad {
		params, err := m.mountParams(reg, p)
		if err != nil {
			return nil, fmt.Errorf("livecmp: lazy load %s: %w", p.Name, err)
		}
		if err := b.Hydrate(params); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
		}
		if h, ok := c.(Mounter); ok {
			h.Mount(ctx, params)
		}
	} else if err := b.Hydrate(p.Data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}

	if h, ok := c.(HydratedHook); ok {
		h.Hydrated(ctx)
	}

	if p.Action != "" && !protocol.IsReserved(p.Action) {
		act, ok := b.actions[p.Action]
		if !ok {
			outcome = outcomeDispatch
			m.logger.Warn("unknown action", "name", p.Name, "action", p.Action)
			return &Response{Error: fmt.Sprintf("%v: %q on %q", ErrUnknownAction, p.Action, p.Name)}, nil
		}

		args, err := decodeArgs(p.Params)
		if err != nil {
			return nil, err
		}

		if err := invoke(ctx, p.Name, p.Action, act, args); err != nil {
			var verr *validation.Error
			if errors.As(err, &verr) {
				outcome = outcomeValidation
				b.mergeErrors(verr.Fields)
				m.metrics.observeValidation(p.Name, p.Action)
			} else {
				stop := false
				if h, ok := c.(ExceptionHandler); ok {
					h.Exception(ctx, err, &stop)
				}
				if !stop {
					return nil, err
				}
				m.logger.Debug("exception handled by component", "name", p.Name, "action", p.Action, "error", err)
			}
		}
	}

	if r := b.redirect; r != nil {
		outcome = outcomeRedirect
		if dropped := scope.Drain(); len(dropped) > 0 {
			m.logger.Debug("native calls dropped by redirect", "name", p.Name, "count", len(dropped))
		}
		return &Response{Redirect: r.URL, Navigate: r.Navigate}, nil
	}

	if h, ok := c.(DehydratedHook); ok {
		h.Dehydrated(ctx)
	}

	out, err := m.output(ctx, c)
	if err != nil {
		return nil, err
	}

	natives := scope.Drain()
	for _, n := range natives {
		m.metrics.observeNative(n.Name)
	}
	if m.sink != nil && len(natives) > 0 {
		if err := m.sink.PublishNative(ctx, p.Name, natives); err != nil {
			m.logger.Warn("native sink publish failed", "name", p.Name, "error", err)
		}
	}

	return &Response{
		HTML:         out,
		Data:         b.Snapshot(),
		Events:       b.Events(),
		NativeEvents: natives,
	}, nil
}

// invoke runs an action, converting panics and plain errors into
// *ActionError. Field errors pass through unchanged.
func invoke(ctx context.Context, component, name string, act *action, args Args) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = panicError(component, name, r)
		}
	}()

	if err := act.fn(ctx, args); err != nil {
		var verr *validation.Error
		if errors.As(err, &verr) {
			return err
		}
		return &ActionError{
			Component: component,
			Action:    name,
			Err:       err,
			File:      act.file,
			Line:      act.line,
		}
	}
	return nil
}

// mountParams recovers the mount parameters of a lazy placeholder,
// rejecting any the server did not produce.
func (m *Manager) mountParams(reg *Registration, p Payload) (map[string]any, error) {
	enc := m.registry.encoder
	raw := p.Params
	if len(raw) == 0 {
		raw = json.RawMessage("null")
	}

	if reg.sensitive {
		var sealed string
		if err := json.Unmarshal(raw, &sealed); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrChecksum, ErrInvalidFormat)
		}
		params, err := enc.Open(sealed)
		if err != nil {
			return nil, WrapDecodeError(err)
		}
		return params, nil
	}

	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrChecksum, ErrInvalidFormat)
	}
	if params == nil {
		params = map[string]any{}
	}
	if err := enc.Verify(params, p.Checksum); err != nil {
		return nil, WrapDecodeError(err)
	}
	return params, nil
}

// output renders the component and injects its id and state into the root.
func (m *Manager) output(ctx context.Context, c Component) (string, error) {
	b := c.state()

	if h, ok := c.(RenderingHook); ok {
		h.Rendering(ctx)
	}
	node, err := c.Render(ctx)
	if err != nil {
		return "", fmt.Errorf("livecmp: render %s: %w", b.name, err)
	}
	root, err := node.prepare(ctx)
	if err != nil {
		return "", fmt.Errorf("livecmp: render %s: %w", b.name, err)
	}
	if h, ok := c.(RenderedHook); ok {
		h.Rendered(ctx)
	}

	state, err := json.Marshal(protocol.State{ID: b.id, Name: b.name, Data: b.Snapshot()})
	if err != nil {
		return "", fmt.Errorf("livecmp: serialize %s: %w", b.name, err)
	}
	return root.html([]attr{
		{key: protocol.AttrID, val: b.id},
		{key: protocol.AttrData, val: string(state)},
	}), nil
}

// PageResult is the outcome of a full-page render: a document, or a
// redirect requested during Mount.
type PageResult struct {
	HTML     string
	Redirect string
}

// RenderPage renders a component as a full page with params as route
// parameters. A lazy component renders its placeholder inside the layout.
func (m *Manager) RenderPage(ctx context.Context, name string, params map[string]any) (res *PageResult, err error) {
	outcome := outcomeOK
	ctx, span := m.tracer.Start(ctx, "livecmp.RenderPage", trace.WithAttributes(
		attribute.String("live.component", name),
	))
	defer func() {
		if err != nil {
			outcome = outcomeError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		m.metrics.observePage(name, outcome)
	}()

	ctx, _ = ensureScope(ctx)

	c, reg, err := m.instantiate(name, "")
	if err != nil {
		return nil, err
	}
	b := c.state()

	var content string
	if b.lazy {
		if err := m.prime(ctx, c, params); err != nil {
			return nil, err
		}
		content, err = m.placeholder(ctx, c, reg, params, false)
		if err != nil {
			return nil, err
		}
	} else {
		content, err = m.mount(ctx, c, params)
		if err != nil {
			return nil, err
		}
		if r := b.redirect; r != nil {
			outcome = outcomeRedirect
			return &PageResult{Redirect: r.URL}, nil
		}
	}

	layout := m.layout
	if b.layout != nil {
		layout = b.layout
	}
	if l, ok := c.(Layouter); ok {
		layout = l.Layout()
	}

	data := b.Snapshot()
	var buf strings.Builder
	page := Page{
		Title:   pageTitle(b, data),
		Content: templ.Raw(content),
		Head:    m.Scripts(),
		Data:    data,
	}
	if err := layout(page).Render(ctx, &buf); err != nil {
		return nil, fmt.Errorf("livecmp: layout %s: %w", name, err)
	}
	return &PageResult{HTML: buf.String()}, nil
}

// EmbedOption adjusts how an embedded component is rendered.
type EmbedOption func(*embedConfig)

type embedConfig struct {
	lazy   bool
	onLoad bool
}

// Lazy renders the component as a placeholder loaded when it becomes
// visible.
func Lazy() EmbedOption {
	return func(c *embedConfig) { c.lazy = true }
}

// LazyOnLoad renders the component as a placeholder loaded right after
// the page is initialized.
func LazyOnLoad() EmbedOption {
	return func(c *embedConfig) { c.lazy, c.onLoad = true, true }
}

// Mount creates a component from params and renders it: Boot, hydrate,
// Mount, Dehydrated, render. Native calls stay queued on the scope in ctx.
func (m *Manager) Mount(ctx context.Context, name string, params map[string]any) (*Response, error) {
	ctx, _ = ensureScope(ctx)
	c, _, err := m.instantiate(name, "")
	if err != nil {
		return nil, err
	}
	out, err := m.mount(ctx, c, params)
	if err != nil {
		return nil, err
	}
	b := c.state()
	if r := b.redirect; r != nil {
		return &Response{Redirect: r.URL, Navigate: r.Navigate}, nil
	}
	return &Response{HTML: out, Data: b.Snapshot(), Events: b.Events()}, nil
}

// prime boots c and hydrates it from params.
func (m *Manager) prime(ctx context.Context, c Component, params map[string]any) error {
	if h, ok := c.(Booter); ok {
		h.Boot(ctx)
	}
	if err := c.state().Hydrate(params); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

func (m *Manager) mount(ctx context.Context, c Component, params map[string]any) (string, error) {
	b := c.state()
	if err := m.prime(ctx, c, params); err != nil {
		return "", err
	}
	if h, ok := c.(Mounter); ok {
		h.Mount(ctx, params)
	}
	if b.redirect != nil {
		return "", nil
	}
	if h, ok := c.(DehydratedHook); ok {
		h.Dehydrated(ctx)
	}
	return m.output(ctx, c)
}

// Embed renders a component inside another template. It mounts the
// component with params, or renders a lazy placeholder when the component
// or the options ask for it.
//
//	<aside>
//	    @app.Embed("stats", map[string]any{"range": "week"}, livecmp.Lazy())
//	</aside>
func (m *Manager) Embed(name string, params map[string]any, opts ...EmbedOption) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var cfg embedConfig
		for _, opt := range opts {
			opt(&cfg)
		}

		c, reg, err := m.instantiate(name, "")
		if err != nil {
			return err
		}
		b := c.state()

		var out string
		if cfg.lazy || b.lazy {
			if err := m.prime(ctx, c, params); err != nil {
				return err
			}
			out, err = m.placeholder(ctx, c, reg, params, cfg.onLoad)
		} else {
			out, err = m.mount(ctx, c, params)
		}
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, out)
		return err
	})
}
