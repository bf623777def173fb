package livecmp

import (
	"context"
	"fmt"
	"maps"
	"runtime"
	"sort"

	"github.com/pthm/livecmp/lib/protocol"
	"github.com/pthm/livecmp/lib/validation"
)

// Component is implemented by every live component. Components embed Base,
// which supplies the unexported method:
//
//	type Counter struct {
//	    livecmp.Base
//	    Count int
//	}
//
//	func NewCounter() livecmp.Component {
//	    c := &Counter{}
//	    c.Action("increment", livecmp.Bind0(c.increment))
//	    return c
//	}
//
//	func (c *Counter) Fields() []livecmp.Field {
//	    return []livecmp.Field{livecmp.Value("count", &c.Count)}
//	}
//
//	func (c *Counter) Render(ctx context.Context) (livecmp.Node, error) {
//	    return livecmp.El("div", nil, counterView(c.Count)), nil
//	}
//
// A component instance lives for exactly one request.
type Component interface {
	Fields() []Field
	Render(ctx context.Context) (Node, error)
	state() *Base
}

// Factory creates a fresh component instance.
type Factory func() Component

// Redirect is a pending redirect intent.
type Redirect struct {
	URL      string
	Navigate bool
}

// action is a registered action and the place it was registered.
type action struct {
	fn   ActionFunc
	file string
	line int
}

// Base is the state container embedded by components.
//
// It holds the instance id, the declared schema, registered actions and
// computed properties, and the per-request outputs of an action: field
// errors, browser events and a redirect intent.
type Base struct {
	id     string
	name   string
	lazy   bool
	layout Layout
	title  string

	fields   []Field
	index    map[string]int
	computed map[string]func() any
	actions  map[string]*action

	errors   validation.Errors
	events   []protocol.Event
	redirect *Redirect
}

func (b *Base) state() *Base { return b }

// bind installs the schema. Called once per instance by the manager.
func (b *Base) bind(name string, fields []Field) {
	b.name = name
	b.fields = fields
	b.index = make(map[string]int, len(fields))
	for i, f := range fields {
		if _, dup := b.index[f.name]; dup {
			panic(fmt.Sprintf("livecmp: %s declares field %q twice", name, f.name))
		}
		b.index[f.name] = i
	}
}

// ID returns the instance id.
func (b *Base) ID() string { return b.id }

// Name returns the registered component name.
func (b *Base) Name() string { return b.name }

// SetLazy marks the component as lazy: embedding it renders a placeholder
// that the client loads once it becomes visible.
func (b *Base) SetLazy(lazy bool) { b.lazy = lazy }

// IsLazy reports whether the component is lazy.
func (b *Base) IsLazy() bool { return b.lazy }

// SetLayout overrides the layout used for full-page rendering.
func (b *Base) SetLayout(l Layout) { b.layout = l }

// SetTitle sets the page title used when the state has no title field.
func (b *Base) SetTitle(title string) { b.title = title }

// Action registers a named action.
//
//	c.Action("add", livecmp.Bind0(c.add))
//	c.Action("toggle", livecmp.Bind1(c.toggle))
//	c.Action("raw", func(ctx context.Context, args livecmp.Args) error { ... })
//
// Registering the same name twice replaces the earlier action.
func (b *Base) Action(name string, fn ActionFunc) {
	if b.actions == nil {
		b.actions = make(map[string]*action)
	}
	a := &action{fn: fn}
	if _, file, line, ok := runtime.Caller(1); ok {
		a.file, a.line = file, line
	}
	b.actions[name] = a
}

// HasAction reports whether name is a registered action.
func (b *Base) HasAction(name string) bool {
	_, ok := b.actions[name]
	return ok
}

// Actions returns the registered action names in order.
func (b *Base) Actions() []string {
	names := make([]string, 0, len(b.actions))
	for name := range b.actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Computed registers a derived, read-only property. Computed values are
// not part of the snapshot.
func (b *Base) Computed(name string, fn func() any) {
	if b.computed == nil {
		b.computed = make(map[string]func() any)
	}
	b.computed[name] = fn
}

// Get returns a declared field or computed property by name.
func (b *Base) Get(name string) (any, bool) {
	if i, ok := b.index[name]; ok {
		return b.fields[i].get(), true
	}
	if fn, ok := b.computed[name]; ok {
		return fn(), true
	}
	return nil, false
}

// Set assigns a declared field, converting v to the field's type.
func (b *Base) Set(name string, v any) error {
	i, ok := b.index[name]
	if !ok {
		return fmt.Errorf("livecmp: %s has no field %q", b.name, name)
	}
	if err := b.fields[i].set(v); err != nil {
		return fmt.Errorf("livecmp: set %s.%s: %w", b.name, name, err)
	}
	return nil
}

// Hydrate assigns every declared field present in data. Unknown keys are
// ignored and absent fields keep their current value.
func (b *Base) Hydrate(data map[string]any) error {
	for _, f := range b.fields {
		v, ok := data[f.name]
		if !ok {
			continue
		}
		if err := f.set(v); err != nil {
			return fmt.Errorf("livecmp: hydrate %s.%s: %w", b.name, f.name, err)
		}
	}
	return nil
}

// Snapshot returns every declared field by name.
func (b *Base) Snapshot() map[string]any {
	out := make(map[string]any, len(b.fields))
	for _, f := range b.fields {
		out[f.name] = f.get()
	}
	return out
}

// FieldNames returns the declared field names in declaration order.
func (b *Base) FieldNames() []string {
	names := make([]string, len(b.fields))
	for i, f := range b.fields {
		names[i] = f.name
	}
	return names
}

// Reset restores the named fields to their defaults, or every field when
// called without names. Unknown names are ignored.
func (b *Base) Reset(names ...string) {
	if len(names) == 0 {
		for _, f := range b.fields {
			_ = f.reset()
		}
		return
	}
	for _, name := range names {
		if i, ok := b.index[name]; ok {
			_ = b.fields[i].reset()
		}
	}
}

// Pull returns the named fields' current values and resets them. Without
// names every field is pulled.
func (b *Base) Pull(names ...string) map[string]any {
	var out map[string]any
	if len(names) == 0 {
		out = b.Snapshot()
	} else {
		out = b.Only(names...)
	}
	b.Reset(names...)
	return out
}

// Only returns the named declared fields.
func (b *Base) Only(names ...string) map[string]any {
	out := make(map[string]any, len(names))
	for _, name := range names {
		if i, ok := b.index[name]; ok {
			out[name] = b.fields[i].get()
		}
	}
	return out
}

// Except returns every declared field except the named ones.
func (b *Base) Except(names ...string) map[string]any {
	out := b.Snapshot()
	for _, name := range names {
		delete(out, name)
	}
	return out
}

// AddError records a field error. The first message per field wins.
func (b *Base) AddError(field, message string) {
	if b.errors == nil {
		b.errors = validation.Errors{}
	}
	if _, exists := b.errors[field]; !exists {
		b.errors[field] = message
	}
}

// Error returns the message recorded for field, or "".
func (b *Base) Error(field string) string { return b.errors[field] }

// HasError reports whether field has an error.
func (b *Base) HasError(field string) bool {
	_, ok := b.errors[field]
	return ok
}

// Errors returns a copy of the error set.
func (b *Base) Errors() validation.Errors { return maps.Clone(b.errors) }

// ClearErrors empties the error set.
func (b *Base) ClearErrors() { b.errors = nil }

func (b *Base) mergeErrors(errs validation.Errors) {
	for field, msg := range errs {
		b.AddError(field, msg)
	}
}

// Validate checks the declared fields (and computed properties named by
// the rules) against rules. Previous errors are cleared first; failures are
// recorded in the error set and returned as a *validation.Error, which the
// manager treats as a recoverable outcome when returned from an action.
//
//	func (s *Signup) submit(ctx context.Context) error {
//	    if err := s.Validate(validation.Rules{"email": "required|email"}); err != nil {
//	        return err
//	    }
//	    ...
//	}
func (b *Base) Validate(rules validation.Ruleset) error {
	b.errors = nil
	values := b.Snapshot()
	for field := range rules.Fields() {
		if _, ok := values[field]; ok {
			continue
		}
		if fn, ok := b.computed[field]; ok {
			values[field] = fn()
		}
	}
	errs := validation.Check(values, rules)
	if len(errs) == 0 {
		return nil
	}
	b.errors = errs
	return &validation.Error{Fields: maps.Clone(errs)}
}

// Dispatch queues a browser event. After the DOM update the client
// dispatches it on the window with detail as the event detail.
func (b *Base) Dispatch(name string, detail any) {
	b.events = append(b.events, protocol.Event{Name: name, Detail: detail})
}

// Events returns the queued browser events.
func (b *Base) Events() []protocol.Event { return b.events }

// Redirect requests a full page load of url. Rendering is skipped and the
// response carries only the redirect.
func (b *Base) Redirect(url string) {
	b.redirect = &Redirect{URL: url}
}

// Navigate is Redirect through client-side navigation.
func (b *Base) Navigate(url string) {
	b.redirect = &Redirect{URL: url, Navigate: true}
}

// RedirectIntent returns the pending redirect, if any.
func (b *Base) RedirectIntent() *Redirect { return b.redirect }
