package livecmp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/a-h/templ"

	"github.com/pthm/livecmp/lib/validation"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

var errBoom = errors.New("boom")

// hookLog records lifecycle hooks across component instances.
type hookLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *hookLog) add(s string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	l.calls = append(l.calls, s)
	l.mu.Unlock()
}

func (l *hookLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return strings.Join(l.calls, ",")
}

type counter struct {
	Base
	log *hookLog

	Count int
	Label string
	Tags  []string

	mountedWith map[string]any
}

func newCounter(log *hookLog) Factory {
	return func() Component {
		c := &counter{log: log, Label: "clicks", Tags: []string{}}
		c.Action("increment", Bind0(func(ctx context.Context) error {
			c.Count++
			return nil
		}))
		c.Action("add", Bind1(func(ctx context.Context, n int) error {
			c.Count += n
			return nil
		}))
		c.Action("fail", Bind0(func(ctx context.Context) error {
			return errBoom
		}))
		c.Action("explode", Bind0(func(ctx context.Context) error {
			var m map[string]int
			m["x"] = 1
			return nil
		}))
		c.Action("validate", Bind0(func(ctx context.Context) error {
			return c.Validate(validation.Rules{"label": "required"})
		}))
		c.Action("ping", Bind0(func(ctx context.Context) error {
			c.Dispatch("pinged", map[string]any{"count": c.Count})
			CallNative(ctx, "haptics.tap", map[string]any{"ms": 10})
			return nil
		}))
		c.Action("leave", Bind1(func(ctx context.Context, to string) error {
			CallNative(ctx, "haptics.tap", nil)
			c.Redirect(to)
			return nil
		}))
		c.Action("go", Bind1(func(ctx context.Context, to string) error {
			c.Navigate(to)
			return nil
		}))
		c.Computed("double", func() any { return c.Count * 2 })
		return c
	}
}

func (c *counter) Fields() []Field {
	return []Field{
		Value("count", &c.Count),
		Value("label", &c.Label),
		Value("tags", &c.Tags),
	}
}

func (c *counter) Boot(ctx context.Context)       { c.log.add("boot") }
func (c *counter) Hydrated(ctx context.Context)   { c.log.add("hydrated") }
func (c *counter) Dehydrated(ctx context.Context) { c.log.add("dehydrated") }
func (c *counter) Rendering(ctx context.Context)  { c.log.add("rendering") }
func (c *counter) Rendered(ctx context.Context)   { c.log.add("rendered") }

func (c *counter) Mount(ctx context.Context, params map[string]any) {
	c.log.add("mount")
	c.mountedWith = params
	if to, ok := params["redirect"].(string); ok {
		c.Redirect(to)
	}
}

func (c *counter) Exception(ctx context.Context, err error, stop *bool) {
	c.log.add("exception")
	if c.Label == "stop" {
		c.AddError("label", "stopped: "+err.Error())
		*stop = true
	}
}

func (c *counter) Render(ctx context.Context) (Node, error) {
	c.log.add("render")
	return El("div", templ.Attributes{"class": "counter"}, templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<span>%d %s</span><em>%s</em>`, c.Count, templ.EscapeString(c.Label), templ.EscapeString(c.Error("label")))
		return err
	})), nil
}

// markup renders fixed HTML, used for root element checks.
type markup struct {
	Base
	html string
}

func newMarkup(html string) Factory {
	return func() Component { return &markup{html: html} }
}

func (m *markup) Fields() []Field { return nil }

func (m *markup) Render(ctx context.Context) (Node, error) {
	return HTML(m.html), nil
}

type lazyPanel struct {
	Base
	Topic  string
	Loaded bool
}

func newLazyPanel() Component {
	c := &lazyPanel{}
	c.SetLazy(true)
	return c
}

func (c *lazyPanel) Fields() []Field {
	return []Field{Value("topic", &c.Topic), Value("loaded", &c.Loaded)}
}

func (c *lazyPanel) Mount(ctx context.Context, params map[string]any) {
	c.Loaded = true
}

func (c *lazyPanel) Placeholder(params map[string]any) templ.Component {
	return templ.Raw(`<p class="skeleton">loading ` + templ.EscapeString(fmt.Sprint(params["topic"])) + `</p>`)
}

func (c *lazyPanel) Render(ctx context.Context) (Node, error) {
	return HTML(`<section class="panel">` + templ.EscapeString(c.Topic) + `</section>`), nil
}

func newTestRegistry(t *testing.T, opts ...Option) (*Registry, *hookLog) {
	t.Helper()
	log := &hookLog{}
	reg := NewRegistry(testKey, opts...)
	reg.Add("counter", newCounter(log))
	reg.Add("panel", newLazyPanel)
	reg.Add("secret", newLazyPanel).Sensitive()
	return reg, log
}
