package livecmp

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"github.com/a-h/templ"

	"github.com/pthm/livecmp/lib/protocol"
)

// Page is what a layout receives for a full-page render.
type Page struct {
	// Title is the state's "title" field when it is a non-empty string,
	// else the component's title, else its capitalized name.
	Title string

	// Content is the component fragment with its injected attributes.
	Content templ.Component

	// Head holds the client runtime scripts.
	Head templ.Component

	// Data is the component state after mount.
	Data map[string]any
}

// Layout wraps a page fragment into a document.
type Layout func(p Page) templ.Component

// DefaultLayout renders a minimal HTML5 document.
func DefaultLayout(p Page) templ.Component {
	return defaultLayout(p)
}

func pageTitle(b *Base, data map[string]any) string {
	if t, ok := data["title"].(string); ok && t != "" {
		return t
	}
	if b.title != "" {
		return b.title
	}
	r := []rune(b.name)
	if len(r) > 0 {
		r[0] = unicode.ToUpper(r[0])
	}
	return string(r)
}

// DefaultSkeleton is shown in lazy placeholders of components that do not
// implement Placeholderer.
var DefaultSkeleton templ.Component = templ.Raw(`<div class="live-skeleton" aria-busy="true"></div>`)

// placeholder renders the lazy stand-in for a component. The mount
// parameters are signed, or sealed for sensitive registrations.
func (m *Manager) placeholder(ctx context.Context, c Component, reg *Registration, params map[string]any, onLoad bool) (string, error) {
	b := c.state()
	if params == nil {
		params = map[string]any{}
	}

	attrs := []attr{
		{key: protocol.AttrID, val: b.id},
		{key: protocol.AttrLazy, bare: !onLoad, val: protocol.LazyOnLoad},
		{key: protocol.AttrName, val: b.name},
	}

	enc := m.registry.encoder
	if reg.sensitive {
		sealed, err := enc.Seal(params)
		if err != nil {
			return "", err
		}
		raw, _ := json.Marshal(sealed)
		attrs = append(attrs, attr{key: protocol.AttrParams, val: string(raw)})
	} else {
		raw, err := json.Marshal(params)
		if err != nil {
			return "", err
		}
		sum, err := enc.Checksum(params)
		if err != nil {
			return "", err
		}
		attrs = append(attrs,
			attr{key: protocol.AttrParams, val: string(raw)},
			attr{key: protocol.AttrChecksum, val: sum},
		)
	}

	skeleton := DefaultSkeleton
	if p, ok := c.(Placeholderer); ok {
		skeleton = p.Placeholder(params)
	}
	var body strings.Builder
	if err := skeleton.Render(ctx, &body); err != nil {
		return "", err
	}

	root := &rootElement{tag: "div", body: body.String()}
	return root.html(attrs), nil
}
