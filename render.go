package livecmp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/a-h/templ"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Node describes a component's root element. The manager adds the
// live:id and live:data attributes to it, so a component's output always
// has exactly one root.
//
// Build nodes from parts:
//
//	return livecmp.El("section", templ.Attributes{"class": "counter"}, counterBody(c.Count)), nil
//
// from a templ template that renders a single root element:
//
//	return livecmp.Templ(counterView(c)), nil
//
// or from raw markup:
//
//	return livecmp.HTML(`<p>` + templ.EscapeString(c.Message) + `</p>`), nil
type Node struct {
	Tag   string
	Attrs templ.Attributes
	Body  templ.Component

	raw      string
	template templ.Component
}

// El builds a root element. Children are rendered in order inside it.
func El(tag string, attrs templ.Attributes, children ...templ.Component) Node {
	n := Node{Tag: tag, Attrs: attrs}
	switch len(children) {
	case 0:
	case 1:
		n.Body = children[0]
	default:
		n.Body = templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
			for _, c := range children {
				if err := c.Render(ctx, w); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return n
}

// HTML uses markup as the root. It must contain exactly one top-level
// element; whitespace and comments around it are allowed.
func HTML(markup string) Node {
	return Node{raw: markup}
}

// Templ renders c and uses its output as the root, with the same
// single-element requirement as HTML.
func Templ(c templ.Component) Node {
	return Node{template: c}
}

// Component renders the node as is, without injected attributes.
func (n Node) Component() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		root, err := n.prepare(ctx)
		if err != nil {
			return err
		}
		_, err = io.WriteString(w, root.html(nil))
		return err
	})
}

// attr is a rendered attribute. Bare attributes have no value.
type attr struct {
	key  string
	val  string
	bare bool
}

// rootElement is a node with its body already rendered to markup.
type rootElement struct {
	tag   string
	attrs []attr
	body  string
	void  bool
}

// prepare renders the node's body so that later hooks cannot change it.
func (n Node) prepare(ctx context.Context) (*rootElement, error) {
	switch {
	case n.template != nil:
		var buf bytes.Buffer
		if err := n.template.Render(ctx, &buf); err != nil {
			return nil, err
		}
		return parseRoot(buf.String())
	case n.raw != "" || n.Tag == "":
		return parseRoot(n.raw)
	}

	root := &rootElement{tag: strings.ToLower(n.Tag), attrs: templAttrs(n.Attrs)}
	root.void = isVoid(root.tag)
	if n.Body != nil {
		var buf bytes.Buffer
		if err := n.Body.Render(ctx, &buf); err != nil {
			return nil, err
		}
		root.body = buf.String()
	}
	return root, nil
}

// html writes the element with inject placed first. Injected keys replace
// attributes of the same name.
func (r *rootElement) html(inject []attr) string {
	var b strings.Builder
	b.WriteByte('<')
	b.WriteString(r.tag)

	seen := make(map[string]bool, len(inject))
	for _, a := range inject {
		seen[a.key] = true
		writeAttr(&b, a)
	}
	for _, a := range r.attrs {
		if !seen[a.key] {
			writeAttr(&b, a)
		}
	}
	b.WriteByte('>')
	if r.void {
		return b.String()
	}
	b.WriteString(r.body)
	b.WriteString("</")
	b.WriteString(r.tag)
	b.WriteByte('>')
	return b.String()
}

func writeAttr(b *strings.Builder, a attr) {
	b.WriteByte(' ')
	b.WriteString(a.key)
	if a.bare {
		return
	}
	b.WriteString(`="`)
	b.WriteString(templ.EscapeString(a.val))
	b.WriteByte('"')
}

// templAttrs flattens attributes in key order. false and nil values are
// omitted; true renders a bare attribute.
func templAttrs(attrs templ.Attributes) []attr {
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]attr, 0, len(keys))
	for _, k := range keys {
		switch v := attrs[k].(type) {
		case nil:
		case bool:
			if v {
				out = append(out, attr{key: k, bare: true})
			}
		case string:
			out = append(out, attr{key: k, val: v})
		default:
			out = append(out, attr{key: k, val: fmt.Sprint(v)})
		}
	}
	return out
}

// templateContext accepts any content model, so table rows, cells and
// options parse as roots.
var templateContext = &html.Node{Type: html.ElementNode, Data: "template", DataAtom: atom.Template}

// parseRoot parses markup that must hold exactly one element at the top.
func parseRoot(markup string) (*rootElement, error) {
	nodes, err := html.ParseFragment(strings.NewReader(markup), templateContext)
	if err != nil {
		return nil, fmt.Errorf("livecmp: parse markup: %w", err)
	}

	var root *html.Node
	for _, n := range nodes {
		switch n.Type {
		case html.CommentNode:
			continue
		case html.TextNode:
			if strings.TrimSpace(n.Data) == "" {
				continue
			}
			return nil, ErrMultipleRoots
		case html.ElementNode:
			if root != nil {
				return nil, ErrMultipleRoots
			}
			root = n
		}
	}
	if root == nil {
		return nil, ErrNoRoot
	}

	el := &rootElement{tag: root.Data, void: isVoid(root.Data)}
	for _, a := range root.Attr {
		key := a.Key
		if a.Namespace != "" {
			key = a.Namespace + ":" + a.Key
		}
		el.attrs = append(el.attrs, attr{key: key, val: a.Val})
	}
	var body bytes.Buffer
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&body, c); err != nil {
			return nil, err
		}
	}
	el.body = body.String()
	return el, nil
}

func isVoid(tag string) bool {
	switch tag {
	case "area", "base", "br", "col", "embed", "hr", "img", "input",
		"link", "meta", "source", "track", "wbr":
		return true
	}
	return false
}
