package client

import (
	"encoding/json"
	"fmt"

	"golang.org/x/net/html"

	"github.com/pthm/livecmp/lib/protocol"
)

// initTreeLocked registers the components under root, outermost first,
// and starts its lazy placeholders.
func (r *Runtime) initTreeLocked(root *html.Node) {
	var roots []*html.Node
	walk(root, func(n *html.Node) bool {
		if hasAttr(n, protocol.AttrID) && hasAttr(n, protocol.AttrData) {
			roots = append(roots, n)
		}
		return true
	})
	for _, el := range roots {
		r.initComponentLocked(el)
	}
	r.initLazyLocked(root)
}

// initLazyLocked loads on-load placeholders under scope and watches the
// others until they are revealed.
func (r *Runtime) initLazyLocked(scope *html.Node) {
	var eager []*html.Node
	walk(scope, func(n *html.Node) bool {
		mode, ok := getAttr(n, protocol.AttrLazy)
		if !ok {
			return true
		}
		if mode == protocol.LazyOnLoad {
			eager = append(eager, n)
		} else {
			r.observed[n] = true
		}
		return false
	})
	for _, n := range eager {
		r.loadLazyLocked(n)
	}
}

func (r *Runtime) loadLazyLocked(el *html.Node) {
	delete(r.observed, el)

	params := json.RawMessage("{}")
	if raw, ok := getAttr(el, protocol.AttrParams); ok && raw != "" {
		if json.Valid([]byte(raw)) {
			params = json.RawMessage(raw)
		} else {
			r.recordLocked(fmt.Errorf("client: bad %s on lazy placeholder", protocol.AttrParams))
		}
	}
	id, _ := getAttr(el, protocol.AttrID)
	name, _ := getAttr(el, protocol.AttrName)
	checksum, _ := getAttr(el, protocol.AttrChecksum)
	body, err := encodeEnvelope(protocol.Payload{
		ID:       id,
		Name:     name,
		Params:   params,
		Checksum: checksum,
		LazyLoad: true,
	})
	if err != nil {
		r.recordLocked(err)
		return
	}
	endpoint := r.endpointURL().String()
	r.logger.Debug("lazy load", "component", name, "id", id)

	r.beginLocked()
	go func() {
		defer r.end()
		res, err := r.post(r.ctx, endpoint, body)

		r.mu.Lock()
		defer r.mu.Unlock()
		switch {
		case err != nil:
			r.failLocked(err)
			return
		case res.ErrorHTML != "":
			r.showOverlayLocked(res.ErrorHTML)
			return
		case res.Error != "":
			r.recordLocked(fmt.Errorf("%w: %s", ErrServer, res.Error))
			return
		case res.HTML == "":
			return
		}
		r.sched.Push(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			if el.Parent == nil || !contains(r.doc, el) {
				return
			}
			real, err := parseElement(res.HTML, el.Parent)
			if err != nil {
				r.recordLocked(fmt.Errorf("client: lazy %s: %w", name, err))
				return
			}
			r.forgetLocked(el)
			replaceNode(el, real)
			r.initTreeLocked(real)
		})
	}()
}

// Reveal scrolls the lazy placeholders matching selector into view,
// loading them.
func (r *Runtime) Reveal(selector string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == nil {
		return ErrNotFound
	}
	nodes, err := queryAll(r.doc, selector)
	if err != nil {
		return fmt.Errorf("client: selector %q: %w", selector, err)
	}
	n := 0
	for _, el := range nodes {
		if r.observed[el] {
			r.loadLazyLocked(el)
			n++
		}
	}
	if n == 0 {
		return fmt.Errorf("%w: no lazy placeholder at %s", ErrNotFound, selector)
	}
	return nil
}

// RevealAll loads every watched placeholder, in document order.
func (r *Runtime) RevealAll() {
	r.mu.Lock()
	defer r.mu.Unlock()
	var pending []*html.Node
	walk(r.doc, func(n *html.Node) bool {
		if r.observed[n] {
			pending = append(pending, n)
		}
		return true
	})
	for _, el := range pending {
		r.loadLazyLocked(el)
	}
}

// Pending returns the number of lazy placeholders not yet revealed.
func (r *Runtime) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.observed)
}
