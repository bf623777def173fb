package client

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pthm/livecmp/lib/protocol"
)

// ErrNoHistory is returned by Back and Forward at either end of history.
var ErrNoHistory = errors.New("client: no history entry")

func navDetail(u string) map[string]any { return map[string]any{"url": u} }

// navigateLocked swaps in the body of ref without a full load. Elements
// marked live:persist survive the swap. Any failure falls back to a full
// load of ref.
func (r *Runtime) navigateLocked(ref string, push bool) {
	u, err := r.resolveLocked(ref)
	if err != nil {
		r.recordLocked(fmt.Errorf("client: navigate %q: %w", ref, err))
		return
	}
	target := u.String()
	r.emitLocked(protocol.EventNavigating, navDetail(target))
	r.startLoadingLocked()

	markup, cached := r.prefetch[target]
	delete(r.prefetch, target)
	x, y := r.scrollX, r.scrollY
	r.logger.Debug("navigate", "url", target, "prefetched", cached)

	r.beginLocked()
	go func() {
		defer r.end()
		if !cached {
			body, final, err := r.fetchPage(r.ctx, u, true)
			switch {
			case err == nil && final.String() != target:
				r.mu.Lock()
				r.finishLoadingLocked()
				r.fullLoadLocked(final.String())
				r.mu.Unlock()
				return
			case err != nil:
				r.mu.Lock()
				r.logger.Warn("navigation failed", "url", target, "error", err)
				r.finishLoadingLocked()
				r.fullLoadLocked(target)
				r.mu.Unlock()
				return
			}
			markup = body
		}
		r.sched.Push(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			defer r.finishLoadingLocked()
			if err := r.swapLocked(u, markup); err != nil {
				r.logger.Warn("navigation failed", "url", target, "error", err)
				r.fullLoadLocked(target)
				return
			}
			if push {
				r.pushHistoryLocked(target)
			}
			r.scrollX, r.scrollY = x, y
			r.emitLocked(protocol.EventNavigated, navDetail(target))
		})
	}()
}

// swapLocked replaces the title and body with those of markup and
// reinitialises the page.
func (r *Runtime) swapLocked(u *url.URL, markup string) error {
	if r.doc == nil {
		return errors.New("client: no document")
	}
	body := findElement(r.doc, atom.Body)
	if body == nil {
		return errors.New("client: document has no body")
	}
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return err
	}
	next := findElement(doc, atom.Body)
	if next == nil {
		return errors.New("client: page has no body")
	}

	persisted := map[string]*html.Node{}
	walk(body, func(n *html.Node) bool {
		if name, ok := getAttr(n, protocol.AttrPersist); ok && name != "" {
			persisted[name] = n
			return false
		}
		return true
	})

	title := ""
	if t := findElement(doc, atom.Title); t != nil {
		title = textContent(t)
	}
	if t := findElement(r.doc, atom.Title); t != nil {
		setText(t, title)
	}

	for c := body.FirstChild; c != nil; {
		n := c.NextSibling
		body.RemoveChild(c)
		c = n
	}
	for c := next.FirstChild; c != nil; {
		n := c.NextSibling
		next.RemoveChild(c)
		body.AppendChild(c)
		c = n
	}
	for name, el := range persisted {
		if slot := persistSlot(body, name); slot != nil {
			replaceNode(slot, el)
		}
	}

	r.location = u
	r.resetLocked()
	r.initLocked()
	return nil
}

func persistSlot(root *html.Node, name string) *html.Node {
	var slot *html.Node
	walk(root, func(n *html.Node) bool {
		if slot != nil {
			return false
		}
		if v, ok := getAttr(n, protocol.AttrPersist); ok && v == name {
			slot = n
			return false
		}
		return true
	})
	return slot
}

// fullLoadLocked loads ref as a new document, like setting
// window.location.
func (r *Runtime) fullLoadLocked(ref string) {
	u, err := r.resolveLocked(ref)
	if err != nil {
		r.recordLocked(fmt.Errorf("client: load %q: %w", ref, err))
		return
	}
	r.logger.Debug("full load", "url", u.String())
	r.beginLocked()
	go func() {
		defer r.end()
		body, final, err := r.fetchPage(r.ctx, u, false)
		if final == nil {
			final = u
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if err != nil {
			r.recordLocked(err)
			// Error pages are still shown.
			var status *StatusError
			if !errors.As(err, &status) {
				return
			}
		}
		if err := r.loadDocumentLocked(final, body, true); err != nil {
			r.recordLocked(err)
		}
	}()
}

// prefetchLocked fetches target into the prefetch cache. An entry
// already cached is never replaced.
func (r *Runtime) prefetchLocked(target string) {
	if _, ok := r.prefetch[target]; ok {
		return
	}
	u, err := url.Parse(target)
	if err != nil {
		return
	}
	r.emitLocked(protocol.EventPrefetching, navDetail(target))
	r.beginLocked()
	go func() {
		defer r.end()
		body, final, err := r.fetchPage(r.ctx, u, true)
		if err != nil || final.String() != target {
			return
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		if _, ok := r.prefetch[target]; !ok {
			r.prefetch[target] = body
		}
		r.emitLocked(protocol.EventPrefetched, navDetail(target))
	}()
}

func navLink(n *html.Node, hoverOnly bool) *html.Node {
	return closest(n, func(c *html.Node) bool {
		if c.DataAtom != atom.A {
			return false
		}
		if hoverOnly {
			return hasAttr(c, protocol.AttrNavigateHover)
		}
		return hasAttr(c, protocol.AttrNavigate) || hasAttr(c, protocol.AttrNavigateHover)
	})
}

// navClickLocked follows the link a click landed in. It reports whether
// the click was consumed.
func (r *Runtime) navClickLocked(target *html.Node, e *Event) bool {
	if e.Ctrl || e.Meta || e.Shift {
		return false
	}
	if link := navLink(target, false); link != nil {
		e.PreventDefault()
		href, _ := getAttr(link, "href")
		r.navigateLocked(href, true)
		return true
	}
	link := closest(target, func(c *html.Node) bool { return c.DataAtom == atom.A && hasAttr(c, "href") })
	if link == nil {
		return false
	}
	href, _ := getAttr(link, "href")
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") {
		return false
	}
	r.fullLoadLocked(href)
	return true
}

// Hover rests the pointer on the element matching selector. Inside a
// live:navigate.hover link this schedules a prefetch after PrefetchDelay.
func (r *Runtime) Hover(selector string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.queryLocked(selector)
	if err != nil {
		return err
	}
	r.dispatchLocked(n, &Event{Type: "mouseenter"})
	link := navLink(n, true)
	if link == nil {
		return nil
	}
	href, _ := getAttr(link, "href")
	u, err := r.resolveLocked(href)
	if err != nil {
		return err
	}
	target := u.String()

	var gen uint64 = 1
	if prev := r.hover[link]; prev != nil {
		prev.timer.Stop()
		gen = prev.gen + 1
	}
	p := &pendingTimer{gen: gen}
	p.timer = r.clock.AfterFunc(PrefetchDelay, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur := r.hover[link]; cur == nil || cur.gen != gen {
			return
		}
		delete(r.hover, link)
		r.prefetchLocked(target)
	})
	r.hover[link] = p
	return nil
}

// Prefetched reports whether url is in the prefetch cache.
func (r *Runtime) Prefetched(ref string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, err := r.resolveLocked(ref)
	if err != nil {
		return false
	}
	_, ok := r.prefetch[u.String()]
	return ok
}

// Navigate performs an SPA navigation to ref.
func (r *Runtime) Navigate(ref string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.navigateLocked(ref, true)
}

// Back navigates to the previous history entry.
func (r *Runtime) Back() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos <= 0 {
		return ErrNoHistory
	}
	r.pos--
	r.navigateLocked(r.history[r.pos], false)
	return nil
}

// Forward navigates to the next history entry.
func (r *Runtime) Forward() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.pos >= len(r.history)-1 {
		return ErrNoHistory
	}
	r.pos++
	r.navigateLocked(r.history[r.pos], false)
	return nil
}
