package client

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/pthm/livecmp/lib/protocol"
)

// Event is a DOM event dispatched on an element.
type Event struct {
	Type   string
	Detail any

	// Keyboard state for key* events.
	Key                    string
	Shift, Ctrl, Alt, Meta bool

	target           *html.Node
	defaultPrevented bool
	stopped          bool
}

// PreventDefault cancels the event's default action.
func (e *Event) PreventDefault() { e.defaultPrevented = true }

// StopPropagation stops the event from bubbling further.
func (e *Event) StopPropagation() { e.stopped = true }

// DefaultPrevented reports whether a listener cancelled the default action.
func (e *Event) DefaultPrevented() bool { return e.defaultPrevented }

type listener struct {
	event string
	once  bool
	fn    func(node *html.Node, e *Event)
}

type windowBinding struct {
	node    *html.Node
	event   string
	action  Action
	hasArgs bool
}

type subscription struct {
	id int
	fn func(detail any)
}

// bindings that are not event listeners.
var reserved = map[string]bool{
	"id": true, "data": true, "lazy": true, "name": true, "params": true,
	"checksum": true, "click": true, "submit": true, "model": true,
	"confirm": true, "loading-target": true, "navigate": true,
	"navigate.hover": true, "persist": true,
}

func (r *Runtime) on(node *html.Node, l *listener) {
	r.listeners[node] = append(r.listeners[node], l)
}

// forgetLocked drops the listeners, window bindings and lazy watches of
// root's subtree.
func (r *Runtime) forgetLocked(root *html.Node) {
	gone := map[*html.Node]bool{}
	walk(root, func(n *html.Node) bool {
		gone[n] = true
		delete(r.listeners, n)
		delete(r.observed, n)
		return true
	})
	kept := r.windowBind[:0]
	for _, b := range r.windowBind {
		if !gone[b.node] {
			kept = append(kept, b)
		}
	}
	r.windowBind = kept
}

// attachLocked binds the live: attributes under root for component id.
// Nested components are left to their own registration.
func (r *Runtime) attachLocked(root *html.Node, id string) {
	r.forgetLocked(root)
	walk(root, func(n *html.Node) bool {
		if n.Type != html.ElementNode {
			return true
		}
		if n != root && hasAttr(n, protocol.AttrID) {
			return false
		}
		for _, a := range n.Attr {
			if a.Namespace != "" || !strings.HasPrefix(a.Key, protocol.AttrPrefix) {
				continue
			}
			spec := strings.TrimPrefix(a.Key, protocol.AttrPrefix)
			switch {
			case spec == "click":
				r.bindClick(n, id, a.Val)
			case spec == "submit":
				r.bindSubmit(n, id, a.Val)
			case spec == "model":
				r.bindModelLocked(n, id, a.Val)
			case strings.HasPrefix(a.Key, protocol.WindowPrefix):
				act := ParseAction(a.Val)
				r.windowBind = append(r.windowBind, &windowBinding{
					node:    n,
					event:   strings.TrimPrefix(a.Key, protocol.WindowPrefix),
					action:  act,
					hasArgs: act.HasArgs,
				})
			case !reserved[spec]:
				r.bindGeneric(n, id, spec, a.Val)
			}
		}
		return true
	})
}

func (r *Runtime) confirmedLocked(n *html.Node) bool {
	msg, ok := getAttr(n, protocol.AttrConfirm)
	return !ok || msg == "" || r.confirm(msg)
}

func (r *Runtime) bindClick(n *html.Node, id, raw string) {
	act := ParseAction(raw)
	r.on(n, &listener{event: "click", fn: func(node *html.Node, e *Event) {
		e.PreventDefault()
		if !r.confirmedLocked(node) {
			return
		}
		r.sendLocked(id, act.Name, act.resolve(eventArg(e)), node, false)
	}})
}

func (r *Runtime) bindSubmit(n *html.Node, id, raw string) {
	name := ParseAction(raw).Name
	r.on(n, &listener{event: "submit", fn: func(node *html.Node, e *Event) {
		e.PreventDefault()
		if !r.confirmedLocked(node) {
			return
		}
		r.sendLocked(id, name, []any{}, node, false)
	}})
}

func (r *Runtime) bindModelLocked(n *html.Node, id, path string) {
	if c := r.components[id]; c != nil {
		if v, ok := getPath(c.data, path); ok {
			setInputValue(n, v)
		}
	}
	event := "input"
	if n.DataAtom == atom.Select || inputType(n) == "checkbox" || inputType(n) == "radio" {
		event = "change"
	}
	r.on(n, &listener{event: event, fn: func(node *html.Node, e *Event) {
		if c := r.components[id]; c != nil {
			setPath(c.data, path, inputValue(node))
		}
	}})
}

func (r *Runtime) bindGeneric(n *html.Node, id, spec, raw string) {
	b := parseBinding(spec)
	act := ParseAction(raw)
	r.on(n, &listener{event: b.event, once: b.once, fn: func(node *html.Node, e *Event) {
		if b.self && e.target != node {
			return
		}
		if strings.HasPrefix(b.event, "key") && !b.matchKey(e) {
			return
		}
		if b.prevent {
			e.PreventDefault()
		}
		if b.stop {
			e.StopPropagation()
		}
		if !r.confirmedLocked(node) {
			return
		}
		args := act.resolve(eventArg(e))
		if b.debounce > 0 {
			r.debounceLocked(node, b.debounce, func() {
				r.sendLocked(id, act.Name, args, node, false)
			})
			return
		}
		r.sendLocked(id, act.Name, args, node, false)
	}})
}

// debounceLocked runs fn once d has passed without another call for node.
func (r *Runtime) debounceLocked(node *html.Node, d time.Duration, fn func()) {
	prev := r.debounce[node]
	var gen uint64 = 1
	if prev != nil {
		prev.timer.Stop()
		gen = prev.gen + 1
	}
	p := &pendingTimer{gen: gen}
	p.timer = r.clock.AfterFunc(d, func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if cur := r.debounce[node]; cur == nil || cur.gen != gen {
			return
		}
		delete(r.debounce, node)
		fn()
	})
	r.debounce[node] = p
}

// eventArg is what $event stands for: the detail, else the target's
// value.
func eventArg(e *Event) any {
	if e.Detail != nil {
		return e.Detail
	}
	if e.target != nil {
		if v, ok := getAttr(e.target, "value"); ok {
			return v
		}
	}
	return map[string]any{"type": e.Type, "key": e.Key}
}

// dispatchLocked bubbles e from target to the document, then runs the
// default actions the runtime emulates.
func (r *Runtime) dispatchLocked(target *html.Node, e *Event) {
	e.target = target
	for n := target; n != nil && !e.stopped; n = n.Parent {
		ls := r.listeners[n]
		if len(ls) == 0 {
			continue
		}
		for _, l := range append([]*listener(nil), ls...) {
			if l.event != e.Type {
				continue
			}
			if l.once {
				r.removeListener(n, l)
			}
			l.fn(n, e)
		}
	}
	if e.defaultPrevented {
		return
	}
	switch e.Type {
	case "click":
		if r.navClickLocked(target, e) {
			return
		}
		if form := submitterForm(target); form != nil {
			r.dispatchLocked(form, &Event{Type: "submit"})
		}
	}
}

func (r *Runtime) removeListener(n *html.Node, l *listener) {
	ls := r.listeners[n]
	for i, x := range ls {
		if x == l {
			r.listeners[n] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

// submitterForm returns the form a click on n submits, if any.
func submitterForm(n *html.Node) *html.Node {
	btn := closest(n, func(c *html.Node) bool {
		switch c.DataAtom {
		case atom.Button:
			t, ok := getAttr(c, "type")
			return !ok || strings.EqualFold(t, "submit")
		case atom.Input:
			return strings.EqualFold(inputType(c), "submit")
		}
		return false
	})
	if btn == nil {
		return nil
	}
	return closest(btn, func(c *html.Node) bool { return c.DataAtom == atom.Form })
}

// emitLocked dispatches a window event: live:window.* bindings first,
// then subscribers.
func (r *Runtime) emitLocked(name string, detail any) {
	for _, b := range append([]*windowBinding(nil), r.windowBind...) {
		if b.event != name || !contains(r.doc, b.node) {
			continue
		}
		host := closest(b.node, func(n *html.Node) bool { return hasAttr(n, protocol.AttrID) })
		if host == nil {
			continue
		}
		id, _ := getAttr(host, protocol.AttrID)
		args := []any{detail}
		if b.hasArgs {
			args = b.action.resolve(detail)
		}
		r.sendLocked(id, b.action.Name, args, b.node, true)
	}
	for _, s := range append([]*subscription(nil), r.subs[name]...) {
		s.fn(detail)
	}
}

// OnWindow subscribes to a window event: browser events from update
// responses, navigation events and NativeEvent. The returned function
// unsubscribes.
func (r *Runtime) OnWindow(name string, fn func(detail any)) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSub++
	s := &subscription{id: r.nextSub, fn: fn}
	r.subs[name] = append(r.subs[name], s)
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		subs := r.subs[name]
		for i, x := range subs {
			if x == s {
				r.subs[name] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

// EmitWindow dispatches a window event, as a host page script would.
func (r *Runtime) EmitWindow(name string, detail any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.emitLocked(name, detail)
}

// Dispatch fires e on the first element matching selector.
func (r *Runtime) Dispatch(selector string, e *Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.queryLocked(selector)
	if err != nil {
		return err
	}
	r.dispatchLocked(n, e)
	return nil
}

// Click clicks the first element matching selector.
func (r *Runtime) Click(selector string) error {
	return r.Dispatch(selector, &Event{Type: "click"})
}

// Submit submits the form matching selector.
func (r *Runtime) Submit(selector string) error {
	return r.Dispatch(selector, &Event{Type: "submit"})
}

// KeyDown presses key (a DOM key value such as "Enter" or "a") with the
// named modifier keys held.
func (r *Runtime) KeyDown(selector, key string, mods ...string) error {
	e := &Event{Type: "keydown", Key: key}
	for _, m := range mods {
		switch m {
		case "shift":
			e.Shift = true
		case "ctrl":
			e.Ctrl = true
		case "alt":
			e.Alt = true
		case "meta", "cmd":
			e.Meta = true
		}
	}
	return r.Dispatch(selector, e)
}

// Input types value into a text-like control and fires input.
func (r *Runtime) Input(selector, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.queryLocked(selector)
	if err != nil {
		return err
	}
	if n.DataAtom == atom.Textarea {
		setText(n, value)
	} else {
		setAttr(n, "value", value)
	}
	r.dispatchLocked(n, &Event{Type: "input"})
	return nil
}

// Check sets a checkbox and fires change.
func (r *Runtime) Check(selector string, checked bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.queryLocked(selector)
	if err != nil {
		return err
	}
	if checked {
		setAttr(n, "checked", "")
	} else {
		removeAttr(n, "checked")
	}
	r.dispatchLocked(n, &Event{Type: "change"})
	return nil
}

// Select chooses the options with the given values and fires change.
func (r *Runtime) Select(selector string, values ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	n, err := r.queryLocked(selector)
	if err != nil {
		return err
	}
	if n.DataAtom != atom.Select {
		return fmt.Errorf("client: %s is not a select", selector)
	}
	want := map[string]bool{}
	for _, v := range values {
		want[v] = true
	}
	for _, o := range options(n) {
		if want[optionValue(o)] {
			setAttr(o, "selected", "")
		} else {
			removeAttr(o, "selected")
		}
	}
	r.dispatchLocked(n, &Event{Type: "change"})
	return nil
}

func inputType(n *html.Node) string {
	if n.DataAtom != atom.Input {
		return ""
	}
	t, _ := getAttr(n, "type")
	return strings.ToLower(t)
}

func options(sel *html.Node) []*html.Node {
	var out []*html.Node
	walk(sel, func(n *html.Node) bool {
		if n.DataAtom == atom.Option {
			out = append(out, n)
		}
		return true
	})
	return out
}

func optionValue(o *html.Node) string {
	if v, ok := getAttr(o, "value"); ok {
		return v
	}
	return strings.TrimSpace(textContent(o))
}

// inputValue reads a control the way the model binding stores it.
func inputValue(n *html.Node) any {
	switch {
	case n.DataAtom == atom.Textarea:
		return textContent(n)
	case n.DataAtom == atom.Select:
		_, multiple := getAttr(n, "multiple")
		var picked []any
		for _, o := range options(n) {
			if hasAttr(o, "selected") {
				picked = append(picked, optionValue(o))
			}
		}
		if multiple {
			if picked == nil {
				picked = []any{}
			}
			return picked
		}
		if len(picked) > 0 {
			return picked[0]
		}
		if opts := options(n); len(opts) > 0 {
			return optionValue(opts[0])
		}
		return ""
	}
	switch inputType(n) {
	case "checkbox":
		return hasAttr(n, "checked")
	case "number", "range":
		v, _ := getAttr(n, "value")
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil
		}
		return f
	}
	v, _ := getAttr(n, "value")
	return v
}

// setInputValue seeds a control from mirrored state.
func setInputValue(n *html.Node, v any) {
	if inputType(n) == "checkbox" {
		if b, _ := v.(bool); b {
			setAttr(n, "checked", "")
		} else {
			removeAttr(n, "checked")
		}
		return
	}
	s := formatValue(v)
	switch n.DataAtom {
	case atom.Textarea:
		setText(n, s)
	case atom.Select:
		for _, o := range options(n) {
			if optionValue(o) == s {
				setAttr(o, "selected", "")
			} else {
				removeAttr(o, "selected")
			}
		}
	default:
		setAttr(n, "value", s)
	}
}

func formatValue(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	}
	return fmt.Sprint(v)
}

// getPath reads a dot path from state.
func getPath(data map[string]any, path string) (any, bool) {
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// setPath writes a dot path into state, creating objects on the way.
func setPath(data map[string]any, path string, v any) {
	parts := strings.Split(path, ".")
	m := data
	for _, part := range parts[:len(parts)-1] {
		next, ok := m[part].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[part] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = v
}
