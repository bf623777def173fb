package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/net/html"

	"github.com/pthm/livecmp/lib/protocol"
)

// FatalMarkers identify an error page in a response that should have
// been JSON. Such responses are shown in the overlay.
var FatalMarkers = []string{"live-error-overlay", "panic:", "goroutine ", "Fatal error", "Internal Server Error"}

var (
	// ErrMalformedResponse is recorded when an update response is not
	// JSON and does not look like an error page.
	ErrMalformedResponse = errors.New("client: malformed response")

	// ErrServer is recorded for soft errors returned by the endpoint.
	ErrServer = errors.New("client: server error")
)

// FatalResponseError is an error page returned in place of JSON.
type FatalResponseError struct {
	Status int
	Body   string
}

func (e *FatalResponseError) Error() string {
	return fmt.Sprintf("client: fatal response (status %d)", e.Status)
}

// StatusError is a page fetch answered with a non-2xx status.
type StatusError struct {
	URL    string
	Status int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("client: GET %s: status %d", e.URL, e.Status)
}

// sendLocked posts an action of component id. Responses older than one
// already applied to the component are dropped.
func (r *Runtime) sendLocked(id, action string, args []any, trigger *html.Node, fromWindow bool) {
	c := r.components[id]
	if c == nil {
		return
	}

	var target *html.Node
	if sel, ok := getAttr(trigger, protocol.AttrLoadingTarget); ok && sel != "" {
		target, _ = query(c.el, sel)
		if target == nil {
			target, _ = query(r.doc, sel)
		}
	}
	global := target == nil && !fromWindow
	if global {
		r.startLoadingLocked()
	}
	if target != nil {
		setStyleDisplay(target, "block")
	}

	if args == nil {
		args = []any{}
	}
	params, err := json.Marshal(args)
	if err != nil {
		r.recordLocked(fmt.Errorf("client: encode params of %s: %w", action, err))
		params = []byte("[]")
	}
	body, err := encodeEnvelope(protocol.Payload{
		ID:     id,
		Name:   c.name,
		Data:   c.data,
		Action: action,
		Params: params,
	})
	if err != nil {
		r.recordLocked(err)
		if global {
			r.finishLoadingLocked()
		}
		return
	}

	c.seq++
	seq := c.seq
	endpoint := r.endpointURL().String()
	r.logger.Debug("send", "component", c.name, "action", action, "seq", seq)

	r.beginLocked()
	go func() {
		defer r.end()
		res, err := r.post(r.ctx, endpoint, body)

		r.mu.Lock()
		defer r.mu.Unlock()
		if global {
			r.finishLoadingLocked()
		}
		if target != nil {
			setStyleDisplay(target, "none")
		}
		if err != nil {
			r.failLocked(err)
			return
		}
		cur := r.components[id]
		if cur == nil {
			cur = c
		}
		if seq < cur.applied {
			r.logger.Debug("stale response dropped", "component", c.name, "seq", seq, "applied", cur.applied)
			return
		}
		cur.applied = seq
		r.applyLocked(id, res)
	}()
}

func encodeEnvelope(p protocol.Payload) ([]byte, error) {
	raw, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("client: encode payload: %w", err)
	}
	return json.Marshal(protocol.Envelope{Payload: raw})
}

// post sends an update request and decodes the response.
func (r *Runtime) post(ctx context.Context, endpoint string, body []byte) (*protocol.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(protocol.HeaderRequest, "true")

	resp, err := r.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client: post update: %w", err)
	}
	defer resp.Body.Close()
	text, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("client: read update: %w", err)
	}
	return decodeResponse(resp.StatusCode, text)
}

func decodeResponse(status int, text []byte) (*protocol.Response, error) {
	res := &protocol.Response{}
	if len(bytes.TrimSpace(text)) == 0 {
		return res, nil
	}
	if err := json.Unmarshal(text, res); err != nil {
		body := string(text)
		for _, m := range FatalMarkers {
			if strings.Contains(body, m) {
				return nil, &FatalResponseError{Status: status, Body: body}
			}
		}
		return nil, fmt.Errorf("%w (status %d): %v", ErrMalformedResponse, status, err)
	}
	return res, nil
}

// failLocked records err, showing error pages in the overlay.
func (r *Runtime) failLocked(err error) {
	var fatal *FatalResponseError
	if errors.As(err, &fatal) {
		r.showOverlayLocked(fatal.Body)
	}
	r.recordLocked(err)
}

// applyLocked applies an update response to component id. DOM work is
// queued on the scheduler in response order: the patch, the state sync,
// then one task per browser event and per native call.
func (r *Runtime) applyLocked(id string, res *protocol.Response) {
	switch {
	case res.ErrorHTML != "":
		r.showOverlayLocked(res.ErrorHTML)
		return
	case res.Error != "":
		r.recordLocked(fmt.Errorf("%w: %s", ErrServer, res.Error))
		return
	case res.Redirect != "":
		if res.Navigate {
			r.navigateLocked(res.Redirect, true)
		} else {
			r.fullLoadLocked(res.Redirect)
		}
		return
	case res.HTML == "":
		return
	}

	r.sched.Push(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		c := r.components[id]
		if c == nil || c.el.Parent == nil {
			return
		}
		el, err := parseElement(res.HTML, c.el.Parent)
		if err != nil {
			r.recordLocked(fmt.Errorf("client: patch %s: %w", c.name, err))
			return
		}
		r.forgetLocked(c.el)
		r.dropNestedLocked(c.el, id)
		replaceNode(c.el, el)
		r.initTreeLocked(el)
	})
	r.sched.Push(func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if c := r.components[id]; c != nil && res.Data != nil {
			c.data = res.Data
		}
	})
	for _, ev := range res.Events {
		r.sched.Push(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.emitLocked(ev.Name, ev.Detail)
		})
	}
	for _, call := range res.NativeEvents {
		r.sched.Push(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			r.callNativeLocked(call)
		})
	}
}

// dropNestedLocked forgets components rendered inside old other than id.
func (r *Runtime) dropNestedLocked(old *html.Node, id string) {
	for cid, c := range r.components {
		if cid != id && contains(old, c.el) {
			delete(r.components, cid)
		}
	}
}

func (r *Runtime) callNativeLocked(call protocol.Event) {
	if r.native != nil {
		r.native.Call(call.Name, call.Detail)
		return
	}
	r.emitLocked(NativeEvent, call)
}

func (r *Runtime) showOverlayLocked(markup string) {
	r.overlay = markup
	if r.onOverlay != nil {
		r.onOverlay(markup)
	}
}

func (r *Runtime) startLoadingLocked() {
	r.loading++
	if r.loading == 1 && r.onLoading != nil {
		r.onLoading(true)
	}
}

func (r *Runtime) finishLoadingLocked() {
	if r.loading == 0 {
		return
	}
	r.loading--
	if r.loading == 0 && r.onLoading != nil {
		r.onLoading(false)
	}
}

// fetchPage GETs u and returns the body and the URL it was finally
// served from.
func (r *Runtime) fetchPage(ctx context.Context, u *url.URL, navigate bool) (string, *url.URL, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return "", nil, err
	}
	req.Header.Set("Accept", "text/html")
	if navigate {
		req.Header.Set(protocol.HeaderNavigate, "true")
	}
	resp, err := r.http.Do(req)
	if err != nil {
		return "", nil, fmt.Errorf("client: GET %s: %w", u, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", nil, fmt.Errorf("client: read %s: %w", u, err)
	}
	final := resp.Request.URL
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return string(body), final, &StatusError{URL: final.String(), Status: resp.StatusCode}
	}
	return string(body), final, nil
}
