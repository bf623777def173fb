// Package protocol defines the wire format shared by the livecmp server and
// its client runtimes: the update payload, the response envelope and the
// markup attribute vocabulary.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Markup attributes.
const (
	AttrID            = "live:id"
	AttrData          = "live:data"
	AttrLazy          = "live:lazy"
	AttrName          = "live:name"
	AttrParams        = "live:params"
	AttrChecksum      = "live:checksum"
	AttrClick         = "live:click"
	AttrSubmit        = "live:submit"
	AttrModel         = "live:model"
	AttrConfirm       = "live:confirm"
	AttrLoadingTarget = "live:loading-target"
	AttrNavigate      = "live:navigate"
	AttrNavigateHover = "live:navigate.hover"
	AttrPersist       = "live:persist"

	// AttrPrefix starts every attribute above and every generic event binding
	// (live:keydown.enter, live:input.debounce.500, ...).
	AttrPrefix = "live:"

	// WindowPrefix starts window event subscriptions (live:window.saved).
	WindowPrefix = "live:window."

	// LazyOnLoad as the value of AttrLazy loads the component immediately
	// instead of waiting for it to become visible.
	LazyOnLoad = "on-load"
)

// HTTP headers.
const (
	// HeaderRequest must be "true" on update requests. Browsers do not send
	// custom headers cross-origin without a preflight, which makes the
	// header a CSRF guard.
	HeaderRequest = "X-Live-Request"

	// HeaderNavigate marks SPA navigation fetches.
	HeaderNavigate = "X-Live-Navigate"
)

// Reserved action names and argument sentinels.
const (
	ActionRefresh = "$refresh"
	ActionCommit  = "$commit"
	EventArg      = "$event"
)

// DefaultEndpoint is where update requests are posted.
const DefaultEndpoint = "/live/update"

// Window events emitted by the navigation controller.
const (
	EventNavigating  = "live:navigating"
	EventNavigated   = "live:navigated"
	EventPrefetching = "live:prefetching"
	EventPrefetched  = "live:prefetched"
)

// ErrNoPayload is returned by DecodeEnvelope when the body carries no payload.
var ErrNoPayload = errors.New("protocol: no payload")

// IsReserved reports whether action requests a plain re-render.
func IsReserved(action string) bool {
	return action == ActionRefresh || action == ActionCommit
}

// Payload is the body of an update request.
type Payload struct {
	ID       string          `json:"id"`
	Name     string          `json:"name"`
	Data     map[string]any  `json:"data,omitempty"`
	Action   string          `json:"action,omitempty"`
	Params   json.RawMessage `json:"params,omitempty"`
	LazyLoad bool            `json:"lazyLoad,omitempty"`
	Checksum string          `json:"checksum,omitempty"`
}

// Envelope wraps a payload. The payload may be an object or a string
// holding the JSON-encoded object.
type Envelope struct {
	Payload json.RawMessage `json:"payload"`
}

// DecodeEnvelope parses a request body into a Payload.
func DecodeEnvelope(body []byte) (Payload, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Payload{}, fmt.Errorf("protocol: decode envelope: %w", err)
	}
	raw := bytes.TrimSpace(env.Payload)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return Payload{}, ErrNoPayload
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return Payload{}, fmt.Errorf("protocol: decode payload string: %w", err)
		}
		raw = []byte(s)
	}
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("protocol: decode payload: %w", err)
	}
	return p, nil
}

// Event is a named notification with an optional detail. Browser events
// are re-dispatched on the window after the DOM patch; native events are
// handed to the host bridge.
type Event struct {
	Name   string `json:"name"`
	Detail any    `json:"detail"`
}

// State is the value of the AttrData attribute.
type State struct {
	ID   string         `json:"id"`
	Name string         `json:"name"`
	Data map[string]any `json:"data"`
}

// Response is the body of an update response. Exactly one of its shapes is
// encoded: an update, a redirect, a diagnostic overlay or a soft error.
type Response struct {
	HTML         string         `json:"html,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
	Events       []Event        `json:"events,omitempty"`
	NativeEvents []Event        `json:"native_events,omitempty"`
	Redirect     string         `json:"redirect,omitempty"`
	Navigate     bool           `json:"navigate,omitempty"`
	Error        string         `json:"error,omitempty"`
	ErrorHTML    string         `json:"error_html,omitempty"`
}

// IsRedirect reports whether the response is a redirect instruction.
func (r *Response) IsRedirect() bool { return r.Redirect != "" }

// MarshalJSON encodes only the fields of the response's shape.
func (r Response) MarshalJSON() ([]byte, error) {
	switch {
	case r.Redirect != "":
		return json.Marshal(struct {
			Redirect string `json:"redirect"`
			Navigate bool   `json:"navigate"`
		}{r.Redirect, r.Navigate})
	case r.ErrorHTML != "":
		return json.Marshal(struct {
			ErrorHTML string `json:"error_html"`
		}{r.ErrorHTML})
	case r.Error != "":
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}

	events := r.Events
	if events == nil {
		events = []Event{}
	}
	data := r.Data
	if data == nil {
		data = map[string]any{}
	}
	return json.Marshal(struct {
		HTML         string         `json:"html"`
		Data         map[string]any `json:"data"`
		Events       []Event        `json:"events"`
		NativeEvents []Event        `json:"native_events,omitempty"`
	}{r.HTML, data, events, r.NativeEvents})
}
