package livecmp

import (
	"encoding/json"

	"github.com/pthm/livecmp/lib/protocol"
)

// Wire types shared with client runtimes.
type (
	// Payload is an update request: which instance, its mirrored state,
	// and the action to run.
	Payload = protocol.Payload

	// Response is the result of an update request. It encodes as exactly
	// one of {html, data, events, native_events}, {redirect, navigate},
	// {error_html} or {error}.
	Response = protocol.Response

	// Event is a browser event or a native call.
	Event = protocol.Event
)

// ActionPayload builds the payload the client sends for an action call.
// It is mostly useful in tests and non-browser clients:
//
//	resp, err := mgr.HandleRequest(ctx, livecmp.ActionPayload(id, "counter", state, "increment"))
func ActionPayload(id, name string, data map[string]any, action string, args ...any) Payload {
	p := Payload{ID: id, Name: name, Data: data, Action: action}
	if len(args) > 0 {
		raw, err := json.Marshal(args)
		if err == nil {
			p.Params = raw
		}
	}
	return p
}

// RefreshPayload builds a $refresh payload: re-render with unchanged state.
func RefreshPayload(id, name string, data map[string]any) Payload {
	return Payload{ID: id, Name: name, Data: data, Action: protocol.ActionRefresh}
}
