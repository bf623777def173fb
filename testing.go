package livecmp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/pthm/livecmp/lib/protocol"
)

// TestResult holds the outcome of a test request.
//
// Provides convenience methods for asserting on HTML content, state,
// events, flashes and redirects.
type TestResult struct {
	StatusCode int
	Headers    http.Header
	Body       string
	Response   Response
}

// Tester drives one component instance through the update endpoint the
// way a client runtime would: it mounts the component, keeps the mirrored
// state, and posts actions with it.
//
//	tc, err := reg.Test(ctx, "counter", nil)
//	res, err := tc.Call("increment")
//	if tc.Data["count"] != float64(1) { ... }
type Tester struct {
	reg     *Registry
	handler http.Handler
	cookies []*http.Cookie

	ID   string
	Name string
	Data map[string]any
}

// Test mounts name with params and returns a Tester for it.
func (reg *Registry) Test(ctx context.Context, name string, params map[string]any) (*Tester, error) {
	resp, err := reg.manager.Mount(ctx, name, params)
	if err != nil {
		return nil, err
	}
	if resp.IsRedirect() {
		return nil, fmt.Errorf("livecmp: %s redirected to %s during mount", name, resp.Redirect)
	}
	id, data, err := stateOf(resp.HTML)
	if err != nil {
		return nil, err
	}
	return &Tester{reg: reg, handler: reg.Handler(), ID: id, Name: name, Data: data}, nil
}

// stateOf reads the injected state attribute back out of rendered markup.
func stateOf(markup string) (string, map[string]any, error) {
	root, err := parseRoot(markup)
	if err != nil {
		return "", nil, err
	}
	for _, a := range root.attrs {
		if a.key != protocol.AttrData {
			continue
		}
		var st protocol.State
		if err := json.Unmarshal([]byte(a.val), &st); err != nil {
			return "", nil, err
		}
		return st.ID, st.Data, nil
	}
	return "", nil, fmt.Errorf("livecmp: markup has no %s attribute", protocol.AttrData)
}

// Set writes a state value as a model binding would.
func (t *Tester) Set(field string, value any) *Tester {
	t.Data[field] = value
	return t
}

// Call posts an action with the current state. On an update response the
// mirrored state is replaced with the returned data.
func (t *Tester) Call(action string, args ...any) (*TestResult, error) {
	return t.Send(ActionPayload(t.ID, t.Name, t.Data, action, args...))
}

// Refresh posts $refresh.
func (t *Tester) Refresh() (*TestResult, error) {
	return t.Send(RefreshPayload(t.ID, t.Name, t.Data))
}

// Send posts an arbitrary payload.
func (t *Tester) Send(p Payload) (*TestResult, error) {
	body, err := json.Marshal(protocol.Envelope{Payload: mustJSON(p)})
	if err != nil {
		return nil, err
	}
	req := httptest.NewRequest(http.MethodPost, protocol.DefaultEndpoint, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(protocol.HeaderRequest, "true")
	for _, c := range t.cookies {
		req.AddCookie(c)
	}

	rec := httptest.NewRecorder()
	t.handler.ServeHTTP(rec, req)

	res := &TestResult{
		StatusCode: rec.Code,
		Headers:    rec.Header(),
		Body:       rec.Body.String(),
	}
	t.cookies = append(t.cookies, rec.Result().Cookies()...)

	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &res.Response); err != nil {
			return res, fmt.Errorf("livecmp: decode response: %w", err)
		}
		if res.Response.Data != nil {
			t.Data = res.Response.Data
		}
	}
	return res, nil
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}

// HTML returns the rendered fragment.
func (r *TestResult) HTML() string { return r.Response.HTML }

// HTMLContains checks if the HTML contains a substring.
func (r *TestResult) HTMLContains(substr string) bool {
	return strings.Contains(r.Response.HTML, substr)
}

// HTMLContainsAll checks if the HTML contains all the given substrings.
func (r *TestResult) HTMLContainsAll(substrs ...string) bool {
	for _, s := range substrs {
		if !strings.Contains(r.Response.HTML, s) {
			return false
		}
	}
	return true
}

// HasEvent checks if a browser event was dispatched.
func (r *TestResult) HasEvent(name string) bool {
	for _, e := range r.Response.Events {
		if e.Name == name {
			return true
		}
	}
	return false
}

// HasNative checks if a native call was returned.
func (r *TestResult) HasNative(name string) bool {
	for _, e := range r.Response.NativeEvents {
		if e.Name == name {
			return true
		}
	}
	return false
}

// HasFlash checks if a flash message was set with the given level and message.
func (r *TestResult) HasFlash(level, message string) bool {
	for _, e := range r.Response.Events {
		if e.Name != FlashEvent {
			continue
		}
		f, ok := e.Detail.(map[string]any)
		if ok && f["level"] == level && f["message"] == message {
			return true
		}
	}
	return false
}

// WasRedirected checks if the response was a redirect.
func (r *TestResult) WasRedirected() bool {
	return r.Response.Redirect != ""
}

// RedirectedTo checks if the response was redirected to a specific URL.
func (r *TestResult) RedirectedTo(url string) bool {
	return r.Response.Redirect == url
}

// IsOK checks if the status code is 200 and the body is an update.
func (r *TestResult) IsOK() bool {
	return r.StatusCode == http.StatusOK && r.Response.Error == "" && r.Response.ErrorHTML == ""
}

// HasStatus checks if the status code matches.
func (r *TestResult) HasStatus(code int) bool {
	return r.StatusCode == code
}
