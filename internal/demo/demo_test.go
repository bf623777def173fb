package demo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/pthm/livecmp"
)

var testKey = []byte("0123456789abcdef0123456789abcdef")

type mapSession struct {
	mu     sync.Mutex
	values map[string]any
}

func (s *mapSession) Get(key string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *mapSession) Set(key string, value any) {
	s.mu.Lock()
	s.values[key] = value
	s.mu.Unlock()
}

func (s *mapSession) Remove(key string) {
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
}

func newRegistry(t *testing.T, deps Deps) (*livecmp.Registry, *mapSession) {
	t.Helper()
	reg := livecmp.NewRegistry(testKey)
	sess := &mapSession{values: map[string]any{}}
	reg.SetSessions(livecmp.SessionsFunc(func(w http.ResponseWriter, r *http.Request) (livecmp.Session, func(context.Context) error, error) {
		return sess, nil, nil
	}))
	Register(reg, deps)
	return reg, sess
}

func TestRegister(t *testing.T) {
	reg, _ := newRegistry(t, Deps{})
	want := []string{"counter", "device", "login", "signup", "stats", "todos"}
	got := reg.Names()
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("Names() = %v, want %v", got, want)
	}
}

func TestCounter(t *testing.T) {
	reg, _ := newRegistry(t, Deps{})
	tc, err := reg.Test(context.Background(), "counter", nil)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}

	tests := []struct {
		action string
		want   float64
	}{
		{"increment", 1},
		{"increment", 2},
		{"decrement", 1},
		{"decrement", 0},
		{"decrement", 0},
	}
	for _, tt := range tests {
		res, err := tc.Call(tt.action)
		if err != nil {
			t.Fatalf("Call(%q) error = %v", tt.action, err)
		}
		if !res.IsOK() {
			t.Fatalf("Call(%q) not OK: %s", tt.action, res.Body)
		}
		if tc.Data["count"] != tt.want {
			t.Errorf("after %s count = %v, want %v", tt.action, tc.Data["count"], tt.want)
		}
	}
}

// todosOf decodes the todos field of a snapshot.
func todosOf(t *testing.T, data map[string]any) []Todo {
	t.Helper()
	raw, err := json.Marshal(data["todos"])
	if err != nil {
		t.Fatal(err)
	}
	var out []Todo
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("todos = %s: %v", raw, err)
	}
	return out
}

func equalTodos(a, b []Todo) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestTodoList(t *testing.T) {
	reg, _ := newRegistry(t, Deps{})
	tc, err := reg.Test(context.Background(), "todos", nil)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}

	res, err := tc.Call("add")
	if err != nil {
		t.Fatal(err)
	}
	if !res.HTMLContains("live-field-error") {
		t.Errorf("empty todo should render a field error, got %s", res.HTML())
	}
	if res.HasEvent(TodoAddedEvent) {
		t.Error("empty todo should not dispatch an event")
	}
	if got := todosOf(t, tc.Data); len(got) != 0 {
		t.Errorf("todos = %v, want empty", got)
	}

	res, err = tc.Set("newTodo", "Buy milk").Call("add")
	if err != nil {
		t.Fatal(err)
	}
	if !res.HasEvent(TodoAddedEvent) {
		t.Error("expected todo-added event")
	}
	if res.HTMLContains("live-field-error") {
		t.Error("field error should be cleared after a valid add")
	}
	if tc.Data["newTodo"] != "" {
		t.Errorf("newTodo = %v, want reset", tc.Data["newTodo"])
	}
	if got, want := todosOf(t, tc.Data), []Todo{{ID: 1, Text: "Buy milk"}}; !equalTodos(got, want) {
		t.Errorf("todos = %v, want %v", got, want)
	}
	if !res.HTMLContainsAll("Buy milk", "1 remaining") {
		t.Errorf("unexpected HTML: %s", res.HTML())
	}

	res, err = tc.Call("toggle", 1)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := todosOf(t, tc.Data), []Todo{{ID: 1, Text: "Buy milk", Done: true}}; !equalTodos(got, want) {
		t.Errorf("todos = %v, want %v", got, want)
	}
	if !res.HTMLContainsAll(`class="todo done"`, "0 remaining") {
		t.Errorf("toggle did not mark done: %s", res.HTML())
	}

	res, err = tc.Call("delete", "1")
	if err != nil {
		t.Fatal(err)
	}
	if got := todosOf(t, tc.Data); len(got) != 0 {
		t.Errorf("todos = %v, want empty", got)
	}
	if res.HTMLContains("Buy milk") {
		t.Error("todo was not removed")
	}
}

func TestTodoList_IDsAfterDelete(t *testing.T) {
	reg, _ := newRegistry(t, Deps{})
	tc, err := reg.Test(context.Background(), "todos", nil)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}

	steps := []struct {
		action string
		text   string
		arg    any
		want   []Todo
	}{
		{action: "add", text: "a", want: []Todo{{ID: 1, Text: "a"}}},
		{action: "add", text: "b", want: []Todo{{ID: 1, Text: "a"}, {ID: 2, Text: "b"}}},
		{action: "delete", arg: 1, want: []Todo{{ID: 2, Text: "b"}}},
		{action: "add", text: "c", want: []Todo{{ID: 2, Text: "b"}, {ID: 3, Text: "c"}}},
		{action: "toggle", arg: 2, want: []Todo{{ID: 2, Text: "b", Done: true}, {ID: 3, Text: "c"}}},
		{action: "toggle", arg: 3, want: []Todo{{ID: 2, Text: "b", Done: true}, {ID: 3, Text: "c", Done: true}}},
		{action: "toggle", arg: 2, want: []Todo{{ID: 2, Text: "b"}, {ID: 3, Text: "c", Done: true}}},
		{action: "delete", arg: 3, want: []Todo{{ID: 2, Text: "b"}}},
	}
	for i, st := range steps {
		var res *livecmp.TestResult
		if st.action == "add" {
			res, err = tc.Set("newTodo", st.text).Call("add")
		} else {
			res, err = tc.Call(st.action, st.arg)
		}
		if err != nil {
			t.Fatalf("step %d %s: %v", i, st.action, err)
		}
		if !res.IsOK() {
			t.Fatalf("step %d %s not OK: %s", i, st.action, res.Body)
		}
		if got := todosOf(t, tc.Data); !equalTodos(got, st.want) {
			t.Errorf("step %d %s: todos = %v, want %v", i, st.action, got, st.want)
		}
	}
}

func TestSignup(t *testing.T) {
	users := NewMemoryUsers()
	if err := users.Create(context.Background(), "Ann", "ann@example.com", "password1"); err != nil {
		t.Fatal(err)
	}
	reg, _ := newRegistry(t, Deps{Users: users})

	tests := []struct {
		name      string
		data      map[string]any
		wantError string
		wantFlash bool
	}{
		{
			name:      "invalid email",
			data:      map[string]any{"name": "Bob", "email": "nope", "password": "password1"},
			wantError: "valid email",
		},
		{
			name:      "short password",
			data:      map[string]any{"name": "Bob", "email": "bob@example.com", "password": "short"},
			wantError: "at least 8",
		},
		{
			name:      "duplicate email",
			data:      map[string]any{"name": "Ann", "email": "ANN@example.com", "password": "password1"},
			wantError: "already registered",
		},
		{
			name:      "success",
			data:      map[string]any{"name": "Bob", "email": "bob@example.com", "password": "password1"},
			wantFlash: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := reg.Test(context.Background(), "signup", nil)
			if err != nil {
				t.Fatal(err)
			}
			for k, v := range tt.data {
				tc.Set(k, v)
			}
			res, err := tc.Call("submit")
			if err != nil {
				t.Fatal(err)
			}
			if !res.IsOK() {
				t.Fatalf("response not OK: %s", res.Body)
			}
			if tt.wantError != "" && !res.HTMLContains(tt.wantError) {
				t.Errorf("HTML missing %q: %s", tt.wantError, res.HTML())
			}
			if got := res.HasFlash(livecmp.FlashSuccess, "Welcome, Bob!"); got != tt.wantFlash {
				t.Errorf("HasFlash() = %v, want %v", got, tt.wantFlash)
			}
			if tt.wantFlash && tc.Data["email"] != "" {
				t.Errorf("form not reset: %v", tc.Data)
			}
		})
	}
}

func TestLogin(t *testing.T) {
	users := NewMemoryUsers()
	_ = users.Create(context.Background(), "Ann", "ann@example.com", "password1")
	reg, sess := newRegistry(t, Deps{Users: users, Home: "/dashboard"})

	tc, err := reg.Test(context.Background(), "login", nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := tc.Set("email", "ann@example.com").Set("password", "wrong").Call("login")
	if err != nil {
		t.Fatal(err)
	}
	if !res.HTMLContains("do not match") {
		t.Errorf("expected credentials error: %s", res.HTML())
	}
	if tc.Data["password"] != "" {
		t.Error("password should be cleared after a failed login")
	}

	res, err = tc.Set("password", "password1").Call("login")
	if err != nil {
		t.Fatal(err)
	}
	if !res.RedirectedTo("/dashboard") || !res.Response.Navigate {
		t.Errorf("expected navigate to /dashboard, got %+v", res.Response)
	}
	if v, _ := sess.Get(SessionUserKey); v != "Ann" {
		t.Errorf("session user = %v, want Ann", v)
	}

	ctx := livecmp.WithScope(context.Background(), livecmp.NewScope(sess))
	resp, err := reg.Manager().Mount(ctx, "login", nil)
	if err != nil {
		t.Fatal(err)
	}
	if resp.Redirect != "/dashboard" {
		t.Errorf("signed-in mount should redirect, got %+v", resp)
	}
}

func TestStatsLazy(t *testing.T) {
	reg, _ := newRegistry(t, Deps{Stats: StaticStats{"visits": 3}})
	ctx := context.Background()

	page, err := reg.Manager().RenderPage(ctx, "stats", map[string]any{"range": "month"})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(page.HTML, "live:lazy") || !strings.Contains(page.HTML, "Loading stats") {
		t.Errorf("expected lazy placeholder: %s", page.HTML)
	}
	if strings.Contains(page.HTML, "<dt>visits</dt>") {
		t.Error("placeholder should not contain the loaded stats")
	}

	params := map[string]any{"range": "month"}
	raw, _ := json.Marshal(params)
	sum, err := reg.Encoder().Checksum(params)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := reg.Manager().HandleRequest(ctx, livecmp.Payload{
		ID: "stats1", Name: "stats", LazyLoad: true, Params: raw, Checksum: sum,
	})
	if err != nil {
		t.Fatalf("HandleRequest() error = %v", err)
	}
	if !strings.Contains(resp.HTML, "<dt>visits</dt><dd>3</dd>") || !strings.Contains(resp.HTML, `data-range="month"`) {
		t.Errorf("unexpected lazy HTML: %s", resp.HTML)
	}

	tampered, _ := json.Marshal(map[string]any{"range": "year"})
	_, err = reg.Manager().HandleRequest(ctx, livecmp.Payload{
		ID: "stats1", Name: "stats", LazyLoad: true, Params: tampered, Checksum: sum,
	})
	if !errors.Is(err, livecmp.ErrChecksum) {
		t.Errorf("tampered params error = %v, want ErrChecksum", err)
	}
}

func TestDevice(t *testing.T) {
	reg, _ := newRegistry(t, Deps{})
	tc, err := reg.Test(context.Background(), "device", nil)
	if err != nil {
		t.Fatal(err)
	}

	res, err := tc.Call("share", "https://example.com/a")
	if err != nil {
		t.Fatal(err)
	}
	if !res.HasNative(NativeShare) {
		t.Errorf("expected %s native call, got %+v", NativeShare, res.Response.NativeEvents)
	}
	if tc.Data["shared"] != float64(1) {
		t.Errorf("shared = %v, want 1", tc.Data["shared"])
	}

	res, err = tc.Call("battery", map[string]any{"level": 42})
	if err != nil {
		t.Fatal(err)
	}
	if res.HasNative(NativeShare) {
		t.Error("native calls must not carry over between requests")
	}
	if !res.HTMLContains("42%") {
		t.Errorf("battery not rendered: %s", res.HTML())
	}
	if !res.HTMLContains(`live:window.battery="battery($event)"`) {
		t.Errorf("window binding missing: %s", res.HTML())
	}
}

func TestMemoryUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryUsers()
	if err := s.Create(ctx, "Ann", "ann@example.com", "secret"); err != nil {
		t.Fatal(err)
	}
	if err := s.Create(ctx, "Ann", "Ann@Example.com", "other"); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("Create() duplicate error = %v, want ErrEmailTaken", err)
	}
	if name, err := s.Authenticate(ctx, "ann@example.com", "secret"); err != nil || name != "Ann" {
		t.Errorf("Authenticate() = %q, %v", name, err)
	}
	if _, err := s.Authenticate(ctx, "ann@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate() wrong password error = %v", err)
	}
	if _, err := s.Authenticate(ctx, "nobody@example.com", "secret"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("Authenticate() unknown user error = %v", err)
	}
}

func TestViews_EscapeUserText(t *testing.T) {
	reg, _ := newRegistry(t, Deps{})
	tc, err := reg.Test(context.Background(), "todos", nil)
	if err != nil {
		t.Fatalf("Test() error = %v", err)
	}
	res, err := tc.Set("newTodo", `<img src=x onerror="alert(1)">`).Call("add")
	if err != nil {
		t.Fatal(err)
	}
	if res.HTMLContains("<img") {
		t.Errorf("todo text not escaped: %s", res.HTML())
	}
	if !res.HTMLContainsAll(`&lt;img src=x onerror=`, `data-id="1"`, `live:click="toggle(1)"`) {
		t.Errorf("unexpected HTML: %s", res.HTML())
	}
}
