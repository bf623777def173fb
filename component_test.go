package livecmp

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/pthm/livecmp/lib/validation"
)

func boundCounter(t *testing.T) *counter {
	t.Helper()
	c := newCounter(nil)().(*counter)
	c.bind("counter", c.Fields())
	return c
}

func TestValue_DefaultCapturedAtDeclaration(t *testing.T) {
	n := 5
	f := Value("n", &n)
	n = 9
	if got := f.Default(); got != float64(5) {
		t.Errorf("Default() = %v, want 5", got)
	}
	if err := f.reset(); err != nil {
		t.Fatalf("reset() error = %v", err)
	}
	if n != 5 {
		t.Errorf("after reset n = %d, want 5", n)
	}
	if f.Type() != reflect.TypeOf(0) {
		t.Errorf("Type() = %v", f.Type())
	}
}

func TestValue_PanicsOnUnserializableDefault(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("Value() should panic for a channel field")
		}
	}()
	ch := make(chan int)
	Value("ch", &ch)
}

func TestBind_DuplicateFieldPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("bind() should panic on duplicate field names")
		}
	}()
	var a, b int
	var base Base
	base.bind("dup", []Field{Value("x", &a), Value("x", &b)})
}

func TestBase_Set(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		value   any
		want    any
		wantErr bool
	}{
		{"exact type", "count", 3, 3, false},
		{"json number", "count", float64(4), 4, false},
		{"numeric string", "count", "7", 7, false},
		{"string", "label", "taps", "taps", false},
		{"slice from json", "tags", []any{"a", "b"}, []string{"a", "b"}, false},
		{"wrong type", "count", "seven", nil, true},
		{"unknown field", "nope", 1, nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := boundCounter(t)
			err := c.Set(tt.field, tt.value)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Set() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			got, _ := c.Get(tt.field)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Get(%q) = %#v, want %#v", tt.field, got, tt.want)
			}
		})
	}
}

func TestBase_HydrateIgnoresUnknownKeys(t *testing.T) {
	c := boundCounter(t)
	err := c.Hydrate(map[string]any{"count": float64(2), "evil": "x"})
	if err != nil {
		t.Fatalf("Hydrate() error = %v", err)
	}
	if c.Count != 2 || c.Label != "clicks" {
		t.Errorf("state = %d/%q", c.Count, c.Label)
	}
	if _, ok := c.Snapshot()["evil"]; ok {
		t.Error("unknown key leaked into the snapshot")
	}
	if err := c.Hydrate(map[string]any{"tags": "nope"}); err == nil {
		t.Error("Hydrate() should fail for a mistyped field")
	}
}

func TestBase_StateHelpers(t *testing.T) {
	c := boundCounter(t)
	c.Count, c.Label = 4, "taps"

	if got := c.FieldNames(); !reflect.DeepEqual(got, []string{"count", "label", "tags"}) {
		t.Errorf("FieldNames() = %v", got)
	}
	if got := c.Only("count", "missing"); !reflect.DeepEqual(got, map[string]any{"count": 4}) {
		t.Errorf("Only() = %v", got)
	}
	if got := c.Except("tags"); !reflect.DeepEqual(got, map[string]any{"count": 4, "label": "taps"}) {
		t.Errorf("Except() = %v", got)
	}
	if v, ok := c.Get("double"); !ok || v != 8 {
		t.Errorf("Get(double) = %v, %v", v, ok)
	}
	if _, ok := c.Snapshot()["double"]; ok {
		t.Error("computed values must not be part of the snapshot")
	}

	pulled := c.Pull("count")
	if pulled["count"] != 4 || c.Count != 0 {
		t.Errorf("Pull() = %v, count now %d", pulled, c.Count)
	}
	if c.Label != "taps" {
		t.Error("Pull(count) should leave label alone")
	}

	c.Count = 2
	c.Reset()
	if c.Count != 0 || c.Label != "clicks" {
		t.Errorf("Reset() left %d/%q", c.Count, c.Label)
	}
}

func TestBase_Errors(t *testing.T) {
	c := boundCounter(t)
	c.AddError("label", "first")
	c.AddError("label", "second")
	if c.Error("label") != "first" {
		t.Errorf("Error() = %q, want first message", c.Error("label"))
	}

	errs := c.Errors()
	errs["label"] = "mutated"
	if c.Error("label") != "first" {
		t.Error("Errors() must return a copy")
	}

	c.ClearErrors()
	if c.HasError("label") {
		t.Error("ClearErrors() left an error")
	}
}

func TestBase_Validate(t *testing.T) {
	c := boundCounter(t)
	c.AddError("count", "stale")
	c.Label = ""

	err := c.Validate(validation.Rules{"label": "required", "double": "required"})
	var verr *validation.Error
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want *validation.Error", err)
	}
	if c.HasError("count") {
		t.Error("Validate() should clear earlier errors")
	}
	if !c.HasError("label") {
		t.Error("missing label error")
	}
	// double is computed and 0, which counts as present
	if c.HasError("double") {
		t.Errorf("computed value not validated: %v", c.Errors())
	}

	c.Label = "ok"
	if err := c.Validate(validation.Rules{"label": "required"}); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
	if len(c.Errors()) != 0 {
		t.Errorf("errors after passing validation: %v", c.Errors())
	}
}

func TestBase_ActionsAndIntents(t *testing.T) {
	c := boundCounter(t)
	if !c.HasAction("increment") || c.HasAction("nope") {
		t.Error("HasAction() mismatch")
	}
	want := []string{"add", "explode", "fail", "go", "increment", "leave", "ping", "validate"}
	if got := c.Actions(); !reflect.DeepEqual(got, want) {
		t.Errorf("Actions() = %v", got)
	}

	c.Dispatch("saved", 1)
	if ev := c.Events(); len(ev) != 1 || ev[0].Name != "saved" {
		t.Errorf("Events() = %v", ev)
	}

	c.Redirect("/a")
	if r := c.RedirectIntent(); r == nil || r.URL != "/a" || r.Navigate {
		t.Errorf("RedirectIntent() = %+v", r)
	}
	c.Navigate("/b")
	if r := c.RedirectIntent(); r.URL != "/b" || !r.Navigate {
		t.Errorf("RedirectIntent() after Navigate = %+v", r)
	}
}

func TestArgs(t *testing.T) {
	args := Args{float64(3), "4", "x", map[string]any{"a": float64(1)}}

	if n, err := args.Int(0); err != nil || n != 3 {
		t.Errorf("Int(0) = %d, %v", n, err)
	}
	if n, err := args.Int(1); err != nil || n != 4 {
		t.Errorf("Int(1) = %d, %v", n, err)
	}
	if _, err := args.Int(2); !errors.Is(err, ErrBadArguments) {
		t.Errorf("Int(2) error = %v, want ErrBadArguments", err)
	}
	if _, err := args.Int(9); !errors.Is(err, ErrBadArguments) {
		t.Errorf("Int(9) error = %v, want ErrBadArguments", err)
	}
	if args.String(0) != "3" || args.String(9) != "" {
		t.Errorf("String() = %q, %q", args.String(0), args.String(9))
	}
	var obj struct{ A int }
	if err := args.Decode(3, &obj); err != nil || obj.A != 1 {
		t.Errorf("Decode(3) = %+v, %v", obj, err)
	}
}

func TestDecodeArgs(t *testing.T) {
	tests := []struct {
		raw     string
		want    Args
		wantErr bool
	}{
		{"", nil, false},
		{"null", nil, false},
		{"[]", Args{}, false},
		{`[1,"a"]`, Args{float64(1), "a"}, false},
		{`5`, Args{float64(5)}, false},
		{`{"k":true}`, Args{map[string]any{"k": true}}, false},
		{`[1,`, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := decodeArgs([]byte(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("decodeArgs() error = %v", err)
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidPayload) {
				t.Errorf("error = %v, want ErrInvalidPayload", err)
			}
			if !tt.wantErr && !reflect.DeepEqual(got, tt.want) {
				t.Errorf("decodeArgs() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestBind2(t *testing.T) {
	var gotA int
	var gotB string
	fn := Bind2(func(ctx context.Context, a int, b string) error {
		gotA, gotB = a, b
		return nil
	})
	if err := fn(context.Background(), Args{float64(2), "z"}); err != nil {
		t.Fatal(err)
	}
	if gotA != 2 || gotB != "z" {
		t.Errorf("got %d, %q", gotA, gotB)
	}
	if err := fn(context.Background(), Args{float64(2)}); !errors.Is(err, ErrBadArguments) {
		t.Errorf("missing argument error = %v", err)
	}
}
