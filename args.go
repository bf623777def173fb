package livecmp

import (
	"context"
	"encoding/json"
	"fmt"
)

// ActionFunc is the raw form of an action.
type ActionFunc func(ctx context.Context, args Args) error

// Args are the positional arguments of an action call, as decoded from
// JSON: numbers are float64, objects map[string]any.
type Args []any

// Len returns the number of arguments.
func (a Args) Len() int { return len(a) }

// At returns argument i, or nil when there is none.
func (a Args) At(i int) any {
	if i < 0 || i >= len(a) {
		return nil
	}
	return a[i]
}

// Decode converts argument i into ptr.
func (a Args) Decode(i int, ptr any) error {
	if i < 0 || i >= len(a) {
		return fmt.Errorf("%w: missing argument %d", ErrBadArguments, i)
	}
	raw, err := json.Marshal(a[i])
	if err != nil {
		return fmt.Errorf("%w: argument %d: %v", ErrBadArguments, i, err)
	}
	if err := json.Unmarshal(raw, ptr); err != nil {
		s, ok := a[i].(string)
		if !ok || json.Unmarshal([]byte(s), ptr) != nil {
			return fmt.Errorf("%w: argument %d: %v", ErrBadArguments, i, err)
		}
	}
	return nil
}

// String returns argument i formatted as a string.
func (a Args) String(i int) string {
	switch v := a.At(i).(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int returns argument i as an int. Numeric strings are accepted.
func (a Args) Int(i int) (int, error) {
	var n int
	err := a.Decode(i, &n)
	return n, err
}

func arg[T any](args Args, i int) (T, error) {
	var v T
	if t, ok := args.At(i).(T); ok {
		return t, nil
	}
	err := args.Decode(i, &v)
	return v, err
}

// Bind0 adapts an action without arguments. Extra arguments are ignored.
func Bind0(fn func(ctx context.Context) error) ActionFunc {
	return func(ctx context.Context, _ Args) error {
		return fn(ctx)
	}
}

// Bind1 adapts an action with one typed argument.
//
//	c.Action("remove", livecmp.Bind1(func(ctx context.Context, id int) error { ... }))
func Bind1[A any](fn func(ctx context.Context, a A) error) ActionFunc {
	return func(ctx context.Context, args Args) error {
		a, err := arg[A](args, 0)
		if err != nil {
			return err
		}
		return fn(ctx, a)
	}
}

// Bind2 adapts an action with two typed arguments.
func Bind2[A, B any](fn func(ctx context.Context, a A, b B) error) ActionFunc {
	return func(ctx context.Context, args Args) error {
		a, err := arg[A](args, 0)
		if err != nil {
			return err
		}
		b, err := arg[B](args, 1)
		if err != nil {
			return err
		}
		return fn(ctx, a, b)
	}
}

// decodeArgs turns the raw params of a payload into positional arguments.
// A scalar or object is wrapped into a one-element list.
func decodeArgs(raw json.RawMessage) (Args, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("%w: params: %v", ErrInvalidPayload, err)
	}
	switch x := v.(type) {
	case nil:
		return nil, nil
	case []any:
		return Args(x), nil
	default:
		return Args{x}, nil
	}
}
