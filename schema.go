package livecmp

import (
	"encoding/json"
	"fmt"
	"reflect"
)

// Field binds a public state name to a location in the component.
//
// Fields are declared by the component's Fields method and are the only
// values that travel between server and client:
//
//	func (c *Counter) Fields() []livecmp.Field {
//	    return []livecmp.Field{
//	        livecmp.Value("count", &c.Count),
//	    }
//	}
//
// The value a field holds when the schema is bound (right after the
// component factory returns) is its default, used by Reset and Pull.
type Field struct {
	name string
	typ  reflect.Type
	get  func() any
	set  func(any) error
	def  []byte
}

// Value declares a field named name stored at ptr.
func Value[T any](name string, ptr *T) Field {
	def, err := json.Marshal(*ptr)
	if err != nil {
		panic(fmt.Sprintf("livecmp: field %q default is not serializable: %v", name, err))
	}
	return Field{
		name: name,
		typ:  reflect.TypeOf(ptr).Elem(),
		get:  func() any { return *ptr },
		set:  func(v any) error { return assign(ptr, v) },
		def:  def,
	}
}

// Name returns the field's public name.
func (f Field) Name() string { return f.name }

// Type returns the Go type the field is stored as.
func (f Field) Type() reflect.Type { return f.typ }

// Default returns the decoded default value.
func (f Field) Default() any {
	var v any
	_ = json.Unmarshal(f.def, &v)
	return v
}

func (f Field) reset() error {
	return f.set(json.RawMessage(f.def))
}

// assign stores v into ptr. Values of the exact type are stored directly,
// everything else is converted through JSON, which is how state arrives from
// the client anyway.
func assign[T any](ptr *T, v any) error {
	if t, ok := v.(T); ok {
		*ptr = t
		return nil
	}

	var raw []byte
	switch x := v.(type) {
	case json.RawMessage:
		raw = x
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		raw = b
	}

	var t T
	if err := json.Unmarshal(raw, &t); err != nil {
		// "3" sent for an int field
		s, ok := v.(string)
		if !ok || json.Unmarshal([]byte(s), &t) != nil {
			return err
		}
	}
	*ptr = t
	return nil
}
