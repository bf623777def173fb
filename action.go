package livecmp

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/livecmp/lib/protocol"
)

// EventArg passes the triggering event (or its detail) as an argument:
//
//	<input { livecmp.On("input", livecmp.Call("search", livecmp.EventArg), livecmp.Debounce(250))... }/>
const EventArg = protocol.EventArg

// Call formats an action call for a binding attribute. Strings are quoted,
// numbers and booleans are written as literals and EventArg is passed
// through.
//
//	livecmp.Call("toggle", todo.ID)   // toggle(3)
//	livecmp.Call("rename", "draft")   // rename('draft')
func Call(action string, args ...any) string {
	if len(args) == 0 {
		return action
	}
	parts := make([]string, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case string:
			if v == EventArg {
				parts[i] = v
			} else {
				parts[i] = "'" + v + "'"
			}
		case float64:
			parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
		default:
			parts[i] = fmt.Sprint(v)
		}
	}
	return action + "(" + strings.Join(parts, ", ") + ")"
}

// Click binds a click to an action. The default action of the element is
// prevented.
//
//	<button { livecmp.Click("remove", item.ID)... }>Remove</button>
func Click(action string, args ...any) templ.Attributes {
	return templ.Attributes{protocol.AttrClick: Call(action, args...)}
}

// Submit binds a form's submit event to an action without arguments.
func Submit(action string) templ.Attributes {
	return templ.Attributes{protocol.AttrSubmit: action}
}

// Model two-way binds an input to a state path ("email", "form.title").
// The input writes into the client's mirrored state; the value is sent with
// the next action.
func Model(path string) templ.Attributes {
	return templ.Attributes{protocol.AttrModel: path}
}

// On binds a DOM event to an action with optional modifiers.
//
//	livecmp.On("keydown", "add", livecmp.Key("enter"), livecmp.Prevent)
//	livecmp.On("input", "search", livecmp.Debounce(500))
func On(event, action string, mods ...Modifier) templ.Attributes {
	key := protocol.AttrPrefix + event
	for _, m := range mods {
		key += "." + string(m)
	}
	return templ.Attributes{key: action}
}

// Window subscribes the element's component to a window event. Without an
// explicit argument list the event detail is passed as the only argument.
//
//	<div { livecmp.Window("todo-added", "refreshCount")... }></div>
func Window(event, action string) templ.Attributes {
	return templ.Attributes{protocol.WindowPrefix + event: action}
}

// Confirm asks the user before the element's action is sent.
func Confirm(message string) templ.Attributes {
	return templ.Attributes{protocol.AttrConfirm: message}
}

// LoadingTarget shows the element matching selector (searched inside the
// component first, then the document) instead of the global indicator.
func LoadingTarget(selector string) templ.Attributes {
	return templ.Attributes{protocol.AttrLoadingTarget: selector}
}

// Link makes an anchor navigate without a full page load.
func Link() templ.Attributes {
	return templ.Attributes{protocol.AttrNavigate: true}
}

// PrefetchLink is Link that also prefetches the page on hover.
func PrefetchLink() templ.Attributes {
	return templ.Attributes{protocol.AttrNavigateHover: true}
}

// Persist keeps the element (and its live DOM state) across navigations.
// The new page must contain an element with the same persist name.
func Persist(name string) templ.Attributes {
	return templ.Attributes{protocol.AttrPersist: name}
}

// Attrs merges attribute sets. Later sets win.
//
//	<button { livecmp.Attrs(livecmp.Click("delete", id), livecmp.Confirm("Delete?"))... }>
func Attrs(sets ...templ.Attributes) templ.Attributes {
	out := templ.Attributes{}
	for _, set := range sets {
		for k, v := range set {
			out[k] = v
		}
	}
	return out
}

// RenderAttrs formats attribute sets for hand-written views, sorted by
// name, each preceded by a space.
//
//	io.WriteString(w, `<button`+livecmp.RenderAttrs(livecmp.Click("save"))+`>Save</button>`)
func RenderAttrs(sets ...templ.Attributes) string {
	var b strings.Builder
	for _, a := range templAttrs(Attrs(sets...)) {
		writeAttr(&b, a)
	}
	return b.String()
}
