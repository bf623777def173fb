package livecmp

import "strconv"

// Modifier adjusts a generic event binding (see On). Modifiers are appended
// to the attribute name: live:keydown.enter.prevent.
type Modifier string

const (
	// Prevent calls preventDefault on the event.
	Prevent Modifier = "prevent"

	// Stop stops the event from propagating.
	Stop Modifier = "stop"

	// Self ignores events dispatched by descendants.
	Self Modifier = "self"

	// Once removes the listener after its first event.
	Once Modifier = "once"

	// Shift, Ctrl, Alt and Meta require the modifier key to be held.
	Shift Modifier = "shift"
	Ctrl  Modifier = "ctrl"
	Alt   Modifier = "alt"
	Meta  Modifier = "meta"
)

// Debounce delays the action until the event has been quiet for ms
// milliseconds. Without an argument the client default of 300ms applies.
func Debounce(ms ...int) Modifier {
	if len(ms) == 0 {
		return "debounce"
	}
	return Modifier("debounce." + strconv.Itoa(ms[0]))
}

// Key restricts a keyboard binding to a named key: enter, escape, space,
// tab, up, down, left, right, caps-lock, equal, period or slash.
func Key(name string) Modifier {
	return Modifier(name)
}
