package client

import (
	"strconv"
	"strings"
	"time"
)

// DefaultDebounce applies to a bare .debounce modifier.
const DefaultDebounce = 300 * time.Millisecond

var keyAliases = map[string]string{
	"enter":     "Enter",
	"escape":    "Escape",
	"space":     " ",
	"tab":       "Tab",
	"up":        "ArrowUp",
	"down":      "ArrowDown",
	"left":      "ArrowLeft",
	"right":     "ArrowRight",
	"caps-lock": "CapsLock",
	"equal":     "=",
	"period":    ".",
	"slash":     "/",
}

// binding is a generic live:<event>.<mods> attribute.
type binding struct {
	event    string
	prevent  bool
	stop     bool
	self     bool
	once     bool
	debounce time.Duration
	mods     []string
}

func parseBinding(spec string) binding {
	parts := strings.Split(spec, ".")
	b := binding{event: parts[0], mods: parts[1:]}
	for i, m := range b.mods {
		switch m {
		case "prevent":
			b.prevent = true
		case "stop":
			b.stop = true
		case "self":
			b.self = true
		case "once":
			b.once = true
		case "debounce":
			b.debounce = DefaultDebounce
			if i+1 < len(b.mods) {
				if ms, err := strconv.Atoi(b.mods[i+1]); err == nil && ms >= 0 {
					b.debounce = time.Duration(ms) * time.Millisecond
				}
			}
		}
	}
	return b
}

func (b binding) has(mod string) bool {
	for _, m := range b.mods {
		if m == mod {
			return true
		}
	}
	return false
}

// matchKey reports whether a keyboard event satisfies the key and
// modifier-key requirements of b.
func (b binding) matchKey(e *Event) bool {
	if b.has("shift") && !e.Shift {
		return false
	}
	if b.has("ctrl") && !e.Ctrl {
		return false
	}
	if b.has("alt") && !e.Alt {
		return false
	}
	if (b.has("meta") || b.has("cmd")) && !e.Meta {
		return false
	}
	for _, m := range b.mods {
		if want, ok := keyAliases[m]; ok {
			return e.Key == want
		}
	}
	return true
}
