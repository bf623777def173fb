package livecmp

import (
	"testing"

	"github.com/a-h/templ"
)

func TestCall(t *testing.T) {
	tests := []struct {
		action string
		args   []any
		want   string
	}{
		{"save", nil, "save"},
		{"toggle", []any{3}, "toggle(3)"},
		{"rename", []any{"draft"}, "rename('draft')"},
		{"move", []any{1.5, true}, "move(1.5, true)"},
		{"search", []any{EventArg}, "search($event)"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			if got := Call(tt.action, tt.args...); got != tt.want {
				t.Errorf("Call() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestBindingAttributes(t *testing.T) {
	tests := []struct {
		name  string
		attrs templ.Attributes
		want  string
	}{
		{"click", Click("remove", 7), ` live:click="remove(7)"`},
		{"submit", Submit("save"), ` live:submit="save"`},
		{"model", Model("form.title"), ` live:model="form.title"`},
		{"on with modifiers", On("keydown", "add", Key("enter"), Prevent), ` live:keydown.enter.prevent="add"`},
		{"debounce default", On("input", "search", Debounce()), ` live:input.debounce="search"`},
		{"debounce ms", On("input", "search", Debounce(500)), ` live:input.debounce.500="search"`},
		{"window", Window("todo-added", "reload"), ` live:window.todo-added="reload"`},
		{"confirm", Confirm("Sure?"), ` live:confirm="Sure?"`},
		{"loading target", LoadingTarget("#spin"), ` live:loading-target="#spin"`},
		{"link", Link(), ` live:navigate`},
		{"prefetch link", PrefetchLink(), ` live:navigate.hover`},
		{"persist", Persist("player"), ` live:persist="player"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RenderAttrs(tt.attrs); got != tt.want {
				t.Errorf("RenderAttrs() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAttrs_LaterSetsWin(t *testing.T) {
	got := RenderAttrs(
		templ.Attributes{"class": "a", "live:click": "old"},
		Click("new"),
		Confirm(`Delete "x"?`),
	)
	want := ` class="a" live:click="new" live:confirm="Delete &#34;x&#34;?"`
	if got != want {
		t.Errorf("RenderAttrs() = %q, want %q", got, want)
	}
}
