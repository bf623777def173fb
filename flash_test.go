package livecmp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestFlash(t *testing.T) {
	tests := []struct {
		level   string
		message string
	}{
		{FlashSuccess, "Saved!"},
		{FlashError, "Something went wrong"},
		{FlashWarning, "Careful"},
		{FlashInfo, "FYI"},
	}

	for _, tt := range tests {
		t.Run(tt.level, func(t *testing.T) {
			var b Base
			b.Flash(tt.level, tt.message)
			events := b.Events()
			if len(events) != 1 || events[0].Name != FlashEvent {
				t.Fatalf("Events() = %+v", events)
			}
			raw, err := json.Marshal(events[0])
			if err != nil {
				t.Fatal(err)
			}
			var decoded struct {
				Detail Flash `json:"detail"`
			}
			if err := json.Unmarshal(raw, &decoded); err != nil {
				t.Fatal(err)
			}
			if decoded.Detail.Level != tt.level || decoded.Detail.Message != tt.message {
				t.Errorf("detail = %+v", decoded.Detail)
			}
		})
	}
}

func TestToastContainer(t *testing.T) {
	var b strings.Builder
	if err := ToastContainer().Render(context.Background(), &b); err != nil {
		t.Fatal(err)
	}
	out := b.String()
	if !strings.Contains(out, `id="toasts"`) || !strings.Contains(out, `addEventListener("live:flash"`) {
		t.Errorf("ToastContainer() = %s", out)
	}
}

func TestErrorFor(t *testing.T) {
	var base Base
	render := func() string {
		var b strings.Builder
		if err := ErrorFor(&base, "email").Render(context.Background(), &b); err != nil {
			t.Fatal(err)
		}
		return b.String()
	}

	if out := render(); out != "" {
		t.Errorf("no error should render nothing, got %q", out)
	}
	base.AddError("email", "Bad <email>")
	want := `<span class="live-field-error" data-field="email">Bad &lt;email&gt;</span>`
	if out := strings.TrimSpace(render()); out != want {
		t.Errorf("ErrorFor() = %q, want %q", out, want)
	}
}
