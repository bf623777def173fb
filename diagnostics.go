package livecmp

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/a-h/templ"
)

// Diagnostic describes an unrecovered failure for the debug overlay.
type Diagnostic struct {
	Kind    string
	Message string
	File    string
	Line    int
	Stack   string
}

// Diagnose extracts what the overlay shows from err.
func Diagnose(err error) Diagnostic {
	d := Diagnostic{Kind: fmt.Sprintf("%T", err), Message: err.Error()}
	var ae *ActionError
	if errors.As(err, &ae) {
		d.Kind = ae.Kind()
		d.Message = ae.Err.Error()
		d.File, d.Line = ae.File, ae.Line
		d.Stack = string(ae.Stack)
	}
	return d
}

// DiagnosticOverlay renders a full-screen error report. The client runtime
// shows it instead of patching the component when debug mode is on.
func DiagnosticOverlay(d Diagnostic) templ.Component {
	return diagnosticOverlay(d)
}

// DiagnosticHTML renders the overlay for err to a string.
func DiagnosticHTML(err error) string {
	var b strings.Builder
	_ = DiagnosticOverlay(Diagnose(err)).Render(context.Background(), &b)
	return b.String()
}
