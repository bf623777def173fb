package livecmp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"

	"github.com/a-h/templ"

	"github.com/pthm/livecmp/lib/encoding"
)

// Sentinel errors for component operations.
var (
	ErrUnknownComponent = errors.New("livecmp: unknown component")
	ErrUnknownAction    = errors.New("livecmp: unknown action")
	ErrInvalidPayload   = errors.New("livecmp: invalid payload")
	ErrMultipleRoots    = errors.New("livecmp: markup must have exactly one root element")
	ErrNoRoot           = errors.New("livecmp: markup has no root element")
	ErrChecksum         = errors.New("livecmp: mount parameters failed verification")
	ErrBadArguments     = errors.New("livecmp: bad action arguments")
	ErrDecryptFailed    = errors.New("livecmp: parameter decryption failed")
	ErrSignatureInvalid = errors.New("livecmp: signature verification failed")
	ErrInvalidFormat    = errors.New("livecmp: invalid parameter format")
)

// IsDispatchError reports whether err names a component or action that does
// not exist. Dispatch errors are answered with a soft {"error": ...} body.
func IsDispatchError(err error) bool {
	return errors.Is(err, ErrUnknownComponent) || errors.Is(err, ErrUnknownAction)
}

// IsDecryptionError checks if err is a decryption or signature error.
func IsDecryptionError(err error) bool {
	return errors.Is(err, ErrDecryptFailed) || errors.Is(err, ErrSignatureInvalid)
}

// IsRenderError reports whether err came from markup that cannot carry the
// injected root attributes.
func IsRenderError(err error) bool {
	return errors.Is(err, ErrMultipleRoots) || errors.Is(err, ErrNoRoot)
}

// WrapDecodeError maps lib/encoding errors onto the livecmp sentinels and
// marks them as checksum failures.
func WrapDecodeError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, encoding.ErrInvalidFormat):
		return fmt.Errorf("%w: %w", ErrChecksum, ErrInvalidFormat)
	case errors.Is(err, encoding.ErrSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrChecksum, ErrSignatureInvalid)
	case errors.Is(err, encoding.ErrDecryptFailed):
		return fmt.Errorf("%w: %w", ErrChecksum, ErrDecryptFailed)
	}
	return err
}

// ActionError is an unrecovered failure raised while running a component
// action: a returned error or a recovered panic.
type ActionError struct {
	Component string
	Action    string
	Err       error

	// File and Line locate the panic, or the Action registration for
	// returned errors.
	File string
	Line int

	Stack []byte
	Panic bool
}

func (e *ActionError) Error() string {
	if e.Panic {
		return fmt.Sprintf("livecmp: %s.%s panicked: %v", e.Component, e.Action, e.Err)
	}
	return fmt.Sprintf("livecmp: %s.%s: %v", e.Component, e.Action, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// Kind names the underlying error type for diagnostics.
func (e *ActionError) Kind() string {
	if e.Panic {
		return "panic"
	}
	return fmt.Sprintf("%T", e.Err)
}

// panicError converts a recovered value into an ActionError located at the
// frame that panicked.
func panicError(component, action string, r any) *ActionError {
	err, ok := r.(error)
	if !ok {
		err = fmt.Errorf("%v", r)
	}
	ae := &ActionError{
		Component: component,
		Action:    action,
		Err:       err,
		Stack:     debug.Stack(),
		Panic:     true,
	}

	pcs := make([]uintptr, 32)
	n := runtime.Callers(3, pcs)
	frames := runtime.CallersFrames(pcs[:n])
	for {
		f, more := frames.Next()
		if !strings.HasPrefix(f.Function, "runtime.") {
			ae.File, ae.Line = f.File, f.Line
			break
		}
		if !more {
			break
		}
	}
	return ae
}

// ErrorComponent renders an inline error message. Layouts and placeholders
// use it when a child component fails to mount.
func ErrorComponent(err error) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, werr := io.WriteString(w, `<div class="live-error">Component error: `+templ.EscapeString(err.Error())+`</div>`)
		return werr
	})
}
