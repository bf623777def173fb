package livecmp

import (
	"context"
	"io"

	"github.com/a-h/templ"
)

// Flash levels for toast notifications.
const (
	FlashSuccess = "success"
	FlashError   = "error"
	FlashWarning = "warning"
	FlashInfo    = "info"
)

// FlashEvent is the browser event carrying flash messages.
const FlashEvent = "live:flash"

// Flash represents a one-time notification message.
type Flash struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// Flash queues a toast notification. It travels as a FlashEvent browser
// event; ToastContainer displays it.
//
//	c.Flash(livecmp.FlashSuccess, "Saved!")
func (b *Base) Flash(level, message string) {
	b.Dispatch(FlashEvent, Flash{Level: level, Message: message})
}

// ToastContainer returns the element flash messages are appended to.
//
// Add this to your layout template (typically near the end of <body>):
//
//	@livecmp.ToastContainer()
//
// Toasts remove themselves after the data-auto-dismiss delay.
func ToastContainer() templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		_, err := io.WriteString(w, `<div id="toasts" class="toast-container" data-auto-dismiss="3000"></div>`+
			`<script>window.addEventListener("`+FlashEvent+`",function(e){var c=document.getElementById("toasts");if(!c)return;`+
			`var t=document.createElement("div");t.className="toast toast-"+e.detail.level;t.textContent=e.detail.message;c.appendChild(t);`+
			`setTimeout(function(){t.remove()},parseInt(c.dataset.autoDismiss,10))});</script>`)
		return err
	})
}

// ErrorFor renders the error message of field, or nothing.
//
//	<input { livecmp.Model("email")... }/>
//	@livecmp.ErrorFor(&c.Base, "email")
func ErrorFor(b *Base, field string) templ.Component {
	msg := b.Error(field)
	if msg == "" {
		return templ.NopComponent
	}
	return fieldError(field, msg)
}
