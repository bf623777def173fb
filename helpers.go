package livecmp

import (
	"net/http"

	"github.com/a-h/templ"

	"github.com/pthm/livecmp/lib/protocol"
)

// Render writes a templ component to the HTTP response.
//
// Sets Content-Type to text/html and renders the component using the
// request's context. Use this for plain views that sit next to live
// components:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    livecmp.Render(w, r, aboutPage())
//	}
func Render(w http.ResponseWriter, r *http.Request, component templ.Component) error {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	return component.Render(r.Context(), w)
}

// IsUpdate returns true if the request is a component update from a live
// client runtime.
func IsUpdate(r *http.Request) bool {
	return r.Header.Get(protocol.HeaderRequest) == "true"
}

// IsNavigate returns true if the request is a client-side navigation.
//
// Navigations swap the whole <body>, so handlers normally render the full
// page either way; the header is useful for analytics or to skip work that
// only matters on a first load:
//
//	if !livecmp.IsNavigate(r) {
//	    preloadFonts(w)
//	}
func IsNavigate(r *http.Request) bool {
	return r.Header.Get(protocol.HeaderNavigate) == "true"
}
