package main

import (
	"github.com/a-h/templ"

	"github.com/pthm/livecmp"
)

var navLinks = []struct{ href, label string }{
	{"/", "Counter"},
	{"/todos", "Todos"},
	{"/signup", "Sign up"},
	{"/login", "Sign in"},
	{"/dashboard", "Dashboard"},
	{"/device", "Device"},
}

// siteLayout wraps pages in the demo navigation. The nav is persisted
// across SPA navigations.
func siteLayout(site string) livecmp.Layout {
	return func(p livecmp.Page) templ.Component {
		p.Title = p.Title + " · " + site
		p.Content = siteShell(p.Content)
		return livecmp.DefaultLayout(p)
	}
}
