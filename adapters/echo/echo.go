// Package liveecho provides Echo framework integration for livecmp.
//
// Mount the update endpoint and runtime script on an Echo instance or
// group:
//
//	e := echo.New()
//	reg := liveecho.Mount(e, liveecho.WithKey(key))
//	reg.Add("counter", demo.NewCounter)
//	e.GET("/counter", liveecho.Page(reg, "counter"))
//
// Or mount on a group with middleware:
//
//	g := e.Group("/app", authMiddleware)
//	reg := liveecho.MountGroup(g)
package liveecho

import (
	"crypto/rand"
	"fmt"
	"net/http"

	"github.com/a-h/templ"
	"github.com/labstack/echo/v4"

	"github.com/pthm/livecmp"
	"github.com/pthm/livecmp/lib/protocol"
)

// Option configures Mount and MountGroup.
type Option func(*options)

type options struct {
	key      []byte
	endpoint string
	asset    string
	manager  []livecmp.Option
}

// WithKey sets the signing key for lazy mount parameters.
// The key should be at least 32 bytes of cryptographically random data.
// If not provided, a random key is generated (suitable for development only).
func WithKey(key []byte) Option {
	return func(o *options) {
		o.key = key
	}
}

// WithEndpoint sets the update endpoint path. Defaults to "/live/update".
// Pass the same path to the runtime through livecmp.WithScripts.
func WithEndpoint(path string) Option {
	return func(o *options) {
		o.endpoint = path
	}
}

// WithManagerOptions passes options to livecmp.NewRegistry.
func WithManagerOptions(opts ...livecmp.Option) Option {
	return func(o *options) {
		o.manager = append(o.manager, opts...)
	}
}

// Mount creates a registry and mounts the update endpoint and the runtime
// script on an Echo instance.
func Mount(e *echo.Echo, opts ...Option) *livecmp.Registry {
	reg, o := newRegistry(opts)
	e.POST(o.endpoint, echo.WrapHandler(reg.Handler()))
	e.GET(o.asset, echo.WrapHandler(livecmp.AssetHandler()))
	return reg
}

// MountGroup is Mount for a group, so the endpoint shares the group's
// middleware (auth, logging, etc.).
func MountGroup(g *echo.Group, opts ...Option) *livecmp.Registry {
	reg, o := newRegistry(opts)
	g.POST(o.endpoint, echo.WrapHandler(reg.Handler()))
	g.GET(o.asset, echo.WrapHandler(livecmp.AssetHandler()))
	return reg
}

func newRegistry(opts []Option) (*livecmp.Registry, *options) {
	o := &options{endpoint: protocol.DefaultEndpoint, asset: livecmp.AssetPath}
	for _, opt := range opts {
		opt(o)
	}

	key := o.key
	if key == nil {
		key = make([]byte, 32)
		if _, err := rand.Read(key); err != nil {
			panic(fmt.Sprintf("liveecho: failed to generate random key: %v", err))
		}
	}

	return livecmp.NewRegistry(key, o.manager...), o
}

// Page serves name as a full page. Route and query parameters are passed
// as mount parameters; route parameters win.
//
//	e.GET("/users/:id", liveecho.Page(reg, "profile"))
func Page(reg *livecmp.Registry, name string) echo.HandlerFunc {
	return func(c echo.Context) error {
		params := func(r *http.Request) map[string]any {
			out := livecmp.QueryParams(r)
			for i, n := range c.ParamNames() {
				out[n] = c.ParamValues()[i]
			}
			return out
		}
		reg.PageHandler(name, params).ServeHTTP(c.Response(), c.Request())
		return nil
	}
}

// Render writes a templ component to the Echo response.
//
//	func handler(c echo.Context) error {
//	    return liveecho.Render(c, myTemplate())
//	}
func Render(c echo.Context, component templ.Component) error {
	return livecmp.Render(c.Response(), c.Request(), component)
}
