// Package livecmp provides server-driven live components: the server holds
// the authoritative state and renders HTML fragments, and a small client
// runtime re-renders those fragments in place after user actions.
//
// # Core Concepts
//
// Components embed Base and declare their public state with Fields. The
// declared fields are exactly what travels between server and client: the
// rendered root element carries them as JSON in a live:data attribute, and
// every update request sends them back.
//
//	type Counter struct {
//	    livecmp.Base
//	    Count int
//	}
//
//	func NewCounter() livecmp.Component {
//	    c := &Counter{}
//	    c.Action("increment", livecmp.Bind0(func(ctx context.Context) error {
//	        c.Count++
//	        return nil
//	    }))
//	    return c
//	}
//
//	func (c *Counter) Fields() []livecmp.Field {
//	    return []livecmp.Field{livecmp.Value("count", &c.Count)}
//	}
//
//	func (c *Counter) Render(ctx context.Context) (livecmp.Node, error) {
//	    return livecmp.Templ(counterView(c)), nil
//	}
//
// Instances are created fresh for every request and discarded afterwards.
// Nothing about a component survives between requests except its
// serialized fields.
//
// # Request Lifecycle
//
// The Manager runs an update request as: Boot, hydrate from the client
// state, Hydrated, the action, Dehydrated, Rendering, Render, Rendered.
// Lifecycle hooks are optional interfaces (Booter, Mounter, HydratedHook,
// DehydratedHook, RenderingHook, RenderedHook, ExceptionHandler).
//
// Actions report outcomes through the embedded Base:
//   - Validate and AddError record field errors shown inline
//   - Dispatch queues browser events dispatched on the window
//   - Redirect and Navigate replace the render with a redirect
//   - CallNative queues calls to a native host bridge
//
// # Security Model
//
// Update requests must carry the X-Live-Request: true header, which
// browsers refuse to send cross-origin without a CORS preflight.
//
// Lazy placeholders carry the mount parameters of the component they stand
// in for. Those parameters are signed (visible but tamper-proof) or, for
// registrations marked Sensitive, sealed with AES-GCM.
//
// # Registration and Routing
//
//	reg := livecmp.NewRegistry(secretKey, livecmp.WithDebug(cfg.Debug))
//	reg.Add("counter", NewCounter)
//	mux.Handle("/live/update", reg.Handler())
//	mux.Handle("/live/live.js", livecmp.AssetHandler())
//	mux.Handle("/counter", reg.PageHandler("counter", nil))
//
// Failures that cannot be answered in-band go to Registry.OnError. In debug
// mode they are rendered as a diagnostic overlay instead.
//
// # Client Runtimes
//
// Browsers use the embedded script served by AssetHandler. Go programs
// (tests, crawlers, native hosts) use package client, which implements the
// same protocol on top of an x/net/html document.
package livecmp
