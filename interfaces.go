package livecmp

import (
	"context"

	"github.com/a-h/templ"
)

// Lifecycle hooks. A component implements any subset; absent hooks are
// skipped. For an update request the manager runs them in this order:
//
//	Boot → (hydrate) → Hydrated → action → Dehydrated → Rendering → Render → Rendered
//
// A lazy load hydrates from the placeholder's mount parameters and runs
// Mount between hydration and Hydrated. A full page runs Boot, hydrates
// from the route parameters, runs Mount and then renders.

// Booter runs first on every request, before any state is loaded.
type Booter interface {
	Boot(ctx context.Context)
}

// Mounter runs once when the component is first created: on a full page
// render, when embedded in another component, or when a lazy placeholder
// is loaded. It is the place to load data from route parameters:
//
//	func (p *Profile) Mount(ctx context.Context, params map[string]any) {
//	    p.User = p.users.Get(ctx, p.UserID)
//	}
type Mounter interface {
	Mount(ctx context.Context, params map[string]any)
}

// HydratedHook runs after the client state has been loaded.
type HydratedHook interface {
	Hydrated(ctx context.Context)
}

// DehydratedHook runs after the action, before rendering.
type DehydratedHook interface {
	Dehydrated(ctx context.Context)
}

// RenderingHook runs immediately before Render.
type RenderingHook interface {
	Rendering(ctx context.Context)
}

// RenderedHook runs after Render and before the state is serialized, so
// changes it makes are reflected in the response data.
type RenderedHook interface {
	Rendered(ctx context.Context)
}

// ExceptionHandler receives unrecovered action failures. Setting *stop
// swallows the failure and rendering continues normally; otherwise it is
// returned to the caller.
//
//	func (c *Checkout) Exception(ctx context.Context, err error, stop *bool) {
//	    if errors.Is(err, payments.ErrDeclined) {
//	        c.AddError("card", "Your card was declined.")
//	        *stop = true
//	    }
//	}
type ExceptionHandler interface {
	Exception(ctx context.Context, err error, stop *bool)
}

// Placeholderer supplies the skeleton shown inside a lazy placeholder.
type Placeholderer interface {
	Placeholder(params map[string]any) templ.Component
}

// Layouter supplies a full-page layout. It takes precedence over
// Base.SetLayout and the manager's default layout.
type Layouter interface {
	Layout() Layout
}
