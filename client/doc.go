// Package client is a headless livecmp runtime. It keeps a parsed HTML
// document, binds the live: attribute vocabulary the way the browser
// runtime does, posts actions to the update endpoint and applies the
// responses through a frame-budgeted scheduler.
//
// It drives live components from Go: end-to-end tests, crawlers and
// native shells that render the markup themselves.
//
//	rt, _ := client.New("http://localhost:8080")
//	if err := rt.Open(ctx, "/"); err != nil { ... }
//	rt.Click("button.increment")
//	rt.Settle(ctx)
//	fmt.Println(rt.Text(".count"))
//
// Interaction methods return once the event has been dispatched; network
// requests and DOM updates complete in the background. Settle waits for
// them.
package client
