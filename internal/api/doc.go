// Package api implements the hub's HTTP front door.
//
// It provides:
//   - A view registry binding URL patterns and methods to handlers
//   - A dispatcher that gates views on the hub's run state and authentication
//   - IP ban enforcement and failed-login counting
//   - Middleware stack (request ID, real IP, logging, recovery, CORS)
//   - JSON responses with sorted keys and brotli/gzip compression
//   - Optional TLS
//
// # Middleware order
//
// request ID → real IP → access log → recovery → CORS → body limit →
// ban check → authentication → view. The ban check runs before credentials
// are looked at, so a banned address is refused even with the right password.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.RegisterView(api.View{URL: "/api/config", Name: "api:config", Get: handler})
//	server.Start(ctx)
//	defer server.Close()
//
// Registration is frozen between Start and Stop.
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api
