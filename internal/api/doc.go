// Package api implements the HTTP API of the hydroponics gateway.
//
// Each route maps one request onto one parameterized statement in the hydro
// query layer and returns the result as JSON:
//
//	GET  /api/hydro-parameters    latest sensor reading
//	GET  /api/fetch_data_source   reading history
//	GET  /api/components-control  active actuator settings
//	POST /api/update_controls     set one dispense amount
//	POST /api/user-login          credential check
//	GET  /api/notifications       notification feed
//
// Alongside these the server exposes /api/health, /metrics (Prometheus) and
// /api/ws, a WebSocket that pushes controls.updated events.
//
// # Errors
//
// Every error body is {"error": "..."}. Database failures are logged with the
// underlying cause and answered with a generic 500 "Database error"; the
// process keeps serving and the pool reconnects on the next request.
//
// # Lifecycle
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
