// Package api implements the HTTP status API and WebSocket stream for
// dbkeeper.
//
// This package provides:
//   - Read-only endpoints listing targets with their latest health result,
//     monitor state and pool statistics
//   - On-demand health checks for a single target
//   - An operator-only reset endpoint guarded by HS256 JWT bearer tokens
//   - A WebSocket hub that relays health, pool and reconnect events live
//   - Middleware stack (request ID, logging, recovery, CORS)
//
// # Security
//
// Read endpoints and the WebSocket stream are unauthenticated and the server
// binds to 127.0.0.1 by default. POST /targets/{name}/reset requires a token
// with the operator role signed with api.jwt_secret; when no secret is
// configured the endpoint is refused.
//
// # Routes
//
//	GET  /api/v1/health
//	GET  /api/v1/targets
//	GET  /api/v1/targets/{name}
//	POST /api/v1/targets/{name}/check
//	POST /api/v1/targets/{name}/reset
//	GET  /api/v1/ws
package api
