// Package api implements the HTTP REST API for Amarati.
//
// This package provides:
//   - Auth endpoints (register, OTP verification, login, refresh, password reset)
//   - User, property and unit management endpoints
//   - Admin endpoints for the audit trail and Prometheus metrics
//   - Middleware stack (request ID, logging, recovery, CORS, body limit, authentication)
//
// # Security
//
// The authentication middleware resolves a Bearer access token to an active
// user and attaches it to the request context. It never rejects a request
// by itself. Handlers that need a signed-in caller use requireUser (401);
// routes restricted by role use gate, which consults the permission matrix
// in the auth package (403).
//
// The server follows the usual lifecycle:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
package api
