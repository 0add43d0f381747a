// Package middleware adapts shelfauth.Engine to net/http.
//
// # Handlers
//
//   - [Authenticate] resolves the bearer token on every request, binds the
//     identity to a pooled request scope and clears it when the handler
//     returns. It never rejects.
//   - [RequireIdentity] answers 401 when no identity is bound.
//
// A renewed token is returned in the [NewTokenHeader] response header before
// the wrapped handler runs.
//
// # What this package must NOT do
//
//   - Parse or sign tokens directly (delegates to the Engine).
//   - Access Redis.
//   - Reject a request from Authenticate.
package middleware
