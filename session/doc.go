// Package session caches resolved user records in Redis so the request path
// does not hit the persistent store on every authenticated call.
//
// # Binary encoding
//
// Records are stored under user:info:<userId> in a compact versioned binary
// format. The credential hash is never part of a cached record.
//
// # Boundaries
//
// This package does not interpret tokens or decide whether a request is
// authenticated. It only answers "who is user X", reading through to a
// caller-supplied Loader on a miss.
package session
