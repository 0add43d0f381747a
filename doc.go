// Package shelfauth is the session authentication core of the shelf catalog
// backend. It issues signed bearer tokens, renews them before they expire,
// revokes them on logout through a shared Redis deny-list, caches resolved
// user records in Redis and binds the resolved identity to a request-scoped
// slot that is cleared on every exit path.
//
// # Architecture boundaries
//
// shelfauth is the public surface: [Engine], [Builder], [Config], the
// identity scope helpers and value types. Token signing lives in jwt,
// the deny-list in revocation, the user cache in session and credential
// hashing in password. Flow orchestration and audit dispatch live under
// internal/ and are never exported.
//
// # Request lifecycle
//
// [Engine.Authenticate] runs the revocation check, token verification, user
// lookup and renewal in that order and reports an explicit [Outcome]. It
// never rejects; handlers decide through [CurrentIdentity] or
// [RequireIdentity]. [Engine.RunWithIdentity] and middleware.Authenticate
// bind the identity to a pooled [IdentityScope] and release it when the
// request ends, panics included.
//
// # What this package must NOT do
//
//   - Log token material or password hashes.
//   - Import any sub-package that re-imports shelfauth.
//   - Mutate configuration after Build.
package shelfauth
