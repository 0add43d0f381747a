package shelfauth

import (
	"context"
	"sync"
)

// IdentityScope is the per-request identity slot. It holds at most one
// identity and is cleared when the request ends, whatever the exit path.
//
// Scopes are pooled. Every release bumps a generation counter, and the
// context only remembers the generation it was created with, so a context
// that outlives its request sees an empty scope rather than the identity of
// whichever request reuses the slot next.
type IdentityScope struct {
	mu       sync.Mutex
	gen      uint64
	identity Identity
	bound    bool
}

var scopePool = sync.Pool{
	New: func() any { return &IdentityScope{} },
}

// AcquireIdentityScope takes an empty scope from the pool.
func AcquireIdentityScope() *IdentityScope {
	return scopePool.Get().(*IdentityScope)
}

// ReleaseIdentityScope clears s, invalidates every context that refers to
// it and returns it to the pool. s must not be used afterwards.
func ReleaseIdentityScope(s *IdentityScope) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.identity = Identity{}
	s.bound = false
	s.gen++
	s.mu.Unlock()
	scopePool.Put(s)
}

// Bind stores id in the scope. A second Bind before Clear fails with
// ErrIdentityAlreadyBound.
func (s *IdentityScope) Bind(id Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bound {
		return ErrIdentityAlreadyBound
	}
	s.identity = id
	s.bound = true
	return nil
}

// Current returns the bound identity, if any.
func (s *IdentityScope) Current() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity, s.bound
}

// Clear removes the bound identity. Clearing an empty scope is a no-op.
func (s *IdentityScope) Clear() {
	s.mu.Lock()
	s.identity = Identity{}
	s.bound = false
	s.mu.Unlock()
}

func (s *IdentityScope) current(gen uint64) (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen || !s.bound {
		return Identity{}, false
	}
	return s.identity, true
}

func (s *IdentityScope) generation() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

type scopeRef struct {
	scope *IdentityScope
	gen   uint64
}

type identityScopeKey struct{}

// WithIdentityScope returns a context carrying s for the lifetime of the
// current request.
func WithIdentityScope(ctx context.Context, s *IdentityScope) context.Context {
	return context.WithValue(ctx, identityScopeKey{}, scopeRef{scope: s, gen: s.generation()})
}

// CurrentIdentity returns the identity bound to the request carried by ctx.
// It reports false for anonymous requests and for contexts whose request has
// already finished.
func CurrentIdentity(ctx context.Context) (Identity, bool) {
	if ctx == nil {
		return Identity{}, false
	}
	ref, ok := ctx.Value(identityScopeKey{}).(scopeRef)
	if !ok || ref.scope == nil {
		return Identity{}, false
	}
	return ref.scope.current(ref.gen)
}

// RequireIdentity is CurrentIdentity for handlers that need a caller. It
// returns ErrUnauthorized when nothing is bound.
func RequireIdentity(ctx context.Context) (Identity, error) {
	id, ok := CurrentIdentity(ctx)
	if !ok {
		return Identity{}, ErrUnauthorized
	}
	return id, nil
}
