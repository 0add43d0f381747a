package revocation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrStoreUnavailable wraps Redis failures.
var ErrStoreUnavailable = errors.New("revocation store unavailable")

// DefaultKeyPrefix namespaces deny-list entries.
const DefaultKeyPrefix = "token:blacklist:"

// ValidityResolver reports how long a token has left before it expires. The
// result is negative for an expired token and an error for one that does not
// verify.
type ValidityResolver interface {
	RemainingValidity(token string) (time.Duration, error)
}

// Store is the Redis-backed token deny-list.
type Store struct {
	redis    redis.UniversalClient
	resolver ValidityResolver
	prefix   string
}

// NewStore builds a Store. An empty prefix selects DefaultKeyPrefix.
func NewStore(rdb redis.UniversalClient, resolver ValidityResolver, prefix string) *Store {
	if prefix == "" {
		prefix = DefaultKeyPrefix
	}
	return &Store{redis: rdb, resolver: resolver, prefix: prefix}
}

// Key returns the Redis key for token.
func (s *Store) Key(token string) string {
	return s.prefix + token
}

// Revoke adds token to the deny-list until its own expiry. It reports false
// without writing when the token is already expired or does not verify.
// Revoking twice rewrites the same entry with the current remaining validity.
func (s *Store) Revoke(ctx context.Context, token string) (bool, error) {
	remaining, err := s.resolver.RemainingValidity(token)
	if err != nil || remaining <= 0 {
		return false, nil
	}
	// PX has millisecond resolution; a sub-millisecond remainder is already gone.
	if remaining < time.Millisecond {
		return false, nil
	}

	if err := s.redis.Set(ctx, s.Key(token), "1", remaining).Err(); err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return true, nil
}

// IsRevoked reports whether token is on the deny-list. It has no side effects.
func (s *Store) IsRevoked(ctx context.Context, token string) (bool, error) {
	n, err := s.redis.Exists(ctx, s.Key(token)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n > 0, nil
}
