package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrUserNotFound is returned when neither the cache nor the loader knows the user.
	ErrUserNotFound = errors.New("user not found")
	// ErrStoreUnavailable wraps Redis failures.
	ErrStoreUnavailable = errors.New("session store unavailable")
)

const (
	// DefaultKeyPrefix namespaces cached records.
	DefaultKeyPrefix = "user:info:"
	// DefaultTTL is how long a cached record lives after it is written.
	DefaultTTL = 30 * time.Minute
)

// Loader resolves a user from the persistent store on a cache miss. It must
// return ErrUserNotFound (or an error wrapping it) for unknown or deleted users.
type Loader func(ctx context.Context, userID string) (*Record, error)

// Options tunes a Cache. Zero values select the defaults.
type Options struct {
	KeyPrefix string
	TTL       time.Duration

	// FailOpen lets a Redis read failure fall through to the loader. The
	// follow-up write is still attempted and its failure ignored.
	FailOpen bool

	// Logger receives a warning for records too large to cache. Nil means
	// slog.Default().
	Logger *slog.Logger
}

// Cache is a read-through Redis cache of user records. Entries are written
// only on a miss and expire after a fixed TTL; a hit never extends it.
type Cache struct {
	redis    redis.UniversalClient
	loader   Loader
	prefix   string
	ttl      time.Duration
	failOpen bool
	logger   *slog.Logger
}

// NewCache builds a Cache over rdb that reads through to loader.
func NewCache(rdb redis.UniversalClient, loader Loader, opts Options) *Cache {
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = DefaultKeyPrefix
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Cache{
		redis:    rdb,
		loader:   loader,
		prefix:   opts.KeyPrefix,
		ttl:      opts.TTL,
		failOpen: opts.FailOpen,
		logger:   opts.Logger,
	}
}

// Key returns the Redis key holding userID's record.
func (c *Cache) Key(userID string) string {
	return c.prefix + userID
}

// TTL returns the fixed lifetime of a cached entry.
func (c *Cache) TTL() time.Duration {
	return c.ttl
}

// Get returns the record for userID, loading and caching it on a miss.
func (c *Cache) Get(ctx context.Context, userID string) (*Record, error) {
	rec, _, err := c.Lookup(ctx, userID)
	return rec, err
}

// Lookup is Get that also reports whether the record came from the cache.
func (c *Cache) Lookup(ctx context.Context, userID string) (*Record, bool, error) {
	if userID == "" {
		return nil, false, ErrUserNotFound
	}
	key := c.Key(userID)

	data, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		// An undecodable entry is treated as a miss and overwritten below.
		if rec, decodeErr := Decode(data); decodeErr == nil && rec.UserID == userID {
			return rec, true, nil
		}
	case errors.Is(err, redis.Nil):
	default:
		if !c.failOpen {
			return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}

	rec, err := c.loader(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	if rec == nil {
		return nil, false, ErrUserNotFound
	}

	encoded, err := Encode(rec)
	if err != nil {
		// The persistent store is authoritative; serve the record uncached.
		c.logger.Warn("user record not cacheable", "user_id", userID, "error", err)
		return rec, false, nil
	}
	if err := c.redis.Set(ctx, key, encoded, c.ttl).Err(); err != nil && !c.failOpen {
		return nil, false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	return rec, false, nil
}

// Ping returns a point-in-time Redis availability check and latency.
func (c *Cache) Ping(ctx context.Context) (time.Duration, error) {
	start := time.Now()
	if err := c.redis.Ping(ctx).Err(); err != nil {
		return time.Since(start), fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return time.Since(start), nil
}
