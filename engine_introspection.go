package shelfauth

import (
	"context"
	"errors"
	"time"
)

// Health pings Redis and reports reachability and round-trip latency.
func (e *Engine) Health(ctx context.Context) HealthStatus {
	if e == nil || e.cache == nil {
		return HealthStatus{}
	}

	latency, err := e.cache.Ping(ctx)
	return HealthStatus{
		RedisAvailable: err == nil,
		RedisLatency:   latency,
	}
}

// MetricsSnapshot returns a copy of the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// AuditDropped returns how many audit events were dropped because the
// buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// IsTokenRevoked reports whether token is on the revocation list. It does
// not verify the token.
func (e *Engine) IsTokenRevoked(ctx context.Context, token string) (bool, error) {
	if e == nil || e.revocations == nil {
		return false, ErrEngineNotReady
	}
	revoked, err := e.revocations.IsRevoked(ctx, token)
	if err != nil {
		return false, wrapStoreUnavailable(err)
	}
	return revoked, nil
}

// RemainingValidity returns how long token stays valid. The signature must
// verify; an expired token yields a negative duration.
func (e *Engine) RemainingValidity(token string) (time.Duration, error) {
	if e == nil || e.jwtManager == nil {
		return 0, ErrEngineNotReady
	}
	return e.jwtManager.RemainingValidity(token)
}

// LookupUser resolves userID through the session cache, exactly as
// Authenticate would.
func (e *Engine) LookupUser(ctx context.Context, userID string) (Identity, error) {
	if e == nil || e.cache == nil {
		return Identity{}, ErrEngineNotReady
	}
	rec, err := e.cache.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return Identity{}, ErrUserNotFound
		}
		return Identity{}, wrapStoreUnavailable(err)
	}
	return identityFromRecord(rec), nil
}
