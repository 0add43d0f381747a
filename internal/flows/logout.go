package flows

import (
	"context"

	"github.com/MrEthical07/shelfauth/jwt"
)

type LogoutResult struct {
	Revoked bool
	UserID  string
	Err     error
}

type LogoutMetrics struct {
	Logout         int
	LogoutRejected int
}

type LogoutEvents struct {
	Logout         string
	LogoutRejected string
}

// LogoutDeps captures logout flow dependencies.
type LogoutDeps struct {
	Decode func(string) (*jwt.Claims, error)
	Revoke func(context.Context, string) (bool, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LogoutMetrics
	Events  LogoutEvents
}

// RunLogout revokes token for the rest of its validity. A token that does
// not decode is rejected without touching the store. Revoking an already
// revoked token succeeds again.
func RunLogout(ctx context.Context, token string, deps LogoutDeps) LogoutResult {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopLog
	}

	claims, err := deps.Decode(token)
	if err != nil {
		deps.MetricInc(deps.Metrics.LogoutRejected)
		deps.EmitAudit(ctx, deps.Events.LogoutRejected, false, "", err, func() map[string]string {
			return map[string]string{"reason": "invalid_token"}
		})
		return LogoutResult{Err: err}
	}

	revoked, err := deps.Revoke(ctx, token)
	if err != nil {
		deps.MetricInc(deps.Metrics.LogoutRejected)
		deps.Warn("logout revocation failed", "user_id", claims.Subject, "error", err)
		deps.EmitAudit(ctx, deps.Events.LogoutRejected, false, claims.Subject, err, func() map[string]string {
			return map[string]string{"reason": "store_unavailable"}
		})
		return LogoutResult{UserID: claims.Subject, Err: err}
	}
	if !revoked {
		deps.MetricInc(deps.Metrics.LogoutRejected)
		deps.EmitAudit(ctx, deps.Events.LogoutRejected, false, claims.Subject, nil, func() map[string]string {
			return map[string]string{"reason": "no_remaining_validity"}
		})
		return LogoutResult{UserID: claims.Subject}
	}

	deps.MetricInc(deps.Metrics.Logout)
	deps.EmitAudit(ctx, deps.Events.Logout, true, claims.Subject, nil, nil)
	return LogoutResult{Revoked: true, UserID: claims.Subject}
}
