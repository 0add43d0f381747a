package flows

import (
	"context"
	"errors"

	"github.com/MrEthical07/shelfauth/jwt"
	"github.com/MrEthical07/shelfauth/session"
)

// AuthenticateFailureKind classifies authentication failures for root-level
// mapping onto outcomes.
type AuthenticateFailureKind int

const (
	AuthenticateFailureNone AuthenticateFailureKind = iota
	AuthenticateFailureNoToken
	AuthenticateFailureRevoked
	AuthenticateFailureInvalidToken
	AuthenticateFailureUserNotFound
	AuthenticateFailureStoreUnavailable
)

// AuthenticateResult carries either the resolved user or a classified
// failure. RenewErr is set when the user was resolved but renewal failed;
// the request still counts as authenticated.
type AuthenticateResult struct {
	Failure      AuthenticateFailureKind
	Err          error
	Claims       *jwt.Claims
	User         *session.Record
	CacheHit     bool
	RenewedToken string
	RenewErr     error
}

type AuthenticateMetrics struct {
	Authenticated         int
	Anonymous             int
	RevokedTokenPresented int
	InvalidToken          int
	UserNotFound          int
	StoreUnavailable      int
	TokenRenewed          int
	RenewalFailed         int
	CacheHit              int
	CacheMiss             int
}

type AuthenticateEvents struct {
	RevokedTokenPresented string
	TokenRenewed          string
	StoreUnavailable      string
}

// AuthenticateDeps captures the request authentication dependencies.
type AuthenticateDeps struct {
	// FailOpen skips the revocation check when the revocation store cannot
	// answer. The user lookup decides its own policy.
	FailOpen bool

	IsRevoked          func(context.Context, string) (bool, error)
	Decode             func(string) (*jwt.Claims, error)
	LoadUser           func(context.Context, string) (*session.Record, bool, error)
	NeedsRenewal       func(string) bool
	Renew              func(string) (string, error)
	IsCacheUnavailable func(error) bool
	UserNotFound       error

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)
	Debug     func(string, ...any)

	Metrics AuthenticateMetrics
	Events  AuthenticateEvents
}

// RunAuthenticate resolves the bearer token of one request: revocation
// check, then decode, then user lookup, then renewal. It never rejects; the
// caller decides what an unauthenticated request may do.
func RunAuthenticate(ctx context.Context, token string, deps AuthenticateDeps) AuthenticateResult {
	normalizeAuthenticateDeps(&deps)

	if token == "" {
		deps.MetricInc(deps.Metrics.Anonymous)
		return AuthenticateResult{Failure: AuthenticateFailureNoToken}
	}

	revoked, err := deps.IsRevoked(ctx, token)
	switch {
	case err != nil && !deps.FailOpen:
		deps.MetricInc(deps.Metrics.StoreUnavailable)
		deps.Warn("revocation check failed", "error", err)
		deps.EmitAudit(ctx, deps.Events.StoreUnavailable, false, "", err, func() map[string]string {
			return map[string]string{"stage": "revocation"}
		})
		return AuthenticateResult{Failure: AuthenticateFailureStoreUnavailable, Err: err}
	case err != nil:
		deps.MetricInc(deps.Metrics.StoreUnavailable)
		deps.Warn("revocation check failed, continuing", "error", err)
	case revoked:
		deps.MetricInc(deps.Metrics.RevokedTokenPresented)
		claims, _ := deps.Decode(token)
		userID := ""
		if claims != nil {
			userID = claims.Subject
		}
		deps.EmitAudit(ctx, deps.Events.RevokedTokenPresented, false, userID, nil, nil)
		return AuthenticateResult{Failure: AuthenticateFailureRevoked}
	}

	claims, err := deps.Decode(token)
	if err != nil {
		deps.MetricInc(deps.Metrics.InvalidToken)
		return AuthenticateResult{Failure: AuthenticateFailureInvalidToken, Err: err}
	}

	user, hit, err := deps.LoadUser(ctx, claims.Subject)
	if err != nil {
		if deps.UserNotFound != nil && errors.Is(err, deps.UserNotFound) {
			deps.MetricInc(deps.Metrics.UserNotFound)
			return AuthenticateResult{Failure: AuthenticateFailureUserNotFound, Err: err, Claims: claims}
		}
		deps.MetricInc(deps.Metrics.StoreUnavailable)
		deps.Warn("user lookup failed", "user_id", claims.Subject, "error", err)
		deps.EmitAudit(ctx, deps.Events.StoreUnavailable, false, claims.Subject, err, func() map[string]string {
			stage := "user_store"
			if deps.IsCacheUnavailable(err) {
				stage = "session_cache"
			}
			return map[string]string{"stage": stage}
		})
		return AuthenticateResult{Failure: AuthenticateFailureStoreUnavailable, Err: err, Claims: claims}
	}
	if hit {
		deps.MetricInc(deps.Metrics.CacheHit)
	} else {
		deps.MetricInc(deps.Metrics.CacheMiss)
	}

	result := AuthenticateResult{
		Claims:   claims,
		User:     user,
		CacheHit: hit,
	}
	deps.MetricInc(deps.Metrics.Authenticated)

	if deps.NeedsRenewal(token) {
		renewed, err := deps.Renew(token)
		if err != nil {
			deps.MetricInc(deps.Metrics.RenewalFailed)
			deps.Warn("token renewal failed", "user_id", claims.Subject, "error", err)
			result.RenewErr = err
			return result
		}
		deps.MetricInc(deps.Metrics.TokenRenewed)
		deps.Debug("token renewed", "user_id", claims.Subject)
		deps.EmitAudit(ctx, deps.Events.TokenRenewed, true, claims.Subject, nil, nil)
		result.RenewedToken = renewed
	}

	return result
}

func normalizeAuthenticateDeps(deps *AuthenticateDeps) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopLog
	}
	if deps.Debug == nil {
		deps.Debug = noopLog
	}
	if deps.NeedsRenewal == nil {
		deps.NeedsRenewal = func(string) bool { return false }
	}
	if deps.IsCacheUnavailable == nil {
		deps.IsCacheUnavailable = func(error) bool { return false }
	}
}
