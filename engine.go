package shelfauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/shelfauth/internal/audit"
	"github.com/MrEthical07/shelfauth/internal/flows"
	"github.com/MrEthical07/shelfauth/jwt"
	"github.com/MrEthical07/shelfauth/password"
	"github.com/MrEthical07/shelfauth/revocation"
	"github.com/MrEthical07/shelfauth/session"
	"github.com/redis/go-redis/v9"
)

// Engine authenticates requests, issues and revokes tokens and owns the
// login and registration flows. It is built once by Builder and is safe for
// concurrent use.
type Engine struct {
	config       Config
	redis        redis.UniversalClient
	jwtManager   *jwt.Manager
	revocations  *revocation.Store
	cache        *session.Cache
	userProvider UserProvider
	passwordHash password.Hasher
	audit        *internalaudit.Dispatcher
	metrics      *Metrics
	logger       *slog.Logger
	flows        flows.Service
}

// Close drains the audit dispatcher. It does not close the Redis client.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

// Authenticate resolves the identity behind token. The steps run in a
// fixed order: revocation check, signature and expiry check, user lookup
// through the session cache, then renewal when the token is inside the
// renewal threshold. It never returns an error; every failure is an
// Outcome and the caller decides whether to reject.
func (e *Engine) Authenticate(ctx context.Context, token string) AuthOutcome {
	if e == nil || !e.flows.Initialized() {
		return AuthOutcome{Outcome: OutcomeStoreUnavailable, Err: ErrEngineNotReady}
	}

	start := time.Now()
	res := e.flows.Authenticate(ctx, token)
	if e.metrics.LatencyEnabled() {
		e.metrics.Observe(MetricAuthenticateLatency, time.Since(start))
	}

	switch res.Failure {
	case flows.AuthenticateFailureNone:
		return AuthOutcome{
			Outcome:      OutcomeAuthenticated,
			Identity:     identityFromRecord(res.User),
			RenewedToken: res.RenewedToken,
		}
	case flows.AuthenticateFailureNoToken:
		return AuthOutcome{Outcome: OutcomeAnonymous}
	case flows.AuthenticateFailureRevoked:
		return AuthOutcome{Outcome: OutcomeRevoked, Err: ErrTokenRevoked}
	case flows.AuthenticateFailureInvalidToken:
		return AuthOutcome{Outcome: OutcomeInvalidToken, Err: res.Err}
	case flows.AuthenticateFailureUserNotFound:
		return AuthOutcome{Outcome: OutcomeUserNotFound, Err: ErrUserNotFound}
	default:
		return AuthOutcome{Outcome: OutcomeStoreUnavailable, Err: wrapStoreUnavailable(res.Err)}
	}
}

// RunWithIdentity authenticates token, binds the resolved identity to a
// pooled scope carried by the context passed to fn, and clears the scope
// when fn returns or panics. fn runs for every outcome, anonymous included.
func (e *Engine) RunWithIdentity(ctx context.Context, token string, fn func(ctx context.Context, out AuthOutcome) error) error {
	scope := AcquireIdentityScope()
	defer ReleaseIdentityScope(scope)

	ctx = WithIdentityScope(ctx, scope)
	out := e.Authenticate(ctx, token)
	if out.Authenticated() {
		if err := scope.Bind(out.Identity); err != nil {
			return err
		}
	}
	return fn(ctx, out)
}

// Logout revokes token for the rest of its validity. It returns false when
// the token does not decode, has no validity left, or the revocation store
// is unavailable. Logging out twice returns true both times.
func (e *Engine) Logout(ctx context.Context, token string) bool {
	if e == nil || !e.flows.Initialized() {
		return false
	}
	return e.flows.Logout(ctx, token).Revoked
}

// IssueToken signs a fresh token for an existing user. Login and Register
// use it; it is exported for tooling that seeds sessions.
func (e *Engine) IssueToken(userID, username string) (string, error) {
	if e == nil || e.jwtManager == nil {
		return "", ErrEngineNotReady
	}
	return e.jwtManager.Issue(userID, username)
}

func (e *Engine) loadUser(ctx context.Context, userID string) (*session.Record, error) {
	user, err := e.userProvider.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, wrapStoreUnavailable(err)
	}
	if user.Deleted || user.UserID == "" {
		return nil, ErrUserNotFound
	}
	return recordFromUser(user), nil
}

func (e *Engine) buildFlowDeps() flows.Deps {
	metric := func(id int) { e.metricInc(MetricID(id)) }
	audit := func(ctx context.Context, eventType string, success bool, userID string, err error, meta func() map[string]string) {
		e.emitAudit(ctx, eventType, success, userID, err, meta)
	}
	warn := func(msg string, args ...any) { e.logger.Warn(msg, args...) }
	debug := func(msg string, args ...any) { e.logger.Debug(msg, args...) }

	return flows.Deps{
		Authenticate: flows.AuthenticateDeps{
			FailOpen:           e.config.Store.Policy == FailOpen,
			IsRevoked:          e.revocations.IsRevoked,
			Decode:             e.jwtManager.Decode,
			LoadUser:           e.cache.Lookup,
			NeedsRenewal:       e.jwtManager.NeedsRenewal,
			Renew:              e.jwtManager.Renew,
			IsCacheUnavailable: isCacheUnavailable,
			UserNotFound:       ErrUserNotFound,
			MetricInc:          metric,
			EmitAudit:          audit,
			Warn:               warn,
			Debug:              debug,
			Metrics: flows.AuthenticateMetrics{
				Authenticated:         int(MetricAuthenticated),
				Anonymous:             int(MetricAnonymous),
				RevokedTokenPresented: int(MetricRevokedTokenPresented),
				InvalidToken:          int(MetricInvalidToken),
				UserNotFound:          int(MetricUserNotFound),
				StoreUnavailable:      int(MetricStoreUnavailable),
				TokenRenewed:          int(MetricTokenRenewed),
				RenewalFailed:         int(MetricRenewalFailed),
				CacheHit:              int(MetricCacheHit),
				CacheMiss:             int(MetricCacheMiss),
			},
			Events: flows.AuthenticateEvents{
				RevokedTokenPresented: auditEventRevokedTokenPresented,
				TokenRenewed:          auditEventTokenRenewed,
				StoreUnavailable:      auditEventStoreUnavailable,
			},
		},
		Logout: flows.LogoutDeps{
			Decode:    e.jwtManager.Decode,
			Revoke:    e.revocations.Revoke,
			MetricInc: metric,
			EmitAudit: audit,
			Warn:      warn,
			Metrics: flows.LogoutMetrics{
				Logout:         int(MetricLogout),
				LogoutRejected: int(MetricLogoutRejected),
			},
			Events: flows.LogoutEvents{
				Logout:         auditEventLogout,
				LogoutRejected: auditEventLogoutRejected,
			},
		},
		Login:    e.loginDeps(metric, audit, warn),
		Register: e.registerDeps(metric, audit),
	}
}

func isStoreUnavailable(err error) bool {
	return errors.Is(err, ErrStoreUnavailable) ||
		errors.Is(err, session.ErrStoreUnavailable) ||
		errors.Is(err, revocation.ErrStoreUnavailable)
}

func isCacheUnavailable(err error) bool {
	return errors.Is(err, session.ErrStoreUnavailable)
}

func wrapStoreUnavailable(err error) error {
	if err == nil || errors.Is(err, ErrStoreUnavailable) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func identityFromRecord(rec *session.Record) Identity {
	if rec == nil {
		return Identity{}
	}
	return Identity{
		UserID:    rec.UserID,
		Username:  rec.Username,
		Phone:     rec.Phone,
		Email:     rec.Email,
		AvatarURL: rec.AvatarURL,
		Bio:       rec.Bio,
		Role:      rec.Role,
		Status:    AccountStatus(rec.Status),
		CreatedAt: fromUnixMilli(rec.CreatedAt),
		UpdatedAt: fromUnixMilli(rec.UpdatedAt),
	}
}

func recordFromUser(u UserRecord) *session.Record {
	return &session.Record{
		UserID:    u.UserID,
		Username:  u.Username,
		Phone:     u.Phone,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
		Role:      u.Role,
		Status:    uint8(u.Status),
		CreatedAt: unixMilli(u.CreatedAt),
		UpdatedAt: unixMilli(u.UpdatedAt),
	}
}

func unixMilli(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMilli(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
