package flows

import (
	"context"
	"errors"
	"time"
)

// UserRecord is the flow-local copy of a persistent user row.
type UserRecord struct {
	UserID       string
	Username     string
	Phone        string
	Email        string
	PasswordHash string
	AvatarURL    string
	Bio          string
	Role         uint8
	Status       uint8
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type LoginResult struct {
	Token string
	User  UserRecord
}

type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	PasswordRehashed int
}

type LoginEvents struct {
	LoginSuccess string
	LoginFailure string
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	AccountDisabled    error
	UserNotFound       error
	StoreUnavailable   error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	PasswordUpgradeOnLogin bool
	IsDisabled             func(status uint8) bool

	GetUserByIdentifier  func(context.Context, string) (UserRecord, error)
	UpdatePasswordHash   func(context.Context, string, string) error
	VerifyPassword       func(string, string) (bool, error)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)
	IssueToken           func(userID, username string) (string, error)

	MetricInc func(int)
	EmitAudit AuditFunc
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Events  LoginEvents
	Errors  LoginErrors
}

// RunLogin verifies a phone-or-email and password pair and issues a token.
// Unknown identifiers, deleted users and wrong passwords all surface as
// InvalidCredentials.
func RunLogin(ctx context.Context, identifier, password string, deps LoginDeps) (*LoginResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.Warn == nil {
		deps.Warn = noopLog
	}
	if deps.IsDisabled == nil {
		deps.IsDisabled = func(uint8) bool { return false }
	}
	if deps.GetUserByIdentifier == nil || deps.VerifyPassword == nil || deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	identifier = NormalizeIdentifier(identifier)
	fail := func(userID, reason string, err error) (*LoginResult, error) {
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.EmitAudit(ctx, deps.Events.LoginFailure, false, userID, err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     reason,
			}
		})
		return nil, err
	}

	if identifier == "" || password == "" {
		return fail("", "empty_input", deps.Errors.InvalidCredentials)
	}

	user, err := deps.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		if deps.Errors.UserNotFound != nil && errors.Is(err, deps.Errors.UserNotFound) {
			return fail("", "unknown_identifier", deps.Errors.InvalidCredentials)
		}
		return fail("", "store_unavailable", errors.Join(deps.Errors.StoreUnavailable, err))
	}
	if user.Deleted {
		return fail(user.UserID, "deleted", deps.Errors.InvalidCredentials)
	}

	ok, err := deps.VerifyPassword(password, user.PasswordHash)
	if err != nil || !ok {
		return fail(user.UserID, "bad_password", deps.Errors.InvalidCredentials)
	}
	if deps.IsDisabled(user.Status) {
		return fail(user.UserID, "disabled", deps.Errors.AccountDisabled)
	}

	if deps.PasswordUpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		if needsUpgrade, err := deps.PasswordNeedsUpgrade(user.PasswordHash); err == nil && needsUpgrade {
			if newHash, err := deps.HashPassword(password); err == nil {
				if err := deps.UpdatePasswordHash(ctx, user.UserID, newHash); err != nil {
					deps.Warn("password rehash failed", "user_id", user.UserID, "error", err)
				} else {
					user.PasswordHash = newHash
					deps.MetricInc(deps.Metrics.PasswordRehashed)
				}
			} else {
				deps.Warn("password rehash failed", "user_id", user.UserID, "error", err)
			}
		}
	}

	token, err := deps.IssueToken(user.UserID, user.Username)
	if err != nil {
		return fail(user.UserID, "token_issue_failed", err)
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	deps.EmitAudit(ctx, deps.Events.LoginSuccess, true, user.UserID, nil, nil)

	return &LoginResult{Token: token, User: user}, nil
}
