package flows

import (
	"context"
	"errors"
	"fmt"
)

type RegisterRequest struct {
	Identifier      string
	Password        string
	ConfirmPassword string
}

type RegisterResult struct {
	User  UserRecord
	Token string
}

// RegisterUserInput is what CreateUser receives. The id and hash are final.
type RegisterUserInput struct {
	UserID       string
	Username     string
	Phone        string
	Email        string
	PasswordHash string
	Role         uint8
	Status       uint8
}

type RegisterMetrics struct {
	RegisterSuccess   int
	RegisterDuplicate int
	RegisterInvalid   int
}

type RegisterEvents struct {
	RegisterSuccess string
	RegisterFailure string
}

type RegisterErrors struct {
	EngineNotReady              error
	AccountCreationInvalid      error
	PasswordPolicy              error
	PasswordMismatch            error
	AccountExists               error
	ProviderDuplicateIdentifier error
	UserNotFound                error
	StoreUnavailable            error
}

// RegisterDeps captures account creation dependencies.
type RegisterDeps struct {
	MinPasswordLength int
	MaxPasswordLength int
	UsernamePrefix    string
	DefaultRole       uint8
	ActiveStatus      uint8
	AutoLogin         bool

	NewUserID           func() string
	HashPassword        func(string) (string, error)
	GetUserByIdentifier func(context.Context, string) (UserRecord, error)
	CreateUser          func(context.Context, RegisterUserInput) (UserRecord, error)
	IssueToken          func(userID, username string) (string, error)

	MetricInc func(int)
	EmitAudit AuditFunc

	Metrics RegisterMetrics
	Events  RegisterEvents
	Errors  RegisterErrors
}

// usernameIDChars is how much of the generated id goes into the default
// username.
const usernameIDChars = 8

// RunRegister validates the form, rejects taken identifiers, hashes the
// password and creates the user with a generated id and default username.
func RunRegister(ctx context.Context, req RegisterRequest, deps RegisterDeps) (*RegisterResult, error) {
	if deps.MetricInc == nil {
		deps.MetricInc = noopMetric
	}
	if deps.EmitAudit == nil {
		deps.EmitAudit = noopAudit
	}
	if deps.NewUserID == nil || deps.HashPassword == nil || deps.GetUserByIdentifier == nil || deps.CreateUser == nil {
		return nil, deps.Errors.EngineNotReady
	}
	if deps.AutoLogin && deps.IssueToken == nil {
		return nil, deps.Errors.EngineNotReady
	}

	identifier := NormalizeIdentifier(req.Identifier)
	fail := func(metric int, reason string, err error) (*RegisterResult, error) {
		deps.MetricInc(metric)
		deps.EmitAudit(ctx, deps.Events.RegisterFailure, false, "", err, func() map[string]string {
			return map[string]string{
				"identifier": identifier,
				"reason":     reason,
			}
		})
		return nil, err
	}

	form := registerForm{
		Identifier:      identifier,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
		minPassword:     deps.MinPasswordLength,
		maxPassword:     deps.MaxPasswordLength,
	}
	if err := form.Validate(); err != nil {
		switch field, fieldErr := registerFormField(err); field {
		case "password":
			return fail(deps.Metrics.RegisterInvalid, "password_policy", fmt.Errorf("%w: %v", deps.Errors.PasswordPolicy, fieldErr))
		case "confirmPassword":
			return fail(deps.Metrics.RegisterInvalid, "password_mismatch", deps.Errors.PasswordMismatch)
		default:
			return fail(deps.Metrics.RegisterInvalid, "invalid_identifier", fmt.Errorf("%w: %v", deps.Errors.AccountCreationInvalid, fieldErr))
		}
	}
	phone, email := identifier, ""
	if isEmailIdentifier(identifier) {
		phone, email = "", identifier
	}

	if _, err := deps.GetUserByIdentifier(ctx, identifier); err == nil {
		return fail(deps.Metrics.RegisterDuplicate, "duplicate", deps.Errors.AccountExists)
	} else if deps.Errors.UserNotFound == nil || !errors.Is(err, deps.Errors.UserNotFound) {
		return fail(deps.Metrics.RegisterInvalid, "store_unavailable", errors.Join(deps.Errors.StoreUnavailable, err))
	}

	hash, err := deps.HashPassword(req.Password)
	if err != nil {
		return fail(deps.Metrics.RegisterInvalid, "hash_failed", err)
	}

	userID := deps.NewUserID()
	short := userID
	if len(short) > usernameIDChars {
		short = short[:usernameIDChars]
	}

	user, err := deps.CreateUser(ctx, RegisterUserInput{
		UserID:       userID,
		Username:     deps.UsernamePrefix + short,
		Phone:        phone,
		Email:        email,
		PasswordHash: hash,
		Role:         deps.DefaultRole,
		Status:       deps.ActiveStatus,
	})
	if err != nil {
		if deps.Errors.ProviderDuplicateIdentifier != nil && errors.Is(err, deps.Errors.ProviderDuplicateIdentifier) {
			return fail(deps.Metrics.RegisterDuplicate, "duplicate", deps.Errors.AccountExists)
		}
		return fail(deps.Metrics.RegisterInvalid, "store_unavailable", errors.Join(deps.Errors.StoreUnavailable, err))
	}

	result := &RegisterResult{User: user}
	if deps.AutoLogin {
		token, err := deps.IssueToken(user.UserID, user.Username)
		if err != nil {
			return nil, err
		}
		result.Token = token
	}

	deps.MetricInc(deps.Metrics.RegisterSuccess)
	deps.EmitAudit(ctx, deps.Events.RegisterSuccess, true, user.UserID, nil, nil)

	return result, nil
}
