package shelfauth

import (
	"context"
	"errors"

	"github.com/MrEthical07/shelfauth/internal/flows"
	"github.com/google/uuid"
)

// Login verifies a phone number or email address and password and issues a
// token. Unknown identifiers and wrong passwords both return
// ErrInvalidCredentials. A legacy password hash is rewritten on success
// when Password.UpgradeOnLogin is set.
func (e *Engine) Login(ctx context.Context, phoneOrEmail, password string) (*LoginResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.Login(ctx, phoneOrEmail, password)
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:    res.Token,
		Identity: identityFromFlowUser(res.User),
	}, nil
}

// Register creates a reader account. The identifier must be a phone number
// or an email address, the password must satisfy the length policy and
// match its confirmation. The username defaults to the configured prefix
// plus the first eight characters of the generated user id. Token is set
// only when Account.AutoLogin is enabled.
func (e *Engine) Register(ctx context.Context, in RegisterInput) (*LoginResult, error) {
	if e == nil || !e.flows.Initialized() {
		return nil, ErrEngineNotReady
	}
	res, err := e.flows.Register(ctx, flows.RegisterRequest{
		Identifier:      in.PhoneOrEmail,
		Password:        in.Password,
		ConfirmPassword: in.ConfirmPassword,
	})
	if err != nil {
		return nil, err
	}
	return &LoginResult{
		Token:    res.Token,
		Identity: identityFromFlowUser(res.User),
	}, nil
}

func (e *Engine) loginDeps(metric func(int), audit flows.AuditFunc, warn func(string, ...any)) flows.LoginDeps {
	return flows.LoginDeps{
		PasswordUpgradeOnLogin: e.config.Password.UpgradeOnLogin,
		IsDisabled:             func(status uint8) bool { return AccountStatus(status) == AccountDisabled },
		GetUserByIdentifier:    e.flowUserByIdentifier,
		UpdatePasswordHash:     e.userProvider.UpdatePasswordHash,
		VerifyPassword:         e.passwordHash.Verify,
		PasswordNeedsUpgrade:   e.passwordHash.NeedsUpgrade,
		HashPassword:           e.passwordHash.Hash,
		IssueToken:             e.jwtManager.Issue,
		MetricInc:              metric,
		EmitAudit:              audit,
		Warn:                   warn,
		Metrics: flows.LoginMetrics{
			LoginSuccess:     int(MetricLoginSuccess),
			LoginFailure:     int(MetricLoginFailure),
			PasswordRehashed: int(MetricPasswordRehashed),
		},
		Events: flows.LoginEvents{
			LoginSuccess: auditEventLoginSuccess,
			LoginFailure: auditEventLoginFailure,
		},
		Errors: flows.LoginErrors{
			EngineNotReady:     ErrEngineNotReady,
			InvalidCredentials: ErrInvalidCredentials,
			AccountDisabled:    ErrAccountDisabled,
			UserNotFound:       ErrUserNotFound,
			StoreUnavailable:   ErrStoreUnavailable,
		},
	}
}

func (e *Engine) registerDeps(metric func(int), audit flows.AuditFunc) flows.RegisterDeps {
	return flows.RegisterDeps{
		MinPasswordLength:   e.config.Password.MinLength,
		MaxPasswordLength:   e.config.Password.MaxLength,
		UsernamePrefix:      e.config.Account.UsernamePrefix,
		DefaultRole:         e.config.Account.DefaultRole,
		ActiveStatus:        uint8(AccountActive),
		AutoLogin:           e.config.Account.AutoLogin,
		NewUserID:           func() string { return uuid.NewString() },
		HashPassword:        e.passwordHash.Hash,
		GetUserByIdentifier: e.flowUserByIdentifier,
		CreateUser:          e.flowCreateUser,
		IssueToken:          e.jwtManager.Issue,
		MetricInc:           metric,
		EmitAudit:           audit,
		Metrics: flows.RegisterMetrics{
			RegisterSuccess:   int(MetricRegisterSuccess),
			RegisterDuplicate: int(MetricRegisterDuplicate),
			RegisterInvalid:   int(MetricRegisterInvalid),
		},
		Events: flows.RegisterEvents{
			RegisterSuccess: auditEventRegisterSuccess,
			RegisterFailure: auditEventRegisterFailure,
		},
		Errors: flows.RegisterErrors{
			EngineNotReady:              ErrEngineNotReady,
			AccountCreationInvalid:      ErrAccountCreationInvalid,
			PasswordPolicy:              ErrPasswordPolicy,
			PasswordMismatch:            ErrPasswordMismatch,
			AccountExists:               ErrAccountExists,
			ProviderDuplicateIdentifier: ErrProviderDuplicateIdentifier,
			UserNotFound:                ErrUserNotFound,
			StoreUnavailable:            ErrStoreUnavailable,
		},
	}
}

func (e *Engine) flowUserByIdentifier(ctx context.Context, identifier string) (flows.UserRecord, error) {
	u, err := e.userProvider.GetUserByIdentifier(ctx, identifier)
	if err != nil {
		return flows.UserRecord{}, err
	}
	if u.Deleted {
		return flows.UserRecord{}, ErrUserNotFound
	}
	return flowUserFromRecord(u), nil
}

func (e *Engine) flowCreateUser(ctx context.Context, in flows.RegisterUserInput) (flows.UserRecord, error) {
	u, err := e.userProvider.CreateUser(ctx, CreateUserInput{
		UserID:       in.UserID,
		Username:     in.Username,
		Phone:        in.Phone,
		Email:        in.Email,
		PasswordHash: in.PasswordHash,
		Role:         in.Role,
		Status:       AccountStatus(in.Status),
	})
	if err != nil {
		if errors.Is(err, ErrAccountExists) {
			return flows.UserRecord{}, ErrProviderDuplicateIdentifier
		}
		return flows.UserRecord{}, err
	}
	return flowUserFromRecord(u), nil
}

func flowUserFromRecord(u UserRecord) flows.UserRecord {
	return flows.UserRecord{
		UserID:       u.UserID,
		Username:     u.Username,
		Phone:        u.Phone,
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		AvatarURL:    u.AvatarURL,
		Bio:          u.Bio,
		Role:         u.Role,
		Status:       uint8(u.Status),
		Deleted:      u.Deleted,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func identityFromFlowUser(u flows.UserRecord) Identity {
	return Identity{
		UserID:    u.UserID,
		Username:  u.Username,
		Phone:     u.Phone,
		Email:     u.Email,
		AvatarURL: u.AvatarURL,
		Bio:       u.Bio,
		Role:      u.Role,
		Status:    AccountStatus(u.Status),
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}
