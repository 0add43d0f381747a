package shelfauth

import (
	"context"
	"io"
	"log/slog"
	"time"

	internalaudit "github.com/MrEthical07/shelfauth/internal/audit"
)

// AccountStatus is the lifecycle state of a user account.
type AccountStatus uint8

const (
	AccountActive AccountStatus = iota
	AccountDisabled
)

// Role values stored on a user record.
const (
	RoleReader uint8 = 0
	RoleAdmin  uint8 = 1
)

// Identity is the resolved user bound to a request. It never carries the
// credential hash.
type Identity struct {
	UserID    string
	Username  string
	Phone     string
	Email     string
	AvatarURL string
	Bio       string
	Role      uint8
	Status    AccountStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserRecord is the persistent account row returned by a UserProvider.
type UserRecord struct {
	UserID       string
	Username     string
	Phone        string
	Email        string
	PasswordHash string
	AvatarURL    string
	Bio          string
	Role         uint8
	Status       AccountStatus
	Deleted      bool
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// CreateUserInput is handed to UserProvider.CreateUser by Register. The id
// and password hash are already generated.
type CreateUserInput struct {
	UserID       string
	Username     string
	Phone        string
	Email        string
	PasswordHash string
	Role         uint8
	Status       AccountStatus
}

// UserProvider is the persistent user store. Lookups of unknown or deleted
// users return ErrUserNotFound; CreateUser returns
// ErrProviderDuplicateIdentifier when the phone or email is taken.
type UserProvider interface {
	GetUserByIdentifier(ctx context.Context, phoneOrEmail string) (UserRecord, error)
	GetUserByID(ctx context.Context, userID string) (UserRecord, error)
	CreateUser(ctx context.Context, input CreateUserInput) (UserRecord, error)
	UpdatePasswordHash(ctx context.Context, userID, newHash string) error
}

// Outcome classifies what Authenticate concluded about a request.
type Outcome int

const (
	// OutcomeAnonymous means no token was presented.
	OutcomeAnonymous Outcome = iota
	OutcomeAuthenticated
	OutcomeRevoked
	OutcomeInvalidToken
	OutcomeUserNotFound
	OutcomeStoreUnavailable
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAnonymous:
		return "anonymous"
	case OutcomeAuthenticated:
		return "authenticated"
	case OutcomeRevoked:
		return "revoked"
	case OutcomeInvalidToken:
		return "invalid_token"
	case OutcomeUserNotFound:
		return "user_not_found"
	case OutcomeStoreUnavailable:
		return "store_unavailable"
	default:
		return "unknown"
	}
}

// AuthOutcome is the result of Engine.Authenticate. Only
// OutcomeAuthenticated carries an Identity. RenewedToken is set when the
// presented token was close to expiry and a replacement was issued.
type AuthOutcome struct {
	Outcome      Outcome
	Identity     Identity
	RenewedToken string
	Err          error
}

func (o AuthOutcome) Authenticated() bool {
	return o.Outcome == OutcomeAuthenticated
}

// LoginResult is returned by Login and, with AutoLogin, by Register.
type LoginResult struct {
	Token    string
	Identity Identity
}

// RegisterInput is the raw registration form.
type RegisterInput struct {
	PhoneOrEmail    string
	Password        string
	ConfirmPassword string
}

// HealthStatus reports Redis reachability.
type HealthStatus struct {
	RedisAvailable bool
	RedisLatency   time.Duration
}

// AuditEvent is one structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives events from the engine's audit dispatcher.
type AuditSink = internalaudit.Sink

type NoOpSink = internalaudit.NoOpSink

type ChannelSink = internalaudit.ChannelSink

type JSONWriterSink = internalaudit.JSONWriterSink

type SlogSink = internalaudit.SlogSink

type MultiSink = internalaudit.MultiSink

func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}

// NewSlogSink logs audit events through logger, at WARN for failures.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	return internalaudit.NewSlogSink(logger)
}
