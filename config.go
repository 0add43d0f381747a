package shelfauth

import (
	"errors"
	"strings"
	"time"

	"github.com/MrEthical07/shelfauth/jwt"
	"github.com/MrEthical07/shelfauth/password"
	"github.com/MrEthical07/shelfauth/revocation"
	"github.com/MrEthical07/shelfauth/session"
)

// StorePolicy decides what Authenticate does when Redis cannot answer.
type StorePolicy int

const (
	// FailClosed treats a store outage as an unauthenticated request.
	FailClosed StorePolicy = iota
	// FailOpen skips the revocation check and reads through to the user
	// store when Redis is down.
	FailOpen
)

func (p StorePolicy) String() string {
	switch p {
	case FailClosed:
		return "fail_closed"
	case FailOpen:
		return "fail_open"
	default:
		return "unknown"
	}
}

// ParseStorePolicy maps "fail_closed" and "fail_open" to a StorePolicy.
func ParseStorePolicy(s string) (StorePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail_closed", "closed":
		return FailClosed, nil
	case "fail_open", "open":
		return FailOpen, nil
	default:
		return FailClosed, errors.New("unknown store policy: " + s)
	}
}

// Config is the full engine configuration. It is cloned into the Engine by
// Build and never mutated afterwards.
type Config struct {
	JWT        JWTConfig
	Revocation RevocationConfig
	Cache      CacheConfig
	Password   PasswordConfig
	Account    AccountConfig
	Store      StoreConfig
	Audit      AuditConfig
	Metrics    MetricsConfig
}

// JWTConfig controls token signing and lifetime.
type JWTConfig struct {
	// ValidityWindow is the lifetime of every issued token.
	ValidityWindow time.Duration
	// RenewalThreshold is the remaining validity below which a presented
	// token is replaced through the renewal header.
	RenewalThreshold time.Duration
	SigningMethod    string // "hs256" or "ed25519"
	PrivateKey       []byte
	PublicKey        []byte
	Issuer           string
}

type RevocationConfig struct {
	KeyPrefix string
}

type CacheConfig struct {
	KeyPrefix string
	TTL       time.Duration
}

// PasswordConfig selects the credential hasher.
type PasswordConfig struct {
	Argon2 password.Argon2Config
	// AcceptBcrypt verifies legacy bcrypt hashes. With UpgradeOnLogin set,
	// a successful login rewrites them as argon2id.
	AcceptBcrypt   bool
	BcryptCost     int
	UpgradeOnLogin bool
	MinLength      int
	MaxLength      int
}

// AccountConfig tunes Register.
type AccountConfig struct {
	UsernamePrefix string
	DefaultRole    uint8
	// AutoLogin issues a token together with the created account.
	AutoLogin bool
}

type StoreConfig struct {
	Policy StorePolicy
}

type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

// DefaultConfig returns the production defaults. The signing key is left
// empty and must be supplied.
func DefaultConfig() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			ValidityWindow:   7 * 24 * time.Hour,
			RenewalThreshold: 3 * 24 * time.Hour,
			SigningMethod:    string(jwt.MethodHS256),
		},
		Revocation: RevocationConfig{
			KeyPrefix: revocation.DefaultKeyPrefix,
		},
		Cache: CacheConfig{
			KeyPrefix: session.DefaultKeyPrefix,
			TTL:       session.DefaultTTL,
		},
		Password: PasswordConfig{
			Argon2:         password.DefaultArgon2Config(),
			AcceptBcrypt:   true,
			UpgradeOnLogin: true,
			MinLength:      8,
			MaxLength:      72,
		},
		Account: AccountConfig{
			UsernamePrefix: "reader-",
		},
		Store: StoreConfig{
			Policy: FailClosed,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: false,
		},
	}
}

// Validate checks the configuration for contradictions. It does not parse
// signing keys; jwt.NewManager does that during Build.
func (c *Config) Validate() error {
	if c.JWT.ValidityWindow <= 0 {
		return errors.New("JWT ValidityWindow must be > 0")
	}
	if c.JWT.RenewalThreshold <= 0 {
		return errors.New("JWT RenewalThreshold must be > 0")
	}
	if c.JWT.RenewalThreshold >= c.JWT.ValidityWindow {
		return errors.New("JWT RenewalThreshold must be shorter than ValidityWindow")
	}
	switch jwt.SigningMethod(c.JWT.SigningMethod) {
	case jwt.MethodHS256:
		if len(c.JWT.PrivateKey) < jwt.MinHMACSecretLen {
			return errors.New("JWT hs256 secret must be at least 32 bytes")
		}
	case jwt.MethodEd25519:
		if len(c.JWT.PublicKey) == 0 {
			return errors.New("JWT ed25519 requires PublicKey")
		}
	default:
		return errors.New("JWT SigningMethod must be hs256 or ed25519")
	}

	if c.Revocation.KeyPrefix == "" {
		return errors.New("Revocation KeyPrefix must not be empty")
	}
	if c.Cache.KeyPrefix == "" {
		return errors.New("Cache KeyPrefix must not be empty")
	}
	if c.Cache.KeyPrefix == c.Revocation.KeyPrefix {
		return errors.New("Cache and Revocation key prefixes must differ")
	}
	if c.Cache.TTL <= 0 {
		return errors.New("Cache TTL must be > 0")
	}

	if c.Password.MinLength <= 0 {
		return errors.New("Password MinLength must be > 0")
	}
	if c.Password.MaxLength < c.Password.MinLength {
		return errors.New("Password MaxLength must be >= MinLength")
	}
	if c.Password.AcceptBcrypt && c.Password.MaxLength > 72 {
		return errors.New("Password MaxLength must be <= 72 when bcrypt is accepted")
	}

	if strings.TrimSpace(c.Account.UsernamePrefix) == "" {
		return errors.New("Account UsernamePrefix must not be empty")
	}

	if c.Store.Policy != FailClosed && c.Store.Policy != FailOpen {
		return errors.New("Store Policy is invalid")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}
	if c.Metrics.EnableLatencyHistograms && !c.Metrics.Enabled {
		return errors.New("Metrics EnableLatencyHistograms requires Metrics Enabled")
	}

	return nil
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.PrivateKey = cloneBytes(cfg.JWT.PrivateKey)
	out.JWT.PublicKey = cloneBytes(cfg.JWT.PublicKey)
	return out
}

func cloneBytes(in []byte) []byte {
	if in == nil {
		return nil
	}
	out := make([]byte, len(in))
	copy(out, in)
	return out
}
