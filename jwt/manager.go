package jwt

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrMalformed is returned for input that cannot be parsed as a token.
	ErrMalformed = errors.New("token malformed")
	// ErrInvalidSignature is returned when the signature or algorithm does not match the configured key.
	ErrInvalidSignature = errors.New("token signature invalid")
	// ErrExpired is returned once the current time reaches the token's expiry.
	ErrExpired = errors.New("token expired")
)

// SigningMethod selects the algorithm used to sign and verify tokens.
type SigningMethod string

const (
	// MethodHS256 signs with a shared HMAC secret.
	MethodHS256 SigningMethod = "hs256"
	// MethodEd25519 signs with an Ed25519 private key and verifies with its public half.
	MethodEd25519 SigningMethod = "ed25519"
)

// MinHMACSecretLen is the shortest HS256 secret accepted by NewManager.
const MinHMACSecretLen = 32

// Config controls token lifetime, renewal and signing keys.
type Config struct {
	ValidityWindow   time.Duration
	RenewalThreshold time.Duration
	SigningMethod    SigningMethod
	PrivateKey       []byte
	PublicKey        []byte
	Issuer           string

	// Now overrides the clock. Nil means time.Now.
	Now func() time.Time
}

// Claims is the payload carried by every issued token. The subject holds the user id.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *Claims) UserID() string {
	return c.Subject
}

// Manager issues, decodes and renews signed bearer tokens.
//
// A Manager is immutable after NewManager and safe for concurrent use.
type Manager struct {
	config Config
	now    func() time.Time
}

// NewManager validates cfg and returns a ready Manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.ValidityWindow <= 0 {
		return nil, errors.New("invalid validity window configuration")
	}
	if cfg.RenewalThreshold <= 0 || cfg.RenewalThreshold >= cfg.ValidityWindow {
		return nil, errors.New("renewal threshold must be positive and shorter than the validity window")
	}
	cfg.Issuer = strings.TrimSpace(cfg.Issuer)

	switch cfg.SigningMethod {
	case MethodHS256:
		if len(cfg.PrivateKey) < MinHMACSecretLen {
			return nil, fmt.Errorf("hs256 requires a secret of at least %d bytes", MinHMACSecretLen)
		}
	case MethodEd25519:
		if len(cfg.PrivateKey) > 0 {
			if _, err := parseEdPrivateKey(cfg.PrivateKey); err != nil {
				return nil, err
			}
		}
		if len(cfg.PublicKey) == 0 {
			return nil, errors.New("ed25519 requires public key")
		}
		if _, err := parseEdPublicKey(cfg.PublicKey); err != nil {
			return nil, err
		}
	default:
		return nil, errors.New("unsupported signing method")
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &Manager{config: cfg, now: now}, nil
}

// ValidityWindow returns the configured token lifetime.
func (m *Manager) ValidityWindow() time.Duration { return m.config.ValidityWindow }

// RenewalThreshold returns the remaining-validity bound below which tokens are renewed.
func (m *Manager) RenewalThreshold() time.Duration { return m.config.RenewalThreshold }

// Issue signs a new token for userID. iat is now and exp is now plus the validity window.
func (m *Manager) Issue(userID, username string) (string, error) {
	if userID == "" {
		return "", errors.New("user id is required")
	}

	now := m.now()
	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID,
			Issuer:    m.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.ValidityWindow)),
		},
	}

	signKey, err := m.getSignKey()
	if err != nil {
		return "", err
	}

	return jwt.NewWithClaims(m.getMethod(), claims).SignedString(signKey)
}

// Decode verifies token and returns its claims. Errors wrap ErrMalformed,
// ErrInvalidSignature or ErrExpired.
func (m *Manager) Decode(token string) (*Claims, error) {
	return m.parse(token, true)
}

// RemainingValidity returns exp minus now. The result is negative for an
// expired token; the signature must still verify.
func (m *Manager) RemainingValidity(token string) (time.Duration, error) {
	claims, err := m.parse(token, false)
	if err != nil {
		return 0, err
	}
	return claims.ExpiresAt.Time.Sub(m.now()), nil
}

// NeedsRenewal reports whether token is still valid but closer to expiry than
// the renewal threshold.
func (m *Manager) NeedsRenewal(token string) bool {
	remaining, err := m.RemainingValidity(token)
	if err != nil {
		return false
	}
	return remaining > 0 && remaining < m.config.RenewalThreshold
}

// Renew decodes token and issues a fresh one for the same subject and username.
func (m *Manager) Renew(token string) (string, error) {
	claims, err := m.Decode(token)
	if err != nil {
		return "", err
	}
	return m.Issue(claims.Subject, claims.Username)
}

func (m *Manager) parse(token string, validateClaims bool) (*Claims, error) {
	if token == "" {
		return nil, ErrMalformed
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{m.getMethod().Alg()}),
		jwt.WithTimeFunc(m.now),
	}
	if validateClaims {
		options = append(options, jwt.WithExpirationRequired())
		if m.config.Issuer != "" {
			options = append(options, jwt.WithIssuer(m.config.Issuer))
		}
	} else {
		options = append(options, jwt.WithoutClaimsValidation())
	}

	claims := &Claims{}
	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.getMethod().Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.getVerifyKey()
	})
	if err != nil {
		return nil, classify(err)
	}
	if validateClaims && !parsed.Valid {
		return nil, ErrMalformed
	}
	if claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing subject or expiry", ErrMalformed)
	}

	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpired, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}

func (m *Manager) getMethod() jwt.SigningMethod {
	switch m.config.SigningMethod {
	case MethodHS256:
		return jwt.SigningMethodHS256
	default:
		return jwt.SigningMethodEdDSA
	}
}

func (m *Manager) getSignKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		if len(m.config.PrivateKey) == 0 {
			return nil, errors.New("ed25519 private key not configured; manager is verify-only")
		}
		return parseEdPrivateKey(m.config.PrivateKey)
	}
}

func (m *Manager) getVerifyKey() (interface{}, error) {
	switch m.config.SigningMethod {
	case MethodHS256:
		return m.config.PrivateKey, nil
	default:
		return parseEdPublicKey(m.config.PublicKey)
	}
}

func parseEdPrivateKey(key []byte) (ed25519.PrivateKey, error) {
	if len(key) == ed25519.PrivateKeySize {
		return ed25519.PrivateKey(key), nil
	}
	parsed, err := jwt.ParseEdPrivateKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 private key")
	}
	edKey, ok := parsed.(ed25519.PrivateKey)
	if !ok {
		return nil, errors.New("invalid ed25519 private key type")
	}
	return edKey, nil
}

func parseEdPublicKey(key []byte) (ed25519.PublicKey, error) {
	if len(key) == ed25519.PublicKeySize {
		return ed25519.PublicKey(key), nil
	}
	parsed, err := jwt.ParseEdPublicKeyFromPEM(key)
	if err != nil {
		return nil, errors.New("invalid ed25519 public key")
	}
	edKey, ok := parsed.(ed25519.PublicKey)
	if !ok {
		return nil, errors.New("invalid ed25519 public key type")
	}
	return edKey, nil
}
