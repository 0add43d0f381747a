package password

import (
	"errors"
	"strings"
)

var (
	// ErrEmptyPassword is returned when asked to hash an empty password.
	ErrEmptyPassword = errors.New("password is empty")
	// ErrUnsupportedHash is returned for encoded hashes no configured algorithm recognises.
	ErrUnsupportedHash = errors.New("unsupported password hash")
	// ErrMalformedHash is returned when a recognised hash cannot be decoded.
	ErrMalformedHash = errors.New("malformed password hash")
)

// Hasher turns plaintext passwords into encoded hashes and checks them back.
type Hasher interface {
	Hash(password string) (string, error)
	Verify(password, encodedHash string) (bool, error)
	NeedsUpgrade(encodedHash string) (bool, error)
}

// Migrating hashes new passwords with Primary while still verifying hashes
// written by Legacy. Hashes from Legacy always report NeedsUpgrade so callers
// can rewrite them after the next successful login.
type Migrating struct {
	Primary Hasher
	Legacy  Hasher

	isPrimary func(string) bool
}

// NewMigrating returns an argon2id-primary hasher that accepts bcrypt hashes.
func NewMigrating(primary *Argon2, legacy *Bcrypt) *Migrating {
	m := &Migrating{Primary: primary, isPrimary: IsArgon2Hash}
	if legacy != nil {
		m.Legacy = legacy
	}
	return m
}

func (m *Migrating) Hash(password string) (string, error) {
	return m.Primary.Hash(password)
}

func (m *Migrating) Verify(password, encodedHash string) (bool, error) {
	if m.isPrimary(encodedHash) {
		return m.Primary.Verify(password, encodedHash)
	}
	if m.Legacy == nil {
		return false, ErrUnsupportedHash
	}
	return m.Legacy.Verify(password, encodedHash)
}

func (m *Migrating) NeedsUpgrade(encodedHash string) (bool, error) {
	if m.isPrimary(encodedHash) {
		return m.Primary.NeedsUpgrade(encodedHash)
	}
	if m.Legacy == nil || strings.TrimSpace(encodedHash) == "" {
		return false, ErrUnsupportedHash
	}
	return true, nil
}
