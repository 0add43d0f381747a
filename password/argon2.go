package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

const argon2Prefix = "$argon2id$"

// Floors below which a configuration or a stored hash is refused.
const (
	floorMemoryKB uint32 = 8 * 1024
	floorSaltLen  uint32 = 16
	floorKeyLen   uint32 = 16
)

// phcEncoding is the unpadded base64 alphabet used by the PHC string format.
var phcEncoding = base64.RawStdEncoding

// Argon2Config holds the argon2id cost parameters.
type Argon2Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2Config returns parameters suitable for interactive logins.
func DefaultArgon2Config() Argon2Config {
	return Argon2Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func (c Argon2Config) validate() error {
	switch {
	case c.Memory < floorMemoryKB:
		return fmt.Errorf("argon2 memory %d KiB below floor %d", c.Memory, floorMemoryKB)
	case c.Time == 0:
		return errors.New("argon2 time cost must be positive")
	case c.Parallelism == 0:
		return errors.New("argon2 parallelism must be positive")
	case c.SaltLength < floorSaltLen:
		return fmt.Errorf("argon2 salt length %d below floor %d", c.SaltLength, floorSaltLen)
	case c.KeyLength < floorKeyLen:
		return fmt.Errorf("argon2 key length %d below floor %d", c.KeyLength, floorKeyLen)
	}
	return nil
}

// Argon2 hashes passwords with argon2id and stores them as PHC strings:
//
//	$argon2id$v=19$m=<KiB>,t=<passes>,p=<lanes>$<salt>$<key>
type Argon2 struct {
	cfg Argon2Config
}

func NewArgon2(cfg Argon2Config) (*Argon2, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &Argon2{cfg: cfg}, nil
}

// Hash derives a fresh salted key. Password bytes are used as given.
func (a *Argon2) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, a.cfg.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("read salt: %w", err)
	}

	stored := argon2Hash{
		Argon2Config: a.cfg,
		salt:         salt,
		key:          argon2.IDKey([]byte(password), salt, a.cfg.Time, a.cfg.Memory, a.cfg.Parallelism, a.cfg.KeyLength),
	}
	return stored.String(), nil
}

// Verify recomputes the key with the parameters stored in encoded and
// compares in constant time.
func (a *Argon2) Verify(password, encoded string) (bool, error) {
	stored, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}
	got := argon2.IDKey([]byte(password), stored.salt, stored.Time, stored.Memory, stored.Parallelism, stored.KeyLength)
	return subtle.ConstantTimeCompare(got, stored.key) == 1, nil
}

// NeedsUpgrade reports whether encoded was produced with weaker costs, or a
// different key length, than the current configuration.
func (a *Argon2) NeedsUpgrade(encoded string) (bool, error) {
	stored, err := decodeArgon2(encoded)
	if err != nil {
		return false, err
	}
	weaker := stored.Memory < a.cfg.Memory ||
		stored.Time < a.cfg.Time ||
		stored.Parallelism < a.cfg.Parallelism
	return weaker || stored.KeyLength != a.cfg.KeyLength, nil
}

// IsArgon2Hash reports whether encoded looks like an argon2id PHC string.
func IsArgon2Hash(encoded string) bool {
	return strings.HasPrefix(encoded, argon2Prefix)
}

type argon2Hash struct {
	Argon2Config
	salt []byte
	key  []byte
}

func (h argon2Hash) String() string {
	return fmt.Sprintf("%sv=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2Prefix, argon2.Version, h.Memory, h.Time, h.Parallelism,
		phcEncoding.EncodeToString(h.salt), phcEncoding.EncodeToString(h.key))
}

func decodeArgon2(encoded string) (argon2Hash, error) {
	var h argon2Hash
	if !IsArgon2Hash(encoded) {
		if strings.HasPrefix(encoded, "$") {
			return h, ErrUnsupportedHash
		}
		return h, ErrMalformedHash
	}

	fields := strings.Split(strings.TrimPrefix(encoded, argon2Prefix), "$")
	if len(fields) != 4 {
		return h, ErrMalformedHash
	}

	var version int
	if _, err := fmt.Sscanf(fields[0], "v=%d", &version); err != nil {
		return h, ErrMalformedHash
	}
	if version != argon2.Version {
		return h, fmt.Errorf("%w: argon2 version %d", ErrUnsupportedHash, version)
	}

	var parallelism uint32
	if n, err := fmt.Sscanf(fields[1], "m=%d,t=%d,p=%d", &h.Memory, &h.Time, &parallelism); err != nil || n != 3 {
		return h, ErrMalformedHash
	}
	if h.Memory < floorMemoryKB || h.Time == 0 || parallelism == 0 || parallelism > 255 {
		return h, fmt.Errorf("%w: argon2 parameters out of range", ErrMalformedHash)
	}
	h.Parallelism = uint8(parallelism)

	var err error
	if h.salt, err = phcEncoding.DecodeString(fields[2]); err != nil || uint32(len(h.salt)) < floorSaltLen {
		return h, fmt.Errorf("%w: salt", ErrMalformedHash)
	}
	if h.key, err = phcEncoding.DecodeString(fields[3]); err != nil || len(h.key) == 0 {
		return h, fmt.Errorf("%w: key", ErrMalformedHash)
	}
	h.SaltLength = uint32(len(h.salt))
	h.KeyLength = uint32(len(h.key))
	return h, nil
}
