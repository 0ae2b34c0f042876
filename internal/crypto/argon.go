package crypto

import (
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// SaltLen is the length of salts returned by GenerateSalt.
const SaltLen = 16

// ErrInvalidKDFParams is returned by NewKDFCipher for unusable parameters.
var ErrInvalidKDFParams = errors.New("invalid kdf parameters")

// KDFParams are the Argon2id cost parameters.
type KDFParams struct {
	Time    uint32 // Number of iterations
	Memory  uint32 // Memory in KiB
	Threads uint8
}

// DefaultKDFParams returns the parameters used for new stores.
func DefaultKDFParams() KDFParams {
	return KDFParams{
		Time:    3,
		Memory:  64 * 1024,
		Threads: 4,
	}
}

func (p KDFParams) validate() error {
	switch {
	case p.Time == 0:
		return fmt.Errorf("%w: time must be > 0", ErrInvalidKDFParams)
	case p.Threads == 0:
		return fmt.Errorf("%w: threads must be > 0", ErrInvalidKDFParams)
	case p.Memory < 8*uint32(p.Threads):
		return fmt.Errorf("%w: memory must be >= 8 KiB per thread", ErrInvalidKDFParams)
	default:
		return nil
	}
}

// NewKDFCipher derives the key from passphrase and salt with Argon2id.
// Ciphertext written under it is not readable with NewCipher and vice versa.
func NewKDFCipher(passphrase, salt []byte, params KDFParams, opts ...Option) (*Cipher, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	if len(salt) < SaltLen {
		return nil, fmt.Errorf("%w: salt must be at least %d bytes", ErrInvalidKDFParams, SaltLen)
	}

	key := argon2.IDKey(passphrase, salt, params.Time, params.Memory, params.Threads, KeyLen)
	return newCipher(key, opts...), nil
}

// GenerateSalt returns SaltLen random bytes.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}
