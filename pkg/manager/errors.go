package manager

import (
	"errors"
	"fmt"

	"github.com/loganmanery/passvault/internal/crypto"
	"github.com/loganmanery/passvault/internal/storage"
)

var (
	// ErrValidation is returned by Save for records that may not be stored.
	// Nothing is written when it is returned.
	ErrValidation = errors.New("invalid account")

	// ErrStorage wraps failures of the underlying database.
	ErrStorage = errors.New("storage failure")

	// ErrNotFound is returned by Load for an unknown id.
	ErrNotFound = errors.New("account not found")

	// ErrDecryption is returned when a stored password can not be decrypted
	// with the active cipher, usually because the key is wrong.
	ErrDecryption = crypto.ErrDecryption

	// ErrEncryption is returned when the active cipher fails to encrypt.
	ErrEncryption = errors.New("encryption failed")

	// ErrClosed is returned by every operation after Close.
	ErrClosed = errors.New("account manager closed")
)

// storageError maps a storage layer error onto the manager's error kinds.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, ErrDecryption), errors.Is(err, ErrEncryption), errors.Is(err, ErrValidation):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
	}
}
