// Package crypto implements the password field cipher: a 32-byte AES key
// derived from the master passphrase and the blob formats used to store
// encrypted passwords as text.
package crypto

import (
	"errors"
	"sync"

	"github.com/awnumar/memguard"
)

// KeyLen is the AES-256 key length in bytes.
const KeyLen = 32

var (
	// ErrDecryption is returned for any blob that cannot be turned back into
	// a UTF-8 plaintext. It usually means the blob was written under a
	// different key.
	ErrDecryption = errors.New("decryption failed")

	// ErrUnsupportedFormat is returned for blobs carrying an unknown format tag.
	ErrUnsupportedFormat = errors.New("unsupported blob format")

	// ErrCipherDestroyed is returned by a cipher after Destroy.
	ErrCipherDestroyed = errors.New("cipher destroyed")
)

// Cipher encrypts and decrypts single password strings under a fixed key.
// It is safe for concurrent use.
type Cipher struct {
	mu     sync.RWMutex
	key    []byte
	format Format
}

// Option configures a Cipher.
type Option func(*Cipher)

// WithFormat selects the blob format written by Encrypt. Decrypt accepts
// every known format regardless of this setting.
func WithFormat(f Format) Option {
	return func(c *Cipher) {
		c.format = f
	}
}

// NewCipher builds a cipher whose key is the passphrase truncated or padded
// to KeyLen bytes.
//
// This is not a key derivation function: short or low entropy passphrases
// give weak keys. It is kept because existing stores were written with keys
// built this way. New stores should prefer NewKDFCipher.
func NewCipher(passphrase []byte, opts ...Option) *Cipher {
	var key []byte
	if len(passphrase) >= KeyLen {
		key = make([]byte, KeyLen)
		copy(key, passphrase[:KeyLen])
	} else {
		key = pad(passphrase, KeyLen)
	}
	return newCipher(key, opts...)
}

func newCipher(key []byte, opts ...Option) *Cipher {
	c := &Cipher{key: key, format: FormatLegacy}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Format reports the blob format written by Encrypt.
func (c *Cipher) Format() Format {
	return c.format
}

// Encrypt returns the text blob for plaintext. Every call draws a fresh IV,
// so equal plaintexts never produce equal blobs.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.key == nil {
		return "", ErrCipherDestroyed
	}

	codec, err := lookupFormat(c.format)
	if err != nil {
		return "", err
	}
	return codec.encrypt(c.key, plaintext)
}

// Decrypt reverses Encrypt for blobs of any known format.
func (c *Cipher) Decrypt(blob string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.key == nil {
		return "", ErrCipherDestroyed
	}

	codec, err := detectFormat(blob)
	if err != nil {
		return "", err
	}
	return codec.decrypt(c.key, blob)
}

// Destroy wipes the key. The cipher is unusable afterwards.
func (c *Cipher) Destroy() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.key != nil {
		memguard.WipeBytes(c.key)
		c.key = nil
	}
}
