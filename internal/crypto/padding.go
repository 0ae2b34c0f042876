package crypto

import (
	"fmt"
)

// padBlockSize is the padding boundary for plaintexts and short passphrases.
// It is larger than the AES block size; stores written by earlier versions
// rely on it, so it must not change.
const padBlockSize = 32

// pad appends k copies of byte k, where k is the distance to the next
// multiple of size. A full block of padding is added when b is already
// aligned.
func pad(b []byte, size int) []byte {
	k := size - len(b)%size
	out := make([]byte, len(b), len(b)+k)
	copy(out, b)
	for i := 0; i < k; i++ {
		out = append(out, byte(k))
	}
	return out
}

// unpad strips the padding added by pad.
func unpad(b []byte, size int) ([]byte, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("%w: empty plaintext", ErrDecryption)
	}

	k := int(b[len(b)-1])
	if k == 0 || k > size || k > len(b) {
		return nil, fmt.Errorf("%w: invalid padding", ErrDecryption)
	}
	for _, p := range b[len(b)-k:] {
		if int(p) != k {
			return nil, fmt.Errorf("%w: invalid padding", ErrDecryption)
		}
	}
	return b[:len(b)-k], nil
}
