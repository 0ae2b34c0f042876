package crypto

import (
	"fmt"
	"strings"
)

// Format identifies how a blob is laid out.
type Format int

const (
	// FormatLegacy is base64(IV || AES-256-CBC ciphertext) without a tag.
	// It carries no integrity check.
	FormatLegacy Format = iota

	// FormatAuthenticated is "v1$" followed by base64(nonce || AES-256-GCM
	// ciphertext and tag).
	FormatAuthenticated
)

// tagSeparator never appears in standard base64, so a tagged blob can not be
// mistaken for a legacy one.
const tagSeparator = "$"

const authenticatedTag = "v1"

func (f Format) String() string {
	switch f {
	case FormatLegacy:
		return "legacy"
	case FormatAuthenticated:
		return "authenticated"
	default:
		return fmt.Sprintf("format(%d)", int(f))
	}
}

// ParseFormat is the inverse of Format.String.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "legacy":
		return FormatLegacy, nil
	case "authenticated":
		return FormatAuthenticated, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
}

type blobCodec struct {
	format  Format
	tag     string
	encrypt func(key []byte, plaintext string) (string, error)
	decrypt func(key []byte, blob string) (string, error)
}

// codecs holds every readable format. The legacy codec has an empty tag.
var codecs = []blobCodec{
	{format: FormatLegacy, tag: "", encrypt: encryptCBC, decrypt: decryptCBC},
	{format: FormatAuthenticated, tag: authenticatedTag, encrypt: encryptGCM, decrypt: decryptGCM},
}

func lookupFormat(f Format) (blobCodec, error) {
	for _, c := range codecs {
		if c.format == f {
			return c, nil
		}
	}
	return blobCodec{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, f)
}

func detectFormat(blob string) (blobCodec, error) {
	tag, _, tagged := strings.Cut(blob, tagSeparator)
	if !tagged {
		return codecs[0], nil
	}
	for _, c := range codecs {
		if c.tag != "" && c.tag == tag {
			return c, nil
		}
	}
	return blobCodec{}, fmt.Errorf("%w: %w: tag %q", ErrDecryption, ErrUnsupportedFormat, tag)
}

func withTag(tag, body string) string {
	if tag == "" {
		return body
	}
	return tag + tagSeparator + body
}

func stripTag(tag, blob string) string {
	if tag == "" {
		return blob
	}
	return strings.TrimPrefix(blob, tag+tagSeparator)
}
