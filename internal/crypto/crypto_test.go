package crypto

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// Blob written by the original application for "s3cr3t" under the
// passphrase "hunter2" with IV 00..0f.
const legacyBlob = "AAECAwQFBgcICQoLDA0ODxGzuDdrJOZkHN10Np2pfmTpLouMFG0PDhQJoNHnFWOV"

func TestDecryptsExistingLegacyBlob(t *testing.T) {
	t.Parallel()

	c := NewCipher([]byte("hunter2"))
	got, err := c.Decrypt(legacyBlob)
	require.NoError(t, err)
	require.Equal(t, "s3cr3t", got)
}

func TestNewCipherKeyDerivation(t *testing.T) {
	t.Parallel()

	short := NewCipher([]byte("abc"))
	want := append([]byte("abc"), bytes.Repeat([]byte{29}, 29)...)
	require.Equal(t, want, short.key)

	empty := NewCipher(nil)
	require.Equal(t, bytes.Repeat([]byte{32}, 32), empty.key)

	long := []byte(strings.Repeat("0123456789", 5))
	require.Equal(t, long[:KeyLen], NewCipher(long).key)

	exact := []byte(strings.Repeat("k", KeyLen))
	require.Equal(t, exact, NewCipher(exact).key)
}

func TestNewCipherDoesNotAliasPassphrase(t *testing.T) {
	t.Parallel()

	pass := []byte(strings.Repeat("p", 40))
	c := NewCipher(pass)
	pass[0] = 'x'
	require.Equal(t, byte('p'), c.key[0])
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	inputs := []string{
		"s3cr3t",
		"a",
		strings.Repeat("x", 31),
		strings.Repeat("x", 32),
		strings.Repeat("x", 33),
		strings.Repeat("long password ", 20),
		"pässwörd ✓ 密码",
	}

	for _, format := range []Format{FormatLegacy, FormatAuthenticated} {
		c := NewCipher([]byte("master"), WithFormat(format))
		for _, in := range inputs {
			blob, err := c.Encrypt(in)
			require.NoError(t, err)

			out, err := c.Decrypt(blob)
			require.NoError(t, err)
			require.Equalf(t, in, out, "format %s", format)
		}
	}
}

func TestLegacyBlobLayout(t *testing.T) {
	t.Parallel()

	c := NewCipher([]byte("master"))
	for _, n := range []int{0, 1, 31, 32, 33} {
		blob, err := c.Encrypt(strings.Repeat("z", n))
		require.NoError(t, err)

		raw, err := base64.StdEncoding.DecodeString(blob)
		require.NoError(t, err)

		// IV plus plaintext padded up to the next 32-byte boundary, a full
		// pad block when already aligned.
		padded := (n/padBlockSize + 1) * padBlockSize
		require.Len(t, raw, 16+padded)
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	t.Parallel()

	for _, format := range []Format{FormatLegacy, FormatAuthenticated} {
		c := NewCipher([]byte("master"), WithFormat(format))
		a, err := c.Encrypt("same")
		require.NoError(t, err)
		b, err := c.Encrypt("same")
		require.NoError(t, err)
		require.NotEqual(t, a, b)
	}
}

func TestWrongKeyNeverYieldsPlaintext(t *testing.T) {
	t.Parallel()

	right := NewCipher([]byte("right key"))
	wrong := NewCipher([]byte("wrong key"))

	for i := 0; i < 50; i++ {
		blob, err := right.Encrypt("s3cr3t")
		require.NoError(t, err)

		got, err := wrong.Decrypt(blob)
		if err == nil {
			require.NotEqual(t, "s3cr3t", got)
		} else {
			require.ErrorIs(t, err, ErrDecryption)
		}
	}
}

func TestAuthenticatedWrongKeyAlwaysFails(t *testing.T) {
	t.Parallel()

	right := NewCipher([]byte("right key"), WithFormat(FormatAuthenticated))
	wrong := NewCipher([]byte("wrong key"), WithFormat(FormatAuthenticated))

	blob, err := right.Encrypt("s3cr3t")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(blob, "v1$"))

	_, err = wrong.Decrypt(blob)
	require.ErrorIs(t, err, ErrDecryption)
}

func TestDecryptAcceptsEveryFormat(t *testing.T) {
	t.Parallel()

	legacy := NewCipher([]byte("master"))
	authenticated := NewCipher([]byte("master"), WithFormat(FormatAuthenticated))

	blob, err := authenticated.Encrypt("from gcm")
	require.NoError(t, err)
	got, err := legacy.Decrypt(blob)
	require.NoError(t, err)
	require.Equal(t, "from gcm", got)

	blob, err = legacy.Encrypt("from cbc")
	require.NoError(t, err)
	got, err = authenticated.Decrypt(blob)
	require.NoError(t, err)
	require.Equal(t, "from cbc", got)
}

func TestDecryptRejectsMalformedBlobs(t *testing.T) {
	t.Parallel()

	c := NewCipher([]byte("master"))
	valid, err := c.Encrypt("value")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(valid)
	require.NoError(t, err)

	cases := map[string]string{
		"not base64":     "%%%not-base64%%%",
		"empty":          "",
		"iv only":        base64.StdEncoding.EncodeToString(raw[:16]),
		"partial block":  base64.StdEncoding.EncodeToString(raw[:len(raw)-3]),
		"unknown tag":    "v9$" + valid,
		"truncated gcm":  "v1$AAAA",
		"gcm bad base64": "v1$***",
		"tampered gcm":   tamper(t, NewCipher([]byte("master"), WithFormat(FormatAuthenticated))),
	}

	for name, blob := range cases {
		_, err := c.Decrypt(blob)
		require.ErrorIsf(t, err, ErrDecryption, "case %s", name)
	}
}

func TestUnknownTagIsUnsupportedFormat(t *testing.T) {
	t.Parallel()

	_, err := NewCipher([]byte("master")).Decrypt("v9$AAAA")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDestroyedCipherFails(t *testing.T) {
	t.Parallel()

	c := NewCipher([]byte("master"))
	blob, err := c.Encrypt("value")
	require.NoError(t, err)

	c.Destroy()
	c.Destroy()

	_, err = c.Encrypt("value")
	require.ErrorIs(t, err, ErrCipherDestroyed)
	_, err = c.Decrypt(blob)
	require.ErrorIs(t, err, ErrCipherDestroyed)
}

func TestParseFormat(t *testing.T) {
	t.Parallel()

	for _, f := range []Format{FormatLegacy, FormatAuthenticated} {
		got, err := ParseFormat(f.String())
		require.NoError(t, err)
		require.Equal(t, f, got)
	}

	got, err := ParseFormat("")
	require.NoError(t, err)
	require.Equal(t, FormatLegacy, got)

	_, err = ParseFormat("rot13")
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func tamper(t *testing.T, c *Cipher) string {
	t.Helper()

	blob, err := c.Encrypt("value")
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(blob, "v1$"))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	return "v1$" + base64.StdEncoding.EncodeToString(raw)
}
