package crypto

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPad(t *testing.T) {
	t.Parallel()

	require.Equal(t, append([]byte("abc"), bytes.Repeat([]byte{29}, 29)...), pad([]byte("abc"), 32))
	require.Equal(t, bytes.Repeat([]byte{32}, 32), pad(nil, 32))

	aligned := bytes.Repeat([]byte("a"), 32)
	got := pad(aligned, 32)
	require.Len(t, got, 64)
	require.Equal(t, bytes.Repeat([]byte{32}, 32), got[32:])
}

func TestUnpad(t *testing.T) {
	t.Parallel()

	for n := 0; n <= 64; n++ {
		in := bytes.Repeat([]byte("q"), n)
		out, err := unpad(pad(in, 32), 32)
		require.NoError(t, err)
		require.Equal(t, in, out)
	}
}

func TestUnpadRejectsInvalidPadding(t *testing.T) {
	t.Parallel()

	cases := map[string][]byte{
		"empty":        {},
		"zero count":   append(bytes.Repeat([]byte("a"), 31), 0),
		"too large":    append(bytes.Repeat([]byte("a"), 31), 33),
		"beyond input": {'a', 5},
		"mismatch":     append(bytes.Repeat([]byte("a"), 29), 1, 2, 3),
	}
	for name, in := range cases {
		_, err := unpad(in, 32)
		require.ErrorIsf(t, err, ErrDecryption, "case %s", name)
	}
}
