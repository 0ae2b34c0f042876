package logging

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRedactsSensitiveAttributes(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(NewRedactingHandler(slog.NewTextHandler(&buf, nil)))

	log.Info("saved", "id", 7, "password", "s3cr3t", slog.Group("rekey", "Passphrase", "hunter2", "rows", 3))
	log.With("key", "0xdeadbeef").Info("derived")

	out := buf.String()
	require.NotContains(t, out, "s3cr3t")
	require.NotContains(t, out, "hunter2")
	require.NotContains(t, out, "0xdeadbeef")
	require.Contains(t, out, "id=7")
	require.Contains(t, out, "rekey.rows=3")
	require.Equal(t, 3, strings.Count(out, redacted))
}

func TestNewWritesToFallback(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log, closer, err := New(Config{Level: "warn"}, &buf)
	require.NoError(t, err)
	defer closer.Close()

	log.Info("hidden")
	log.Warn("shown", "password", "x")

	out := buf.String()
	require.NotContains(t, out, "hidden")
	require.Contains(t, out, "level=WARN")
	require.Contains(t, out, "password="+redacted)
}

func TestNewWritesToRotatingFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "passvault.log")
	log, closer, err := New(Config{Level: "debug", File: path}, nil)
	require.NoError(t, err)

	log.DebugContext(context.Background(), "to file")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "msg=\"to file\"")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"":        slog.LevelInfo,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err := ParseLevel("loud")
	require.Error(t, err)
	_, _, err = New(Config{Level: "loud"}, nil)
	require.Error(t, err)
}

func TestNewRotatingWriterDefaults(t *testing.T) {
	t.Parallel()

	w, err := NewRotatingWriter(Config{File: filepath.Join(t.TempDir(), "a.log")})
	require.NoError(t, err)
	require.Equal(t, 10, w.MaxSize)
	require.Equal(t, 5, w.MaxBackups)

	_, err = NewRotatingWriter(Config{})
	require.Error(t, err)
}
