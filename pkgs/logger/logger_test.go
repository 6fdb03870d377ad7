package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"":        zerolog.InfoLevel,
		"debug":   zerolog.DebugLevel,
		"INFO":    zerolog.InfoLevel,
		"warn":    zerolog.WarnLevel,
		"warning": zerolog.WarnLevel,
		"error":   zerolog.ErrorLevel,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("loud")
	assert.Error(t, err)
}

func TestInitJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Options{Level: "warn", Format: "json", Output: &buf}))
	t.Cleanup(func() { _ = Init(Options{}) })

	Info().Msg("dropped")
	With("account", "work").Error().Err(errors.New("boom")).Msg("Sync failed")

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 1)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &rec))
	assert.Equal(t, "error", rec["level"])
	assert.Equal(t, "work", rec["account"])
	assert.Equal(t, "boom", rec["error"])
	assert.Equal(t, "Sync failed", rec["message"])
}

func TestInitConsole(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Init(Options{Format: "console", Output: &buf}))
	t.Cleanup(func() { _ = Init(Options{}) })

	Info().Str("folder", "INBOX").Msg("Saving folder")
	assert.Contains(t, buf.String(), "Saving folder")
	assert.Contains(t, buf.String(), "folder=INBOX")
	assert.NotContains(t, buf.String(), "\x1b[", "colors must be off for non-terminal writers")
}

func TestInitRejectsUnknownFormat(t *testing.T) {
	assert.Error(t, Init(Options{Format: "xml"}))
}
