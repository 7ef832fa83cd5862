package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/can1357/retro/internal/config"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	log.Info().Str("document", "ops.yaml").Msg("document processed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, "ops.yaml", entry["document"])
	assert.Equal(t, "document processed", entry["message"])
	assert.Contains(t, entry, "time")
}

func TestNewLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "warn", Format: "json"}, &buf)

	log.Info().Msg("hidden")
	assert.Zero(t, buf.Len())

	log.Warn().Msg("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "loud", Format: "json"}, &buf)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())

	log = New(config.LoggingConfig{Format: "json"}, &buf)
	assert.Equal(t, zerolog.InfoLevel, log.GetLevel())
}

func TestNewConsole(t *testing.T) {
	var buf bytes.Buffer
	log := New(config.LoggingConfig{Level: "debug", Format: "console"}, &buf)

	log.Debug().Str("namespace", "retro::ir").Msg("document processed")
	out := buf.String()
	assert.Contains(t, out, "document processed")
	assert.Contains(t, out, "namespace=")
	assert.False(t, json.Valid(buf.Bytes()))
}
