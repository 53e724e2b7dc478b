package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_LevelAndFile(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var console bytes.Buffer
	file := filepath.Join(t.TempDir(), "moonz.log")
	closer := Setup(Options{Level: "WARN", File: file, Console: &console})

	log.Info().Msg("hidden")
	log.Warn().Str("action", "tweet").Msg("shown")
	require.NoError(t, closer.Close())

	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")

	raw, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"action":"tweet"`)
}

func TestSetup_UnknownLevelFallsBack(t *testing.T) {
	defer zerolog.SetGlobalLevel(zerolog.InfoLevel)

	var console bytes.Buffer
	Setup(Options{Level: "chatty", Console: &console})

	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())
	assert.Contains(t, console.String(), "unknown log level")
}
