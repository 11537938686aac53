package logger

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("level filtering", func(t *testing.T) {
		var buf bytes.Buffer
		logger, closer, err := New(Config{Level: "info", Writer: &buf})
		require.NoError(t, err)
		defer closer.Close()

		logger.Debug().Msg("hidden")
		logger.Info().Str("tool", "shell").Msg("visible")

		assert.NotContains(t, buf.String(), "hidden")
		assert.Contains(t, buf.String(), `"tool":"shell"`)
		assert.Contains(t, buf.String(), `"message":"visible"`)
	})

	t.Run("invalid level falls back to warn", func(t *testing.T) {
		logger, _, err := New(Config{Level: "loud", Writer: &bytes.Buffer{}})
		require.NoError(t, err)
		assert.Equal(t, zerolog.WarnLevel, logger.GetLevel())
	})

	t.Run("pretty", func(t *testing.T) {
		var buf bytes.Buffer
		logger, _, err := New(Config{Level: "info", Pretty: true, Writer: &buf})
		require.NoError(t, err)

		logger.Info().Msg("hello")
		assert.Contains(t, buf.String(), "INF")
		assert.Contains(t, buf.String(), "hello")
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "codison.log")
		logger, closer, err := New(Config{Level: "debug", File: path, Pretty: true})
		require.NoError(t, err)

		logger.Debug().Msg("to file")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"message":"to file"`)
	})
}
