package logger_test

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postwave/postwave/pkg/logger"
)

func TestNew(t *testing.T) {
	t.Parallel()

	t.Run("json output with service attr", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New("scheduler", logger.WithOutput(&buf))
		log.Info("started")

		var record map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
		assert.Equal(t, "scheduler", record["service"])
		assert.Equal(t, "started", record["msg"])
	})

	t.Run("text format", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New("scheduler",
			logger.WithOutput(&buf),
			logger.WithFormat(logger.FormatText),
		)
		log.Info("started")

		assert.True(t, strings.Contains(buf.String(), "msg=started"))
	})

	t.Run("level filtering", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		log := logger.New("scheduler",
			logger.WithOutput(&buf),
			logger.WithLevel(slog.LevelWarn),
		)
		log.Info("dropped")
		log.Warn("kept")

		assert.NotContains(t, buf.String(), "dropped")
		assert.Contains(t, buf.String(), "kept")
	})

	t.Run("invalid format panics", func(t *testing.T) {
		t.Parallel()

		assert.Panics(t, func() {
			logger.New("scheduler", logger.WithFormat("xml"))
		})
	})
}
