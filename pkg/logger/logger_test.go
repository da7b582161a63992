package logger

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLogger() (*SlogLogger, *bytes.Buffer) {
	var buf bytes.Buffer
	return &SlogLogger{logger: slog.New(slog.NewJSONHandler(&buf, nil))}, &buf
}

func TestComponent(t *testing.T) {
	t.Run("Success - Entries carry the component name", func(t *testing.T) {
		base, buf := captureLogger()

		Component(base, "assignment").Info("lead routed", "lead_id", 100)

		out := buf.String()
		assert.Contains(t, out, `"component":"assignment"`)
		assert.Contains(t, out, `"lead_id":100`)
	})

	t.Run("Success - Base logger is not mutated", func(t *testing.T) {
		base, buf := captureLogger()

		Component(base, "watchdog")
		base.Info("sweep complete")

		assert.NotContains(t, buf.String(), "watchdog")
	})
}

func TestNewLevels(t *testing.T) {
	t.Run("Success - Unknown level defaults to info", func(t *testing.T) {
		log := New("verbose")
		require.NotNil(t, log)
	})
}
