package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, slog.LevelError, levelFromString("ERROR"))
	assert.Equal(t, slog.LevelWarn, levelFromString(" warning "))
	assert.Equal(t, slog.LevelInfo, levelFromString("info"))
	assert.Equal(t, slog.LevelDebug, levelFromString(""))
}

func TestFormats(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	NewWithWriter(&buf, "info", FormatJSON).Info("session finished", "new", 2)
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "session finished", entry["msg"])
	assert.EqualValues(t, 2, entry["new"])

	buf.Reset()
	NewWithWriter(&buf, "warn", FormatText).Info("hidden")
	assert.Empty(t, buf.String())

	buf.Reset()
	NewWithWriter(&buf, "debug", FormatConsole).Debug("page parsed", "tenders", 12)
	assert.Contains(t, buf.String(), "page parsed")
	assert.Contains(t, buf.String(), "tenders")
}
