package obs

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerJSON(t *testing.T) {
	buf := &bytes.Buffer{}
	InitLogger(WithOutput(buf))
	Logger.Info("machine_created", MachineID("m-1"), Operation("create"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "machine_created", entry["msg"])
	assert.Equal(t, "m-1", entry["machine_id"])
	assert.Equal(t, "create", entry["operation"])
}

func TestInitLoggerTextAndLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	InitLogger(WithOutput(buf), WithFormat(FormatText), WithLevel(slog.LevelWarn))
	Logger.Info("hidden")
	Logger.Warn("shown", Error(errors.New("boom")))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "error=boom")
	assert.False(t, strings.HasPrefix(out, "{"))
}

func TestEmptyAttrs(t *testing.T) {
	assert.Equal(t, slog.Attr{}, RequestID(""))
	assert.Equal(t, slog.Attr{}, Error(nil))
	assert.Equal(t, "request_id", RequestID("r").Key)
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"":      slog.LevelInfo,
		"debug": slog.LevelDebug,
		"INFO":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
	}
	for in, want := range cases {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := ParseLevel("loud")
	assert.Error(t, err)
}
