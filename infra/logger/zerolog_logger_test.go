package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reset(t *testing.T) {
	t.Cleanup(func() {
		SetOutput(os.Stdout)
		_ = Configure("", "")
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	})
}

func TestZerologLoggerMethods(t *testing.T) {
	reset(t)
	t.Setenv("APP_ENV", "dev")
	var buf bytes.Buffer
	SetOutput(&buf)
	l := NewZerologLogger("test")
	require.NotNil(t, l)
	l.Debugf("debug %d", 1)
	l.Debugw("debug", map[string]any{"k": 1})
	l.Infof("info %s", "test")
	l.Warnf("warn")
	l.Errorf("error")
	assert.Contains(t, buf.String(), "info test")
}

func TestZerologLoggerJSONFields(t *testing.T) {
	reset(t)
	var buf bytes.Buffer
	SetOutput(&buf)
	require.NoError(t, Configure("info", "json"))
	l := New("optimizer")
	l.Debugf("hidden")
	l.Infof("solved %s", "r1")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var rec map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &rec))
	assert.Equal(t, "optimizer", rec["component"])
	assert.Equal(t, "info", rec["level"])
	assert.Equal(t, "solved r1", rec["message"])
}

func TestConfigureRejectsUnknownValues(t *testing.T) {
	reset(t)
	assert.Error(t, Configure("loud", ""))
	assert.Error(t, Configure("", "xml"))
}
