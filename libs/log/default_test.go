package log_test

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecsync/ecsync/libs/log"
)

func TestNewLoggerValidation(t *testing.T) {
	var buf bytes.Buffer

	_, err := log.NewLogger(&buf, log.LogFormatJSON, "invalid-level")
	assert.Error(t, err)

	_, err = log.NewLogger(&buf, "invalid-format", log.LogLevelInfo)
	assert.Error(t, err)

	_, err = log.NewLogger(&buf, log.LogFormatPlain, log.LogLevelInfo)
	assert.NoError(t, err)
}

func TestLoggerJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger, err := log.NewLogger(&buf, log.LogFormatJSON, log.LogLevelDebug)
	require.NoError(t, err)

	logger.Info("block stored", "block", 100)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, "block stored", entry["message"])
	assert.EqualValues(t, 100, entry["block"])
	assert.EqualValues(t, "info", entry["level"])
}

func TestLoggerLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger, err := log.NewLogger(&buf, log.LogFormatJSON, log.LogLevelError)
	require.NoError(t, err)

	logger.Debug("not this")
	logger.Info("nor this")
	assert.Zero(t, buf.Len())

	logger.Error("this one")
	assert.Contains(t, buf.String(), "this one")
}

func TestLoggerWith(t *testing.T) {
	var buf bytes.Buffer
	logger, err := log.NewLogger(&buf, log.LogFormatJSON, log.LogLevelInfo)
	require.NoError(t, err)

	logger.With("module", "chainsync").Info("tick")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, "chainsync", entry["module"])
}

func TestLoggerOddKeyVals(t *testing.T) {
	var buf bytes.Buffer
	logger, err := log.NewLogger(&buf, log.LogFormatJSON, log.LogLevelInfo)
	require.NoError(t, err)

	// A dangling key must not panic; the fields are dropped.
	logger.Info("lonely", "key")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.EqualValues(t, "lonely", entry["message"])
	assert.NotContains(t, entry, "key")
}

func TestNopLogger(t *testing.T) {
	logger := log.NewNopLogger()
	logger.Debug("a")
	logger.Info("b", "k", "v")
	logger.Error("c")
	logger.With("k", "v").Info("d")
}
