package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestErrorfEmitsMessageAndError tests that Errorf logs the message
// verbatim with the error as a structured field; the message is not a
// printf format string
func TestErrorfEmitsMessageAndError(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	Errorf("metrics server error", errors.New("listen tcp :9090: address already in use"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "metrics server error", entry["message"])
	assert.Equal(t, "listen tcp :9090: address already in use", entry["error"])
	assert.NotContains(t, entry["message"], "%")
}

// TestWithComponentBinds tests that child loggers carry their component
// field once bound to a variable
func TestWithComponentBinds(t *testing.T) {
	var buf bytes.Buffer
	Init(Config{Level: DebugLevel, JSONOutput: true, Output: &buf})

	logger := WithComponent("registry")
	logger.Info().Msg("module created")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "registry", entry["component"])
	assert.Equal(t, "module created", entry["message"])
}
