package main

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, sync, err := newLogger("json", "info", &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("connection established", "addr", "127.0.0.1:8080")
	sync()

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	require.Equal(t, "info", entry["level"])
	require.Equal(t, "connection established", entry["msg"])
	require.Equal(t, "127.0.0.1:8080", entry["addr"])
	require.Equal(t, "wsstream", entry["app"])
}

func TestNewLoggerText(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := newLogger("text", "warn", &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	require.Zero(t, buf.Len())

	logger.Warn("protocol error", "error", "boom")
	require.Contains(t, buf.String(), "protocol error")
	require.Contains(t, buf.String(), "boom")
}

func TestNewLoggerErrors(t *testing.T) {
	_, _, err := newLogger("xml", "info", &bytes.Buffer{})
	require.Error(t, err)

	_, _, err = newLogger("json", "loud", &bytes.Buffer{})
	require.Error(t, err)

	_, _, err = newLogger("text", "loud", &bytes.Buffer{})
	require.Error(t, err)
}
