package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupJSON(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "debug", "json")
	t.Cleanup(func() { Setup(os.Stdout, "info", "console") })

	Infof("found %d hosts", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &line))
	assert.Equal(t, "info", line["level"])
	assert.Equal(t, "found 3 hosts", line["message"])
	assert.Equal(t, "homeports", line["app"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "warn", "json")
	t.Cleanup(func() { Setup(os.Stdout, "info", "console") })

	Debugf("hidden")
	Infof("hidden")
	assert.Zero(t, buf.Len())

	Errorf("shown")
	assert.Contains(t, buf.String(), "shown")
}

func TestUnknownLevelFallsBackToInfo(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "chatty", "json")
	t.Cleanup(func() { Setup(os.Stdout, "info", "console") })

	Debugf("hidden")
	assert.Zero(t, buf.Len())
	Infof("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	Setup(&buf, "info", "json")
	t.Cleanup(func() { Setup(os.Stdout, "info", "console") })

	l := Component("discovery")
	l.Info().Msg("sweep")
	assert.Contains(t, buf.String(), `"component":"discovery"`)
}
