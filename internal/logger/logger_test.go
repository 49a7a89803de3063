package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/kidandcat/sprintboard/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductionLogsJSON(t *testing.T) {
	var buf bytes.Buffer
	cfg := config.Default()
	cfg.Env = "prod"

	l := NewWithWriter(cfg, &buf)
	l.Info().Str("entity", "task").Msg("updated")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "updated", line["message"])
	assert.Equal(t, "task", line["entity"])
	assert.Contains(t, line, "time")
}
