package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")

	logger.Info("dropped")
	logger.Warn("release failed", "handles", 3)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "release failed", entry["msg"])
	assert.Equal(t, float64(3), entry["handles"])
}

func TestNewLogger_Text(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, "DEBUG", "text").Debug("chunk", "size", 10)
	assert.Contains(t, buf.String(), "msg=chunk size=10")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestMetricsForTesting(t *testing.T) {
	a, b := NewMetricsForTesting(), NewMetricsForTesting()
	a.Requests.WithLabelValues("BioSimNormals", "success").Inc()
	a.HandleCache.WithLabelValues("hit").Add(2)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.Requests.WithLabelValues("BioSimNormals", "success")))
	assert.Equal(t, 2.0, testutil.ToFloat64(a.HandleCache.WithLabelValues("hit")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.HandleCache.WithLabelValues("hit")))
}
