package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const defaultBaseURL = "http://repicea.dynu.net"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, defaultBaseURL, cfg.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.Timeout)
	assert.Equal(t, 2, cfg.Workers)
	assert.Equal(t, 20, cfg.ParallelThreshold)
	assert.Equal(t, 10, cfg.GenerationBatch)
	assert.Equal(t, 50, cfg.NormalsBatch)
	assert.Equal(t, 200, cfg.ReleaseBatch)
	assert.Equal(t, 1000, cfg.MaxLocationsFallback)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "biosim-results", cfg.KafkaSinkTopic)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("BIOSIM_BASE_URL", "http://localhost:8081/")
	t.Setenv("BIOSIM_TIMEOUT", "30s")
	t.Setenv("BIOSIM_WORKERS", "4")
	t.Setenv("BIOSIM_PARALLEL_THRESHOLD", "40")
	t.Setenv("BIOSIM_BATCH_GENERATION", "5")
	t.Setenv("BIOSIM_BATCH_NORMALS", "25")
	t.Setenv("BIOSIM_BATCH_RELEASE", "100")
	t.Setenv("BIOSIM_MAX_LOCATIONS_FALLBACK", "500")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8081", cfg.BaseURL, "trailing slash is trimmed")
	assert.Equal(t, 30*time.Second, cfg.Timeout)
	assert.Equal(t, 4, cfg.Workers)
	assert.Equal(t, 40, cfg.ParallelThreshold)
	assert.Equal(t, 5, cfg.GenerationBatch)
	assert.Equal(t, 25, cfg.NormalsBatch)
	assert.Equal(t, 100, cfg.ReleaseBatch)
	assert.Equal(t, 500, cfg.MaxLocationsFallback)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidTimeout(t *testing.T) {
	for _, v := range []string{"bad", "0s", "-1m"} {
		t.Setenv("BIOSIM_TIMEOUT", v)
		_, err := Load()
		require.Error(t, err, v)
		assert.Contains(t, err.Error(), "BIOSIM_TIMEOUT")
	}
}

func TestLoad_InvalidIntegers(t *testing.T) {
	for _, key := range []string{
		"BIOSIM_WORKERS",
		"BIOSIM_PARALLEL_THRESHOLD",
		"BIOSIM_BATCH_GENERATION",
		"BIOSIM_BATCH_NORMALS",
		"BIOSIM_BATCH_RELEASE",
		"BIOSIM_MAX_LOCATIONS_FALLBACK",
	} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "0")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)

			t.Setenv(key, "many")
			_, err = Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_InvalidBaseURL(t *testing.T) {
	t.Setenv("BIOSIM_BASE_URL", "repicea.dynu.net")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BIOSIM_BASE_URL")
}
