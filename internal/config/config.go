package config

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all client settings, populated from environment variables.
type Config struct {
	BaseURL string
	Timeout time.Duration

	// Worker pool used for large generation requests.
	Workers           int
	ParallelThreshold int

	// Per-request server capacities by batch class.
	GenerationBatch int
	NormalsBatch    int
	ReleaseBatch    int

	// MaxLocationsFallback is the single-request ceiling used when the server cannot
	// report its own.
	MaxLocationsFallback int

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Optional result sink. An empty broker list prints results instead.
	KafkaBrokers   []string
	KafkaSinkTopic string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	timeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("BIOSIM_TIMEOUT", "5m"))
	if err != nil || timeout <= 0 {
		return nil, errors.New("invalid BIOSIM_TIMEOUT")
	}

	cfg := &Config{
		BaseURL:         strings.TrimRight(sharedcfg.EnvOrDefault("BIOSIM_BASE_URL", "http://repicea.dynu.net"), "/"),
		Timeout:         timeout,
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		KafkaSinkTopic:  sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "biosim-results"),
	}

	if brokers := sharedcfg.EnvOrDefault("KAFKA_BROKERS", ""); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	ints := []struct {
		key string
		def int
		dst *int
	}{
		{"BIOSIM_WORKERS", 2, &cfg.Workers},
		{"BIOSIM_PARALLEL_THRESHOLD", 20, &cfg.ParallelThreshold},
		{"BIOSIM_BATCH_GENERATION", 10, &cfg.GenerationBatch},
		{"BIOSIM_BATCH_NORMALS", 50, &cfg.NormalsBatch},
		{"BIOSIM_BATCH_RELEASE", 200, &cfg.ReleaseBatch},
		{"BIOSIM_MAX_LOCATIONS_FALLBACK", 1000, &cfg.MaxLocationsFallback},
	}
	for _, v := range ints {
		n, err := positiveInt(v.key, v.def)
		if err != nil {
			return nil, err
		}
		*v.dst = n
	}

	if u, err := url.Parse(cfg.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid BIOSIM_BASE_URL %q", cfg.BaseURL)
	}
	if len(cfg.KafkaBrokers) > 0 && cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

func positiveInt(key string, def int) (int, error) {
	s := sharedcfg.EnvOrDefault(key, strconv.Itoa(def))
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
