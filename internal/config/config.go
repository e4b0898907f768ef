package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/domicilios/geocoding-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Provider credentials. Both are optional at load time; the adapter for
	// a provider refuses to run without its own credential.
	NominatimEmail   string
	NominatimReferer string
	GoogleAPIKey     string

	// ForcedProvider pins every request to one provider, overriding
	// credential-based detection. Empty means auto-detect per request.
	ForcedProvider domain.Provider

	DefaultMaxResults int
	RequestTimeout    time.Duration

	// Analytics publishing (optional; enabled when brokers are set).
	KafkaBrokers           []string
	AnalyticsTopic         string
	AnalyticsBatchSize     int
	AnalyticsFlushInterval time.Duration
}

// AnalyticsEnabled reports whether activity events should be published.
func (c *Config) AnalyticsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults
// where unset. Absent provider credentials are not a load error: the
// credential check happens lazily inside the adapter at call time.
func Load() (*Config, error) {
	requestTimeout, err := parseDuration("REQUEST_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	flushInterval, err := parseDuration("ANALYTICS_FLUSH_INTERVAL", "500ms")
	if err != nil {
		return nil, err
	}

	maxResults, err := parseInt("DEFAULT_MAX_RESULTS", 5)
	if err != nil {
		return nil, err
	}

	batchSize, err := parseInt("ANALYTICS_BATCH_SIZE", 50)
	if err != nil {
		return nil, err
	}

	var forced domain.Provider
	if v := os.Getenv("GEOCODER_PROVIDER"); v != "" {
		forced, err = domain.ParseProvider(v)
		if err != nil {
			return nil, fmt.Errorf("invalid GEOCODER_PROVIDER: %w", err)
		}
	}

	cfg := &Config{
		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		NominatimEmail:   os.Getenv("NOMINATIM_EMAIL"),
		NominatimReferer: os.Getenv("NOMINATIM_REFERER"),
		GoogleAPIKey:     os.Getenv("GOOGLE_API_KEY"),
		ForcedProvider:   forced,

		DefaultMaxResults: maxResults,
		RequestTimeout:    requestTimeout,

		KafkaBrokers:           parseBrokers(os.Getenv("KAFKA_BROKERS")),
		AnalyticsTopic:         envOrDefault("KAFKA_ANALYTICS_TOPIC", "geocode-activity"),
		AnalyticsBatchSize:     batchSize,
		AnalyticsFlushInterval: flushInterval,
	}

	if cfg.AnalyticsEnabled() && cfg.AnalyticsTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_ANALYTICS_TOPIC is empty")
	}

	return cfg, nil
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseDuration(key, def string) (time.Duration, error) {
	s := envOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

// parseBrokers splits a comma-separated broker list, dropping empty entries.
func parseBrokers(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	brokers := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			brokers = append(brokers, p)
		}
	}
	return brokers
}
