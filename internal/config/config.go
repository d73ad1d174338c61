package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Supported METRICS_TABLE_ENCODING values.
var tableEncodings = []string{"utf-8", "cp949", "euc-kr"}

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Scoring inputs.
	MetricsTablePath     string
	MetricsTableEncoding string
	DistrictColumn       string
	CriteriaPath         string

	// RefreshInterval is the period between full recomputations. Zero
	// disables the refresh loop after the first run.
	RefreshInterval time.Duration
	ScoreCacheSize  int

	// Kafka score sink.
	KafkaBrokers   []string
	KafkaSinkTopic string
	KafkaEnabled   bool

	// Run-history store. An empty driver disables it.
	StoreDriver string
	StoreDSN    string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	refreshInterval, err := parseRefreshInterval()
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("SCORE_CACHE_SIZE", 16)
	if err != nil {
		return nil, err
	}

	brokers := sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MetricsTablePath:     sharedcfg.EnvOrDefault("METRICS_TABLE_PATH", "data/mock/seoul_districts.csv"),
		MetricsTableEncoding: strings.ToLower(sharedcfg.EnvOrDefault("METRICS_TABLE_ENCODING", "utf-8")),
		DistrictColumn:       sharedcfg.EnvOrDefault("DISTRICT_COLUMN", "자치구"),
		CriteriaPath:         sharedcfg.EnvOrDefault("CRITERIA_PATH", "configs/criteria.yaml"),
		RefreshInterval:      refreshInterval,
		ScoreCacheSize:       cacheSize,

		KafkaBrokers:   brokers,
		KafkaSinkTopic: sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "district-vulnerability-scores"),
		KafkaEnabled:   kafkaEnabled,

		StoreDriver: strings.ToLower(os.Getenv("STORE_DRIVER")),
		StoreDSN:    os.Getenv("STORE_DSN"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.MetricsTablePath == "" {
		return errors.New("METRICS_TABLE_PATH is required")
	}
	if c.CriteriaPath == "" {
		return errors.New("CRITERIA_PATH is required")
	}
	if !slices.Contains(tableEncodings, c.MetricsTableEncoding) {
		return fmt.Errorf("invalid METRICS_TABLE_ENCODING %q: want one of %s",
			c.MetricsTableEncoding, strings.Join(tableEncodings, ", "))
	}
	if c.KafkaEnabled && len(c.KafkaBrokers) == 0 {
		return errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if c.KafkaEnabled && c.KafkaSinkTopic == "" {
		return errors.New("KAFKA_SINK_TOPIC is required")
	}
	switch c.StoreDriver {
	case "", "sqlite", "postgres":
	default:
		return fmt.Errorf("invalid STORE_DRIVER %q: want sqlite or postgres", c.StoreDriver)
	}
	if c.StoreDriver == "postgres" && c.StoreDSN == "" {
		return errors.New("STORE_DSN is required for postgres")
	}
	return nil
}

func parseRefreshInterval() (time.Duration, error) {
	s := sharedcfg.EnvOrDefault("REFRESH_INTERVAL", "5m")
	if s == "0" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return 0, errors.New("invalid REFRESH_INTERVAL")
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}
