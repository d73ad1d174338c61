package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testBroker = "localhost:9092"

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "data/mock/seoul_districts.csv", cfg.MetricsTablePath)
	assert.Equal(t, "utf-8", cfg.MetricsTableEncoding)
	assert.Equal(t, "자치구", cfg.DistrictColumn)
	assert.Equal(t, "configs/criteria.yaml", cfg.CriteriaPath)
	assert.Equal(t, 5*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 16, cfg.ScoreCacheSize)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "district-vulnerability-scores", cfg.KafkaSinkTopic)
	assert.False(t, cfg.KafkaEnabled)
	assert.Empty(t, cfg.StoreDriver)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("METRICS_TABLE_PATH", "/data/seoul.csv")
	t.Setenv("METRICS_TABLE_ENCODING", "CP949")
	t.Setenv("DISTRICT_COLUMN", "gu")
	t.Setenv("CRITERIA_PATH", "/etc/criteria.yaml")
	t.Setenv("REFRESH_INTERVAL", "1h")
	t.Setenv("SCORE_CACHE_SIZE", "4")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("STORE_DRIVER", "sqlite")
	t.Setenv("STORE_DSN", "file:runs.db")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "/data/seoul.csv", cfg.MetricsTablePath)
	assert.Equal(t, "cp949", cfg.MetricsTableEncoding)
	assert.Equal(t, "gu", cfg.DistrictColumn)
	assert.Equal(t, "/etc/criteria.yaml", cfg.CriteriaPath)
	assert.Equal(t, time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 4, cfg.ScoreCacheSize)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, "sqlite", cfg.StoreDriver)
	assert.Equal(t, "file:runs.db", cfg.StoreDSN)
}

func TestLoad_RefreshDisabled(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL", "0")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Zero(t, cfg.RefreshInterval)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr string
	}{
		{"shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "not-a-duration"}, "SHUTDOWN_TIMEOUT"},
		{"negative shutdown timeout", map[string]string{"SHUTDOWN_TIMEOUT": "-1s"}, "SHUTDOWN_TIMEOUT"},
		{"refresh interval", map[string]string{"REFRESH_INTERVAL": "soon"}, "REFRESH_INTERVAL"},
		{"negative refresh interval", map[string]string{"REFRESH_INTERVAL": "-5m"}, "REFRESH_INTERVAL"},
		{"cache size", map[string]string{"SCORE_CACHE_SIZE": "0"}, "SCORE_CACHE_SIZE"},
		{"encoding", map[string]string{"METRICS_TABLE_ENCODING": "latin1"}, "METRICS_TABLE_ENCODING"},
		{"kafka without brokers", map[string]string{"KAFKA_ENABLED": "true"}, "KAFKA_BROKERS"},
		{"store driver", map[string]string{"STORE_DRIVER": "mysql"}, "STORE_DRIVER"},
		{"postgres without dsn", map[string]string{"STORE_DRIVER": "postgres"}, "STORE_DSN"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			for k, v := range tc.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoad_KafkaBrokersImplyEnabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", testBroker)
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.KafkaEnabled)
}

func TestLoad_KafkaExplicitlyDisabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", testBroker)
	t.Setenv("KAFKA_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{testBroker}, cfg.KafkaBrokers)
}

func TestLoad_BrokerListTrimmed(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " broker1:9092,, broker2:9092 ,")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.KafkaEnabled)
}
