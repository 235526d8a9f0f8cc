package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	defaultBroker  = "localhost:9092"
	testAdvisorURL = "http://advisor.local:9000"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{defaultBroker}, cfg.KafkaBrokers)
	assert.Equal(t, "location-signals", cfg.KafkaSourceTopic)
	assert.Equal(t, "risk-assessments", cfg.KafkaSinkTopic)
	assert.Equal(t, "hazard-risk-service", cfg.KafkaGroupID)
	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 50, cfg.BatchSize)
	assert.Equal(t, 500*time.Millisecond, cfg.BatchFlushInterval)
	assert.Equal(t, "configs/rules.yaml", cfg.RulesPath)
	assert.Equal(t, "configs/parameters.yaml", cfg.ParametersPath)
	assert.Equal(t, 30*time.Second, cfg.RulesReloadInterval)
	assert.Equal(t, 4, cfg.AssessWorkers)
	assert.Equal(t, 1000, cfg.ImpactCacheSize)
	assert.False(t, cfg.AdvisorEnabled)
	assert.Empty(t, cfg.AdvisorURL)
	assert.Equal(t, 5*time.Second, cfg.AdvisorTimeout)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "broker1:9092,broker2:9092")
	t.Setenv("KAFKA_SOURCE_TOPIC", "custom-source")
	t.Setenv("KAFKA_SINK_TOPIC", "custom-sink")
	t.Setenv("KAFKA_GROUP_ID", "custom-group")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("BATCH_SIZE", "100")
	t.Setenv("BATCH_FLUSH_INTERVAL", "1s")
	t.Setenv("RULES_PATH", "/etc/hazard/rules.yaml")
	t.Setenv("PARAMETERS_PATH", "/etc/hazard/parameters.yaml")
	t.Setenv("RULES_RELOAD_INTERVAL", "0s")
	t.Setenv("ASSESS_WORKERS", "8")
	t.Setenv("IMPACT_CACHE_SIZE", "250")
	t.Setenv("ADVISOR_URL", testAdvisorURL)
	t.Setenv("ADVISOR_TIMEOUT", "2s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "custom-source", cfg.KafkaSourceTopic)
	assert.Equal(t, "custom-sink", cfg.KafkaSinkTopic)
	assert.Equal(t, "custom-group", cfg.KafkaGroupID)
	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, 100, cfg.BatchSize)
	assert.Equal(t, 1*time.Second, cfg.BatchFlushInterval)
	assert.Equal(t, "/etc/hazard/rules.yaml", cfg.RulesPath)
	assert.Equal(t, "/etc/hazard/parameters.yaml", cfg.ParametersPath)
	assert.Equal(t, time.Duration(0), cfg.RulesReloadInterval)
	assert.Equal(t, 8, cfg.AssessWorkers)
	assert.Equal(t, 250, cfg.ImpactCacheSize)
	assert.True(t, cfg.AdvisorEnabled)
	assert.Equal(t, testAdvisorURL, cfg.AdvisorURL)
	assert.Equal(t, 2*time.Second, cfg.AdvisorTimeout)
}

func TestLoad_InvalidShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_NegativeShutdownTimeout(t *testing.T) {
	t.Setenv("SHUTDOWN_TIMEOUT", "-1s")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SHUTDOWN_TIMEOUT")
}

func TestLoad_InvalidBatchSize(t *testing.T) {
	t.Setenv("BATCH_SIZE", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_BatchSizeTooLarge(t *testing.T) {
	t.Setenv("BATCH_SIZE", "9999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_SIZE")
}

func TestLoad_InvalidBatchFlushInterval(t *testing.T) {
	t.Setenv("BATCH_FLUSH_INTERVAL", "not-a-duration")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BATCH_FLUSH_INTERVAL")
}

func TestLoad_InvalidReloadInterval(t *testing.T) {
	for _, v := range []string{"soon", "-5s"} {
		t.Setenv("RULES_RELOAD_INTERVAL", v)
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "RULES_RELOAD_INTERVAL")
	}
}

func TestLoad_InvalidAssessWorkers(t *testing.T) {
	t.Setenv("ASSESS_WORKERS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ASSESS_WORKERS")
}

func TestLoad_InvalidImpactCacheSizeFallsBack(t *testing.T) {
	t.Setenv("IMPACT_CACHE_SIZE", "-3")
	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 1000, cfg.ImpactCacheSize)
}

func TestLoad_InvalidAdvisorTimeout(t *testing.T) {
	t.Setenv("ADVISOR_TIMEOUT", "bad")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADVISOR_TIMEOUT")
}

func TestLoad_AdvisorEnabledWithoutURL(t *testing.T) {
	t.Setenv("ADVISOR_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ADVISOR_URL")
}

func TestLoad_AdvisorExplicitlyDisabled(t *testing.T) {
	t.Setenv("ADVISOR_URL", testAdvisorURL)
	t.Setenv("ADVISOR_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.AdvisorEnabled)
}
