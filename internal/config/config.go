package config

import (
	"errors"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Rules snapshot sources.
	RulesPath           string
	ParametersPath      string
	RulesReloadInterval time.Duration

	AssessWorkers   int
	ImpactCacheSize int

	// Advisory model collaborator for action ranking.
	AdvisorURL     string
	AdvisorEnabled bool
	AdvisorTimeout time.Duration
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	reloadInterval, err := time.ParseDuration(sharedcfg.EnvOrDefault("RULES_RELOAD_INTERVAL", "30s"))
	if err != nil || reloadInterval < 0 {
		return nil, errors.New("invalid RULES_RELOAD_INTERVAL")
	}

	advisorTimeout, err := time.ParseDuration(sharedcfg.EnvOrDefault("ADVISOR_TIMEOUT", "5s"))
	if err != nil || advisorTimeout <= 0 {
		return nil, errors.New("invalid ADVISOR_TIMEOUT")
	}

	workers, err := parsePositiveInt("ASSESS_WORKERS", 4)
	if err != nil {
		return nil, err
	}

	advisorURL := os.Getenv("ADVISOR_URL")
	advisorEnabled := advisorURL != ""
	if v := os.Getenv("ADVISOR_ENABLED"); v != "" {
		advisorEnabled = v == "true"
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "location-signals"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "risk-assessments"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "hazard-risk-service"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		RulesPath:           sharedcfg.EnvOrDefault("RULES_PATH", "configs/rules.yaml"),
		ParametersPath:      sharedcfg.EnvOrDefault("PARAMETERS_PATH", "configs/parameters.yaml"),
		RulesReloadInterval: reloadInterval,

		AssessWorkers:   workers,
		ImpactCacheSize: parseImpactCacheSize(),

		AdvisorURL:     advisorURL,
		AdvisorEnabled: advisorEnabled,
		AdvisorTimeout: advisorTimeout,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}
	if cfg.RulesPath == "" || cfg.ParametersPath == "" {
		return nil, errors.New("RULES_PATH and PARAMETERS_PATH are required")
	}
	if cfg.AdvisorEnabled && cfg.AdvisorURL == "" {
		return nil, errors.New("ADVISOR_ENABLED is true but ADVISOR_URL is not set")
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, errors.New("invalid " + key + ": must be a positive integer")
	}
	return n, nil
}

func parseImpactCacheSize() int {
	if s := os.Getenv("IMPACT_CACHE_SIZE"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			return n
		}
	}
	return 1000
}
