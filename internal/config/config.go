package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/smartcab-platform/transaction-service/internal/orchestrator"
	"github.com/smartcab-platform/transaction-service/pkg/kafka"
	"github.com/smartcab-platform/transaction-service/pkg/mongodb"
)

// Config holds the full transaction service configuration. Values come from
// an optional YAML file first, then environment variables override.
type Config struct {
	Server       ServerConfig        `yaml:"server"`
	Logging      LoggingConfig       `yaml:"logging"`
	Tracing      TracingConfig       `yaml:"tracing"`
	MongoDB      MongoConfig         `yaml:"mongodb"`
	Kafka        KafkaConfig         `yaml:"kafka"`
	Orchestrator orchestrator.Config `yaml:"orchestrator"`
	Weighing     WeighingConfig      `yaml:"weighing"`
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Addr         string        `yaml:"addr"`
	ReadTimeout  time.Duration `yaml:"readTimeout"`
	WriteTimeout time.Duration `yaml:"writeTimeout"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level       string `yaml:"level"`
	Environment string `yaml:"environment"`
}

// TracingConfig holds OpenTelemetry settings
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint"`
	SampleRate   float64 `yaml:"sampleRate"`
}

// MongoConfig holds MongoDB connection settings
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// KafkaConfig holds Kafka connection settings
type KafkaConfig struct {
	Brokers       []string `yaml:"brokers"`
	ConsumerGroup string   `yaml:"consumerGroup"`
	ClientID      string   `yaml:"clientId"`
}

// WeighingConfig holds loadcell reading settings
type WeighingConfig struct {
	// MaxReportAge is how old a weight report may be before verification
	// treats the bin as unmeasured.
	MaxReportAge time.Duration `yaml:"maxReportAge"`
}

// Default returns the production defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:       "info",
			Environment: "development",
		},
		Tracing: TracingConfig{
			Enabled:      true,
			OTLPEndpoint: "localhost:4317",
			SampleRate:   1.0,
		},
		MongoDB: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "smartcab_transactions",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "transaction-service",
			ClientID:      "transaction-service",
		},
		Orchestrator: *orchestrator.DefaultConfig(),
		Weighing: WeighingConfig{
			MaxReportAge: 30 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named
// by CONFIG_FILE, and environment variable overrides, in that order.
func Load() (*Config, error) {
	cfg := Default()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.applyEnv()

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Server.Addr, "SERVER_ADDR")
	setString(&c.Logging.Level, "LOG_LEVEL")
	setString(&c.Logging.Environment, "ENVIRONMENT")

	setBool(&c.Tracing.Enabled, "TRACING_ENABLED")
	setString(&c.Tracing.OTLPEndpoint, "OTEL_EXPORTER_OTLP_ENDPOINT")

	setString(&c.MongoDB.URI, "MONGODB_URI")
	setString(&c.MongoDB.Database, "MONGODB_DATABASE")

	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
	}
	setString(&c.Kafka.ConsumerGroup, "KAFKA_CONSUMER_GROUP")
	setString(&c.Kafka.ClientID, "KAFKA_CLIENT_ID")

	setDuration(&c.Orchestrator.LockResultWait, "ORCH_LOCK_RESULT_WAIT")
	setInt(&c.Orchestrator.LockOpenRetries, "ORCH_LOCK_OPEN_RETRIES")
	setDuration(&c.Orchestrator.ManualWait, "ORCH_MANUAL_WAIT")
	setDuration(&c.Orchestrator.ManualPollInterval, "ORCH_MANUAL_POLL_INTERVAL")
	setDuration(&c.Orchestrator.UserActionWait, "ORCH_USER_ACTION_WAIT")
	setDuration(&c.Orchestrator.BinClosedWait, "ORCH_BIN_CLOSED_WAIT")
	setDuration(&c.Orchestrator.DiscrepancyHold, "ORCH_DISCREPANCY_HOLD")

	setDuration(&c.Weighing.MaxReportAge, "WEIGHING_MAX_REPORT_AGE")
}

func (c *Config) validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server addr must not be empty")
	}
	if c.MongoDB.URI == "" || c.MongoDB.Database == "" {
		return fmt.Errorf("mongodb uri and database must not be empty")
	}
	if len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required")
	}
	if c.Orchestrator.LockOpenRetries < 1 {
		return fmt.Errorf("lock open retries must be at least 1")
	}
	for _, d := range []time.Duration{
		c.Orchestrator.LockResultWait,
		c.Orchestrator.ManualWait,
		c.Orchestrator.UserActionWait,
		c.Orchestrator.BinClosedWait,
		c.Orchestrator.DiscrepancyHold,
		c.Weighing.MaxReportAge,
	} {
		if d <= 0 {
			return fmt.Errorf("orchestrator wait durations must be positive")
		}
	}
	return nil
}

// MongoClientConfig converts to the mongodb package configuration
func (c *Config) MongoClientConfig() *mongodb.Config {
	mc := mongodb.DefaultConfig()
	mc.URI = c.MongoDB.URI
	mc.Database = c.MongoDB.Database
	return mc
}

// KafkaClientConfig converts to the kafka package configuration
func (c *Config) KafkaClientConfig() *kafka.Config {
	kc := kafka.DefaultConfig()
	kc.Brokers = c.Kafka.Brokers
	kc.ConsumerGroup = c.Kafka.ConsumerGroup
	kc.ClientID = c.Kafka.ClientID
	return kc
}

func setString(target *string, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v
	}
}

func setBool(target *bool, key string) {
	if v := os.Getenv(key); v != "" {
		*target = v == "true" || v == "1"
	}
}

func setInt(target *int, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*target = parsed
		}
	}
}

func setDuration(target *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			*target = parsed
		}
	}
}
