package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "smartcab_transactions", cfg.MongoDB.Database)
	assert.Equal(t, []string{"localhost:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 10*time.Second, cfg.Orchestrator.LockResultWait)
	assert.Equal(t, 5*time.Minute, cfg.Orchestrator.DiscrepancyHold)
	assert.NotNil(t, cfg.Orchestrator.StepRetry)
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
mongodb:
  database: cabinet_test
orchestrator:
  lockResultWait: 2s
  discrepancyHold: 1m
weighing:
  maxReportAge: 10s
`), 0o600))
	t.Setenv("CONFIG_FILE", path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "cabinet_test", cfg.MongoDB.Database)
	assert.Equal(t, 2*time.Second, cfg.Orchestrator.LockResultWait)
	assert.Equal(t, time.Minute, cfg.Orchestrator.DiscrepancyHold)
	assert.Equal(t, 10*time.Second, cfg.Weighing.MaxReportAge)
	// Untouched values keep their defaults.
	assert.Equal(t, 3, cfg.Orchestrator.LockOpenRetries)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("SERVER_ADDR", ":7070")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("ORCH_USER_ACTION_WAIT", "45s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 45*time.Second, cfg.Orchestrator.UserActionWait)
}

func TestLoad_MissingFileFails(t *testing.T) {
	t.Setenv("CONFIG_FILE", "/nonexistent/config.yaml")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_InvalidDurationsRejected(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("orchestrator:\n  userActionWait: -5s\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)

	_, err := Load()
	assert.ErrorContains(t, err, "positive")
}

func TestClientConfigConversions(t *testing.T) {
	cfg := Default()
	cfg.MongoDB.URI = "mongodb://db:27017"
	cfg.Kafka.Brokers = []string{"kafka-1:9092"}

	mc := cfg.MongoClientConfig()
	assert.Equal(t, "mongodb://db:27017", mc.URI)
	assert.Equal(t, "smartcab_transactions", mc.Database)

	kc := cfg.KafkaClientConfig()
	assert.Equal(t, []string{"kafka-1:9092"}, kc.Brokers)
	assert.Equal(t, "transaction-service", kc.ConsumerGroup)
}
