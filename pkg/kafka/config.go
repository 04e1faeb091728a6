package kafka

import (
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers       []string
	ConsumerGroup string
	ClientID      string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack

	// Consumer settings
	MinBytes      int
	MaxBytes      int
	MaxWait       time.Duration
	CommitTimeout time.Duration

	// TLS settings
	TLSEnabled bool
	TLSCert    string
	TLSKey     string
	TLSCA      string

	// SASL settings
	SASLEnabled   bool
	SASLMechanism string
	SASLUsername  string
	SASLPassword  string
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:       []string{"localhost:9092"},
		ConsumerGroup: "smartcab-default-group",
		ClientID:      "smartcab-client",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		RequiredAcks: -1, // All replicas

		MinBytes:      1,
		MaxBytes:      10e6, // 10MB
		MaxWait:       500 * time.Millisecond,
		CommitTimeout: 5 * time.Second,

		TLSEnabled:  false,
		SASLEnabled: false,
	}
}

// Topics contains all cabinet-platform Kafka topic names. Lock commands and
// lock results ride separate topics because the cabinet controllers are the
// consumers of one and the producers of the other.
var Topics = struct {
	// Hardware command topic (consumed by cabinet lock controllers)
	BinCommands string

	// Hardware feedback topic (produced by cabinet lock controllers)
	LockEvents string

	// Loadcell weight reports (produced by cabinet weighing controllers)
	WeightReports string

	// Operator/UI process channels
	ProcessStatus    string
	ProcessErrors    string
	ProcessOverrides string

	// Audit event stream (outbox-drained)
	TransactionEvents string
}{
	BinCommands:       "cabinet.bins.commands",
	LockEvents:        "cabinet.locks.events",
	WeightReports:     "cabinet.weights.reports",
	ProcessStatus:     "cabinet.process.status",
	ProcessErrors:     "cabinet.process.errors",
	ProcessOverrides:  "cabinet.process.overrides",
	TransactionEvents: "cabinet.transactions.events",
}

// TopicConfig holds configuration for a Kafka topic
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
}

// DefaultTopicConfigs returns default configurations for cabinet topics.
// Transaction audit events are retained far longer than transient process
// chatter because they back inventory reconciliation.
func DefaultTopicConfigs() []TopicConfig {
	const day = int64(24 * 60 * 60 * 1000)
	return []TopicConfig{
		{Name: Topics.BinCommands, Partitions: 6, ReplicationFactor: 3, RetentionMs: 1 * day},
		{Name: Topics.LockEvents, Partitions: 6, ReplicationFactor: 3, RetentionMs: 1 * day},
		{Name: Topics.WeightReports, Partitions: 6, ReplicationFactor: 3, RetentionMs: 1 * day},
		{Name: Topics.ProcessStatus, Partitions: 6, ReplicationFactor: 3, RetentionMs: 1 * day},
		{Name: Topics.ProcessErrors, Partitions: 6, ReplicationFactor: 3, RetentionMs: 7 * day},
		{Name: Topics.ProcessOverrides, Partitions: 6, ReplicationFactor: 3, RetentionMs: 7 * day},
		{Name: Topics.TransactionEvents, Partitions: 12, ReplicationFactor: 3, RetentionMs: 90 * day},
	}
}
