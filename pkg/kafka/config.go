package kafka

import (
	"strings"
	"time"
)

// Config holds Kafka configuration
type Config struct {
	Brokers  []string
	ClientID string

	// Producer settings
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int // 0: no ack, 1: leader ack, -1: all replicas ack
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Brokers:  []string{"localhost:9092"},
		ClientID: "dispatch-service",

		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
		WriteTimeout: 10 * time.Second,
		RequiredAcks: -1,
	}
}

// ParseBrokers splits a comma separated broker list
func ParseBrokers(value string) []string {
	var brokers []string
	for _, b := range strings.Split(value, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// Topics contains the dispatch Kafka topic names
var Topics = struct {
	DispatchBatches string
	DispatchCrates  string
}{
	DispatchBatches: "dispatch.batches",
	DispatchCrates:  "dispatch.crates",
}

// TopicFor routes an event type to its topic. Batch lifecycle events go to
// the batches topic; crate registration and reconciliation to the crates topic.
func TopicFor(eventType string) string {
	if strings.HasPrefix(eventType, "dispatch.crate.") {
		return Topics.DispatchCrates
	}
	return Topics.DispatchBatches
}

// TopicConfig holds configuration for a Kafka topic
type TopicConfig struct {
	Name              string
	Partitions        int
	ReplicationFactor int
	RetentionMs       int64
}

// DefaultTopicConfigs returns default configurations for dispatch topics
func DefaultTopicConfigs() []TopicConfig {
	const week = 7 * 24 * 60 * 60 * 1000
	return []TopicConfig{
		{Name: Topics.DispatchBatches, Partitions: 6, ReplicationFactor: 3, RetentionMs: 4 * week},
		{Name: Topics.DispatchCrates, Partitions: 12, ReplicationFactor: 3, RetentionMs: 4 * week},
	}
}
