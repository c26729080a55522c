package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/segmentio/kafka-go"
)

// EnsureTopics creates the given topics through the cluster controller.
// Topics that already exist are left untouched. A positive replication
// override replaces every configured factor, for single-broker clusters.
func EnsureTopics(ctx context.Context, brokers []string, configs []TopicConfig, replicationOverride int) error {
	if len(brokers) == 0 {
		return errors.New("no kafka brokers configured")
	}

	conn, err := kafka.DialContext(ctx, "tcp", brokers[0])
	if err != nil {
		return fmt.Errorf("dial kafka: %w", err)
	}
	defer conn.Close()

	controller, err := conn.Controller()
	if err != nil {
		return fmt.Errorf("find kafka controller: %w", err)
	}

	controllerConn, err := kafka.DialContext(ctx, "tcp", net.JoinHostPort(controller.Host, strconv.Itoa(controller.Port)))
	if err != nil {
		return fmt.Errorf("dial kafka controller: %w", err)
	}
	defer controllerConn.Close()

	err = controllerConn.CreateTopics(topicSpecs(configs, replicationOverride)...)
	if err != nil && !errors.Is(err, kafka.TopicAlreadyExists) {
		return fmt.Errorf("create topics: %w", err)
	}
	return nil
}

func topicSpecs(configs []TopicConfig, replicationOverride int) []kafka.TopicConfig {
	specs := make([]kafka.TopicConfig, 0, len(configs))
	for _, tc := range configs {
		replication := tc.ReplicationFactor
		if replicationOverride > 0 {
			replication = replicationOverride
		}

		spec := kafka.TopicConfig{
			Topic:             tc.Name,
			NumPartitions:     tc.Partitions,
			ReplicationFactor: replication,
		}
		if tc.RetentionMs > 0 {
			spec.ConfigEntries = append(spec.ConfigEntries, kafka.ConfigEntry{
				ConfigName:  "retention.ms",
				ConfigValue: strconv.FormatInt(tc.RetentionMs, 10),
			})
		}
		specs = append(specs, spec)
	}
	return specs
}
