package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// KafkaConfig holds producer settings.
type KafkaConfig struct {
	Brokers           string
	Topic             string
	EnableIdempotence bool
	Acks              string
}

// NewKafkaConfig returns the producer defaults for brokers and topic.
func NewKafkaConfig(brokers, topic string) (*KafkaConfig, error) {
	if strings.TrimSpace(brokers) == "" {
		return nil, fmt.Errorf("KAFKA_BROKERS is required")
	}
	if topic == "" {
		topic = "portal-auth-events"
	}
	return &KafkaConfig{
		Brokers:           brokers,
		Topic:             topic,
		EnableIdempotence: true,
		Acks:              "all",
	}, nil
}

// BrokersList returns brokers as a slice
func (c *KafkaConfig) BrokersList() []string {
	parts := strings.Split(c.Brokers, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// KafkaPublisher produces auth events to a Kafka topic. Delivery is asynchronous;
// failures surface through the delivery report loop.
type KafkaPublisher struct {
	producer *kafka.Producer
	config   *KafkaConfig
	logger   *slog.Logger
}

// NewKafkaPublisher creates an idempotent producer and starts its delivery report loop.
func NewKafkaPublisher(config *KafkaConfig, logger *slog.Logger) (*KafkaPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":                     config.Brokers,
		"enable.idempotence":                    config.EnableIdempotence,
		"acks":                                  config.Acks,
		"max.in.flight.requests.per.connection": 5,
		"client.id":                             "portal",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create producer: %w", err)
	}

	publisher := &KafkaPublisher{
		producer: p,
		config:   config,
		logger:   logger,
	}
	go publisher.handleDeliveryReports()

	logger.Info("Kafka producer initialized",
		"brokers", config.Brokers,
		"topic", config.Topic)

	return publisher, nil
}

// Publish enqueues the event keyed by user so one user's events stay ordered.
func (p *KafkaPublisher) Publish(_ context.Context, e AuthEvent) error {
	msg, err := buildMessage(p.config.Topic, e)
	if err != nil {
		return err
	}
	if err := p.producer.Produce(msg, nil); err != nil {
		return fmt.Errorf("failed to produce auth event: %w", err)
	}
	p.logger.Debug("auth event queued", "type", string(e.Type), "event_id", e.ID)
	return nil
}

func buildMessage(topic string, e AuthEvent) (*kafka.Message, error) {
	value, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal auth event: %w", err)
	}
	return &kafka.Message{
		TopicPartition: kafka.TopicPartition{
			Topic:     &topic,
			Partition: kafka.PartitionAny,
		},
		Key:   []byte(e.Key()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(e.Type)},
		},
	}, nil
}

func (p *KafkaPublisher) handleDeliveryReports() {
	for e := range p.producer.Events() {
		switch ev := e.(type) {
		case *kafka.Message:
			if ev.TopicPartition.Error != nil {
				p.logger.Error("auth event delivery failed",
					"topic", *ev.TopicPartition.Topic,
					"error", ev.TopicPartition.Error)
			}
		case kafka.Error:
			p.logger.Warn("kafka client error", "error", ev)
		}
	}
}

// Close flushes pending events for up to ten seconds and closes the producer.
func (p *KafkaPublisher) Close() {
	if remaining := p.producer.Flush(10000); remaining > 0 {
		p.logger.Error("auth events not delivered before shutdown", "count", remaining)
	}
	p.producer.Close()
	p.logger.Info("Kafka producer closed")
}
