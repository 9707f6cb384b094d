package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
)

// ConsumerConfig holds consumer settings.
type ConsumerConfig struct {
	Brokers       string
	Topic         string
	DLQTopic      string
	ConsumerGroup string
	MaxRetries    int
	// Backoff is multiplied by the attempt number between retries.
	Backoff time.Duration
}

// Consumer reads auth events from Kafka and runs them through a Processor.
// Offsets are committed manually after a message is handled, skipped or dead-lettered.
type Consumer struct {
	consumer    *kafka.Consumer
	dlqProducer *kafka.Producer
	processor   *Processor
	config      *ConsumerConfig
	logger      *slog.Logger
}

// NewConsumer creates the Kafka consumer and its dead letter producer.
func NewConsumer(config *ConsumerConfig, processor *Processor, logger *slog.Logger) (*Consumer, error) {
	c, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers":  config.Brokers,
		"group.id":           config.ConsumerGroup,
		"auto.offset.reset":  "earliest",
		"enable.auto.commit": false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	dlq, err := kafka.NewProducer(&kafka.ConfigMap{"bootstrap.servers": config.Brokers})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create DLQ producer: %w", err)
	}

	logger.Info("Kafka consumer initialized",
		"brokers", config.Brokers,
		"topic", config.Topic,
		"group", config.ConsumerGroup)

	return &Consumer{
		consumer:    c,
		dlqProducer: dlq,
		processor:   processor,
		config:      config,
		logger:      logger,
	}, nil
}

// Start consumes until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	if err := c.consumer.Subscribe(c.config.Topic, nil); err != nil {
		return fmt.Errorf("failed to subscribe to topic: %w", err)
	}
	c.logger.Info("Starting to consume auth events", "topic", c.config.Topic)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("Consumer shutting down")
			return nil
		default:
		}

		msg, err := c.consumer.ReadMessage(time.Second)
		if err != nil {
			var kerr kafka.Error
			if errors.As(err, &kerr) && kerr.Code() == kafka.ErrTimedOut {
				continue
			}
			c.logger.Error("Error reading message", "error", err)
			continue
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg *kafka.Message) {
	err := retry(ctx, c.config.MaxRetries, c.config.Backoff, func() error {
		_, err := c.processor.Process(ctx, msg.Value)
		if errors.Is(err, ErrMalformed) {
			return stop{err}
		}
		return err
	})

	switch {
	case err == nil:
	case errors.Is(err, ErrMalformed):
		c.logger.Error("Skipping malformed auth event", "error", err, "offset", msg.TopicPartition.Offset)
	case ctx.Err() != nil:
		// Leave the offset uncommitted so the next run picks the message up again.
		return
	default:
		c.logger.Error("Failed to process auth event after retries", "error", err)
		c.sendToDLQ(msg.Value, err)
	}
	c.commit(msg)
}

// stop ends retry early.
type stop struct{ err error }

func (s stop) Error() string { return s.err.Error() }
func (s stop) Unwrap() error { return s.err }

// retry runs fn up to attempts times, sleeping backoff*attempt in between.
func retry(ctx context.Context, attempts int, backoff time.Duration, fn func() error) error {
	if attempts <= 0 {
		attempts = 3
	}
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = fn()
		var s stop
		if lastErr == nil || errors.As(lastErr, &s) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * backoff):
		}
	}
	return fmt.Errorf("max retries exceeded: %w", lastErr)
}

// deadLetter wraps a message that could not be processed.
type deadLetter struct {
	Original      json.RawMessage `json:"original_event"`
	Error         string          `json:"error"`
	FailedAt      time.Time       `json:"failed_at"`
	ConsumerGroup string          `json:"consumer_group"`
}

func (c *Consumer) sendToDLQ(value []byte, cause error) {
	original := json.RawMessage(value)
	if !json.Valid(value) {
		original, _ = json.Marshal(string(value))
	}
	payload, err := json.Marshal(deadLetter{
		Original:      original,
		Error:         cause.Error(),
		FailedAt:      time.Now().UTC(),
		ConsumerGroup: c.config.ConsumerGroup,
	})
	if err != nil {
		c.logger.Error("Failed to marshal DLQ event", "error", err)
		return
	}

	err = c.dlqProducer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &c.config.DLQTopic, Partition: kafka.PartitionAny},
		Value:          payload,
	}, nil)
	if err != nil {
		c.logger.Error("Failed to send to DLQ", "error", err)
		return
	}
	c.logger.Warn("Auth event sent to DLQ", "dlq_topic", c.config.DLQTopic)
}

func (c *Consumer) commit(msg *kafka.Message) {
	if _, err := c.consumer.CommitMessage(msg); err != nil {
		c.logger.Error("Failed to commit offset",
			"partition", msg.TopicPartition.Partition,
			"offset", msg.TopicPartition.Offset,
			"error", err)
	}
}

// Close flushes the dead letter producer and closes the consumer.
func (c *Consumer) Close() {
	c.dlqProducer.Flush(5000)
	c.dlqProducer.Close()
	if err := c.consumer.Close(); err != nil {
		c.logger.Error("Failed to close consumer", "error", err)
	}
	c.logger.Info("Kafka consumer closed")
}
