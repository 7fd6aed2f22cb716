package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// KafkaConfig configures the Kafka notifier.
type KafkaConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic" default:"tradesim.alerts"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes alerts as JSON to a topic, keyed by symbol so one
// asset's alerts stay ordered within a partition.
type KafkaNotifier struct {
	w messageWriter
}

// NewKafkaNotifier creates a notifier writing to cfg.Topic.
func NewKafkaNotifier(cfg KafkaConfig) (*KafkaNotifier, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka: brokers are required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka: topic is required")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		Compression:  kafka.Gzip,
		MaxAttempts:  3,
		WriteTimeout: cfg.WriteTimeout,
		BatchTimeout: 100 * time.Millisecond,
	}
	return &KafkaNotifier{w: w}, nil
}

func (k *KafkaNotifier) Send(ctx context.Context, alert Alert) error {
	msg, err := alertMessage(alert)
	if err != nil {
		return err
	}
	if err := k.w.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka: write: %w", err)
	}
	return nil
}

// Close flushes pending messages and closes the writer.
func (k *KafkaNotifier) Close() error { return k.w.Close() }

func alertMessage(alert Alert) (kafka.Message, error) {
	v, err := json.Marshal(alert)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("kafka: marshal: %w", err)
	}
	ts := alert.TS
	if ts.IsZero() {
		ts = time.Now()
	}
	return kafka.Message{
		Key:   []byte(alert.Symbol),
		Value: v,
		Time:  ts,
		Headers: []kafka.Header{
			{Key: "level", Value: []byte(alert.Level)},
		},
	}, nil
}
