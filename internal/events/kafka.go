package events

import (
	"context"
	"fmt"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, messages ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes events to one topic, keyed by vehicle so a vehicle's
// events stay on one partition.
type KafkaPublisher struct {
	mutex  sync.RWMutex
	writer messageWriter
	closed bool
}

// NewKafkaPublisher builds a synchronous writer that waits for all in-sync replicas.
func NewKafkaPublisher(brokers []string, topic string, logger *zap.Logger) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("events: at least one kafka broker is required")
	}
	if topic == "" {
		return nil, fmt.Errorf("events: kafka topic is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sugared := logger.Sugar()
	writer := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		Logger:                 kafka.LoggerFunc(func(string, ...any) {}),
		ErrorLogger:            kafka.LoggerFunc(sugared.Errorf),
	}
	return newKafkaPublisher(writer), nil
}

func newKafkaPublisher(writer messageWriter) *KafkaPublisher {
	return &KafkaPublisher{writer: writer}
}

// Publish writes one event.
func (publisher *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	publisher.mutex.RLock()
	defer publisher.mutex.RUnlock()
	if publisher.closed {
		return ErrPublisherClosed
	}
	message, err := newKafkaMessage(event)
	if err != nil {
		return err
	}
	if err := publisher.writer.WriteMessages(ctx, message); err != nil {
		return fmt.Errorf("events: kafka write: %w", err)
	}
	return nil
}

// Close flushes and closes the writer.
func (publisher *KafkaPublisher) Close() error {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	if publisher.closed {
		return nil
	}
	publisher.closed = true
	if err := publisher.writer.Close(); err != nil {
		return fmt.Errorf("events: kafka close: %w", err)
	}
	return nil
}

func newKafkaMessage(event Event) (kafka.Message, error) {
	body, err := event.body()
	if err != nil {
		return kafka.Message{}, fmt.Errorf("events: marshal %s: %w", event.Type, err)
	}
	return kafka.Message{
		Key:   []byte(event.Key()),
		Value: body,
		Time:  event.OccurredAt,
		Headers: []kafka.Header{
			{Key: headerEventType, Value: []byte(event.Type)},
		},
	}, nil
}
