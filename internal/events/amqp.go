package events

import (
	"context"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("events: publisher closed")

type amqpChannel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher sends persistent JSON messages to a durable RabbitMQ queue
// through the default exchange.
type AMQPPublisher struct {
	mutex      sync.Mutex
	connection *amqp.Connection
	channel    amqpChannel
	queue      string
	closed     bool
}

// NewAMQPPublisher dials url and declares queue.
func NewAMQPPublisher(url string, queue string) (*AMQPPublisher, error) {
	if queue == "" {
		return nil, fmt.Errorf("events: amqp queue is required")
	}
	connection, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("events: amqp dial: %w", err)
	}
	channel, err := connection.Channel()
	if err != nil {
		_ = connection.Close()
		return nil, fmt.Errorf("events: amqp channel: %w", err)
	}
	if _, err := channel.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = channel.Close()
		_ = connection.Close()
		return nil, fmt.Errorf("events: amqp queue declare: %w", err)
	}
	publisher := newAMQPPublisher(channel, queue)
	publisher.connection = connection
	return publisher, nil
}

func newAMQPPublisher(channel amqpChannel, queue string) *AMQPPublisher {
	return &AMQPPublisher{channel: channel, queue: queue}
}

// Publish sends one event. Channels are not safe for concurrent publishing, so calls are serialized.
func (publisher *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	message, err := newAMQPPublishing(event)
	if err != nil {
		return err
	}
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	if publisher.closed {
		return ErrPublisherClosed
	}
	if err := publisher.channel.PublishWithContext(ctx, "", publisher.queue, false, false, message); err != nil {
		return fmt.Errorf("events: amqp publish: %w", err)
	}
	return nil
}

// Close closes the channel and connection.
func (publisher *AMQPPublisher) Close() error {
	publisher.mutex.Lock()
	defer publisher.mutex.Unlock()
	if publisher.closed {
		return nil
	}
	publisher.closed = true
	err := publisher.channel.Close()
	if publisher.connection != nil {
		err = errors.Join(err, publisher.connection.Close())
	}
	return err
}

func newAMQPPublishing(event Event) (amqp.Publishing, error) {
	body, err := event.body()
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("events: marshal %s: %w", event.Type, err)
	}
	return amqp.Publishing{
		ContentType:  contentTypeJSON,
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Type:         string(event.Type),
		Timestamp:    event.OccurredAt,
		Headers:      amqp.Table{headerEventType: string(event.Type)},
		Body:         body,
	}, nil
}
