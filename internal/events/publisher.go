// Package events publishes submission lifecycle events to RabbitMQ.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/health-screening-server/internal/domain"
)

const contentTypeJSON = "application/json"

// channel is the subset of *amqp.Channel the publisher uses
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPPublisher publishes events to a topic exchange, routed by event type
type AMQPPublisher struct {
	conn     *amqp.Connection
	ch       channel
	exchange string
	logger   *logrus.Logger
	mu       sync.Mutex
}

// NewAMQPPublisher dials the broker and declares the durable topic exchange
func NewAMQPPublisher(config domain.MessagingConfig, logger *logrus.Logger) (*AMQPPublisher, error) {
	conn, err := amqp.Dial(config.AMQPURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to rabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(config.Exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare exchange %s: %w", config.Exchange, err)
	}

	logger.WithField("exchange", config.Exchange).Info("Successfully connected to rabbitMQ")

	publisher := NewAMQPPublisherWithChannel(ch, config.Exchange, logger)
	publisher.conn = conn
	return publisher, nil
}

// NewAMQPPublisherWithChannel creates a publisher on an already open channel
func NewAMQPPublisherWithChannel(ch channel, exchange string, logger *logrus.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		ch:       ch,
		exchange: exchange,
		logger:   logger,
	}
}

// Publish sends one event as a persistent JSON message
func (p *AMQPPublisher) Publish(ctx context.Context, event *domain.SubmissionEvent) error {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encoding event: %w", err)
	}

	message := amqp.Publishing{
		ContentType:  contentTypeJSON,
		Body:         body,
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Headers: amqp.Table{
			"submission_id": event.SubmissionID.String(),
			"status":        string(event.Status),
		},
	}

	p.mu.Lock()
	err = p.ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, message)
	p.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}

	p.logger.WithFields(logrus.Fields{
		"event_id":      event.ID,
		"event_type":    event.Type,
		"submission_id": event.SubmissionID,
	}).Debug("Published submission event")
	return nil
}

// Close closes the channel and the connection
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	var firstErr error
	if p.ch != nil {
		if err := p.ch.Close(); err != nil && err != amqp.ErrClosed {
			firstErr = err
		}
	}
	if p.conn != nil {
		if err := p.conn.Close(); err != nil && err != amqp.ErrClosed && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// NoopPublisher drops events; used when messaging is disabled
type NoopPublisher struct {
	logger *logrus.Logger
}

// NewNoopPublisher creates a publisher that only logs
func NewNoopPublisher(logger *logrus.Logger) *NoopPublisher {
	return &NoopPublisher{logger: logger}
}

// Publish logs the event and returns nil
func (p *NoopPublisher) Publish(ctx context.Context, event *domain.SubmissionEvent) error {
	p.logger.WithFields(logrus.Fields{
		"event_type":    event.Type,
		"submission_id": event.SubmissionID,
	}).Debug("Messaging disabled, dropping event")
	return nil
}

// Close is a no-op
func (p *NoopPublisher) Close() error {
	return nil
}
