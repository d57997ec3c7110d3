// Package amqp publishes and consumes goal events over a RabbitMQ exchange.
package amqp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"goalplanner/internal/core"
)

const publishTimeout = 5 * time.Second

// publisher is the subset of *amqp091.Channel used to send messages.
type publisher interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	pub          publisher
	mu           sync.Mutex
	exchangeName string
	queueName    string
}

// NewClient connects, then declares a durable direct exchange and a durable
// queue bound to it under the queue's name.
func NewClient(url, exchangeName, queueName string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		conn:         conn,
		channel:      channel,
		pub:          channel,
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
}

func newWithPublisher(pub publisher, exchangeName, queueName string) *Client {
	return &Client{pub: pub, exchangeName: exchangeName, queueName: queueName}
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = c.channel.QueueBind(
		c.queueName,    // queue name
		c.queueName,    // routing key
		c.exchangeName, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishGoalEvent sends ev as a persistent JSON message.
func (c *Client) PublishGoalEvent(ctx context.Context, ev core.GoalEvent) error {
	msg := NewGoalEventMessage(ev)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	c.mu.Lock()
	err = c.pub.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    msg.OccurredAt,
			Type:         msg.Event,
			Body:         body,
		},
	)
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}

	slog.DebugContext(ctx, "Published goal event",
		"component", "amqp",
		"event", msg.Event,
		"goal_id", msg.GoalID,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// ObserveGoalEvent implements core.EventObserver.
func (c *Client) ObserveGoalEvent(ctx context.Context, ev core.GoalEvent) error {
	return c.PublishGoalEvent(ctx, ev)
}

// GoalEventHandler processes one consumed message. Returning an error requeues it.
type GoalEventHandler func(ctx context.Context, msg *GoalEventMessage) error

// ConsumeGoalEvents delivers queued goal events to handler until ctx is done.
func (c *Client) ConsumeGoalEvents(ctx context.Context, handler GoalEventHandler) error {
	if c.channel == nil {
		return errors.New("consume: client has no channel")
	}
	msgs, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming goal events", "component", "amqp", "queue", c.queueName)
	return consume(ctx, msgs, handler)
}

func consume(ctx context.Context, msgs <-chan amqp091.Delivery, handler GoalEventHandler) error {
	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "component", "amqp", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return errors.New("message channel closed")
			}

			msg, err := GoalEventMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal message", "component", "amqp", "error", err)
				_ = delivery.Nack(false, false) // malformed, drop it
				continue
			}

			if err := handler(ctx, msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle goal event",
					"component", "amqp",
					"error", err,
					"event", msg.Event,
					"goal_id", msg.GoalID)
				_ = delivery.Nack(false, !delivery.Redelivered) // one retry
				continue
			}

			_ = delivery.Ack(false)
			slog.DebugContext(ctx, "Processed goal event",
				"component", "amqp",
				"event", msg.Event,
				"goal_id", msg.GoalID)
		}
	}
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Interface conformance.
var _ core.EventObserver = (*Client)(nil)
