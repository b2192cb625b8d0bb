// Package amqp publishes and consumes expense events on RabbitMQ. The
// event bus is optional: the application degrades to SQLite-only mode
// when no broker is configured.
package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/rabbitmq/amqp091-go"
)

type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string

	// prefetch caps unacked deliveries per consumer. Zero leaves the
	// broker default in place.
	prefetch int
}

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
		exchangeName: exchangeName,
		queueName:    queueName,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queue: %w", err)
	}

	return client, nil
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

	// Routing key matches the queue name on a direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishExpenseCreated publishes an expense.created event.
func (c *Client) PublishExpenseCreated(ctx context.Context, expenseID int64) error {
	return c.publish(ctx, NewExpenseEvent(EventExpenseCreated, expenseID))
}

// PublishExpenseDeleted publishes an expense.deleted event carrying a
// snapshot of the removed row.
func (c *Client) PublishExpenseDeleted(ctx context.Context, expenseID int64, snapshot *ExpenseSnapshot) error {
	event := NewExpenseEvent(EventExpenseDeleted, expenseID)
	event.Snapshot = snapshot
	return c.publish(ctx, event)
}

func (c *Client) publish(ctx context.Context, event *ExpenseEvent) error {
	body, err := event.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		c.queueName,    // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			MessageId:    uuid.NewString(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	slog.InfoContext(ctx, "Published expense event",
		"kind", event.Kind,
		"expense_id", event.ExpenseID,
		"exchange", c.exchangeName,
		"queue", c.queueName)

	return nil
}

// EventHandler processes one expense event. A returned error requeues
// the delivery once; a second failure drops it.
type EventHandler func(ctx context.Context, event *ExpenseEvent) error

// SetPrefetch caps how many deliveries the broker keeps in flight for
// this consumer. Must be called before ConsumeEvents.
func (c *Client) SetPrefetch(n int) {
	c.prefetch = n
}

// ConsumeEvents delivers queued events to the handler until the context
// is cancelled.
func (c *Client) ConsumeEvents(ctx context.Context, handler EventHandler) error {
	if c.prefetch > 0 {
		if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set prefetch: %w", err)
		}
	}

	deliveries, err := c.channel.Consume(
		c.queueName, // queue
		"",          // consumer tag
		false,       // auto-ack
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Consuming expense events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}

			event, err := ExpenseEventFromJSON(d.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Discarding malformed event",
					"message_id", d.MessageId,
					"error", err)
				_ = d.Nack(false, false)
				continue
			}

			if err := handler(ctx, event); err != nil {
				slog.ErrorContext(ctx, "Event handler failed",
					"kind", event.Kind,
					"expense_id", event.ExpenseID,
					"redelivered", d.Redelivered,
					"error", err)
				_ = d.Nack(false, !d.Redelivered)
				continue
			}

			_ = d.Ack(false)
		}
	}
}

// Close closes the channel and connection.
func (c *Client) Close() error {
	var errs []error
	if c.channel != nil {
		if err := c.channel.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close channel: %w", err))
		}
	}
	if c.conn != nil {
		if err := c.conn.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close connection: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close amqp client: %v", errs)
	}
	return nil
}
