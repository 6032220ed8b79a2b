// Package amqp carries ledger mutation events from the API server to the
// export worker over a durable direct exchange.
package amqp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/YanRho/alky-wallet/internal/core"
)

const publishTimeout = 5 * time.Second

// Client owns one connection and channel to the broker. It serves both the
// publishing side (API server) and the consuming side (worker).
type Client struct {
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	queueName    string
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
		c.exchangeName,
		"direct",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = c.channel.QueueDeclare(
		c.queueName,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	// Routing key equals the queue name on a direct exchange.
	err = c.channel.QueueBind(c.queueName, c.queueName, c.exchangeName, false, nil)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}

// PublishTransactionUpsert announces a created ledger row to the mirror.
func (c *Client) PublishTransactionUpsert(ctx context.Context, id string) error {
	body, err := wrap(TypeTransactionUpsert, UpsertMessage{ID: id})
	if err != nil {
		return err
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "published transaction upsert",
		"transaction_id", id, "exchange", c.exchangeName, "queue", c.queueName)
	return nil
}

// PublishTransactionDelete announces a removed ledger row to the mirror.
func (c *Client) PublishTransactionDelete(ctx context.Context, t core.Transaction) error {
	body, err := wrap(TypeTransactionDelete, DeleteMessageFrom(t))
	if err != nil {
		return err
	}
	if err := c.publish(ctx, body); err != nil {
		return err
	}
	slog.InfoContext(ctx, "published transaction delete",
		"transaction_id", t.ID, "exchange", c.exchangeName, "queue", c.queueName)
	return nil
}

func (c *Client) publish(ctx context.Context, body []byte) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName,
		c.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

// ConsumeMessages delivers each envelope to the matching handler until ctx
// is cancelled. Handler errors requeue the delivery; undecodable messages
// are dropped.
func (c *Client) ConsumeMessages(
	ctx context.Context,
	onUpsert func(context.Context, UpsertMessage) error,
	onDelete func(context.Context, DeleteMessage) error,
) error {
	deliveries, err := c.channel.Consume(
		c.queueName,
		"",    // consumer tag
		false, // manual ack
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "consuming ledger events", "queue", c.queueName)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "stopping consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			c.dispatch(ctx, delivery, onUpsert, onDelete)
		}
	}
}

func (c *Client) dispatch(
	ctx context.Context,
	delivery amqp091.Delivery,
	onUpsert func(context.Context, UpsertMessage) error,
	onDelete func(context.Context, DeleteMessage) error,
) {
	var env Envelope
	if err := json.Unmarshal(delivery.Body, &env); err != nil {
		slog.ErrorContext(ctx, "undecodable envelope", "error", err)
		_ = delivery.Nack(false, false) // drop, never requeue garbage
		return
	}

	var handleErr error
	switch env.Type {
	case TypeTransactionUpsert:
		var msg UpsertMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			slog.ErrorContext(ctx, "undecodable upsert payload", "error", err)
			_ = delivery.Nack(false, false)
			return
		}
		handleErr = onUpsert(ctx, msg)
	case TypeTransactionDelete:
		var msg DeleteMessage
		if err := json.Unmarshal(env.Payload, &msg); err != nil {
			slog.ErrorContext(ctx, "undecodable delete payload", "error", err)
			_ = delivery.Nack(false, false)
			return
		}
		handleErr = onDelete(ctx, msg)
	default:
		slog.WarnContext(ctx, "unknown message type", "type", env.Type)
		_ = delivery.Nack(false, false)
		return
	}

	if handleErr != nil {
		slog.ErrorContext(ctx, "handler failed, requeueing",
			"type", env.Type, "error", handleErr)
		_ = delivery.Nack(false, true)
		return
	}
	_ = delivery.Ack(false)
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
