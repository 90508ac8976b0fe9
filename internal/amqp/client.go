package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Client wraps one AMQP connection with the two queues the bot uses: an
// inbound chat queue and an outbound reply queue, both bound to the same
// direct exchange.
type Client struct {
	conn       *amqp091.Connection
	channel    *amqp091.Channel
	exchange   string
	chatQueue  string
	replyQueue string
}

func NewClient(url, exchange, chatQueue, replyQueue string) (*Client, error) {
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
		conn:       conn,
		channel:    channel,
		exchange:   exchange,
		chatQueue:  chatQueue,
		replyQueue: replyQueue,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchange,
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

	for _, queue := range []string{c.chatQueue, c.replyQueue} {
		_, err = c.channel.QueueDeclare(
			queue,
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key equals the queue name on a direct exchange.
		if err := c.channel.QueueBind(queue, queue, c.exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

// PublishReply sends the bot's answer back through the reply queue.
func (c *Client) PublishReply(ctx context.Context, reply *ChatReply) error {
	body, err := reply.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal reply: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = c.channel.PublishWithContext(
		ctx,
		c.exchange,
		c.replyQueue,
		false, // mandatory
		false, // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish reply: %w", err)
	}

	slog.DebugContext(ctx, "Published chat reply", "chat_id", reply.ChatID)
	return nil
}

// ConsumeChatMessages delivers inbound chat messages to handler with manual
// acks. Handler failures nack with requeue; undecodable payloads are dropped.
// Returns when ctx is cancelled or the delivery channel closes.
func (c *Client) ConsumeChatMessages(ctx context.Context, handler func(*ChatMessage) error) error {
	msgs, err := c.channel.Consume(
		c.chatQueue,
		"",    // consumer tag
		false, // auto-ack off, we ack by hand
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming chat messages", "queue", c.chatQueue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			msg, err := ChatMessageFromJSON(delivery.Body)
			if err != nil {
				slog.ErrorContext(ctx, "Failed to unmarshal chat message", "error", err)
				delivery.Nack(false, false)
				continue
			}

			if err := handler(msg); err != nil {
				slog.ErrorContext(ctx, "Failed to handle chat message",
					"error", err,
					"chat_id", msg.ChatID)
				delivery.Nack(false, true)
				continue
			}

			delivery.Ack(false)
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

// ConsumeWithReconnect keeps a consumer alive across broker restarts. connect
// must build a fresh Client; consume is re-entered after each connection
// failure with exponential backoff.
func ConsumeWithReconnect(ctx context.Context, connect func() (*Client, error), consume func(context.Context, *Client) error) error {
	attempt := 0
	for {
		client, err := connect()
		if err != nil {
			if !isConnectionError(err) {
				return err
			}
			wait := exponentialBackoff(attempt)
			attempt++
			slog.WarnContext(ctx, "AMQP connect failed, retrying",
				"error", err,
				"backoff", wait,
				"attempt", attempt)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
			continue
		}

		attempt = 0
		err = consume(ctx, client)
		client.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil && !isConnectionError(err) {
			return err
		}

		wait := exponentialBackoff(attempt)
		attempt++
		slog.WarnContext(ctx, "AMQP consumer dropped, reconnecting",
			"error", err,
			"backoff", wait)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}

// exponentialBackoff doubles from 1s per attempt, capped at 30s.
func exponentialBackoff(attempt int) time.Duration {
	if attempt >= 5 {
		return 30 * time.Second
	}
	return time.Second << attempt
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"connection reset",
		"broken pipe",
		"EOF",
		"use of closed network connection",
		"message channel closed",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
