package messaging

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pantryhub/pantry-backend/pkg/config"
	"github.com/pantryhub/pantry-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RabbitMQ owns the broker connection and the channel shared by publishers
// and consumers. After Reconnect every caller picks up the new channel
// through Channel().
type RabbitMQ struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	config  *config.RabbitMQConfig
	logger  *logger.Logger
	mu      sync.RWMutex
	closed  bool
}

// QueueBinding is a durable service queue fed from a topic exchange.
// Rejected deliveries go to the dead letter exchange and land in
// dlq.<Service>.
type QueueBinding struct {
	Service    string
	Queue      string
	Exchange   string
	RoutingKey string
}

// DeadLetterQueue is the queue collecting the service's rejected deliveries
func (b QueueBinding) DeadLetterQueue() string {
	return "dlq." + b.Service
}

// New connects to the broker
func New(cfg *config.RabbitMQConfig, log *logger.Logger) (*RabbitMQ, error) {
	rmq := &RabbitMQ{
		config: cfg,
		logger: log.WithComponent("rabbitmq"),
	}

	if err := rmq.connect(); err != nil {
		return nil, err
	}

	return rmq, nil
}

// connect dials and opens the channel. Callers hold mu or own rmq exclusively.
func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.config.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.Qos(r.config.PrefetchCount, 0, false); err != nil {
		conn.Close()
		return fmt.Errorf("failed to set QoS: %w", err)
	}

	r.conn = conn
	r.channel = ch
	r.logger.Info().Msg("connected to RabbitMQ")
	return nil
}

// Channel returns the current channel
func (r *RabbitMQ) Channel() *amqp.Channel {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.channel
}

// Close closes the connection. A closed RabbitMQ never reconnects.
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.closed = true

	if r.channel != nil {
		if err := r.channel.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("failed to close channel")
		}
	}

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			return fmt.Errorf("failed to close connection: %w", err)
		}
	}

	r.logger.Info().Msg("RabbitMQ connection closed")
	return nil
}

// Health returns the health status of RabbitMQ
func (r *RabbitMQ) Health() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	status := map[string]string{
		"status": "up",
	}

	if r.conn == nil || r.conn.IsClosed() {
		status["status"] = "down"
		status["error"] = "connection closed"
	}

	return status
}

// DeclareExchange declares a durable topic exchange
func (r *RabbitMQ) DeclareExchange(name string) error {
	return r.Channel().ExchangeDeclare(name, "topic", true, false, false, false, nil)
}

// DeclareBinding declares everything a consumer needs: the dead letter
// exchange and the service DLQ, the source exchange, and the service queue
// bound to it. All declarations are idempotent.
func (r *RabbitMQ) DeclareBinding(b QueueBinding) error {
	ch := r.Channel()

	if err := r.DeclareExchange(ExchangeDeadLetter); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", ExchangeDeadLetter, err)
	}
	if _, err := ch.QueueDeclare(b.DeadLetterQueue(), true, false, false, false, nil); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", b.DeadLetterQueue(), err)
	}
	if err := ch.QueueBind(b.DeadLetterQueue(), "#", ExchangeDeadLetter, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", b.DeadLetterQueue(), err)
	}

	if err := r.DeclareExchange(b.Exchange); err != nil {
		return fmt.Errorf("failed to declare exchange %s: %w", b.Exchange, err)
	}
	args := amqp.Table{"x-dead-letter-exchange": ExchangeDeadLetter}
	if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, args); err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", b.Queue, err)
	}
	if err := ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, false, nil); err != nil {
		return fmt.Errorf("failed to bind queue %s: %w", b.Queue, err)
	}

	r.logger.Info().
		Str("queue", b.Queue).
		Str("exchange", b.Exchange).
		Str("routing_key", b.RoutingKey).
		Str("dead_letter_queue", b.DeadLetterQueue()).
		Msg("queue binding declared")
	return nil
}

// Reconnect replaces a dropped connection, retrying up to max_retries times
// with reconnect_delay between attempts.
func (r *RabbitMQ) Reconnect(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return fmt.Errorf("connection is permanently closed")
	}
	if r.conn != nil && !r.conn.IsClosed() && r.channel != nil && !r.channel.IsClosed() {
		return nil
	}

	for i := 0; i < r.config.MaxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		r.logger.Info().Int("attempt", i+1).Msg("attempting to reconnect to RabbitMQ")
		if r.conn != nil && !r.conn.IsClosed() {
			r.conn.Close()
		}

		err := r.connect()
		if err == nil {
			return nil
		}
		r.logger.Warn().Err(err).Msg("reconnection attempt failed")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(r.config.ReconnectDelay):
		}
	}

	return fmt.Errorf("failed to reconnect after %d attempts", r.config.MaxRetries)
}
