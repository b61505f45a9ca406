package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/pantryhub/pantry-backend/pkg/logger"
	amqp "github.com/rabbitmq/amqp091-go"
)

// maxDeliveries is how many times a failing message is redelivered before it
// is rejected to the dead letter exchange.
const maxDeliveries = 3

// MessageHandler is a function that handles a message
type MessageHandler func(ctx context.Context, event *Event) error

// Outcome is what the consumer does with a delivery after dispatch
type Outcome int

const (
	OutcomeAck Outcome = iota
	OutcomeRequeue
	OutcomeDeadLetter
)

// Consumer handles consuming events from RabbitMQ
type Consumer struct {
	rmq      *RabbitMQ
	binding  QueueBinding
	handlers map[string]MessageHandler
	logger   *logger.Logger
}

// NewConsumer declares the binding's topology and returns a consumer for its
// queue.
func NewConsumer(rmq *RabbitMQ, binding QueueBinding, log *logger.Logger) (*Consumer, error) {
	if err := rmq.DeclareBinding(binding); err != nil {
		return nil, err
	}

	return newConsumer(rmq, binding, log), nil
}

func newConsumer(rmq *RabbitMQ, binding QueueBinding, log *logger.Logger) *Consumer {
	return &Consumer{
		rmq:      rmq,
		binding:  binding,
		handlers: make(map[string]MessageHandler),
		logger:   log.WithComponent("consumer"),
	}
}

// RegisterHandler registers a handler for a specific event type
func (c *Consumer) RegisterHandler(eventType string, handler MessageHandler) {
	c.handlers[eventType] = handler
}

// Start starts consuming messages from the queue. A dropped connection is
// re-established and consumption resumes until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.consume()
	if err != nil {
		return err
	}

	c.logger.Info().Str("queue", c.binding.Queue).Msg("consumer started")

	go c.run(ctx, msgs)
	return nil
}

func (c *Consumer) consume() (<-chan amqp.Delivery, error) {
	msgs, err := c.rmq.Channel().Consume(
		c.binding.Queue, // queue
		"",              // consumer tag (auto-generated)
		false,           // auto-ack
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // arguments
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}
	return msgs, nil
}

func (c *Consumer) run(ctx context.Context, msgs <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Str("queue", c.binding.Queue).Msg("consumer stopped")
			return
		case msg, ok := <-msgs:
			if !ok {
				if msgs = c.resume(ctx); msgs == nil {
					return
				}
				continue
			}
			c.settle(msg, c.Dispatch(ctx, msg.Body, getRetryCount(msg)))
		}
	}
}

// resume reconnects after the delivery channel closed. nil means the consumer
// gives up.
func (c *Consumer) resume(ctx context.Context) <-chan amqp.Delivery {
	if ctx.Err() != nil {
		return nil
	}
	c.logger.Warn().Str("queue", c.binding.Queue).Msg("delivery channel closed, reconnecting")

	if err := c.rmq.Reconnect(ctx); err != nil {
		c.logger.Error().Err(err).Str("queue", c.binding.Queue).Msg("consumer stopped")
		return nil
	}
	msgs, err := c.consume()
	if err != nil {
		c.logger.Error().Err(err).Str("queue", c.binding.Queue).Msg("consumer stopped")
		return nil
	}
	c.logger.Info().Str("queue", c.binding.Queue).Msg("consumer resumed")
	return msgs
}

// Dispatch decodes body and runs the registered handler. retries is the
// number of earlier failed deliveries of the same message.
func (c *Consumer) Dispatch(ctx context.Context, body []byte, retries int) Outcome {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		c.logger.Error().Err(err).Msg("failed to unmarshal event")
		return OutcomeDeadLetter
	}

	ctx = WithCorrelationID(ctx, event.CorrelationID)
	log := c.logger.WithCorrelationID(event.CorrelationID)

	handler, ok := c.handlers[event.Type]
	if !ok {
		log.Debug().
			Str("event_type", event.Type).
			Msg("no handler registered for event type")
		return OutcomeAck
	}

	log.Debug().
		Str("event_type", event.Type).
		Str("event_id", event.ID).
		Msg("processing event")

	if err := handler(ctx, &event); err != nil {
		log.Error().
			Err(err).
			Str("event_type", event.Type).
			Str("event_id", event.ID).
			Msg("failed to process event")

		if retries >= maxDeliveries {
			log.Warn().
				Str("event_id", event.ID).
				Int("retry_count", retries).
				Msg("max retries exceeded, sending to DLQ")
			return OutcomeDeadLetter
		}
		return OutcomeRequeue
	}

	return OutcomeAck
}

func (c *Consumer) settle(msg amqp.Delivery, outcome Outcome) {
	var err error
	switch outcome {
	case OutcomeAck:
		err = msg.Ack(false)
	case OutcomeRequeue:
		err = msg.Nack(false, true)
	case OutcomeDeadLetter:
		err = msg.Reject(false)
	}
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to settle delivery")
	}
}

func getRetryCount(msg amqp.Delivery) int {
	if msg.Headers == nil {
		return 0
	}

	if deaths, ok := msg.Headers["x-death"].([]interface{}); ok {
		for _, death := range deaths {
			if d, ok := death.(amqp.Table); ok {
				if count, ok := d["count"].(int64); ok {
					return int(count)
				}
			}
		}
	}

	return 0
}
