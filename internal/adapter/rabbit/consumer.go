package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
	"github.com/uit-go/ridehail/pkg/metrics"
	"github.com/uit-go/ridehail/pkg/rabbit"
)

type LocationConsumer struct {
	client *rabbit.RabbitMQ
	l      logger.Logger
}

func NewLocationConsumer(client *rabbit.RabbitMQ, l logger.Logger) *LocationConsumer {
	return &LocationConsumer{client: client, l: l}
}

type LocationHandlerFunc func(ctx context.Context, msg models.LocationUpdateMessage) error

func (c *LocationConsumer) declareAndBindQueue(ctx context.Context, queueName, bindingKey, exchangeName string) (amqp.Queue, error) {
	const op = "LocationConsumer.declareAndBindQueue"

	q, err := c.client.Channel.QueueDeclare(queueName, true, false, false, false, nil)
	if err != nil {
		return q, wrap.Error(ctx, fmt.Errorf("%s: declare queue failed: %w", op, err))
	}
	if err := c.client.Channel.QueueBind(q.Name, bindingKey, exchangeName, false, nil); err != nil {
		return q, wrap.Error(ctx, fmt.Errorf("%s: bind queue failed: %w", op, err))
	}
	return q, nil
}

func (c *LocationConsumer) handleMessage(ctx context.Context, fn LocationHandlerFunc, msg amqp.Delivery) {
	const op = "LocationConsumer.handleMessage"

	var update models.LocationUpdateMessage
	if err := json.Unmarshal(msg.Body, &update); err != nil {
		c.l.Error(ctx, "decode failed", err, "op", op)
		metrics.RecordRabbitMQConsume("trip-service", QueueLocationUpdates, err)
		_ = msg.Nack(false, false)
		return
	}

	if err := fn(ctx, update); err != nil {
		c.l.Error(ctx, "handler failed", err, "op", op)
		metrics.RecordRabbitMQConsume("trip-service", QueueLocationUpdates, err)
		_ = msg.Nack(false, isRecoverableError(err))
		return
	}

	metrics.RecordRabbitMQConsume("trip-service", QueueLocationUpdates, nil)
	if err := msg.Ack(false); err != nil {
		c.l.Warn(ctx, "ack failed", "op", op)
	}
}

// ConsumeLocationUpdates feeds location.update events into fn until the
// context is cancelled, reconnecting on broker failures.
func (c *LocationConsumer) ConsumeLocationUpdates(ctx context.Context, fn LocationHandlerFunc) error {
	const op = "LocationConsumer.ConsumeLocationUpdates"

	for {
		if ctx.Err() != nil {
			c.l.Debug(ctx, "location consumer stopped by context")
			return nil
		}

		if err := c.client.EnsureConnection(ctx); err != nil {
			c.l.Error(ctx, "ensure connection failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		if err := c.client.Channel.ExchangeDeclare(TripExchange, "topic", true, false, false, false, nil); err != nil {
			c.l.Error(ctx, "declare exchange failed", err, "op", op)
			time.Sleep(3 * time.Second)
			continue
		}

		q, err := c.declareAndBindQueue(ctx, QueueLocationUpdates, "location.update", TripExchange)
		if err != nil {
			c.l.Error(ctx, "declare queue failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		msgs, err := c.client.Channel.Consume(q.Name, "", false, false, false, false, nil)
		if err != nil {
			c.l.Error(ctx, "consume failed", err, "op", op)
			time.Sleep(2 * time.Second)
			continue
		}

		c.l.Info(ctx, "start consuming location updates", "queue", q.Name)

		open := true
		for open {
			select {
			case <-ctx.Done():
				c.l.Info(ctx, "location consumer shutting down", "op", op)
				return nil

			case msg, ok := <-msgs:
				if !ok {
					// Channel closed by the broker, fall back to the
					// reconnect loop.
					c.l.Warn(ctx, "message channel closed, reconnecting", "op", op)
					open = false
					time.Sleep(2 * time.Second)
					continue
				}
				go c.handleMessage(ctx, fn, msg)
			}
		}
	}
}
