package rabbit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/uit-go/ridehail/internal/domain/models"
	"github.com/uit-go/ridehail/pkg/logger"
	wrap "github.com/uit-go/ridehail/pkg/logger/wrapper"
	"github.com/uit-go/ridehail/pkg/metrics"
	"github.com/uit-go/ridehail/pkg/rabbit"
)

const (
	TripExchange = "trip_topic"

	QueueTripStatus      = "trip_status_events"
	QueueLocationUpdates = "location_updates"
)

type TripBroker struct {
	client   *rabbit.RabbitMQ
	exchange string

	l logger.Logger
}

func NewTripBroker(client *rabbit.RabbitMQ, log logger.Logger) *TripBroker {
	return &TripBroker{
		client:   client,
		exchange: TripExchange,
		l:        log,
	}
}

// PublishTripStatus announces a trip lifecycle change. Routing key is
// "trip.status.{STATUS}" so consumers can subscribe per status.
func (b *TripBroker) PublishTripStatus(ctx context.Context, msg models.TripStatusMessage) error {
	ctx = wrap.WithAction(ctx, "rabbitmq_publish_trip_status")

	key := fmt.Sprintf("trip.status.%s", msg.Status)
	err := b.publish(ctx, key, msg.CorrelationID, msg)
	metrics.RecordRabbitMQPublish("trip-service", QueueTripStatus, err)
	if err != nil {
		return wrap.Error(ctx, err)
	}
	return nil
}

// PublishLocationUpdate forwards an accepted driver position to the
// trip service for room fan-out.
func (b *TripBroker) PublishLocationUpdate(ctx context.Context, msg models.LocationUpdateMessage) error {
	ctx = wrap.WithAction(ctx, "rabbitmq_publish_location_update")

	err := b.publish(ctx, "location.update", msg.CorrelationID, msg)
	metrics.RecordRabbitMQPublish("location-service", QueueLocationUpdates, err)
	if err != nil {
		return wrap.Error(ctx, err)
	}
	return nil
}

func (b *TripBroker) publish(ctx context.Context, key, correlationID string, payload any) error {
	if err := b.client.EnsureConnection(ctx); err != nil {
		b.l.Error(ctx, "ensure connection failed", err)
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return retry(5, time.Second, func() error {
		return b.client.Channel.PublishWithContext(
			ctx,
			b.exchange,
			key,
			false, // mandatory
			false, // immediate
			amqp091.Publishing{
				ContentType:   "application/json",
				CorrelationId: correlationID,
				Body:          body,
				Timestamp:     time.Now(),
			},
		)
	})
}
