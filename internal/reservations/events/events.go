package events

import (
	"context"
	"time"

	"lodgic/pkg/kafka"
	"lodgic/pkg/logger"
	"lodgic/pkg/model"
)

const (
	Topic    = "reservation-events"
	DLQTopic = "reservation-events-dlq"
)

const (
	EventCreated   = "reservation.created"
	EventConfirmed = "reservation.confirmed"
	EventRejected  = "reservation.rejected"
	EventCancelled = "reservation.cancelled"
	EventCompleted = "reservation.completed"
)

// ReservationEvent is the state-change payload published for collaborators
// (notifications, analytics). It carries enough to act on without a read back.
type ReservationEvent struct {
	Event         string    `json:"event"`
	ReservationID string    `json:"reservation_id"`
	Code          string    `json:"code"`
	UnitID        string    `json:"unit_id"`
	RequesterID   string    `json:"requester_id"`
	CheckIn       time.Time `json:"check_in"`
	CheckOut      time.Time `json:"check_out"`
	Status        string    `json:"status"`
	OccurredAt    time.Time `json:"occurred_at"`
}

// Publisher emits reservation state changes. Event publication is best-effort:
// the state transition has already committed when Publish is called.
type Publisher interface {
	Publish(ctx context.Context, eventType string, reservation *model.Reservation) error
	Close() error
}

// KafkaPublisher publishes events keyed by unit id, so all events for a unit
// stay ordered on one partition.
type KafkaPublisher struct {
	producer *kafka.Producer
	log      *logger.Logger
}

func NewKafkaPublisher(producer *kafka.Producer, log *logger.Logger) *KafkaPublisher {
	return &KafkaPublisher{
		producer: producer,
		log:      log,
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, eventType string, reservation *model.Reservation) error {
	event := ReservationEvent{
		Event:         eventType,
		ReservationID: reservation.ID,
		Code:          reservation.Code,
		UnitID:        reservation.UnitID,
		RequesterID:   reservation.RequesterID,
		CheckIn:       reservation.CheckIn,
		CheckOut:      reservation.CheckOut,
		Status:        string(reservation.Status),
		OccurredAt:    time.Now().UTC(),
	}

	msg, err := kafka.NewMessage().
		WithKey(reservation.UnitID).
		WithValue(event).
		WithEventType(eventType).
		WithCorrelationID(reservation.ID).
		WithSource("reservations").
		Build()
	if err != nil {
		return err
	}

	return p.producer.Publish(ctx, msg)
}

func (p *KafkaPublisher) Close() error {
	return p.producer.Close()
}

// NoopPublisher is used when no brokers are configured and in tests.
type NoopPublisher struct{}

func (NoopPublisher) Publish(context.Context, string, *model.Reservation) error { return nil }

func (NoopPublisher) Close() error { return nil }
