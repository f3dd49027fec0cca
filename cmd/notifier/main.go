package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"lodgic/internal/reservations/events"
	"lodgic/pkg/config"
	"lodgic/pkg/kafka"
	kafka_config "lodgic/pkg/kafka/config"
	kafka_middleware "lodgic/pkg/kafka/middleware"
	"lodgic/pkg/logger"
)

const (
	ServiceName   = "notifier"
	ConsumerGroup = "notifier"
)

func main() {
	cfg := config.Load(ServiceName)
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Notifier service")

	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	consumer, err := kafka.NewConsumer(kafkaCfg, events.Topic, ConsumerGroup, events.DLQTopic, handleEvent(cfg.Log))
	if err != nil {
		cfg.Log.Error("Failed to create Kafka consumer", "error", err)
		os.Exit(1)
	}
	defer consumer.Close()

	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(cfg.Log))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg.Log.Info("Consuming reservation events", "topic", events.Topic, "group", ConsumerGroup)

	if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		cfg.Log.Error("Consumer stopped with error", "error", err)
		os.Exit(1)
	}

	cfg.Log.Info("Notifier shut down")
}

// handleEvent dispatches a reservation event to the matching notification.
// Actual delivery channels (email, SMS) plug in behind this handler.
func handleEvent(log *logger.Logger) kafka.MessageHandler {
	return func(ctx context.Context, msg kafka.Message) error {
		var event events.ReservationEvent
		if err := msg.DecodeValue(&event); err != nil {
			return kafka.NewPermanentError("failed to decode reservation event", err)
		}

		switch event.Event {
		case events.EventCreated:
			log.Info("Notify lessor: new reservation request",
				"reservation_id", event.ReservationID,
				"code", event.Code,
				"unit_id", event.UnitID,
				"check_in", event.CheckIn,
				"check_out", event.CheckOut,
			)
		case events.EventConfirmed:
			log.Info("Notify requester: reservation confirmed",
				"reservation_id", event.ReservationID,
				"code", event.Code,
				"requester_id", event.RequesterID,
			)
		case events.EventRejected:
			log.Info("Notify requester: reservation rejected",
				"reservation_id", event.ReservationID,
				"code", event.Code,
				"requester_id", event.RequesterID,
			)
		case events.EventCancelled:
			log.Info("Notify lessor: reservation cancelled",
				"reservation_id", event.ReservationID,
				"code", event.Code,
				"unit_id", event.UnitID,
			)
		case events.EventCompleted:
			log.Info("Notify requester: stay completed",
				"reservation_id", event.ReservationID,
				"code", event.Code,
				"requester_id", event.RequesterID,
			)
		default:
			log.Warn("Unknown reservation event", "event", event.Event, "reservation_id", event.ReservationID)
		}

		return nil
	}
}
