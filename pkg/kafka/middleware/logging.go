package kafka_middleware

import (
	"context"
	"time"

	"lodgic/pkg/kafka"
	"lodgic/pkg/logger"
)

// LoggingProducerMiddleware logs every publish with its outcome and duration.
func LoggingProducerMiddleware(log *logger.Logger) kafka.ProducerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next func(ctx context.Context, msg kafka.Message) error) error {
		start := time.Now()

		err := next(ctx, msg)

		fields := []any{
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"correlation_id", msg.GetCorrelationID(),
			"duration", time.Since(start).String(),
		}

		if err != nil {
			log.Error("Failed to publish message", append(fields, "error", err)...)
		} else {
			log.Info("Published message", fields...)
		}

		return err
	}
}

// LoggingConsumerMiddleware logs every consumed message with its outcome.
func LoggingConsumerMiddleware(log *logger.Logger) kafka.ConsumerMiddleware {
	return func(ctx context.Context, msg kafka.Message, next kafka.MessageHandler) error {
		start := time.Now()

		err := next(ctx, msg)

		fields := []any{
			"topic", msg.Topic,
			"partition", msg.Partition,
			"offset", msg.Offset,
			"key", msg.Key,
			"event_id", msg.GetEventID(),
			"event_type", msg.GetEventType(),
			"correlation_id", msg.GetCorrelationID(),
			"duration", time.Since(start).String(),
		}

		if err != nil {
			log.Error("Failed to process message", append(fields, "error", err)...)
		} else {
			log.Info("Processed message", fields...)
		}

		return err
	}
}
