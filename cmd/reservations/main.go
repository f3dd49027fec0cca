package main

import (
	"os"

	calrepo "lodgic/internal/calendar/repository"
	"lodgic/internal/reservations/events"
	"lodgic/internal/reservations/handler"
	"lodgic/internal/reservations/repository"
	"lodgic/internal/reservations/service"
	"lodgic/internal/reservations/validator"
	unitsrepo "lodgic/internal/units/repository"
	"lodgic/pkg/app"
	"lodgic/pkg/config"
	"lodgic/pkg/kafka"
	kafka_config "lodgic/pkg/kafka/config"
	kafka_middleware "lodgic/pkg/kafka/middleware"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Reservations service")

	publisher := initPublisher(cfg)
	defer publisher.Close()

	reservationService := initServices(cfg, publisher)
	serverApp := app.NewApplication(cfg, handler.NewReservationHandler(reservationService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config, publisher events.Publisher) service.ReservationService {
	reservationValidator := validator.NewReservationValidator(cfg.Clock, cfg.Log)
	reservationRepo := repository.NewMongoReservationRepository(cfg)
	lockRepo := repository.NewUnitLockRepository(cfg)
	calendarRepo := calrepo.NewMongoCalendarRepository(cfg)
	unitRepo := unitsrepo.NewMongoUnitRepository(cfg)

	reservationService := service.NewReservationService(
		reservationRepo,
		lockRepo,
		calendarRepo,
		unitRepo,
		reservationValidator,
		publisher,
		cfg,
	)

	cfg.Log.Info("Reservation service initialized", "database", cfg.MongoDatabaseName)
	return reservationService
}

// initPublisher wires the Kafka event publisher. When no brokers are
// configured the service runs without events rather than refusing to start.
func initPublisher(cfg *config.Config) events.Publisher {
	if os.Getenv(kafka_config.EnvKafkaBrokers) == "" {
		cfg.Log.Warn("KAFKA_BROKERS not set, reservation events disabled")
		return events.NoopPublisher{}
	}

	kafkaCfg := kafka_config.Load()
	kafkaCfg.LogConfiguration(cfg.Log.Info)

	producer, err := kafka.NewProducer(kafkaCfg, events.Topic, events.DLQTopic)
	if err != nil {
		cfg.Log.Error("Failed to create Kafka producer, reservation events disabled", "error", err)
		return events.NoopPublisher{}
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(cfg.Log))

	return events.NewKafkaPublisher(producer, cfg.Log)
}
