package main

import (
	"lodgic/internal/calendar/handler"
	"lodgic/internal/calendar/repository"
	"lodgic/internal/calendar/service"
	"lodgic/pkg/app"
	"lodgic/pkg/client"
	"lodgic/pkg/config"
)

const ServiceName = "calendar"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Calendar service")
	calendarService := initServices(cfg)
	serverApp := app.NewApplication(cfg, handler.NewCalendarHandler(calendarService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.CalendarService {
	calendarRepo := repository.NewMongoCalendarRepository(cfg)
	unitsClient := client.NewUnitsClient(cfg.UnitsBaseURL, cfg.RequestTimeout)
	calendarService := service.NewCalendarService(
		calendarRepo,
		unitsClient,
		cfg,
	)

	cfg.Log.Info("Calendar service initialized", "database", cfg.MongoDatabaseName, "units_base_url", cfg.UnitsBaseURL)
	return calendarService
}
