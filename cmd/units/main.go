package main

import (
	"lodgic/internal/units/handler"
	"lodgic/internal/units/repository"
	"lodgic/internal/units/service"
	"lodgic/internal/units/validator"
	"lodgic/pkg/app"
	"lodgic/pkg/config"
)

const ServiceName = "units"

func main() {
	cfg := config.Load(ServiceName)
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	cfg.Log.Info("Starting Units service")
	unitService := initServices(cfg)
	serverApp := app.NewApplication(cfg, handler.NewUnitHandler(unitService, cfg.Log))
	serverApp.Run()
}

func initServices(cfg *config.Config) service.UnitService {
	unitValidator := validator.NewUnitValidator(cfg.Log)
	unitRepo := repository.NewMongoUnitRepository(cfg)
	unitService := service.NewUnitService(
		unitRepo,
		unitValidator,
		cfg,
	)

	cfg.Log.Info("Unit service initialized", "database", cfg.MongoDatabaseName)
	return unitService
}
