package main

import (
	"context"
	"flag"

	"rental_manager/internal/config"
	"rental_manager/internal/database"
	"rental_manager/internal/logging"
	"rental_manager/internal/migrations"
	"rental_manager/internal/models"
)

func main() {
	reset := flag.Bool("reset", false, "drop every table before migrating")
	flag.Parse()

	cfg := config.Load()
	log := logging.NewLogger("console", cfg.LogLevel)

	// Initialize database
	db, err := database.Initialize(cfg.DatabaseURL, database.Options{}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}

	if *reset {
		log.Warn().Msg("dropping existing tables")
		err = db.Migrator().DropTable(
			&models.ReturnEvent{},
			&models.RentalItem{},
			&models.RentalOrder{},
			&models.Staff{},
			&models.Customer{},
			&models.Branch{},
		)
		if err != nil {
			log.Warn().Err(err).Msg("error dropping tables")
		}
	}

	err = migrations.RunMigrations(context.Background(), db, migrations.Seed{
		GSTEnabled:        cfg.DefaultGSTEnabled,
		GSTRate:           cfg.DefaultGSTRate,
		GSTIncluded:       cfg.DefaultGSTIncluded,
		LateFeeMultiplier: cfg.LateFeeMultiplier,
		AdminEmail:        cfg.SeedAdminEmail,
		AdminPin:          cfg.SeedAdminPin,
	}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to migrate database")
	}

	log.Info().Msg("database initialization completed")
}
