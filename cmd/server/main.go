package main

import (
	"os"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/rs/zerolog"

	"github.com/example/sooq/internal/apperr"
	"github.com/example/sooq/internal/config"
	"github.com/example/sooq/internal/database"
	"github.com/example/sooq/internal/routes"
)

func main() {
	cfg := config.Load()

	logger := zerolog.New(os.Stdout).With().Timestamp().Str("service", "sooq").Logger()

	db := database.Connect(cfg.DatabaseURL)

	app := fiber.New(fiber.Config{
		AppName:      "Sooq Backend",
		ErrorHandler: apperr.ErrorHandler,
	})

	app.Use(recover.New())
	app.Use(fiberlogger.New())

	routes.Register(app, db, cfg, logger)

	logger.Info().Str("port", cfg.AppPort).Msg("starting server")
	if err := app.Listen(":" + cfg.AppPort); err != nil {
		logger.Fatal().Err(err).Msg("fiber.Listen error")
	}
}
