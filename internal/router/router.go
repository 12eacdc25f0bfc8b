package router

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/t766/control/internal/config"
	"github.com/t766/control/internal/handlers"
	"github.com/t766/control/internal/logging"
	"github.com/t766/control/internal/middleware"
)

// Setup configures all routes and middlewares
func Setup(app *fiber.App, logger *logging.Logger, h *handlers.Handler, cfg config.Config) {
	// Global middlewares
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: "GET,POST,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization,X-API-Key,X-Request-ID",
	}))
	app.Use(logging.FiberMiddleware(logger, logging.DefaultMiddlewareConfig()))

	// Health check (no auth required)
	app.Get("/health", h.Health)

	// Node-facing routes. Agents carry no credentials.
	app.Get("/manifests", h.GetManifests)
	app.Get("/data/:filename", h.GetDataFile)
	app.Post("/puppet-sync", h.SubmitSync)

	// Dashboard read API
	v1 := app.Group("/v1", middleware.APIKeyAuth(logger, cfg.Auth))
	v1.Get("/syncs", h.GetSyncMatrix)
	v1.Get("/logs", h.GetLogs)
	v1.Get("/checkins", h.ListCheckins)
	v1.Get("/checkins/:hostname", h.GetCheckin)

	// 404 handler
	app.Use(h.NotFound)
}

// New creates a new Fiber app with configuration
func New(logger *logging.Logger, h *handlers.Handler, cfg config.Config) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "T766 Collector",
		DisableStartupMessage: true,
		BodyLimit:             cfg.Server.BodyLimit,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	Setup(app, logger, h, cfg)

	return app
}
