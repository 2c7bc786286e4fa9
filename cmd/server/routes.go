package main

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerRoutes registers all HTTP routes
func registerRoutes(app *fiber.App, deps *Dependencies) {
	// Health and docs need no auth
	deps.HealthHandler.RegisterRoutes(app)
	deps.DocsHandler.RegisterRoutes(app)

	// Prometheus scrape endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// Each handler guards its own routes with the auth middleware. The
	// write-heavy groups get an extra per-key or burst limiter.
	mw := deps.AuthMiddleware
	rl := deps.RateLimitMiddleware
	deps.AuthHandler.RegisterRoutes(app, mw)
	deps.IngestionHandler.RegisterRoutes(app, mw, rl.BurstRateLimit(200, 100))
	deps.OTelHandler.RegisterRoutes(app, mw)
	deps.TracesHandler.RegisterRoutes(app, mw)
	deps.EvalsHandler.RegisterRoutes(app, mw, rl.APIKeyRateLimit(120))
	deps.AnalyticsHandler.RegisterRoutes(app, mw)
	deps.AgentHandler.RegisterRoutes(app, mw, rl.APIKeyRateLimit(30))
	deps.EventsHandler.RegisterRoutes(app, mw)
	deps.APIKeysHandler.RegisterRoutes(app, mw)
}
