package handler

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// dependencyProbe pings one backing service. Critical probes gate readiness;
// a failing non-critical probe only degrades the health report.
type dependencyProbe struct {
	name     string
	critical bool
	check    func(ctx context.Context) error
}

// HealthHandler reports the health of the trace and eval stores.
type HealthHandler struct {
	probes    []dependencyProbe
	version   string
	startTime time.Time
}

// NewHealthHandler creates a health handler over the service's backing
// stores. Postgres (eval cases, reports, API keys) and ClickHouse (traces,
// spans, logs) are critical; Redis only serves caching and rate limiting,
// so an outage degrades rather than fails. Nil clients are skipped.
func NewHealthHandler(
	postgres *pgxpool.Pool,
	clickhouse clickhouse.Conn,
	redis *redis.Client,
	version string,
) *HealthHandler {
	h := &HealthHandler{
		version:   version,
		startTime: time.Now(),
	}

	if postgres != nil {
		h.probes = append(h.probes, dependencyProbe{
			name:     "postgres",
			critical: true,
			check:    postgres.Ping,
		})
	}
	if clickhouse != nil {
		h.probes = append(h.probes, dependencyProbe{
			name:     "clickhouse",
			critical: true,
			check:    clickhouse.Ping,
		})
	}
	if redis != nil {
		h.probes = append(h.probes, dependencyProbe{
			name: "redis",
			check: func(ctx context.Context) error {
				return redis.Ping(ctx).Err()
			},
		})
	}

	return h
}

// HealthStatus represents health check status
type HealthStatus struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Uptime    string            `json:"uptime"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks"`
}

// Health handles GET /health
func (h *HealthHandler) Health(c *fiber.Ctx) error {
	status := HealthStatus{
		Status:    "healthy",
		Version:   h.version,
		Uptime:    time.Since(h.startTime).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(c.Context(), 5*time.Second)
	defer cancel()

	for _, probe := range h.probes {
		if err := probe.check(ctx); err != nil {
			status.Checks[probe.name] = "unhealthy: " + err.Error()
			if probe.critical {
				status.Status = "unhealthy"
			} else if status.Status == "healthy" {
				status.Status = "degraded"
			}
			continue
		}
		status.Checks[probe.name] = "healthy"
	}

	// Degraded still serves traffic; only a failed store takes us down.
	statusCode := fiber.StatusOK
	if status.Status == "unhealthy" {
		statusCode = fiber.StatusServiceUnavailable
	}

	return c.Status(statusCode).JSON(status)
}

// Liveness handles GET /livez - basic liveness probe
func (h *HealthHandler) Liveness(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status": "alive",
	})
}

// Readiness handles GET /readyz - readiness probe. Only the critical stores
// gate readiness: ingestion and eval runs survive a Redis outage.
func (h *HealthHandler) Readiness(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 3*time.Second)
	defer cancel()

	for _, probe := range h.probes {
		if !probe.critical {
			continue
		}
		if err := probe.check(ctx); err != nil {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"status": "not ready",
				"reason": probe.name + " unavailable",
			})
		}
	}

	return c.JSON(fiber.Map{
		"status": "ready",
	})
}

// Version handles GET /version
func (h *HealthHandler) Version(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"version": h.version,
		"uptime":  time.Since(h.startTime).String(),
	})
}

// RegisterRoutes registers health check routes
func (h *HealthHandler) RegisterRoutes(app *fiber.App) {
	app.Get("/health", h.Health)
	app.Get("/healthz", h.Health)
	app.Get("/livez", h.Liveness)
	app.Get("/live", h.Liveness)
	app.Get("/readyz", h.Readiness)
	app.Get("/ready", h.Readiness)
	app.Get("/version", h.Version)
}
