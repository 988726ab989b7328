package handlers

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/acme/scatter-gather/internal/app"
	"github.com/acme/scatter-gather/internal/backend"
	"github.com/acme/scatter-gather/internal/infra/redis"
	"github.com/acme/scatter-gather/internal/service/aggregator"
	"github.com/acme/scatter-gather/pkg/logger"
)

// HandlerSet bundles all HTTP handlers.
type HandlerSet struct {
	logger      *logger.Logger
	aggregator  *aggregator.Aggregator
	registry    *backend.Registry
	redis       *redis.Client
	metrics     *prometheus.Registry
	metricsPath string
}

// NewHandlerSet creates a new handler bundle.
func NewHandlerSet(container *app.Container) *HandlerSet {
	return &HandlerSet{
		logger:      container.Logger,
		aggregator:  container.Aggregator(),
		registry:    container.Registry(),
		redis:       container.Redis,
		metrics:     container.MetricsRegistry(),
		metricsPath: container.Config.Metrics.Path,
	}
}

// Register wires all routes onto the fiber app.
func (h *HandlerSet) Register(app *fiber.App) {
	app.Get("/healthz", h.health)

	if h.metrics != nil {
		path := h.metricsPath
		if path == "" {
			path = "/metrics"
		}
		app.Get(path, adaptor.HTTPHandler(promhttp.HandlerFor(h.metrics, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api")
	v1 := api.Group("/v1")

	v1.Get("/backends", h.listBackends)
	v1.Post("/aggregate/:policy", h.aggregate)
}

// ErrorHandler provides centralized error responses.
func (h *HandlerSet) ErrorHandler(ctx *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := err.Error()

	if fiberErr, ok := err.(*fiber.Error); ok {
		code = fiberErr.Code
		message = fiberErr.Message
	}

	if code == fiber.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	return ctx.Status(code).JSON(fiber.Map{
		"error":    message,
		"trace_id": ctx.GetRespHeader("Trace-Id"),
	})
}

func (h *HandlerSet) health(ctx *fiber.Ctx) error {
	healthCtx, cancel := context.WithTimeout(ctx.Context(), 2*time.Second)
	defer cancel()

	errs := make(map[string]string)

	if h.redis != nil {
		if err := h.redis.Ping(healthCtx); err != nil {
			errs["redis"] = err.Error()
		}
	}

	status := fiber.StatusOK
	state := "ok"
	if len(errs) > 0 {
		status = fiber.StatusServiceUnavailable
		state = "degraded"
	}

	return ctx.Status(status).JSON(fiber.Map{"status": state, "errors": errs})
}

func (h *HandlerSet) listBackends(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{"backends": h.registry.IDs()})
}
