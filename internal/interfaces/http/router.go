package http

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/application/transfer"
	"github.com/jhoicas/traslados-api/pkg/jwt"
	"github.com/jhoicas/traslados-api/pkg/logger"
)

// RouterDeps dependencias para el router.
type RouterDeps struct {
	Transfers      *transfer.Service
	AdjustStock    *inventory.AdjustStockUseCase
	JWTSecret      string
	Idempotency    IdempotencyStore // nil = sin caché de respuestas
	IdempotencyTTL time.Duration
	Gatherer       prometheus.Gatherer // nil = sin /metrics
	HealthCheck    func(ctx context.Context) error
	AppName        string
	Logger         *logger.Logger
}

// Router registra las rutas de la API y las de operación (/health, /metrics).
func Router(app *fiber.App, deps RouterDeps) {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}

	app.Get("/health", func(c *fiber.Ctx) error {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(c.UserContext()); err != nil {
				return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"status": "degraded", "service": deps.AppName, "error": err.Error()})
			}
		}
		return c.JSON(fiber.Map{"status": "ok", "service": deps.AppName})
	})
	if deps.Gatherer != nil {
		app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := app.Group("/api", AuthMiddleware(deps.JWTSecret))

	read := RequireRole(jwt.RoleAdmin, jwt.RoleBodeguero, jwt.RoleAuditor)
	write := RequireRole(jwt.RoleAdmin, jwt.RoleBodeguero)
	adminOnly := RequireRole(jwt.RoleAdmin)
	idem := Idempotency(deps.Idempotency, deps.IdempotencyTTL, log.Component("idempotency"))

	// Traslados
	transfers := api.Group("/transfers")
	th := NewTransferHandler(deps.Transfers)
	transfers.Post("/", write, idem, th.Create)
	transfers.Get("/", read, th.List)
	transfers.Get("/:id", read, th.Get)
	transfers.Delete("/:id", write, th.Delete)
	transfers.Post("/:id/submit", write, idem, th.Submit)
	transfers.Post("/:id/dispatch", write, idem, th.Dispatch)
	transfers.Post("/:id/receive", write, idem, th.Receive)
	transfers.Post("/:id/cancel", write, idem, th.Cancel)
	transfers.Get("/:id/movements", read, th.Movements)

	// Stock: consultas, ajustes y reservas
	stock := api.Group("/stock")
	sh := NewStockHandler(deps.Transfers, deps.AdjustStock)
	stock.Get("/available", read, sh.Available)
	stock.Get("/lots", read, sh.Lots)
	stock.Get("/lots/suggestion", read, sh.Suggestion)
	stock.Post("/adjustments", adminOnly, idem, sh.Adjust)
	stock.Post("/reservations", write, idem, sh.Reserve)
	stock.Post("/reservations/release", write, idem, sh.Release)
}
