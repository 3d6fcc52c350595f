// worker ejecuta los trabajos periódicos: barrido de traslados huérfanos y auditoría
// de saldos contra el kardex.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jhoicas/traslados-api/internal/bootstrap"
	"github.com/jhoicas/traslados-api/internal/worker"
	"github.com/jhoicas/traslados-api/pkg/config"
	"github.com/jhoicas/traslados-api/pkg/logger"
	"github.com/jhoicas/traslados-api/pkg/metrics"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel})
	log.Info().
		Str("env", cfg.App.Env).
		Str("store", cfg.App.StoreDriver).
		Msg("iniciando worker")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())

	container, err := bootstrap.Build(ctx, cfg, log, reg)
	if err != nil {
		log.Fatal().Err(err).Msg("inicializar dependencias")
	}
	defer container.Close()

	jobMetrics := metrics.NewJobMetrics(reg)
	runner := worker.NewRunner(log, jobMetrics,
		worker.SweepJob(container.Sweeper, cfg.Worker.SweepInterval),
		worker.AuditJob(container.Reconciler, cfg.Worker.AuditRepair, cfg.Worker.AuditInterval, jobMetrics, log.Component("stock_audit")),
	)

	var srv *http.Server
	if cfg.Worker.MetricsAddr != "" {
		srv = &http.Server{
			Addr:              cfg.Worker.MetricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("servidor de métricas finalizado")
			}
		}()
	}

	if err := runner.Run(ctx); err != nil {
		log.Error().Err(err).Msg("worker detenido por error")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("apagado del servidor de métricas")
		}
	}
	log.Info().Msg("worker detenido")
}
