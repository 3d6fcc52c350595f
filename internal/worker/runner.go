// Package worker ejecuta trabajos periódicos de mantenimiento (barrido de huérfanos,
// auditoría de saldos) hasta que se cancela el contexto.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/traslados-api/pkg/logger"
	"github.com/jhoicas/traslados-api/pkg/metrics"
)

// Job trabajo periódico. Interval <= 0 lo deshabilita.
type Job struct {
	Name     string
	Interval time.Duration
	Run      func(ctx context.Context) error
}

// Runner agenda cada Job en su propia goroutine.
type Runner struct {
	jobs    []Job
	log     *logger.Logger
	metrics *metrics.JobMetrics
}

// NewRunner construye el runner.
func NewRunner(log *logger.Logger, m *metrics.JobMetrics, jobs ...Job) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	return &Runner{jobs: jobs, log: log.Component("worker"), metrics: m}
}

// Run bloquea hasta que ctx se cancela. Un fallo de un job se registra y no detiene a los demás;
// solo un pánico recuperado termina el runner con error.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, job := range r.jobs {
		if job.Interval <= 0 {
			r.log.Info().Str("job", job.Name).Msg("job deshabilitado")
			continue
		}
		g.Go(func() error { return r.loop(ctx, job) })
	}
	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Runner) loop(ctx context.Context, job Job) error {
	ticker := time.NewTicker(job.Interval)
	defer ticker.Stop()
	r.log.Info().Str("job", job.Name).Dur("interval", job.Interval).Msg("job agendado")
	for {
		if err := r.RunOnce(ctx, job); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// RunOnce ejecuta el job una vez, registra duración y resultado. Solo devuelve error si el job
// entró en pánico.
func (r *Runner) RunOnce(ctx context.Context, job Job) (err error) {
	start := time.Now()
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job %s: pánico: %v", job.Name, p)
			r.metrics.Observe(job.Name, time.Since(start), err)
			r.log.Error().Str("job", job.Name).Interface("panic", p).Msg("job abortado")
		}
	}()

	runErr := job.Run(ctx)
	r.metrics.Observe(job.Name, time.Since(start), runErr)
	if runErr != nil && ctx.Err() == nil {
		r.log.Error().Err(runErr).Str("job", job.Name).Dur("took", time.Since(start)).Msg("job fallido")
		return nil
	}
	r.log.Debug().Str("job", job.Name).Dur("took", time.Since(start)).Msg("job completado")
	return nil
}
