package worker

import (
	"context"
	"time"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/application/transfer"
	"github.com/jhoicas/traslados-api/pkg/logger"
	"github.com/jhoicas/traslados-api/pkg/metrics"
)

const (
	JobOrphanSweep = "orphan_sweep"
	JobStockAudit  = "stock_audit"
)

// SweepJob borra cabeceras de traslado huérfanas.
func SweepJob(s *transfer.OrphanSweeper, interval time.Duration) Job {
	return Job{
		Name:     JobOrphanSweep,
		Interval: interval,
		Run: func(ctx context.Context) error {
			_, err := s.Sweep(ctx)
			return err
		},
	}
}

// AuditJob compara saldos contra el kardex; con repair reescribe los desviados.
func AuditJob(rec *inventory.Reconciler, repair bool, interval time.Duration, m *metrics.JobMetrics, log *logger.Logger) Job {
	if log == nil {
		log = logger.Nop()
	}
	return Job{
		Name:     JobStockAudit,
		Interval: interval,
		Run: func(ctx context.Context) error {
			report, err := rec.Audit(ctx, repair)
			if err != nil {
				return err
			}
			m.SetDrifts(len(report.Drifts))
			if len(report.Drifts) > 0 {
				log.Warn().
					Int("checked", report.Checked).
					Int("drifts", len(report.Drifts)).
					Bool("repair", repair).
					Msg("saldos desviados del kardex")
			}
			return nil
		},
	}
}
