package transfer

import (
	"context"

	"go.uber.org/multierr"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
	"github.com/jhoicas/traslados-api/pkg/logger"
	"github.com/jhoicas/traslados-api/pkg/metrics"
)

const sweepBatch = 100

// OrphanSweeper borra las cabeceras que quedaron marcadas como huérfanas
// cuando la compensación de una creación no pudo eliminarlas.
type OrphanSweeper struct {
	transfers repository.TransferRepository
	txRunner  inventory.TxRunner
	log       *logger.Logger
	metrics   *metrics.TransferMetrics
}

// NewOrphanSweeper construye el sweeper.
func NewOrphanSweeper(transfers repository.TransferRepository, txRunner inventory.TxRunner, log *logger.Logger, m *metrics.TransferMetrics) *OrphanSweeper {
	if log == nil {
		log = logger.Nop()
	}
	return &OrphanSweeper{transfers: transfers, txRunner: txRunner, log: log.Component("orphan_sweeper"), metrics: m}
}

// Sweep elimina un lote de huérfanas sin movimientos. Los errores individuales no detienen
// el barrido; se devuelven combinados.
func (w *OrphanSweeper) Sweep(ctx context.Context) (int, error) {
	orphans, err := w.transfers.ListOrphaned(ctx, sweepBatch)
	if err != nil {
		return 0, err
	}
	var errs error
	deleted := 0
	for _, o := range orphans {
		removed := false
		err := w.txRunner.Run(ctx, func(ctx context.Context, st inventory.Stores) error {
			n, err := st.Movements.CountBySource(ctx, o.ID)
			if err != nil || n > 0 {
				if n > 0 {
					w.log.Warn().Str("transfer_id", o.ID).Int("movements", n).Msg("huérfana con movimientos; se conserva")
				}
				return err
			}
			if err := st.Lines.DeleteByTransfer(ctx, o.ID); err != nil {
				return err
			}
			if err := st.Transfers.Delete(ctx, o.ID); err != nil {
				return err
			}
			removed = true
			return nil
		})
		if removed && err == nil {
			deleted++
		}
		if err != nil {
			errs = multierr.Append(errs, err)
			if ctx.Err() != nil {
				break
			}
		}
	}
	w.metrics.AddOrphansSwept(deleted)
	if deleted > 0 {
		w.log.Info().Int("deleted", deleted).Msg("huérfanas eliminadas")
	}
	return deleted, errs
}
