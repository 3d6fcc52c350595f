package inventory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
	"github.com/jhoicas/traslados-api/pkg/logger"
)

const reconcilePageSize = 200

// Drift diferencia entre el saldo materializado y la suma del kardex.
type Drift struct {
	Key       entity.StockKey `json:"key"`
	OnHand    decimal.Decimal `json:"on_hand"`
	LedgerSum decimal.Decimal `json:"ledger_sum"`
	Repaired  bool            `json:"repaired"`
}

// ReconcileReport resultado de una auditoría de saldos.
type ReconcileReport struct {
	Checked int     `json:"checked"`
	Drifts  []Drift `json:"drifts"`
}

// Reconciler compara cada saldo con el kardex y opcionalmente lo reconstruye.
type Reconciler struct {
	levels    repository.StockLevelRepository
	movements repository.StockMovementRepository
	txRunner  TxRunner
	projector *StockProjector
	log       *logger.Logger
}

// NewReconciler construye el conciliador. levels y movements son repositorios de lectura.
func NewReconciler(
	levels repository.StockLevelRepository,
	movements repository.StockMovementRepository,
	txRunner TxRunner,
	projector *StockProjector,
	log *logger.Logger,
) *Reconciler {
	return &Reconciler{levels: levels, movements: movements, txRunner: txRunner, projector: projector, log: log}
}

// Audit recorre todos los saldos por páginas. La lectura de la página es solo un filtro:
// cada candidato se vuelve a comparar con la fila bloqueada y el kardex leído después del
// bloqueo, así un movimiento confirmado entre ambas lecturas no cuenta como desvío.
// Con repair=true la existencia se reescribe en esa misma transacción.
func (r *Reconciler) Audit(ctx context.Context, repair bool) (ReconcileReport, error) {
	var report ReconcileReport
	var after *entity.StockKey
	for {
		page, err := r.levels.List(ctx, after, reconcilePageSize)
		if err != nil {
			return report, domain.AsPersistence("listar saldos", err)
		}
		for _, lvl := range page {
			report.Checked++
			sum, err := r.movements.SumByKey(ctx, lvl.Key())
			if err != nil {
				return report, domain.AsPersistence("sumar kardex", err)
			}
			if sum.Equal(lvl.OnHand) {
				continue
			}
			d, err := r.confirm(ctx, lvl.Key(), repair)
			if err != nil {
				return report, err
			}
			if d == nil {
				continue
			}
			r.log.Warn().
				Str("warehouse_id", d.Key.WarehouseID).
				Str("product_id", d.Key.ProductID).
				Str("lot_id", d.Key.LotID).
				Str("on_hand", d.OnHand.String()).
				Str("ledger_sum", d.LedgerSum.String()).
				Bool("repaired", d.Repaired).
				Msg("saldo desviado del kardex")
			report.Drifts = append(report.Drifts, *d)
		}
		if len(page) < reconcilePageSize {
			return report, nil
		}
		k := page[len(page)-1].Key()
		after = &k
	}
}

// confirm bloquea el saldo y solo entonces suma el kardex: quien escribe movimientos de la
// clave toma el mismo bloqueo, por lo que ambas lecturas son coherentes. nil si no hay desvío.
func (r *Reconciler) confirm(ctx context.Context, key entity.StockKey, repair bool) (*Drift, error) {
	var out *Drift
	err := r.txRunner.Run(ctx, func(ctx context.Context, s Stores) error {
		out = nil
		lvl, err := s.Levels.GetForUpdate(ctx, key)
		if err != nil {
			return err
		}
		sum, err := s.Movements.SumByKey(ctx, key)
		if err != nil {
			return err
		}
		if sum.Equal(lvl.OnHand) {
			return nil
		}
		d := Drift{Key: key, OnHand: lvl.OnHand, LedgerSum: sum}
		if repair {
			if _, err := r.projector.Rebuild(ctx, s.Levels, lvl, sum); err != nil {
				return err
			}
			d.Repaired = true
		}
		out = &d
		return nil
	})
	if err != nil {
		return nil, domain.AsPersistence("conciliar saldo", err)
	}
	return out, nil
}
