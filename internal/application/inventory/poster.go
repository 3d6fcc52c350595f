package inventory

import (
	"context"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// Poster único camino para mover stock: registra en el kardex y aplica el saldo
// en la misma transacción. Un movimiento repetido (misma referencia idempotente)
// no vuelve a tocar el saldo.
type Poster struct {
	ledger    *StockLedger
	projector *StockProjector
}

// NewPoster construye el poster.
func NewPoster(ledger *StockLedger, projector *StockProjector) *Poster {
	return &Poster{ledger: ledger, projector: projector}
}

// Post registra y proyecta. applied=false indica que el movimiento ya existía.
func (p *Poster) Post(ctx context.Context, s Stores, in RecordInput) (m *entity.StockMovement, applied bool, err error) {
	m, created, err := p.ledger.Record(ctx, s.Movements, in)
	if err != nil {
		return nil, false, err
	}
	if !created {
		return m, false, nil
	}
	if _, err := p.projector.ApplyMovement(ctx, s.Levels, m); err != nil {
		return nil, false, err
	}
	return m, true, nil
}

// Projector expone el proyector usado por el poster.
func (p *Poster) Projector() *StockProjector { return p.projector }
