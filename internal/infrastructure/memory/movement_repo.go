package memory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

// StockMovementRepo kardex en memoria: solo agrega, nunca modifica.
type StockMovementRepo struct{ sc scope }

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

func (r *StockMovementRepo) Append(_ context.Context, m *entity.StockMovement) (bool, error) {
	created := false
	err := r.sc.write(OpMovementAppend, func(d *data) error {
		if !m.Quantity.GreaterThan(decimal.Zero) {
			return fmt.Errorf("agregar movimiento: %w", domain.ErrInvalidInput)
		}
		ref := m.IdempotencyRef()
		if i, ok := d.refs[ref]; ok {
			*m = d.movements[i]
			return nil
		}
		d.refs[ref] = len(d.movements)
		d.movements = append(d.movements, *m)
		created = true
		return nil
	})
	return created, err
}

func (r *StockMovementRepo) GetByRef(_ context.Context, ref entity.MovementRef) (*entity.StockMovement, error) {
	var out *entity.StockMovement
	err := r.sc.read(func(d *data) error {
		if i, ok := d.refs[ref]; ok {
			m := d.movements[i]
			out = &m
		}
		return nil
	})
	return out, err
}

func (r *StockMovementRepo) ListBySource(_ context.Context, sourceID string) ([]*entity.StockMovement, error) {
	var out []*entity.StockMovement
	err := r.sc.read(func(d *data) error {
		for _, m := range d.movements {
			if m.SourceID == sourceID {
				out = append(out, &m)
			}
		}
		return nil
	})
	return out, err
}

func (r *StockMovementRepo) CountBySource(_ context.Context, sourceID string) (int, error) {
	n := 0
	err := r.sc.read(func(d *data) error {
		for _, m := range d.movements {
			if m.SourceID == sourceID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r *StockMovementRepo) SumByKey(_ context.Context, key entity.StockKey) (decimal.Decimal, error) {
	sum := decimal.Zero
	err := r.sc.read(func(d *data) error {
		for _, m := range d.movements {
			if m.Key() == key {
				sum = sum.Add(m.SignedQuantity())
			}
		}
		return nil
	})
	return sum, err
}
