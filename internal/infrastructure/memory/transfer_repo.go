package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

// TransferRepo cabeceras de traslado en memoria.
type TransferRepo struct{ sc scope }

var _ repository.TransferRepository = (*TransferRepo)(nil)

func (r *TransferRepo) Create(_ context.Context, t *entity.Transfer) error {
	return r.sc.write(OpTransferCreate, func(d *data) error {
		if _, ok := d.transfers[t.ID]; ok {
			return fmt.Errorf("crear traslado %s: %w", t.ID, domain.ErrDuplicate)
		}
		h := *t
		h.Lines = nil
		d.transfers[t.ID] = h
		return nil
	})
}

func (r *TransferRepo) GetByID(_ context.Context, id string) (*entity.Transfer, error) {
	var out *entity.Transfer
	err := r.sc.read(func(d *data) error {
		if t, ok := d.transfers[id]; ok {
			out = &t
		}
		return nil
	})
	return out, err
}

// GetForUpdate en memoria la transacción ya es exclusiva.
func (r *TransferRepo) GetForUpdate(ctx context.Context, id string) (*entity.Transfer, error) {
	return r.GetByID(ctx, id)
}

func (r *TransferRepo) Update(_ context.Context, t *entity.Transfer) error {
	return r.sc.write(OpTransferUpdate, func(d *data) error {
		cur, ok := d.transfers[t.ID]
		if !ok {
			return domain.NewNotFoundError("traslado", t.ID)
		}
		cur.Status = t.Status
		cur.Notes = t.Notes
		cur.DispatchedBy = t.DispatchedBy
		cur.DispatchedAt = t.DispatchedAt
		cur.Orphaned = t.Orphaned
		cur.UpdatedAt = t.UpdatedAt
		d.transfers[t.ID] = cur
		return nil
	})
}

// Delete borra cabecera y líneas; borrar un ID inexistente no es error.
func (r *TransferRepo) Delete(_ context.Context, id string) error {
	return r.sc.write(OpTransferDelete, func(d *data) error {
		delete(d.transfers, id)
		delete(d.lines, id)
		return nil
	})
}

func (r *TransferRepo) MarkOrphaned(_ context.Context, id string) error {
	return r.sc.write(OpTransferOrphan, func(d *data) error {
		t, ok := d.transfers[id]
		if !ok {
			return domain.NewNotFoundError("traslado", id)
		}
		t.Orphaned = true
		d.transfers[id] = t
		return nil
	})
}

func (r *TransferRepo) List(_ context.Context, f repository.TransferFilter) ([]*entity.Transfer, error) {
	var out []*entity.Transfer
	err := r.sc.read(func(d *data) error {
		for _, t := range d.transfers {
			if matches(t, f) {
				out = append(out, &t)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b *entity.Transfer) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
	return paginate(out, f.Offset, f.Limit), nil
}

func (r *TransferRepo) ListOrphaned(_ context.Context, limit int) ([]*entity.Transfer, error) {
	var out []*entity.Transfer
	err := r.sc.read(func(d *data) error {
		for _, t := range d.transfers {
			if t.Orphaned {
				out = append(out, &t)
			}
		}
		return nil
	})
	slices.SortFunc(out, func(a, b *entity.Transfer) int { return strings.Compare(a.ID, b.ID) })
	return paginate(out, 0, limit), err
}

func matches(t entity.Transfer, f repository.TransferFilter) bool {
	if f.CompanyID != "" && t.CompanyID != f.CompanyID {
		return false
	}
	if t.Orphaned {
		return false
	}
	if f.Status != "" && t.Status != f.Status {
		return false
	}
	if f.WarehouseID != "" && t.OriginWarehouseID != f.WarehouseID && t.DestinationWarehouseID != f.WarehouseID {
		return false
	}
	if f.CreatedAfter != nil && t.CreatedAt.Before(*f.CreatedAfter) {
		return false
	}
	if f.CreatedBefore != nil && !t.CreatedAt.Before(*f.CreatedBefore) {
		return false
	}
	return true
}

func paginate[T any](items []T, offset, limit int) []T {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// TransferLineRepo líneas de traslado en memoria.
type TransferLineRepo struct{ sc scope }

var _ repository.TransferLineRepository = (*TransferLineRepo)(nil)

func (r *TransferLineRepo) CreateBatch(_ context.Context, lines []entity.TransferLine) error {
	return r.sc.write(OpLinesCreate, func(d *data) error {
		for _, l := range lines {
			if _, ok := d.transfers[l.TransferID]; !ok {
				return fmt.Errorf("crear línea %s: traslado %s inexistente", l.ID, l.TransferID)
			}
			d.lines[l.TransferID] = append(d.lines[l.TransferID], l)
		}
		return nil
	})
}

func (r *TransferLineRepo) ListByTransfer(_ context.Context, transferID string) ([]entity.TransferLine, error) {
	var out []entity.TransferLine
	err := r.sc.read(func(d *data) error {
		out = slices.Clone(d.lines[transferID])
		return nil
	})
	return out, err
}

func (r *TransferLineRepo) UpdateReceived(_ context.Context, line *entity.TransferLine) error {
	return r.sc.write(OpLinesUpdate, func(d *data) error {
		lines := d.lines[line.TransferID]
		for i := range lines {
			if lines[i].ID == line.ID {
				lines[i].QuantityReceived = line.QuantityReceived
				lines[i].UpdatedAt = line.UpdatedAt
				return nil
			}
		}
		return domain.NewNotFoundError("línea", line.ID)
	})
}

func (r *TransferLineRepo) DeleteByTransfer(_ context.Context, transferID string) error {
	return r.sc.write(OpLinesDelete, func(d *data) error {
		delete(d.lines, transferID)
		return nil
	})
}
