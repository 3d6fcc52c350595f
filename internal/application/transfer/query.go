package transfer

import (
	"context"
	"iter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	inv "github.com/jhoicas/traslados-api/internal/domain/inventory"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
	lifecycle "github.com/jhoicas/traslados-api/internal/domain/transfer"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListFilter filtros de listado; la empresa sale del actor.
type ListFilter struct {
	Status        entity.TransferStatus
	WarehouseID   string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// Get traslado con sus líneas y el estado derivado de ellas.
func (s *Service) Get(ctx context.Context, actor entity.Actor, id string) (*entity.Transfer, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	t, err := s.transfers.GetByID(ctx, id)
	if err != nil {
		return nil, domain.AsPersistence("consultar traslado", err)
	}
	if t == nil || t.CompanyID != actor.CompanyID || t.Orphaned {
		return nil, domain.NewNotFoundError("traslado", id)
	}
	if err := s.attachLines(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// List traslados de la empresa del actor, más recientes primero.
func (s *Service) List(ctx context.Context, actor entity.Actor, f ListFilter) ([]*entity.Transfer, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if f.Status != "" && !f.Status.IsValid() {
		return nil, domain.NewValidationError("status", "estado desconocido: "+string(f.Status))
	}
	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	limit = min(limit, maxListLimit)
	items, err := s.transfers.List(ctx, repository.TransferFilter{
		CompanyID:     actor.CompanyID,
		Status:        f.Status,
		WarehouseID:   f.WarehouseID,
		CreatedAfter:  f.CreatedAfter,
		CreatedBefore: f.CreatedBefore,
		Limit:         limit,
		Offset:        max(f.Offset, 0),
	})
	if err != nil {
		return nil, domain.AsPersistence("listar traslados", err)
	}
	for _, t := range items {
		if err := s.attachLines(ctx, t); err != nil {
			return nil, err
		}
	}
	return items, nil
}

func (s *Service) attachLines(ctx context.Context, t *entity.Transfer) error {
	lines, err := s.lines.ListByTransfer(ctx, t.ID)
	if err != nil {
		return domain.AsPersistence("consultar líneas", err)
	}
	t.Lines = lines
	t.Status = lifecycle.Derive(t.Status, lines)
	return nil
}

// Movements kardex generado por el traslado (salidas y entradas) en orden de registro.
func (s *Service) Movements(ctx context.Context, actor entity.Actor, id string) ([]*entity.StockMovement, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	movs, err := s.movements.ListBySource(ctx, id)
	if err != nil {
		return nil, domain.AsPersistence("consultar movimientos", err)
	}
	return movs, nil
}

// AvailableStock disponible (existencia - reservado) de la clave. No bloquea.
func (s *Service) AvailableStock(ctx context.Context, actor entity.Actor, warehouseID, productID, lotID string) (decimal.Decimal, error) {
	if err := checkActor(actor); err != nil {
		return decimal.Zero, err
	}
	if productID == "" {
		return decimal.Zero, domain.NewValidationError("product_id", "obligatorio")
	}
	if err := s.checkWarehouses(ctx, actor, warehouseID); err != nil {
		return decimal.Zero, err
	}
	avail, err := s.projector.Available(ctx, entity.StockKey{WarehouseID: warehouseID, ProductID: productID, LotID: lotID})
	if err != nil {
		return decimal.Zero, domain.AsPersistence("consultar disponible", err)
	}
	return avail, nil
}

// LotsAvailable lotes con disponible en la bodega, en orden FEFO. La secuencia se
// consulta por páginas a medida que se recorre.
func (s *Service) LotsAvailable(ctx context.Context, actor entity.Actor, warehouseID, productID string) (iter.Seq2[inventory.LotAvailability, error], error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if productID == "" {
		return nil, domain.NewValidationError("product_id", "obligatorio")
	}
	if err := s.checkWarehouses(ctx, actor, warehouseID); err != nil {
		return nil, err
	}
	return s.projector.LotsAvailable(ctx, warehouseID, productID), nil
}

// SuggestLots reparto FEFO de qty entre los lotes disponibles. Remaining > 0 indica que no alcanza.
func (s *Service) SuggestLots(ctx context.Context, actor entity.Actor, warehouseID, productID string, qty decimal.Decimal) ([]inv.Allocation, decimal.Decimal, error) {
	if !qty.GreaterThan(decimal.Zero) {
		return nil, decimal.Zero, domain.NewValidationError("quantity", "debe ser mayor que cero")
	}
	if _, err := s.LotsAvailable(ctx, actor, warehouseID, productID); err != nil {
		return nil, decimal.Zero, err
	}
	lots, err := s.collectLots(ctx, warehouseID, productID)
	if err != nil {
		return nil, decimal.Zero, err
	}
	allocs, remaining := inv.AllocateFEFO(lots, qty)
	return allocs, remaining, nil
}
