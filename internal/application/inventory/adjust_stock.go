package inventory

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/inventory"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

// AdjustInput entrada para un ajuste manual de stock.
// Reference opcional: si se repite, el ajuste no se vuelve a aplicar.
type AdjustInput struct {
	WarehouseID string
	ProductID   string
	LotID       string
	Direction   entity.Direction
	Quantity    decimal.Decimal
	UnitCost    *decimal.Decimal // obligatorio en entradas
	Reference   string
}

// AdjustResult movimiento generado y saldo resultante.
type AdjustResult struct {
	Movement *entity.StockMovement
	Level    *entity.StockLevel
	Replayed bool
}

// ReservationInput aparta o libera stock de una clave.
type ReservationInput struct {
	WarehouseID string
	ProductID   string
	LotID       string
	Quantity    decimal.Decimal
}

// AdjustStockUseCase ajustes de inventario (entradas/salidas fuera de traslados) y reservas.
// Toda escritura pasa por el Poster dentro de una transacción (TxRunner), con bloqueo de fila.
type AdjustStockUseCase struct {
	txRunner      TxRunner
	poster        *Poster
	productRepo   repository.ProductRepository
	warehouseRepo repository.WarehouseRepository
	lotRepo       repository.LotRepository
	retry         RetryPolicy
}

// NewAdjustStockUseCase construye el caso de uso.
func NewAdjustStockUseCase(
	txRunner TxRunner,
	poster *Poster,
	productRepo repository.ProductRepository,
	warehouseRepo repository.WarehouseRepository,
	lotRepo repository.LotRepository,
	retry RetryPolicy,
) *AdjustStockUseCase {
	return &AdjustStockUseCase{
		txRunner:      txRunner,
		poster:        poster,
		productRepo:   productRepo,
		warehouseRepo: warehouseRepo,
		lotRepo:       lotRepo,
		retry:         retry,
	}
}

// Adjust registra un movimiento de ajuste. En entradas recalcula el costo promedio ponderado del producto.
func (uc *AdjustStockUseCase) Adjust(ctx context.Context, actor entity.Actor, in AdjustInput) (*AdjustResult, error) {
	if !in.Direction.IsValid() {
		return nil, domain.NewValidationError("direction", "debe ser in u out")
	}
	if !in.Quantity.GreaterThan(decimal.Zero) {
		return nil, domain.NewValidationError("quantity", "debe ser mayor que cero")
	}
	if in.Direction == entity.DirectionIn && (in.UnitCost == nil || in.UnitCost.IsNegative()) {
		return nil, domain.NewValidationError("unit_cost", "obligatorio y no negativo en entradas")
	}
	product, err := uc.resolveKey(ctx, actor, in.WarehouseID, in.ProductID, in.LotID)
	if err != nil {
		return nil, err
	}

	sourceID := in.Reference
	if sourceID == "" {
		sourceID = uuid.NewString()
	}
	unitCost := product.Cost
	if in.UnitCost != nil {
		unitCost = *in.UnitCost
	}
	key := entity.StockKey{WarehouseID: in.WarehouseID, ProductID: in.ProductID, LotID: in.LotID}

	var res *AdjustResult
	err = uc.retry.Do(ctx, func(ctx context.Context) error {
		return uc.txRunner.Run(ctx, func(ctx context.Context, s Stores) error {
			if in.Reference != "" {
				prev, err := findAdjustment(ctx, s.Movements, in.Reference)
				if err != nil {
					return err
				}
				if prev != nil {
					if !sameAdjustment(prev, actor, in) {
						return domain.NewValidationError("reference", "ya usada por otro ajuste")
					}
					lvl, err := s.Levels.Get(ctx, key)
					if err != nil {
						return err
					}
					res = &AdjustResult{Movement: prev, Level: lvl, Replayed: true}
					return nil
				}
			}
			// Bloquea la fila antes de calcular el costo: el saldo previo entra en el promedio
			before, err := s.Levels.GetForUpdate(ctx, key)
			if err != nil {
				return err
			}
			m, applied, err := uc.poster.Post(ctx, s, RecordInput{
				CompanyID:      actor.CompanyID,
				WarehouseID:    in.WarehouseID,
				ProductID:      in.ProductID,
				LotID:          in.LotID,
				Direction:      in.Direction,
				Quantity:       in.Quantity,
				SourceKind:     entity.SourceAdjustment,
				SourceID:       sourceID,
				IdempotencyKey: sourceID,
				UnitCost:       unitCost,
				Actor:          actor.UserID,
			})
			if err != nil {
				return err
			}
			if applied && in.Direction == entity.DirectionIn {
				current, err := s.Products.GetByID(ctx, in.ProductID)
				if err != nil {
					return err
				}
				newCost := inventory.CostCalculator(before.OnHand, current.Cost, in.Quantity, unitCost)
				if err := s.Products.UpdateCost(ctx, in.ProductID, newCost); err != nil {
					return err
				}
			}
			lvl, err := s.Levels.Get(ctx, key)
			if err != nil {
				return err
			}
			res = &AdjustResult{Movement: m, Level: lvl, Replayed: !applied}
			return nil
		})
	})
	if err != nil {
		return nil, domain.AsPersistence("ajustar stock", err)
	}
	return res, nil
}

// findAdjustment ajuste ya registrado con esa referencia, en cualquier dirección.
func findAdjustment(ctx context.Context, movements repository.StockMovementRepository, reference string) (*entity.StockMovement, error) {
	list, err := movements.ListBySource(ctx, reference)
	if err != nil {
		return nil, err
	}
	for _, m := range list {
		if m.SourceKind == entity.SourceAdjustment {
			return m, nil
		}
	}
	return nil, nil
}

// sameAdjustment la referencia solo se repite con el mismo ajuste: empresa, clave,
// dirección y cantidad.
func sameAdjustment(m *entity.StockMovement, actor entity.Actor, in AdjustInput) bool {
	return m.CompanyID == actor.CompanyID &&
		m.WarehouseID == in.WarehouseID &&
		m.ProductID == in.ProductID &&
		m.LotID == in.LotID &&
		m.Direction == in.Direction &&
		m.Quantity.Equal(in.Quantity)
}

// Reserve aparta cantidad del disponible (pedidos en preparación, por ejemplo).
func (uc *AdjustStockUseCase) Reserve(ctx context.Context, actor entity.Actor, in ReservationInput) (*entity.StockLevel, error) {
	return uc.reservation(ctx, actor, in, "reservar stock", uc.poster.Projector().Reserve)
}

// Release libera una reserva previa.
func (uc *AdjustStockUseCase) Release(ctx context.Context, actor entity.Actor, in ReservationInput) (*entity.StockLevel, error) {
	return uc.reservation(ctx, actor, in, "liberar reserva", uc.poster.Projector().Release)
}

type reservationFn func(ctx context.Context, levels repository.StockLevelRepository, key entity.StockKey, qty decimal.Decimal) (*entity.StockLevel, error)

func (uc *AdjustStockUseCase) reservation(ctx context.Context, actor entity.Actor, in ReservationInput, op string, fn reservationFn) (*entity.StockLevel, error) {
	if !in.Quantity.GreaterThan(decimal.Zero) {
		return nil, domain.NewValidationError("quantity", "debe ser mayor que cero")
	}
	if _, err := uc.resolveKey(ctx, actor, in.WarehouseID, in.ProductID, in.LotID); err != nil {
		return nil, err
	}
	key := entity.StockKey{WarehouseID: in.WarehouseID, ProductID: in.ProductID, LotID: in.LotID}
	var lvl *entity.StockLevel
	err := uc.retry.Do(ctx, func(ctx context.Context) error {
		return uc.txRunner.Run(ctx, func(ctx context.Context, s Stores) error {
			var err error
			lvl, err = fn(ctx, s.Levels, key, in.Quantity)
			return err
		})
	})
	if err != nil {
		return nil, domain.AsPersistence(op, err)
	}
	return lvl, nil
}

// resolveKey valida que bodega, producto y lote existan y pertenezcan a la empresa del actor.
func (uc *AdjustStockUseCase) resolveKey(ctx context.Context, actor entity.Actor, warehouseID, productID, lotID string) (*entity.Product, error) {
	if warehouseID == "" || productID == "" {
		return nil, domain.NewValidationError("", "warehouse_id y product_id son obligatorios")
	}
	wh, err := uc.warehouseRepo.GetByID(ctx, warehouseID)
	if err != nil {
		return nil, domain.AsPersistence("consultar bodega", err)
	}
	if !wh.BelongsTo(actor.CompanyID) {
		return nil, domain.NewNotFoundError("bodega", warehouseID)
	}
	product, err := uc.productRepo.GetByID(ctx, productID)
	if err != nil {
		return nil, domain.AsPersistence("consultar producto", err)
	}
	if product == nil || product.CompanyID != actor.CompanyID {
		return nil, domain.NewNotFoundError("producto", productID)
	}
	if product.LotTracked && lotID == "" {
		return nil, domain.NewValidationError("lot_id", "el producto exige lote")
	}
	if lotID != "" {
		lot, err := uc.lotRepo.GetByID(ctx, lotID)
		if err != nil {
			return nil, domain.AsPersistence("consultar lote", err)
		}
		if lot == nil || lot.ProductID != productID {
			return nil, domain.NewNotFoundError("lote", lotID)
		}
	}
	return product, nil
}
