package inventory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

// RecordInput datos de un movimiento a registrar en el kardex.
// IdempotencyKey vacío toma el LineID.
type RecordInput struct {
	CompanyID      string
	WarehouseID    string
	ProductID      string
	LotID          string
	Direction      entity.Direction
	Quantity       decimal.Decimal
	SourceKind     entity.SourceKind
	SourceID       string
	LineID         string
	IdempotencyKey string
	UnitCost       decimal.Decimal
	Actor          string
}

// StockLedger kardex de solo inserción. Nunca actualiza ni borra movimientos.
type StockLedger struct {
	now func() time.Time
}

// NewStockLedger construye el kardex.
func NewStockLedger() *StockLedger {
	return &StockLedger{now: time.Now}
}

// Record agrega un movimiento. Si ya existe uno con la misma combinación
// (origen, id origen, dirección, clave) no crea otro: devuelve el original y created=false.
func (l *StockLedger) Record(ctx context.Context, movements repository.StockMovementRepository, in RecordInput) (*entity.StockMovement, bool, error) {
	if err := validateRecord(in); err != nil {
		return nil, false, err
	}
	key := in.IdempotencyKey
	if key == "" {
		key = in.LineID
	}
	if key == "" {
		key = uuid.NewString()
	}

	ref := entity.MovementRef{SourceKind: in.SourceKind, SourceID: in.SourceID, Direction: in.Direction, Key: key}
	existing, err := movements.GetByRef(ctx, ref)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	m := &entity.StockMovement{
		ID:             uuid.NewString(),
		CompanyID:      in.CompanyID,
		WarehouseID:    in.WarehouseID,
		ProductID:      in.ProductID,
		LotID:          in.LotID,
		Direction:      in.Direction,
		Quantity:       in.Quantity,
		SourceKind:     in.SourceKind,
		SourceID:       in.SourceID,
		LineID:         in.LineID,
		IdempotencyKey: key,
		UnitCost:       in.UnitCost,
		Actor:          in.Actor,
		CreatedAt:      l.now().UTC(),
	}
	created, err := movements.Append(ctx, m)
	if err != nil {
		return nil, false, err
	}
	return m, created, nil
}

func validateRecord(in RecordInput) error {
	if !in.Quantity.GreaterThan(decimal.Zero) {
		return domain.NewValidationError("quantity", "debe ser mayor que cero")
	}
	if !in.Direction.IsValid() {
		return domain.NewValidationError("direction", "debe ser in u out")
	}
	if !in.SourceKind.IsValid() {
		return domain.NewValidationError("source_kind", "origen desconocido")
	}
	if in.WarehouseID == "" || in.ProductID == "" || in.SourceID == "" {
		return domain.NewValidationError("", "warehouse_id, product_id y source_id son obligatorios")
	}
	return nil
}
