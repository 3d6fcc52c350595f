package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction sentido de un movimiento del kardex.
type Direction string

const (
	DirectionIn  Direction = "in"  // entrada
	DirectionOut Direction = "out" // salida
)

// IsValid indica si la dirección es conocida.
func (d Direction) IsValid() bool { return d == DirectionIn || d == DirectionOut }

// SourceKind origen de negocio del movimiento.
type SourceKind string

const (
	SourceTransferOut SourceKind = "transfer_out"
	SourceTransferIn  SourceKind = "transfer_in"
	SourceAdjustment  SourceKind = "adjustment"
)

// IsValid indica si el origen es conocido.
func (k SourceKind) IsValid() bool {
	return k == SourceTransferOut || k == SourceTransferIn || k == SourceAdjustment
}

// StockMovement entrada inmutable del kardex. Una vez escrita no se actualiza ni se borra.
// Quantity siempre es positiva; el signo lo da Direction.
type StockMovement struct {
	ID             string
	CompanyID      string
	WarehouseID    string
	ProductID      string
	LotID          string
	Direction      Direction
	Quantity       decimal.Decimal
	SourceKind     SourceKind
	SourceID       string // ID del traslado o del ajuste
	LineID         string
	IdempotencyKey string
	UnitCost       decimal.Decimal
	Actor          string // UserID
	CreatedAt      time.Time
}

// SignedQuantity +q para entradas, -q para salidas.
func (m StockMovement) SignedQuantity() decimal.Decimal {
	if m.Direction == DirectionOut {
		return m.Quantity.Neg()
	}
	return m.Quantity
}

// Key clave de stock afectada por el movimiento.
func (m StockMovement) Key() StockKey {
	return StockKey{WarehouseID: m.WarehouseID, ProductID: m.ProductID, LotID: m.LotID}
}

// IdempotencyRef combinación única (origen, id origen, dirección, clave).
func (m StockMovement) IdempotencyRef() MovementRef {
	return MovementRef{SourceKind: m.SourceKind, SourceID: m.SourceID, Direction: m.Direction, Key: m.IdempotencyKey}
}

// MovementRef identifica de forma única un movimiento para reintentos idempotentes.
type MovementRef struct {
	SourceKind SourceKind
	SourceID   string
	Direction  Direction
	Key        string
}
