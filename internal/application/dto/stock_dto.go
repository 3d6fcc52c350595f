package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	inv "github.com/jhoicas/traslados-api/internal/domain/inventory"
)

// AdjustStockRequest body para POST /api/stock/adjustments.
// unit_cost es obligatorio en entradas; reference hace el ajuste idempotente.
type AdjustStockRequest struct {
	WarehouseID string           `json:"warehouse_id" validate:"required,uuid"`
	ProductID   string           `json:"product_id" validate:"required,uuid"`
	LotID       string           `json:"lot_id,omitempty" validate:"omitempty,uuid"`
	Direction   string           `json:"direction" validate:"required,oneof=in out"`
	Quantity    decimal.Decimal  `json:"quantity" validate:"gt=0"`
	UnitCost    *decimal.Decimal `json:"unit_cost,omitempty" validate:"omitempty,gte=0"`
	Reference   string           `json:"reference,omitempty" validate:"omitempty,max=100"`
}

// ToInput convierte el request al input del caso de uso.
func (r AdjustStockRequest) ToInput() inventory.AdjustInput {
	return inventory.AdjustInput{
		WarehouseID: r.WarehouseID,
		ProductID:   r.ProductID,
		LotID:       r.LotID,
		Direction:   entity.Direction(r.Direction),
		Quantity:    r.Quantity,
		UnitCost:    r.UnitCost,
		Reference:   r.Reference,
	}
}

// ReservationRequest body para reservar o liberar stock.
type ReservationRequest struct {
	WarehouseID string          `json:"warehouse_id" validate:"required,uuid"`
	ProductID   string          `json:"product_id" validate:"required,uuid"`
	LotID       string          `json:"lot_id,omitempty" validate:"omitempty,uuid"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gt=0"`
}

// ToInput convierte el request al input del caso de uso.
func (r ReservationRequest) ToInput() inventory.ReservationInput {
	return inventory.ReservationInput{
		WarehouseID: r.WarehouseID,
		ProductID:   r.ProductID,
		LotID:       r.LotID,
		Quantity:    r.Quantity,
	}
}

// StockQuery parámetros de consulta de disponibilidad.
type StockQuery struct {
	WarehouseID string `query:"warehouse_id" validate:"required,uuid"`
	ProductID   string `query:"product_id" validate:"required,uuid"`
	LotID       string `query:"lot_id" validate:"omitempty,uuid"`
	Quantity    string `query:"quantity" validate:"omitempty,numeric"`
}

// StockLevelResponse saldo materializado de una clave.
type StockLevelResponse struct {
	WarehouseID string          `json:"warehouse_id"`
	ProductID   string          `json:"product_id"`
	LotID       string          `json:"lot_id,omitempty"`
	OnHand      decimal.Decimal `json:"on_hand"`
	Reserved    decimal.Decimal `json:"reserved"`
	Available   decimal.Decimal `json:"available"`
	Version     int64           `json:"version"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// FromStockLevel mapea el saldo.
func FromStockLevel(l *entity.StockLevel) StockLevelResponse {
	return StockLevelResponse{
		WarehouseID: l.WarehouseID,
		ProductID:   l.ProductID,
		LotID:       l.LotID,
		OnHand:      l.OnHand,
		Reserved:    l.Reserved,
		Available:   l.Available(),
		Version:     l.Version,
		UpdatedAt:   l.UpdatedAt,
	}
}

// AdjustStockResponse movimiento generado y saldo resultante.
type AdjustStockResponse struct {
	Movement MovementResponse   `json:"movement"`
	Level    StockLevelResponse `json:"level"`
	Replayed bool               `json:"replayed"`
}

// FromAdjust mapea el resultado del ajuste.
func FromAdjust(r *inventory.AdjustResult) AdjustStockResponse {
	return AdjustStockResponse{
		Movement: FromMovements([]*entity.StockMovement{r.Movement})[0],
		Level:    FromStockLevel(r.Level),
		Replayed: r.Replayed,
	}
}

// AvailableStockResponse disponible (existencia - reservado) de una clave.
type AvailableStockResponse struct {
	WarehouseID string          `json:"warehouse_id"`
	ProductID   string          `json:"product_id"`
	LotID       string          `json:"lot_id,omitempty"`
	Available   decimal.Decimal `json:"available"`
}

// LotsAvailableResponse lotes con disponible en orden FEFO.
type LotsAvailableResponse struct {
	WarehouseID string                      `json:"warehouse_id"`
	ProductID   string                      `json:"product_id"`
	Lots        []inventory.LotAvailability `json:"lots"`
}

// LotAllocationResponse cantidad sugerida de un lote.
type LotAllocationResponse struct {
	LotID     string          `json:"lot_id"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// LotSuggestionResponse reparto FEFO sugerido; sufficient=false si no alcanza.
type LotSuggestionResponse struct {
	Allocations []LotAllocationResponse `json:"allocations"`
	Remaining   decimal.Decimal         `json:"remaining"`
	Sufficient  bool                    `json:"sufficient"`
}

// FromAllocations mapea el reparto FEFO.
func FromAllocations(allocs []inv.Allocation, remaining decimal.Decimal) LotSuggestionResponse {
	out := LotSuggestionResponse{
		Allocations: make([]LotAllocationResponse, 0, len(allocs)),
		Remaining:   remaining,
		Sufficient:  !remaining.GreaterThan(decimal.Zero),
	}
	for _, a := range allocs {
		out.Allocations = append(out.Allocations, LotAllocationResponse{LotID: a.LotID, ExpiresAt: a.ExpiresAt, Quantity: a.Quantity})
	}
	return out
}
