package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// StockKey identifica un saldo por bodega, producto y lote (lote vacío = sin lote).
type StockKey struct {
	WarehouseID string
	ProductID   string
	LotID       string
}

// Less orden total de claves; se usa para bloquear filas siempre en el mismo orden.
func (k StockKey) Less(o StockKey) bool {
	if k.WarehouseID != o.WarehouseID {
		return k.WarehouseID < o.WarehouseID
	}
	if k.ProductID != o.ProductID {
		return k.ProductID < o.ProductID
	}
	return k.LotID < o.LotID
}

// StockLevel saldo materializado de una clave. Derivado del kardex y persistido
// aparte para lecturas O(1); solo lo modifica el proyector de stock.
type StockLevel struct {
	CompanyID   string
	WarehouseID string
	ProductID   string
	LotID       string
	OnHand      decimal.Decimal
	Reserved    decimal.Decimal
	Version     int64 // 0 = la fila aún no existe
	UpdatedAt   time.Time
}

// NewStockLevel saldo vacío para una clave que todavía no tiene fila.
func NewStockLevel(key StockKey) *StockLevel {
	return &StockLevel{
		WarehouseID: key.WarehouseID,
		ProductID:   key.ProductID,
		LotID:       key.LotID,
		OnHand:      decimal.Zero,
		Reserved:    decimal.Zero,
	}
}

// Key clave del saldo.
func (l StockLevel) Key() StockKey {
	return StockKey{WarehouseID: l.WarehouseID, ProductID: l.ProductID, LotID: l.LotID}
}

// Available existencia menos reservado.
func (l StockLevel) Available() decimal.Decimal {
	return l.OnHand.Sub(l.Reserved)
}
