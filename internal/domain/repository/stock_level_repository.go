package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// LotAvailability resultado crudo de disponibilidad por lote (join saldo + lote).
type LotAvailability struct {
	LotID     string
	LotCode   string
	ExpiresAt *time.Time
	OnHand    decimal.Decimal
	Reserved  decimal.Decimal
	Available decimal.Decimal
}

// LotCursor posición para paginación por llave (keyset) en orden FEFO.
type LotCursor struct {
	ExpiresAt *time.Time
	LotID     string
}

// StockLevelRepository puerto para consultar/actualizar saldos por bodega+producto+lote.
// Solo el proyector de stock escribe en él.
type StockLevelRepository interface {
	// Get devuelve un saldo en cero (Version 0) si la clave no tiene fila.
	Get(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error)
	// GetForUpdate igual que Get pero bloqueando la fila (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error)
	// Save escribe con control optimista: falla con domain.ErrConcurrencyConflict si
	// Version no coincide con la persistida. Incrementa level.Version al escribir.
	Save(ctx context.Context, level *entity.StockLevel) error
	// ListLots lotes con disponible > 0 en orden FEFO a partir del cursor (nil = inicio).
	ListLots(ctx context.Context, warehouseID, productID string, after *LotCursor, limit int) ([]LotAvailability, error)
	// List recorre todos los saldos en orden de clave a partir de after (nil = inicio).
	List(ctx context.Context, after *entity.StockKey, limit int) ([]*entity.StockLevel, error)
}
