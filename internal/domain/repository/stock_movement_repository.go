package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// StockMovementRepository puerto del kardex: solo inserción y lectura, nunca update/delete.
type StockMovementRepository interface {
	// Append inserta el movimiento salvo que ya exista uno con la misma referencia idempotente;
	// en ese caso carga el existente en m y devuelve created=false.
	Append(ctx context.Context, m *entity.StockMovement) (created bool, err error)
	GetByRef(ctx context.Context, ref entity.MovementRef) (*entity.StockMovement, error)
	ListBySource(ctx context.Context, sourceID string) ([]*entity.StockMovement, error)
	CountBySource(ctx context.Context, sourceID string) (int, error)
	// SumByKey suma con signo de todos los movimientos de la clave (existencia autoritativa).
	SumByKey(ctx context.Context, key entity.StockKey) (decimal.Decimal, error)
}
