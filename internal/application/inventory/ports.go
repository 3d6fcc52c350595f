package inventory

import (
	"context"

	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

// Stores repositorios atados a una misma transacción.
type Stores struct {
	Transfers repository.TransferRepository
	Lines     repository.TransferLineRepository
	Movements repository.StockMovementRepository
	Levels    repository.StockLevelRepository
	Products  repository.ProductRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Commit si fn devuelve nil, Rollback en cualquier otro caso (incluida la cancelación del ctx).
// Garantiza que kardex y saldos nunca se escriban por separado.
type TxRunner interface {
	Run(ctx context.Context, fn func(ctx context.Context, s Stores) error) error
}
