package repository

import (
	"context"
	"time"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// TransferFilter criterios de listado de traslados.
type TransferFilter struct {
	CompanyID     string
	Status        entity.TransferStatus // vacío = todos
	WarehouseID   string                // origen o destino; vacío = todas
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
	Offset        int
}

// TransferRepository puerto de persistencia de cabeceras de traslado (DIP).
// Las líneas viven en TransferLineRepository; Get* devuelve nil, nil si no existe.
type TransferRepository interface {
	Create(ctx context.Context, t *entity.Transfer) error
	GetByID(ctx context.Context, id string) (*entity.Transfer, error)
	// GetForUpdate bloquea la cabecera (SELECT FOR UPDATE): serializa operaciones sobre el mismo traslado.
	GetForUpdate(ctx context.Context, id string) (*entity.Transfer, error)
	// Update persiste estado, datos de despacho y marca de huérfano.
	Update(ctx context.Context, t *entity.Transfer) error
	Delete(ctx context.Context, id string) error
	MarkOrphaned(ctx context.Context, id string) error
	List(ctx context.Context, filter TransferFilter) ([]*entity.Transfer, error)
	ListOrphaned(ctx context.Context, limit int) ([]*entity.Transfer, error)
}

// TransferLineRepository puerto de persistencia de líneas de traslado.
type TransferLineRepository interface {
	CreateBatch(ctx context.Context, lines []entity.TransferLine) error
	ListByTransfer(ctx context.Context, transferID string) ([]entity.TransferLine, error)
	// UpdateReceived solo toca quantity_received y updated_at.
	UpdateReceived(ctx context.Context, line *entity.TransferLine) error
	DeleteByTransfer(ctx context.Context, transferID string) error
}
