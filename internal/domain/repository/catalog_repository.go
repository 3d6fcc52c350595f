package repository

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// WarehouseRepository consulta de bodegas (colaborador de identidad). nil, nil si no existe.
type WarehouseRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Warehouse, error)
}

// ProductRepository consulta de productos del catálogo. nil, nil si no existe.
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Product, error)
	UpdateCost(ctx context.Context, productID string, cost decimal.Decimal) error
}

// LotRepository consulta de lotes del catálogo. nil, nil si no existe.
type LotRepository interface {
	GetByID(ctx context.Context, id string) (*entity.Lot, error)
}
