package memory

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

// WarehouseRepo bodegas en memoria.
type WarehouseRepo struct{ sc scope }

var _ repository.WarehouseRepository = (*WarehouseRepo)(nil)

func (r *WarehouseRepo) GetByID(_ context.Context, id string) (*entity.Warehouse, error) {
	var out *entity.Warehouse
	err := r.sc.read(func(d *data) error {
		if w, ok := d.warehouses[id]; ok {
			out = &w
		}
		return nil
	})
	return out, err
}

// ProductRepo productos en memoria.
type ProductRepo struct{ sc scope }

var _ repository.ProductRepository = (*ProductRepo)(nil)

func (r *ProductRepo) GetByID(_ context.Context, id string) (*entity.Product, error) {
	var out *entity.Product
	err := r.sc.read(func(d *data) error {
		if p, ok := d.products[id]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

func (r *ProductRepo) UpdateCost(_ context.Context, productID string, cost decimal.Decimal) error {
	return r.sc.write(OpProductUpdateCost, func(d *data) error {
		p, ok := d.products[productID]
		if !ok {
			return domain.NewNotFoundError("producto", productID)
		}
		p.Cost = cost
		d.products[productID] = p
		return nil
	})
}

// LotRepo lotes en memoria.
type LotRepo struct{ sc scope }

var _ repository.LotRepository = (*LotRepo)(nil)

func (r *LotRepo) GetByID(_ context.Context, id string) (*entity.Lot, error) {
	var out *entity.Lot
	err := r.sc.read(func(d *data) error {
		if l, ok := d.lots[id]; ok {
			out = &l
		}
		return nil
	})
	return out, err
}
