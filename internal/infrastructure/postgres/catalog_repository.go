package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

var (
	_ repository.WarehouseRepository = (*WarehouseRepo)(nil)
	_ repository.ProductRepository   = (*ProductRepo)(nil)
	_ repository.LotRepository       = (*LotRepo)(nil)
)

// WarehouseRepo consulta de bodegas sobre PostgreSQL.
type WarehouseRepo struct {
	q Querier
}

// NewWarehouseRepository construye el adaptador.
func NewWarehouseRepository(q Querier) *WarehouseRepo {
	return &WarehouseRepo{q: q}
}

func (r *WarehouseRepo) GetByID(ctx context.Context, id string) (*entity.Warehouse, error) {
	query := `SELECT id, company_id, name, address, created_at, updated_at FROM warehouses WHERE id = $1`
	var w entity.Warehouse
	err := r.q.QueryRow(ctx, query, id).Scan(&w.ID, &w.CompanyID, &w.Name, &w.Address, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get warehouse", err)
	}
	return &w, nil
}

// ProductRepo consulta de productos y actualización del costo promedio.
type ProductRepo struct {
	q Querier
}

// NewProductRepository construye el adaptador. Acepta pool o tx (Querier).
func NewProductRepository(q Querier) *ProductRepo {
	return &ProductRepo{q: q}
}

func (r *ProductRepo) GetByID(ctx context.Context, id string) (*entity.Product, error) {
	query := `
		SELECT id, company_id, sku, name, lot_tracked, cost, created_at, updated_at
		FROM products WHERE id = $1`
	var p entity.Product
	err := r.q.QueryRow(ctx, query, id).Scan(
		&p.ID, &p.CompanyID, &p.SKU, &p.Name, &p.LotTracked, &p.Cost, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get product", err)
	}
	return &p, nil
}

func (r *ProductRepo) UpdateCost(ctx context.Context, productID string, cost decimal.Decimal) error {
	_, err := r.q.Exec(ctx, `UPDATE products SET cost = $2, updated_at = now() WHERE id = $1`, productID, cost)
	if err != nil {
		return wrapErr("update product cost", err)
	}
	return nil
}

// LotRepo consulta de lotes.
type LotRepo struct {
	q Querier
}

// NewLotRepository construye el adaptador.
func NewLotRepository(q Querier) *LotRepo {
	return &LotRepo{q: q}
}

func (r *LotRepo) GetByID(ctx context.Context, id string) (*entity.Lot, error) {
	query := `SELECT id, product_id, code, expires_at, created_at FROM lots WHERE id = $1`
	var l entity.Lot
	err := r.q.QueryRow(ctx, query, id).Scan(&l.ID, &l.ProductID, &l.Code, &l.ExpiresAt, &l.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get lot", err)
	}
	return &l, nil
}

// CatalogWriter alta/actualización del catálogo mínimo (bodegas, productos, lotes) para cargas iniciales.
type CatalogWriter struct {
	q Querier
}

// NewCatalogWriter construye el adaptador.
func NewCatalogWriter(q Querier) *CatalogWriter {
	return &CatalogWriter{q: q}
}

func (w *CatalogWriter) SaveWarehouse(ctx context.Context, wh entity.Warehouse) error {
	query := `
		INSERT INTO warehouses (id, company_id, name, address)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, address = EXCLUDED.address, updated_at = now()`
	if _, err := w.q.Exec(ctx, query, wh.ID, wh.CompanyID, wh.Name, wh.Address); err != nil {
		return wrapErr("save warehouse", err)
	}
	return nil
}

// SaveProduct no pisa el costo de un producto existente: el promedio lo mantienen los ajustes.
func (w *CatalogWriter) SaveProduct(ctx context.Context, p entity.Product) error {
	query := `
		INSERT INTO products (id, company_id, sku, name, lot_tracked, cost)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET sku = EXCLUDED.sku, name = EXCLUDED.name,
			lot_tracked = EXCLUDED.lot_tracked, updated_at = now()`
	if _, err := w.q.Exec(ctx, query, p.ID, p.CompanyID, p.SKU, p.Name, p.LotTracked, p.Cost); err != nil {
		return wrapErr("save product", err)
	}
	return nil
}

func (w *CatalogWriter) SaveLot(ctx context.Context, l entity.Lot) error {
	query := `
		INSERT INTO lots (id, product_id, code, expires_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET code = EXCLUDED.code, expires_at = EXCLUDED.expires_at`
	if _, err := w.q.Exec(ctx, query, l.ID, l.ProductID, l.Code, l.ExpiresAt); err != nil {
		return wrapErr("save lot", err)
	}
	return nil
}
