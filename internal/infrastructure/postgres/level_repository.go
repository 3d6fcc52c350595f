package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

var _ repository.StockLevelRepository = (*StockLevelRepo)(nil)

const levelColumns = `company_id, warehouse_id, product_id, lot_id, on_hand, reserved, version, updated_at`

// StockLevelRepo saldos materializados con control optimista por versión.
type StockLevelRepo struct {
	q Querier
}

// NewStockLevelRepository construye el adaptador. Acepta pool o tx (Querier).
func NewStockLevelRepository(q Querier) *StockLevelRepo {
	return &StockLevelRepo{q: q}
}

func scanLevel(row pgx.Row) (*entity.StockLevel, error) {
	var l entity.StockLevel
	if err := row.Scan(&l.CompanyID, &l.WarehouseID, &l.ProductID, &l.LotID,
		&l.OnHand, &l.Reserved, &l.Version, &l.UpdatedAt); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *StockLevelRepo) Get(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	return r.get(ctx, "get stock level", "", key)
}

// GetForUpdate bloquea la fila si existe. Una clave sin fila no se puede bloquear: el CAS de
// Save (INSERT ... ON CONFLICT DO NOTHING) detecta la carrera.
func (r *StockLevelRepo) GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	return r.get(ctx, "lock stock level", " FOR UPDATE", key)
}

func (r *StockLevelRepo) get(ctx context.Context, op, suffix string, key entity.StockKey) (*entity.StockLevel, error) {
	query := `
		SELECT ` + levelColumns + `
		FROM stock_levels
		WHERE warehouse_id = $1 AND product_id = $2 AND lot_id = $3` + suffix
	lvl, err := scanLevel(r.q.QueryRow(ctx, query, key.WarehouseID, key.ProductID, key.LotID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return entity.NewStockLevel(key), nil
		}
		return nil, wrapErr(op, err)
	}
	return lvl, nil
}

// Save Version 0 inserta la fila; cualquier otra versión actualiza solo si coincide con la persistida.
func (r *StockLevelRepo) Save(ctx context.Context, level *entity.StockLevel) error {
	var (
		query string
		args  []any
	)
	if level.Version == 0 {
		// company_id vacío: se toma de la bodega.
		query = `
			INSERT INTO stock_levels (` + levelColumns + `)
			VALUES (COALESCE(NULLIF($1, '')::uuid, (SELECT company_id FROM warehouses WHERE id = $2)),
				$2, $3, $4, $5, $6, 1, $7)
			ON CONFLICT (warehouse_id, product_id, lot_id) DO NOTHING`
		args = []any{level.CompanyID, level.WarehouseID, level.ProductID, level.LotID,
			level.OnHand, level.Reserved, level.UpdatedAt}
	} else {
		query = `
			UPDATE stock_levels
			SET on_hand = $4, reserved = $5, version = version + 1, updated_at = $6
			WHERE warehouse_id = $1 AND product_id = $2 AND lot_id = $3 AND version = $7`
		args = []any{level.WarehouseID, level.ProductID, level.LotID,
			level.OnHand, level.Reserved, level.UpdatedAt, level.Version}
	}

	tag, err := r.q.Exec(ctx, query, args...)
	if err != nil {
		return wrapErr("save stock level", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("save stock level %v (version %d): %w", level.Key(), level.Version, domain.ErrConcurrencyConflict)
	}
	level.Version++
	return nil
}

// ListLots lotes con disponible positivo en orden FEFO; lotes sin ficha en catálogo van al final.
func (r *StockLevelRepo) ListLots(ctx context.Context, warehouseID, productID string, after *repository.LotCursor, limit int) ([]repository.LotAvailability, error) {
	query := `
		SELECT s.lot_id, COALESCE(l.code, ''), l.expires_at, s.on_hand, s.reserved, s.on_hand - s.reserved
		FROM stock_levels s
		LEFT JOIN lots l ON l.id::text = s.lot_id
		WHERE s.warehouse_id = $1 AND s.product_id = $2 AND s.lot_id <> ''
			AND s.on_hand - s.reserved > 0`
	args := []any{warehouseID, productID}
	if after != nil {
		if after.ExpiresAt != nil {
			query += `
			AND (l.expires_at > $3 OR l.expires_at IS NULL OR (l.expires_at = $3 AND s.lot_id > $4))`
			args = append(args, *after.ExpiresAt, after.LotID)
		} else {
			query += `
			AND l.expires_at IS NULL AND s.lot_id > $3`
			args = append(args, after.LotID)
		}
	}
	args = append(args, limitArg(limit))
	query += fmt.Sprintf(`
		ORDER BY l.expires_at ASC NULLS LAST, s.lot_id
		LIMIT $%d`, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list lots", err)
	}
	defer rows.Close()
	var list []repository.LotAvailability
	for rows.Next() {
		var a repository.LotAvailability
		if err := rows.Scan(&a.LotID, &a.LotCode, &a.ExpiresAt, &a.OnHand, &a.Reserved, &a.Available); err != nil {
			return nil, fmt.Errorf("scan lot availability: %w", err)
		}
		list = append(list, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list lots", err)
	}
	return list, nil
}

// List recorre los saldos por clave (keyset sobre la llave primaria).
func (r *StockLevelRepo) List(ctx context.Context, after *entity.StockKey, limit int) ([]*entity.StockLevel, error) {
	query := `SELECT ` + levelColumns + ` FROM stock_levels`
	var args []any
	if after != nil {
		query += ` WHERE (warehouse_id, product_id, lot_id) > ($1::uuid, $2::uuid, $3)`
		args = append(args, after.WarehouseID, after.ProductID, after.LotID)
	}
	args = append(args, limitArg(limit))
	query += fmt.Sprintf(` ORDER BY warehouse_id, product_id, lot_id LIMIT $%d`, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr("list stock levels", err)
	}
	defer rows.Close()
	var list []*entity.StockLevel
	for rows.Next() {
		lvl, err := scanLevel(rows)
		if err != nil {
			return nil, fmt.Errorf("scan stock level: %w", err)
		}
		list = append(list, lvl)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list stock levels", err)
	}
	return list, nil
}
