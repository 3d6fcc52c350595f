package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

var _ repository.StockMovementRepository = (*StockMovementRepo)(nil)

const movementColumns = `id, company_id, warehouse_id, product_id, lot_id, direction, quantity,
	source_kind, source_id, line_id, idempotency_key, unit_cost, actor, created_at`

// StockMovementRepo kardex sobre PostgreSQL. La tabla rechaza UPDATE y DELETE por trigger.
type StockMovementRepo struct {
	q Querier
}

// NewStockMovementRepository construye el adaptador. Acepta pool o tx (Querier).
func NewStockMovementRepository(q Querier) *StockMovementRepo {
	return &StockMovementRepo{q: q}
}

func scanMovement(row pgx.Row) (*entity.StockMovement, error) {
	var m entity.StockMovement
	err := row.Scan(&m.ID, &m.CompanyID, &m.WarehouseID, &m.ProductID, &m.LotID, &m.Direction, &m.Quantity,
		&m.SourceKind, &m.SourceID, &m.LineID, &m.IdempotencyKey, &m.UnitCost, &m.Actor, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Append inserta salvo conflicto en uq_stock_movements_ref; en ese caso carga la fila existente en m.
func (r *StockMovementRepo) Append(ctx context.Context, m *entity.StockMovement) (bool, error) {
	if !m.Quantity.GreaterThan(decimal.Zero) {
		return false, fmt.Errorf("append movement: %w", domain.ErrInvalidInput)
	}
	query := `
		INSERT INTO stock_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT ON CONSTRAINT uq_stock_movements_ref DO NOTHING`
	tag, err := r.q.Exec(ctx, query,
		m.ID, m.CompanyID, m.WarehouseID, m.ProductID, m.LotID, m.Direction, m.Quantity,
		m.SourceKind, m.SourceID, m.LineID, m.IdempotencyKey, m.UnitCost, m.Actor, m.CreatedAt,
	)
	if err != nil {
		return false, wrapErr("append movement", err)
	}
	if tag.RowsAffected() == 1 {
		return true, nil
	}

	existing, err := r.GetByRef(ctx, m.IdempotencyRef())
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, fmt.Errorf("append movement: ref %v en conflicto sin fila visible: %w",
			m.IdempotencyRef(), domain.ErrConcurrencyConflict)
	}
	*m = *existing
	return false, nil
}

func (r *StockMovementRepo) GetByRef(ctx context.Context, ref entity.MovementRef) (*entity.StockMovement, error) {
	query := `
		SELECT ` + movementColumns + `
		FROM stock_movements
		WHERE source_kind = $1 AND source_id = $2 AND direction = $3 AND idempotency_key = $4`
	m, err := scanMovement(r.q.QueryRow(ctx, query, ref.SourceKind, ref.SourceID, ref.Direction, ref.Key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr("get movement by ref", err)
	}
	return m, nil
}

func (r *StockMovementRepo) ListBySource(ctx context.Context, sourceID string) ([]*entity.StockMovement, error) {
	query := `SELECT ` + movementColumns + ` FROM stock_movements WHERE source_id = $1 ORDER BY created_at, id`
	rows, err := r.q.Query(ctx, query, sourceID)
	if err != nil {
		return nil, wrapErr("list movements by source", err)
	}
	defer rows.Close()
	var list []*entity.StockMovement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list movements by source", err)
	}
	return list, nil
}

func (r *StockMovementRepo) CountBySource(ctx context.Context, sourceID string) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT count(*) FROM stock_movements WHERE source_id = $1`, sourceID).Scan(&n); err != nil {
		return 0, wrapErr("count movements by source", err)
	}
	return n, nil
}

// SumByKey existencia según kardex: entradas menos salidas.
func (r *StockMovementRepo) SumByKey(ctx context.Context, key entity.StockKey) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(CASE direction WHEN 'in' THEN quantity ELSE -quantity END), 0)
		FROM stock_movements
		WHERE warehouse_id = $1 AND product_id = $2 AND lot_id = $3`
	var sum decimal.Decimal
	if err := r.q.QueryRow(ctx, query, key.WarehouseID, key.ProductID, key.LotID).Scan(&sum); err != nil {
		return decimal.Zero, wrapErr("sum movements by key", err)
	}
	return sum, nil
}
