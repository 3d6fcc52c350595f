package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

var (
	_ repository.TransferRepository     = (*TransferRepo)(nil)
	_ repository.TransferLineRepository = (*TransferLineRepo)(nil)
)

const transferColumns = `id, company_id, origin_warehouse_id, destination_warehouse_id, status, notes,
	created_by, dispatched_by, dispatched_at, orphaned, created_at, updated_at`

// TransferRepo cabeceras de traslado sobre PostgreSQL.
type TransferRepo struct {
	q Querier
}

// NewTransferRepository construye el adaptador. Acepta pool o tx (Querier).
func NewTransferRepository(q Querier) *TransferRepo {
	return &TransferRepo{q: q}
}

func scanTransfer(row pgx.Row) (*entity.Transfer, error) {
	var t entity.Transfer
	err := row.Scan(&t.ID, &t.CompanyID, &t.OriginWarehouseID, &t.DestinationWarehouseID, &t.Status, &t.Notes,
		&t.CreatedBy, &t.DispatchedBy, &t.DispatchedAt, &t.Orphaned, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TransferRepo) Create(ctx context.Context, t *entity.Transfer) error {
	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`
	_, err := r.q.Exec(ctx, query,
		t.ID, t.CompanyID, t.OriginWarehouseID, t.DestinationWarehouseID, t.Status, t.Notes,
		t.CreatedBy, t.DispatchedBy, t.DispatchedAt, t.Orphaned, t.CreatedAt, t.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create transfer %s: %w", t.ID, domain.ErrDuplicate)
		}
		return wrapErr("create transfer", err)
	}
	return nil
}

func (r *TransferRepo) GetByID(ctx context.Context, id string) (*entity.Transfer, error) {
	return r.get(ctx, "get transfer", `SELECT `+transferColumns+` FROM transfers WHERE id = $1`, id)
}

func (r *TransferRepo) GetForUpdate(ctx context.Context, id string) (*entity.Transfer, error) {
	return r.get(ctx, "lock transfer", `SELECT `+transferColumns+` FROM transfers WHERE id = $1 FOR UPDATE`, id)
}

func (r *TransferRepo) get(ctx context.Context, op, query, id string) (*entity.Transfer, error) {
	t, err := scanTransfer(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, wrapErr(op, err)
	}
	return t, nil
}

func (r *TransferRepo) Update(ctx context.Context, t *entity.Transfer) error {
	query := `
		UPDATE transfers
		SET status = $2, dispatched_by = $3, dispatched_at = $4, orphaned = $5, updated_at = $6
		WHERE id = $1`
	_, err := r.q.Exec(ctx, query, t.ID, t.Status, t.DispatchedBy, t.DispatchedAt, t.Orphaned, t.UpdatedAt)
	if err != nil {
		return wrapErr("update transfer", err)
	}
	return nil
}

// Delete es idempotente; las líneas caen por ON DELETE CASCADE.
func (r *TransferRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM transfers WHERE id = $1`, id); err != nil {
		return wrapErr("delete transfer", err)
	}
	return nil
}

func (r *TransferRepo) MarkOrphaned(ctx context.Context, id string) error {
	_, err := r.q.Exec(ctx, `UPDATE transfers SET orphaned = TRUE, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return wrapErr("mark transfer orphaned", err)
	}
	return nil
}

// List excluye huérfanos; orden de creación descendente.
func (r *TransferRepo) List(ctx context.Context, f repository.TransferFilter) ([]*entity.Transfer, error) {
	conds := []string{"company_id = $1", "NOT orphaned"}
	args := []any{f.CompanyID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.WarehouseID != "" {
		args = append(args, f.WarehouseID)
		n := len(args)
		conds = append(conds, fmt.Sprintf("(origin_warehouse_id = $%d OR destination_warehouse_id = $%d)", n, n))
	}
	if f.CreatedAfter != nil {
		add("created_at >= $%d", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		add("created_at < $%d", *f.CreatedBefore)
	}

	query := `SELECT ` + transferColumns + ` FROM transfers WHERE ` + strings.Join(conds, " AND ") +
		` ORDER BY created_at DESC, id`
	args = append(args, limitArg(f.Limit), f.Offset)
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", len(args)-1, len(args))
	return r.list(ctx, "list transfers", query, args...)
}

func (r *TransferRepo) ListOrphaned(ctx context.Context, limit int) ([]*entity.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE orphaned ORDER BY updated_at LIMIT $1`
	return r.list(ctx, "list orphaned transfers", query, limitArg(limit))
}

func (r *TransferRepo) list(ctx context.Context, op, query string, args ...any) ([]*entity.Transfer, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, wrapErr(op, err)
	}
	defer rows.Close()
	var list []*entity.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		list = append(list, t)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr(op, err)
	}
	return list, nil
}

// TransferLineRepo líneas de traslado sobre PostgreSQL.
type TransferLineRepo struct {
	q Querier
}

// NewTransferLineRepository construye el adaptador.
func NewTransferLineRepository(q Querier) *TransferLineRepo {
	return &TransferLineRepo{q: q}
}

// CreateBatch inserta todas las líneas en un solo viaje con pgx.Batch.
func (r *TransferLineRepo) CreateBatch(ctx context.Context, lines []entity.TransferLine) error {
	if len(lines) == 0 {
		return nil
	}
	query := `
		INSERT INTO transfer_lines (id, transfer_id, product_id, lot_id, quantity_requested,
			quantity_received, unit_cost, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(query, l.ID, l.TransferID, l.ProductID, l.LotID, l.QuantityRequested,
			l.QuantityReceived, l.UnitCost, l.CreatedAt, l.UpdatedAt)
	}
	br := r.q.SendBatch(ctx, batch)
	defer br.Close()
	for range lines {
		if _, err := br.Exec(); err != nil {
			return wrapErr("create transfer lines", err)
		}
	}
	return nil
}

func (r *TransferLineRepo) ListByTransfer(ctx context.Context, transferID string) ([]entity.TransferLine, error) {
	query := `
		SELECT id, transfer_id, product_id, lot_id, quantity_requested, quantity_received,
			unit_cost, created_at, updated_at
		FROM transfer_lines
		WHERE transfer_id = $1
		ORDER BY seq`
	rows, err := r.q.Query(ctx, query, transferID)
	if err != nil {
		return nil, wrapErr("list transfer lines", err)
	}
	defer rows.Close()
	var list []entity.TransferLine
	for rows.Next() {
		var l entity.TransferLine
		if err := rows.Scan(&l.ID, &l.TransferID, &l.ProductID, &l.LotID, &l.QuantityRequested,
			&l.QuantityReceived, &l.UnitCost, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan transfer line: %w", err)
		}
		list = append(list, l)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list transfer lines", err)
	}
	return list, nil
}

func (r *TransferLineRepo) UpdateReceived(ctx context.Context, l *entity.TransferLine) error {
	query := `UPDATE transfer_lines SET quantity_received = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.q.Exec(ctx, query, l.ID, l.QuantityReceived, l.UpdatedAt); err != nil {
		return wrapErr("update transfer line received", err)
	}
	return nil
}

func (r *TransferLineRepo) DeleteByTransfer(ctx context.Context, transferID string) error {
	if _, err := r.q.Exec(ctx, `DELETE FROM transfer_lines WHERE transfer_id = $1`, transferID); err != nil {
		return wrapErr("delete transfer lines", err)
	}
	return nil
}
