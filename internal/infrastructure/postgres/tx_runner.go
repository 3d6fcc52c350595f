package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool *pgxpool.Pool
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool *pgxpool.Pool) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción READ COMMITTED, ejecuta fn con repos atados a la tx y hace
// Commit o Rollback. Los bloqueos de fila (FOR UPDATE) y el CAS de versión en saldos dan
// la serialización necesaria sin subir el nivel de aislamiento.
func (r *TxRunner) Run(ctx context.Context, fn func(ctx context.Context, st inventory.Stores) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return wrapErr("begin transaction", err)
	}
	defer func() { _ = tx.Rollback(context.WithoutCancel(ctx)) }()

	if err := fn(ctx, StoresFor(tx)); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapErr("commit transaction", err)
	}
	return nil
}

// StoresFor repos de escritura atados a q (pool o tx).
func StoresFor(q Querier) inventory.Stores {
	return inventory.Stores{
		Transfers: NewTransferRepository(q),
		Lines:     NewTransferLineRepository(q),
		Movements: NewStockMovementRepository(q),
		Levels:    NewStockLevelRepository(q),
		Products:  NewProductRepository(q),
	}
}
