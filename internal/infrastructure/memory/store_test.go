package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
	"github.com/jhoicas/traslados-api/internal/infrastructure/memory"
)

var key = entity.StockKey{WarehouseID: "wh-a", ProductID: "p-1"}

// ── Transacciones ───────────────────────────────────────────────────────────

func TestRun_ErrorHaceRollback(t *testing.T) {
	st := memory.NewStore()
	st.SeedStock("co-1", key, decimal.NewFromInt(10))
	boom := errors.New("boom")

	err := st.Run(context.Background(), func(ctx context.Context, s inventory.Stores) error {
		lvl, err := s.Levels.GetForUpdate(ctx, key)
		require.NoError(t, err)
		lvl.OnHand = decimal.Zero
		require.NoError(t, s.Levels.Save(ctx, lvl))
		return boom
	})

	assert.ErrorIs(t, err, boom)
	assert.True(t, st.Level(key).OnHand.Equal(decimal.NewFromInt(10)))
}

func TestRun_CommitVisibleFuera(t *testing.T) {
	st := memory.NewStore()

	err := st.Run(context.Background(), func(ctx context.Context, s inventory.Stores) error {
		lvl, _ := s.Levels.GetForUpdate(ctx, key)
		lvl.OnHand = decimal.NewFromInt(3)
		return s.Levels.Save(ctx, lvl)
	})
	require.NoError(t, err)

	lvl, err := st.Levels().Get(context.Background(), key)
	require.NoError(t, err)
	assert.True(t, lvl.OnHand.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, int64(1), lvl.Version)
}

func TestRun_ContextoCanceladoNoConfirma(t *testing.T) {
	st := memory.NewStore()
	ctx, cancel := context.WithCancel(context.Background())

	err := st.Run(ctx, func(ctx context.Context, s inventory.Stores) error {
		lvl, _ := s.Levels.GetForUpdate(ctx, key)
		lvl.OnHand = decimal.NewFromInt(3)
		require.NoError(t, s.Levels.Save(ctx, lvl))
		cancel()
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.True(t, st.Level(key).OnHand.IsZero())
}

// ── Saldos ──────────────────────────────────────────────────────────────────

func TestSave_VersionDesactualizadaEsConflicto(t *testing.T) {
	st := memory.NewStore()
	st.SeedStock("co-1", key, decimal.NewFromInt(5))
	ctx := context.Background()

	stale, err := st.Levels().Get(ctx, key)
	require.NoError(t, err)
	fresh, err := st.Levels().Get(ctx, key)
	require.NoError(t, err)
	require.NoError(t, st.Levels().Save(ctx, fresh))

	err = st.Levels().Save(ctx, stale)
	assert.ErrorIs(t, err, domain.ErrConcurrencyConflict)
}

func TestInjectFault_SeAgota(t *testing.T) {
	st := memory.NewStore()
	ctx := context.Background()
	st.InjectFault(memory.OpLevelSave, domain.ErrConcurrencyConflict, 1)

	lvl, _ := st.Levels().Get(ctx, key)
	assert.ErrorIs(t, st.Levels().Save(ctx, lvl), domain.ErrConcurrencyConflict)
	assert.NoError(t, st.Levels().Save(ctx, lvl))
}

func TestListLots_OrdenFEFOYPaginacion(t *testing.T) {
	st := memory.NewStore()
	ctx := context.Background()
	soon := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	later := soon.AddDate(0, 6, 0)
	st.AddLot(entity.Lot{ID: "l-c", ProductID: "p-1", ExpiresAt: &later})
	st.AddLot(entity.Lot{ID: "l-b", ProductID: "p-1", ExpiresAt: &soon})
	st.AddLot(entity.Lot{ID: "l-a", ProductID: "p-1"})
	st.AddLot(entity.Lot{ID: "l-d", ProductID: "p-1", ExpiresAt: &soon})
	for _, id := range []string{"l-a", "l-b", "l-c", "l-d"} {
		st.SeedStock("co-1", entity.StockKey{WarehouseID: "wh-a", ProductID: "p-1", LotID: id}, decimal.NewFromInt(1))
	}

	first, err := st.Levels().ListLots(ctx, "wh-a", "p-1", nil, 2)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, "l-b", first[0].LotID)
	assert.Equal(t, "l-d", first[1].LotID)

	last := first[1]
	rest, err := st.Levels().ListLots(ctx, "wh-a", "p-1", &repository.LotCursor{ExpiresAt: last.ExpiresAt, LotID: last.LotID}, 2)
	require.NoError(t, err)
	require.Len(t, rest, 2)
	assert.Equal(t, "l-c", rest[0].LotID)
	assert.Equal(t, "l-a", rest[1].LotID, "sin vencimiento va al final")
}

// ── Kardex ──────────────────────────────────────────────────────────────────

func TestAppend_ReferenciaRepetidaDevuelveOriginal(t *testing.T) {
	st := memory.NewStore()
	ctx := context.Background()
	m := &entity.StockMovement{
		ID: "m-1", WarehouseID: "wh-a", ProductID: "p-1", Direction: entity.DirectionOut,
		Quantity: decimal.NewFromInt(2), SourceKind: entity.SourceTransferOut, SourceID: "t-1", IdempotencyKey: "line-1",
	}
	created, err := st.Movements().Append(ctx, m)
	require.NoError(t, err)
	assert.True(t, created)

	dup := *m
	dup.ID = "m-2"
	created, err = st.Movements().Append(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, "m-1", dup.ID)

	n, err := st.Movements().CountBySource(ctx, "t-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sum, err := st.Movements().SumByKey(ctx, key)
	require.NoError(t, err)
	assert.True(t, sum.Equal(decimal.NewFromInt(-2)))
}
