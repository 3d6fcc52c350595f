package inventory_test

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
	"github.com/jhoicas/traslados-api/pkg/logger"
)

const company = "co-1"

var (
	actor = entity.Actor{CompanyID: company, UserID: "u-1"}
	keyA  = entity.StockKey{WarehouseID: "wh-a", ProductID: "p-1"}
)

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type fixture struct {
	store     *memory.Store
	projector *inventory.StockProjector
	poster    *inventory.Poster
	adjust    *inventory.AdjustStockUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.NewStore()
	st.AddWarehouse(entity.Warehouse{ID: "wh-a", CompanyID: company, Name: "Principal"})
	st.AddWarehouse(entity.Warehouse{ID: "wh-x", CompanyID: "otra", Name: "Ajena"})
	st.AddProduct(entity.Product{ID: "p-1", CompanyID: company, SKU: "SKU-1", Cost: d(100)})
	st.AddProduct(entity.Product{ID: "p-lot", CompanyID: company, SKU: "SKU-L", LotTracked: true})
	st.AddLot(entity.Lot{ID: "l-1", ProductID: "p-lot", Code: "L1"})

	proj := inventory.NewStockProjector(st.Levels(), 2)
	poster := inventory.NewPoster(inventory.NewStockLedger(), proj)
	retry := inventory.RetryPolicy{MaxRetries: 3, Base: time.Millisecond}
	adjust := inventory.NewAdjustStockUseCase(st, poster, st.Products(), st.Warehouses(), st.Lots(), retry)
	return &fixture{store: st, projector: proj, poster: poster, adjust: adjust}
}

// ── Ledger + Poster ─────────────────────────────────────────────────────────

func TestPost_RegistraYProyecta(t *testing.T) {
	f := newFixture(t)
	f.store.SeedStock(company, keyA, d(10))
	in := inventory.RecordInput{
		CompanyID: company, WarehouseID: "wh-a", ProductID: "p-1",
		Direction: entity.DirectionOut, Quantity: d(4),
		SourceKind: entity.SourceTransferOut, SourceID: "t-1", LineID: "line-1",
	}

	var applied bool
	err := f.store.Run(context.Background(), func(ctx context.Context, s inventory.Stores) error {
		_, ok, err := f.poster.Post(ctx, s, in)
		applied = ok
		return err
	})
	require.NoError(t, err)
	assert.True(t, applied)
	assert.True(t, f.store.Level(keyA).OnHand.Equal(d(6)))

	// Repetir la misma referencia no vuelve a mover el saldo
	err = f.store.Run(context.Background(), func(ctx context.Context, s inventory.Stores) error {
		m, ok, err := f.poster.Post(ctx, s, in)
		applied = ok
		assert.Equal(t, "line-1", m.IdempotencyKey)
		return err
	})
	require.NoError(t, err)
	assert.False(t, applied)
	assert.True(t, f.store.Level(keyA).OnHand.Equal(d(6)))
}

func TestRecord_Validaciones(t *testing.T) {
	f := newFixture(t)
	ledger := inventory.NewStockLedger()
	base := inventory.RecordInput{
		WarehouseID: "wh-a", ProductID: "p-1", Direction: entity.DirectionIn, Quantity: d(1),
		SourceKind: entity.SourceAdjustment, SourceID: "adj-1",
	}
	cases := map[string]func(in *inventory.RecordInput){
		"cantidad cero":     func(in *inventory.RecordInput) { in.Quantity = decimal.Zero },
		"cantidad negativa": func(in *inventory.RecordInput) { in.Quantity = d(-1) },
		"dirección":         func(in *inventory.RecordInput) { in.Direction = "x" },
		"origen":            func(in *inventory.RecordInput) { in.SourceKind = "x" },
		"sin producto":      func(in *inventory.RecordInput) { in.ProductID = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := base
			mutate(&in)
			_, _, err := ledger.Record(context.Background(), f.store.Movements(), in)
			assert.ErrorIs(t, err, domain.ErrInvalidInput)
		})
	}
}

// ── Proyector ───────────────────────────────────────────────────────────────

func TestApplyMovement_NoDejaDisponibleNegativo(t *testing.T) {
	f := newFixture(t)
	f.store.SeedStock(company, keyA, d(3))

	err := f.store.Run(context.Background(), func(ctx context.Context, s inventory.Stores) error {
		_, _, err := f.poster.Post(ctx, s, inventory.RecordInput{
			CompanyID: company, WarehouseID: "wh-a", ProductID: "p-1",
			Direction: entity.DirectionOut, Quantity: d(5),
			SourceKind: entity.SourceTransferOut, SourceID: "t-1", LineID: "line-1",
		})
		return err
	})

	var ise *domain.InsufficientStockError
	require.ErrorAs(t, err, &ise)
	assert.Equal(t, []string{"line-1"}, ise.LineIDs())
	assert.Len(t, f.store.AllMovements(), 1, "el rollback descarta el movimiento")
	assert.True(t, f.store.Level(keyA).OnHand.Equal(d(3)))
}

func TestCheckAvailability_AcumulaPorClave(t *testing.T) {
	f := newFixture(t)
	f.store.SeedStock(company, keyA, d(5))

	var shortages []domain.StockShortage
	err := f.store.Run(context.Background(), func(ctx context.Context, s inventory.Stores) error {
		var err error
		shortages, err = f.projector.CheckAvailability(ctx, s.Levels, []inventory.Requirement{
			{LineID: "l1", Key: keyA, Quantity: d(3)},
			{LineID: "l2", Key: keyA, Quantity: d(3)},
		})
		return err
	})
	require.NoError(t, err)
	require.Len(t, shortages, 2)
	assert.True(t, shortages[0].Available.Equal(d(5)))
}

func TestReserveRelease_AfectanDisponible(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedStock(company, keyA, d(10))
	in := inventory.ReservationInput{WarehouseID: "wh-a", ProductID: "p-1", Quantity: d(4)}

	lvl, err := f.adjust.Reserve(ctx, actor, in)
	require.NoError(t, err)
	assert.True(t, lvl.Available().Equal(d(6)))

	avail, err := f.projector.Available(ctx, keyA)
	require.NoError(t, err)
	assert.True(t, avail.Equal(d(6)))

	_, err = f.adjust.Reserve(ctx, actor, inventory.ReservationInput{WarehouseID: "wh-a", ProductID: "p-1", Quantity: d(7)})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	in.Quantity = d(100)
	lvl, err = f.adjust.Release(ctx, actor, in)
	require.NoError(t, err)
	assert.True(t, lvl.Reserved.IsZero())
}

func TestLotsAvailable_SecuenciaPaginadaYReiniciable(t *testing.T) {
	f := newFixture(t)
	exp := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"l-3", "l-2", "l-1", "l-0"} {
		e := exp.AddDate(0, i, 0)
		f.store.AddLot(entity.Lot{ID: id, ProductID: "p-lot", ExpiresAt: &e})
		f.store.SeedStock(company, entity.StockKey{WarehouseID: "wh-a", ProductID: "p-lot", LotID: id}, d(int64(i+1)))
	}
	f.store.SeedStock(company, entity.StockKey{WarehouseID: "wh-b", ProductID: "p-lot", LotID: "l-3"}, d(9))

	collect := func() []string {
		var ids []string
		for lot, err := range f.projector.LotsAvailable(context.Background(), "wh-a", "p-lot") {
			require.NoError(t, err)
			ids = append(ids, lot.LotID)
		}
		return ids
	}
	want := []string{"l-3", "l-2", "l-1", "l-0"}
	assert.Equal(t, want, collect())
	assert.Equal(t, want, collect())

	// Cortar la iteración temprano no consume más páginas
	n := 0
	for range f.projector.LotsAvailable(context.Background(), "wh-a", "p-lot") {
		n++
		break
	}
	assert.Equal(t, 1, n)
}

// ── Ajustes ─────────────────────────────────────────────────────────────────

func TestAdjust_EntradaActualizaCostoPromedio(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedStock(company, keyA, d(10))
	cost := d(200)

	res, err := f.adjust.Adjust(ctx, actor, inventory.AdjustInput{
		WarehouseID: "wh-a", ProductID: "p-1", Direction: entity.DirectionIn, Quantity: d(10), UnitCost: &cost,
	})
	require.NoError(t, err)
	assert.True(t, res.Level.OnHand.Equal(d(20)))
	assert.Equal(t, entity.SourceAdjustment, res.Movement.SourceKind)

	p, err := f.store.Products().GetByID(ctx, "p-1")
	require.NoError(t, err)
	assert.True(t, p.Cost.Equal(d(150)), "((10*100)+(10*200))/20")
}

func TestAdjust_ReferenciaRepetidaEsIdempotente(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedStock(company, keyA, d(10))
	in := inventory.AdjustInput{WarehouseID: "wh-a", ProductID: "p-1", Direction: entity.DirectionOut, Quantity: d(2), Reference: "conteo-1"}

	_, err := f.adjust.Adjust(ctx, actor, in)
	require.NoError(t, err)
	res, err := f.adjust.Adjust(ctx, actor, in)
	require.NoError(t, err)
	assert.True(t, res.Replayed)
	assert.True(t, f.store.Level(keyA).OnHand.Equal(d(8)))
}

func TestAdjust_ReferenciaRepetidaConOtroAjusteSeRechaza(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedStock(company, keyA, d(10))
	f.store.AddWarehouse(entity.Warehouse{ID: "wh-b", CompanyID: company, Name: "Sucursal"})
	f.store.SeedStock(company, entity.StockKey{WarehouseID: "wh-b", ProductID: "p-1"}, d(10))
	base := inventory.AdjustInput{WarehouseID: "wh-a", ProductID: "p-1", Direction: entity.DirectionOut, Quantity: d(2), Reference: "conteo-9"}
	_, err := f.adjust.Adjust(ctx, actor, base)
	require.NoError(t, err)

	cost := d(100)
	otraBodega := base
	otraBodega.WarehouseID = "wh-b"
	otraCantidad := base
	otraCantidad.Quantity = d(3)
	otraDireccion := base
	otraDireccion.Direction = entity.DirectionIn
	otraDireccion.UnitCost = &cost

	cases := map[string]inventory.AdjustInput{
		"otra bodega":    otraBodega,
		"otra cantidad":  otraCantidad,
		"otra dirección": otraDireccion,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.adjust.Adjust(ctx, actor, in)
			var ve *domain.ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, "reference", ve.Field)
		})
	}

	f.store.AddWarehouse(entity.Warehouse{ID: "wh-c2", CompanyID: "co-2", Name: "Otra empresa"})
	f.store.AddProduct(entity.Product{ID: "p-c2", CompanyID: "co-2", SKU: "X", Cost: d(1)})
	f.store.SeedStock("co-2", entity.StockKey{WarehouseID: "wh-c2", ProductID: "p-c2"}, d(5))
	_, err = f.adjust.Adjust(ctx, entity.Actor{CompanyID: "co-2", UserID: "u-2"}, inventory.AdjustInput{
		WarehouseID: "wh-c2", ProductID: "p-c2", Direction: entity.DirectionOut, Quantity: d(2), Reference: "conteo-9",
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "la referencia de otra empresa no se devuelve como repetición")

	assert.True(t, f.store.Level(keyA).OnHand.Equal(d(8)))
	assert.True(t, f.store.Level(entity.StockKey{WarehouseID: "wh-b", ProductID: "p-1"}).OnHand.Equal(d(10)))
	assert.True(t, f.store.Level(entity.StockKey{WarehouseID: "wh-c2", ProductID: "p-c2"}).OnHand.Equal(d(5)))
}

func TestAdjust_Rechazos(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	cost := d(1)

	_, err := f.adjust.Adjust(ctx, actor, inventory.AdjustInput{WarehouseID: "wh-a", ProductID: "p-1", Direction: entity.DirectionIn, Quantity: d(1)})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "entrada sin costo")

	_, err = f.adjust.Adjust(ctx, actor, inventory.AdjustInput{WarehouseID: "wh-x", ProductID: "p-1", Direction: entity.DirectionIn, Quantity: d(1), UnitCost: &cost})
	assert.ErrorIs(t, err, domain.ErrNotFound, "bodega de otra empresa")

	_, err = f.adjust.Adjust(ctx, actor, inventory.AdjustInput{WarehouseID: "wh-a", ProductID: "p-lot", Direction: entity.DirectionIn, Quantity: d(1), UnitCost: &cost})
	assert.ErrorIs(t, err, domain.ErrInvalidInput, "producto con lote exige lote")

	_, err = f.adjust.Adjust(ctx, actor, inventory.AdjustInput{WarehouseID: "wh-a", ProductID: "p-1", Direction: entity.DirectionOut, Quantity: d(1)})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestAdjust_ReintentaConflictos(t *testing.T) {
	f := newFixture(t)
	f.store.SeedStock(company, keyA, d(10))
	f.store.InjectFault(memory.OpLevelSave, domain.ErrConcurrencyConflict, 2)

	res, err := f.adjust.Adjust(context.Background(), actor, inventory.AdjustInput{
		WarehouseID: "wh-a", ProductID: "p-1", Direction: entity.DirectionOut, Quantity: d(1),
	})
	require.NoError(t, err)
	assert.True(t, res.Level.OnHand.Equal(d(9)))
}

func TestAdjust_ConflictoPersistenteAgotaReintentos(t *testing.T) {
	f := newFixture(t)
	f.store.SeedStock(company, keyA, d(10))
	f.store.InjectFault(memory.OpLevelSave, domain.ErrConcurrencyConflict, -1)

	_, err := f.adjust.Adjust(context.Background(), actor, inventory.AdjustInput{
		WarehouseID: "wh-a", ProductID: "p-1", Direction: entity.DirectionOut, Quantity: d(1),
	})
	var cc *domain.ConcurrencyConflictError
	require.ErrorAs(t, err, &cc)
	assert.Equal(t, 4, cc.Attempts)
	assert.True(t, f.store.Level(keyA).OnHand.Equal(d(10)))
}

// ── Retry ───────────────────────────────────────────────────────────────────

func TestRetryPolicy_NoReintentaErroresDeNegocio(t *testing.T) {
	calls := 0
	err := inventory.RetryPolicy{MaxRetries: 5, Base: time.Millisecond}.Do(context.Background(), func(context.Context) error {
		calls++
		return domain.NewValidationError("x", "mal")
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 1, calls)
}

func TestRetryPolicy_ContextoCancelado(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := inventory.RetryPolicy{MaxRetries: 5, Base: time.Millisecond}.Do(ctx, func(context.Context) error {
		return domain.ErrConcurrencyConflict
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrConcurrencyConflict))
}

// ── Conciliación ────────────────────────────────────────────────────────────

func TestReconciler_DetectaYRepara(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedStock(company, keyA, d(10))
	keyB := entity.StockKey{WarehouseID: "wh-a", ProductID: "p-lot", LotID: "l-1"}
	f.store.SeedStock(company, keyB, d(4))
	drifted := f.store.Level(keyA)
	drifted.OnHand = d(7)
	f.store.OverwriteLevel(drifted)

	rec := inventory.NewReconciler(f.store.Levels(), f.store.Movements(), f.store, f.projector, logger.Nop())

	report, err := rec.Audit(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, 2, report.Checked)
	require.Len(t, report.Drifts, 1)
	assert.Equal(t, keyA, report.Drifts[0].Key)
	assert.False(t, report.Drifts[0].Repaired)
	assert.True(t, f.store.Level(keyA).OnHand.Equal(d(7)))

	report, err = rec.Audit(ctx, true)
	require.NoError(t, err)
	require.Len(t, report.Drifts, 1)
	assert.True(t, report.Drifts[0].Repaired)
	assert.True(t, f.store.Level(keyA).OnHand.Equal(d(10)))

	report, err = rec.Audit(ctx, false)
	require.NoError(t, err)
	assert.Empty(t, report.Drifts)
}

// staleSums kardex de lectura que devuelve una suma fija, como una lectura hecha antes de
// que otra transacción confirmara un movimiento de la clave.
type staleSums struct {
	repository.StockMovementRepository
	sum decimal.Decimal
}

func (s staleSums) SumByKey(context.Context, entity.StockKey) (decimal.Decimal, error) {
	return s.sum, nil
}

func TestReconciler_LecturaDesfasadaNoEsDesvioNiSeRepara(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.store.SeedStock(company, keyA, d(10))
	_, err := f.adjust.Adjust(ctx, actor, inventory.AdjustInput{WarehouseID: "wh-a", ProductID: "p-1", Direction: entity.DirectionOut, Quantity: d(3)})
	require.NoError(t, err)

	// La suma sin bloqueo quedó en 10; el kardex y el saldo ya van en 7.
	stale := staleSums{StockMovementRepository: f.store.Movements(), sum: d(10)}
	rec := inventory.NewReconciler(f.store.Levels(), stale, f.store, f.projector, logger.Nop())

	for _, repair := range []bool{false, true} {
		report, err := rec.Audit(ctx, repair)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Checked)
		assert.Empty(t, report.Drifts)
	}
	assert.True(t, f.store.Level(keyA).OnHand.Equal(d(7)), "la reparación no escribe la suma desfasada")

	sum, err := f.store.Movements().SumByKey(ctx, keyA)
	require.NoError(t, err)
	assert.True(t, sum.Equal(f.store.Level(keyA).OnHand))
}
