//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/application/transfer"
	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
	"github.com/jhoicas/traslados-api/internal/infrastructure/postgres"
	"github.com/jhoicas/traslados-api/pkg/config"
	"github.com/jhoicas/traslados-api/pkg/logger"
	"github.com/jhoicas/traslados-api/pkg/metrics"
)

// Lotes con ID fijo: los empates de vencimiento se resuelven por lot_id y así el
// orden no depende de la collation del contenedor.
const (
	lotManana   = "00000000-0000-0000-0000-000000000001"
	lotPronto1  = "00000000-0000-0000-0000-000000000002"
	lotPronto2  = "00000000-0000-0000-0000-000000000003"
	lotTarde    = "00000000-0000-0000-0000-000000000004"
	lotSinFecha = "00000000-0000-0000-0000-000000000005"
	lotSinFicha = "00000000-0000-0000-0000-000000000006"
	lotAgotado  = "00000000-0000-0000-0000-000000000007"
)

type catalogo struct {
	company  string
	whA, whB string
	prodP    string
	prodLot  string
	actor    entity.Actor
}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

// setupPostgres levanta un PostgreSQL desechable, aplica las migraciones y devuelve el pool.
func setupPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("traslados"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, container.Terminate(ctx)) })

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := postgres.NewPool(ctx, config.DBConfig{DatabaseURL: connStr, MaxConns: 10})
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, postgres.Migrate(ctx, postgres.SQLDB(pool), "up"))
	return pool
}

func seedCatalogo(t *testing.T, pool *pgxpool.Pool) catalogo {
	t.Helper()
	ctx := context.Background()
	c := catalogo{
		company: uuid.NewString(),
		whA:     uuid.NewString(),
		whB:     uuid.NewString(),
		prodP:   uuid.NewString(),
		prodLot: uuid.NewString(),
	}
	c.actor = entity.Actor{CompanyID: c.company, UserID: "bodeguero-1"}

	w := postgres.NewCatalogWriter(pool)
	require.NoError(t, w.SaveWarehouse(ctx, entity.Warehouse{ID: c.whA, CompanyID: c.company, Name: "Bodega A"}))
	require.NoError(t, w.SaveWarehouse(ctx, entity.Warehouse{ID: c.whB, CompanyID: c.company, Name: "Bodega B"}))
	require.NoError(t, w.SaveProduct(ctx, entity.Product{ID: c.prodP, CompanyID: c.company, SKU: "P", Name: "Producto", Cost: d(10)}))
	require.NoError(t, w.SaveProduct(ctx, entity.Product{ID: c.prodLot, CompanyID: c.company, SKU: "L", Name: "Con lote", LotTracked: true, Cost: d(5)}))

	now := time.Now().UTC()
	in := func(days int) *time.Time {
		v := now.AddDate(0, 0, days)
		return &v
	}
	lots := []entity.Lot{
		{ID: lotManana, Code: "L-MANANA", ExpiresAt: in(1)},
		{ID: lotPronto1, Code: "L-PRONTO-1", ExpiresAt: in(10)},
		{ID: lotPronto2, Code: "L-PRONTO-2", ExpiresAt: in(10)},
		{ID: lotTarde, Code: "L-TARDE", ExpiresAt: in(30)},
		{ID: lotSinFecha, Code: "L-SIN-FECHA"},
		{ID: lotAgotado, Code: "L-AGOTADO", ExpiresAt: in(2)},
	}
	for _, l := range lots {
		l.ProductID = c.prodLot
		require.NoError(t, w.SaveLot(ctx, l))
	}
	// Los dos pronto comparten vencimiento exacto.
	_, err := pool.Exec(ctx, `UPDATE lots SET expires_at = (SELECT expires_at FROM lots WHERE id = $1) WHERE id = $2`, lotPronto1, lotPronto2)
	require.NoError(t, err)
	return c
}

type servicios struct {
	transfers *transfer.Service
	adjust    *inventory.AdjustStockUseCase
	levels    *postgres.StockLevelRepo
	movements *postgres.StockMovementRepo
}

func newServicios(pool *pgxpool.Pool) servicios {
	retry := inventory.RetryPolicy{MaxRetries: 8, Base: time.Millisecond}
	levels := postgres.NewStockLevelRepository(pool)
	movements := postgres.NewStockMovementRepository(pool)
	txRunner := postgres.NewTxRunner(pool)
	proj := inventory.NewStockProjector(levels, 50)
	poster := inventory.NewPoster(inventory.NewStockLedger(), proj)
	products := postgres.NewProductRepository(pool)
	warehouses := postgres.NewWarehouseRepository(pool)
	lots := postgres.NewLotRepository(pool)

	svc := transfer.NewService(transfer.Deps{
		TxRunner:   txRunner,
		Transfers:  postgres.NewTransferRepository(pool),
		Lines:      postgres.NewTransferLineRepository(pool),
		Movements:  movements,
		Warehouses: warehouses,
		Products:   products,
		Lots:       lots,
		Projector:  proj,
		Poster:     poster,
		Logger:     logger.Nop(),
		Metrics:    metrics.NewTransferMetrics(prometheus.NewRegistry()),
	}, transfer.Config{Retry: retry, CompensationRetries: 2})
	return servicios{
		transfers: svc,
		adjust:    inventory.NewAdjustStockUseCase(txRunner, poster, products, warehouses, lots, retry),
		levels:    levels,
		movements: movements,
	}
}

func (s servicios) entrada(t *testing.T, c catalogo, wh, product, lot string, qty int64) {
	t.Helper()
	cost := d(10)
	_, err := s.adjust.Adjust(context.Background(), c.actor, inventory.AdjustInput{
		WarehouseID: wh, ProductID: product, LotID: lot,
		Direction: entity.DirectionIn, Quantity: d(qty), UnitCost: &cost,
	})
	require.NoError(t, err)
}

// assertKardexIgualSaldo existencia materializada = suma del kardex para la clave.
func (s servicios) assertKardexIgualSaldo(t *testing.T, key entity.StockKey) decimal.Decimal {
	t.Helper()
	ctx := context.Background()
	lvl, err := s.levels.Get(ctx, key)
	require.NoError(t, err)
	sum, err := s.movements.SumByKey(ctx, key)
	require.NoError(t, err)
	assert.Truef(t, sum.Equal(lvl.OnHand), "clave %v: kardex %s, saldo %s", key, sum, lvl.OnHand)
	return lvl.OnHand
}

func TestIntegration_StockLevel_SaveControlaVersion(t *testing.T) {
	pool := setupPostgres(t)
	c := seedCatalogo(t, pool)
	ctx := context.Background()
	repo := postgres.NewStockLevelRepository(pool)
	key := entity.StockKey{WarehouseID: c.whA, ProductID: c.prodP}

	lvl, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(0), lvl.Version)

	lvl.OnHand = d(5)
	require.NoError(t, repo.Save(ctx, lvl))
	assert.Equal(t, int64(1), lvl.Version)

	got, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, c.company, got.CompanyID, "la empresa se toma de la bodega")
	assert.True(t, d(5).Equal(got.OnHand))

	dup := entity.NewStockLevel(key)
	dup.OnHand = d(99)
	assert.ErrorIs(t, repo.Save(ctx, dup), domain.ErrConcurrencyConflict)

	got.OnHand = d(7)
	require.NoError(t, repo.Save(ctx, got))
	assert.Equal(t, int64(2), got.Version)

	lvl.OnHand = d(1) // sigue en versión 1
	assert.ErrorIs(t, repo.Save(ctx, lvl), domain.ErrConcurrencyConflict)

	final, err := repo.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, d(7).Equal(final.OnHand))
}

func TestIntegration_StockLevel_CarreraAlCrearSaldoFaltante(t *testing.T) {
	pool := setupPostgres(t)
	c := seedCatalogo(t, pool)
	ctx := context.Background()
	runner := postgres.NewTxRunner(pool)
	key := entity.StockKey{WarehouseID: c.whB, ProductID: c.prodP}

	// Ambas transacciones leen la clave sin fila (FOR UPDATE no bloquea nada) antes de insertar.
	var leido sync.WaitGroup
	leido.Add(2)
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range 2 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = runner.Run(ctx, func(ctx context.Context, st inventory.Stores) error {
				lvl, err := st.Levels.GetForUpdate(ctx, key)
				leido.Done()
				if err != nil {
					return err
				}
				leido.Wait()
				lvl.OnHand = d(int64(i + 1))
				return st.Levels.Save(ctx, lvl)
			})
		}(i)
	}
	wg.Wait()

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, domain.ErrConcurrencyConflict):
			conflicts++
		default:
			t.Fatalf("error inesperado: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	lvl, err := postgres.NewStockLevelRepository(pool).Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, int64(1), lvl.Version)
}

func TestIntegration_Receive_ConcurrenteCreaElSaldoDestinoUnaVez(t *testing.T) {
	pool := setupPostgres(t)
	c := seedCatalogo(t, pool)
	s := newServicios(pool)
	ctx := context.Background()
	s.entrada(t, c, c.whA, c.prodP, "", 20)

	const n = 4
	trs := make([]*entity.Transfer, n)
	for i := range trs {
		tr, err := s.transfers.Create(ctx, c.actor, transfer.CreateInput{
			OriginWarehouseID: c.whA, DestinationWarehouseID: c.whB,
			Lines: []transfer.LineInput{{ProductID: c.prodP, Quantity: d(3)}},
		})
		require.NoError(t, err)
		_, err = s.transfers.Dispatch(ctx, c.actor, tr.ID)
		require.NoError(t, err)
		trs[i] = tr
	}

	// Nadie ha recibido: la fila de saldo en destino no existe y todos compiten por insertarla.
	g, gctx := errgroup.WithContext(ctx)
	for _, tr := range trs {
		g.Go(func() error {
			_, err := s.transfers.Receive(gctx, c.actor, tr.ID, transfer.ReceiveInput{
				ReceiptRef: "entrega-1",
				Lines:      []transfer.ReceiveLine{{LineID: tr.Lines[0].ID, Quantity: d(3)}},
			})
			return err
		})
	}
	require.NoError(t, g.Wait())

	dest := s.assertKardexIgualSaldo(t, entity.StockKey{WarehouseID: c.whB, ProductID: c.prodP})
	assert.True(t, d(12).Equal(dest), "destino %s", dest)
	orig := s.assertKardexIgualSaldo(t, entity.StockKey{WarehouseID: c.whA, ProductID: c.prodP})
	assert.True(t, d(8).Equal(orig), "origen %s", orig)

	for _, tr := range trs {
		got, err := s.transfers.Get(ctx, c.actor, tr.ID)
		require.NoError(t, err)
		assert.Equal(t, entity.TransferStatusComplete, got.Status)
	}
}

func TestIntegration_Dispatch_ConcurrenteSobreLaMismaClave(t *testing.T) {
	pool := setupPostgres(t)
	c := seedCatalogo(t, pool)
	s := newServicios(pool)
	ctx := context.Background()
	s.entrada(t, c, c.whA, c.prodP, "", 10)

	const n = 4
	ids := make([]string, n)
	for i := range ids {
		tr, err := s.transfers.Create(ctx, c.actor, transfer.CreateInput{
			OriginWarehouseID: c.whA, DestinationWarehouseID: c.whB,
			Lines: []transfer.LineInput{{ProductID: c.prodP, Quantity: d(7)}},
		})
		require.NoError(t, err)
		ids[i] = tr.ID
	}

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i, id := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.transfers.Dispatch(ctx, c.actor, id)
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	}
	assert.Equal(t, 1, ok, "solo un despacho cabe en el disponible")

	orig := s.assertKardexIgualSaldo(t, entity.StockKey{WarehouseID: c.whA, ProductID: c.prodP})
	assert.True(t, d(3).Equal(orig), "origen %s", orig)

	total := 0
	for _, id := range ids {
		cnt, err := s.movements.CountBySource(ctx, id)
		require.NoError(t, err)
		total += cnt
	}
	assert.Equal(t, 1, total)
}

func TestIntegration_Movements_AppendRepetidoDevuelveElExistente(t *testing.T) {
	pool := setupPostgres(t)
	c := seedCatalogo(t, pool)
	ctx := context.Background()
	repo := postgres.NewStockMovementRepository(pool)
	sourceID := uuid.NewString()

	nuevo := func(qty int64) *entity.StockMovement {
		return &entity.StockMovement{
			ID: uuid.NewString(), CompanyID: c.company, WarehouseID: c.whA, ProductID: c.prodP,
			Direction: entity.DirectionOut, Quantity: d(qty),
			SourceKind: entity.SourceTransferOut, SourceID: sourceID, LineID: "linea-1",
			IdempotencyKey: "linea-1", UnitCost: d(10), Actor: "bodeguero-1",
			CreatedAt: time.Now().UTC(),
		}
	}

	first := nuevo(4)
	created, err := repo.Append(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)

	again := nuevo(9)
	created, err = repo.Append(ctx, again)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.ID, again.ID, "carga la fila ya registrada")
	assert.True(t, d(4).Equal(again.Quantity))

	n, err := repo.CountBySource(ctx, sourceID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sum, err := repo.SumByKey(ctx, first.Key())
	require.NoError(t, err)
	assert.True(t, d(-4).Equal(sum))

	// El kardex rechaza modificaciones.
	_, err = pool.Exec(ctx, `UPDATE stock_movements SET quantity = 1 WHERE id = $1`, first.ID)
	assert.Error(t, err)
}

func TestIntegration_Movements_AppendConcurrenteMismaReferencia(t *testing.T) {
	pool := setupPostgres(t)
	c := seedCatalogo(t, pool)
	ctx := context.Background()
	runner := postgres.NewTxRunner(pool)
	sourceID := uuid.NewString()

	const n = 6
	created := make([]bool, n)
	ids := make([]string, n)
	g, gctx := errgroup.WithContext(ctx)
	for i := range n {
		g.Go(func() error {
			return runner.Run(gctx, func(ctx context.Context, st inventory.Stores) error {
				m := &entity.StockMovement{
					ID: uuid.NewString(), CompanyID: c.company, WarehouseID: c.whB, ProductID: c.prodP,
					Direction: entity.DirectionIn, Quantity: d(2),
					SourceKind: entity.SourceTransferIn, SourceID: sourceID, LineID: "linea-1",
					IdempotencyKey: "linea-1#ref:entrega", CreatedAt: time.Now().UTC(),
				}
				ok, err := st.Movements.Append(ctx, m)
				created[i], ids[i] = ok, m.ID
				return err
			})
		})
	}
	require.NoError(t, g.Wait())

	winners := 0
	for i := range n {
		if created[i] {
			winners++
		}
		assert.Equal(t, ids[0], ids[i], "todos ven el mismo movimiento")
	}
	assert.Equal(t, 1, winners)
}

func TestIntegration_StockLevel_ListLotsPaginaEnOrdenFEFO(t *testing.T) {
	pool := setupPostgres(t)
	c := seedCatalogo(t, pool)
	ctx := context.Background()
	repo := postgres.NewStockLevelRepository(pool)

	put := func(lot string, onHand, reserved int64) {
		lvl := entity.NewStockLevel(entity.StockKey{WarehouseID: c.whA, ProductID: c.prodLot, LotID: lot})
		lvl.OnHand, lvl.Reserved = d(onHand), d(reserved)
		require.NoError(t, repo.Save(ctx, lvl))
	}
	// Insertados fuera de orden a propósito.
	put(lotSinFicha, 3, 0)
	put(lotTarde, 4, 1)
	put(lotSinFecha, 2, 0)
	put(lotPronto2, 5, 0)
	put(lotAgotado, 2, 2)
	put(lotPronto1, 1, 0)
	put(lotManana, 6, 0)
	put("", 9, 0)

	var (
		got    []repository.LotAvailability
		cursor *repository.LotCursor
	)
	for range 10 {
		page, err := repo.ListLots(ctx, c.whA, c.prodLot, cursor, 1)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		require.Len(t, page, 1)
		got = append(got, page[0])
		cursor = &repository.LotCursor{ExpiresAt: page[0].ExpiresAt, LotID: page[0].LotID}
	}

	order := make([]string, len(got))
	for i, l := range got {
		order[i] = l.LotID
	}
	assert.Equal(t, []string{lotManana, lotPronto1, lotPronto2, lotTarde, lotSinFecha, lotSinFicha}, order)

	require.Len(t, got, 6)
	for _, l := range got[:4] {
		assert.NotNil(t, l.ExpiresAt, l.LotID)
	}
	for _, l := range got[4:] {
		assert.Nil(t, l.ExpiresAt, l.LotID)
	}
	assert.Equal(t, "L-TARDE", got[3].LotCode)
	assert.True(t, d(3).Equal(got[3].Available))
	assert.Equal(t, "", got[5].LotCode, "lote sin ficha en catálogo")

	// Una página más grande devuelve lo mismo que la suma de páginas.
	all, err := repo.ListLots(ctx, c.whA, c.prodLot, nil, 50)
	require.NoError(t, err)
	require.Len(t, all, len(got))
	for i := range all {
		assert.Equal(t, got[i].LotID, all[i].LotID)
	}
}
