// Package bootstrap arma el grafo de dependencias (almacenamiento, casos de uso, jobs)
// que comparten la API, el worker y la carga inicial.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/application/seed"
	"github.com/jhoicas/traslados-api/internal/application/transfer"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
	"github.com/jhoicas/traslados-api/internal/infrastructure/memory"
	"github.com/jhoicas/traslados-api/internal/infrastructure/postgres"
	"github.com/jhoicas/traslados-api/pkg/config"
	"github.com/jhoicas/traslados-api/pkg/logger"
	"github.com/jhoicas/traslados-api/pkg/metrics"
)

// Container casos de uso listos para usar y el cierre ordenado de sus recursos.
type Container struct {
	Transfers   *transfer.Service
	AdjustStock *inventory.AdjustStockUseCase
	Sweeper     *transfer.OrphanSweeper
	Reconciler  *inventory.Reconciler
	Catalog     seed.Writer
	Metrics     *metrics.TransferMetrics

	// HealthCheck verifica el almacenamiento; nil con el driver en memoria.
	HealthCheck func(ctx context.Context) error

	closers []func()
}

// Close libera los recursos en orden inverso de apertura.
func (c *Container) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

type stores struct {
	txRunner   inventory.TxRunner
	transfers  repository.TransferRepository
	lines      repository.TransferLineRepository
	movements  repository.StockMovementRepository
	levels     repository.StockLevelRepository
	warehouses repository.WarehouseRepository
	products   repository.ProductRepository
	lots       repository.LotRepository
	catalog    seed.Writer
}

// Build abre el almacenamiento según cfg.App.StoreDriver y arma los servicios.
// reg puede ser nil (sin métricas).
func Build(ctx context.Context, cfg *config.Config, log *logger.Logger, reg prometheus.Registerer) (*Container, error) {
	if log == nil {
		log = logger.Nop()
	}
	c := &Container{}
	st, err := openStores(ctx, cfg, c)
	if err != nil {
		c.Close()
		return nil, err
	}

	retry := inventory.RetryPolicy{MaxRetries: cfg.Transfer.RetryMax, Base: cfg.Transfer.RetryBase}
	projector := inventory.NewStockProjector(st.levels, cfg.Transfer.LotsPageSize)
	poster := inventory.NewPoster(inventory.NewStockLedger(), projector)
	c.Metrics = metrics.NewTransferMetrics(reg)

	c.Transfers = transfer.NewService(transfer.Deps{
		TxRunner:   st.txRunner,
		Transfers:  st.transfers,
		Lines:      st.lines,
		Movements:  st.movements,
		Warehouses: st.warehouses,
		Products:   st.products,
		Lots:       st.lots,
		Projector:  projector,
		Poster:     poster,
		Logger:     log,
		Metrics:    c.Metrics,
	}, transfer.Config{Retry: retry, CompensationRetries: cfg.Transfer.CompensationRetries})
	c.AdjustStock = inventory.NewAdjustStockUseCase(st.txRunner, poster, st.products, st.warehouses, st.lots, retry)
	c.Sweeper = transfer.NewOrphanSweeper(st.transfers, st.txRunner, log, c.Metrics)
	c.Reconciler = inventory.NewReconciler(st.levels, st.movements, st.txRunner, projector, log.Component("reconciler"))
	c.Catalog = st.catalog
	return c, nil
}

func openStores(ctx context.Context, cfg *config.Config, c *Container) (*stores, error) {
	switch cfg.App.StoreDriver {
	case config.StoreDriverMemory:
		mem := memory.NewStore()
		return &stores{
			txRunner:   mem,
			transfers:  mem.Transfers(),
			lines:      mem.Lines(),
			movements:  mem.Movements(),
			levels:     mem.Levels(),
			warehouses: mem.Warehouses(),
			products:   mem.Products(),
			lots:       mem.Lots(),
			catalog:    mem,
		}, nil
	case config.StoreDriverPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DB)
		if err != nil {
			return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
		}
		c.closers = append(c.closers, pool.Close)
		c.HealthCheck = pool.Ping
		return &stores{
			txRunner:   postgres.NewTxRunner(pool),
			transfers:  postgres.NewTransferRepository(pool),
			lines:      postgres.NewTransferLineRepository(pool),
			movements:  postgres.NewStockMovementRepository(pool),
			levels:     postgres.NewStockLevelRepository(pool),
			warehouses: postgres.NewWarehouseRepository(pool),
			products:   postgres.NewProductRepository(pool),
			lots:       postgres.NewLotRepository(pool),
			catalog:    postgres.NewCatalogWriter(pool),
		}, nil
	}
	return nil, fmt.Errorf("store driver %q no soportado", cfg.App.StoreDriver)
}

// Seed carga el catálogo de path si está definido.
func (c *Container) Seed(ctx context.Context, path string, log *logger.Logger) error {
	if path == "" {
		return nil
	}
	cat, err := seed.LoadFile(path)
	if err != nil {
		return err
	}
	res, err := seed.Apply(ctx, cat, c.Catalog, c.AdjustStock)
	if err != nil {
		return err
	}
	log.Info().
		Str("file", path).
		Int("warehouses", res.Warehouses).
		Int("products", res.Products).
		Int("lots", res.Lots).
		Int("openings", res.Openings).
		Int("replayed", res.Replayed).
		Msg("catálogo cargado")
	return nil
}
