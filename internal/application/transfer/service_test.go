package transfer_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/application/transfer"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/infrastructure/memory"
	"github.com/jhoicas/traslados-api/pkg/logger"
	"github.com/jhoicas/traslados-api/pkg/metrics"
)

const (
	company = "co-1"
	whA     = "wh-a"
	whB     = "wh-b"
	prodP   = "p-1"
	prodLot = "p-lot"
)

var actor = entity.Actor{CompanyID: company, UserID: "bodeguero-1"}

func d(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

type fixture struct {
	store *memory.Store
	svc   *transfer.Service
	reg   *prometheus.Registry
	adj   *inventory.AdjustStockUseCase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memory.NewStore()
	st.AddWarehouse(entity.Warehouse{ID: whA, CompanyID: company, Name: "Bodega A"})
	st.AddWarehouse(entity.Warehouse{ID: whB, CompanyID: company, Name: "Bodega B"})
	st.AddWarehouse(entity.Warehouse{ID: "wh-otra", CompanyID: "co-2", Name: "Ajena"})
	st.AddProduct(entity.Product{ID: prodP, CompanyID: company, SKU: "P", Cost: d(10)})
	st.AddProduct(entity.Product{ID: prodLot, CompanyID: company, SKU: "L", LotTracked: true, Cost: d(5)})

	reg := prometheus.NewRegistry()
	retry := inventory.RetryPolicy{MaxRetries: 3, Base: time.Millisecond}
	proj := inventory.NewStockProjector(st.Levels(), 2)
	poster := inventory.NewPoster(inventory.NewStockLedger(), proj)
	svc := transfer.NewService(transfer.Deps{
		TxRunner:   st,
		Transfers:  st.Transfers(),
		Lines:      st.Lines(),
		Movements:  st.Movements(),
		Warehouses: st.Warehouses(),
		Products:   st.Products(),
		Lots:       st.Lots(),
		Projector:  proj,
		Poster:     poster,
		Logger:     logger.Nop(),
		Metrics:    metrics.NewTransferMetrics(reg),
	}, transfer.Config{Retry: retry, CompensationRetries: 2})
	adj := inventory.NewAdjustStockUseCase(st, poster, st.Products(), st.Warehouses(), st.Lots(), retry)
	return &fixture{store: st, svc: svc, reg: reg, adj: adj}
}

func keyOf(wh, product, lot string) entity.StockKey {
	return entity.StockKey{WarehouseID: wh, ProductID: product, LotID: lot}
}

func (f *fixture) onHand(wh, product, lot string) decimal.Decimal {
	return f.store.Level(keyOf(wh, product, lot)).OnHand
}

func (f *fixture) create(t *testing.T, lines ...transfer.LineInput) *entity.Transfer {
	t.Helper()
	tr, err := f.svc.Create(context.Background(), actor, transfer.CreateInput{
		OriginWarehouseID: whA, DestinationWarehouseID: whB, Lines: lines,
	})
	require.NoError(t, err)
	return tr
}

// assertInvariants kardex = saldo para cada clave, recibido dentro de rango y
// ningún traslado complete con líneas pendientes.
func (f *fixture) assertInvariants(t *testing.T) {
	t.Helper()
	sums := map[entity.StockKey]decimal.Decimal{}
	for _, m := range f.store.AllMovements() {
		sums[m.Key()] = sums[m.Key()].Add(m.SignedQuantity())
	}
	for _, lvl := range f.store.AllLevels() {
		assert.Truef(t, sums[lvl.Key()].Equal(lvl.OnHand), "clave %v: kardex %s, saldo %s", lvl.Key(), sums[lvl.Key()], lvl.OnHand)
		delete(sums, lvl.Key())
	}
	for k, s := range sums {
		assert.Truef(t, s.IsZero(), "clave %v con movimientos y sin saldo", k)
	}

	list, err := f.svc.List(context.Background(), actor, transfer.ListFilter{Limit: 200})
	require.NoError(t, err)
	for _, tr := range list {
		for _, l := range tr.Lines {
			assert.False(t, l.QuantityReceived.IsNegative())
			assert.True(t, l.QuantityReceived.LessThanOrEqual(l.QuantityRequested))
			if tr.Status == entity.TransferStatusComplete {
				assert.Equal(t, entity.LineStatusComplete, l.Status())
			}
		}
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name string) float64 {
	t.Helper()
	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		total := 0.0
		for _, m := range mf.GetMetric() {
			total += counterOf(m)
		}
		return total
	}
	return 0
}

func counterOf(m *dto.Metric) float64 {
	if m.GetCounter() == nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

var errBoom = errors.New("boom")
