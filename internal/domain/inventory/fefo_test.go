package inventory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/traslados-api/internal/domain/inventory"
)

func day(d int) *time.Time {
	t := time.Date(2026, 1, d, 0, 0, 0, 0, time.UTC)
	return &t
}

func TestSortFEFO_VencimientoLuegoID(t *testing.T) {
	lots := []inventory.LotStock{
		{LotID: "sin-venc", Available: decimal.NewFromInt(1)},
		{LotID: "b", ExpiresAt: day(10), Available: decimal.NewFromInt(1)},
		{LotID: "a", ExpiresAt: day(10), Available: decimal.NewFromInt(1)},
		{LotID: "temprano", ExpiresAt: day(2), Available: decimal.NewFromInt(1)},
		{LotID: "otro-sin-venc", Available: decimal.NewFromInt(1)},
	}
	inventory.SortFEFO(lots)

	got := make([]string, 0, len(lots))
	for _, l := range lots {
		got = append(got, l.LotID)
	}
	assert.Equal(t, []string{"temprano", "a", "b", "otro-sin-venc", "sin-venc"}, got)
}

func TestAllocateFEFO_RepartePorVencimiento(t *testing.T) {
	lots := []inventory.LotStock{
		{LotID: "L2", ExpiresAt: day(20), Available: decimal.NewFromInt(10)},
		{LotID: "L1", ExpiresAt: day(5), Available: decimal.NewFromInt(4)},
		{LotID: "L0", ExpiresAt: day(1), Available: decimal.Zero},
	}
	allocs, remaining := inventory.AllocateFEFO(lots, decimal.NewFromInt(7))

	require.Len(t, allocs, 2)
	assert.Equal(t, "L1", allocs[0].LotID)
	assert.True(t, allocs[0].Quantity.Equal(decimal.NewFromInt(4)))
	assert.Equal(t, "L2", allocs[1].LotID)
	assert.True(t, allocs[1].Quantity.Equal(decimal.NewFromInt(3)))
	assert.True(t, remaining.IsZero())
}

func TestAllocateFEFO_Faltante(t *testing.T) {
	lots := []inventory.LotStock{{LotID: "L1", Available: decimal.NewFromInt(2)}}
	allocs, remaining := inventory.AllocateFEFO(lots, decimal.NewFromInt(5))
	require.Len(t, allocs, 1)
	assert.True(t, remaining.Equal(decimal.NewFromInt(3)))
}

func TestCostCalculator_PromedioPonderado(t *testing.T) {
	got := inventory.CostCalculator(decimal.NewFromInt(10), decimal.NewFromInt(100), decimal.NewFromInt(10), decimal.NewFromInt(200))
	assert.True(t, got.Equal(decimal.NewFromInt(150)), "got %s", got)

	got = inventory.CostCalculator(decimal.Zero, decimal.Zero, decimal.NewFromInt(5), decimal.NewFromInt(80))
	assert.True(t, got.Equal(decimal.NewFromInt(80)), "got %s", got)
}
