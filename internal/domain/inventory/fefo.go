package inventory

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// LotStock disponibilidad de un lote en una bodega.
type LotStock struct {
	LotID     string
	ExpiresAt *time.Time
	Available decimal.Decimal
}

// Allocation cantidad tomada de un lote.
type Allocation struct {
	LotID     string
	ExpiresAt *time.Time
	Quantity  decimal.Decimal
}

// FEFOLess orden "primero en vencer, primero en salir": vencimiento ascendente,
// lotes sin vencimiento al final y desempate por ID de lote.
func FEFOLess(a, b LotStock) bool {
	switch {
	case a.ExpiresAt != nil && b.ExpiresAt != nil:
		if !a.ExpiresAt.Equal(*b.ExpiresAt) {
			return a.ExpiresAt.Before(*b.ExpiresAt)
		}
	case a.ExpiresAt != nil:
		return true
	case b.ExpiresAt != nil:
		return false
	}
	return a.LotID < b.LotID
}

// SortFEFO ordena los lotes in-place según FEFOLess.
func SortFEFO(lots []LotStock) {
	sort.SliceStable(lots, func(i, j int) bool { return FEFOLess(lots[i], lots[j]) })
}

// AllocateFEFO reparte qty entre los lotes con disponible > 0 en orden FEFO.
// Devuelve las asignaciones y lo que quedó sin cubrir (cero si alcanzó).
func AllocateFEFO(lots []LotStock, qty decimal.Decimal) ([]Allocation, decimal.Decimal) {
	sorted := make([]LotStock, 0, len(lots))
	for _, l := range lots {
		if l.Available.GreaterThan(decimal.Zero) {
			sorted = append(sorted, l)
		}
	}
	SortFEFO(sorted)

	remaining := qty
	var out []Allocation
	for _, l := range sorted {
		if !remaining.GreaterThan(decimal.Zero) {
			break
		}
		take := decimal.Min(l.Available, remaining)
		out = append(out, Allocation{LotID: l.LotID, ExpiresAt: l.ExpiresAt, Quantity: take})
		remaining = remaining.Sub(take)
	}
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	return out, remaining
}
