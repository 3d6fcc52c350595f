package memory

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// AddWarehouse registra una bodega del catálogo.
func (s *Store) AddWarehouse(w entity.Warehouse) {
	s.mutate(func(d *data) { d.warehouses[w.ID] = w })
}

// AddProduct registra un producto del catálogo.
func (s *Store) AddProduct(p entity.Product) {
	s.mutate(func(d *data) { d.products[p.ID] = p })
}

// AddLot registra un lote del catálogo.
func (s *Store) AddLot(l entity.Lot) {
	s.mutate(func(d *data) { d.lots[l.ID] = l })
}

// SaveWarehouse, SaveProduct y SaveLot exponen el alta de catálogo con la firma de los
// adaptadores persistentes, para cargas iniciales.
func (s *Store) SaveWarehouse(_ context.Context, w entity.Warehouse) error {
	s.AddWarehouse(w)
	return nil
}

func (s *Store) SaveProduct(_ context.Context, p entity.Product) error {
	s.AddProduct(p)
	return nil
}

func (s *Store) SaveLot(_ context.Context, l entity.Lot) error {
	s.AddLot(l)
	return nil
}

// SeedStock agrega existencia con un movimiento de ajuste y su saldo, manteniendo
// kardex y saldo consistentes.
func (s *Store) SeedStock(companyID string, key entity.StockKey, qty decimal.Decimal) {
	s.mutate(func(d *data) {
		now := time.Now().UTC()
		id := uuid.NewString()
		m := entity.StockMovement{
			ID: id, CompanyID: companyID,
			WarehouseID: key.WarehouseID, ProductID: key.ProductID, LotID: key.LotID,
			Direction: entity.DirectionIn, Quantity: qty,
			SourceKind: entity.SourceAdjustment, SourceID: id, IdempotencyKey: id,
			CreatedAt: now,
		}
		d.refs[m.IdempotencyRef()] = len(d.movements)
		d.movements = append(d.movements, m)
		lvl, ok := d.levels[key]
		if !ok {
			lvl = *entity.NewStockLevel(key)
			lvl.CompanyID = companyID
		}
		lvl.OnHand = lvl.OnHand.Add(qty)
		lvl.Version++
		lvl.UpdatedAt = now
		d.levels[key] = lvl
	})
}

// OverwriteLevel escribe un saldo sin pasar por el kardex (simula un desvío).
func (s *Store) OverwriteLevel(lvl entity.StockLevel) {
	s.mutate(func(d *data) {
		lvl.Version++
		d.levels[lvl.Key()] = lvl
	})
}

// Level saldo confirmado de la clave (cero si no existe).
func (s *Store) Level(key entity.StockKey) entity.StockLevel {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	if lvl, ok := s.d.levels[key]; ok {
		return lvl
	}
	return *entity.NewStockLevel(key)
}

// AllMovements copia del kardex confirmado en orden de inserción.
func (s *Store) AllMovements() []entity.StockMovement {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	out := make([]entity.StockMovement, len(s.d.movements))
	copy(out, s.d.movements)
	return out
}

// AllLevels copia de todos los saldos confirmados.
func (s *Store) AllLevels() []entity.StockLevel {
	s.dataMu.RLock()
	defer s.dataMu.RUnlock()
	out := make([]entity.StockLevel, 0, len(s.d.levels))
	for _, l := range s.d.levels {
		out = append(out, l)
	}
	return out
}

func (s *Store) mutate(fn func(d *data)) {
	s.txMu.Lock()
	defer s.txMu.Unlock()
	snap := s.snapshot()
	fn(snap)
	s.commit(snap)
}
