package memory

import (
	"context"
	"fmt"
	"slices"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	inv "github.com/jhoicas/traslados-api/internal/domain/inventory"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

// StockLevelRepo saldos en memoria con control de versión.
type StockLevelRepo struct{ sc scope }

var _ repository.StockLevelRepository = (*StockLevelRepo)(nil)

func (r *StockLevelRepo) Get(_ context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	var out *entity.StockLevel
	err := r.sc.read(func(d *data) error {
		if lvl, ok := d.levels[key]; ok {
			out = &lvl
			return nil
		}
		out = entity.NewStockLevel(key)
		return nil
	})
	return out, err
}

func (r *StockLevelRepo) GetForUpdate(ctx context.Context, key entity.StockKey) (*entity.StockLevel, error) {
	return r.Get(ctx, key)
}

func (r *StockLevelRepo) Save(_ context.Context, level *entity.StockLevel) error {
	return r.sc.write(OpLevelSave, func(d *data) error {
		cur, ok := d.levels[level.Key()]
		var curVersion int64
		if ok {
			curVersion = cur.Version
		}
		if curVersion != level.Version {
			return fmt.Errorf("guardar saldo %v (versión %d, actual %d): %w",
				level.Key(), level.Version, curVersion, domain.ErrConcurrencyConflict)
		}
		level.Version++
		d.levels[level.Key()] = *level
		return nil
	})
}

func (r *StockLevelRepo) ListLots(_ context.Context, warehouseID, productID string, after *repository.LotCursor, limit int) ([]repository.LotAvailability, error) {
	var rows []repository.LotAvailability
	err := r.sc.read(func(d *data) error {
		for k, lvl := range d.levels {
			if k.WarehouseID != warehouseID || k.ProductID != productID || k.LotID == "" {
				continue
			}
			avail := lvl.Available()
			if !avail.GreaterThan(decimal.Zero) {
				continue
			}
			lot := d.lots[k.LotID]
			rows = append(rows, repository.LotAvailability{
				LotID: k.LotID, LotCode: lot.Code, ExpiresAt: lot.ExpiresAt,
				OnHand: lvl.OnHand, Reserved: lvl.Reserved, Available: avail,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	less := func(a, b repository.LotAvailability) bool {
		return inv.FEFOLess(inv.LotStock{LotID: a.LotID, ExpiresAt: a.ExpiresAt}, inv.LotStock{LotID: b.LotID, ExpiresAt: b.ExpiresAt})
	}
	slices.SortFunc(rows, func(a, b repository.LotAvailability) int {
		switch {
		case less(a, b):
			return -1
		case less(b, a):
			return 1
		}
		return 0
	})
	if after != nil {
		cur := repository.LotAvailability{LotID: after.LotID, ExpiresAt: after.ExpiresAt}
		i := 0
		for i < len(rows) && !less(cur, rows[i]) {
			i++
		}
		rows = rows[i:]
	}
	return paginate(rows, 0, limit), nil
}

func (r *StockLevelRepo) List(_ context.Context, after *entity.StockKey, limit int) ([]*entity.StockLevel, error) {
	var out []*entity.StockLevel
	err := r.sc.read(func(d *data) error {
		for k, lvl := range d.levels {
			if after != nil && !after.Less(k) {
				continue
			}
			out = append(out, &lvl)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	slices.SortFunc(out, func(a, b *entity.StockLevel) int {
		switch {
		case a.Key().Less(b.Key()):
			return -1
		case b.Key().Less(a.Key()):
			return 1
		}
		return 0
	})
	return paginate(out, 0, limit), nil
}
