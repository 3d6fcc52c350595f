package inventory

import (
	"context"
	"iter"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
)

const defaultLotPageSize = 50

// Requirement cantidad que una línea necesita de una clave de stock.
type Requirement struct {
	LineID   string
	Key      entity.StockKey
	Quantity decimal.Decimal
}

// LotAvailability disponibilidad de un lote expuesta a los llamadores.
type LotAvailability struct {
	LotID     string          `json:"lot_id"`
	LotCode   string          `json:"lot_code,omitempty"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Quantity  decimal.Decimal `json:"quantity"`
}

// StockProjector mantiene los saldos consistentes con el kardex y responde disponibilidad.
// Es el único componente que escribe en StockLevelRepository.
type StockProjector struct {
	levels   repository.StockLevelRepository
	pageSize int
	now      func() time.Time
}

// NewStockProjector construye el proyector. levels es el repositorio de lectura (pool, sin tx).
func NewStockProjector(levels repository.StockLevelRepository, pageSize int) *StockProjector {
	if pageSize <= 0 {
		pageSize = defaultLotPageSize
	}
	return &StockProjector{levels: levels, pageSize: pageSize, now: time.Now}
}

// Available existencia menos reservado. Solo lectura, no bloquea.
func (p *StockProjector) Available(ctx context.Context, key entity.StockKey) (decimal.Decimal, error) {
	lvl, err := p.levels.Get(ctx, key)
	if err != nil {
		return decimal.Zero, err
	}
	return lvl.Available(), nil
}

// ApplyMovement actualiza el saldo de la clave del movimiento dentro de la tx del llamador:
// resta en salidas (sin dejar el disponible negativo) y suma en entradas.
func (p *StockProjector) ApplyMovement(ctx context.Context, levels repository.StockLevelRepository, m *entity.StockMovement) (*entity.StockLevel, error) {
	lvl, err := levels.GetForUpdate(ctx, m.Key())
	if err != nil {
		return nil, err
	}
	if lvl.CompanyID == "" {
		lvl.CompanyID = m.CompanyID
	}
	if m.Direction == entity.DirectionOut && lvl.Available().LessThan(m.Quantity) {
		return nil, &domain.InsufficientStockError{
			TransferID: transferSource(m),
			Shortages: []domain.StockShortage{{
				LineID: m.LineID, ProductID: m.ProductID, LotID: m.LotID,
				Requested: m.Quantity, Available: lvl.Available(),
			}},
		}
	}
	lvl.OnHand = lvl.OnHand.Add(m.SignedQuantity())
	lvl.UpdatedAt = p.now().UTC()
	if err := levels.Save(ctx, lvl); err != nil {
		return nil, err
	}
	return lvl, nil
}

// CheckAvailability bloquea los saldos de todas las claves (en orden de clave, para evitar
// interbloqueos) y devuelve las líneas cuyo disponible no alcanza. Requerimientos sobre la
// misma clave se acumulan.
func (p *StockProjector) CheckAvailability(ctx context.Context, levels repository.StockLevelRepository, reqs []Requirement) ([]domain.StockShortage, error) {
	totals := make(map[entity.StockKey]decimal.Decimal, len(reqs))
	keys := make([]entity.StockKey, 0, len(reqs))
	for _, r := range reqs {
		if _, ok := totals[r.Key]; !ok {
			keys = append(keys, r.Key)
			totals[r.Key] = decimal.Zero
		}
		totals[r.Key] = totals[r.Key].Add(r.Quantity)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })

	available := make(map[entity.StockKey]decimal.Decimal, len(keys))
	for _, k := range keys {
		lvl, err := levels.GetForUpdate(ctx, k)
		if err != nil {
			return nil, err
		}
		available[k] = lvl.Available()
	}

	var shortages []domain.StockShortage
	for _, r := range reqs {
		if available[r.Key].LessThan(totals[r.Key]) {
			shortages = append(shortages, domain.StockShortage{
				LineID: r.LineID, ProductID: r.Key.ProductID, LotID: r.Key.LotID,
				Requested: r.Quantity, Available: available[r.Key],
			})
		}
	}
	return shortages, nil
}

// Reserve aparta qty del disponible de la clave.
func (p *StockProjector) Reserve(ctx context.Context, levels repository.StockLevelRepository, key entity.StockKey, qty decimal.Decimal) (*entity.StockLevel, error) {
	if !qty.GreaterThan(decimal.Zero) {
		return nil, domain.NewValidationError("quantity", "debe ser mayor que cero")
	}
	lvl, err := levels.GetForUpdate(ctx, key)
	if err != nil {
		return nil, err
	}
	if lvl.Available().LessThan(qty) {
		return nil, &domain.InsufficientStockError{Shortages: []domain.StockShortage{{
			ProductID: key.ProductID, LotID: key.LotID, Requested: qty, Available: lvl.Available(),
		}}}
	}
	lvl.Reserved = lvl.Reserved.Add(qty)
	lvl.UpdatedAt = p.now().UTC()
	if err := levels.Save(ctx, lvl); err != nil {
		return nil, err
	}
	return lvl, nil
}

// Release libera hasta qty de lo reservado (nunca deja el reservado negativo).
func (p *StockProjector) Release(ctx context.Context, levels repository.StockLevelRepository, key entity.StockKey, qty decimal.Decimal) (*entity.StockLevel, error) {
	if !qty.GreaterThan(decimal.Zero) {
		return nil, domain.NewValidationError("quantity", "debe ser mayor que cero")
	}
	lvl, err := levels.GetForUpdate(ctx, key)
	if err != nil {
		return nil, err
	}
	lvl.Reserved = decimal.Max(decimal.Zero, lvl.Reserved.Sub(qty))
	lvl.UpdatedAt = p.now().UTC()
	if err := levels.Save(ctx, lvl); err != nil {
		return nil, err
	}
	return lvl, nil
}

// Rebuild fija la existencia de un saldo ya bloqueado (GetForUpdate) a la suma del kardex.
func (p *StockProjector) Rebuild(ctx context.Context, levels repository.StockLevelRepository, locked *entity.StockLevel, ledgerSum decimal.Decimal) (*entity.StockLevel, error) {
	locked.OnHand = ledgerSum
	locked.UpdatedAt = p.now().UTC()
	if err := levels.Save(ctx, locked); err != nil {
		return nil, err
	}
	return locked, nil
}

// LotsAvailable secuencia perezosa de lotes con disponible > 0, en orden FEFO
// (vencimiento ascendente, sin vencimiento al final, desempate por ID).
// Consulta por páginas a medida que se itera; cada recorrido vuelve a consultar.
func (p *StockProjector) LotsAvailable(ctx context.Context, warehouseID, productID string) iter.Seq2[LotAvailability, error] {
	return func(yield func(LotAvailability, error) bool) {
		var cursor *repository.LotCursor
		for {
			page, err := p.levels.ListLots(ctx, warehouseID, productID, cursor, p.pageSize)
			if err != nil {
				yield(LotAvailability{}, err)
				return
			}
			for _, row := range page {
				if !row.Available.GreaterThan(decimal.Zero) {
					continue
				}
				if !yield(LotAvailability{LotID: row.LotID, LotCode: row.LotCode, ExpiresAt: row.ExpiresAt, Quantity: row.Available}, nil) {
					return
				}
			}
			if len(page) < p.pageSize {
				return
			}
			last := page[len(page)-1]
			cursor = &repository.LotCursor{ExpiresAt: last.ExpiresAt, LotID: last.LotID}
		}
	}
}

func transferSource(m *entity.StockMovement) string {
	if m.SourceKind == entity.SourceTransferOut || m.SourceKind == entity.SourceTransferIn {
		return m.SourceID
	}
	return ""
}
