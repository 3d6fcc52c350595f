package transfer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	inv "github.com/jhoicas/traslados-api/internal/domain/inventory"
)

// LineInput línea solicitada. LotID vacío en un producto con lote se reparte por FEFO.
type LineInput struct {
	ProductID string
	LotID     string
	Quantity  decimal.Decimal
}

// CreateInput datos para crear un traslado. Draft=true lo deja en borrador.
type CreateInput struct {
	OriginWarehouseID      string
	DestinationWarehouseID string
	Notes                  string
	Draft                  bool
	Lines                  []LineInput
}

type lineKey struct{ productID, lotID string }

// Create valida, reparte lotes por FEFO, verifica disponibilidad en origen (sin bloquear)
// y persiste cabecera y líneas. Si las líneas no se pueden guardar se compensa borrando la cabecera.
func (s *Service) Create(ctx context.Context, actor entity.Actor, in CreateInput) (t *entity.Transfer, err error) {
	start := s.now()
	defer func() { s.observe("create", start, err) }()

	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if err := validateCreate(in); err != nil {
		return nil, err
	}
	if err := s.checkWarehouses(ctx, actor, in.OriginWarehouseID, in.DestinationWarehouseID); err != nil {
		return nil, err
	}
	products, err := s.resolveLines(ctx, actor, in.Lines)
	if err != nil {
		return nil, err
	}
	resolved, err := s.expandLots(ctx, in.OriginWarehouseID, in.Lines, products)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	t = &entity.Transfer{
		ID:                     uuid.NewString(),
		CompanyID:              actor.CompanyID,
		OriginWarehouseID:      in.OriginWarehouseID,
		DestinationWarehouseID: in.DestinationWarehouseID,
		Status:                 entity.TransferStatusPending,
		Notes:                  in.Notes,
		CreatedBy:              actor.UserID,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if in.Draft {
		t.Status = entity.TransferStatusDraft
	}
	for _, rl := range resolved {
		t.Lines = append(t.Lines, entity.TransferLine{
			ID:                uuid.NewString(),
			TransferID:        t.ID,
			ProductID:         rl.productID,
			LotID:             rl.lotID,
			QuantityRequested: rl.qty,
			QuantityReceived:  decimal.Zero,
			UnitCost:          products[rl.productID].Cost,
			CreatedAt:         now,
			UpdatedAt:         now,
		})
	}

	if err := s.checkSoftAvailability(ctx, t); err != nil {
		return nil, err
	}

	if err := s.transfers.Create(ctx, t); err != nil {
		return nil, domain.AsPersistence("crear traslado", err)
	}
	if err := s.lines.CreateBatch(ctx, t.Lines); err != nil {
		return nil, s.compensateCreate(ctx, t, err)
	}

	s.log.Info().
		Str("transfer_id", t.ID).
		Str("company_id", t.CompanyID).
		Int("lines", len(t.Lines)).
		Msg("traslado creado")
	return t, nil
}

func validateCreate(in CreateInput) error {
	if in.OriginWarehouseID == "" || in.DestinationWarehouseID == "" {
		return domain.NewValidationError("warehouse", "origen y destino son obligatorios")
	}
	if in.OriginWarehouseID == in.DestinationWarehouseID {
		return domain.NewValidationError("destination_warehouse_id", "debe ser distinta del origen")
	}
	if len(in.Lines) == 0 {
		return domain.NewValidationError("lines", "el traslado necesita al menos una línea")
	}
	seen := make(map[lineKey]struct{}, len(in.Lines))
	for _, l := range in.Lines {
		if l.ProductID == "" {
			return domain.NewValidationError("lines.product_id", "obligatorio")
		}
		if !l.Quantity.GreaterThan(decimal.Zero) {
			return domain.NewValidationError("lines.quantity", "debe ser mayor que cero")
		}
		k := lineKey{l.ProductID, l.LotID}
		if _, dup := seen[k]; dup {
			return domain.NewValidationError("lines", "producto y lote repetidos: "+l.ProductID)
		}
		seen[k] = struct{}{}
	}
	return nil
}

func (s *Service) checkWarehouses(ctx context.Context, actor entity.Actor, ids ...string) error {
	for _, id := range ids {
		wh, err := s.warehouses.GetByID(ctx, id)
		if err != nil {
			return domain.AsPersistence("consultar bodega", err)
		}
		if !wh.BelongsTo(actor.CompanyID) {
			return domain.NewNotFoundError("bodega", id)
		}
	}
	return nil
}

func (s *Service) resolveLines(ctx context.Context, actor entity.Actor, lines []LineInput) (map[string]*entity.Product, error) {
	products := make(map[string]*entity.Product, len(lines))
	for _, l := range lines {
		p, ok := products[l.ProductID]
		if !ok {
			var err error
			p, err = s.products.GetByID(ctx, l.ProductID)
			if err != nil {
				return nil, domain.AsPersistence("consultar producto", err)
			}
			if p == nil || p.CompanyID != actor.CompanyID {
				return nil, domain.NewNotFoundError("producto", l.ProductID)
			}
			products[l.ProductID] = p
		}
		if l.LotID == "" {
			continue
		}
		lot, err := s.lots.GetByID(ctx, l.LotID)
		if err != nil {
			return nil, domain.AsPersistence("consultar lote", err)
		}
		if lot == nil {
			return nil, domain.NewNotFoundError("lote", l.LotID)
		}
		if lot.ProductID != l.ProductID {
			return nil, domain.NewValidationError("lines.lot_id", "el lote "+l.LotID+" no pertenece al producto "+l.ProductID)
		}
	}
	return products, nil
}

type resolvedLine struct {
	productID string
	lotID     string
	qty       decimal.Decimal
}

// expandLots reemplaza las líneas sin lote de productos con lote por asignaciones FEFO
// del origen. Lo pedido explícitamente por lote se descuenta antes de asignar.
func (s *Service) expandLots(ctx context.Context, origin string, lines []LineInput, products map[string]*entity.Product) ([]resolvedLine, error) {
	explicit := make(map[lineKey]decimal.Decimal)
	for _, l := range lines {
		if l.LotID != "" {
			explicit[lineKey{l.ProductID, l.LotID}] = l.Quantity
		}
	}

	merged := make(map[lineKey]decimal.Decimal)
	var order []lineKey
	add := func(k lineKey, q decimal.Decimal) {
		if _, ok := merged[k]; !ok {
			order = append(order, k)
			merged[k] = decimal.Zero
		}
		merged[k] = merged[k].Add(q)
	}

	var shortages []domain.StockShortage
	for _, l := range lines {
		if l.LotID != "" || !products[l.ProductID].LotTracked {
			add(lineKey{l.ProductID, l.LotID}, l.Quantity)
			continue
		}
		lots, err := s.collectLots(ctx, origin, l.ProductID)
		if err != nil {
			return nil, err
		}
		for i := range lots {
			if used, ok := explicit[lineKey{l.ProductID, lots[i].LotID}]; ok {
				lots[i].Available = lots[i].Available.Sub(used)
			}
		}
		allocs, remaining := inv.AllocateFEFO(lots, l.Quantity)
		if remaining.GreaterThan(decimal.Zero) {
			shortages = append(shortages, domain.StockShortage{
				ProductID: l.ProductID,
				Requested: l.Quantity,
				Available: l.Quantity.Sub(remaining),
			})
			continue
		}
		for _, a := range allocs {
			add(lineKey{l.ProductID, a.LotID}, a.Quantity)
		}
	}
	if len(shortages) > 0 {
		return nil, &domain.InsufficientStockError{Shortages: shortages}
	}

	out := make([]resolvedLine, 0, len(order))
	for _, k := range order {
		out = append(out, resolvedLine{productID: k.productID, lotID: k.lotID, qty: merged[k]})
	}
	return out, nil
}

func (s *Service) collectLots(ctx context.Context, warehouseID, productID string) ([]inv.LotStock, error) {
	var lots []inv.LotStock
	for lot, err := range s.projector.LotsAvailable(ctx, warehouseID, productID) {
		if err != nil {
			return nil, domain.AsPersistence("consultar lotes", err)
		}
		lots = append(lots, inv.LotStock{LotID: lot.LotID, ExpiresAt: lot.ExpiresAt, Available: lot.Quantity})
	}
	return lots, nil
}

// checkSoftAvailability lectura sin bloqueo; el despacho vuelve a verificar bajo bloqueo.
func (s *Service) checkSoftAvailability(ctx context.Context, t *entity.Transfer) error {
	var shortages []domain.StockShortage
	for _, l := range t.Lines {
		avail, err := s.projector.Available(ctx, l.StockKey(t.OriginWarehouseID))
		if err != nil {
			return domain.AsPersistence("consultar disponible", err)
		}
		if avail.LessThan(l.QuantityRequested) {
			shortages = append(shortages, domain.StockShortage{
				LineID: l.ID, ProductID: l.ProductID, LotID: l.LotID,
				Requested: l.QuantityRequested, Available: avail,
			})
		}
	}
	if len(shortages) > 0 {
		return &domain.InsufficientStockError{Shortages: shortages}
	}
	return nil
}

// compensateCreate borra la cabecera con reintentos acotados; si no se puede la marca
// como huérfana y, si tampoco, lo deja registrado en log y métricas.
func (s *Service) compensateCreate(ctx context.Context, t *entity.Transfer, cause error) error {
	ctx = context.WithoutCancel(ctx)
	log := s.log.ForTransfer(t.ID, t.CreatedBy)

	base := s.retry.Base
	if base <= 0 {
		base = 10 * time.Millisecond
	}
	b := retry.WithMaxRetries(s.compensationRetries, retry.NewExponential(base))
	delErr := retry.Do(ctx, b, func(ctx context.Context) error {
		if err := s.transfers.Delete(ctx, t.ID); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if delErr == nil {
		log.Warn().Err(cause).Msg("líneas no guardadas; cabecera revertida")
		return &domain.PersistenceError{Op: "crear líneas de traslado", Err: cause}
	}

	markErr := s.transfers.MarkOrphaned(ctx, t.ID)
	if markErr == nil {
		log.Error().Err(delErr).Msg("no se pudo revertir la cabecera; marcada como huérfana")
		return &domain.PersistenceError{Op: "crear líneas de traslado", Err: multierr.Combine(cause, delErr)}
	}

	log.Error().Err(multierr.Combine(delErr, markErr)).Msg("compensación fallida: cabecera sin líneas pendiente de limpieza manual")
	s.metrics.IncCompensationFailure()
	return &domain.PersistenceError{Op: "crear líneas de traslado", Err: multierr.Combine(cause, delErr, markErr)}
}
