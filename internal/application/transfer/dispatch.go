package transfer

import (
	"context"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	lifecycle "github.com/jhoicas/traslados-api/internal/domain/transfer"
)

// DispatchResult traslado despachado y sus salidas. Replayed=true indica que ya estaba
// despachado y no se generaron movimientos nuevos.
type DispatchResult struct {
	Transfer  *entity.Transfer
	Movements []*entity.StockMovement
	Replayed  bool
}

// Dispatch verifica disponibilidad bajo bloqueo, registra una salida por línea en origen y
// pasa el traslado a in_transit. Todo o nada: si alguna línea no alcanza no se escribe nada.
func (s *Service) Dispatch(ctx context.Context, actor entity.Actor, id string) (*DispatchResult, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	var res *DispatchResult
	err := s.execute(ctx, "dispatch", func(ctx context.Context, st inventory.Stores) error {
		t, err := lockTransfer(ctx, st, actor, id)
		if err != nil {
			return err
		}
		if t.Status.Dispatched() {
			movs, err := st.Movements.ListBySource(ctx, t.ID)
			if err != nil {
				return err
			}
			t.Status = lifecycle.Derive(t.Status, t.Lines)
			res = &DispatchResult{Transfer: t, Movements: outgoing(movs), Replayed: true}
			return nil
		}
		next, err := lifecycle.Next(*t, lifecycle.EventDispatch)
		if err != nil {
			return err
		}

		reqs := make([]inventory.Requirement, 0, len(t.Lines))
		for _, l := range t.Lines {
			reqs = append(reqs, inventory.Requirement{LineID: l.ID, Key: l.StockKey(t.OriginWarehouseID), Quantity: l.QuantityRequested})
		}
		shortages, err := s.projector.CheckAvailability(ctx, st.Levels, reqs)
		if err != nil {
			return err
		}
		if len(shortages) > 0 {
			return &domain.InsufficientStockError{TransferID: t.ID, Shortages: shortages}
		}

		movs := make([]*entity.StockMovement, 0, len(t.Lines))
		for _, l := range t.Lines {
			m, _, err := s.poster.Post(ctx, st, inventory.RecordInput{
				CompanyID:   t.CompanyID,
				WarehouseID: t.OriginWarehouseID,
				ProductID:   l.ProductID,
				LotID:       l.LotID,
				Direction:   entity.DirectionOut,
				Quantity:    l.QuantityRequested,
				SourceKind:  entity.SourceTransferOut,
				SourceID:    t.ID,
				LineID:      l.ID,
				UnitCost:    l.UnitCost,
				Actor:       actor.UserID,
			})
			if err != nil {
				return err
			}
			movs = append(movs, m)
		}

		now := s.now().UTC()
		t.Status = next
		t.DispatchedBy = actor.UserID
		t.DispatchedAt = &now
		t.UpdatedAt = now
		if err := st.Transfers.Update(ctx, t); err != nil {
			return err
		}
		res = &DispatchResult{Transfer: t, Movements: movs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !res.Replayed {
		s.metrics.AddMovements(string(entity.SourceTransferOut), len(res.Movements))
		s.log.ForTransfer(id, actor.UserID).Info().Int("movements", len(res.Movements)).Msg("traslado despachado")
	}
	return res, nil
}

func outgoing(movs []*entity.StockMovement) []*entity.StockMovement {
	out := make([]*entity.StockMovement, 0, len(movs))
	for _, m := range movs {
		if m.SourceKind == entity.SourceTransferOut {
			out = append(out, m)
		}
	}
	return out
}
