package transfer

import (
	"context"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	lifecycle "github.com/jhoicas/traslados-api/internal/domain/transfer"
)

// Submit confirma un borrador (draft → pending).
func (s *Service) Submit(ctx context.Context, actor entity.Actor, id string) (*entity.Transfer, error) {
	return s.transition(ctx, actor, id, "submit", lifecycle.EventSubmit)
}

// Cancel anula un traslado sin despachar. Falla si ya tiene movimientos.
func (s *Service) Cancel(ctx context.Context, actor entity.Actor, id string) (*entity.Transfer, error) {
	return s.transition(ctx, actor, id, "cancel", lifecycle.EventCancel)
}

func (s *Service) transition(ctx context.Context, actor entity.Actor, id, op string, ev lifecycle.Event) (*entity.Transfer, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	var out *entity.Transfer
	err := s.execute(ctx, op, func(ctx context.Context, st inventory.Stores) error {
		t, err := lockTransfer(ctx, st, actor, id)
		if err != nil {
			return err
		}
		next, err := lifecycle.Next(*t, ev)
		if err != nil {
			return err
		}
		if ev == lifecycle.EventCancel {
			if err := ensureNoMovements(ctx, st, t, string(ev)); err != nil {
				return err
			}
		}
		t.Status = next
		t.UpdatedAt = s.now().UTC()
		if err := st.Transfers.Update(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.ForTransfer(id, actor.UserID).Info().Str("status", string(out.Status)).Msg("estado de traslado actualizado")
	return out, nil
}

// Delete borra un traslado draft, pending o cancelled que nunca generó movimientos.
func (s *Service) Delete(ctx context.Context, actor entity.Actor, id string) error {
	if err := checkActor(actor); err != nil {
		return err
	}
	return s.execute(ctx, "delete", func(ctx context.Context, st inventory.Stores) error {
		t, err := lockTransfer(ctx, st, actor, id)
		if err != nil {
			return err
		}
		if !lifecycle.CanDelete(t.Status) {
			return &domain.InvalidTransitionError{TransferID: t.ID, From: string(t.Status), Event: "delete"}
		}
		if err := ensureNoMovements(ctx, st, t, "delete"); err != nil {
			return err
		}
		if err := st.Lines.DeleteByTransfer(ctx, t.ID); err != nil {
			return err
		}
		return st.Transfers.Delete(ctx, t.ID)
	})
}

func ensureNoMovements(ctx context.Context, st inventory.Stores, t *entity.Transfer, event string) error {
	n, err := st.Movements.CountBySource(ctx, t.ID)
	if err != nil {
		return err
	}
	if n > 0 {
		return &domain.InvalidTransitionError{TransferID: t.ID, From: string(t.Status), Event: event}
	}
	return nil
}
