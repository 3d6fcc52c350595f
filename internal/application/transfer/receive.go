package transfer

import (
	"context"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	lifecycle "github.com/jhoicas/traslados-api/internal/domain/transfer"
)

// ReceiveLine cantidad recibida de una línea en esta entrega.
type ReceiveLine struct {
	LineID   string
	Quantity decimal.Decimal
}

// ReceiveInput una entrega en destino. ReceiptRef identifica la entrega para reintentos
// seguros: repetir la misma referencia no vuelve a sumar.
type ReceiveInput struct {
	ReceiptRef string
	Lines      []ReceiveLine
}

// LineOutcome resultado por línea: Accepted puede ser menor que Requested si la línea
// tenía menos pendiente (Clamped).
type LineOutcome struct {
	LineID    string          `json:"line_id"`
	Requested decimal.Decimal `json:"requested"`
	Accepted  decimal.Decimal `json:"accepted"`
	Clamped   bool            `json:"clamped"`
	Replayed  bool            `json:"replayed"`
}

// ReceiveResult traslado actualizado, resultado por línea y entradas generadas.
type ReceiveResult struct {
	Transfer  *entity.Transfer
	Lines     []LineOutcome
	Movements []*entity.StockMovement
}

// Receive registra entradas en destino solo por lo aceptado; lo que excede lo pendiente se
// recorta y se informa. El estado del traslado se recalcula a partir de las líneas.
func (s *Service) Receive(ctx context.Context, actor entity.Actor, id string, in ReceiveInput) (*ReceiveResult, error) {
	if err := checkActor(actor); err != nil {
		return nil, err
	}
	if err := validateReceive(in); err != nil {
		return nil, err
	}

	var res *ReceiveResult
	err := s.execute(ctx, "receive", func(ctx context.Context, st inventory.Stores) error {
		t, err := lockTransfer(ctx, st, actor, id)
		if err != nil {
			return err
		}
		if _, err := lifecycle.Next(*t, lifecycle.EventReceive); err != nil {
			return err
		}

		lines := make([]*entity.TransferLine, len(in.Lines))
		for i, rl := range in.Lines {
			l, ok := t.Line(rl.LineID)
			if !ok {
				return domain.NewNotFoundError("línea", rl.LineID)
			}
			lines[i] = l
		}

		// Saldos de destino en orden de clave
		order := make([]int, len(in.Lines))
		for i := range order {
			order[i] = i
		}
		sort.SliceStable(order, func(a, b int) bool {
			ka := lines[order[a]].StockKey(t.DestinationWarehouseID)
			kb := lines[order[b]].StockKey(t.DestinationWarehouseID)
			return ka.Less(kb)
		})

		outcomes := make([]LineOutcome, len(in.Lines))
		var movs []*entity.StockMovement
		now := s.now().UTC()
		for _, i := range order {
			rl, l := in.Lines[i], lines[i]
			out, m, err := s.receiveLine(ctx, st, actor, t, l, rl.Quantity, in.ReceiptRef, now)
			if err != nil {
				return err
			}
			outcomes[i] = out
			if m != nil {
				movs = append(movs, m)
			}
		}

		status, err := lifecycle.ApplyReceipt(*t, t.Lines)
		if err != nil {
			return err
		}
		if status != t.Status || len(movs) > 0 {
			t.Status = status
			t.UpdatedAt = now
			if err := st.Transfers.Update(ctx, t); err != nil {
				return err
			}
		}
		res = &ReceiveResult{Transfer: t, Lines: outcomes, Movements: movs}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := s.log.ForTransfer(id, actor.UserID)
	for _, o := range res.Lines {
		if o.Clamped {
			s.metrics.IncClamped()
			log.Warn().
				Str("line_id", o.LineID).
				Str("requested", o.Requested.String()).
				Str("accepted", o.Accepted.String()).
				Msg("recepción recortada a lo pendiente")
		}
	}
	s.metrics.AddMovements(string(entity.SourceTransferIn), len(res.Movements))
	return res, nil
}

func (s *Service) receiveLine(
	ctx context.Context,
	st inventory.Stores,
	actor entity.Actor,
	t *entity.Transfer,
	l *entity.TransferLine,
	qty decimal.Decimal,
	receiptRef string,
	now time.Time,
) (LineOutcome, *entity.StockMovement, error) {
	out := LineOutcome{LineID: l.ID, Requested: qty, Accepted: decimal.Zero}
	key := receiptKey(l, receiptRef)

	prev, err := st.Movements.GetByRef(ctx, entity.MovementRef{
		SourceKind: entity.SourceTransferIn, SourceID: t.ID, Direction: entity.DirectionIn, Key: key,
	})
	if err != nil {
		return out, nil, err
	}
	if prev != nil {
		out.Accepted = prev.Quantity
		out.Replayed = true
		return out, nil, nil
	}

	accepted := decimal.Min(qty, l.Outstanding())
	out.Accepted = accepted
	out.Clamped = accepted.LessThan(qty)
	if !accepted.GreaterThan(decimal.Zero) {
		return out, nil, nil
	}

	m, _, err := s.poster.Post(ctx, st, inventory.RecordInput{
		CompanyID:      t.CompanyID,
		WarehouseID:    t.DestinationWarehouseID,
		ProductID:      l.ProductID,
		LotID:          l.LotID,
		Direction:      entity.DirectionIn,
		Quantity:       accepted,
		SourceKind:     entity.SourceTransferIn,
		SourceID:       t.ID,
		LineID:         l.ID,
		IdempotencyKey: key,
		UnitCost:       l.UnitCost,
		Actor:          actor.UserID,
	})
	if err != nil {
		return out, nil, err
	}
	l.QuantityReceived = l.QuantityReceived.Add(accepted)
	l.UpdatedAt = now
	if err := st.Lines.UpdateReceived(ctx, l); err != nil {
		return out, nil, err
	}
	return out, m, nil
}

// receiptKey clave idempotente de la entrada de una línea. Las referencias del cliente y las
// automáticas (por lo recibido hasta ahora) llevan prefijos distintos y no pueden coincidir.
func receiptKey(l *entity.TransferLine, receiptRef string) string {
	if receiptRef == "" {
		return l.ID + "#auto:" + l.QuantityReceived.String()
	}
	return l.ID + "#ref:" + receiptRef
}

func validateReceive(in ReceiveInput) error {
	if len(in.Lines) == 0 {
		return domain.NewValidationError("lines", "la recepción necesita al menos una línea")
	}
	seen := make(map[string]struct{}, len(in.Lines))
	for _, l := range in.Lines {
		if l.LineID == "" {
			return domain.NewValidationError("lines.line_id", "obligatorio")
		}
		if !l.Quantity.GreaterThan(decimal.Zero) {
			return domain.NewValidationError("lines.quantity", "debe ser mayor que cero")
		}
		if _, dup := seen[l.LineID]; dup {
			return domain.NewValidationError("lines", "línea repetida: "+l.LineID)
		}
		seen[l.LineID] = struct{}{}
	}
	return nil
}
