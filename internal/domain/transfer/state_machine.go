// Package transfer contiene la máquina de estados de los traslados.
// Son funciones puras: no leen ni escriben almacenamiento.
package transfer

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// Event acción que solicita un cambio de estado.
type Event string

const (
	EventSubmit   Event = "submit"
	EventDispatch Event = "dispatch"
	EventReceive  Event = "receive"
	EventCancel   Event = "cancel"
)

// LineStatus estado de una línea: pending si no se ha recibido nada,
// partial si 0 < recibido < solicitado, complete si recibido == solicitado.
func LineStatus(requested, received decimal.Decimal) entity.LineStatus {
	return entity.TransferLine{QuantityRequested: requested, QuantityReceived: received}.Status()
}

// IsTerminal complete y cancelled no admiten más eventos.
func IsTerminal(s entity.TransferStatus) bool {
	return s == entity.TransferStatusComplete || s == entity.TransferStatusCancelled
}

// Derive recalcula el estado del traslado a partir de sus líneas.
// Antes del despacho el estado es el de la cabecera; después es función pura de las líneas:
// complete si todas están completas, partial si se recibió al menos una unidad, si no el actual.
func Derive(current entity.TransferStatus, lines []entity.TransferLine) entity.TransferStatus {
	if !current.Dispatched() || len(lines) == 0 {
		return current
	}
	allComplete := true
	anyReceived := false
	for _, l := range lines {
		if l.Status() != entity.LineStatusComplete {
			allComplete = false
		}
		if l.QuantityReceived.GreaterThan(decimal.Zero) {
			anyReceived = true
		}
	}
	switch {
	case allComplete:
		return entity.TransferStatusComplete
	case anyReceived:
		return entity.TransferStatusPartial
	default:
		return entity.TransferStatusInTransit
	}
}

// Next aplica un evento de ciclo de vida (submit, dispatch, cancel) y devuelve el nuevo estado.
// Las guardas de stock y de movimientos las verifica el servicio; aquí solo la tabla de transiciones.
func Next(t entity.Transfer, ev Event) (entity.TransferStatus, error) {
	switch ev {
	case EventSubmit:
		if t.Status == entity.TransferStatusDraft {
			return entity.TransferStatusPending, nil
		}
	case EventDispatch:
		if t.Status == entity.TransferStatusDraft || t.Status == entity.TransferStatusPending {
			return entity.TransferStatusInTransit, nil
		}
	case EventCancel:
		if t.Status == entity.TransferStatusDraft || t.Status == entity.TransferStatusPending {
			return entity.TransferStatusCancelled, nil
		}
	case EventReceive:
		if CanReceive(t.Status) {
			return Derive(t.Status, t.Lines), nil
		}
	}
	return t.Status, invalid(t, ev)
}

// CanReceive solo se recibe mercancía en tránsito o parcialmente recibida.
func CanReceive(s entity.TransferStatus) bool {
	return s == entity.TransferStatusInTransit || s == entity.TransferStatusPartial
}

// ApplyReceipt valida las líneas tras una recepción y devuelve el estado resultante.
// Falla si el traslado no admite recepción o si alguna línea excede lo solicitado.
func ApplyReceipt(t entity.Transfer, lines []entity.TransferLine) (entity.TransferStatus, error) {
	if !CanReceive(t.Status) {
		return t.Status, invalid(t, EventReceive)
	}
	for _, l := range lines {
		if l.QuantityReceived.IsNegative() || l.QuantityReceived.GreaterThan(l.QuantityRequested) {
			return t.Status, domain.NewValidationError("lines."+l.ID+".received", "recibido fuera de rango [0, solicitado]")
		}
	}
	return Derive(t.Status, lines), nil
}

// CanDelete un traslado sin despachar puede borrarse físicamente.
func CanDelete(s entity.TransferStatus) bool {
	return s == entity.TransferStatusDraft || s == entity.TransferStatusPending || s == entity.TransferStatusCancelled
}

func invalid(t entity.Transfer, ev Event) error {
	return &domain.InvalidTransitionError{TransferID: t.ID, From: string(t.Status), Event: string(ev)}
}
