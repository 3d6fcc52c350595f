package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransferStatus estado de un traslado entre bodegas.
// partial y complete nunca se asignan directamente: se derivan de las líneas.
type TransferStatus string

const (
	TransferStatusDraft     TransferStatus = "draft"
	TransferStatusPending   TransferStatus = "pending"
	TransferStatusInTransit TransferStatus = "in_transit"
	TransferStatusPartial   TransferStatus = "partial"
	TransferStatusComplete  TransferStatus = "complete"
	TransferStatusCancelled TransferStatus = "cancelled"
)

// IsValid indica si el estado pertenece al catálogo conocido.
func (s TransferStatus) IsValid() bool {
	switch s {
	case TransferStatusDraft, TransferStatusPending, TransferStatusInTransit,
		TransferStatusPartial, TransferStatusComplete, TransferStatusCancelled:
		return true
	}
	return false
}

// Dispatched indica si el traslado ya generó salidas en origen.
func (s TransferStatus) Dispatched() bool {
	return s == TransferStatusInTransit || s == TransferStatusPartial || s == TransferStatusComplete
}

// LineStatus estado derivado de una línea de traslado.
type LineStatus string

const (
	LineStatusPending  LineStatus = "pending"
	LineStatusPartial  LineStatus = "partial"
	LineStatusComplete LineStatus = "complete"
)

// Transfer representa la intención de mover stock de una bodega a otra.
// Es el agregado: la cabecera y sus líneas viajan juntas.
type Transfer struct {
	ID                     string
	CompanyID              string
	OriginWarehouseID      string
	DestinationWarehouseID string
	Status                 TransferStatus
	Notes                  string
	CreatedBy              string
	DispatchedBy           string
	DispatchedAt           *time.Time
	Orphaned               bool // cabecera cuya compensación falló; la limpia el sweeper
	CreatedAt              time.Time
	UpdatedAt              time.Time
	Lines                  []TransferLine
}

// Line busca una línea por ID dentro del agregado.
func (t *Transfer) Line(id string) (*TransferLine, bool) {
	for i := range t.Lines {
		if t.Lines[i].ID == id {
			return &t.Lines[i], true
		}
	}
	return nil, false
}

// TotalReceived suma lo recibido en todas las líneas.
func (t *Transfer) TotalReceived() decimal.Decimal {
	total := decimal.Zero
	for _, l := range t.Lines {
		total = total.Add(l.QuantityReceived)
	}
	return total
}

// TransferLine un producto (y lote opcional) dentro de un traslado.
type TransferLine struct {
	ID                string
	TransferID        string
	ProductID         string
	LotID             string // vacío = producto sin lote
	QuantityRequested decimal.Decimal
	QuantityReceived  decimal.Decimal
	UnitCost          decimal.Decimal // costo promedio del producto al crear el traslado
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Outstanding cantidad pendiente de recibir.
func (l TransferLine) Outstanding() decimal.Decimal {
	out := l.QuantityRequested.Sub(l.QuantityReceived)
	if out.IsNegative() {
		return decimal.Zero
	}
	return out
}

// Status se deriva de requested/received; no existe como campo persistido.
func (l TransferLine) Status() LineStatus {
	switch {
	case l.QuantityReceived.LessThanOrEqual(decimal.Zero):
		return LineStatusPending
	case l.QuantityReceived.LessThan(l.QuantityRequested):
		return LineStatusPartial
	default:
		return LineStatusComplete
	}
}

// StockKey clave de una línea en el lado de origen o destino.
func (l TransferLine) StockKey(warehouseID string) StockKey {
	return StockKey{WarehouseID: warehouseID, ProductID: l.ProductID, LotID: l.LotID}
}
