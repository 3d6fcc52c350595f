package dto

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/application/transfer"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

// CreateTransferRequest body para POST /api/transfers.
type CreateTransferRequest struct {
	OriginWarehouseID      string                `json:"origin_warehouse_id" validate:"required,uuid"`
	DestinationWarehouseID string                `json:"destination_warehouse_id" validate:"required,uuid,nefield=OriginWarehouseID"`
	Notes                  string                `json:"notes,omitempty" validate:"max=500"`
	Draft                  bool                  `json:"draft,omitempty"`
	Lines                  []TransferLineRequest `json:"lines" validate:"required,min=1,max=200,dive"`
}

// TransferLineRequest línea solicitada; lot_id vacío en productos con lote = FEFO.
type TransferLineRequest struct {
	ProductID string          `json:"product_id" validate:"required,uuid"`
	LotID     string          `json:"lot_id,omitempty" validate:"omitempty,uuid"`
	Quantity  decimal.Decimal `json:"quantity" validate:"gt=0"`
}

// ToInput convierte el request al input del servicio.
func (r CreateTransferRequest) ToInput() transfer.CreateInput {
	lines := make([]transfer.LineInput, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, transfer.LineInput{ProductID: l.ProductID, LotID: l.LotID, Quantity: l.Quantity})
	}
	return transfer.CreateInput{
		OriginWarehouseID:      r.OriginWarehouseID,
		DestinationWarehouseID: r.DestinationWarehouseID,
		Notes:                  r.Notes,
		Draft:                  r.Draft,
		Lines:                  lines,
	}
}

// ReceiveTransferRequest body para POST /api/transfers/:id/receive.
// receipt_ref identifica la entrega: reenviarla no vuelve a sumar.
type ReceiveTransferRequest struct {
	ReceiptRef string               `json:"receipt_ref,omitempty" validate:"omitempty,max=100"`
	Lines      []ReceiveLineRequest `json:"lines" validate:"required,min=1,dive"`
}

// ReceiveLineRequest cantidad recibida de una línea.
type ReceiveLineRequest struct {
	LineID   string          `json:"line_id" validate:"required"`
	Quantity decimal.Decimal `json:"quantity" validate:"gt=0"`
}

// ToInput convierte el request al input del servicio.
func (r ReceiveTransferRequest) ToInput() transfer.ReceiveInput {
	lines := make([]transfer.ReceiveLine, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, transfer.ReceiveLine{LineID: l.LineID, Quantity: l.Quantity})
	}
	return transfer.ReceiveInput{ReceiptRef: r.ReceiptRef, Lines: lines}
}

// TransferListQuery filtros de GET /api/transfers (fechas RFC3339).
type TransferListQuery struct {
	PageRequest
	Status        string `query:"status" validate:"omitempty,oneof=draft pending in_transit partial complete cancelled"`
	WarehouseID   string `query:"warehouse_id" validate:"omitempty,uuid"`
	CreatedAfter  string `query:"created_after" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	CreatedBefore string `query:"created_before" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

// ToFilter convierte la consulta al filtro del servicio. Las fechas ya vienen validadas.
func (q TransferListQuery) ToFilter() transfer.ListFilter {
	f := transfer.ListFilter{
		Status:      entity.TransferStatus(q.Status),
		WarehouseID: q.WarehouseID,
		Limit:       q.Limit,
		Offset:      q.Offset,
	}
	if t, err := time.Parse(time.RFC3339, q.CreatedAfter); err == nil {
		f.CreatedAfter = &t
	}
	if t, err := time.Parse(time.RFC3339, q.CreatedBefore); err == nil {
		f.CreatedBefore = &t
	}
	return f
}

// TransferResponse traslado con sus líneas y el estado derivado.
type TransferResponse struct {
	ID                     string                 `json:"id"`
	CompanyID              string                 `json:"company_id"`
	OriginWarehouseID      string                 `json:"origin_warehouse_id"`
	DestinationWarehouseID string                 `json:"destination_warehouse_id"`
	Status                 string                 `json:"status"`
	Notes                  string                 `json:"notes,omitempty"`
	CreatedBy              string                 `json:"created_by"`
	DispatchedBy           string                 `json:"dispatched_by,omitempty"`
	DispatchedAt           *time.Time             `json:"dispatched_at,omitempty"`
	TotalReceived          decimal.Decimal        `json:"total_received"`
	CreatedAt              time.Time              `json:"created_at"`
	UpdatedAt              time.Time              `json:"updated_at"`
	Lines                  []TransferLineResponse `json:"lines"`
}

// TransferLineResponse línea con pendiente y estado calculados.
type TransferLineResponse struct {
	ID                string          `json:"id"`
	ProductID         string          `json:"product_id"`
	LotID             string          `json:"lot_id,omitempty"`
	QuantityRequested decimal.Decimal `json:"quantity_requested"`
	QuantityReceived  decimal.Decimal `json:"quantity_received"`
	Outstanding       decimal.Decimal `json:"outstanding"`
	Status            string          `json:"status"`
	UnitCost          decimal.Decimal `json:"unit_cost"`
}

// MovementResponse entrada del kardex.
type MovementResponse struct {
	ID          string          `json:"id"`
	WarehouseID string          `json:"warehouse_id"`
	ProductID   string          `json:"product_id"`
	LotID       string          `json:"lot_id,omitempty"`
	Direction   string          `json:"direction"`
	Quantity    decimal.Decimal `json:"quantity"`
	SourceKind  string          `json:"source_kind"`
	SourceID    string          `json:"source_id"`
	LineID      string          `json:"line_id,omitempty"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	Actor       string          `json:"actor"`
	CreatedAt   time.Time       `json:"created_at"`
}

// TransferListResponse página de traslados.
type TransferListResponse struct {
	Items []TransferResponse `json:"items"`
	Page  PageResponse       `json:"page"`
}

// DispatchResponse resultado de despachar; replayed=true si ya estaba despachado.
type DispatchResponse struct {
	Transfer  TransferResponse   `json:"transfer"`
	Movements []MovementResponse `json:"movements"`
	Replayed  bool               `json:"replayed"`
}

// ReceiveResponse resultado de una recepción con el detalle por línea.
type ReceiveResponse struct {
	Transfer  TransferResponse       `json:"transfer"`
	Lines     []transfer.LineOutcome `json:"lines"`
	Movements []MovementResponse     `json:"movements"`
}

// FromTransfer mapea la entidad a la respuesta.
func FromTransfer(t *entity.Transfer) TransferResponse {
	out := TransferResponse{
		ID:                     t.ID,
		CompanyID:              t.CompanyID,
		OriginWarehouseID:      t.OriginWarehouseID,
		DestinationWarehouseID: t.DestinationWarehouseID,
		Status:                 string(t.Status),
		Notes:                  t.Notes,
		CreatedBy:              t.CreatedBy,
		DispatchedBy:           t.DispatchedBy,
		DispatchedAt:           t.DispatchedAt,
		TotalReceived:          t.TotalReceived(),
		CreatedAt:              t.CreatedAt,
		UpdatedAt:              t.UpdatedAt,
		Lines:                  make([]TransferLineResponse, 0, len(t.Lines)),
	}
	for _, l := range t.Lines {
		out.Lines = append(out.Lines, TransferLineResponse{
			ID:                l.ID,
			ProductID:         l.ProductID,
			LotID:             l.LotID,
			QuantityRequested: l.QuantityRequested,
			QuantityReceived:  l.QuantityReceived,
			Outstanding:       l.Outstanding(),
			Status:            string(l.Status()),
			UnitCost:          l.UnitCost,
		})
	}
	return out
}

// FromTransfers mapea una lista.
func FromTransfers(ts []*entity.Transfer) []TransferResponse {
	out := make([]TransferResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, FromTransfer(t))
	}
	return out
}

// FromMovements mapea movimientos del kardex.
func FromMovements(ms []*entity.StockMovement) []MovementResponse {
	out := make([]MovementResponse, 0, len(ms))
	for _, m := range ms {
		out = append(out, MovementResponse{
			ID:          m.ID,
			WarehouseID: m.WarehouseID,
			ProductID:   m.ProductID,
			LotID:       m.LotID,
			Direction:   string(m.Direction),
			Quantity:    m.Quantity,
			SourceKind:  string(m.SourceKind),
			SourceID:    m.SourceID,
			LineID:      m.LineID,
			UnitCost:    m.UnitCost,
			Actor:       m.Actor,
			CreatedAt:   m.CreatedAt,
		})
	}
	return out
}

// FromDispatch mapea el resultado del despacho.
func FromDispatch(r *transfer.DispatchResult) DispatchResponse {
	return DispatchResponse{
		Transfer:  FromTransfer(r.Transfer),
		Movements: FromMovements(r.Movements),
		Replayed:  r.Replayed,
	}
}

// FromReceive mapea el resultado de la recepción.
func FromReceive(r *transfer.ReceiveResult) ReceiveResponse {
	return ReceiveResponse{
		Transfer:  FromTransfer(r.Transfer),
		Lines:     r.Lines,
		Movements: FromMovements(r.Movements),
	}
}
