package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	"github.com/jhoicas/traslados-api/internal/application/transfer"
)

// TransferHandler maneja las peticiones HTTP de traslados entre bodegas (protegido).
type TransferHandler struct {
	svc *transfer.Service
}

// NewTransferHandler construye el handler.
func NewTransferHandler(svc *transfer.Service) *TransferHandler {
	return &TransferHandler{svc: svc}
}

// pathID valida el :id de la ruta antes de llegar al servicio.
func pathID(c *fiber.Ctx) (string, error) {
	id := c.Params("id")
	if _, err := uuid.Parse(id); err != nil {
		return "", &requestError{msg: "id inválido", details: map[string]string{"id": "debe ser un UUID"}}
	}
	return id, nil
}

// Create godoc
// @Summary      Crear traslado
// @Description  Valida bodegas y productos, reparte lotes por FEFO cuando no se indica lote
//
//	y verifica disponibilidad en origen sin reservar.
//
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        Idempotency-Key  header  string                     false  "clave para reintentos seguros"
// @Param        body             body    dto.CreateTransferRequest  true   "origen, destino y líneas"
// @Success      201  {object}  dto.TransferResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Failure      500  {object}  dto.ErrorResponse
// @Router       /api/transfers [post]
func (h *TransferHandler) Create(c *fiber.Ctx) error {
	var in dto.CreateTransferRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	t, err := h.svc.Create(c.UserContext(), ActorFrom(c), in.ToInput())
	if err != nil {
		return respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(dto.FromTransfer(t))
}

// List godoc
// @Summary      Listar traslados
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        status          query  string  false  "draft|pending|in_transit|partial|complete|cancelled"
// @Param        warehouse_id    query  string  false  "origen o destino"
// @Param        created_after   query  string  false  "RFC3339"
// @Param        created_before  query  string  false  "RFC3339"
// @Param        limit           query  int     false  "máx. 200"
// @Param        offset          query  int     false  "desplazamiento"
// @Success      200  {object}  dto.TransferListResponse
// @Failure      400  {object}  dto.ErrorResponse
// @Router       /api/transfers [get]
func (h *TransferHandler) List(c *fiber.Ctx) error {
	var q dto.TransferListQuery
	if err := parseQuery(c, &q); err != nil {
		return respondError(c, err)
	}
	q.DefaultPage()
	list, err := h.svc.List(c.UserContext(), ActorFrom(c), q.ToFilter())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.TransferListResponse{
		Items: dto.FromTransfers(list),
		Page:  dto.PageResponse{Limit: q.Limit, Offset: q.Offset, Count: len(list)},
	})
}

// Get godoc
// @Summary      Obtener traslado
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del traslado"
// @Success      200  {object}  dto.TransferResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id} [get]
func (h *TransferHandler) Get(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	t, err := h.svc.Get(c.UserContext(), ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FromTransfer(t))
}

// Delete godoc
// @Summary      Eliminar traslado sin movimientos (borrador, pendiente o cancelado)
// @Tags         transfers
// @Security     Bearer
// @Param        id   path  string  true  "ID del traslado"
// @Success      204
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id} [delete]
func (h *TransferHandler) Delete(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	if err := h.svc.Delete(c.UserContext(), ActorFrom(c), id); err != nil {
		return respondError(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Submit godoc
// @Summary      Pasar un borrador a pendiente
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del traslado"
// @Success      200  {object}  dto.TransferResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/submit [post]
func (h *TransferHandler) Submit(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	t, err := h.svc.Submit(c.UserContext(), ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FromTransfer(t))
}

// Dispatch godoc
// @Summary      Despachar traslado
// @Description  Verifica disponibilidad bajo bloqueo y registra las salidas en origen.
//
//	Repetir el despacho devuelve el resultado original (replayed=true).
//
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del traslado"
// @Success      200  {object}  dto.DispatchResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/dispatch [post]
func (h *TransferHandler) Dispatch(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	res, err := h.svc.Dispatch(c.UserContext(), ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FromDispatch(res))
}

// Receive godoc
// @Summary      Recibir traslado (total o parcial)
// @Description  Lo que excede lo pendiente de cada línea se recorta (clamped=true).
// @Tags         transfers
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        id    path      string                      true  "ID del traslado"
// @Param        body  body      dto.ReceiveTransferRequest  true  "líneas recibidas"
// @Success      200   {object}  dto.ReceiveResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      404   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/receive [post]
func (h *TransferHandler) Receive(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	var in dto.ReceiveTransferRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	res, err := h.svc.Receive(c.UserContext(), ActorFrom(c), id, in.ToInput())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FromReceive(res))
}

// Cancel godoc
// @Summary      Cancelar traslado antes del despacho
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del traslado"
// @Success      200  {object}  dto.TransferResponse
// @Failure      409  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/cancel [post]
func (h *TransferHandler) Cancel(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	t, err := h.svc.Cancel(c.UserContext(), ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FromTransfer(t))
}

// Movements godoc
// @Summary      Movimientos de kardex generados por el traslado
// @Tags         transfers
// @Security     Bearer
// @Produce      json
// @Param        id   path      string  true  "ID del traslado"
// @Success      200  {array}   dto.MovementResponse
// @Failure      404  {object}  dto.ErrorResponse
// @Router       /api/transfers/{id}/movements [get]
func (h *TransferHandler) Movements(c *fiber.Ctx) error {
	id, err := pathID(c)
	if err != nil {
		return respondError(c, err)
	}
	movs, err := h.svc.Movements(c.UserContext(), ActorFrom(c), id)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FromMovements(movs))
}
