package http

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/application/transfer"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
)

const maxLotsPerResponse = 500

// StockHandler consultas de disponibilidad, ajustes y reservas (protegido).
type StockHandler struct {
	svc    *transfer.Service
	adjust *inventory.AdjustStockUseCase
}

// NewStockHandler construye el handler.
func NewStockHandler(svc *transfer.Service, adjust *inventory.AdjustStockUseCase) *StockHandler {
	return &StockHandler{svc: svc, adjust: adjust}
}

// Available godoc
// @Summary      Disponible de un producto (y lote) en una bodega
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        warehouse_id  query     string  true   "bodega"
// @Param        product_id    query     string  true   "producto"
// @Param        lot_id        query     string  false  "lote"
// @Success      200           {object}  dto.AvailableStockResponse
// @Failure      400           {object}  dto.ErrorResponse
// @Failure      404           {object}  dto.ErrorResponse
// @Router       /api/stock/available [get]
func (h *StockHandler) Available(c *fiber.Ctx) error {
	var q dto.StockQuery
	if err := parseQuery(c, &q); err != nil {
		return respondError(c, err)
	}
	avail, err := h.svc.AvailableStock(c.UserContext(), ActorFrom(c), q.WarehouseID, q.ProductID, q.LotID)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.AvailableStockResponse{WarehouseID: q.WarehouseID, ProductID: q.ProductID, LotID: q.LotID, Available: avail})
}

// Lots godoc
// @Summary      Lotes con disponible en orden FEFO
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        warehouse_id  query     string  true  "bodega"
// @Param        product_id    query     string  true  "producto"
// @Success      200           {object}  dto.LotsAvailableResponse
// @Failure      400           {object}  dto.ErrorResponse
// @Router       /api/stock/lots [get]
func (h *StockHandler) Lots(c *fiber.Ctx) error {
	var q dto.StockQuery
	if err := parseQuery(c, &q); err != nil {
		return respondError(c, err)
	}
	seq, err := h.svc.LotsAvailable(c.UserContext(), ActorFrom(c), q.WarehouseID, q.ProductID)
	if err != nil {
		return respondError(c, err)
	}
	out := dto.LotsAvailableResponse{WarehouseID: q.WarehouseID, ProductID: q.ProductID, Lots: []inventory.LotAvailability{}}
	for lot, err := range seq {
		if err != nil {
			return respondError(c, err)
		}
		out.Lots = append(out.Lots, lot)
		if len(out.Lots) >= maxLotsPerResponse {
			break
		}
	}
	return c.JSON(out)
}

// Suggestion godoc
// @Summary      Reparto FEFO sugerido para una cantidad
// @Tags         stock
// @Security     Bearer
// @Produce      json
// @Param        warehouse_id  query     string  true  "bodega"
// @Param        product_id    query     string  true  "producto"
// @Param        quantity      query     string  true  "cantidad a cubrir"
// @Success      200           {object}  dto.LotSuggestionResponse
// @Failure      400           {object}  dto.ErrorResponse
// @Router       /api/stock/lots/suggestion [get]
func (h *StockHandler) Suggestion(c *fiber.Ctx) error {
	var q dto.StockQuery
	if err := parseQuery(c, &q); err != nil {
		return respondError(c, err)
	}
	qty, err := decimal.NewFromString(q.Quantity)
	if err != nil {
		return respondError(c, &requestError{msg: "validación fallida", details: map[string]string{"quantity": "debe ser numérico"}})
	}
	allocs, remaining, err := h.svc.SuggestLots(c.UserContext(), ActorFrom(c), q.WarehouseID, q.ProductID, qty)
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FromAllocations(allocs, remaining))
}

// Adjust godoc
// @Summary      Ajuste manual de stock (entrada o salida)
// @Description  Las entradas recalculan el costo promedio ponderado del producto.
//
//	Repetir la misma reference devuelve el ajuste original (replayed=true).
//
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.AdjustStockRequest  true  "bodega, producto, dirección, cantidad"
// @Success      201   {object}  dto.AdjustStockResponse
// @Success      200   {object}  dto.AdjustStockResponse
// @Failure      400   {object}  dto.ErrorResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/adjustments [post]
func (h *StockHandler) Adjust(c *fiber.Ctx) error {
	var in dto.AdjustStockRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	res, err := h.adjust.Adjust(c.UserContext(), ActorFrom(c), in.ToInput())
	if err != nil {
		return respondError(c, err)
	}
	status := fiber.StatusCreated
	if res.Replayed {
		status = fiber.StatusOK
	}
	return c.Status(status).JSON(dto.FromAdjust(res))
}

// Reserve godoc
// @Summary      Reservar stock
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.ReservationRequest  true  "clave y cantidad"
// @Success      200   {object}  dto.StockLevelResponse
// @Failure      409   {object}  dto.ErrorResponse
// @Router       /api/stock/reservations [post]
func (h *StockHandler) Reserve(c *fiber.Ctx) error {
	return h.reservation(c, h.adjust.Reserve)
}

// Release godoc
// @Summary      Liberar stock reservado
// @Tags         stock
// @Security     Bearer
// @Accept       json
// @Produce      json
// @Param        body  body      dto.ReservationRequest  true  "clave y cantidad"
// @Success      200   {object}  dto.StockLevelResponse
// @Router       /api/stock/reservations/release [post]
func (h *StockHandler) Release(c *fiber.Ctx) error {
	return h.reservation(c, h.adjust.Release)
}

type reservationFunc func(context.Context, entity.Actor, inventory.ReservationInput) (*entity.StockLevel, error)

func (h *StockHandler) reservation(c *fiber.Ctx, fn reservationFunc) error {
	var in dto.ReservationRequest
	if err := parseBody(c, &in); err != nil {
		return respondError(c, err)
	}
	level, err := fn(c.UserContext(), ActorFrom(c), in.ToInput())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(dto.FromStockLevel(level))
}
