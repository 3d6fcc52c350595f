package http

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/jhoicas/traslados-api/internal/application/dto"
	"github.com/jhoicas/traslados-api/internal/domain"
)

// respondError traduce la taxonomía de errores del dominio a status + cuerpo.
// Los errores de persistencia no exponen el detalle interno.
func respondError(c *fiber.Ctx, err error) error {
	status, body := mapError(err)
	if errors.Is(err, domain.ErrConcurrencyConflict) {
		c.Set(fiber.HeaderRetryAfter, "1")
	}
	return c.Status(status).JSON(body)
}

func mapError(err error) (int, dto.ErrorResponse) {
	var (
		reqErr   *requestError
		valErr   *domain.ValidationError
		nfErr    *domain.NotFoundError
		transErr *domain.InvalidTransitionError
		stockErr *domain.InsufficientStockError
		confErr  *domain.ConcurrencyConflictError
	)
	switch {
	case errors.As(err, &reqErr):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION", Message: reqErr.msg, Details: reqErr.details}
	case errors.As(err, &valErr):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION", Message: valErr.Error(), Details: map[string]string{valErr.Field: valErr.Reason}}
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest, dto.ErrorResponse{Code: "VALIDATION", Message: err.Error()}
	case errors.As(err, &nfErr):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: nfErr.Error(), Details: fiber.Map{"resource": nfErr.Resource, "id": nfErr.ID}}
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound, dto.ErrorResponse{Code: "NOT_FOUND", Message: err.Error()}
	case errors.As(err, &transErr):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "INVALID_TRANSITION", Message: transErr.Error(), Details: fiber.Map{"from": transErr.From, "event": transErr.Event}}
	case errors.As(err, &stockErr):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "INSUFFICIENT_STOCK", Message: "stock insuficiente en origen", Details: stockErr.Shortages}
	case errors.As(err, &confErr):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "CONCURRENCY_CONFLICT", Message: confErr.Error(), Details: fiber.Map{"attempts": confErr.Attempts, "retryable": true}}
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "CONCURRENCY_CONFLICT", Message: err.Error(), Details: fiber.Map{"retryable": true}}
	case errors.Is(err, domain.ErrDuplicate):
		return fiber.StatusConflict, dto.ErrorResponse{Code: "DUPLICATE", Message: err.Error()}
	case errors.Is(err, domain.ErrUnauthorized):
		return fiber.StatusUnauthorized, dto.ErrorResponse{Code: "UNAUTHORIZED", Message: "token inválido"}
	case errors.Is(err, domain.ErrForbidden):
		return fiber.StatusForbidden, dto.ErrorResponse{Code: "FORBIDDEN", Message: "acceso denegado al recurso"}
	case errors.Is(err, domain.ErrPersistence):
		return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "PERSISTENCE", Message: "error de almacenamiento; la operación no se aplicó"}
	case errors.Is(err, context.DeadlineExceeded):
		return fiber.StatusGatewayTimeout, dto.ErrorResponse{Code: "TIMEOUT", Message: "tiempo de espera agotado"}
	case errors.Is(err, context.Canceled):
		return fiber.StatusServiceUnavailable, dto.ErrorResponse{Code: "CANCELLED", Message: "operación cancelada"}
	}
	return fiber.StatusInternalServerError, dto.ErrorResponse{Code: "INTERNAL", Message: "error interno"}
}
