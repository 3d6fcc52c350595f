package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Errores de dominio. Los tipos de abajo envuelven estos sentinelas para que
// los llamadores puedan usar errors.Is sin conocer el tipo concreto.
var (
	ErrNotFound            = errors.New("recurso no encontrado")
	ErrInvalidInput        = errors.New("entrada inválida")
	ErrDuplicate           = errors.New("recurso duplicado")
	ErrUnauthorized        = errors.New("no autorizado")
	ErrForbidden           = errors.New("acceso denegado")
	ErrConflict            = errors.New("conflicto con el estado actual")
	ErrInsufficientStock   = errors.New("stock insuficiente")
	ErrInvalidTransition   = errors.New("transición de estado no permitida")
	ErrConcurrencyConflict = errors.New("conflicto de concurrencia")
	ErrPersistence         = errors.New("error de persistencia")
)

// ValidationError entrada mal formada; se detecta antes de cualquier mutación.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "entrada inválida: " + e.Reason
	}
	return fmt.Sprintf("entrada inválida: %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// NewValidationError atajo para construir un ValidationError.
func NewValidationError(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError el traslado, línea, producto, lote o bodega referenciado no existe.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q no encontrado", e.Resource, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NewNotFoundError atajo para construir un NotFoundError.
func NewNotFoundError(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

// InvalidTransitionError cambio de estado que la máquina de estados no permite.
type InvalidTransitionError struct {
	TransferID string
	From       string
	Event      string
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("traslado %s: no se permite %q desde el estado %q", e.TransferID, e.Event, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// StockShortage detalle de una línea sin disponibilidad suficiente en origen.
type StockShortage struct {
	LineID    string          `json:"line_id,omitempty"`
	ProductID string          `json:"product_id"`
	LotID     string          `json:"lot_id,omitempty"`
	Requested decimal.Decimal `json:"requested"`
	Available decimal.Decimal `json:"available"`
}

// InsufficientStockError identifica las líneas que no pasan la verificación de disponibilidad.
type InsufficientStockError struct {
	TransferID string
	Shortages  []StockShortage
}

func (e *InsufficientStockError) Error() string {
	parts := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		ref := s.LineID
		if ref == "" {
			ref = s.ProductID
		}
		parts = append(parts, fmt.Sprintf("%s (solicitado %s, disponible %s)", ref, s.Requested, s.Available))
	}
	return "stock insuficiente: " + strings.Join(parts, ", ")
}

func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

// LineIDs devuelve los IDs de línea afectados (vacíos se omiten).
func (e *InsufficientStockError) LineIDs() []string {
	ids := make([]string, 0, len(e.Shortages))
	for _, s := range e.Shortages {
		if s.LineID != "" {
			ids = append(ids, s.LineID)
		}
	}
	return ids
}

// ConcurrencyConflictError se agotaron los reintentos optimistas bajo contención.
// Es el único error que el llamador debería reintentar automáticamente.
type ConcurrencyConflictError struct {
	Attempts int
	Err      error
}

func (e *ConcurrencyConflictError) Error() string {
	return fmt.Sprintf("conflicto de concurrencia tras %d intentos", e.Attempts)
}

func (e *ConcurrencyConflictError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrConcurrencyConflict}
	}
	return []error{ErrConcurrencyConflict, e.Err}
}

// PersistenceError falla del almacenamiento ajena a las reglas de negocio.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	if e.Err == nil {
		return "persistencia: " + e.Op
	}
	return fmt.Sprintf("persistencia: %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPersistence}
	}
	return []error{ErrPersistence, e.Err}
}

// IsBusiness indica si err pertenece a la taxonomía de negocio (no debe envolverse como persistencia).
func IsBusiness(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrConcurrencyConflict) ||
		errors.Is(err, ErrPersistence) ||
		errors.Is(err, ErrForbidden) ||
		errors.Is(err, ErrUnauthorized)
}

// AsPersistence envuelve err como PersistenceError salvo que ya sea un error de negocio.
func AsPersistence(op string, err error) error {
	if err == nil || IsBusiness(err) {
		return err
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
