// Package transfer orquesta el ciclo de vida de los traslados entre bodegas:
// creación, despacho, recepción, anulación y consultas.
package transfer

import (
	"context"
	"errors"
	"time"

	"github.com/jhoicas/traslados-api/internal/application/inventory"
	"github.com/jhoicas/traslados-api/internal/domain"
	"github.com/jhoicas/traslados-api/internal/domain/entity"
	"github.com/jhoicas/traslados-api/internal/domain/repository"
	"github.com/jhoicas/traslados-api/pkg/logger"
	"github.com/jhoicas/traslados-api/pkg/metrics"
)

// Deps colaboradores del servicio. Los repositorios son de lectura/escritura autónoma (pool);
// las escrituras transaccionales usan los repositorios que entrega TxRunner.
type Deps struct {
	TxRunner   inventory.TxRunner
	Transfers  repository.TransferRepository
	Lines      repository.TransferLineRepository
	Movements  repository.StockMovementRepository
	Warehouses repository.WarehouseRepository
	Products   repository.ProductRepository
	Lots       repository.LotRepository
	Projector  *inventory.StockProjector
	Poster     *inventory.Poster
	Logger     *logger.Logger
	Metrics    *metrics.TransferMetrics
}

// Config parámetros de reintento.
type Config struct {
	Retry               inventory.RetryPolicy
	CompensationRetries uint64
}

// Service servicio de traslados. Seguro para uso concurrente.
type Service struct {
	txRunner   inventory.TxRunner
	transfers  repository.TransferRepository
	lines      repository.TransferLineRepository
	movements  repository.StockMovementRepository
	warehouses repository.WarehouseRepository
	products   repository.ProductRepository
	lots       repository.LotRepository
	projector  *inventory.StockProjector
	poster     *inventory.Poster
	log        *logger.Logger
	metrics    *metrics.TransferMetrics

	retry               inventory.RetryPolicy
	compensationRetries uint64
	now                 func() time.Time
}

// NewService construye el servicio.
func NewService(d Deps, cfg Config) *Service {
	log := d.Logger
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		txRunner:            d.TxRunner,
		transfers:           d.Transfers,
		lines:               d.Lines,
		movements:           d.Movements,
		warehouses:          d.Warehouses,
		products:            d.Products,
		lots:                d.Lots,
		projector:           d.Projector,
		poster:              d.Poster,
		log:                 log.Component("transfer_service"),
		metrics:             d.Metrics,
		retry:               cfg.Retry,
		compensationRetries: cfg.CompensationRetries,
		now:                 time.Now,
	}
}

// execute corre fn en una transacción, reintentando conflictos de concurrencia,
// y registra duración y resultado de la operación.
func (s *Service) execute(ctx context.Context, op string, fn func(ctx context.Context, st inventory.Stores) error) error {
	start := s.now()
	attempt := 0
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			s.metrics.IncConflictRetry(op)
		}
		return s.txRunner.Run(ctx, fn)
	})
	err = domain.AsPersistence(op, err)
	s.observe(op, start, err)
	return err
}

func (s *Service) observe(op string, start time.Time, err error) {
	s.metrics.ObserveOperation(op, outcome(err), s.now().Sub(start))
	if err != nil && outcome(err) == metrics.OutcomeError {
		s.log.Error().Err(err).Str("operation", op).Msg("operación de traslado fallida")
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, domain.ErrConcurrencyConflict):
		return metrics.OutcomeConflict
	case errors.Is(err, domain.ErrPersistence):
		return metrics.OutcomeError
	case domain.IsBusiness(err):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeError
	}
}

func checkActor(actor entity.Actor) error {
	if actor.CompanyID == "" || actor.UserID == "" {
		return domain.ErrUnauthorized
	}
	return nil
}

// lockTransfer carga y bloquea la cabecera con sus líneas dentro de la transacción.
// Un traslado de otra empresa o huérfano se reporta como inexistente.
func lockTransfer(ctx context.Context, st inventory.Stores, actor entity.Actor, id string) (*entity.Transfer, error) {
	t, err := st.Transfers.GetForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil || t.CompanyID != actor.CompanyID || t.Orphaned {
		return nil, domain.NewNotFoundError("traslado", id)
	}
	lines, err := st.Lines.ListByTransfer(ctx, id)
	if err != nil {
		return nil, err
	}
	t.Lines = lines
	return t, nil
}
