package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Resultados normalizados de una operación.
const (
	OutcomeOK       = "ok"
	OutcomeRejected = "rejected" // error de negocio
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// TransferMetrics métricas del servicio de traslados. Un valor nil (o construido sin
// registerer) es válido y no registra nada.
type TransferMetrics struct {
	operations           *prometheus.CounterVec
	duration             *prometheus.HistogramVec
	movements            *prometheus.CounterVec
	clamped              prometheus.Counter
	conflictRetries      *prometheus.CounterVec
	compensationFailures prometheus.Counter
	orphansSwept         prometheus.Counter
}

// NewTransferMetrics registra las métricas en reg.
func NewTransferMetrics(reg prometheus.Registerer) *TransferMetrics {
	if reg == nil {
		return &TransferMetrics{}
	}
	m := &TransferMetrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_operations_total",
			Help: "Operaciones sobre traslados por tipo y resultado.",
		}, []string{"operation", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "transfer_operation_duration_seconds",
			Help:    "Duración de las operaciones sobre traslados.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation"}),
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stock_movements_total",
			Help: "Movimientos de kardex registrados por origen.",
		}, []string{"source_kind"}),
		clamped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transfer_receipt_clamped_total",
			Help: "Líneas recibidas por encima de lo pendiente y recortadas.",
		}),
		conflictRetries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "transfer_conflict_retries_total",
			Help: "Reintentos por conflicto de concurrencia.",
		}, []string{"operation"}),
		compensationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transfer_compensation_failures_total",
			Help: "Compensaciones de creación que no pudieron borrar ni marcar la cabecera.",
		}),
		orphansSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "transfer_orphans_swept_total",
			Help: "Cabeceras huérfanas eliminadas por el sweeper.",
		}),
	}
	reg.MustRegister(m.operations, m.duration, m.movements, m.clamped,
		m.conflictRetries, m.compensationFailures, m.orphansSwept)
	return m
}

// ObserveOperation cuenta la operación con su resultado y registra su duración.
func (m *TransferMetrics) ObserveOperation(op, outcome string, d time.Duration) {
	if m == nil || m.operations == nil {
		return
	}
	op = normalizeLabel(op)
	m.operations.WithLabelValues(op, normalizeLabel(outcome)).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// AddMovements suma n movimientos del origen indicado.
func (m *TransferMetrics) AddMovements(sourceKind string, n int) {
	if m == nil || m.movements == nil || n <= 0 {
		return
	}
	m.movements.WithLabelValues(normalizeLabel(sourceKind)).Add(float64(n))
}

// IncClamped una línea recortada en recepción.
func (m *TransferMetrics) IncClamped() {
	if m == nil || m.clamped == nil {
		return
	}
	m.clamped.Inc()
}

// IncConflictRetry un reintento por conflicto.
func (m *TransferMetrics) IncConflictRetry(op string) {
	if m == nil || m.conflictRetries == nil {
		return
	}
	m.conflictRetries.WithLabelValues(normalizeLabel(op)).Inc()
}

// IncCompensationFailure compensación fallida por completo.
func (m *TransferMetrics) IncCompensationFailure() {
	if m == nil || m.compensationFailures == nil {
		return
	}
	m.compensationFailures.Inc()
}

// AddOrphansSwept cabeceras huérfanas borradas.
func (m *TransferMetrics) AddOrphansSwept(n int) {
	if m == nil || m.orphansSwept == nil || n <= 0 {
		return
	}
	m.orphansSwept.Add(float64(n))
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
