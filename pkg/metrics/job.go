package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// JobMetrics duración y resultado de los trabajos periódicos del worker.
type JobMetrics struct {
	duration *prometheus.HistogramVec
	success  *prometheus.CounterVec
	failure  *prometheus.CounterVec
	drifts   prometheus.Gauge
}

// NewJobMetrics registra las métricas de trabajos en reg.
func NewJobMetrics(reg prometheus.Registerer) *JobMetrics {
	if reg == nil {
		return &JobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "job_duration_seconds",
		Help:    "Duración de los trabajos periódicos.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_success",
		Help: "Ejecuciones exitosas.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "job_failure",
		Help: "Ejecuciones fallidas.",
	}, []string{"job"})
	drifts := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "stock_level_drifts",
		Help: "Saldos desviados del kardex en la última auditoría.",
	})
	reg.MustRegister(duration, success, failure, drifts)
	return &JobMetrics{duration: duration, success: success, failure: failure, drifts: drifts}
}

// Observe registra duración y resultado de una ejecución.
func (j *JobMetrics) Observe(job string, d time.Duration, err error) {
	if j == nil || j.duration == nil {
		return
	}
	job = normalizeLabel(job)
	j.duration.WithLabelValues(job).Observe(d.Seconds())
	if err != nil {
		j.failure.WithLabelValues(job).Inc()
		return
	}
	j.success.WithLabelValues(job).Inc()
}

// SetDrifts fija el número de desvíos encontrados.
func (j *JobMetrics) SetDrifts(n int) {
	if j == nil || j.drifts == nil {
		return
	}
	j.drifts.Set(float64(n))
}
