// Package metrics holds the Prometheus collectors for the state layer.
//
// All methods are safe on a nil *Metrics, so components built without a
// registry (tests, tools) can record unconditionally.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "promptmarket"

type Metrics struct {
	Registry *prometheus.Registry

	mirrorWrites     *prometheus.CounterVec
	rollbacks        *prometheus.CounterVec
	loads            *prometheus.CounterVec
	propagationPaths prometheus.Histogram
	quotaDenials     *prometheus.CounterVec
	promoValidations *prometheus.CounterVec
	payments         *prometheus.CounterVec
}

// New registers the collectors on a fresh private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		// Labels: entity, op, result (ok, error)
		mirrorWrites: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "mirror_writes_total",
			Help:      "Remote mirror writes issued by repositories",
		}, []string{"entity", "op", "result"}),

		rollbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "rollbacks_total",
			Help:      "Local optimistic changes reverted after a failed mirror write",
		}, []string{"entity", "op"}),

		// Labels: entity, result (ok, error)
		loads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "repository",
			Name:      "loads_total",
			Help:      "Initial collection loads",
		}, []string{"entity", "result"}),

		propagationPaths: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "propagation",
			Name:      "paths",
			Help:      "Embedded-copy paths rewritten per user propagation",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100, 250},
		}),

		// Labels: kind (generation, submission)
		quotaDenials: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "quota",
			Name:      "denials_total",
			Help:      "Actions refused because the quota was exhausted",
		}, []string{"kind"}),

		// Labels: result (ok, invalid, exhausted)
		promoValidations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "promo",
			Name:      "validations_total",
			Help:      "Promo code validations by outcome",
		}, []string{"result"}),

		// Labels: result (ok, error)
		payments: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "payment",
			Name:      "charges_total",
			Help:      "Payment attempts by outcome",
		}, []string{"result"}),
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) MirrorWrite(entity, op string, err error) {
	if m == nil {
		return
	}
	m.mirrorWrites.WithLabelValues(entity, op, result(err)).Inc()
}

func (m *Metrics) Rollback(entity, op string) {
	if m == nil {
		return
	}
	m.rollbacks.WithLabelValues(entity, op).Inc()
}

func (m *Metrics) Load(entity string, err error) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(entity, result(err)).Inc()
}

func (m *Metrics) Propagation(paths int) {
	if m == nil {
		return
	}
	m.propagationPaths.Observe(float64(paths))
}

func (m *Metrics) QuotaDenied(kind string) {
	if m == nil {
		return
	}
	m.quotaDenials.WithLabelValues(kind).Inc()
}

func (m *Metrics) PromoValidation(outcome string) {
	if m == nil {
		return
	}
	m.promoValidations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) Payment(err error) {
	if m == nil {
		return
	}
	m.payments.WithLabelValues(result(err)).Inc()
}
