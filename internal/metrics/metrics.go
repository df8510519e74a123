package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "corevo"

// Error categories recorded by RecordError.
const (
	CategoryStorage   = "storage"
	CategoryTransport = "transport"
	CategoryCrypto    = "crypto"
	CategoryFormat    = "format"
)

// Scan outcomes for remarks read from a store.
const (
	RemarkDecoded       = "decoded"
	RemarkBadHex        = "bad_hex"
	RemarkBadSender     = "bad_sender"
	RemarkBadEnvelope   = "bad_envelope"
	RemarkFilteredByCtx = "filtered_context"
)

// Metrics groups the process counters. A nil *Metrics records nothing.
type Metrics struct {
	remarks     *prometheus.CounterVec
	messages    *prometheus.CounterVec
	decryptions *prometheus.CounterVec
	reveals     *prometheus.CounterVec
	submissions *prometheus.CounterVec
	errors      *prometheus.CounterVec
	opDuration  *prometheus.HistogramVec
	opErrors    *prometheus.CounterVec
}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		remarks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remarks_scanned_total",
			Help:      "Remarks read from the store, by decode outcome.",
		}, []string{"result"}),
		messages: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_applied_total",
			Help:      "Protocol messages folded into reconstruction state.",
		}, []string{"kind"}),
		decryptions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decryption_attempts_total",
			Help:      "Sealed box open attempts during common salt recovery.",
		}, []string{"path", "result"}),
		reveals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reveals_resolved_total",
			Help:      "Reveal resolution outcomes.",
		}, []string{"outcome"}),
		submissions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remarks_submitted_total",
			Help:      "Remarks submitted to the chain, by message kind.",
		}, []string{"kind"}),
		errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "errors_total",
			Help:      "Errors by category.",
		}, []string{"category"}),
		opDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Latency of top level operations.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation"}),
		opErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operation_errors_total",
			Help:      "Failed top level operations.",
		}, []string{"operation"}),
	}
}

func (m *Metrics) RecordRemark(result string) {
	if m == nil {
		return
	}
	m.remarks.WithLabelValues(result).Inc()
}

func (m *Metrics) RecordMessage(kind string) {
	if m == nil {
		return
	}
	m.messages.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordDecryption(path string, ok bool) {
	if m == nil {
		return
	}
	result := "failed"
	if ok {
		result = "ok"
	}
	m.decryptions.WithLabelValues(path, result).Inc()
}

func (m *Metrics) RecordReveal(outcome string) {
	if m == nil {
		return
	}
	m.reveals.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordSubmission(kind string) {
	if m == nil {
		return
	}
	m.submissions.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordError(category string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(category).Inc()
}

// RecordOp observes the latency since started and counts err, if any.
func (m *Metrics) RecordOp(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	m.opDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if err != nil {
		m.opErrors.WithLabelValues(operation).Inc()
	}
}
