package encryptedquery

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the Prometheus collectors of the encryption layer.
// A nil *Metrics records nothing.
type Metrics struct {
	rewrites        *prometheus.CounterVec
	decryptFailures *prometheus.CounterVec
	pageTransform   prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered. Registering twice with the same
// registerer panics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		rewrites: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "encryptedquery_rewrites_total",
				Help: "Total number of query rewrites by outcome",
			},
			[]string{"outcome"},
		),
		decryptFailures: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "encryptedquery_document_decrypt_failures_total",
				Help: "Total number of documents that failed to decrypt",
			},
			[]string{"handled"},
		),
		pageTransform: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "encryptedquery_page_transform_seconds",
				Help:    "Time spent decrypting and reassembling a page",
				Buckets: prometheus.DefBuckets,
			},
		),
	}
}

func (m *Metrics) rewrite(outcome RewriteOutcome) {
	if m == nil {
		return
	}
	m.rewrites.WithLabelValues(outcome.String()).Inc()
}

func (m *Metrics) decryptFailure(handled bool) {
	if m == nil {
		return
	}
	m.decryptFailures.WithLabelValues(strconv.FormatBool(handled)).Inc()
}

func (m *Metrics) observePage(d time.Duration) {
	if m == nil {
		return
	}
	m.pageTransform.Observe(d.Seconds())
}
