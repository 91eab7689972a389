package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"quoteflow/internal"
)

type Metrics struct {
	EmailsClassifiedTotal *prometheus.CounterVec
	ClassifySeconds       prometheus.Histogram
	ProcessingErrorsTotal *prometheus.CounterVec
	MailFetchedTotal      *prometheus.CounterVec
	CatalogProducts       prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EmailsClassifiedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoteflow_emails_classified_total",
				Help: "Emails classified, by confidence tier and quote decision",
			},
			[]string{"tier", "quote_request"},
		),
		ClassifySeconds: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "quoteflow_classify_seconds",
				Help:    "Time spent classifying a single email",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		ProcessingErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoteflow_processing_errors_total",
				Help: "Errors while processing stored emails, by stage",
			},
			[]string{"stage"},
		),
		MailFetchedTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quoteflow_mail_fetched_total",
				Help: "Messages fetched from the mailbox provider",
			},
			[]string{"provider"},
		),
		CatalogProducts: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quoteflow_catalog_products",
				Help: "Products in the catalog snapshot used for the last batch",
			},
		),
	}
}

// ObserveClassification is nil-safe so callers without metrics can skip wiring.
func (m *Metrics) ObserveClassification(res internal.ClassificationResult, seconds float64) {
	if m == nil {
		return
	}
	quote := "false"
	if res.IsQuoteRequest {
		quote = "true"
	}
	m.EmailsClassifiedTotal.WithLabelValues(string(res.ConfidenceTier), quote).Inc()
	m.ClassifySeconds.Observe(seconds)
}

func (m *Metrics) ObserveError(stage string) {
	if m == nil {
		return
	}
	m.ProcessingErrorsTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) ObserveFetched(provider string, n int) {
	if m == nil {
		return
	}
	m.MailFetchedTotal.WithLabelValues(provider).Add(float64(n))
}

func (m *Metrics) SetCatalogSize(n int) {
	if m == nil {
		return
	}
	m.CatalogProducts.Set(float64(n))
}
