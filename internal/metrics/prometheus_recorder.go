// internal/metrics/prometheus_recorder.go
package metrics

import (
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	buildDuration prom.Histogram
	phaseDuration *prom.HistogramVec
	buildOutcome  *prom.CounterVec
	pagesLoaded   prom.Gauge
	pagesSkipped  prom.Counter
	rebuilds      prom.Counter
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		buildDuration: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "pagewright",
			Name:      "build_duration_seconds",
			Help:      "Total pipeline run duration",
			Buckets:   prom.DefBuckets,
		}),
		phaseDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "pagewright",
			Name:      "phase_duration_seconds",
			Help:      "Duration of individual pipeline phases",
			Buckets:   prom.DefBuckets,
		}, []string{"phase"}),
		buildOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "pagewright",
			Name:      "build_outcomes_total",
			Help:      "Pipeline runs by final status",
		}, []string{"outcome"}),
		pagesLoaded: prom.NewGauge(prom.GaugeOpts{
			Namespace: "pagewright",
			Name:      "pages_loaded",
			Help:      "Pages loaded by the last pipeline run",
		}),
		pagesSkipped: prom.NewCounter(prom.CounterOpts{
			Namespace: "pagewright",
			Name:      "pages_skipped_total",
			Help:      "Pages dropped by the publish date filter",
		}),
		rebuilds: prom.NewCounter(prom.CounterOpts{
			Namespace: "pagewright",
			Name:      "rebuilds_triggered_total",
			Help:      "Rebuilds triggered by settled filesystem activity",
		}),
	}
	reg.MustRegister(pr.buildDuration, pr.phaseDuration, pr.buildOutcome, pr.pagesLoaded, pr.pagesSkipped, pr.rebuilds)
	return pr
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) ObservePhaseDuration(phase string, d time.Duration) {
	if p == nil {
		return
	}
	p.phaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(outcome Outcome) {
	if p == nil {
		return
	}
	p.buildOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) SetPagesLoaded(n int) {
	if p == nil {
		return
	}
	p.pagesLoaded.Set(float64(n))
}

func (p *PrometheusRecorder) IncPagesSkipped() {
	if p == nil {
		return
	}
	p.pagesSkipped.Inc()
}

func (p *PrometheusRecorder) IncRebuildTriggered() {
	if p == nil {
		return
	}
	p.rebuilds.Inc()
}

// HTTPHandler serves the metrics registered on reg.
func HTTPHandler(reg *prom.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}
