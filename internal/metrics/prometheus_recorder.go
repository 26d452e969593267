package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	appendDuration *prom.HistogramVec
	appendResults  *prom.CounterVec
	appendRetries  *prom.CounterVec
	stateGauge     *prom.GaugeVec
}

// NewPrometheusRecorder constructs the metric vectors and registers them on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		appendDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "applianced",
			Name:      "touch_append_duration_seconds",
			Help:      "Duration of touch ledger appends",
			Buckets:   prom.DefBuckets,
		}, []string{"kind"}),
		appendResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "applianced",
			Name:      "touch_append_results_total",
			Help:      "Touch append counts by kind and outcome",
		}, []string{"kind", "result"}),
		appendRetries: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "applianced",
			Name:      "touch_append_retries_total",
			Help:      "Touch append retries caused by storage contention",
		}, []string{"kind"}),
		stateGauge: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "applianced",
			Name:      "appliances_in_state",
			Help:      "Number of appliances whose latest state touch matches each state",
		}, []string{"state"}),
	}
	reg.MustRegister(pr.appendDuration, pr.appendResults, pr.appendRetries, pr.stateGauge)
	return pr
}

func (p *PrometheusRecorder) ObserveAppendDuration(kind string, d time.Duration) {
	if p == nil || p.appendDuration == nil {
		return
	}
	p.appendDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncAppendResult(kind string, result ResultLabel) {
	if p == nil || p.appendResults == nil {
		return
	}
	p.appendResults.WithLabelValues(kind, string(result)).Inc()
}

func (p *PrometheusRecorder) IncAppendRetry(kind string) {
	if p == nil || p.appendRetries == nil {
		return
	}
	p.appendRetries.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) SetAppliancesInState(state string, n int) {
	if p == nil || p.stateGauge == nil {
		return
	}
	p.stateGauge.WithLabelValues(state).Set(float64(n))
}
