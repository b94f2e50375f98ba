package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"SignalPulse/internal/domain/repository"
	pkgmetrics "SignalPulse/pkg/metrics"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	cycleSeconds   prometheus.Histogram
	symbols        *prometheus.CounterVec
	emitted        prometheus.Counter
	proposals      *prometheus.CounterVec
	fetchSeconds   *prometheus.HistogramVec
	fetchErrors    *prometheus.CounterVec
	attributions   *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastCycleEmits prometheus.Gauge
}

var _ repository.Metrics = (*Recorder)(nil)

func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycleSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "signalpulse",
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of one detection cycle",
			Buckets:   pkgmetrics.CycleBuckets,
		}),
		symbols: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalpulse",
			Subsystem: "engine",
			Name:      "symbols_total",
			Help:      "Symbols processed per cycle by result",
		}, []string{"result"}),
		emitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: "signalpulse",
			Subsystem: "engine",
			Name:      "signals_emitted_total",
			Help:      "Signals that survived global selection",
		}),
		lastCycleEmits: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "signalpulse",
			Subsystem: "engine",
			Name:      "last_cycle_signals",
			Help:      "Signals emitted by the most recent cycle",
		}),
		proposals: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalpulse",
			Subsystem: "engine",
			Name:      "proposals_total",
			Help:      "Detector proposals by strategy and whether they became candidates",
		}, []string{"strategy", "accepted"}),
		fetchSeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "signalpulse",
			Subsystem: "marketdata",
			Name:      "fetch_duration_seconds",
			Help:      "Bar fetch latency by provider",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider"}),
		fetchErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalpulse",
			Subsystem: "marketdata",
			Name:      "fetch_errors_total",
			Help:      "Failed bar fetches by provider",
		}, []string{"provider"}),
		attributions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalpulse",
			Subsystem: "attribution",
			Name:      "records_total",
			Help:      "Attribution attempts by outcome",
		}, []string{"outcome"}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "signalpulse",
			Name:      "errors_total",
			Help:      "Errors by kind",
		}, []string{"kind"}),
	}
}

func (r *Recorder) RecordCycle(seconds float64, symbols, failed, emitted int) {
	r.cycleSeconds.Observe(seconds)
	r.symbols.WithLabelValues("ok").Add(float64(symbols - failed))
	r.symbols.WithLabelValues("failed").Add(float64(failed))
	r.emitted.Add(float64(emitted))
	r.lastCycleEmits.Set(float64(emitted))
}

func (r *Recorder) RecordProposal(strategy string, accepted bool) {
	label := "false"
	if accepted {
		label = "true"
	}
	r.proposals.WithLabelValues(strategy, label).Inc()
}

func (r *Recorder) RecordFetch(provider string, seconds float64, err error) {
	r.fetchSeconds.WithLabelValues(provider).Observe(seconds)
	if err != nil {
		r.fetchErrors.WithLabelValues(provider).Inc()
	}
}

func (r *Recorder) RecordAttribution(outcome string) {
	r.attributions.WithLabelValues(outcome).Inc()
}

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
