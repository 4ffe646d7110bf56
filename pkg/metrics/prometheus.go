package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jumpvol"

// Recorder implements the pipeline metrics port using Prometheus.
type Recorder struct {
	daysProcessed prometheus.Counter
	daysExcluded  *prometheus.CounterVec
	jumpsDetected prometheus.Counter
	stageDuration *prometheus.HistogramVec
	divergences   prometheus.Counter
	rhat          *prometheus.GaugeVec
	errorsTotal   *prometheus.CounterVec
}

// New registers the collectors on the default registry.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the collectors on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		daysProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "days_processed_total",
			Help:      "Trading days with a valid variation estimate",
		}),
		daysExcluded: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "days_excluded_total",
				Help:      "Trading days dropped by estimation or the jump test",
			},
			[]string{"reason"},
		),
		jumpsDetected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jumps_detected_total",
			Help:      "Days flagged as containing a jump",
		}),
		stageDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Duration of pipeline stages in seconds",
				Buckets:   []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 15, 60, 300},
			},
			[]string{"stage"},
		),
		divergences: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sampler_divergences_total",
			Help:      "Divergent transitions after warmup",
		}),
		rhat: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "param_rhat",
				Help:      "Split R-hat of the latest fit per parameter",
			},
			[]string{"param"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors encountered",
			},
			[]string{"type"},
		),
	}
}

// RecordDays records processed and excluded day counts.
func (r *Recorder) RecordDays(processed int, excludedByReason map[string]int) {
	r.daysProcessed.Add(float64(processed))
	for reason, n := range excludedByReason {
		r.daysExcluded.WithLabelValues(reason).Add(float64(n))
	}
}

// RecordJumps adds n detected jump days.
func (r *Recorder) RecordJumps(n int) {
	r.jumpsDetected.Add(float64(n))
}

// RecordStage records a stage latency in seconds.
func (r *Recorder) RecordStage(stage string, seconds float64) {
	r.stageDuration.WithLabelValues(stage).Observe(seconds)
}

// RecordFit records convergence figures of a finished fit.
func (r *Recorder) RecordFit(divergences int, rhat map[string]float64) {
	r.divergences.Add(float64(divergences))
	for p, v := range rhat {
		r.rhat.WithLabelValues(p).Set(v)
	}
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}
