// Package metrics exposes the engine's Prometheus instruments.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds the conversation engine's instruments.
type Metrics struct {
	// Turns counts processed turns by controller outcome.
	Turns *prometheus.CounterVec

	// Interruptions counts detected interruptions by intent.
	Interruptions *prometheus.CounterVec

	// GeneratorFailures counts generator calls that fell back to the
	// scripted apology.
	GeneratorFailures prometheus.Counter

	// GeneratorLatency observes generator round-trip time in seconds.
	GeneratorLatency prometheus.Histogram

	// SuggestionsStaged counts branch suggestions appended to the log.
	SuggestionsStaged prometheus.Counter
}

// New builds the instruments and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Turns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botbuddy_turns_total",
				Help: "Total number of processed conversation turns",
			},
			[]string{"outcome"},
		),
		Interruptions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "botbuddy_interruptions_total",
				Help: "Total number of detected interruptions",
			},
			[]string{"intent"},
		),
		GeneratorFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "botbuddy_generator_failures_total",
				Help: "Total number of generator calls that fell back to the apology reply",
			},
		),
		GeneratorLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name: "botbuddy_generator_duration_seconds",
				Help: "Generator round-trip duration",
			},
		),
		SuggestionsStaged: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "botbuddy_suggestions_staged_total",
				Help: "Total number of branch suggestions staged by the controller",
			},
		),
	}
	reg.MustRegister(m.Turns, m.Interruptions, m.GeneratorFailures, m.GeneratorLatency, m.SuggestionsStaged)
	return m
}

// NewNop builds unregistered instruments for tests and embedded use.
func NewNop() *Metrics {
	return New(prometheus.NewRegistry())
}
