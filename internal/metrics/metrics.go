package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	balancePasses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qwill",
			Name:      "balance_passes_total",
			Help:      "Balancing passes by outcome (changed, stable, deferred)",
		},
		[]string{"outcome"},
	)

	balanceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "qwill",
			Name:      "balance_pass_duration_seconds",
			Help:      "Duration of one balancing pass over the page sequence",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
		},
	)

	unitsMoved = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qwill",
			Name:      "units_moved_total",
			Help:      "Content units moved between pages by direction (push, pull)",
		},
		[]string{"direction"},
	)

	pageEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qwill",
			Name:      "page_events_total",
			Help:      "Structural page changes by action (created, pruned)",
		},
		[]string{"action"},
	)

	measureProbes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qwill",
			Name:      "measure_probes_total",
			Help:      "Layout measurements taken on page surfaces",
		},
	)

	oversizedUnits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "qwill",
			Name:      "oversized_units_total",
			Help:      "Units left alone on an overflowing page because they exceed its capacity",
		},
	)

	caretRestores = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qwill",
			Name:      "caret_restores_total",
			Help:      "Caret restorations after content replacement by result (ok, miss)",
		},
		[]string{"result"},
	)

	conversions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qwill",
			Name:      "conversions_total",
			Help:      "Imports and exports by direction, format and result",
		},
		[]string{"direction", "format", "result"},
	)

	autosaves = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "qwill",
			Name:      "autosaves_total",
			Help:      "Autosave attempts by result",
		},
		[]string{"result"},
	)

	registerOnce sync.Once
)

// Init registers collectors with the default registry. Safe to call more than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(balancePasses, balanceDuration, unitsMoved, pageEvents,
			measureProbes, oversizedUnits, caretRestores, conversions, autosaves)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

// ObservePass records one balancing pass.
func ObservePass(changed bool, dur time.Duration) {
	outcome := "stable"
	if changed {
		outcome = "changed"
	}
	balancePasses.WithLabelValues(outcome).Inc()
	balanceDuration.Observe(dur.Seconds())
}

func IncDeferredPass() { balancePasses.WithLabelValues("deferred").Inc() }
func IncPushed() { unitsMoved.WithLabelValues("push").Inc() }
func IncPulled() { unitsMoved.WithLabelValues("pull").Inc() }
func IncPageCreated() { pageEvents.WithLabelValues("created").Inc() }
func IncPagePruned() { pageEvents.WithLabelValues("pruned").Inc() }
func IncProbe() { measureProbes.Inc() }
func IncOversized() { oversizedUnits.Inc() }
func IncCaretRestore(ok bool) {
	if ok {
		caretRestores.WithLabelValues("ok").Inc()
		return
	}
	caretRestores.WithLabelValues("miss").Inc()
}

// ObserveConversion records an import or export.
func ObserveConversion(direction, format string, err error) {
	conversions.WithLabelValues(direction, format, result(err)).Inc()
}

// ObserveAutosave records one autosave attempt.
func ObserveAutosave(err error) { autosaves.WithLabelValues(result(err)).Inc() }

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
