package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry metrics
	ModulesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "starhold_modules_total",
			Help: "Total number of modules by type and status",
		},
		[]string{"type", "status"},
	)

	BuildingsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "starhold_buildings_total",
			Help: "Total number of registered buildings",
		},
	)

	SubModulesTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "starhold_submodules_total",
			Help: "Total number of sub-modules by type",
		},
		[]string{"type"},
	)

	// Event bus metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starhold_events_published_total",
			Help: "Total number of events published by type",
		},
		[]string{"type"},
	)

	ListenerPanics = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "starhold_event_listener_panics_total",
			Help: "Total number of recovered event listener panics",
		},
	)

	// Status tracker metrics
	StatusTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starhold_status_transitions_total",
			Help: "Total number of status transitions by target status",
		},
		[]string{"to"},
	)

	AlertsRaised = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starhold_alerts_raised_total",
			Help: "Total number of alerts raised by level",
		},
		[]string{"level"},
	)

	// Upgrade engine metrics
	UpgradesStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "starhold_upgrades_started_total",
			Help: "Total number of upgrades started",
		},
	)

	UpgradesCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "starhold_upgrades_completed_total",
			Help: "Total number of upgrades completed",
		},
	)

	UpgradesCancelled = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "starhold_upgrades_cancelled_total",
			Help: "Total number of upgrades cancelled",
		},
	)

	// Automation metrics
	RulesEvaluated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "starhold_rules_evaluated_total",
			Help: "Total number of rule predicate evaluations",
		},
	)

	RulesFired = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "starhold_rules_fired_total",
			Help: "Total number of rule actions executed by action",
		},
		[]string{"action"},
	)

	AutomationCycleDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "starhold_automation_cycle_duration_seconds",
			Help:    "Duration of automation evaluation cycles in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ModulesTotal)
	prometheus.MustRegister(BuildingsTotal)
	prometheus.MustRegister(SubModulesTotal)
	prometheus.MustRegister(EventsPublished)
	prometheus.MustRegister(ListenerPanics)
	prometheus.MustRegister(StatusTransitions)
	prometheus.MustRegister(AlertsRaised)
	prometheus.MustRegister(UpgradesStarted)
	prometheus.MustRegister(UpgradesCompleted)
	prometheus.MustRegister(UpgradesCancelled)
	prometheus.MustRegister(RulesEvaluated)
	prometheus.MustRegister(RulesFired)
	prometheus.MustRegister(AutomationCycleDuration)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
