/*
Package metrics provides Prometheus metrics for Starhold.

All metrics are registered on the default registry at package init and
exposed via Handler() for scraping. Categories:

  - Registry: module/building/sub-module gauges
  - Event bus: events published, recovered listener panics
  - Status tracker: transitions and alerts by level
  - Upgrade engine: upgrades started/completed/cancelled
  - Automation: rule evaluations, fires by action, cycle duration

Timing a code path:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.AutomationCycleDuration)
*/
package metrics
