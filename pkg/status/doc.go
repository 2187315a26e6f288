/*
Package status implements the per-module status tracker: an extended
state machine layered over the three core statuses, with append-only
history, auto-raised alerts, and derived health metrics.

The tracker is event-driven. It initializes a record on module creation,
forces inactive on attachment changes, mirrors activation events, shows
upgrading during both the registry's instant upgrades (with a cancellable
timed revert to active) and the upgrade engine's timed upgrades, and
degrades active modules on resource shortages. Transitions into notable
states raise alerts: error-level for error/critical/offline,
warning-level for degraded/overloaded, info-level for optimized/boost.
Transitions into a core status are the one place extended state feeds
back into the registry's module entity.

Derived metrics are recomputed periodically (default every 60s) and
after each transition:

  - efficiency: fixed lookup by current status
  - reliability: 1 - (time in error/critical/offline)/(tracked time)
  - performance: (level/10) * status multiplier, capped at 1
  - uptime: accumulates only while continuously active

History is never rewritten except to back-fill the superseded trailing
entry's duration.
*/
package status
