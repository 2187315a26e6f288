package status

import (
	"time"

	"github.com/orbitalworks/starhold/pkg/types"
)

// statusMultiplier is the efficiency lookup table keyed by current
// status. Unlisted statuses are neutral (1.0).
var statusMultiplier = map[types.ModuleStatus]float64{
	types.StatusOptimized:   1.2,
	types.StatusBoost:       1.5,
	types.StatusDegraded:    0.8,
	types.StatusOverloaded:  0.6,
	types.StatusMaintenance: 0.5,
	types.StatusRepairing:   0.5,
	types.StatusPowerSave:   0.7,
	types.StatusError:       0,
	types.StatusCritical:    0,
	types.StatusOffline:     0,
}

func multiplierFor(s types.ModuleStatus) float64 {
	if m, ok := statusMultiplier[s]; ok {
		return m
	}
	return 1.0
}

func isDowntime(s types.ModuleStatus) bool {
	return s == types.StatusError || s == types.StatusCritical || s == types.StatusOffline
}

// RecomputeMetrics refreshes derived metrics for every tracked module
func (t *Tracker) RecomputeMetrics() {
	t.mu.RLock()
	ids := make([]string, 0, len(t.records))
	for id := range t.records {
		ids = append(ids, id)
	}
	t.mu.RUnlock()
	for _, id := range ids {
		t.recompute(id)
	}
}

// recompute refreshes one module's derived metrics from its record and
// registry state
func (t *Tracker) recompute(moduleID string) {
	level := 1
	if module, ok := t.reg.Module(moduleID); ok {
		level = module.Level
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[moduleID]
	if !ok {
		return
	}
	now := time.Now()

	rec.Metrics.Efficiency = multiplierFor(rec.Current)

	// Reliability: fraction of tracked time not spent in a downtime
	// status.
	total := now.Sub(rec.CreatedAt)
	if total > 0 {
		var down time.Duration
		for i, entry := range rec.History {
			if !isDowntime(entry.Status) {
				continue
			}
			if i == len(rec.History)-1 {
				down += now.Sub(entry.Timestamp)
			} else {
				down += entry.Duration
			}
		}
		rec.Metrics.Reliability = clamp01(1 - down.Seconds()/total.Seconds())
	} else {
		rec.Metrics.Reliability = 1
	}

	perf := float64(level) / 10 * multiplierFor(rec.Current)
	if perf > 1 {
		perf = 1
	}
	rec.Metrics.Performance = perf

	if !rec.activeSince.IsZero() {
		// Uptime grows only while continuously active; the tally is
		// advanced to now and the stretch origin moved with it.
		rec.Metrics.Uptime += now.Sub(rec.activeSince)
		rec.activeSince = now
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
