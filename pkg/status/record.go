package status

import (
	"time"

	"github.com/orbitalworks/starhold/pkg/types"
)

// AlertLevel represents alert severity
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertError    AlertLevel = "error"
	AlertCritical AlertLevel = "critical"
)

// Alert is a single raised alert on a module
type Alert struct {
	ID           string
	Level        AlertLevel
	Message      string
	Timestamp    time.Time
	Acknowledged bool
}

// Entry is one history record of a status stretch. Duration is zero for
// the open trailing entry and back-filled when a later transition
// supersedes it.
type Entry struct {
	Status    types.ModuleStatus
	Timestamp time.Time
	Duration  time.Duration
	Reason    string
}

// Metrics holds the derived per-module health figures
type Metrics struct {
	Uptime      time.Duration // continuous active time
	Efficiency  float64       // status lookup, >1 for boosted states
	Reliability float64       // 1 - downtime fraction, clamped to [0,1]
	Performance float64       // (level/10) * status multiplier, capped at 1
}

// Record is the tracked status state for a single module
type Record struct {
	ModuleID  string
	Current   types.ModuleStatus
	Previous  types.ModuleStatus
	History   []*Entry
	Metrics   Metrics
	Alerts    []*Alert
	CreatedAt time.Time

	activeSince time.Time // zero unless continuously active
}
