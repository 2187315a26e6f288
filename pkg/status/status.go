package status

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orbitalworks/starhold/pkg/events"
	"github.com/orbitalworks/starhold/pkg/log"
	"github.com/orbitalworks/starhold/pkg/metrics"
	"github.com/orbitalworks/starhold/pkg/registry"
	"github.com/orbitalworks/starhold/pkg/types"
)

const (
	defaultRevertDelay     = 5 * time.Second
	defaultMetricsInterval = 60 * time.Second
)

// Config holds status tracker tuning
type Config struct {
	// RevertDelay is how long a module stays in the upgrading status
	// after an instant registry upgrade before reverting to active.
	RevertDelay time.Duration
	// MetricsInterval is the period of the derived-metrics recompute
	// loop.
	MetricsInterval time.Duration
}

// Tracker derives and stores the extended status state machine per
// module, maintains history and alerts, and computes derived metrics.
type Tracker struct {
	mu      sync.RWMutex
	records map[string]*Record

	reg          *registry.Registry
	bus          *events.Bus
	unsubs       []events.UnsubscribeFunc
	revertTimers map[string]*time.Timer
	cfg          Config
	stopCh       chan struct{}
	logger       zerolog.Logger
}

// NewTracker creates a tracker and subscribes it to module lifecycle
// events. Call Start for the periodic metrics loop and Close to tear
// everything down.
func NewTracker(bus *events.Bus, reg *registry.Registry, cfg Config) *Tracker {
	if cfg.RevertDelay <= 0 {
		cfg.RevertDelay = defaultRevertDelay
	}
	if cfg.MetricsInterval <= 0 {
		cfg.MetricsInterval = defaultMetricsInterval
	}
	t := &Tracker{
		records:      make(map[string]*Record),
		reg:          reg,
		bus:          bus,
		revertTimers: make(map[string]*time.Timer),
		cfg:          cfg,
		stopCh:       make(chan struct{}),
		logger:       log.WithComponent("status"),
	}

	t.unsubs = append(t.unsubs,
		bus.Subscribe(events.EventModuleCreated, t.onModuleCreated),
		bus.Subscribe(events.EventModuleAttached, t.onAttachmentChanged),
		bus.Subscribe(events.EventModuleDetached, t.onAttachmentChanged),
		bus.Subscribe(events.EventModuleActivated, t.onModuleActivated),
		bus.Subscribe(events.EventModuleDeactivated, t.onModuleDeactivated),
		bus.Subscribe(events.EventModuleUpgraded, t.onModuleUpgraded),
		bus.Subscribe(events.EventUpgradeStarted, t.onUpgradeStarted),
		bus.Subscribe(events.EventUpgradeCompleted, t.onUpgradeFinished),
		bus.Subscribe(events.EventUpgradeCancelled, t.onUpgradeFinished),
		bus.Subscribe(events.EventResourceShortage, t.onResourceShortage),
	)
	return t
}

// Start begins the periodic metrics recompute loop
func (t *Tracker) Start() {
	go t.run()
}

func (t *Tracker) run() {
	ticker := time.NewTicker(t.cfg.MetricsInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			t.RecomputeMetrics()
		case <-t.stopCh:
			return
		}
	}
}

// Close stops the metrics loop, cancels pending revert timers, and
// releases event subscriptions
func (t *Tracker) Close() {
	close(t.stopCh)
	for _, unsub := range t.unsubs {
		unsub()
	}
	t.unsubs = nil
	t.mu.Lock()
	for id, timer := range t.revertTimers {
		timer.Stop()
		delete(t.revertTimers, id)
	}
	t.mu.Unlock()
}

// InitializeStatus begins tracking a module from its current base status
func (t *Tracker) InitializeStatus(moduleID string) *Record {
	initial := types.StatusConstructing
	if module, ok := t.reg.Module(moduleID); ok {
		initial = module.Status
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if rec, ok := t.records[moduleID]; ok {
		return rec
	}
	now := time.Now()
	rec := &Record{
		ModuleID:  moduleID,
		Current:   initial,
		Previous:  initial,
		History:   []*Entry{{Status: initial, Timestamp: now}},
		CreatedAt: now,
	}
	if initial == types.StatusActive {
		rec.activeSince = now
	}
	t.records[moduleID] = rec
	return rec
}

// Transition moves a module to a new status. Any status may move to any
// other; the transition is logged, recorded in history, and triggers
// alert and mirroring side effects. Returns false for untracked modules
// and no-op transitions.
func (t *Tracker) Transition(moduleID string, to types.ModuleStatus, reason string) bool {
	t.mu.Lock()
	rec, ok := t.records[moduleID]
	if !ok {
		t.mu.Unlock()
		return false
	}
	if rec.Current == to {
		t.mu.Unlock()
		return false
	}

	now := time.Now()
	from := rec.Current
	// Back-fill the superseded entry's duration; history is otherwise
	// append-only.
	if last := rec.History[len(rec.History)-1]; last.Duration == 0 {
		last.Duration = now.Sub(last.Timestamp)
	}
	rec.Previous = from
	rec.Current = to
	rec.History = append(rec.History, &Entry{Status: to, Timestamp: now, Reason: reason})

	if to == types.StatusActive {
		if rec.activeSince.IsZero() {
			rec.activeSince = now
		}
	} else if from == types.StatusActive {
		rec.Metrics.Uptime += now.Sub(rec.activeSince)
		rec.activeSince = time.Time{}
	}

	// A transition away from upgrading supersedes any pending revert.
	if timer, ok := t.revertTimers[moduleID]; ok && from == types.StatusUpgrading {
		timer.Stop()
		delete(t.revertTimers, moduleID)
	}
	t.mu.Unlock()

	t.logger.Debug().
		Str("module_id", moduleID).
		Str("from", string(from)).
		Str("to", string(to)).
		Str("reason", reason).
		Msg("status transition")
	metrics.StatusTransitions.WithLabelValues(string(to)).Inc()

	t.transitionSideEffects(moduleID, to)

	t.bus.Publish(&events.Event{
		Type:     events.EventStatusChanged,
		ModuleID: moduleID,
		Data:     map[string]any{"from": string(from), "to": string(to), "reason": reason},
	})

	t.recompute(moduleID)
	return true
}

// transitionSideEffects raises the auto-alerts for notable statuses and
// mirrors core statuses back into the registry
func (t *Tracker) transitionSideEffects(moduleID string, to types.ModuleStatus) {
	switch to {
	case types.StatusError, types.StatusCritical, types.StatusOffline:
		t.CreateAlert(moduleID, AlertError, "module entered "+string(to)+" state")
	case types.StatusDegraded, types.StatusOverloaded:
		t.CreateAlert(moduleID, AlertWarning, "module entered "+string(to)+" state")
	case types.StatusOptimized, types.StatusBoost:
		t.CreateAlert(moduleID, AlertInfo, "module entered "+string(to)+" state")
	}

	if to.IsCore() {
		t.reg.MirrorStatus(moduleID, to)
	}
}

// CreateAlert appends an alert to a module's record
func (t *Tracker) CreateAlert(moduleID string, level AlertLevel, message string) *Alert {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[moduleID]
	if !ok {
		return nil
	}
	alert := &Alert{
		ID:        uuid.New().String(),
		Level:     level,
		Message:   message,
		Timestamp: time.Now(),
	}
	rec.Alerts = append(rec.Alerts, alert)
	metrics.AlertsRaised.WithLabelValues(string(level)).Inc()
	return alert
}

// AcknowledgeAlert marks an alert as acknowledged
func (t *Tracker) AcknowledgeAlert(moduleID, alertID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[moduleID]
	if !ok {
		return false
	}
	for _, alert := range rec.Alerts {
		if alert.ID == alertID {
			alert.Acknowledged = true
			return true
		}
	}
	return false
}

// CurrentStatus returns a module's current extended status
func (t *Tracker) CurrentStatus(moduleID string) (types.ModuleStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[moduleID]
	if !ok {
		return "", false
	}
	return rec.Current, true
}

// Record returns the tracked record for a module
func (t *Tracker) Record(moduleID string) (*Record, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[moduleID]
	return rec, ok
}

// scheduleRevert arms the cancellable post-upgrade revert timer for a
// module, replacing any pending one
func (t *Tracker) scheduleRevert(moduleID string) {
	t.mu.Lock()
	if timer, ok := t.revertTimers[moduleID]; ok {
		timer.Stop()
	}
	t.revertTimers[moduleID] = time.AfterFunc(t.cfg.RevertDelay, func() {
		t.mu.Lock()
		delete(t.revertTimers, moduleID)
		t.mu.Unlock()
		t.Transition(moduleID, types.StatusActive, "post-upgrade revert")
	})
	t.mu.Unlock()
}

func (t *Tracker) onModuleCreated(event *events.Event) {
	t.InitializeStatus(event.ModuleID)
}

func (t *Tracker) onAttachmentChanged(event *events.Event) {
	t.Transition(event.ModuleID, types.StatusInactive, "attachment changed")
}

func (t *Tracker) onModuleActivated(event *events.Event) {
	t.Transition(event.ModuleID, types.StatusActive, "module activated")
}

func (t *Tracker) onModuleDeactivated(event *events.Event) {
	t.Transition(event.ModuleID, types.StatusInactive, "module deactivated")
}

// onModuleUpgraded handles the registry's instant upgrade path: the
// module shows as upgrading briefly, then reverts to active.
func (t *Tracker) onModuleUpgraded(event *events.Event) {
	if t.Transition(event.ModuleID, types.StatusUpgrading, "module upgraded") {
		t.scheduleRevert(event.ModuleID)
	}
}

func (t *Tracker) onUpgradeStarted(event *events.Event) {
	t.Transition(event.ModuleID, types.StatusUpgrading, "timed upgrade started")
}

// onUpgradeFinished reverts to active on both completion and
// cancellation; the upgrade engine owns any level change
func (t *Tracker) onUpgradeFinished(event *events.Event) {
	t.Transition(event.ModuleID, types.StatusActive, "timed upgrade finished")
}

// onResourceShortage degrades the named module if it is currently active
func (t *Tracker) onResourceShortage(event *events.Event) {
	if event.ModuleID == "" {
		return
	}
	t.mu.RLock()
	rec, ok := t.records[event.ModuleID]
	active := ok && rec.Current == types.StatusActive
	t.mu.RUnlock()
	if active {
		t.Transition(event.ModuleID, types.StatusDegraded, "resource shortage")
	}
}
