package status

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalworks/starhold/pkg/events"
	"github.com/orbitalworks/starhold/pkg/registry"
	"github.com/orbitalworks/starhold/pkg/resources"
	"github.com/orbitalworks/starhold/pkg/types"
)

func newTestTracker(t *testing.T, revertDelay time.Duration) (*Tracker, *registry.Registry, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	ledger := resources.NewLedger(bus)
	reg := registry.NewRegistry(bus, ledger)
	reg.RegisterConfig(&types.ModuleConfig{Type: types.ModuleTypeRadar, Name: "Radar"})

	tracker := NewTracker(bus, reg, Config{RevertDelay: revertDelay})
	t.Cleanup(tracker.Close)
	return tracker, reg, bus
}

// TestInitializeOnCreation tests that creation events start tracking
func TestInitializeOnCreation(t *testing.T) {
	tracker, reg, _ := newTestTracker(t, 0)

	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)

	st, ok := tracker.CurrentStatus(m.ID)
	require.True(t, ok)
	assert.Equal(t, types.StatusConstructing, st)

	rec, ok := tracker.Record(m.ID)
	require.True(t, ok)
	require.Len(t, rec.History, 1)
	assert.Equal(t, types.StatusConstructing, rec.History[0].Status)

	_, ok = tracker.CurrentStatus("nope")
	assert.False(t, ok)
}

// TestTransition tests history recording and the status.changed event
func TestTransition(t *testing.T) {
	tracker, reg, bus := newTestTracker(t, 0)
	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)

	var changed *events.Event
	bus.Subscribe(events.EventStatusChanged, func(e *events.Event) { changed = e })

	assert.True(t, tracker.Transition(m.ID, types.StatusMaintenance, "scheduled service"))

	rec, _ := tracker.Record(m.ID)
	assert.Equal(t, types.StatusMaintenance, rec.Current)
	assert.Equal(t, types.StatusConstructing, rec.Previous)
	require.Len(t, rec.History, 2)
	assert.Equal(t, "scheduled service", rec.History[1].Reason)

	require.NotNil(t, changed)
	assert.Equal(t, "constructing", changed.Data["from"])
	assert.Equal(t, "maintenance", changed.Data["to"])

	// Same-status transition is a no-op returning false
	assert.False(t, tracker.Transition(m.ID, types.StatusMaintenance, "again"))
	assert.False(t, tracker.Transition("nope", types.StatusActive, ""))
}

// TestHistoryDurations tests the back-filled duration invariant: every
// entry but the open trailing one carries a non-zero duration
func TestHistoryDurations(t *testing.T) {
	tracker, reg, _ := newTestTracker(t, 0)
	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.True(t, tracker.Transition(m.ID, types.StatusActive, ""))
	time.Sleep(5 * time.Millisecond)
	require.True(t, tracker.Transition(m.ID, types.StatusDegraded, ""))

	rec, _ := tracker.Record(m.ID)
	require.Len(t, rec.History, 3)
	assert.Greater(t, rec.History[0].Duration, time.Duration(0))
	assert.Greater(t, rec.History[1].Duration, time.Duration(0))
	assert.Equal(t, time.Duration(0), rec.History[2].Duration)
}

// TestCoreStatusMirrors tests that core statuses write back to the registry
func TestCoreStatusMirrors(t *testing.T) {
	tracker, reg, _ := newTestTracker(t, 0)
	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)

	require.True(t, tracker.Transition(m.ID, types.StatusActive, ""))
	got, _ := reg.Module(m.ID)
	assert.True(t, got.IsActive)
	assert.Equal(t, types.StatusActive, got.Status)

	// Extended statuses do not touch the core entity
	require.True(t, tracker.Transition(m.ID, types.StatusDegraded, ""))
	got, _ = reg.Module(m.ID)
	assert.Equal(t, types.StatusActive, got.Status)
}

// TestActivationEventsDrive tests that registry activation flows through
func TestActivationEventsDrive(t *testing.T) {
	tracker, reg, _ := newTestTracker(t, 0)
	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)

	require.True(t, reg.SetModuleActive(m.ID, true))
	st, _ := tracker.CurrentStatus(m.ID)
	assert.Equal(t, types.StatusActive, st)

	require.True(t, reg.SetModuleActive(m.ID, false))
	st, _ = tracker.CurrentStatus(m.ID)
	assert.Equal(t, types.StatusInactive, st)
}

// TestAutoAlerts tests the per-status alert side effects
func TestAutoAlerts(t *testing.T) {
	tests := []struct {
		status types.ModuleStatus
		level  AlertLevel
	}{
		{types.StatusError, AlertError},
		{types.StatusCritical, AlertError},
		{types.StatusOffline, AlertError},
		{types.StatusDegraded, AlertWarning},
		{types.StatusOverloaded, AlertWarning},
		{types.StatusOptimized, AlertInfo},
		{types.StatusBoost, AlertInfo},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			tracker, reg, _ := newTestTracker(t, 0)
			m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
			require.NoError(t, err)

			require.True(t, tracker.Transition(m.ID, tt.status, ""))
			rec, _ := tracker.Record(m.ID)
			require.Len(t, rec.Alerts, 1)
			assert.Equal(t, tt.level, rec.Alerts[0].Level)
		})
	}
}

// TestAcknowledgeAlert tests alert acknowledgement
func TestAcknowledgeAlert(t *testing.T) {
	tracker, reg, _ := newTestTracker(t, 0)
	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)

	alert := tracker.CreateAlert(m.ID, AlertWarning, "power fluctuation")
	require.NotNil(t, alert)

	assert.True(t, tracker.AcknowledgeAlert(m.ID, alert.ID))
	assert.True(t, alert.Acknowledged)

	assert.False(t, tracker.AcknowledgeAlert(m.ID, "nope"))
	assert.False(t, tracker.AcknowledgeAlert("nope", alert.ID))
}

// TestUpgradeRevert tests the timed revert after an instant upgrade
func TestUpgradeRevert(t *testing.T) {
	tracker, reg, _ := newTestTracker(t, 20*time.Millisecond)
	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)
	require.True(t, reg.SetModuleActive(m.ID, true))

	require.True(t, reg.UpgradeModule(m.ID))
	st, _ := tracker.CurrentStatus(m.ID)
	assert.Equal(t, types.StatusUpgrading, st)

	require.Eventually(t, func() bool {
		st, _ := tracker.CurrentStatus(m.ID)
		return st == types.StatusActive
	}, time.Second, 5*time.Millisecond)

	got, _ := reg.Module(m.ID)
	assert.True(t, got.IsActive)
}

// TestUpgradeRevertCancelled tests that a competing transition supersedes
// the pending revert
func TestUpgradeRevertCancelled(t *testing.T) {
	tracker, reg, _ := newTestTracker(t, 20*time.Millisecond)
	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)
	require.True(t, reg.SetModuleActive(m.ID, true))

	require.True(t, reg.UpgradeModule(m.ID))
	require.True(t, tracker.Transition(m.ID, types.StatusMaintenance, "manual hold"))

	time.Sleep(80 * time.Millisecond)
	st, _ := tracker.CurrentStatus(m.ID)
	assert.Equal(t, types.StatusMaintenance, st)
}

// TestTimedUpgradeStatuses tests the upgrade engine's event path
func TestTimedUpgradeStatuses(t *testing.T) {
	tracker, reg, bus := newTestTracker(t, 0)
	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)
	require.True(t, reg.SetModuleActive(m.ID, true))

	bus.Publish(&events.Event{Type: events.EventUpgradeStarted, ModuleID: m.ID})
	st, _ := tracker.CurrentStatus(m.ID)
	assert.Equal(t, types.StatusUpgrading, st)

	bus.Publish(&events.Event{Type: events.EventUpgradeCompleted, ModuleID: m.ID})
	st, _ = tracker.CurrentStatus(m.ID)
	assert.Equal(t, types.StatusActive, st)

	bus.Publish(&events.Event{Type: events.EventUpgradeStarted, ModuleID: m.ID})
	bus.Publish(&events.Event{Type: events.EventUpgradeCancelled, ModuleID: m.ID})
	st, _ = tracker.CurrentStatus(m.ID)
	assert.Equal(t, types.StatusActive, st)
}

// TestResourceShortageDegrades tests shortage handling for active modules
func TestResourceShortageDegrades(t *testing.T) {
	tracker, reg, bus := newTestTracker(t, 0)
	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)

	// Inactive module: shortage is ignored
	bus.Publish(&events.Event{Type: events.EventResourceShortage, ModuleID: m.ID})
	st, _ := tracker.CurrentStatus(m.ID)
	assert.Equal(t, types.StatusConstructing, st)

	require.True(t, reg.SetModuleActive(m.ID, true))
	bus.Publish(&events.Event{Type: events.EventResourceShortage, ModuleID: m.ID})
	st, _ = tracker.CurrentStatus(m.ID)
	assert.Equal(t, types.StatusDegraded, st)
}

// TestEfficiencyLookup tests the status multiplier table
func TestEfficiencyLookup(t *testing.T) {
	tests := []struct {
		status types.ModuleStatus
		want   float64
	}{
		{types.StatusActive, 1.0},
		{types.StatusOptimized, 1.2},
		{types.StatusBoost, 1.5},
		{types.StatusDegraded, 0.8},
		{types.StatusOverloaded, 0.6},
		{types.StatusMaintenance, 0.5},
		{types.StatusRepairing, 0.5},
		{types.StatusPowerSave, 0.7},
		{types.StatusError, 0},
		{types.StatusCritical, 0},
		{types.StatusOffline, 0},
		{types.StatusStandby, 1.0},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			tracker, reg, _ := newTestTracker(t, 0)
			m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
			require.NoError(t, err)

			require.True(t, tracker.Transition(m.ID, tt.status, ""))
			rec, _ := tracker.Record(m.ID)
			assert.InDelta(t, tt.want, rec.Metrics.Efficiency, 1e-9)
		})
	}
}

// TestPerformanceMetric tests the level-scaled performance figure
func TestPerformanceMetric(t *testing.T) {
	tracker, reg, _ := newTestTracker(t, 0)
	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)
	require.True(t, reg.SetLevel(m.ID, 5))

	require.True(t, tracker.Transition(m.ID, types.StatusActive, ""))
	rec, _ := tracker.Record(m.ID)
	assert.InDelta(t, 0.5, rec.Metrics.Performance, 1e-9)

	// Boost at a high level caps at 1
	require.True(t, reg.SetLevel(m.ID, 10))
	require.True(t, tracker.Transition(m.ID, types.StatusBoost, ""))
	rec, _ = tracker.Record(m.ID)
	assert.InDelta(t, 1.0, rec.Metrics.Performance, 1e-9)
}

// TestUptimeAccrual tests that uptime grows only while active
func TestUptimeAccrual(t *testing.T) {
	tracker, reg, _ := newTestTracker(t, 0)
	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)

	require.True(t, tracker.Transition(m.ID, types.StatusActive, ""))
	time.Sleep(10 * time.Millisecond)
	require.True(t, tracker.Transition(m.ID, types.StatusInactive, ""))

	rec, _ := tracker.Record(m.ID)
	uptime := rec.Metrics.Uptime
	assert.Greater(t, uptime, time.Duration(0))

	// Inactive time does not accrue
	time.Sleep(10 * time.Millisecond)
	tracker.RecomputeMetrics()
	rec, _ = tracker.Record(m.ID)
	assert.Equal(t, uptime, rec.Metrics.Uptime)
}

// TestReliability tests downtime fraction accounting
func TestReliability(t *testing.T) {
	tracker, reg, _ := newTestTracker(t, 0)
	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)

	require.True(t, tracker.Transition(m.ID, types.StatusActive, ""))
	rec, _ := tracker.Record(m.ID)
	assert.InDelta(t, 1.0, rec.Metrics.Reliability, 1e-9)

	// Park the module in a downtime status; reliability decays
	require.True(t, tracker.Transition(m.ID, types.StatusOffline, ""))
	time.Sleep(20 * time.Millisecond)
	tracker.RecomputeMetrics()
	rec, _ = tracker.Record(m.ID)
	assert.Less(t, rec.Metrics.Reliability, 1.0)
	assert.GreaterOrEqual(t, rec.Metrics.Reliability, 0.0)
}
