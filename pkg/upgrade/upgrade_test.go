package upgrade

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalworks/starhold/pkg/events"
	"github.com/orbitalworks/starhold/pkg/registry"
	"github.com/orbitalworks/starhold/pkg/resources"
	"github.com/orbitalworks/starhold/pkg/tech"
	"github.com/orbitalworks/starhold/pkg/types"
)

type recordingApplier struct {
	moduleID string
	effects  []*types.Effect
}

func (a *recordingApplier) ApplyPermanent(moduleID string, effects []*types.Effect) {
	a.moduleID = moduleID
	a.effects = effects
}

type fixture struct {
	bus     *events.Bus
	ledger  *resources.Ledger
	reg     *registry.Registry
	tree    *tech.Tree
	applier *recordingApplier
	engine  *Engine
	module  *types.Module
}

func radarPath() *types.UpgradePath {
	return &types.UpgradePath{
		ModuleType: types.ModuleTypeRadar,
		Levels: []*types.UpgradeLevel{
			{
				Level: 2,
				Name:  "Focused Array",
				Requirements: types.UpgradeRequirements{
					ResourceCosts: []types.ResourceCost{
						{Type: types.ResourceMinerals, Amount: 100},
					},
				},
				Effects: []*types.Effect{
					{Type: types.EffectStatBoost, Target: "range", Value: 25},
				},
			},
			{
				Level: 3,
				Name:  "Phased Array",
				Requirements: types.UpgradeRequirements{
					ResourceCosts: []types.ResourceCost{
						{Type: types.ResourceMinerals, Amount: 300},
					},
					TechIDs: []string{"phased-optics"},
				},
			},
		},
	}
}

func newFixture(t *testing.T, techSvc tech.Service) *fixture {
	t.Helper()
	bus := events.NewBus()
	ledger := resources.NewLedger(bus)
	ledger.Set(types.ResourceMinerals, 1000)
	reg := registry.NewRegistry(bus, ledger)
	reg.RegisterConfig(&types.ModuleConfig{Type: types.ModuleTypeRadar, Name: "Radar"})

	applier := &recordingApplier{}
	engine := NewEngine(bus, reg, ledger, techSvc, applier, Config{BaseDuration: 10 * time.Millisecond})
	t.Cleanup(engine.Close)
	engine.RegisterPath(radarPath())

	m, err := reg.CreateModule(types.ModuleTypeRadar, nil)
	require.NoError(t, err)
	require.True(t, reg.SetModuleActive(m.ID, true))

	return &fixture{bus: bus, ledger: ledger, reg: reg, applier: applier, engine: engine, module: m}
}

// TestCanUpgrade tests the precondition chain
func TestCanUpgrade(t *testing.T) {
	f := newFixture(t, tech.NewTree())

	assert.True(t, f.engine.CanUpgrade(f.module.ID))
	assert.False(t, f.engine.CanUpgrade("nope"))

	// Inactive modules cannot upgrade
	require.True(t, f.reg.SetModuleActive(f.module.ID, false))
	assert.False(t, f.engine.CanUpgrade(f.module.ID))
	require.True(t, f.reg.SetModuleActive(f.module.ID, true))

	// Missing resources block
	f.ledger.Set(types.ResourceMinerals, 10)
	assert.False(t, f.engine.CanUpgrade(f.module.ID))
	f.ledger.Set(types.ResourceMinerals, 1000)

	// A level past the path's end has no definition
	require.True(t, f.reg.SetLevel(f.module.ID, 3))
	assert.False(t, f.engine.CanUpgrade(f.module.ID))
}

// TestCheckRequirementsReasons tests the missing-reason reporting
func TestCheckRequirementsReasons(t *testing.T) {
	tree := tech.NewTree()
	tree.Register(&tech.Node{ID: "phased-optics", Name: "Phased Optics"})
	f := newFixture(t, tree)
	require.True(t, f.reg.SetLevel(f.module.ID, 2))
	f.ledger.Set(types.ResourceMinerals, 50)

	met, missing := f.engine.CheckRequirements(f.module.ID)
	assert.False(t, met)
	require.Len(t, missing, 2)
	assert.Contains(t, missing[0], "requires 300 minerals")
	assert.Contains(t, missing[1], "requires tech Phased Optics")

	f.ledger.Set(types.ResourceMinerals, 500)
	tree.Unlock("phased-optics")
	met, missing = f.engine.CheckRequirements(f.module.ID)
	assert.True(t, met)
	assert.Empty(t, missing)
}

// TestNilTechServiceFailsClosed tests that tech gates fail closed when
// the service is absent, reporting the check as unverified
func TestNilTechServiceFailsClosed(t *testing.T) {
	f := newFixture(t, nil)
	require.True(t, f.reg.SetLevel(f.module.ID, 2))

	met, missing := f.engine.CheckRequirements(f.module.ID)
	assert.False(t, met)
	require.Len(t, missing, 1)
	assert.Contains(t, missing[0], "unverified")
	assert.Contains(t, missing[0], "phased-optics")

	// Levels without tech requirements are unaffected
	require.True(t, f.reg.SetLevel(f.module.ID, 1))
	assert.True(t, f.engine.CanUpgrade(f.module.ID))
}

// TestStartUpgrade tests the debit, the in-flight record, and completion
func TestStartUpgrade(t *testing.T) {
	f := newFixture(t, tech.NewTree())

	var started, completed *events.Event
	f.bus.Subscribe(events.EventUpgradeStarted, func(e *events.Event) { started = e })
	f.bus.Subscribe(events.EventUpgradeCompleted, func(e *events.Event) { completed = e })

	require.True(t, f.engine.StartUpgrade(f.module.ID))
	assert.Equal(t, 900.0, f.ledger.Amount(types.ResourceMinerals))

	up, ok := f.engine.ActiveUpgrade(f.module.ID)
	require.True(t, ok)
	assert.Equal(t, 2, up.TargetLevel)
	// Duration scales with the target level
	assert.Equal(t, 20*time.Millisecond, up.Duration)

	require.NotNil(t, started)
	assert.Equal(t, 2, started.Data["target_level"])

	// A second start while in flight is rejected
	assert.False(t, f.engine.StartUpgrade(f.module.ID))

	require.Eventually(t, func() bool { return completed != nil }, time.Second, 5*time.Millisecond)

	got, _ := f.reg.Module(f.module.ID)
	assert.Equal(t, 2, got.Level)
	_, ok = f.engine.ActiveUpgrade(f.module.ID)
	assert.False(t, ok)

	// Level effects flowed through the applier
	assert.Equal(t, f.module.ID, f.applier.moduleID)
	require.Len(t, f.applier.effects, 1)
	assert.Equal(t, "range", f.applier.effects[0].Target)
}

// TestCancelUpgrade tests cancellation without refund and without a
// level change
func TestCancelUpgrade(t *testing.T) {
	f := newFixture(t, tech.NewTree())

	var cancelled *events.Event
	f.bus.Subscribe(events.EventUpgradeCancelled, func(e *events.Event) { cancelled = e })

	assert.False(t, f.engine.CancelUpgrade(f.module.ID))

	require.True(t, f.engine.StartUpgrade(f.module.ID))
	require.True(t, f.engine.CancelUpgrade(f.module.ID))

	require.NotNil(t, cancelled)
	assert.Equal(t, 2, cancelled.Data["target_level"])
	// No refund
	assert.Equal(t, 900.0, f.ledger.Amount(types.ResourceMinerals))

	// The stopped timer must not fire a completion
	time.Sleep(50 * time.Millisecond)
	got, _ := f.reg.Module(f.module.ID)
	assert.Equal(t, 1, got.Level)

	// A fresh upgrade can start after cancellation
	assert.True(t, f.engine.StartUpgrade(f.module.ID))
}

// TestModuleLevelRequirement tests cross-module gating
func TestModuleLevelRequirement(t *testing.T) {
	f := newFixture(t, tech.NewTree())
	f.reg.RegisterConfig(&types.ModuleConfig{Type: types.ModuleTypeResearch, Name: "Lab"})
	f.engine.RegisterPath(&types.UpgradePath{
		ModuleType: types.ModuleTypeResearch,
		Levels: []*types.UpgradeLevel{
			{
				Level: 2,
				Requirements: types.UpgradeRequirements{
					ModuleRequires: []types.ModuleLevelRequirement{
						{Type: types.ModuleTypeRadar, Level: 3},
					},
				},
			},
		},
	})

	lab, err := f.reg.CreateModule(types.ModuleTypeResearch, nil)
	require.NoError(t, err)
	require.True(t, f.reg.SetModuleActive(lab.ID, true))

	met, missing := f.engine.CheckRequirements(lab.ID)
	assert.False(t, met)
	require.Len(t, missing, 1)
	assert.Contains(t, missing[0], "radar module at level 3")

	require.True(t, f.reg.SetLevel(f.module.ID, 3))
	met, _ = f.engine.CheckRequirements(lab.ID)
	assert.True(t, met)
}

// TestBuildingLevelRequirement tests the building level gate
func TestBuildingLevelRequirement(t *testing.T) {
	f := newFixture(t, tech.NewTree())
	f.engine.RegisterPath(&types.UpgradePath{
		ModuleType: types.ModuleTypeRadar,
		Levels: []*types.UpgradeLevel{
			{
				Level:        2,
				Requirements: types.UpgradeRequirements{BuildingLevel: 2},
			},
		},
	})
	f.reg.RegisterBuilding(&types.Building{
		ID:    "b1",
		Type:  types.BuildingColonyHub,
		Level: 1,
		AttachmentPoints: []*types.AttachmentPoint{
			{ID: "slot-0", AllowedTypes: []types.ModuleType{types.ModuleTypeRadar}},
		},
	})

	// Unattached: no building to satisfy the gate
	met, missing := f.engine.CheckRequirements(f.module.ID)
	assert.False(t, met)
	assert.Contains(t, missing[0], "building level 2")

	require.True(t, f.reg.AttachModule(f.module.ID, "b1", "slot-0"))
	met, _ = f.engine.CheckRequirements(f.module.ID)
	assert.False(t, met)

	b, _ := f.reg.Building("b1")
	b.Level = 2
	met, _ = f.engine.CheckRequirements(f.module.ID)
	assert.True(t, met)
}

// TestUpgradeStatus tests the derived view
func TestUpgradeStatus(t *testing.T) {
	f := newFixture(t, tech.NewTree())

	st, ok := f.engine.UpgradeStatus(f.module.ID)
	require.True(t, ok)
	assert.Equal(t, 1, st.CurrentLevel)
	assert.Equal(t, 3, st.MaxLevel)
	require.NotNil(t, st.NextLevel)
	assert.Equal(t, 2, st.NextLevel.Level)
	assert.False(t, st.InFlight)

	require.True(t, f.engine.StartUpgrade(f.module.ID))
	st, _ = f.engine.UpgradeStatus(f.module.ID)
	assert.True(t, st.InFlight)
	assert.GreaterOrEqual(t, st.Progress, 0.0)
	assert.LessOrEqual(t, st.Progress, 1.0)

	_, ok = f.engine.UpgradeStatus("nope")
	assert.False(t, ok)
}

// TestCloseCancelsTimers tests that Close prevents pending completions
func TestCloseCancelsTimers(t *testing.T) {
	f := newFixture(t, tech.NewTree())

	require.True(t, f.engine.StartUpgrade(f.module.ID))
	f.engine.Close()

	time.Sleep(50 * time.Millisecond)
	got, _ := f.reg.Module(f.module.ID)
	assert.Equal(t, 1, got.Level)
}
