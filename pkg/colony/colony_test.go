package colony

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalworks/starhold/pkg/types"
	"github.com/orbitalworks/starhold/pkg/upgrade"
)

const testManifests = `kind: ModuleConfig
metadata:
  name: Ore Extractor
spec:
  type: extractor
  baseStats:
    output: 100
  subModuleSupport: true
  maxSubModules: 2
  allowedSubTypes:
    - enhancer
---
kind: SubModuleConfig
metadata:
  name: Output Enhancer
spec:
  type: enhancer
  effects:
    - type: stat-boost
      target: output
      value: 20
---
kind: UpgradePath
metadata:
  name: Extractor Path
spec:
  moduleType: extractor
  levels:
    - level: 2
      name: Reinforced Drill
---
kind: Building
metadata:
  name: Central Hub
spec:
  type: colony-hub
  attachmentPoints:
    - id: slot-0
      allowedTypes:
        - extractor
---
kind: AutomationRule
metadata:
  name: Low Energy Shutdown
spec:
  type: resource-threshold
  action: deactivate
  resourceType: energy
  threshold: 50
  comparison: below
`

func manifestDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "colony.yaml"), []byte(testManifests), 0644))
	return dir
}

// TestNewWiresSubsystems tests manifest-driven wiring end to end
func TestNewWiresSubsystems(t *testing.T) {
	c, err := New(Config{ManifestDir: manifestDir(t)})
	require.NoError(t, err)
	defer c.Shutdown()

	_, ok := c.Registry.Config(types.ModuleTypeExtractor)
	assert.True(t, ok)
	assert.Len(t, c.Registry.Buildings(), 1)
	assert.Len(t, c.Automation.Rules(), 1)
	_, ok = c.Upgrades.Path(types.ModuleTypeExtractor)
	assert.True(t, ok)
}

// TestOverview tests the flattened per-module view
func TestOverview(t *testing.T) {
	c, err := New(Config{ManifestDir: manifestDir(t)})
	require.NoError(t, err)
	defer c.Shutdown()

	m, err := c.Registry.CreateModule(types.ModuleTypeExtractor, nil)
	require.NoError(t, err)
	require.True(t, c.Registry.SetModuleActive(m.ID, true))

	sub, err := c.SubModules.CreateSubModule(types.SubModuleEnhancer, m.ID)
	require.NoError(t, err)
	require.True(t, c.SubModules.ActivateSubModule(sub.ID))

	ov, ok := c.Overview(m.ID)
	require.True(t, ok)
	assert.Equal(t, types.StatusActive, ov.Status)
	require.Len(t, ov.SubModules, 1)
	assert.Equal(t, 120.0, ov.Stats["output"])
	require.NotNil(t, ov.Metrics)

	_, ok = c.Overview("nope")
	assert.False(t, ok)
}

// TestSnapshotRoundTrip tests persistence across colony restarts
func TestSnapshotRoundTrip(t *testing.T) {
	dataDir := t.TempDir()
	manifests := manifestDir(t)

	c, err := New(Config{DataDir: dataDir, ManifestDir: manifests})
	require.NoError(t, err)

	m, err := c.Registry.CreateModule(types.ModuleTypeExtractor, nil)
	require.NoError(t, err)
	require.True(t, c.Registry.AttachModule(m.ID, c.Registry.Buildings()[0].ID, "slot-0"))
	require.True(t, c.Registry.SetModuleActive(m.ID, true))
	require.True(t, c.Registry.SetLevel(m.ID, 2))

	require.NoError(t, c.Shutdown())

	restored, err := New(Config{DataDir: dataDir, ManifestDir: manifests})
	require.NoError(t, err)
	defer restored.Shutdown()

	got, ok := restored.Registry.Module(m.ID)
	require.True(t, ok)
	assert.Equal(t, 2, got.Level)
	assert.True(t, got.IsActive)
	assert.Equal(t, "slot-0", got.AttachmentID)

	// Restored modules are tracked from their persisted status
	st, ok := restored.Tracker.CurrentStatus(m.ID)
	require.True(t, ok)
	assert.Equal(t, types.StatusActive, st)

	// Manifest rules loaded before the snapshot are superseded by it
	assert.Len(t, restored.Automation.Rules(), 1)
}

// TestLifecycleFlow tests a full create-attach-activate-upgrade flow
// through the composed subsystems
func TestLifecycleFlow(t *testing.T) {
	c, err := New(Config{
		ManifestDir: manifestDir(t),
		Upgrade:     upgrade.Config{BaseDuration: 10 * time.Millisecond},
	})
	require.NoError(t, err)
	defer c.Shutdown()

	c.Resources.Set(types.ResourceEnergy, 1000)

	m, err := c.Registry.CreateModule(types.ModuleTypeExtractor, nil)
	require.NoError(t, err)
	require.True(t, c.Registry.SetModuleActive(m.ID, true))

	require.True(t, c.Upgrades.CanUpgrade(m.ID))
	require.True(t, c.Upgrades.StartUpgrade(m.ID))

	st, _ := c.Tracker.CurrentStatus(m.ID)
	assert.Equal(t, types.StatusUpgrading, st)

	require.Eventually(t, func() bool {
		got, _ := c.Registry.Module(m.ID)
		return got.Level == 2
	}, 5*time.Second, 10*time.Millisecond)

	st, _ = c.Tracker.CurrentStatus(m.ID)
	assert.Equal(t, types.StatusActive, st)
}
