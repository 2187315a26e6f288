package colony

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/orbitalworks/starhold/pkg/automation"
	"github.com/orbitalworks/starhold/pkg/events"
	"github.com/orbitalworks/starhold/pkg/log"
	"github.com/orbitalworks/starhold/pkg/manifest"
	"github.com/orbitalworks/starhold/pkg/registry"
	"github.com/orbitalworks/starhold/pkg/resources"
	"github.com/orbitalworks/starhold/pkg/status"
	"github.com/orbitalworks/starhold/pkg/storage"
	"github.com/orbitalworks/starhold/pkg/submodule"
	"github.com/orbitalworks/starhold/pkg/tech"
	"github.com/orbitalworks/starhold/pkg/types"
	"github.com/orbitalworks/starhold/pkg/upgrade"
)

// Config holds colony-wide settings
type Config struct {
	// DataDir enables BoltDB persistence when set
	DataDir string
	// ManifestDir is loaded at startup when set
	ManifestDir string
	// EventHistory caps the event bus history ring (0 uses the default)
	EventHistory int

	Status     status.Config
	Upgrade    upgrade.Config
	Automation automation.Config
}

// Colony is the composition root wiring every subsystem together
type Colony struct {
	Bus        *events.Bus
	Resources  *resources.Ledger
	Tech       *tech.Tree
	Registry   *registry.Registry
	SubModules *submodule.Registry
	Tracker    *status.Tracker
	Upgrades   *upgrade.Engine
	Automation *automation.Evaluator

	store     storage.Store
	collector *collector
	logger    zerolog.Logger
}

// New builds a colony in dependency order. Persistence and manifest
// loading are optional; pass empty dirs to skip them.
func New(cfg Config) (*Colony, error) {
	var bus *events.Bus
	if cfg.EventHistory > 0 {
		bus = events.NewBusWithCapacity(cfg.EventHistory)
	} else {
		bus = events.NewBus()
	}

	ledger := resources.NewLedger(bus)
	tree := tech.NewTree()
	reg := registry.NewRegistry(bus, ledger)
	tracker := status.NewTracker(bus, reg, cfg.Status)
	subs := submodule.NewRegistry(bus, reg, ledger)
	engine := upgrade.NewEngine(bus, reg, ledger, tree, subs, cfg.Upgrade)
	evaluator := automation.NewEvaluator(bus, reg, ledger, tracker, cfg.Automation)

	c := &Colony{
		Bus:        bus,
		Resources:  ledger,
		Tech:       tree,
		Registry:   reg,
		SubModules: subs,
		Tracker:    tracker,
		Upgrades:   engine,
		Automation: evaluator,
		logger:     log.WithComponent("colony"),
	}

	if cfg.ManifestDir != "" {
		bundle, err := manifest.LoadDir(cfg.ManifestDir)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifests: %w", err)
		}
		c.ApplyBundle(bundle)
	}

	if cfg.DataDir != "" {
		store, err := storage.NewBoltStore(cfg.DataDir)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		c.store = store
		if err := c.loadSnapshot(); err != nil {
			store.Close()
			return nil, err
		}
	}

	c.collector = newCollector(c)
	return c, nil
}

// ApplyBundle registers manifest content with the appropriate subsystems
func (c *Colony) ApplyBundle(bundle *manifest.Bundle) {
	for _, cfg := range bundle.ModuleConfigs {
		c.Registry.RegisterConfig(cfg)
	}
	for _, cfg := range bundle.SubModuleConfigs {
		c.SubModules.RegisterConfig(cfg)
	}
	for _, path := range bundle.UpgradePaths {
		c.Upgrades.RegisterPath(path)
	}
	for _, b := range bundle.Buildings {
		c.Registry.RegisterBuilding(b)
	}
	for _, rule := range bundle.Rules {
		if err := c.Automation.AddRule(rule); err != nil {
			c.logger.Warn().Err(err).Str("rule", rule.Name).Msg("skipping manifest rule")
		}
	}
}

// Start begins the background loops (status metrics, automation polling,
// gauge collection)
func (c *Colony) Start() {
	c.Tracker.Start()
	c.Automation.Enable()
	c.collector.Start()
	c.logger.Info().Msg("Colony started")
}

// Shutdown stops subsystems in reverse dependency order and persists a
// final snapshot when a store is configured
func (c *Colony) Shutdown() error {
	c.collector.Stop()
	c.Automation.Disable()
	c.Upgrades.Close()
	c.SubModules.Close()
	c.Tracker.Close()

	if c.store == nil {
		c.logger.Info().Msg("Colony stopped")
		return nil
	}

	err := c.SaveSnapshot()
	if closeErr := c.store.Close(); err == nil {
		err = closeErr
	}
	c.logger.Info().Msg("Colony stopped")
	return err
}

// SaveSnapshot persists the current colony state
func (c *Colony) SaveSnapshot() error {
	if c.store == nil {
		return fmt.Errorf("no store configured")
	}
	snap := &storage.Snapshot{
		Modules:    c.Registry.Modules(),
		Buildings:  c.Registry.Buildings(),
		SubModules: c.SubModules.SubModules(),
		Rules:      c.Automation.Rules(),
	}
	if err := c.store.SaveSnapshot(snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	c.logger.Info().
		Int("modules", len(snap.Modules)).
		Int("buildings", len(snap.Buildings)).
		Int("submodules", len(snap.SubModules)).
		Int("rules", len(snap.Rules)).
		Msg("Snapshot saved")
	return nil
}

func (c *Colony) loadSnapshot() error {
	snap, err := c.store.LoadSnapshot()
	if err != nil {
		return fmt.Errorf("failed to load snapshot: %w", err)
	}
	if len(snap.Modules) == 0 && len(snap.Buildings) == 0 &&
		len(snap.SubModules) == 0 && len(snap.Rules) == 0 {
		return nil
	}

	c.Registry.Restore(snap.Modules, snap.Buildings)
	c.SubModules.Restore(snap.SubModules)
	c.Automation.Restore(snap.Rules)
	for _, m := range snap.Modules {
		c.Tracker.InitializeStatus(m.ID)
	}

	c.logger.Info().
		Int("modules", len(snap.Modules)).
		Int("buildings", len(snap.Buildings)).
		Int("submodules", len(snap.SubModules)).
		Int("rules", len(snap.Rules)).
		Msg("Snapshot restored")
	return nil
}

// ModuleOverview is a flattened per-module view for callers that want a
// single read (UI layers, debugging endpoints)
type ModuleOverview struct {
	Module     *types.Module
	Status     types.ModuleStatus
	Metrics    *status.Metrics
	SubModules []*types.SubModule
	Stats      map[string]float64
}

// Overview assembles the full picture of one module
func (c *Colony) Overview(moduleID string) (*ModuleOverview, bool) {
	m, ok := c.Registry.Module(moduleID)
	if !ok {
		return nil, false
	}
	ov := &ModuleOverview{
		Module:     m,
		Status:     m.Status,
		SubModules: c.SubModules.SubModulesForParent(moduleID),
		Stats:      c.SubModules.ModuleStats(moduleID),
	}
	if st, ok := c.Tracker.CurrentStatus(moduleID); ok {
		ov.Status = st
	}
	if rec, ok := c.Tracker.Record(moduleID); ok {
		metrics := rec.Metrics
		ov.Metrics = &metrics
	}
	return ov, true
}
