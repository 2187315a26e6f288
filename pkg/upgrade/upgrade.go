package upgrade

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/orbitalworks/starhold/pkg/events"
	"github.com/orbitalworks/starhold/pkg/log"
	"github.com/orbitalworks/starhold/pkg/metrics"
	"github.com/orbitalworks/starhold/pkg/registry"
	"github.com/orbitalworks/starhold/pkg/resources"
	"github.com/orbitalworks/starhold/pkg/tech"
	"github.com/orbitalworks/starhold/pkg/types"
)

const defaultBaseDuration = time.Minute

// Applier applies a completed upgrade level's effects to a module.
// A nil applier logs the effects without mutating stats.
type Applier interface {
	ApplyPermanent(moduleID string, effects []*types.Effect)
}

// Config holds upgrade engine tuning
type Config struct {
	// BaseDuration is multiplied by the target level to compute an
	// upgrade's duration. Defaults to one minute.
	BaseDuration time.Duration
}

// Status is the derived view of a module's upgrade standing
type Status struct {
	CurrentLevel int
	MaxLevel     int
	NextLevel    *types.UpgradeLevel
	InFlight     bool
	Progress     float64
	Remaining    time.Duration
}

// Engine owns upgrade-path definitions per module type and runs timed
// upgrade operations against the registry.
type Engine struct {
	mu     sync.RWMutex
	paths  map[types.ModuleType]*types.UpgradePath
	active map[string]*types.ActiveUpgrade
	timers map[string]*time.Timer

	bus     *events.Bus
	reg     *registry.Registry
	res     resources.Service
	tech    tech.Service
	applier Applier
	cfg     Config
	logger  zerolog.Logger
}

// NewEngine creates an upgrade engine. The tech service and applier may
// be nil: a nil tech service fails tech requirements closed, and a nil
// applier skips stat mutation on completion.
func NewEngine(bus *events.Bus, reg *registry.Registry, res resources.Service, techSvc tech.Service, applier Applier, cfg Config) *Engine {
	if cfg.BaseDuration <= 0 {
		cfg.BaseDuration = defaultBaseDuration
	}
	return &Engine{
		paths:   make(map[types.ModuleType]*types.UpgradePath),
		active:  make(map[string]*types.ActiveUpgrade),
		timers:  make(map[string]*time.Timer),
		bus:     bus,
		reg:     reg,
		res:     res,
		tech:    techSvc,
		applier: applier,
		cfg:     cfg,
		logger:  log.WithComponent("upgrade"),
	}
}

// Close cancels all pending completion timers without touching levels
func (e *Engine) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, timer := range e.timers {
		timer.Stop()
		delete(e.timers, id)
		delete(e.active, id)
	}
}

// RegisterPath registers the upgrade path for a module type
func (e *Engine) RegisterPath(path *types.UpgradePath) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.paths[path.ModuleType] = path
}

// Path returns the upgrade path for a module type
func (e *Engine) Path(mt types.ModuleType) (*types.UpgradePath, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.paths[mt]
	return p, ok
}

// nextLevel finds the definition for a module's next level. Levels are
// consulted in ascending order; a module only ever targets level+1.
func (e *Engine) nextLevel(module *types.Module) *types.UpgradeLevel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	path, ok := e.paths[module.Type]
	if !ok {
		return nil
	}
	for _, lvl := range path.Levels {
		if lvl.Level == module.Level+1 {
			return lvl
		}
	}
	return nil
}

// CanUpgrade reports whether a timed upgrade may start for a module
func (e *Engine) CanUpgrade(moduleID string) bool {
	module, ok := e.reg.Module(moduleID)
	if !ok {
		return false
	}
	e.mu.RLock()
	_, inFlight := e.active[moduleID]
	e.mu.RUnlock()
	if inFlight || !module.IsActive {
		return false
	}
	next := e.nextLevel(module)
	if next == nil {
		return false
	}
	met, _ := e.checkRequirements(module, next)
	return met
}

// CheckRequirements reports whether the module's next level requirements
// are met, with a reason list for those that are not. An unavailable
// tech service fails closed and reports the requirement as unverified.
func (e *Engine) CheckRequirements(moduleID string) (bool, []string) {
	module, ok := e.reg.Module(moduleID)
	if !ok {
		return false, []string{"module not found"}
	}
	next := e.nextLevel(module)
	if next == nil {
		return false, []string{"no next level defined"}
	}
	return e.checkRequirements(module, next)
}

func (e *Engine) checkRequirements(module *types.Module, next *types.UpgradeLevel) (bool, []string) {
	var missing []string
	req := next.Requirements

	if module.Level < req.MinLevel {
		missing = append(missing, fmt.Sprintf("requires level %d", req.MinLevel))
	}
	for _, cost := range req.ResourceCosts {
		if e.res.Amount(cost.Type) < cost.Amount {
			missing = append(missing, fmt.Sprintf("requires %.0f %s", cost.Amount, cost.Type))
		}
	}
	for _, techID := range req.TechIDs {
		if e.tech == nil {
			missing = append(missing, fmt.Sprintf("tech %s: unverified (service unavailable)", techID))
			continue
		}
		if !e.tech.IsUnlocked(techID) {
			name := techID
			if node, ok := e.tech.Node(techID); ok {
				name = node.Name
			}
			missing = append(missing, fmt.Sprintf("requires tech %s", name))
		}
	}
	for _, mr := range req.ModuleRequires {
		if !e.hasModuleAtLevel(mr.Type, mr.Level) {
			missing = append(missing, fmt.Sprintf("requires %s module at level %d", mr.Type, mr.Level))
		}
	}
	if req.BuildingLevel > 0 {
		building, ok := e.reg.Building(module.BuildingID)
		if !ok || building.Level < req.BuildingLevel {
			missing = append(missing, fmt.Sprintf("requires building level %d", req.BuildingLevel))
		}
	}
	return len(missing) == 0, missing
}

func (e *Engine) hasModuleAtLevel(mt types.ModuleType, level int) bool {
	for _, m := range e.reg.ModulesByType(mt) {
		if m.Level >= level {
			return true
		}
	}
	return false
}

// StartUpgrade begins a timed upgrade. Resources are debited up front
// and are not refunded on cancellation. Duration scales with the target
// level.
func (e *Engine) StartUpgrade(moduleID string) bool {
	if !e.CanUpgrade(moduleID) {
		return false
	}
	module, _ := e.reg.Module(moduleID)
	next := e.nextLevel(module)
	if next == nil {
		return false
	}
	if err := resources.DebitFor(e.res, moduleID, next.Requirements.ResourceCosts); err != nil {
		e.logger.Error().Err(err).Str("module_id", moduleID).Msg("upgrade debit failed")
		return false
	}

	duration := e.cfg.BaseDuration * time.Duration(next.Level)
	up := &types.ActiveUpgrade{
		ModuleID:    moduleID,
		TargetLevel: next.Level,
		StartedAt:   time.Now(),
		Duration:    duration,
	}

	e.mu.Lock()
	e.active[moduleID] = up
	e.timers[moduleID] = time.AfterFunc(duration, func() {
		e.completeUpgrade(moduleID)
	})
	e.mu.Unlock()

	e.logger.Info().
		Str("module_id", moduleID).
		Int("target_level", next.Level).
		Dur("duration", duration).
		Msg("upgrade started")
	metrics.UpgradesStarted.Inc()

	e.bus.Publish(&events.Event{
		Type:       events.EventUpgradeStarted,
		ModuleID:   moduleID,
		ModuleType: module.Type,
		Data:       map[string]any{"target_level": next.Level, "duration_ms": duration.Milliseconds()},
	})
	return true
}

// CancelUpgrade aborts an in-flight upgrade. The completion timer is
// cleared and no level change occurs; already-debited resources are not
// refunded.
func (e *Engine) CancelUpgrade(moduleID string) bool {
	e.mu.Lock()
	up, ok := e.active[moduleID]
	if !ok {
		e.mu.Unlock()
		return false
	}
	if timer, ok := e.timers[moduleID]; ok {
		timer.Stop()
		delete(e.timers, moduleID)
	}
	delete(e.active, moduleID)
	e.mu.Unlock()

	e.logger.Info().
		Str("module_id", moduleID).
		Int("target_level", up.TargetLevel).
		Msg("upgrade cancelled")
	metrics.UpgradesCancelled.Inc()

	e.bus.Publish(&events.Event{
		Type:     events.EventUpgradeCancelled,
		ModuleID: moduleID,
		Data:     map[string]any{"target_level": up.TargetLevel},
	})
	return true
}

// completeUpgrade is the timer-fired completion path
func (e *Engine) completeUpgrade(moduleID string) {
	e.mu.Lock()
	up, ok := e.active[moduleID]
	if !ok {
		e.mu.Unlock()
		return
	}
	delete(e.active, moduleID)
	delete(e.timers, moduleID)
	e.mu.Unlock()

	if !e.reg.SetLevel(moduleID, up.TargetLevel) {
		e.logger.Error().
			Str("module_id", moduleID).
			Int("target_level", up.TargetLevel).
			Msg("failed to apply upgrade level")
		return
	}

	module, _ := e.reg.Module(moduleID)
	if next := e.levelDefinition(module.Type, up.TargetLevel); next != nil && len(next.Effects) > 0 {
		if e.applier != nil {
			e.applier.ApplyPermanent(moduleID, next.Effects)
		} else {
			e.logger.Debug().
				Str("module_id", moduleID).
				Int("effects", len(next.Effects)).
				Msg("no applier wired; level effects skipped")
		}
	}

	e.logger.Info().
		Str("module_id", moduleID).
		Int("level", up.TargetLevel).
		Msg("upgrade completed")
	metrics.UpgradesCompleted.Inc()

	e.bus.Publish(&events.Event{
		Type:       events.EventUpgradeCompleted,
		ModuleID:   moduleID,
		ModuleType: module.Type,
		Data:       map[string]any{"level": up.TargetLevel},
	})
}

func (e *Engine) levelDefinition(mt types.ModuleType, level int) *types.UpgradeLevel {
	e.mu.RLock()
	defer e.mu.RUnlock()
	path, ok := e.paths[mt]
	if !ok {
		return nil
	}
	for _, lvl := range path.Levels {
		if lvl.Level == level {
			return lvl
		}
	}
	return nil
}

// UpgradeStatus returns the derived upgrade view for a module
func (e *Engine) UpgradeStatus(moduleID string) (*Status, bool) {
	module, ok := e.reg.Module(moduleID)
	if !ok {
		return nil, false
	}

	st := &Status{CurrentLevel: module.Level}
	e.mu.RLock()
	if path, ok := e.paths[module.Type]; ok && len(path.Levels) > 0 {
		st.MaxLevel = path.Levels[len(path.Levels)-1].Level
	}
	up, inFlight := e.active[moduleID]
	e.mu.RUnlock()

	st.NextLevel = e.nextLevel(module)
	if inFlight {
		st.InFlight = true
		elapsed := time.Since(up.StartedAt)
		if elapsed > up.Duration {
			elapsed = up.Duration
		}
		if up.Duration > 0 {
			st.Progress = float64(elapsed) / float64(up.Duration)
		}
		st.Remaining = up.Duration - elapsed
	}
	return st, true
}

// ActiveUpgrade returns the in-flight upgrade record for a module
func (e *Engine) ActiveUpgrade(moduleID string) (*types.ActiveUpgrade, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	up, ok := e.active[moduleID]
	return up, ok
}
