package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orbitalworks/starhold/pkg/events"
	"github.com/orbitalworks/starhold/pkg/log"
	"github.com/orbitalworks/starhold/pkg/resources"
	"github.com/orbitalworks/starhold/pkg/types"
)

// Registry owns the canonical set of module and building entities
type Registry struct {
	mu        sync.RWMutex
	modules   map[string]*types.Module
	buildings map[string]*types.Building
	configs   map[types.ModuleType]*types.ModuleConfig

	bus    *events.Bus
	res    resources.Service
	logger zerolog.Logger
}

// NewRegistry creates a registry publishing on bus and debiting res
func NewRegistry(bus *events.Bus, res resources.Service) *Registry {
	return &Registry{
		modules:   make(map[string]*types.Module),
		buildings: make(map[string]*types.Building),
		configs:   make(map[types.ModuleType]*types.ModuleConfig),
		bus:       bus,
		res:       res,
		logger:    log.WithComponent("registry"),
	}
}

// RegisterConfig registers the template for a module type. Re-registering
// a type replaces the previous config.
func (r *Registry) RegisterConfig(cfg *types.ModuleConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Type] = cfg
}

// Config returns the registered config for a module type
func (r *Registry) Config(mt types.ModuleType) (*types.ModuleConfig, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.configs[mt]
	return cfg, ok
}

// CreateModule creates a module of a registered type. An unregistered
// type is a configuration error and returns a non-nil error; all other
// registry mutators report failure by boolean.
func (r *Registry) CreateModule(mt types.ModuleType, pos *types.Position) (*types.Module, error) {
	r.mu.Lock()
	cfg, ok := r.configs[mt]
	if !ok {
		r.mu.Unlock()
		return nil, fmt.Errorf("no config registered for module type %q", mt)
	}

	module := &types.Module{
		ID:        uuid.New().String(),
		Type:      mt,
		Name:      cfg.Name,
		Level:     1,
		Status:    types.StatusConstructing,
		IsActive:  false,
		Position:  pos,
		CreatedAt: time.Now(),
	}
	r.modules[module.ID] = module
	r.mu.Unlock()

	r.logger.Info().
		Str("module_id", module.ID).
		Str("type", string(mt)).
		Msg("module created")

	r.bus.Publish(&events.Event{
		Type:       events.EventModuleCreated,
		ModuleID:   module.ID,
		ModuleType: mt,
	})
	return module, nil
}

// AttachModule binds a module into a building at an attachment point.
// Returns false if the module or building is missing, the point is
// missing or occupied, or the module's type is not allowed at the point.
func (r *Registry) AttachModule(moduleID, buildingID, attachmentID string) bool {
	r.mu.Lock()
	module, ok := r.modules[moduleID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	building, ok := r.buildings[buildingID]
	if !ok {
		r.mu.Unlock()
		return false
	}

	var point *types.AttachmentPoint
	for _, p := range building.AttachmentPoints {
		if p.ID == attachmentID {
			point = p
			break
		}
	}
	if point == nil || point.CurrentModuleID != "" {
		r.mu.Unlock()
		return false
	}
	if !typeAllowed(point.AllowedTypes, module.Type) {
		r.mu.Unlock()
		return false
	}

	point.CurrentModuleID = module.ID
	building.ModuleIDs = append(building.ModuleIDs, module.ID)
	module.BuildingID = building.ID
	module.AttachmentID = point.ID
	mt := module.Type
	r.mu.Unlock()

	r.logger.Info().
		Str("module_id", moduleID).
		Str("building_id", buildingID).
		Str("attachment_id", attachmentID).
		Msg("module attached")

	r.bus.Publish(&events.Event{
		Type:       events.EventModuleAttached,
		ModuleID:   moduleID,
		ModuleType: mt,
		Data:       map[string]any{"building_id": buildingID, "attachment_id": attachmentID},
	})
	return true
}

// DetachModule unbinds a module from its building. The module retains
// its identity; only the linkage is cleared.
func (r *Registry) DetachModule(moduleID string) bool {
	r.mu.Lock()
	module, ok := r.modules[moduleID]
	if !ok || module.BuildingID == "" {
		r.mu.Unlock()
		return false
	}

	building := r.buildings[module.BuildingID]
	if building != nil {
		for _, p := range building.AttachmentPoints {
			if p.CurrentModuleID == moduleID {
				p.CurrentModuleID = ""
			}
		}
		for i, id := range building.ModuleIDs {
			if id == moduleID {
				building.ModuleIDs = append(building.ModuleIDs[:i], building.ModuleIDs[i+1:]...)
				break
			}
		}
	}

	buildingID := module.BuildingID
	module.BuildingID = ""
	module.AttachmentID = ""
	mt := module.Type
	r.mu.Unlock()

	r.bus.Publish(&events.Event{
		Type:       events.EventModuleDetached,
		ModuleID:   moduleID,
		ModuleType: mt,
		Data:       map[string]any{"building_id": buildingID},
	})
	return true
}

// UpgradeModule performs a fully validated single-level upgrade: the
// module and its config must exist, the module must meet the config's
// minimum level, its attached building's type must be allowed, and every
// resource cost must be affordable. Any failing check aborts with false
// and no side effect.
func (r *Registry) UpgradeModule(moduleID string) bool {
	r.mu.Lock()
	module, ok := r.modules[moduleID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	cfg, ok := r.configs[module.Type]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if module.Level < cfg.Requirements.MinLevel {
		r.mu.Unlock()
		return false
	}
	if len(cfg.Requirements.BuildingTypes) > 0 {
		building := r.buildings[module.BuildingID]
		if building == nil || !buildingTypeAllowed(cfg.Requirements.BuildingTypes, building.Type) {
			r.mu.Unlock()
			return false
		}
	}
	costs := cfg.Requirements.ResourceCosts
	r.mu.Unlock()

	if !resources.CanAfford(r.res, costs) {
		r.logger.Debug().Str("module_id", moduleID).Msg("upgrade rejected: insufficient resources")
		return false
	}
	if err := resources.DebitFor(r.res, moduleID, costs); err != nil {
		r.logger.Error().Err(err).Str("module_id", moduleID).Msg("upgrade debit failed")
		return false
	}

	r.mu.Lock()
	oldLevel := module.Level
	module.Level++
	newLevel := module.Level
	mt := module.Type
	r.mu.Unlock()

	r.logger.Info().
		Str("module_id", moduleID).
		Int("old_level", oldLevel).
		Int("new_level", newLevel).
		Msg("module upgraded")

	r.bus.Publish(&events.Event{
		Type:       events.EventModuleUpgraded,
		ModuleID:   moduleID,
		ModuleType: mt,
		Data: map[string]any{
			"old_level": oldLevel,
			"new_level": newLevel,
			"costs":     costs,
		},
	})
	return true
}

// SetModuleActive toggles a module's activity. Unchanged state is a
// no-op that still returns true; the activation event is emitted only on
// an actual transition.
func (r *Registry) SetModuleActive(moduleID string, active bool) bool {
	r.mu.Lock()
	module, ok := r.modules[moduleID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if module.IsActive == active {
		r.mu.Unlock()
		return true
	}
	module.IsActive = active
	if active {
		module.Status = types.StatusActive
	} else {
		module.Status = types.StatusInactive
	}
	mt := module.Type
	r.mu.Unlock()

	eventType := events.EventModuleActivated
	if !active {
		eventType = events.EventModuleDeactivated
	}
	r.bus.Publish(&events.Event{
		Type:       eventType,
		ModuleID:   moduleID,
		ModuleType: mt,
	})
	return true
}

// MirrorStatus writes a core status onto the module entity without
// emitting activation events. The status tracker uses this to feed
// extended-state transitions back into core module state.
func (r *Registry) MirrorStatus(moduleID string, status types.ModuleStatus) bool {
	if !status.IsCore() {
		return false
	}
	r.mu.Lock()
	module, ok := r.modules[moduleID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	changed := module.Status != status
	module.Status = status
	module.IsActive = status == types.StatusActive
	mt := module.Type
	r.mu.Unlock()

	if changed {
		r.bus.Publish(&events.Event{
			Type:       events.EventModuleUpdated,
			ModuleID:   moduleID,
			ModuleType: mt,
			Data:       map[string]any{"status": string(status)},
		})
	}
	return true
}

// SetProgress updates a module's in-flight construction/upgrade fraction
func (r *Registry) SetProgress(moduleID string, progress float64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	module, ok := r.modules[moduleID]
	if !ok {
		return false
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 1 {
		progress = 1
	}
	module.Progress = progress
	return true
}

// SetLevel writes a module's level directly. Used by the upgrade engine
// on timed completion; levels never decrease.
func (r *Registry) SetLevel(moduleID string, level int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	module, ok := r.modules[moduleID]
	if !ok || level < module.Level {
		return false
	}
	module.Level = level
	return true
}

// Module returns a module by ID
func (r *Registry) Module(moduleID string) (*types.Module, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[moduleID]
	return m, ok
}

// Modules returns all modules
func (r *Registry) Modules() []*types.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Module, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, m)
	}
	return out
}

// ModulesByType returns all modules of one type
func (r *Registry) ModulesByType(mt types.ModuleType) []*types.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*types.Module
	for _, m := range r.modules {
		if m.Type == mt {
			out = append(out, m)
		}
	}
	return out
}

// ActiveModules returns all currently active modules
func (r *Registry) ActiveModules() []*types.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*types.Module
	for _, m := range r.modules {
		if m.IsActive {
			out = append(out, m)
		}
	}
	return out
}

// RemoveModule deletes a module from the registry after detaching it.
// Not a common path; modules are long-lived per session.
func (r *Registry) RemoveModule(moduleID string) bool {
	r.mu.RLock()
	_, ok := r.modules[moduleID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	r.DetachModule(moduleID)
	r.mu.Lock()
	delete(r.modules, moduleID)
	r.mu.Unlock()
	return true
}

// ModuleActive reports whether a module exists and is currently active
func (r *Registry) ModuleActive(moduleID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	m, ok := r.modules[moduleID]
	return ok && m.IsActive
}

// LinkSubModule appends a sub-module reference to a module. The
// sub-module registry owns the referenced entity; this only maintains
// the parent's reference list under the registry's lock.
func (r *Registry) LinkSubModule(moduleID, subID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	module, ok := r.modules[moduleID]
	if !ok {
		return false
	}
	module.SubModuleIDs = append(module.SubModuleIDs, subID)
	return true
}

// UnlinkSubModule removes a sub-module reference from a module
func (r *Registry) UnlinkSubModule(moduleID, subID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	module, ok := r.modules[moduleID]
	if !ok {
		return false
	}
	for i, id := range module.SubModuleIDs {
		if id == subID {
			module.SubModuleIDs = append(module.SubModuleIDs[:i], module.SubModuleIDs[i+1:]...)
			return true
		}
	}
	return false
}

// SubModuleRefs returns a copy of a module's sub-module reference list,
// in attachment order
func (r *Registry) SubModuleRefs(moduleID string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	module, ok := r.modules[moduleID]
	if !ok || len(module.SubModuleIDs) == 0 {
		return nil
	}
	out := make([]string, len(module.SubModuleIDs))
	copy(out, module.SubModuleIDs)
	return out
}

// RegisterBuilding adds a building to the registry
func (r *Registry) RegisterBuilding(b *types.Building) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b.ID == "" {
		b.ID = uuid.New().String()
	}
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now()
	}
	r.buildings[b.ID] = b
}

// Building returns a building by ID
func (r *Registry) Building(buildingID string) (*types.Building, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.buildings[buildingID]
	return b, ok
}

// Buildings returns all buildings
func (r *Registry) Buildings() []*types.Building {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.Building, 0, len(r.buildings))
	for _, b := range r.buildings {
		out = append(out, b)
	}
	return out
}

// BuildingModules returns the modules attached to a building, in
// attachment order. Unknown buildings yield an empty slice.
func (r *Registry) BuildingModules(buildingID string) []*types.Module {
	r.mu.RLock()
	defer r.mu.RUnlock()
	building, ok := r.buildings[buildingID]
	if !ok {
		return nil
	}
	var out []*types.Module
	for _, id := range building.ModuleIDs {
		if m, ok := r.modules[id]; ok {
			out = append(out, m)
		}
	}
	return out
}

// Restore replaces the registry's entities from a snapshot
func (r *Registry) Restore(modules []*types.Module, buildings []*types.Building) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.modules = make(map[string]*types.Module, len(modules))
	for _, m := range modules {
		r.modules[m.ID] = m
	}
	r.buildings = make(map[string]*types.Building, len(buildings))
	for _, b := range buildings {
		r.buildings[b.ID] = b
	}
}

func typeAllowed(allowed []types.ModuleType, mt types.ModuleType) bool {
	for _, t := range allowed {
		if t == mt {
			return true
		}
	}
	return false
}

func buildingTypeAllowed(allowed []types.BuildingType, bt types.BuildingType) bool {
	for _, t := range allowed {
		if t == bt {
			return true
		}
	}
	return false
}
