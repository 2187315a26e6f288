package submodule

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orbitalworks/starhold/pkg/events"
	"github.com/orbitalworks/starhold/pkg/log"
	"github.com/orbitalworks/starhold/pkg/registry"
	"github.com/orbitalworks/starhold/pkg/resources"
	"github.com/orbitalworks/starhold/pkg/types"
)

// OpResult is the structured outcome of attach/detach operations
type OpResult struct {
	Success bool
	Error   string
}

type appliedEffect struct {
	effect *types.Effect
	target string
	delta  float64
}

// Registry owns sub-module entities and their effect lifecycle
type Registry struct {
	mu       sync.RWMutex
	configs  map[types.SubModuleType]*types.SubModuleConfig
	subs     map[string]*types.SubModule
	handlers map[types.EffectType]EffectHandler
	applied  map[string][]appliedEffect // sub-module ID -> live effect deltas

	sheet   *StatSheet
	bus     *events.Bus
	modules *registry.Registry
	res     resources.Service
	unsubs  []events.UnsubscribeFunc
	logger  zerolog.Logger
}

// NewRegistry creates a sub-module registry and subscribes to parent
// module lifecycle events for cascade behavior. Call Close to release
// the subscriptions.
func NewRegistry(bus *events.Bus, modules *registry.Registry, res resources.Service) *Registry {
	r := &Registry{
		configs:  make(map[types.SubModuleType]*types.SubModuleConfig),
		subs:     make(map[string]*types.SubModule),
		handlers: make(map[types.EffectType]EffectHandler),
		applied:  make(map[string][]appliedEffect),
		bus:      bus,
		modules:  modules,
		res:      res,
		logger:   log.WithComponent("submodule"),
	}
	r.sheet = NewStatSheet(func(moduleID string) map[string]float64 {
		module, ok := modules.Module(moduleID)
		if !ok {
			return nil
		}
		cfg, ok := modules.Config(module.Type)
		if !ok {
			return nil
		}
		return cfg.BaseStats
	})

	// Default handlers: all built-in effect types mutate the stat sheet
	for _, et := range []types.EffectType{
		types.EffectStatBoost,
		types.EffectResourceRate,
		types.EffectEfficiency,
		types.EffectCapacity,
	} {
		r.handlers[et] = statHandler(r.sheet)
	}

	r.unsubs = append(r.unsubs,
		bus.Subscribe(events.EventModuleUpgraded, r.onParentUpgraded),
		bus.Subscribe(events.EventModuleActivated, r.onParentActivated),
		bus.Subscribe(events.EventModuleDeactivated, r.onParentDeactivated),
	)
	return r
}

// Close releases the registry's event subscriptions
func (r *Registry) Close() {
	for _, unsub := range r.unsubs {
		unsub()
	}
	r.unsubs = nil
}

// RegisterConfig registers the template for a sub-module type
func (r *Registry) RegisterConfig(cfg *types.SubModuleConfig) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.configs[cfg.Type] = cfg
}

// RegisterEffectHandler installs or replaces the handler for an effect
// type
func (r *Registry) RegisterEffectHandler(et types.EffectType, handler EffectHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[et] = handler
}

// CreateSubModule creates a sub-module of a registered type against a
// parent module, enforcing capacity, type compatibility, and the
// config's requirements. Failures return nil with the reason.
func (r *Registry) CreateSubModule(st types.SubModuleType, parentID string) (*types.SubModule, error) {
	r.mu.RLock()
	cfg, ok := r.configs[st]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no config registered for sub-module type %q", st)
	}

	parent, ok := r.modules.Module(parentID)
	if !ok {
		return nil, fmt.Errorf("parent module %s not found", parentID)
	}
	parentCfg, ok := r.modules.Config(parent.Type)
	if !ok {
		return nil, fmt.Errorf("no config registered for parent type %q", parent.Type)
	}
	if err := r.checkCompatibility(parent, parentCfg, st); err != nil {
		r.logger.Debug().Err(err).Str("parent_id", parentID).Msg("sub-module creation rejected")
		return nil, err
	}
	if err := r.checkRequirements(parent, cfg); err != nil {
		r.logger.Debug().Err(err).Str("parent_id", parentID).Msg("sub-module requirements not met")
		return nil, err
	}

	if err := resources.DebitFor(r.res, parentID, cfg.Requirements.ResourceCosts); err != nil {
		return nil, err
	}

	sub := &types.SubModule{
		ID:             uuid.New().String(),
		Type:           st,
		Name:           cfg.Name,
		ParentModuleID: parentID,
		Level:          1,
		Status:         types.StatusConstructing,
		Effects:        cloneEffects(cfg.Effects),
		CreatedAt:      time.Now(),
	}

	r.mu.Lock()
	r.subs[sub.ID] = sub
	r.mu.Unlock()
	r.modules.LinkSubModule(parentID, sub.ID)

	r.logger.Info().
		Str("sub_module_id", sub.ID).
		Str("type", string(st)).
		Str("parent_id", parentID).
		Msg("sub-module created")

	r.bus.Publish(&events.Event{
		Type:       events.EventSubModuleCreated,
		ModuleID:   parentID,
		ModuleType: parent.Type,
		Data:       map[string]any{"sub_module_id": sub.ID, "sub_module_type": string(st)},
	})
	return sub, nil
}

// checkCompatibility enforces the parent's support flag, allow-list and
// capacity
func (r *Registry) checkCompatibility(parent *types.Module, parentCfg *types.ModuleConfig, st types.SubModuleType) error {
	if !parentCfg.SubModuleSupport {
		return fmt.Errorf("module type %q does not support sub-modules", parent.Type)
	}
	allowed := false
	for _, t := range parentCfg.AllowedSubTypes {
		if t == st {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("sub-module type %q not allowed on module type %q", st, parent.Type)
	}
	if parentCfg.MaxSubModules > 0 && len(r.modules.SubModuleRefs(parent.ID)) >= parentCfg.MaxSubModules {
		return fmt.Errorf("module %s at sub-module capacity (%d)", parent.ID, parentCfg.MaxSubModules)
	}
	return nil
}

// checkRequirements enforces the sub-module config's own gates
func (r *Registry) checkRequirements(parent *types.Module, cfg *types.SubModuleConfig) error {
	req := cfg.Requirements
	if parent.Level < req.MinParentLevel {
		return fmt.Errorf("parent level %d below required %d", parent.Level, req.MinParentLevel)
	}
	if len(req.ParentTypes) > 0 {
		ok := false
		for _, t := range req.ParentTypes {
			if t == parent.Type {
				ok = true
				break
			}
		}
		if !ok {
			return fmt.Errorf("parent type %q not eligible for sub-module %q", parent.Type, cfg.Type)
		}
	}
	if !resources.CanAfford(r.res, req.ResourceCosts) {
		return fmt.Errorf("insufficient resources for sub-module %q", cfg.Type)
	}
	if len(req.IncompatibleWith) > 0 {
		refs := r.modules.SubModuleRefs(parent.ID)
		r.mu.RLock()
		defer r.mu.RUnlock()
		for _, subID := range refs {
			existing, ok := r.subs[subID]
			if !ok {
				continue
			}
			for _, incompatible := range req.IncompatibleWith {
				if existing.Type == incompatible {
					return fmt.Errorf("incompatible sub-module %q already attached", incompatible)
				}
			}
		}
	}
	return nil
}

// AttachSubModule attaches a detached sub-module to a parent, re-running
// the same compatibility checks as creation
func (r *Registry) AttachSubModule(subID, parentID string) OpResult {
	r.mu.RLock()
	sub, ok := r.subs[subID]
	var currentParent string
	if ok {
		currentParent = sub.ParentModuleID
	}
	r.mu.RUnlock()
	if !ok {
		return OpResult{Error: fmt.Sprintf("sub-module %s not found", subID)}
	}
	if currentParent != "" {
		return OpResult{Error: fmt.Sprintf("sub-module %s already attached to %s", subID, currentParent)}
	}
	parent, ok := r.modules.Module(parentID)
	if !ok {
		return OpResult{Error: fmt.Sprintf("parent module %s not found", parentID)}
	}
	parentCfg, ok := r.modules.Config(parent.Type)
	if !ok {
		return OpResult{Error: fmt.Sprintf("no config for parent type %q", parent.Type)}
	}
	if err := r.checkCompatibility(parent, parentCfg, sub.Type); err != nil {
		return OpResult{Error: err.Error()}
	}

	r.mu.Lock()
	sub.ParentModuleID = parentID
	r.mu.Unlock()
	r.modules.LinkSubModule(parentID, subID)

	r.bus.Publish(&events.Event{
		Type:       events.EventSubModuleAttached,
		ModuleID:   parentID,
		ModuleType: parent.Type,
		Data:       map[string]any{"sub_module_id": subID},
	})
	return OpResult{Success: true}
}

// DetachSubModule detaches a sub-module from its parent. The sub-module
// retains identity but loses parent linkage; live effects are removed
// first.
func (r *Registry) DetachSubModule(subID string) OpResult {
	r.mu.RLock()
	sub, ok := r.subs[subID]
	var parentID string
	var active bool
	if ok {
		parentID = sub.ParentModuleID
		active = sub.IsActive
	}
	r.mu.RUnlock()
	if !ok {
		return OpResult{Error: fmt.Sprintf("sub-module %s not found", subID)}
	}
	if parentID == "" {
		return OpResult{Error: fmt.Sprintf("sub-module %s not attached", subID)}
	}
	if active {
		r.DeactivateSubModule(subID)
	}

	r.mu.Lock()
	sub.ParentModuleID = ""
	r.mu.Unlock()
	r.modules.UnlinkSubModule(parentID, subID)

	r.bus.Publish(&events.Event{
		Type:     events.EventSubModuleDetached,
		ModuleID: parentID,
		Data:     map[string]any{"sub_module_id": subID},
	})
	return OpResult{Success: true}
}

// ActivateSubModule makes a sub-module's effects live. Activation is
// gated on the parent module being active and is idempotent. The
// entity mutation happens under the registry lock; cascade handlers may
// call this from whatever goroutine published the parent event.
func (r *Registry) ActivateSubModule(subID string) bool {
	r.mu.Lock()
	sub, ok := r.subs[subID]
	if !ok || sub.ParentModuleID == "" {
		r.mu.Unlock()
		return false
	}
	if sub.IsActive {
		r.mu.Unlock()
		return true
	}
	parentID := sub.ParentModuleID
	if !r.modules.ModuleActive(parentID) {
		r.mu.Unlock()
		return false
	}

	r.applyEffectsLocked(sub)
	sub.IsActive = true
	sub.Status = types.StatusActive
	r.mu.Unlock()

	var parentType types.ModuleType
	if parent, ok := r.modules.Module(parentID); ok {
		parentType = parent.Type
	}
	r.bus.Publish(&events.Event{
		Type:       events.EventSubModuleActivated,
		ModuleID:   parentID,
		ModuleType: parentType,
		Data:       map[string]any{"sub_module_id": subID},
	})
	return true
}

// DeactivateSubModule removes a sub-module's live effects. Idempotent.
func (r *Registry) DeactivateSubModule(subID string) bool {
	r.mu.Lock()
	sub, ok := r.subs[subID]
	if !ok {
		r.mu.Unlock()
		return false
	}
	if !sub.IsActive {
		r.mu.Unlock()
		return true
	}

	r.removeEffectsLocked(sub)
	sub.IsActive = false
	sub.Status = types.StatusInactive
	parentID := sub.ParentModuleID
	r.mu.Unlock()

	r.bus.Publish(&events.Event{
		Type:     events.EventSubModuleDeactivated,
		ModuleID: parentID,
		Data:     map[string]any{"sub_module_id": subID},
	})
	return true
}

// UpgradeSubModule upgrades an active sub-module one level. Resource
// cost scales geometrically with current level; effect values scale
// linearly and are removed then reapplied at the new scale.
func (r *Registry) UpgradeSubModule(subID string) bool {
	r.mu.RLock()
	sub, ok := r.subs[subID]
	var cfg *types.SubModuleConfig
	var active bool
	var curLevel int
	var parentID string
	if ok {
		cfg = r.configs[sub.Type]
		active = sub.IsActive
		curLevel = sub.Level
		parentID = sub.ParentModuleID
	}
	r.mu.RUnlock()
	if !ok || !active || cfg == nil {
		return false
	}

	scale := math.Pow(1.5, float64(curLevel))
	costs := make([]types.ResourceCost, len(cfg.Requirements.ResourceCosts))
	for i, c := range cfg.Requirements.ResourceCosts {
		costs[i] = types.ResourceCost{Type: c.Type, Amount: c.Amount * scale}
	}
	if !resources.CanAfford(r.res, costs) {
		return false
	}
	// Debit outside the lock: a shortage publishes synchronously and
	// listeners may call back into this registry.
	if err := resources.DebitFor(r.res, parentID, costs); err != nil {
		return false
	}

	r.mu.Lock()
	sub, ok = r.subs[subID]
	if !ok || !sub.IsActive {
		r.mu.Unlock()
		return false
	}
	r.removeEffectsLocked(sub)
	sub.Level++
	sub.Effects = scaledEffects(cfg.Effects, sub.Level)
	r.applyEffectsLocked(sub)
	level := sub.Level
	parentID = sub.ParentModuleID
	r.mu.Unlock()

	r.logger.Info().
		Str("sub_module_id", subID).
		Int("level", level).
		Msg("sub-module upgraded")

	r.bus.Publish(&events.Event{
		Type:     events.EventSubModuleUpgraded,
		ModuleID: parentID,
		Data:     map[string]any{"sub_module_id": subID, "level": level},
	})
	return true
}

// applyEffectsLocked dispatches every effect through its handler and
// records the applied deltas for later reversal. A missing handler
// records a failure result but does not abort the remaining effects.
// Caller holds r.mu.
func (r *Registry) applyEffectsLocked(sub *types.SubModule) {
	var live []appliedEffect
	for _, effect := range sub.Effects {
		handler, ok := r.handlers[effect.Type]
		if !ok {
			r.logger.Warn().
				Str("sub_module_id", sub.ID).
				Str("effect_type", string(effect.Type)).
				Msg("no handler registered for effect type")
			continue
		}
		result := handler(effect, sub.ParentModuleID)
		if !result.Success {
			r.logger.Warn().
				Str("sub_module_id", sub.ID).
				Str("effect_type", string(effect.Type)).
				Str("error", result.Error).
				Msg("effect application failed")
			continue
		}
		live = append(live, appliedEffect{effect: effect, target: effect.Target, delta: result.Delta})
	}
	r.applied[sub.ID] = live
}

// removeEffectsLocked reverses the recorded deltas of a sub-module's
// live effects. Caller holds r.mu.
func (r *Registry) removeEffectsLocked(sub *types.SubModule) {
	live := r.applied[sub.ID]
	delete(r.applied, sub.ID)
	for _, ae := range live {
		r.sheet.Apply(sub.ParentModuleID, ae.target, -ae.delta)
	}
}

// ApplyPermanent dispatches effects through the handler table without
// recording deltas for reversal. Used by the upgrade engine for level
// effects, which are never undone.
func (r *Registry) ApplyPermanent(moduleID string, effects []*types.Effect) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, effect := range effects {
		handler, ok := r.handlers[effect.Type]
		if !ok {
			r.logger.Warn().
				Str("module_id", moduleID).
				Str("effect_type", string(effect.Type)).
				Msg("no handler registered for effect type")
			continue
		}
		if result := handler(effect, moduleID); !result.Success {
			r.logger.Warn().
				Str("module_id", moduleID).
				Str("effect_type", string(effect.Type)).
				Str("error", result.Error).
				Msg("level effect application failed")
		}
	}
}

// SubModule returns a sub-module by ID
func (r *Registry) SubModule(subID string) (*types.SubModule, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sub, ok := r.subs[subID]
	return sub, ok
}

// SubModules returns all sub-modules
func (r *Registry) SubModules() []*types.SubModule {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*types.SubModule, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	return out
}

// SubModulesForParent returns a parent's sub-modules in attachment order
func (r *Registry) SubModulesForParent(parentID string) []*types.SubModule {
	refs := r.modules.SubModuleRefs(parentID)
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*types.SubModule
	for _, id := range refs {
		if sub, ok := r.subs[id]; ok {
			out = append(out, sub)
		}
	}
	return out
}

// ModuleStats returns the live stat sheet for a module
func (r *Registry) ModuleStats(moduleID string) map[string]float64 {
	return r.sheet.Stats(moduleID)
}

// Restore replaces the sub-module store from a snapshot. Effects are not
// live after restore; activation reapplies them.
func (r *Registry) Restore(subs []*types.SubModule) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs = make(map[string]*types.SubModule, len(subs))
	r.applied = make(map[string][]appliedEffect)
	for _, sub := range subs {
		sub.IsActive = false
		if sub.Status == types.StatusActive {
			sub.Status = types.StatusInactive
		}
		r.subs[sub.ID] = sub
	}
}

// onParentUpgraded reapplies effects of active sub-modules at the
// parent's new level
func (r *Registry) onParentUpgraded(event *events.Event) {
	for _, subID := range r.modules.SubModuleRefs(event.ModuleID) {
		r.reapplyEffects(subID)
	}
}

// reapplyEffects removes and reapplies a sub-module's effects if it is
// active, atomically with respect to other registry mutations
func (r *Registry) reapplyEffects(subID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.subs[subID]
	if !ok || !sub.IsActive {
		return
	}
	r.removeEffectsLocked(sub)
	r.applyEffectsLocked(sub)
}

// onParentActivated brings sub-modules up in lockstep with the parent
func (r *Registry) onParentActivated(event *events.Event) {
	for _, subID := range r.modules.SubModuleRefs(event.ModuleID) {
		r.ActivateSubModule(subID)
	}
}

// onParentDeactivated force-deactivates every sub-module of the parent,
// regardless of individually recorded state
func (r *Registry) onParentDeactivated(event *events.Event) {
	for _, subID := range r.modules.SubModuleRefs(event.ModuleID) {
		r.DeactivateSubModule(subID)
	}
}

func cloneEffects(effects []*types.Effect) []*types.Effect {
	out := make([]*types.Effect, len(effects))
	for i, e := range effects {
		cloned := *e
		out[i] = &cloned
	}
	return out
}

// scaledEffects copies the config's base effects scaled for level:
// percentage effects gain 10% of their base value per level, absolute
// effects 20%.
func scaledEffects(base []*types.Effect, level int) []*types.Effect {
	out := make([]*types.Effect, len(base))
	for i, e := range base {
		cloned := *e
		steps := float64(level - 1)
		if e.IsPercentage {
			cloned.Value = e.Value * (1 + 0.10*steps)
		} else {
			cloned.Value = e.Value * (1 + 0.20*steps)
		}
		out[i] = &cloned
	}
	return out
}
