package types

import (
	"time"
)

// ModuleType identifies the kind of functional unit a module provides
type ModuleType string

const (
	ModuleTypeRadar       ModuleType = "radar"
	ModuleTypeExtractor   ModuleType = "extractor"
	ModuleTypeHangar      ModuleType = "hangar"
	ModuleTypeAcademy     ModuleType = "academy"
	ModuleTypeExploration ModuleType = "exploration"
	ModuleTypeTrading     ModuleType = "trading"
	ModuleTypeResearch    ModuleType = "research"
	ModuleTypeDefense     ModuleType = "defense"
	ModuleTypeLifeSupport ModuleType = "life-support"
)

// ModuleStatus represents the operational state of a module.
// Active, constructing and inactive are the core states; the rest are
// extended states derived by the status tracker.
type ModuleStatus string

const (
	StatusActive       ModuleStatus = "active"
	StatusConstructing ModuleStatus = "constructing"
	StatusInactive     ModuleStatus = "inactive"

	StatusOptimized   ModuleStatus = "optimized"
	StatusDegraded    ModuleStatus = "degraded"
	StatusOverloaded  ModuleStatus = "overloaded"
	StatusMaintenance ModuleStatus = "maintenance"
	StatusUpgrading   ModuleStatus = "upgrading"
	StatusRepairing   ModuleStatus = "repairing"
	StatusError       ModuleStatus = "error"
	StatusCritical    ModuleStatus = "critical"
	StatusOffline     ModuleStatus = "offline"
	StatusStandby     ModuleStatus = "standby"
	StatusPowerSave   ModuleStatus = "powersave"
	StatusBoost       ModuleStatus = "boost"
)

// IsCore reports whether s is one of the three core statuses that are
// mirrored onto the module entity itself.
func (s ModuleStatus) IsCore() bool {
	return s == StatusActive || s == StatusConstructing || s == StatusInactive
}

// ResourceType identifies a colony resource
type ResourceType string

const (
	ResourceEnergy     ResourceType = "energy"
	ResourceMinerals   ResourceType = "minerals"
	ResourceFood       ResourceType = "food"
	ResourceResearch   ResourceType = "research"
	ResourcePopulation ResourceType = "population"
)

// Position is a 2-D coordinate on the colony grid
type Position struct {
	X float64
	Y float64
}

// Module represents a functional unit attached to a building
type Module struct {
	ID             string
	Type           ModuleType
	Name           string
	Level          int
	Status         ModuleStatus
	IsActive       bool
	Progress       float64 // 0..1 for in-flight construction/upgrade
	Position       *Position
	ParentModuleID string   // set for hierarchical modules
	SubModuleIDs   []string // owned sub-modules, in attachment order
	BuildingID     string   // building this module is attached to, if any
	AttachmentID   string   // attachment point within the building
	CreatedAt      time.Time
}

// ResourceCost is a single resource debit
type ResourceCost struct {
	Type   ResourceType
	Amount float64
}

// ModuleRequirements gates module creation and registry-level upgrades
type ModuleRequirements struct {
	MinLevel      int
	ResourceCosts []ResourceCost
	BuildingTypes []BuildingType // building types the module may attach to
	TechIDs       []string
	BuildingLevel int
}

// ModuleConfig is the registered template for a module type
type ModuleConfig struct {
	Type             ModuleType
	Name             string
	Description      string
	Requirements     ModuleRequirements
	BaseStats        map[string]float64 // stat name -> base value
	SubModuleSupport bool
	MaxSubModules    int
	AllowedSubTypes  []SubModuleType
}

// BuildingType identifies the kind of modular building
type BuildingType string

const (
	BuildingColonyHub      BuildingType = "colony-hub"
	BuildingOrbitalStation BuildingType = "orbital-station"
	BuildingOutpost        BuildingType = "outpost"
	BuildingShipyard       BuildingType = "shipyard"
)

// AttachmentPoint is a slot on a building that accepts compatible modules
type AttachmentPoint struct {
	ID              string
	Position        *Position
	AllowedTypes    []ModuleType
	CurrentModuleID string // empty when unoccupied
}

// Building represents a modular building holding attached modules
type Building struct {
	ID               string
	Type             BuildingType
	Name             string
	Level            int
	AttachmentPoints []*AttachmentPoint
	ModuleIDs        []string
	CreatedAt        time.Time
}

// SubModuleType identifies the kind of augment a sub-module provides
type SubModuleType string

const (
	SubModuleEnhancer    SubModuleType = "enhancer"
	SubModuleConverter   SubModuleType = "converter"
	SubModuleProcessor   SubModuleType = "processor"
	SubModuleStorage     SubModuleType = "storage"
	SubModuleEfficiency  SubModuleType = "efficiency"
	SubModuleAutomation  SubModuleType = "automation"
	SubModuleSpecialized SubModuleType = "specialized"
	SubModuleUtility     SubModuleType = "utility"
)

// EffectType identifies what an effect does to its target stat
type EffectType string

const (
	EffectStatBoost    EffectType = "stat-boost"
	EffectResourceRate EffectType = "resource-rate"
	EffectEfficiency   EffectType = "efficiency"
	EffectCapacity     EffectType = "capacity"
)

// Effect is a single numeric consequence granted while its owner is active
type Effect struct {
	Type         EffectType
	Target       string // stat name on the parent module
	Value        float64
	IsPercentage bool
	Description  string
}

// SubModule represents an attachable augment to a parent module
type SubModule struct {
	ID             string
	Type           SubModuleType
	Name           string
	ParentModuleID string // empty when detached
	Level          int
	Status         ModuleStatus
	IsActive       bool
	Progress       float64
	Effects        []*Effect
	CreatedAt      time.Time
}

// SubModuleRequirements gates sub-module creation and attachment
type SubModuleRequirements struct {
	MinParentLevel   int
	ParentTypes      []ModuleType // empty means any parent type
	ResourceCosts    []ResourceCost
	IncompatibleWith []SubModuleType
}

// SubModuleConfig is the registered template for a sub-module type
type SubModuleConfig struct {
	Type         SubModuleType
	Name         string
	Description  string
	Requirements SubModuleRequirements
	Effects      []*Effect
}

// ModuleLevelRequirement requires another module of the given type at level
type ModuleLevelRequirement struct {
	Type  ModuleType
	Level int
}

// UpgradeRequirements gates a single upgrade level
type UpgradeRequirements struct {
	MinLevel       int
	ResourceCosts  []ResourceCost
	TechIDs        []string
	ModuleRequires []ModuleLevelRequirement
	BuildingLevel  int
}

// UpgradeLevel is one step of an upgrade path
type UpgradeLevel struct {
	Level        int
	Name         string
	Description  string
	Requirements UpgradeRequirements
	Effects      []*Effect
	VisualStage  string // optional rendering hint, passed through untouched
}

// UpgradePath is the ordered per-module-type sequence of level definitions
type UpgradePath struct {
	ModuleType ModuleType
	Levels     []*UpgradeLevel
}

// ActiveUpgrade tracks an in-flight timed upgrade
type ActiveUpgrade struct {
	ModuleID    string
	TargetLevel int
	StartedAt   time.Time
	Duration    time.Duration
}

// RuleType identifies how an automation rule's condition is evaluated
type RuleType string

const (
	RuleResourceThreshold RuleType = "resource-threshold"
	RuleTimeBased         RuleType = "time-based"
	RuleStatusBased       RuleType = "status-based"
	RuleEventBased        RuleType = "event-based"
	RuleCustom            RuleType = "custom"
)

// Comparison is the operator of a resource-threshold rule
type Comparison string

const (
	CompareAbove Comparison = "above"
	CompareBelow Comparison = "below"
	CompareEqual Comparison = "equal"
)

// RuleAction is what an automation rule does when it fires
type RuleAction string

const (
	ActionActivate   RuleAction = "activate"
	ActionDeactivate RuleAction = "deactivate"
	ActionUpgrade    RuleAction = "upgrade"
	ActionCustom     RuleAction = "custom"
)

// Rule is a user-defined automation rule. Variant fields are populated
// according to Type; the evaluator ignores fields of other variants.
type Rule struct {
	ID            string
	Name          string
	Type          RuleType
	ModuleID      string
	Enabled       bool
	Action        RuleAction
	Cooldown      time.Duration
	LastTriggered time.Time

	// resource-threshold
	ResourceType ResourceType
	Threshold    float64
	Comparison   Comparison

	// time-based: window in minutes-of-day, nil bounds mean always
	Interval    time.Duration
	StartMinute *int
	EndMinute   *int

	// status-based: TargetModuleID empty means any module of this
	// module's type
	TriggerStatus  ModuleStatus
	TargetModuleID string

	// event-based
	EventType string

	// Function fields are not serialized; snapshots drop them.
	EventFilter func(data map[string]any) bool `json:"-" yaml:"-"`
	Condition   func(moduleID string) bool     `json:"-" yaml:"-"` // custom predicate
	ActionFunc  func(moduleID string) error    `json:"-" yaml:"-"` // custom action
}
