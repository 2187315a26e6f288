package manifest

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/orbitalworks/starhold/pkg/types"
)

// YAML spec shapes. These mirror the domain types but keep durations as
// strings and stay decoupled from the internal representation.

type resourceCostSpec struct {
	Type   string  `yaml:"type"`
	Amount float64 `yaml:"amount"`
}

type effectSpec struct {
	Type         string  `yaml:"type"`
	Target       string  `yaml:"target"`
	Value        float64 `yaml:"value"`
	IsPercentage bool    `yaml:"isPercentage,omitempty"`
	Description  string  `yaml:"description,omitempty"`
}

type positionSpec struct {
	X float64 `yaml:"x"`
	Y float64 `yaml:"y"`
}

type moduleConfigSpec struct {
	Type         string `yaml:"type"`
	Description  string `yaml:"description,omitempty"`
	Requirements struct {
		MinLevel      int                `yaml:"minLevel,omitempty"`
		ResourceCosts []resourceCostSpec `yaml:"resourceCosts,omitempty"`
		BuildingTypes []string           `yaml:"buildingTypes,omitempty"`
		TechIDs       []string           `yaml:"techIds,omitempty"`
		BuildingLevel int                `yaml:"buildingLevel,omitempty"`
	} `yaml:"requirements,omitempty"`
	BaseStats        map[string]float64 `yaml:"baseStats,omitempty"`
	SubModuleSupport bool               `yaml:"subModuleSupport,omitempty"`
	MaxSubModules    int                `yaml:"maxSubModules,omitempty"`
	AllowedSubTypes  []string           `yaml:"allowedSubTypes,omitempty"`
}

func decodeModuleConfig(doc *Document) (*types.ModuleConfig, error) {
	var spec moduleConfigSpec
	if err := doc.Spec.Decode(&spec); err != nil {
		return nil, err
	}
	if spec.Type == "" {
		return nil, fmt.Errorf("module config type is required")
	}

	cfg := &types.ModuleConfig{
		Type:             types.ModuleType(spec.Type),
		Name:             doc.Metadata.Name,
		Description:      spec.Description,
		BaseStats:        spec.BaseStats,
		SubModuleSupport: spec.SubModuleSupport,
		MaxSubModules:    spec.MaxSubModules,
	}
	cfg.Requirements = types.ModuleRequirements{
		MinLevel:      spec.Requirements.MinLevel,
		ResourceCosts: convertCosts(spec.Requirements.ResourceCosts),
		TechIDs:       spec.Requirements.TechIDs,
		BuildingLevel: spec.Requirements.BuildingLevel,
	}
	for _, bt := range spec.Requirements.BuildingTypes {
		cfg.Requirements.BuildingTypes = append(cfg.Requirements.BuildingTypes, types.BuildingType(bt))
	}
	for _, st := range spec.AllowedSubTypes {
		cfg.AllowedSubTypes = append(cfg.AllowedSubTypes, types.SubModuleType(st))
	}
	return cfg, nil
}

type subModuleConfigSpec struct {
	Type         string `yaml:"type"`
	Description  string `yaml:"description,omitempty"`
	Requirements struct {
		MinParentLevel   int                `yaml:"minParentLevel,omitempty"`
		ParentTypes      []string           `yaml:"parentTypes,omitempty"`
		ResourceCosts    []resourceCostSpec `yaml:"resourceCosts,omitempty"`
		IncompatibleWith []string           `yaml:"incompatibleWith,omitempty"`
	} `yaml:"requirements,omitempty"`
	Effects []effectSpec `yaml:"effects,omitempty"`
}

func decodeSubModuleConfig(doc *Document) (*types.SubModuleConfig, error) {
	var spec subModuleConfigSpec
	if err := doc.Spec.Decode(&spec); err != nil {
		return nil, err
	}
	if spec.Type == "" {
		return nil, fmt.Errorf("sub-module config type is required")
	}

	cfg := &types.SubModuleConfig{
		Type:        types.SubModuleType(spec.Type),
		Name:        doc.Metadata.Name,
		Description: spec.Description,
		Effects:     convertEffects(spec.Effects),
	}
	cfg.Requirements = types.SubModuleRequirements{
		MinParentLevel: spec.Requirements.MinParentLevel,
		ResourceCosts:  convertCosts(spec.Requirements.ResourceCosts),
	}
	for _, pt := range spec.Requirements.ParentTypes {
		cfg.Requirements.ParentTypes = append(cfg.Requirements.ParentTypes, types.ModuleType(pt))
	}
	for _, it := range spec.Requirements.IncompatibleWith {
		cfg.Requirements.IncompatibleWith = append(cfg.Requirements.IncompatibleWith, types.SubModuleType(it))
	}
	return cfg, nil
}

type upgradeLevelSpec struct {
	Level        int    `yaml:"level"`
	Name         string `yaml:"name"`
	Description  string `yaml:"description,omitempty"`
	Requirements struct {
		MinLevel      int                `yaml:"minLevel,omitempty"`
		ResourceCosts []resourceCostSpec `yaml:"resourceCosts,omitempty"`
		TechIDs       []string           `yaml:"techIds,omitempty"`
		BuildingLevel int                `yaml:"buildingLevel,omitempty"`
		Modules       []struct {
			Type  string `yaml:"type"`
			Level int    `yaml:"level"`
		} `yaml:"modules,omitempty"`
	} `yaml:"requirements,omitempty"`
	Effects     []effectSpec `yaml:"effects,omitempty"`
	VisualStage string       `yaml:"visualStage,omitempty"`
}

type upgradePathSpec struct {
	ModuleType string             `yaml:"moduleType"`
	Levels     []upgradeLevelSpec `yaml:"levels"`
}

func decodeUpgradePath(doc *Document) (*types.UpgradePath, error) {
	var spec upgradePathSpec
	if err := doc.Spec.Decode(&spec); err != nil {
		return nil, err
	}
	if spec.ModuleType == "" {
		return nil, fmt.Errorf("upgrade path moduleType is required")
	}
	if len(spec.Levels) == 0 {
		return nil, fmt.Errorf("upgrade path needs at least one level")
	}

	path := &types.UpgradePath{ModuleType: types.ModuleType(spec.ModuleType)}
	prev := 0
	for _, ls := range spec.Levels {
		if ls.Level <= prev {
			return nil, fmt.Errorf("upgrade levels must be strictly increasing (got %d after %d)", ls.Level, prev)
		}
		prev = ls.Level

		level := &types.UpgradeLevel{
			Level:       ls.Level,
			Name:        ls.Name,
			Description: ls.Description,
			Effects:     convertEffects(ls.Effects),
			VisualStage: ls.VisualStage,
		}
		level.Requirements = types.UpgradeRequirements{
			MinLevel:      ls.Requirements.MinLevel,
			ResourceCosts: convertCosts(ls.Requirements.ResourceCosts),
			TechIDs:       ls.Requirements.TechIDs,
			BuildingLevel: ls.Requirements.BuildingLevel,
		}
		for _, m := range ls.Requirements.Modules {
			level.Requirements.ModuleRequires = append(level.Requirements.ModuleRequires, types.ModuleLevelRequirement{
				Type:  types.ModuleType(m.Type),
				Level: m.Level,
			})
		}
		path.Levels = append(path.Levels, level)
	}
	return path, nil
}

type attachmentPointSpec struct {
	ID           string        `yaml:"id"`
	Position     *positionSpec `yaml:"position,omitempty"`
	AllowedTypes []string      `yaml:"allowedTypes,omitempty"`
}

type buildingSpec struct {
	Type             string                `yaml:"type"`
	Level            int                   `yaml:"level,omitempty"`
	AttachmentPoints []attachmentPointSpec `yaml:"attachmentPoints"`
}

func decodeBuilding(doc *Document) (*types.Building, error) {
	var spec buildingSpec
	if err := doc.Spec.Decode(&spec); err != nil {
		return nil, err
	}
	if spec.Type == "" {
		return nil, fmt.Errorf("building type is required")
	}
	level := spec.Level
	if level == 0 {
		level = 1
	}

	b := &types.Building{
		ID:    uuid.New().String(),
		Type:  types.BuildingType(spec.Type),
		Name:  doc.Metadata.Name,
		Level: level,
	}
	seen := map[string]bool{}
	for i, ap := range spec.AttachmentPoints {
		id := ap.ID
		if id == "" {
			id = fmt.Sprintf("%s-slot-%d", spec.Type, i)
		}
		if seen[id] {
			return nil, fmt.Errorf("duplicate attachment point id %q", id)
		}
		seen[id] = true

		point := &types.AttachmentPoint{ID: id}
		if ap.Position != nil {
			point.Position = &types.Position{X: ap.Position.X, Y: ap.Position.Y}
		}
		for _, mt := range ap.AllowedTypes {
			point.AllowedTypes = append(point.AllowedTypes, types.ModuleType(mt))
		}
		b.AttachmentPoints = append(b.AttachmentPoints, point)
	}
	return b, nil
}

type ruleSpec struct {
	Type     string `yaml:"type"`
	ModuleID string `yaml:"moduleId,omitempty"`
	Enabled  *bool  `yaml:"enabled,omitempty"`
	Action   string `yaml:"action"`
	Cooldown string `yaml:"cooldown,omitempty"`

	ResourceType string  `yaml:"resourceType,omitempty"`
	Threshold    float64 `yaml:"threshold,omitempty"`
	Comparison   string  `yaml:"comparison,omitempty"`

	Interval    string `yaml:"interval,omitempty"`
	StartMinute *int   `yaml:"startMinute,omitempty"`
	EndMinute   *int   `yaml:"endMinute,omitempty"`

	TriggerStatus  string `yaml:"triggerStatus,omitempty"`
	TargetModuleID string `yaml:"targetModuleId,omitempty"`

	EventType string `yaml:"eventType,omitempty"`
}

func decodeRule(doc *Document) (*types.Rule, error) {
	var spec ruleSpec
	if err := doc.Spec.Decode(&spec); err != nil {
		return nil, err
	}
	if spec.Type == "" {
		return nil, fmt.Errorf("rule type is required")
	}
	if spec.Action == "" {
		return nil, fmt.Errorf("rule action is required")
	}
	// Custom predicates and actions cannot be expressed in YAML; they are
	// registered programmatically.
	if types.RuleType(spec.Type) == types.RuleCustom {
		return nil, fmt.Errorf("custom rules cannot be defined in manifests")
	}

	cooldown, err := parseDuration(spec.Cooldown)
	if err != nil {
		return nil, err
	}
	interval, err := parseDuration(spec.Interval)
	if err != nil {
		return nil, err
	}

	enabled := true
	if spec.Enabled != nil {
		enabled = *spec.Enabled
	}

	rule := &types.Rule{
		ID:             uuid.New().String(),
		Name:           doc.Metadata.Name,
		Type:           types.RuleType(spec.Type),
		ModuleID:       spec.ModuleID,
		Enabled:        enabled,
		Action:         types.RuleAction(spec.Action),
		Cooldown:       cooldown,
		ResourceType:   types.ResourceType(spec.ResourceType),
		Threshold:      spec.Threshold,
		Comparison:     types.Comparison(spec.Comparison),
		Interval:       interval,
		StartMinute:    spec.StartMinute,
		EndMinute:      spec.EndMinute,
		TriggerStatus:  types.ModuleStatus(spec.TriggerStatus),
		TargetModuleID: spec.TargetModuleID,
		EventType:      spec.EventType,
	}
	return rule, nil
}

func convertCosts(specs []resourceCostSpec) []types.ResourceCost {
	var costs []types.ResourceCost
	for _, c := range specs {
		costs = append(costs, types.ResourceCost{
			Type:   types.ResourceType(c.Type),
			Amount: c.Amount,
		})
	}
	return costs
}

func convertEffects(specs []effectSpec) []*types.Effect {
	var effects []*types.Effect
	for _, e := range specs {
		effects = append(effects, &types.Effect{
			Type:         types.EffectType(e.Type),
			Target:       e.Target,
			Value:        e.Value,
			IsPercentage: e.IsPercentage,
			Description:  e.Description,
		})
	}
	return effects
}
