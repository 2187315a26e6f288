package automation

import (
	"time"

	"github.com/orbitalworks/starhold/pkg/metrics"
	"github.com/orbitalworks/starhold/pkg/types"
)

// evaluate runs the predicate of a non-event-based rule
func (e *Evaluator) evaluate(rule *types.Rule) bool {
	switch rule.Type {
	case types.RuleResourceThreshold:
		return e.evaluateResource(rule)
	case types.RuleTimeBased:
		return e.evaluateTime(rule)
	case types.RuleStatusBased:
		return e.evaluateStatus(rule)
	case types.RuleCustom:
		return rule.Condition != nil && rule.Condition(rule.ModuleID)
	default:
		return false
	}
}

func (e *Evaluator) evaluateResource(rule *types.Rule) bool {
	amount := e.res.Amount(rule.ResourceType)
	switch rule.Comparison {
	case types.CompareAbove:
		return amount > rule.Threshold
	case types.CompareBelow:
		return amount < rule.Threshold
	case types.CompareEqual:
		return amount == rule.Threshold
	default:
		return false
	}
}

// evaluateTime gates on the minutes-of-day window when both bounds are
// set, and on the rule's own interval since its last trigger
func (e *Evaluator) evaluateTime(rule *types.Rule) bool {
	now := e.now()
	if rule.StartMinute != nil && rule.EndMinute != nil {
		minute := now.Hour()*60 + now.Minute()
		start, end := *rule.StartMinute, *rule.EndMinute
		if start <= end {
			if minute < start || minute > end {
				return false
			}
		} else {
			// Window wraps midnight
			if minute < start && minute > end {
				return false
			}
		}
	}
	if rule.Interval <= 0 {
		return true
	}
	last := e.lastTriggered(rule)
	return last.IsZero() || now.Sub(last) >= rule.Interval
}

// evaluateStatus checks a specific module's status, or any module of the
// rule's module's type when no target is named
func (e *Evaluator) evaluateStatus(rule *types.Rule) bool {
	if rule.TargetModuleID != "" {
		return e.moduleStatus(rule.TargetModuleID) == rule.TriggerStatus
	}
	module, ok := e.reg.Module(rule.ModuleID)
	if !ok {
		return false
	}
	for _, m := range e.reg.ModulesByType(module.Type) {
		if e.moduleStatus(m.ID) == rule.TriggerStatus {
			return true
		}
	}
	return false
}

// moduleStatus prefers the tracker's extended status over the module's
// core status
func (e *Evaluator) moduleStatus(moduleID string) types.ModuleStatus {
	if e.status != nil {
		if s, ok := e.status.CurrentStatus(moduleID); ok {
			return s
		}
	}
	if module, ok := e.reg.Module(moduleID); ok {
		return module.Status
	}
	return ""
}

// lastTriggered reads a rule's trigger stamp under the evaluator lock;
// event-rule listeners and the polling loop touch it concurrently
func (e *Evaluator) lastTriggered(rule *types.Rule) time.Time {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return rule.LastTriggered
}

// onCooldown reports whether a rule is inside its cooldown window,
// measured from its most recent fire
func (e *Evaluator) onCooldown(rule *types.Rule) bool {
	if rule.Cooldown <= 0 {
		return false
	}
	last := e.lastTriggered(rule)
	if last.IsZero() {
		return false
	}
	return e.now().Sub(last) < rule.Cooldown
}

// executeRuleAction dispatches a rule's action against the registry and
// stamps the rule's last trigger time
func (e *Evaluator) executeRuleAction(rule *types.Rule) {
	if _, ok := e.reg.Module(rule.ModuleID); !ok && rule.Action != types.ActionCustom {
		e.logger.Error().
			Str("rule_id", rule.ID).
			Str("module_id", rule.ModuleID).
			Msg("rule target module not found")
		return
	}

	switch rule.Action {
	case types.ActionActivate:
		e.reg.SetModuleActive(rule.ModuleID, true)
	case types.ActionDeactivate:
		e.reg.SetModuleActive(rule.ModuleID, false)
	case types.ActionUpgrade:
		e.reg.UpgradeModule(rule.ModuleID)
	case types.ActionCustom:
		if rule.ActionFunc == nil {
			e.logger.Warn().Str("rule_id", rule.ID).Msg("custom rule has no action func")
			return
		}
		if err := rule.ActionFunc(rule.ModuleID); err != nil {
			e.logger.Error().Err(err).Str("rule_id", rule.ID).Msg("custom action failed")
		}
	default:
		e.logger.Warn().
			Str("rule_id", rule.ID).
			Str("action", string(rule.Action)).
			Msg("unknown rule action")
		return
	}

	e.mu.Lock()
	rule.LastTriggered = e.now()
	e.mu.Unlock()
	metrics.RulesFired.WithLabelValues(string(rule.Action)).Inc()
	e.logger.Debug().
		Str("rule_id", rule.ID).
		Str("action", string(rule.Action)).
		Str("module_id", rule.ModuleID).
		Msg("rule fired")
}
