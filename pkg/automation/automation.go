package automation

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orbitalworks/starhold/pkg/events"
	"github.com/orbitalworks/starhold/pkg/log"
	"github.com/orbitalworks/starhold/pkg/metrics"
	"github.com/orbitalworks/starhold/pkg/registry"
	"github.com/orbitalworks/starhold/pkg/resources"
	"github.com/orbitalworks/starhold/pkg/types"
)

const defaultInterval = time.Second

// StatusSource resolves a module's current extended status. The status
// tracker implements this; a nil source falls back to the module's core
// status.
type StatusSource interface {
	CurrentStatus(moduleID string) (types.ModuleStatus, bool)
}

// Config holds evaluator tuning
type Config struct {
	// Interval is the polling period for non-event-based rules.
	// Defaults to one second.
	Interval time.Duration
}

// Evaluator periodically evaluates automation rules against module and
// resource state and dispatches their actions against the registry.
// Event-based rules bypass the polling loop through dedicated bus
// subscriptions.
type Evaluator struct {
	mu          sync.RWMutex
	rules       map[string]*types.Rule
	order       []string // rule IDs in insertion order
	enabled     bool
	eventUnsubs map[string]events.UnsubscribeFunc // rule ID -> handle
	stopCh      chan struct{}

	bus    *events.Bus
	reg    *registry.Registry
	res    resources.Service
	status StatusSource
	cfg    Config
	logger zerolog.Logger
	now    func() time.Time
}

// NewEvaluator creates a disabled evaluator; call Enable to start it
func NewEvaluator(bus *events.Bus, reg *registry.Registry, res resources.Service, statusSrc StatusSource, cfg Config) *Evaluator {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	return &Evaluator{
		rules:       make(map[string]*types.Rule),
		eventUnsubs: make(map[string]events.UnsubscribeFunc),
		bus:         bus,
		reg:         reg,
		res:         res,
		status:      statusSrc,
		cfg:         cfg,
		logger:      log.WithComponent("automation"),
		now:         time.Now,
	}
}

// AddRule registers a rule. A missing ID is assigned; event-based rules
// are subscribed immediately while automation is enabled.
func (e *Evaluator) AddRule(rule *types.Rule) error {
	if rule == nil {
		return fmt.Errorf("nil rule")
	}
	if rule.ID == "" {
		rule.ID = uuid.New().String()
	}
	if rule.Type == types.RuleEventBased && rule.EventType == "" {
		return fmt.Errorf("event-based rule %s has no event type", rule.ID)
	}

	e.mu.Lock()
	if _, exists := e.rules[rule.ID]; !exists {
		e.order = append(e.order, rule.ID)
	}
	e.rules[rule.ID] = rule
	enabled := e.enabled
	e.mu.Unlock()

	if enabled && rule.Type == types.RuleEventBased && rule.Enabled {
		e.subscribeEventRule(rule)
	}
	return nil
}

// RemoveRule deletes a rule and releases its event subscription
func (e *Evaluator) RemoveRule(ruleID string) bool {
	e.mu.Lock()
	_, ok := e.rules[ruleID]
	if !ok {
		e.mu.Unlock()
		return false
	}
	delete(e.rules, ruleID)
	for i, id := range e.order {
		if id == ruleID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	unsub := e.eventUnsubs[ruleID]
	delete(e.eventUnsubs, ruleID)
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	return true
}

// SetRuleEnabled toggles a single rule, re-deriving any event
// subscription it needs
func (e *Evaluator) SetRuleEnabled(ruleID string, enabled bool) bool {
	e.mu.Lock()
	rule, ok := e.rules[ruleID]
	if !ok {
		e.mu.Unlock()
		return false
	}
	rule.Enabled = enabled
	automationOn := e.enabled
	unsub := e.eventUnsubs[ruleID]
	delete(e.eventUnsubs, ruleID)
	e.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	if automationOn && enabled && rule.Type == types.RuleEventBased {
		e.subscribeEventRule(rule)
	}
	return true
}

// Rule returns a rule by ID
func (e *Evaluator) Rule(ruleID string) (*types.Rule, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.rules[ruleID]
	return r, ok
}

// Rules returns all rules in insertion order
func (e *Evaluator) Rules() []*types.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*types.Rule, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.rules[id])
	}
	return out
}

// Restore replaces the rule set from a snapshot. Custom rules restore
// without their predicates and stay dormant until rewired.
func (e *Evaluator) Restore(rules []*types.Rule) {
	e.mu.Lock()
	wasEnabled := e.enabled
	e.mu.Unlock()
	if wasEnabled {
		e.Disable()
	}

	e.mu.Lock()
	e.rules = make(map[string]*types.Rule, len(rules))
	e.order = e.order[:0]
	for _, r := range rules {
		e.rules[r.ID] = r
		e.order = append(e.order, r.ID)
	}
	e.mu.Unlock()

	if wasEnabled {
		e.Enable()
	}
}

// Enable starts the polling loop and sets up event subscriptions for
// enabled event-based rules. Idempotent.
func (e *Evaluator) Enable() {
	e.mu.Lock()
	if e.enabled {
		e.mu.Unlock()
		return
	}
	e.enabled = true
	e.stopCh = make(chan struct{})
	var eventRules []*types.Rule
	for _, id := range e.order {
		rule := e.rules[id]
		if rule.Enabled && rule.Type == types.RuleEventBased {
			eventRules = append(eventRules, rule)
		}
	}
	stopCh := e.stopCh
	e.mu.Unlock()

	for _, rule := range eventRules {
		e.subscribeEventRule(rule)
	}
	go e.run(stopCh)

	e.logger.Info().Msg("automation enabled")
	e.bus.Publish(&events.Event{Type: events.EventAutomationStarted})
}

// Disable tears down the polling loop and all event subscriptions
// atomically. Idempotent.
func (e *Evaluator) Disable() {
	e.mu.Lock()
	if !e.enabled {
		e.mu.Unlock()
		return
	}
	e.enabled = false
	close(e.stopCh)
	unsubs := make([]events.UnsubscribeFunc, 0, len(e.eventUnsubs))
	for id, unsub := range e.eventUnsubs {
		unsubs = append(unsubs, unsub)
		delete(e.eventUnsubs, id)
	}
	e.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	e.logger.Info().Msg("automation disabled")
	e.bus.Publish(&events.Event{Type: events.EventAutomationStopped})
}

// Enabled reports whether automation is running
func (e *Evaluator) Enabled() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.enabled
}

func (e *Evaluator) run(stopCh chan struct{}) {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			e.checkRules()
		case <-stopCh:
			return
		}
	}
}

// pollRules snapshots the enabled non-event-based rules in insertion
// order; Enabled is read under the lock because SetRuleEnabled writes it
// from other goroutines
func (e *Evaluator) pollRules() []*types.Rule {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]*types.Rule, 0, len(e.order))
	for _, id := range e.order {
		rule := e.rules[id]
		if rule.Enabled && rule.Type != types.RuleEventBased {
			out = append(out, rule)
		}
	}
	return out
}

// checkRules performs one polling cycle over enabled non-event rules
func (e *Evaluator) checkRules() {
	timer := metrics.NewTimer()
	defer func() {
		timer.ObserveDuration(metrics.AutomationCycleDuration)
	}()

	var fired int
	for _, rule := range e.pollRules() {
		metrics.RulesEvaluated.Inc()
		if !e.evaluate(rule) {
			continue
		}
		if e.onCooldown(rule) {
			continue
		}
		e.executeRuleAction(rule)
		fired++
	}

	e.bus.Publish(&events.Event{
		Type: events.EventAutomationCycleComplete,
		Data: map[string]any{"fired": fired},
	})
}

// subscribeEventRule wires one enabled event-based rule to the bus,
// storing the unsubscribe handle for teardown
func (e *Evaluator) subscribeEventRule(rule *types.Rule) {
	ruleID := rule.ID
	unsub := e.bus.Subscribe(events.EventType(rule.EventType), func(event *events.Event) {
		e.mu.RLock()
		current, ok := e.rules[ruleID]
		enabled := e.enabled && ok && current.Enabled
		e.mu.RUnlock()
		if !enabled {
			return
		}
		if current.EventFilter != nil && !current.EventFilter(event.Data) {
			return
		}
		if e.onCooldown(current) {
			return
		}
		e.executeRuleAction(current)
	})

	e.mu.Lock()
	e.eventUnsubs[ruleID] = unsub
	e.mu.Unlock()
}
