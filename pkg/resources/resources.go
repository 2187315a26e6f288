package resources

import (
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"github.com/orbitalworks/starhold/pkg/events"
	"github.com/orbitalworks/starhold/pkg/log"
	"github.com/orbitalworks/starhold/pkg/types"
)

// Service is the resource contract consumed by the lifecycle core.
// Implementations are synchronous; a missing resource simply fails the
// dependent check.
type Service interface {
	Amount(rt types.ResourceType) float64
	Remove(rt types.ResourceType, amount float64) error
}

// ModuleDebiter is an optional extension of Service for implementations
// that attribute a removal to the module whose operation requested it,
// so shortage events carry the module's ID.
type ModuleDebiter interface {
	RemoveFor(rt types.ResourceType, amount float64, moduleID string) error
}

// Ledger is an in-memory resource store implementing Service
type Ledger struct {
	mu      sync.RWMutex
	amounts map[types.ResourceType]float64
	bus     *events.Bus
	logger  zerolog.Logger
}

// NewLedger creates an empty ledger. The bus may be nil; when set, failed
// removals publish a resource shortage event.
func NewLedger(bus *events.Bus) *Ledger {
	return &Ledger{
		amounts: make(map[types.ResourceType]float64),
		bus:     bus,
		logger:  log.WithComponent("resources"),
	}
}

// Amount returns the current amount of a resource (zero if untracked)
func (l *Ledger) Amount(rt types.ResourceType) float64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.amounts[rt]
}

// Set replaces the stored amount of a resource
func (l *Ledger) Set(rt types.ResourceType, amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.amounts[rt] = amount
}

// Add credits a resource
func (l *Ledger) Add(rt types.ResourceType, amount float64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.amounts[rt] += amount
}

// Remove debits a resource with no module attribution
func (l *Ledger) Remove(rt types.ResourceType, amount float64) error {
	return l.RemoveFor(rt, amount, "")
}

// RemoveFor debits a resource on behalf of a module. An insufficient
// balance leaves the ledger unchanged, publishes a shortage event naming
// the module, and returns an error.
func (l *Ledger) RemoveFor(rt types.ResourceType, amount float64, moduleID string) error {
	l.mu.Lock()
	current := l.amounts[rt]
	if current < amount {
		l.mu.Unlock()
		l.logger.Warn().
			Str("resource", string(rt)).
			Str("module_id", moduleID).
			Float64("requested", amount).
			Float64("available", current).
			Msg("resource shortage")
		if l.bus != nil {
			l.bus.Publish(&events.Event{
				Type:     events.EventResourceShortage,
				ModuleID: moduleID,
				Data: map[string]any{
					"resource":  string(rt),
					"requested": amount,
					"available": current,
				},
			})
		}
		return fmt.Errorf("insufficient %s: have %.2f, need %.2f", rt, current, amount)
	}
	l.amounts[rt] = current - amount
	l.mu.Unlock()
	return nil
}

// CanAfford reports whether every cost in the list is currently covered
func CanAfford(svc Service, costs []types.ResourceCost) bool {
	for _, cost := range costs {
		if svc.Amount(cost.Type) < cost.Amount {
			return false
		}
	}
	return true
}

// Debit removes every cost in the list. Callers check CanAfford first;
// a partial failure mid-list is reported but not rolled back.
func Debit(svc Service, costs []types.ResourceCost) error {
	return DebitFor(svc, "", costs)
}

// DebitFor removes every cost in the list on behalf of a module, so a
// shortage is attributed to it. Falls back to plain removal when the
// service does not support attribution.
func DebitFor(svc Service, moduleID string, costs []types.ResourceCost) error {
	md, attributed := svc.(ModuleDebiter)
	for _, cost := range costs {
		var err error
		if attributed {
			err = md.RemoveFor(cost.Type, cost.Amount, moduleID)
		} else {
			err = svc.Remove(cost.Type, cost.Amount)
		}
		if err != nil {
			return err
		}
	}
	return nil
}
