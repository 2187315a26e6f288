package submodule

import (
	"sync"

	"github.com/orbitalworks/starhold/pkg/types"
)

// Result reports the outcome of applying one effect
type Result struct {
	Success bool
	Error   string
	Delta   float64 // the exact stat change applied, used for reversal
}

// EffectHandler applies a single effect to a module's stat sheet and
// returns the applied delta. Handlers are keyed by effect type in a
// pluggable dispatch table; registering a handler for a new effect type
// requires no change to core dispatch logic.
type EffectHandler func(effect *types.Effect, moduleID string) Result

// StatSheet holds the live numeric stats per module. Sheets are seeded
// from the module config's base stats on first access and mutated by
// effect handlers while sub-modules are active.
type StatSheet struct {
	mu    sync.RWMutex
	stats map[string]map[string]float64 // module ID -> stat name -> value
	seed  func(moduleID string) map[string]float64
}

// NewStatSheet creates a stat sheet. seed returns the base stats for a
// module (may be nil for no bases).
func NewStatSheet(seed func(moduleID string) map[string]float64) *StatSheet {
	return &StatSheet{
		stats: make(map[string]map[string]float64),
		seed:  seed,
	}
}

func (s *StatSheet) sheet(moduleID string) map[string]float64 {
	sheet, ok := s.stats[moduleID]
	if !ok {
		sheet = make(map[string]float64)
		if s.seed != nil {
			for k, v := range s.seed(moduleID) {
				sheet[k] = v
			}
		}
		s.stats[moduleID] = sheet
	}
	return sheet
}

// Get returns a module's current value for a stat
func (s *StatSheet) Get(moduleID, stat string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sheet(moduleID)[stat]
}

// Apply adds delta to a module's stat and returns the new value
func (s *StatSheet) Apply(moduleID, stat string, delta float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	sheet := s.sheet(moduleID)
	sheet[stat] += delta
	return sheet[stat]
}

// Stats returns a copy of a module's full stat sheet
func (s *StatSheet) Stats(moduleID string) map[string]float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]float64)
	for k, v := range s.sheet(moduleID) {
		out[k] = v
	}
	return out
}

// statHandler builds the default handler for effects that mutate a stat:
// percentage effects scale the current value, absolute effects add.
func statHandler(sheet *StatSheet) EffectHandler {
	return func(effect *types.Effect, moduleID string) Result {
		var delta float64
		if effect.IsPercentage {
			delta = sheet.Get(moduleID, effect.Target) * effect.Value / 100
		} else {
			delta = effect.Value
		}
		sheet.Apply(moduleID, effect.Target, delta)
		return Result{Success: true, Delta: delta}
	}
}
