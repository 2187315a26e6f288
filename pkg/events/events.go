package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/orbitalworks/starhold/pkg/log"
	"github.com/orbitalworks/starhold/pkg/metrics"
	"github.com/orbitalworks/starhold/pkg/types"
)

// EventType represents the type of lifecycle event
type EventType string

const (
	EventModuleCreated     EventType = "module.created"
	EventModuleAttached    EventType = "module.attached"
	EventModuleDetached    EventType = "module.detached"
	EventModuleUpgraded    EventType = "module.upgraded"
	EventModuleActivated   EventType = "module.activated"
	EventModuleDeactivated EventType = "module.deactivated"
	EventModuleUpdated     EventType = "module.updated"

	EventStatusChanged    EventType = "status.changed"
	EventErrorOccurred    EventType = "error.occurred"
	EventResourceShortage EventType = "resource.shortage"

	EventSubModuleCreated     EventType = "submodule.created"
	EventSubModuleAttached    EventType = "submodule.attached"
	EventSubModuleDetached    EventType = "submodule.detached"
	EventSubModuleActivated   EventType = "submodule.activated"
	EventSubModuleDeactivated EventType = "submodule.deactivated"
	EventSubModuleUpgraded    EventType = "submodule.upgraded"

	EventUpgradeStarted   EventType = "upgrade.started"
	EventUpgradeCancelled EventType = "upgrade.cancelled"
	EventUpgradeCompleted EventType = "upgrade.completed"

	EventAutomationStarted       EventType = "automation.started"
	EventAutomationStopped       EventType = "automation.stopped"
	EventAutomationCycleComplete EventType = "automation.cycle_complete"
)

// Event represents a module lifecycle event
type Event struct {
	ID         string
	Type       EventType
	ModuleID   string
	ModuleType types.ModuleType
	Timestamp  time.Time
	Data       map[string]any
}

// Listener handles a delivered event. Listeners run synchronously on the
// publishing goroutine, in subscription order.
type Listener func(event *Event)

// UnsubscribeFunc removes a subscription when called. Safe to call more
// than once.
type UnsubscribeFunc func()

type subscription struct {
	id       uint64
	listener Listener
}

const defaultHistoryCapacity = 1000

// Bus is a typed publish/subscribe channel for lifecycle events.
//
// Delivery is synchronous and in-process: Publish invokes every listener
// registered for the event's type, in subscription order, before
// returning. A panicking listener is recovered and logged; delivery
// continues to the remaining listeners. Ordering is only guaranteed
// within a single event type's listener list.
type Bus struct {
	mu       sync.RWMutex
	subs     map[EventType][]*subscription
	nextID   uint64
	history  []*Event // ring buffer
	histPos  int
	histSize int
	histCap  int
	logger   zerolog.Logger
}

// NewBus creates a bus with the default history capacity
func NewBus() *Bus {
	return NewBusWithCapacity(defaultHistoryCapacity)
}

// NewBusWithCapacity creates a bus whose event history retains at most
// capacity events, discarding the oldest on overflow.
func NewBusWithCapacity(capacity int) *Bus {
	if capacity <= 0 {
		capacity = defaultHistoryCapacity
	}
	return &Bus{
		subs:    make(map[EventType][]*subscription),
		history: make([]*Event, capacity),
		histCap: capacity,
		logger:  log.WithComponent("events"),
	}
}

// Subscribe registers a listener for an event type and returns the
// function that removes it. Callers must retain the returned handle for
// teardown; re-subscribing to obtain a handle is not supported.
func (b *Bus) Subscribe(eventType EventType, listener Listener) UnsubscribeFunc {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	sub := &subscription{id: b.nextID, listener: listener}
	b.subs[eventType] = append(b.subs[eventType], sub)

	id := sub.id
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[eventType]
		for i, s := range list {
			if s.id == id {
				b.subs[eventType] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an event to all listeners of its type and appends it
// to the history ring.
func (b *Bus) Publish(event *Event) {
	if event == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	b.history[b.histPos] = event
	b.histPos = (b.histPos + 1) % b.histCap
	if b.histSize < b.histCap {
		b.histSize++
	}
	// Copy the listener slice so listeners can subscribe/unsubscribe
	// without invalidating this delivery pass.
	listeners := make([]*subscription, len(b.subs[event.Type]))
	copy(listeners, b.subs[event.Type])
	b.mu.Unlock()

	metrics.EventsPublished.WithLabelValues(string(event.Type)).Inc()

	for _, sub := range listeners {
		b.deliver(sub, event)
	}
}

// deliver invokes a single listener, recovering a panic so one listener
// cannot break delivery to the rest.
func (b *Bus) deliver(sub *subscription, event *Event) {
	defer func() {
		if r := recover(); r != nil {
			metrics.ListenerPanics.Inc()
			b.logger.Error().
				Str("event_type", string(event.Type)).
				Str("event_id", event.ID).
				Interface("panic", r).
				Msg("listener panicked during delivery")
		}
	}()
	sub.listener(event)
}

// History returns the retained events, oldest first
func (b *Bus) History() []*Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked(func(*Event) bool { return true })
}

// HistoryByModule returns retained events for a module, oldest first
func (b *Bus) HistoryByModule(moduleID string) []*Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked(func(e *Event) bool { return e.ModuleID == moduleID })
}

// HistoryByType returns retained events of one type, oldest first
func (b *Bus) HistoryByType(eventType EventType) []*Event {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.snapshotLocked(func(e *Event) bool { return e.Type == eventType })
}

func (b *Bus) snapshotLocked(keep func(*Event) bool) []*Event {
	var out []*Event
	start := 0
	if b.histSize == b.histCap {
		start = b.histPos
	}
	for i := 0; i < b.histSize; i++ {
		e := b.history[(start+i)%b.histCap]
		if e != nil && keep(e) {
			out = append(out, e)
		}
	}
	return out
}
