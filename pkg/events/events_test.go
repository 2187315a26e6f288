package events

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestSubscribeDeliveryOrder tests that listeners fire in subscription order
func TestSubscribeDeliveryOrder(t *testing.T) {
	bus := NewBus()

	var order []int
	for i := 1; i <= 3; i++ {
		i := i
		bus.Subscribe(EventModuleCreated, func(e *Event) {
			order = append(order, i)
		})
	}

	bus.Publish(&Event{Type: EventModuleCreated, ModuleID: "m1"})

	assert.Equal(t, []int{1, 2, 3}, order)
}

// TestPublishFillsDefaults tests ID and timestamp assignment on publish
func TestPublishFillsDefaults(t *testing.T) {
	bus := NewBus()

	var got *Event
	bus.Subscribe(EventModuleCreated, func(e *Event) { got = e })

	bus.Publish(&Event{Type: EventModuleCreated, ModuleID: "m1"})

	require.NotNil(t, got)
	assert.NotEmpty(t, got.ID)
	assert.False(t, got.Timestamp.IsZero())
}

// TestUnsubscribe tests that the returned handle stops delivery
func TestUnsubscribe(t *testing.T) {
	bus := NewBus()

	calls := 0
	unsub := bus.Subscribe(EventModuleCreated, func(e *Event) { calls++ })

	bus.Publish(&Event{Type: EventModuleCreated})
	unsub()
	bus.Publish(&Event{Type: EventModuleCreated})

	assert.Equal(t, 1, calls)

	// Calling the handle again is a no-op
	unsub()
	bus.Publish(&Event{Type: EventModuleCreated})
	assert.Equal(t, 1, calls)
}

// TestUnsubscribeKeepsOtherListeners tests selective removal
func TestUnsubscribeKeepsOtherListeners(t *testing.T) {
	bus := NewBus()

	var first, second int
	unsub := bus.Subscribe(EventModuleCreated, func(e *Event) { first++ })
	bus.Subscribe(EventModuleCreated, func(e *Event) { second++ })

	unsub()
	bus.Publish(&Event{Type: EventModuleCreated})

	assert.Equal(t, 0, first)
	assert.Equal(t, 1, second)
}

// TestListenerPanicDoesNotBreakDelivery tests panic isolation
func TestListenerPanicDoesNotBreakDelivery(t *testing.T) {
	bus := NewBus()

	reached := false
	bus.Subscribe(EventModuleCreated, func(e *Event) { panic("boom") })
	bus.Subscribe(EventModuleCreated, func(e *Event) { reached = true })

	assert.NotPanics(t, func() {
		bus.Publish(&Event{Type: EventModuleCreated})
	})
	assert.True(t, reached)
}

// TestPublishNoListeners tests that publishing without subscribers succeeds
func TestPublishNoListeners(t *testing.T) {
	bus := NewBus()

	assert.NotPanics(t, func() {
		bus.Publish(&Event{Type: EventStatusChanged})
	})
	assert.Len(t, bus.History(), 1)
}

// TestTypeIsolation tests that listeners only receive their own type
func TestTypeIsolation(t *testing.T) {
	bus := NewBus()

	created, upgraded := 0, 0
	bus.Subscribe(EventModuleCreated, func(e *Event) { created++ })
	bus.Subscribe(EventModuleUpgraded, func(e *Event) { upgraded++ })

	bus.Publish(&Event{Type: EventModuleCreated})
	bus.Publish(&Event{Type: EventModuleCreated})
	bus.Publish(&Event{Type: EventModuleUpgraded})

	assert.Equal(t, 2, created)
	assert.Equal(t, 1, upgraded)
}

// TestHistoryFilters tests history queries by module and type
func TestHistoryFilters(t *testing.T) {
	bus := NewBus()

	bus.Publish(&Event{Type: EventModuleCreated, ModuleID: "a"})
	bus.Publish(&Event{Type: EventModuleUpgraded, ModuleID: "a"})
	bus.Publish(&Event{Type: EventModuleCreated, ModuleID: "b"})

	assert.Len(t, bus.History(), 3)
	assert.Len(t, bus.HistoryByModule("a"), 2)
	assert.Len(t, bus.HistoryByModule("b"), 1)
	assert.Len(t, bus.HistoryByType(EventModuleCreated), 2)
	assert.Len(t, bus.HistoryByType(EventStatusChanged), 0)
}

// TestHistoryRingOverflow tests oldest-first eviction at capacity
func TestHistoryRingOverflow(t *testing.T) {
	bus := NewBusWithCapacity(3)

	for _, id := range []string{"e1", "e2", "e3", "e4", "e5"} {
		bus.Publish(&Event{Type: EventModuleCreated, ModuleID: id})
	}

	history := bus.History()
	require.Len(t, history, 3)
	assert.Equal(t, "e3", history[0].ModuleID)
	assert.Equal(t, "e4", history[1].ModuleID)
	assert.Equal(t, "e5", history[2].ModuleID)
}

// TestSubscribeDuringDelivery tests that mutation mid-delivery is safe
func TestSubscribeDuringDelivery(t *testing.T) {
	bus := NewBus()

	lateCalls := 0
	bus.Subscribe(EventModuleCreated, func(e *Event) {
		bus.Subscribe(EventModuleCreated, func(e *Event) { lateCalls++ })
	})

	bus.Publish(&Event{Type: EventModuleCreated})
	// The listener registered during delivery only sees later events
	assert.Equal(t, 0, lateCalls)

	bus.Publish(&Event{Type: EventModuleCreated})
	assert.Equal(t, 1, lateCalls)
}
