/*
Package events provides the synchronous lifecycle event bus.

Every state change in the colony (creation, attachment, activation,
upgrade, status, automation) is published as a typed Event. Listeners
are invoked on the publishing goroutine in subscription order; a
panicking listener is recovered and logged so the remaining listeners
still receive the event. Subscribe returns the unsubscribe handle, and
the bus retains a bounded history ring for inspection and debugging.

	unsub := bus.Subscribe(events.EventModuleCreated, func(e *events.Event) {
		fmt.Println("created:", e.ModuleID)
	})
	defer unsub()

	bus.Publish(&events.Event{
		Type:     events.EventModuleCreated,
		ModuleID: moduleID,
	})
*/
package events
