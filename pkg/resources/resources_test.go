package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orbitalworks/starhold/pkg/events"
	"github.com/orbitalworks/starhold/pkg/types"
)

// TestLedgerAccounting tests set/add/remove arithmetic
func TestLedgerAccounting(t *testing.T) {
	l := NewLedger(nil)

	assert.Equal(t, 0.0, l.Amount(types.ResourceEnergy))

	l.Set(types.ResourceEnergy, 100)
	l.Add(types.ResourceEnergy, 50)
	assert.Equal(t, 150.0, l.Amount(types.ResourceEnergy))

	require.NoError(t, l.Remove(types.ResourceEnergy, 120))
	assert.Equal(t, 30.0, l.Amount(types.ResourceEnergy))
}

// TestRemoveShortage tests that an uncovered debit fails atomically and
// publishes a shortage event
func TestRemoveShortage(t *testing.T) {
	bus := events.NewBus()
	l := NewLedger(bus)
	l.Set(types.ResourceMinerals, 40)

	var shortage *events.Event
	bus.Subscribe(events.EventResourceShortage, func(e *events.Event) { shortage = e })

	err := l.Remove(types.ResourceMinerals, 100)
	require.Error(t, err)
	assert.Equal(t, 40.0, l.Amount(types.ResourceMinerals))

	require.NotNil(t, shortage)
	assert.Equal(t, "minerals", shortage.Data["resource"])
	assert.Equal(t, 100.0, shortage.Data["requested"])
}

// TestCanAffordAndDebit tests the multi-cost helpers
func TestCanAffordAndDebit(t *testing.T) {
	l := NewLedger(nil)
	l.Set(types.ResourceEnergy, 100)
	l.Set(types.ResourceMinerals, 100)

	costs := []types.ResourceCost{
		{Type: types.ResourceEnergy, Amount: 60},
		{Type: types.ResourceMinerals, Amount: 60},
	}
	assert.True(t, CanAfford(l, costs))
	require.NoError(t, Debit(l, costs))
	assert.Equal(t, 40.0, l.Amount(types.ResourceEnergy))

	assert.False(t, CanAfford(l, costs))
	assert.Error(t, Debit(l, costs))

	// Empty cost lists are trivially affordable
	assert.True(t, CanAfford(l, nil))
	assert.NoError(t, Debit(l, nil))
}

// TestDebitForAttribution tests that attributed debits name the module
// in the shortage event, through the Service interface as the
// registries call it
func TestDebitForAttribution(t *testing.T) {
	bus := events.NewBus()
	l := NewLedger(bus)
	l.Set(types.ResourceEnergy, 10)

	var shortage *events.Event
	bus.Subscribe(events.EventResourceShortage, func(e *events.Event) { shortage = e })

	var svc Service = l
	err := DebitFor(svc, "module-7", []types.ResourceCost{
		{Type: types.ResourceEnergy, Amount: 25},
	})
	require.Error(t, err)

	require.NotNil(t, shortage)
	assert.Equal(t, "module-7", shortage.ModuleID)
	assert.Equal(t, "energy", shortage.Data["resource"])
	assert.Equal(t, 10.0, l.Amount(types.ResourceEnergy))
}
