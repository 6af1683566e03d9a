package machine_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mna/bryony/lang/machine"
)

func TestGCSweepsUnreachableAndKeepsRooted(t *testing.T) {
	gc := machine.NewGC(nil)

	var kept machine.Value
	remove := gc.AddRoot(func(mark func(machine.Value)) { mark(kept) })
	defer remove()

	kept = gc.NewString("kept")
	discarded := gc.NewString("discarded")

	gc.Collect()

	assert.Equal(t, 1, gc.Stats.Cycles)
	assert.GreaterOrEqual(t, gc.Stats.ObjectsFreed, 1)

	// The discarded string's bytes must no longer resolve to a live interned
	// object: re-interning them allocates a fresh one rather than finding a
	// freed pointer.
	again := gc.NewString("discarded")
	assert.NotNil(t, again)
	assert.NotSame(t, discarded, again)
}

func TestGCStressModeCollectsOnEveryAllocation(t *testing.T) {
	gc := machine.NewGC(nil)
	gc.Stress = true

	var kept machine.Value
	remove := gc.AddRoot(func(mark func(machine.Value)) { mark(kept) })
	defer remove()

	kept = gc.NewString("alive")
	for i := 0; i < 50; i++ {
		gc.NewString("throwaway")
	}

	assert.Equal(t, "alive", kept.String())
	assert.True(t, gc.Stats.Cycles > 0)
}
