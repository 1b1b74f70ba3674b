package preempt

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNoneModeNeverYields(t *testing.T) {
	c := New(None, nil)
	c.Fire()
	assert.False(t, c.ShouldYield())
	assert.False(t, c.Armed())
}

func TestCooperativeFireThenShouldYieldIsEdgeTriggered(t *testing.T) {
	c := New(Cooperative, nil)
	assert.False(t, c.ShouldYield())

	c.Fire()
	assert.True(t, c.Armed())
	assert.True(t, c.ShouldYield(), "first observation after Fire must yield")
	assert.False(t, c.ShouldYield(), "second observation must not yield again until re-armed")
}

func TestFireIsIdempotentWhileArmed(t *testing.T) {
	notified := 0
	c := New(Interrupt, func() { notified++ })
	c.Fire()
	c.Fire()
	c.Fire()
	assert.Equal(t, 1, notified, "re-firing an already-armed channel must not notify again")
	assert.True(t, c.ShouldYield())
}

func TestDisableSuppressesShouldYieldEvenWhenArmed(t *testing.T) {
	c := New(Cooperative, nil)
	c.Disable()
	c.Fire()
	assert.False(t, c.ShouldYield(), "a disabled gate must never yield")
	assert.True(t, c.Armed(), "the fire must remain pending across the disabled window")

	c.Enable()
	assert.True(t, c.ShouldYield(), "once re-enabled, the pending fire must be observed")
}

func TestNestedDisableRequiresMatchingEnables(t *testing.T) {
	c := New(Cooperative, nil)
	c.Disable()
	c.Disable()
	c.Fire()
	c.Enable()
	assert.False(t, c.ShouldYield(), "one enable must not lift a doubly-disabled gate")
	c.Enable()
	assert.True(t, c.ShouldYield())
}

func TestDisarmClearsPendingFireWithoutObservation(t *testing.T) {
	c := New(Cooperative, nil)
	c.Fire()
	c.Disarm()
	assert.False(t, c.ShouldYield())
}

func TestModeStringers(t *testing.T) {
	assert.Equal(t, "NONE", None.String())
	assert.Equal(t, "COOPERATIVE", Cooperative.String())
	assert.Equal(t, "INTERRUPT", Interrupt.String())
}
