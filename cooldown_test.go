package main

import (
	"testing"
	"time"
)

// testClock is a manually-advanced clock for gate tests.
type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestGate() (*callGate, *testClock) {
	clock := &testClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
	return newCallGate(defaultCooldown, clock.Now), clock
}

// TestCallGate_FirstCallAllowed verifies an untouched key is always callable.
func TestCallGate_FirstCallAllowed(t *testing.T) {
	gate, _ := newTestGate()
	ok, msg := gate.Check(gateKeySuggest)
	if !ok {
		t.Errorf("expected first call allowed, got rejection: %q", msg)
	}
}

// TestCallGate_RejectsInsideWindow verifies a second call 1 second after the
// first is rejected with a message citing the ~3 seconds remaining.
func TestCallGate_RejectsInsideWindow(t *testing.T) {
	gate, clock := newTestGate()

	gate.Record(gateKeySuggest)
	clock.Advance(time.Second)

	ok, msg := gate.Check(gateKeySuggest)
	if ok {
		t.Fatal("expected rejection 1s into a 4.1s window")
	}
	if msg != "wait 3 more seconds" {
		t.Errorf("message = %q, want %q", msg, "wait 3 more seconds")
	}
}

// TestCallGate_AllowsAfterWindow verifies the key unlocks once the window has
// fully elapsed.
func TestCallGate_AllowsAfterWindow(t *testing.T) {
	gate, clock := newTestGate()

	gate.Record(gateKeySuggest)
	clock.Advance(defaultCooldown)

	if ok, msg := gate.Check(gateKeySuggest); !ok {
		t.Errorf("expected call allowed after full window, got rejection: %q", msg)
	}
}

// TestCallGate_CheckDoesNotStamp verifies Check never moves the timestamp —
// only Record does.
func TestCallGate_CheckDoesNotStamp(t *testing.T) {
	gate, clock := newTestGate()

	gate.Record(gateKeySuggest)
	clock.Advance(2 * time.Second)
	gate.Check(gateKeySuggest)
	clock.Advance(2200 * time.Millisecond) // 4.2s since Record

	if ok, _ := gate.Check(gateKeySuggest); !ok {
		t.Error("Check appears to have re-stamped the key")
	}
}

// TestCallGate_KeysAreIndependent verifies one key's cooldown never blocks
// another key.
func TestCallGate_KeysAreIndependent(t *testing.T) {
	gate, clock := newTestGate()

	gate.Record(gateKeyFoodAnalysis)
	clock.Advance(time.Second)

	if ok, _ := gate.Check(gateKeyFoodAnalysis); ok {
		t.Error("expected food-analysis key rejected")
	}
	if ok, msg := gate.Check(gateKeyExerciseAnalysis); !ok {
		t.Errorf("expected exercise-analysis key unaffected, got rejection: %q", msg)
	}
}

// TestCallGate_IndependentGates verifies two gates never share state, so
// tests and sessions cannot leak cooldowns into each other.
func TestCallGate_IndependentGates(t *testing.T) {
	first, _ := newTestGate()
	second, _ := newTestGate()

	first.Record(gateKeySuggest)
	if ok, _ := second.Check(gateKeySuggest); !ok {
		t.Error("gates share last-call state")
	}
}

// TestCallGate_MinimumWaitMessage verifies sub-second remainders still tell
// the user to wait at least one second.
func TestCallGate_MinimumWaitMessage(t *testing.T) {
	gate, clock := newTestGate()

	gate.Record(gateKeySuggest)
	clock.Advance(defaultCooldown - 200*time.Millisecond)

	ok, msg := gate.Check(gateKeySuggest)
	if ok {
		t.Fatal("expected rejection 200ms before window end")
	}
	if msg != "wait 1 more seconds" {
		t.Errorf("message = %q, want %q", msg, "wait 1 more seconds")
	}
}
