package main

import (
	"fmt"
	"math"
	"sync"
	"time"
)

// defaultCooldown is the minimum spacing between calls to the suggestion and
// analysis backends.
const defaultCooldown = 4100 * time.Millisecond

// Gate keys used by the suggestion/analysis call sites. The plain suggestion
// flows share one key; the analysis flows are keyed independently so a food
// analysis does not lock out an exercise analysis.
const (
	gateKeySuggest          = "suggest"
	gateKeyFoodAnalysis     = "food-analysis"
	gateKeyExerciseAnalysis = "exercise-analysis"
)

// callGate is an advisory cooldown guard for outbound collaborator calls. It
// only prevents local call issuance — it cannot cancel in-flight calls or
// enforce anything server-side. The clock is injected so tests control time
// and independent gates never share state.
type callGate struct {
	mu       sync.Mutex
	window   time.Duration
	now      func() time.Time
	lastCall map[string]time.Time
}

// newCallGate builds a gate with the given window. A nil clock uses time.Now.
func newCallGate(window time.Duration, now func() time.Time) *callGate {
	if now == nil {
		now = time.Now
	}
	return &callGate{
		window:   window,
		now:      now,
		lastCall: make(map[string]time.Time),
	}
}

// Check reports whether a call under key may be issued. When still inside the
// window it returns false and a human-readable wait message; the timestamp is
// not touched either way.
func (g *callGate) Check(key string) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	last, seen := g.lastCall[key]
	if !seen {
		return true, ""
	}
	elapsed := g.now().Sub(last)
	if elapsed >= g.window {
		return true, ""
	}
	remaining := g.window - elapsed
	secs := int(math.Round(remaining.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return false, fmt.Sprintf("wait %d more seconds", secs)
}

// Record stamps key with the current time. Call it immediately before
// dispatching the guarded call — not after it resolves — so a slow call
// cannot let a second one slip inside the window.
func (g *callGate) Record(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lastCall[key] = g.now()
}
