package security

import (
	"log/slog"
	"testing"
)

func newTestRateLimiter(t *testing.T, rps, burst int) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(rps, burst, slog.New(slog.DiscardHandler))
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiterAllowsWithinBurst(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 3)

	for i := 0; i < 3; i++ {
		if !rl.Allow("1.2.3.4") {
			t.Fatalf("request %d within burst was denied", i+1)
		}
	}
	if rl.Allow("1.2.3.4") {
		t.Error("request beyond burst was allowed")
	}
}

func TestRateLimiterIsolatesIdentifiers(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 1)

	if !rl.Allow("1.2.3.4") {
		t.Fatal("first identifier denied")
	}
	if rl.Allow("1.2.3.4") {
		t.Error("first identifier should be exhausted")
	}
	if !rl.Allow("5.6.7.8") {
		t.Error("second identifier must not share the first's bucket")
	}
}

func TestRateLimiterEvictsWhenFull(t *testing.T) {
	rl := newTestRateLimiter(t, 1, 1)
	rl.maxEntries = 2

	rl.Allow("a")
	rl.Allow("b")
	rl.Allow("c")

	rl.mu.Lock()
	n := len(rl.limiters)
	rl.mu.Unlock()
	if n > 2 {
		t.Errorf("tracked %d identifiers, want at most maxEntries", n)
	}
}
