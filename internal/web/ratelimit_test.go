package web

import (
	"testing"
	"time"
)

func TestRateLimiter_Window(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	defer rl.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	if !rl.allow("a") || !rl.allow("a") {
		t.Fatal("first two requests should be allowed")
	}
	if rl.allow("a") {
		t.Error("third request in window should be rejected")
	}
	if !rl.allow("b") {
		t.Error("other clients have their own budget")
	}

	now = now.Add(time.Minute + time.Second)
	if !rl.allow("a") {
		t.Error("budget should reset after the window")
	}
}

func TestRateLimiter_Cleanup(t *testing.T) {
	rl := newRateLimiter(5, time.Minute)
	defer rl.Close()

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.allow("stale")

	now = now.Add(3 * time.Minute)
	rl.allow("fresh")
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	if _, ok := rl.visitors["stale"]; ok {
		t.Error("stale visitor should be removed")
	}
	if _, ok := rl.visitors["fresh"]; !ok {
		t.Error("fresh visitor should be kept")
	}
}

func TestRateLimiter_CloseIsIdempotent(t *testing.T) {
	rl := newRateLimiter(1, time.Minute)
	rl.Close()
	rl.Close()
}
