package ratelimit

import (
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestAllowExhaustsTokens(t *testing.T) {
	rl := New(Config{
		MaxRequestsPerMinute: 3,
		WindowDuration:       time.Minute,
		Logger:               zap.NewNop(),
	})
	defer rl.Stop()

	for i := 0; i < 3; i++ {
		if !rl.allow("client-a") {
			t.Fatalf("request %d should be allowed", i+1)
		}
	}
	if rl.allow("client-a") {
		t.Error("request over the limit should be denied")
	}
}

func TestAllowIsolatesKeys(t *testing.T) {
	rl := New(Config{
		MaxRequestsPerMinute: 1,
		Logger:               zap.NewNop(),
	})
	defer rl.Stop()

	if !rl.allow("client-a") {
		t.Fatal("first request for client-a should be allowed")
	}
	if !rl.allow("client-b") {
		t.Error("client-b should have its own bucket")
	}
}

func TestAllowRefills(t *testing.T) {
	rl := New(Config{
		MaxRequestsPerMinute: 2,
		WindowDuration:       20 * time.Millisecond,
		Logger:               zap.NewNop(),
	})
	defer rl.Stop()

	rl.allow("client-a")
	rl.allow("client-a")
	if rl.allow("client-a") {
		t.Fatal("bucket should be empty")
	}

	time.Sleep(30 * time.Millisecond)
	if !rl.allow("client-a") {
		t.Error("bucket should have refilled")
	}
}
