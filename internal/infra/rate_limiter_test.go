package infra

import (
	"testing"
	"time"
)

func TestRateLimiter_Burst(t *testing.T) {
	rl := NewRateLimiter(3, 1000)

	for i := 0; i < 3; i++ {
		if !rl.TryAcquire() {
			t.Fatalf("burst token %d rejected", i)
		}
	}
}

func TestRateLimiter_RejectsWhenEmpty(t *testing.T) {
	rl := NewRateLimiter(1, 0.001) // effectively no refill during the test

	if !rl.TryAcquire() {
		t.Fatal("first token rejected")
	}
	if rl.TryAcquire() {
		t.Fatal("empty bucket granted a token")
	}
}

func TestRateLimiter_Refills(t *testing.T) {
	rl := NewRateLimiter(1, 100) // 100 tokens/sec

	rl.TryAcquire()
	time.Sleep(30 * time.Millisecond)
	if !rl.TryAcquire() {
		t.Fatal("bucket did not refill")
	}
}
