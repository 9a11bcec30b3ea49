package infra

import (
	"testing"
	"time"
)

func testBreaker(timeout time.Duration) *CircuitBreaker {
	return NewCircuitBreaker(CircuitBreakerConfig{
		Name:             "test",
		FailureThreshold: 3,
		SuccessThreshold: 2,
		Timeout:          timeout,
	})
}

func TestCircuitBreaker_OpensAfterFailures(t *testing.T) {
	cb := testBreaker(time.Hour)

	if !cb.Allow() {
		t.Fatal("closed breaker should allow")
	}

	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != BreakerClosed {
		t.Fatal("breaker opened before threshold")
	}
	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatal("breaker not open after threshold failures")
	}
	if cb.Allow() {
		t.Fatal("open breaker should reject")
	}
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb := testBreaker(time.Hour)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordSuccess()
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != BreakerClosed {
		t.Fatal("success should reset the failure streak")
	}
}

func TestCircuitBreaker_HalfOpenRecovery(t *testing.T) {
	cb := testBreaker(10 * time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatal("breaker should be open")
	}

	time.Sleep(20 * time.Millisecond)
	if !cb.Allow() {
		t.Fatal("breaker should probe after timeout")
	}
	if cb.State() != BreakerHalfOpen {
		t.Fatalf("state = %s, want HALF_OPEN", cb.State())
	}

	cb.RecordSuccess()
	cb.RecordSuccess()
	if cb.State() != BreakerClosed {
		t.Fatal("breaker should close after success threshold")
	}
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	cb := testBreaker(10 * time.Millisecond)

	cb.RecordFailure()
	cb.RecordFailure()
	cb.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	cb.Allow() // transitions to half-open

	cb.RecordFailure()
	if cb.State() != BreakerOpen {
		t.Fatal("half-open failure should reopen the breaker")
	}
}
