package errors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCircuitBreaker_ClosedAdmitsEverything(t *testing.T) {
	cb := NewCircuitBreaker("flush-words")

	for i := 0; i < 10; i++ {
		assert.True(t, cb.Allow())
	}
	assert.False(t, cb.Tripped())
}

func TestCircuitBreaker_TripsAtThreshold(t *testing.T) {
	cb := NewCircuitBreaker("flush-words", WithFailureThreshold(3))

	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Allow())
	assert.False(t, cb.Tripped())

	cb.RecordFailure()
	assert.True(t, cb.Tripped())
	assert.False(t, cb.Allow())
	assert.Equal(t, 3, cb.Failures())
}

func TestCircuitBreaker_SuccessClosesIt(t *testing.T) {
	cb := NewCircuitBreaker("flush-words", WithFailureThreshold(2))
	cb.RecordFailure()
	cb.RecordFailure()
	assert.True(t, cb.Tripped())

	cb.RecordSuccess()

	assert.False(t, cb.Tripped())
	assert.True(t, cb.Allow())
	assert.Equal(t, 0, cb.Failures())
}

func TestCircuitBreaker_SuccessResetsConsecutiveCount(t *testing.T) {
	cb := NewCircuitBreaker("flush-words", WithFailureThreshold(3))

	// Failures interleaved with successes never accumulate
	for i := 0; i < 5; i++ {
		cb.RecordFailure()
		cb.RecordSuccess()
	}

	assert.False(t, cb.Tripped())
}

func TestCircuitBreaker_CooldownAdmitsSingleProbe(t *testing.T) {
	cb := NewCircuitBreaker("flush-words",
		WithFailureThreshold(1),
		WithCooldown(20*time.Millisecond))

	cb.RecordFailure()
	assert.False(t, cb.Allow())

	time.Sleep(30 * time.Millisecond)

	// One probe passes, the window re-arms behind it
	assert.True(t, cb.Allow())
	assert.False(t, cb.Allow())
}

func TestCircuitBreaker_FailedProbeKeepsItOpen(t *testing.T) {
	cb := NewCircuitBreaker("flush-words",
		WithFailureThreshold(1),
		WithCooldown(20*time.Millisecond))

	cb.RecordFailure()
	time.Sleep(30 * time.Millisecond)
	assert.True(t, cb.Allow())

	cb.RecordFailure()

	assert.True(t, cb.Tripped())
	assert.False(t, cb.Allow())
}
