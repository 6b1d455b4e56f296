package circuit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBreakerTripsAtThreshold(t *testing.T) {
	b := NewBreaker("gateway", 3, time.Hour)

	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow())

	b.RecordFailure()
	assert.False(t, b.Allow())
}

func TestBreakerSuccessResetsTheCount(t *testing.T) {
	b := NewBreaker("gateway", 3, time.Hour)

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()
	assert.True(t, b.Allow())
}

func TestBreakerCooldownAllowsATrialCall(t *testing.T) {
	b := NewBreaker("gateway", 1, 10*time.Millisecond)

	b.RecordFailure()
	assert.False(t, b.Allow())

	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())

	t.Run("trial failure reopens", func(t *testing.T) {
		b.RecordFailure()
		assert.False(t, b.Allow())
	})
}

func TestBreakerClosesAfterTrialSuccess(t *testing.T) {
	b := NewBreaker("gateway", 1, 10*time.Millisecond)

	b.RecordFailure()
	time.Sleep(20 * time.Millisecond)
	assert.True(t, b.Allow())
	b.RecordSuccess()
	assert.True(t, b.Allow())
}
