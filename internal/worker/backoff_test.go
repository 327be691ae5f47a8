package worker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestBackoffDelayDoublesUntilCap(t *testing.T) {
	b := DefaultBackoff()

	assert.Equal(t, 5*time.Second, b.Delay(1))
	assert.Equal(t, 10*time.Second, b.Delay(2))
	assert.Equal(t, 20*time.Second, b.Delay(3))
	assert.Equal(t, 40*time.Second, b.Delay(4))
	assert.Equal(t, 80*time.Second, b.Delay(5))

	// Capped at the maximum from here on
	assert.Equal(t, 2*time.Minute, b.Delay(6))
	assert.Equal(t, 2*time.Minute, b.Delay(20))
}

func TestBackoffDelayFirstAttempt(t *testing.T) {
	b := Backoff{Initial: time.Second, Max: time.Minute, Multiplier: 2}

	assert.Equal(t, time.Duration(0), b.Delay(0))
	assert.Equal(t, time.Second, b.Delay(1))
}
