package resilience

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestPeriodicReturnsFixedInterval(t *testing.T) {
	p := Periodic{Interval: 250 * time.Millisecond}
	for i := 0; i < 3; i++ {
		assert.Equal(t, 250*time.Millisecond, p.Schedule("a:1"))
	}
	p.Reset("a:1")
	assert.Equal(t, 250*time.Millisecond, p.Schedule("a:1"))
}

func TestBackoffDoublesUntilMax(t *testing.T) {
	b := NewBackoff(100*time.Millisecond, time.Second)

	want := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}
	for _, w := range want {
		assert.Equal(t, w, b.Schedule("a:1"))
	}

	// Addresses are tracked independently.
	assert.Equal(t, 100*time.Millisecond, b.Schedule("b:1"))

	b.Reset("a:1")
	assert.Equal(t, 100*time.Millisecond, b.Schedule("a:1"))
}

func TestBackoffDefaults(t *testing.T) {
	b := NewBackoff(0, 0)
	assert.Equal(t, 100*time.Millisecond, b.Schedule("x"))
}
