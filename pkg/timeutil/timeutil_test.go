package timeutil

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMaxDuration(t *testing.T) {
	tests := []struct {
		name      string
		durations []time.Duration
		want      time.Duration
	}{
		{"multiple values returns maximum", []time.Duration{100 * time.Millisecond, 500 * time.Millisecond, 200 * time.Millisecond}, 500 * time.Millisecond},
		{"single value returns that value", []time.Duration{300 * time.Millisecond}, 300 * time.Millisecond},
		{"empty slice returns zero", []time.Duration{}, 0},
		{"negative durations handled correctly", []time.Duration{-100 * time.Millisecond, 50 * time.Millisecond, -200 * time.Millisecond}, 50 * time.Millisecond},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, MaxDuration(tt.durations))
		})
	}
}

func TestMaxDurationDoesNotMutateInput(t *testing.T) {
	original := []time.Duration{3 * time.Second, 1 * time.Second, 2 * time.Second}
	expected := append([]time.Duration(nil), original...)
	_ = MaxDuration(original)
	assert.Equal(t, expected, original)
}

func TestExponentialBackoffDelay(t *testing.T) {
	param := NewBackoffParam(1*time.Second, 2.0, 30*time.Second)
	rng := rand.New(rand.NewSource(1))

	d1 := ExponentialBackoffDelay(1, 0, *rng, param)
	assert.Equal(t, 1*time.Second, d1)

	d2 := ExponentialBackoffDelay(2, 0, *rng, param)
	assert.Equal(t, 2*time.Second, d2)

	d3 := ExponentialBackoffDelay(3, 0, *rng, param)
	assert.Equal(t, 4*time.Second, d3)
}

func TestExponentialBackoffDelay_CapsAtMax(t *testing.T) {
	param := NewBackoffParam(1*time.Second, 2.0, 3*time.Second)
	rng := rand.New(rand.NewSource(1))

	d := ExponentialBackoffDelay(10, 0, *rng, param)
	assert.Equal(t, 3*time.Second, d)
}

func TestExponentialBackoffDelay_JitterWithinBounds(t *testing.T) {
	param := NewBackoffParam(1*time.Second, 2.0, 30*time.Second)
	rng := rand.New(rand.NewSource(42))

	for i := 0; i < 50; i++ {
		d := ExponentialBackoffDelay(1, 200*time.Millisecond, *rng, param)
		assert.GreaterOrEqual(t, d, 1*time.Second)
		assert.LessOrEqual(t, d, 1*time.Second+200*time.Millisecond)
	}
}

func TestRandomWait_WithinHalfToOneAndHalfRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	base := 100 * time.Millisecond
	for i := 0; i < 100; i++ {
		w := RandomWait(base, rng)
		assert.GreaterOrEqual(t, w, 50*time.Millisecond)
		assert.LessOrEqual(t, w, 150*time.Millisecond)
	}
}

func TestRandomWait_ZeroBaseStaysZero(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	assert.Equal(t, time.Duration(0), RandomWait(0, rng))
}
