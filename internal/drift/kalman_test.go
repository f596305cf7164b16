package drift

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKalmanFilterConvergesToConstantError(t *testing.T) {
	k := NewKalmanFilter()
	var mean float64
	for i := 0; i < 200; i++ {
		mean = k.Update(15_000)
	}
	assert.InDelta(t, 15_000, mean, 50)
}

func TestKalmanFilterMonotonicTowardTarget(t *testing.T) {
	k := NewKalmanFilter()
	k.Update(0)
	prev := k.Mean()
	for i := 0; i < 50; i++ {
		next := k.Update(10_000)
		assert.GreaterOrEqual(t, next, prev-1e-9)
		prev = next
	}
}

func TestKalmanFilterResetClearsSeed(t *testing.T) {
	k := NewKalmanFilter()
	k.Update(5_000)
	k.Reset()
	assert.Equal(t, float64(0), k.Mean())
	got := k.Update(-5_000)
	assert.Equal(t, float64(-5_000), got)
}
