package drift

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCorrectorDeadbandSuppressesSmallError(t *testing.T) {
	c := NewCorrector(44100)
	sched := c.Update(1_000, time.Now(), Playing)
	assert.True(t, sched.Zero())
	assert.False(t, c.Reanchored())
}

func TestCorrectorProportionalDropOnPositiveError(t *testing.T) {
	c := NewCorrector(44100)
	now := time.Now()
	var sched Schedule
	for i := 0; i < 50; i++ {
		sched = c.Update(20_000, now, Playing)
		now = now.Add(10 * time.Millisecond)
	}
	assert.Greater(t, sched.DropEveryN, int64(0))
	assert.Equal(t, int64(0), sched.InsertEveryN)
}

func TestCorrectorProportionalInsertOnNegativeError(t *testing.T) {
	c := NewCorrector(44100)
	now := time.Now()
	var sched Schedule
	for i := 0; i < 50; i++ {
		sched = c.Update(-20_000, now, Playing)
		now = now.Add(10 * time.Millisecond)
	}
	assert.Greater(t, sched.InsertEveryN, int64(0))
	assert.Equal(t, int64(0), sched.DropEveryN)
}

func TestCorrectorCadenceCappedAtFourPercent(t *testing.T) {
	c := NewCorrector(44100)
	now := time.Now()
	var sched Schedule
	for i := 0; i < 50; i++ {
		sched = c.Update(800_000_000, now, WaitingForStart)
		now = now.Add(10 * time.Millisecond)
	}
	minInterval := int64(1.0 / (0.04))
	assert.GreaterOrEqual(t, sched.DropEveryN, minInterval)
}

func TestCorrectorReanchorsOnGrossErrorWhilePlaying(t *testing.T) {
	c := NewCorrector(44100)
	now := time.Now()
	sched := c.Update(750_000, now, Playing)
	assert.True(t, sched.Zero())
	assert.True(t, c.Reanchored())
}

func TestCorrectorReanchorHysteresis(t *testing.T) {
	c := NewCorrector(44100)
	now := time.Now()
	c.Update(750_000, now, Playing)
	assert.True(t, c.Reanchored())

	// Within the 5s cooldown, a second gross error must not re-anchor again.
	now = now.Add(1 * time.Second)
	c.Update(750_000, now, Playing)
	assert.False(t, c.Reanchored())

	// After the cooldown elapses, a fresh gross error re-anchors again.
	now = now.Add(5 * time.Second)
	c.Update(750_000, now, Playing)
	assert.True(t, c.Reanchored())
}

func TestCorrectorNoReanchorWhenNotPlaying(t *testing.T) {
	c := NewCorrector(44100)
	now := time.Now()
	c.Update(750_000, now, WaitingForStart)
	sched := c.Update(750_000, now, WaitingForStart)
	assert.False(t, sched.Zero())
	assert.False(t, c.Reanchored())
}
