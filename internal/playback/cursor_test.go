package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCursorAdvancesWithoutDrift(t *testing.T) {
	c := newSourceCursor(44100, 0)
	var total int64
	for i := 0; i < 44100; i++ {
		c.advance(1)
		total++
	}
	assert.Equal(t, int64(1_000_000), c.position())
	_ = total
}

func TestCursorBulkAdvanceMatchesFrameByFrame(t *testing.T) {
	bulk := newSourceCursor(48000, 0)
	bulk.advance(2048)

	framewise := newSourceCursor(48000, 0)
	for i := 0; i < 2048; i++ {
		framewise.advance(1)
	}

	assert.Equal(t, framewise.position(), bulk.position())
}
