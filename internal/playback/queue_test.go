package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueuePushAndReadFrame(t *testing.T) {
	q := &chunkQueue{}
	q.push(queuedChunk{sourceTS: 0, data: []byte{1, 2, 3, 4, 5, 6, 7, 8}})

	dst := make([]byte, 4)
	assert.True(t, q.readFrame(dst, 4))
	assert.Equal(t, []byte{1, 2, 3, 4}, dst)
	assert.Equal(t, 1, q.len())

	assert.True(t, q.readFrame(dst, 4))
	assert.Equal(t, []byte{5, 6, 7, 8}, dst)
	assert.Equal(t, 0, q.len())

	assert.False(t, q.readFrame(dst, 4))
}

func TestQueueSpansMultipleChunks(t *testing.T) {
	q := &chunkQueue{}
	q.push(queuedChunk{sourceTS: 0, data: []byte{1, 2, 3, 4}})
	q.push(queuedChunk{sourceTS: 100, data: []byte{5, 6, 7, 8}})

	dst := make([]byte, 4)
	assert.True(t, q.readFrame(dst, 4))
	assert.Equal(t, []byte{1, 2, 3, 4}, dst)
	assert.True(t, q.readFrame(dst, 4))
	assert.Equal(t, []byte{5, 6, 7, 8}, dst)
	assert.False(t, q.readFrame(dst, 4))
}

func TestQueueBufferedBytes(t *testing.T) {
	q := &chunkQueue{}
	q.push(queuedChunk{data: make([]byte, 16)})
	q.push(queuedChunk{data: make([]byte, 8)})
	assert.Equal(t, int64(24), q.bufferedBytes())

	dst := make([]byte, 4)
	q.readFrame(dst, 4)
	assert.Equal(t, int64(20), q.bufferedBytes())
}

func TestQueueDropFrame(t *testing.T) {
	q := &chunkQueue{}
	q.push(queuedChunk{data: []byte{1, 2, 3, 4, 5, 6, 7, 8}})

	assert.True(t, q.dropFrame(4))
	assert.Equal(t, int64(4), q.bufferedBytes())

	dst := make([]byte, 4)
	assert.True(t, q.readFrame(dst, 4))
	assert.Equal(t, []byte{5, 6, 7, 8}, dst)
}

func TestQueueClear(t *testing.T) {
	q := &chunkQueue{}
	q.push(queuedChunk{data: make([]byte, 16)})
	q.clear()
	assert.Equal(t, 0, q.len())
	assert.Equal(t, int64(0), q.bufferedBytes())
}

func TestQueueCompactsAfterManyDrains(t *testing.T) {
	q := &chunkQueue{}
	for i := 0; i < 600; i++ {
		q.push(queuedChunk{data: []byte{1, 2, 3, 4}})
	}
	dst := make([]byte, 4)
	for i := 0; i < 500; i++ {
		assert.True(t, q.readFrame(dst, 4))
	}
	assert.Equal(t, 100, q.len())
	assert.Less(t, len(q.items), 600)
}
