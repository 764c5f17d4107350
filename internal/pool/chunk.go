package pool

import "sync"

// ChunkSize is the size of the buffers handed out by GetChunk.
const ChunkSize = 32 << 10

var chunkPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, ChunkSize)
		return &b
	},
}

// GetChunk returns a buffer of ChunkSize bytes. Its contents are
// undefined.
func GetChunk() *[]byte {
	return chunkPool.Get().(*[]byte)
}

// ReleaseChunk returns b to the pool. b must not be used afterwards.
func ReleaseChunk(b *[]byte) {
	if b == nil || cap(*b) < ChunkSize {
		return
	}
	*b = (*b)[:ChunkSize]
	chunkPool.Put(b)
}
