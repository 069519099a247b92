package mux

import "github.com/vortun/vortun/internal/bufpool"

// ChunkSize is the linear buffer's unit of allocation: a deque of 4 KiB
// byte chunks supporting append and retrieve, preserving FIFO order, with
// chunk memory drawn from a caller-owned buffer pool sized to match.
const ChunkSize = 4096

const chunkSize = ChunkSize

// linearBuffer is a FIFO byte queue backed by pooled fixed-size chunks,
// so large transfers don't force one giant contiguous allocation and idle
// streams give their chunks back to the pool. The pool is owned by the
// caller that built the Session (a tunnel.Client or tunnel.Server), not
// shared process-wide.
type linearBuffer struct {
	pool   *bufpool.Pool
	chunks [][]byte // each full chunkSize except the tail, which may be partial
	head   int      // read offset into chunks[0]
	size   int       // total unread bytes across all chunks
}

func (b *linearBuffer) Len() int { return b.size }

// Write appends p to the buffer, pulling chunks from the owning pool.
func (b *linearBuffer) Write(p []byte) {
	for len(p) > 0 {
		if len(b.chunks) == 0 || len(b.tail()) == chunkSize {
			b.chunks = append(b.chunks, b.pool.Get()[:0])
		}
		tail := b.tail()
		room := chunkSize - len(tail)
		n := room
		if n > len(p) {
			n = len(p)
		}
		idx := len(b.chunks) - 1
		b.chunks[idx] = append(tail, p[:n]...)
		p = p[n:]
		b.size += n
	}
}

func (b *linearBuffer) tail() []byte {
	return b.chunks[len(b.chunks)-1]
}

// Read drains up to len(p) bytes in FIFO order, releasing emptied chunks
// back to the pool.
func (b *linearBuffer) Read(p []byte) int {
	total := 0
	for total < len(p) && len(b.chunks) > 0 {
		head := b.chunks[0][b.head:]
		n := copy(p[total:], head)
		total += n
		b.head += n
		b.size -= n
		if b.head == len(b.chunks[0]) {
			b.pool.Put(b.chunks[0][:chunkSize])
			b.chunks = b.chunks[1:]
			b.head = 0
		}
	}
	return total
}
