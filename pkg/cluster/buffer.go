package cluster

import (
	"io"
	"sync"
	"sync/atomic"
)

// DefaultBufferSize is the size of each socket send and receive buffer.
const DefaultBufferSize = 16 * 1024

// WriteBuffer is a fixed-capacity window that requests are serialized into.
// It is full when the position reaches capacity and never grows.
type WriteBuffer struct {
	buf []byte
	pos int
}

func NewWriteBuffer(buf []byte) *WriteBuffer {
	return &WriteBuffer{buf: buf}
}

// Write copies as much of p as fits and returns the number of bytes copied.
func (b *WriteBuffer) Write(p []byte) int {
	n := copy(b.buf[b.pos:], p)
	b.pos += n
	return n
}

func (b *WriteBuffer) Available() int { return len(b.buf) - b.pos }

func (b *WriteBuffer) Full() bool { return b.pos >= len(b.buf) }

func (b *WriteBuffer) Len() int { return b.pos }

func (b *WriteBuffer) Cap() int { return len(b.buf) }

// Bytes returns the written portion of the buffer.
func (b *WriteBuffer) Bytes() []byte { return b.buf[:b.pos] }

func (b *WriteBuffer) Reset() { b.pos = 0 }

// ReadBuffer is a fixed-capacity window over received bytes. It is empty when
// the position reaches the filled length.
type ReadBuffer struct {
	buf []byte
	pos int
	end int
}

func NewReadBuffer(buf []byte) *ReadBuffer {
	return &ReadBuffer{buf: buf}
}

// Read copies up to len(p) unread bytes into p.
func (b *ReadBuffer) Read(p []byte) int {
	n := copy(p, b.buf[b.pos:b.end])
	b.pos += n
	return n
}

// Next returns up to n unread bytes without copying and advances past them.
// The slice is only valid until the buffer is refilled.
func (b *ReadBuffer) Next(n int) []byte {
	if rem := b.end - b.pos; n > rem {
		n = rem
	}
	p := b.buf[b.pos : b.pos+n]
	b.pos += n
	return p
}

func (b *ReadBuffer) Empty() bool { return b.pos >= b.end }

func (b *ReadBuffer) Remaining() int { return b.end - b.pos }

func (b *ReadBuffer) Cap() int { return len(b.buf) }

// Reset discards unread data.
func (b *ReadBuffer) Reset() {
	b.pos = 0
	b.end = 0
}

// Fill replaces the buffer contents with one Read from r. Unread bytes are
// discarded, so callers fill only once the buffer is empty.
func (b *ReadBuffer) Fill(r io.Reader) (int, error) {
	n, err := r.Read(b.buf)
	b.pos = 0
	b.end = max(n, 0)
	return n, err
}

// BufferPool hands out fixed-size byte slices keyed by size. Every Get must
// be paired with an explicit Release of the returned handle.
type BufferPool struct {
	mu          sync.RWMutex
	pools       map[int]*sync.Pool
	outstanding atomic.Int64
}

func NewBufferPool() *BufferPool {
	return &BufferPool{pools: make(map[int]*sync.Pool)}
}

// Get returns a handle to a buffer of exactly size bytes.
func (p *BufferPool) Get(size int) *BufferHandle {
	pool := p.poolFor(size)
	b := pool.Get().(*[]byte)
	p.outstanding.Add(1)
	return &BufferHandle{pool: p, buf: b}
}

// Outstanding returns the number of handles not yet released.
func (p *BufferPool) Outstanding() int64 {
	return p.outstanding.Load()
}

func (p *BufferPool) poolFor(size int) *sync.Pool {
	p.mu.RLock()
	pool, ok := p.pools[size]
	p.mu.RUnlock()
	if ok {
		return pool
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if pool, ok := p.pools[size]; ok {
		return pool
	}
	pool = &sync.Pool{
		New: func() interface{} {
			b := make([]byte, size)
			return &b
		},
	}
	p.pools[size] = pool
	return pool
}

func (p *BufferPool) put(b *[]byte) {
	p.poolFor(len(*b)).Put(b)
	p.outstanding.Add(-1)
}

// BufferHandle owns one pooled buffer until Release. It has a single owner;
// pass the handle, not the slice, when ownership moves.
type BufferHandle struct {
	pool *BufferPool
	buf  *[]byte
}

// Bytes returns the buffer, or nil after Release.
func (h *BufferHandle) Bytes() []byte {
	if h.buf == nil {
		return nil
	}
	return *h.buf
}

// Release returns the buffer to its pool. Releasing twice is a no-op.
func (h *BufferHandle) Release() {
	if h.buf == nil {
		return
	}
	b := h.buf
	h.buf = nil
	h.pool.put(b)
}
