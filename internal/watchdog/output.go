package watchdog

import (
	"io"
	"sync"
	"sync/atomic"
)

// cappedBuffer accumulates up to max bytes from a stream. Crossing the
// cap raises the shared overflow flag and stops the reader; the bytes
// already inside the cap are kept.
type cappedBuffer struct {
	mu       sync.Mutex
	buf      []byte
	max      int
	overflow *atomic.Bool
}

func newCappedBuffer(max int, overflow *atomic.Bool) *cappedBuffer {
	return &cappedBuffer{max: max, overflow: overflow}
}

// consume drains r until EOF, the cap, or a read error.
func (b *cappedBuffer) consume(r io.Reader) {
	chunk := make([]byte, 1024)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			b.mu.Lock()
			allowed := b.max - len(b.buf)
			if n > allowed {
				b.buf = append(b.buf, chunk[:allowed]...)
				b.overflow.Store(true)
				b.mu.Unlock()
				return
			}
			b.buf = append(b.buf, chunk[:n]...)
			b.mu.Unlock()
		}
		if err != nil {
			return
		}
	}
}

func (b *cappedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}
