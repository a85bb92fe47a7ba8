package arena

import (
	"sync"

	"github.com/wippyai/layout-runtime/errors"
)

// Native allocates instance buffers from the Go heap. It tracks outstanding
// buffers so tests and shutdown paths can assert nothing leaked.
type Native struct {
	mu   sync.Mutex
	live map[*byte]uint32
}

// NewNative creates a heap-backed arena.
func NewNative() *Native {
	return &Native{live: make(map[*byte]uint32)}
}

// Alloc returns a zeroed buffer of exactly size bytes.
func (a *Native) Alloc(size uint32) ([]byte, error) {
	if size == 0 {
		return nil, errors.AllocationFailed(errors.PhaseAlloc, 0)
	}
	buf := make([]byte, size)

	a.mu.Lock()
	a.live[&buf[0]] = size
	a.mu.Unlock()
	return buf, nil
}

// Free releases a buffer returned by Alloc. Unknown buffers are ignored.
func (a *Native) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}
	a.mu.Lock()
	delete(a.live, &buf[0])
	a.mu.Unlock()
}

// Outstanding reports the number of buffers not yet freed.
func (a *Native) Outstanding() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.live)
}
