package arena

import (
	"sync"

	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/layout-runtime/errors"
)

// Guest carves instance buffers out of a WASM module's linear memory.
// Alloc returns a view of the memory, so host-side value witnesses operate
// directly on guest-resident values.
//
// Allocation is a bump pointer with rewind-on-free: freeing the most recent
// buffers returns their space, freeing out of order parks the region until
// the allocations above it are freed too.
type Guest struct {
	mu     sync.Mutex
	mem    api.Memory
	base   uint32
	next   uint32
	live   map[*byte]region
	parked map[uint32]uint32 // offset -> end of freed regions awaiting rewind
}

type region struct {
	offset uint32
	end    uint32
}

// NewGuest creates an arena over mem, allocating upward from base. base is
// rounded up to 8-byte alignment.
func NewGuest(mem api.Memory, base uint32) (*Guest, error) {
	if mem == nil {
		return nil, errors.NilPointer(errors.PhaseAlloc, "guest memory")
	}
	base = align8(base)
	if base > mem.Size() {
		return nil, errors.OutOfBounds(errors.PhaseAlloc, int(base), int(mem.Size()))
	}
	return &Guest{
		mem:    mem,
		base:   base,
		next:   base,
		live:   make(map[*byte]region),
		parked: make(map[uint32]uint32),
	}, nil
}

func align8(v uint32) uint32 {
	return (v + 7) &^ 7
}

// Alloc returns a zeroed view of size bytes of linear memory.
func (g *Guest) Alloc(size uint32) ([]byte, error) {
	if size == 0 {
		return nil, errors.AllocationFailed(errors.PhaseAlloc, 0)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	offset := g.next
	end := align8(offset + size)
	if end < offset || end > g.mem.Size() {
		return nil, errors.AllocationFailed(errors.PhaseAlloc, size)
	}

	buf, ok := g.mem.Read(offset, size)
	if !ok {
		return nil, errors.AllocationFailed(errors.PhaseAlloc, size)
	}
	for i := range buf {
		buf[i] = 0
	}

	g.live[&buf[0]] = region{offset: offset, end: end}
	g.next = end
	return buf, nil
}

// Free releases a buffer returned by Alloc. Unknown buffers are ignored.
func (g *Guest) Free(buf []byte) {
	if len(buf) == 0 {
		return
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	reg, ok := g.live[&buf[0]]
	if !ok {
		return
	}
	delete(g.live, &buf[0])
	g.parked[reg.offset] = reg.end

	// Rewind over any contiguous run of freed regions ending at next.
	for {
		rewound := false
		for offset, end := range g.parked {
			if end == g.next {
				g.next = offset
				delete(g.parked, offset)
				rewound = true
			}
		}
		if !rewound {
			return
		}
	}
}

// Size reports the linear memory capacity in bytes.
func (g *Guest) Size() uint32 {
	return g.mem.Size()
}

// Used reports the bytes currently reserved above base.
func (g *Guest) Used() uint32 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.next - g.base
}
