package heap

import (
	"encoding/binary"
	"sync"
	"sync/atomic"
)

// SpareBitsMask covers the bits a handle word may use for pointer tagging.
// Strong and unowned loads strip these before touching the object table.
const SpareBitsMask uint64 = 0xF000_0000_0000_0007

// BridgeTagMask marks a bridge-object word as a tagged immediate that does
// not reference a heap object at all.
const BridgeTagMask uint64 = 0x8000_0000_0000_0000

type object struct {
	strong  atomic.Int64
	unowned atomic.Int64
	weak    atomic.Int64
	storage []byte
	boxed   error
}

// Heap is a handle-indexed object table with atomic reference counts.
type Heap struct {
	mu      sync.RWMutex
	objects map[uint64]*object
	next    uint64
}

func New() *Heap {
	return &Heap{
		objects: make(map[uint64]*object),
		next:    handleStride,
	}
}

var global = New()

// Global returns the process-wide heap used by default engine wiring.
func Global() *Heap {
	return global
}

// handleStride keeps every issued handle clear of SpareBitsMask's low bits,
// the alignment guarantee real object pointers carry. Stripping the mask
// from a plain handle is then a no-op.
const handleStride = 8

// Allocate creates an object with a strong count of one and an implicit
// unowned count of one, the convention for freshly initialized objects.
// size bytes of payload storage are reserved for Storage.
func (h *Heap) Allocate(size uintptr) uint64 {
	obj := &object{storage: make([]byte, size)}
	obj.strong.Store(1)
	obj.unowned.Store(1)

	h.mu.Lock()
	handle := h.next
	h.next += handleStride
	h.objects[handle] = obj
	h.mu.Unlock()
	return handle
}

// AllocateError creates an error box holding err.
func (h *Heap) AllocateError(err error) uint64 {
	handle := h.Allocate(0)
	h.lookup(handle).boxed = err
	return handle
}

// Boxed returns the error held by an error box.
func (h *Heap) Boxed(handle uint64) error {
	if obj := h.lookup(handle); obj != nil {
		return obj.boxed
	}
	return nil
}

// Storage returns the object's payload storage.
func (h *Heap) Storage(handle uint64) []byte {
	if obj := h.lookup(handle); obj != nil {
		return obj.storage
	}
	return nil
}

func (h *Heap) lookup(handle uint64) *object {
	if handle == 0 {
		return nil
	}
	h.mu.RLock()
	obj := h.objects[handle&^SpareBitsMask]
	h.mu.RUnlock()
	return obj
}

func (h *Heap) reap(handle uint64, obj *object) {
	if obj.strong.Load() > 0 || obj.unowned.Load() > 0 || obj.weak.Load() > 0 {
		return
	}
	h.mu.Lock()
	delete(h.objects, handle&^SpareBitsMask)
	h.mu.Unlock()
}

// Retain increments the strong count.
func (h *Heap) Retain(handle uint64) {
	if obj := h.lookup(handle); obj != nil {
		obj.strong.Add(1)
	}
}

// Release decrements the strong count. When it reaches zero the object is
// deinitialized: its payload is dropped and the implicit unowned reference
// is released.
func (h *Heap) Release(handle uint64) {
	obj := h.lookup(handle)
	if obj == nil {
		return
	}
	if obj.strong.Add(-1) == 0 {
		obj.storage = nil
		h.UnownedRelease(handle)
	}
}

// UnownedRetain increments the unowned count.
func (h *Heap) UnownedRetain(handle uint64) {
	if obj := h.lookup(handle); obj != nil {
		obj.unowned.Add(1)
	}
}

// UnownedRelease decrements the unowned count, reaping the object once all
// counts are zero.
func (h *Heap) UnownedRelease(handle uint64) {
	if obj := h.lookup(handle); obj != nil {
		obj.unowned.Add(-1)
		h.reap(handle, obj)
	}
}

// weakRetain / weakRelease track weak cell registrations.
func (h *Heap) weakRetain(handle uint64) {
	if obj := h.lookup(handle); obj != nil {
		obj.weak.Add(1)
	}
}

func (h *Heap) weakRelease(handle uint64) {
	if obj := h.lookup(handle); obj != nil {
		obj.weak.Add(-1)
		h.reap(handle, obj)
	}
}

// WeakInit registers a weak reference to handle in cell.
func (h *Heap) WeakInit(cell []byte, handle uint64) {
	binary.LittleEndian.PutUint64(cell, handle)
	h.weakRetain(handle)
}

// WeakDestroy tears down the weak registration held in cell.
func (h *Heap) WeakDestroy(cell []byte) {
	h.weakRelease(binary.LittleEndian.Uint64(cell))
}

// WeakCopyInit initializes dest as a second registration of src's referent.
func (h *Heap) WeakCopyInit(dest, src []byte) {
	handle := binary.LittleEndian.Uint64(src)
	binary.LittleEndian.PutUint64(dest, handle)
	h.weakRetain(handle)
}

// WeakTakeInit moves src's registration into dest. No count adjustment: the
// registration itself transfers.
func (h *Heap) WeakTakeInit(dest, src []byte) {
	binary.LittleEndian.PutUint64(dest, binary.LittleEndian.Uint64(src))
	binary.LittleEndian.PutUint64(src, 0)
}

// Unknown-object primitives. Without a foreign object runtime every unknown
// reference is a native one, so these alias the native operations; the
// split is kept because the layout string distinguishes the kinds.

func (h *Heap) UnknownRetain(handle uint64) {
	h.Retain(handle &^ SpareBitsMask)
}

func (h *Heap) UnknownRelease(handle uint64) {
	h.Release(handle &^ SpareBitsMask)
}

// UnknownUnownedDestroy releases the unowned reference held in cell.
func (h *Heap) UnknownUnownedDestroy(cell []byte) {
	h.UnownedRelease(binary.LittleEndian.Uint64(cell))
}

// UnknownUnownedCopyInit initializes dest's cell as a second unowned
// reference to src's referent.
func (h *Heap) UnknownUnownedCopyInit(dest, src []byte) {
	handle := binary.LittleEndian.Uint64(src)
	binary.LittleEndian.PutUint64(dest, handle)
	h.UnownedRetain(handle)
}

func (h *Heap) UnknownWeakDestroy(cell []byte) {
	h.WeakDestroy(cell)
}

func (h *Heap) UnknownWeakCopyInit(dest, src []byte) {
	h.WeakCopyInit(dest, src)
}

func (h *Heap) UnknownWeakTakeInit(dest, src []byte) {
	h.WeakTakeInit(dest, src)
}

// BridgeRetain retains a bridge-object word unless it is a tagged immediate.
func (h *Heap) BridgeRetain(word uint64) {
	if word&BridgeTagMask != 0 {
		return
	}
	h.Retain(word &^ SpareBitsMask)
}

// BridgeRelease releases a bridge-object word unless it is a tagged immediate.
func (h *Heap) BridgeRelease(word uint64) {
	if word&BridgeTagMask != 0 {
		return
	}
	h.Release(word &^ SpareBitsMask)
}

// ErrorRetain retains an error box.
func (h *Heap) ErrorRetain(handle uint64) {
	h.Retain(handle)
}

// ErrorRelease releases an error box.
func (h *Heap) ErrorRelease(handle uint64) {
	h.Release(handle)
}

// StrongCount reports the current strong count, or 0 for a dead handle.
func (h *Heap) StrongCount(handle uint64) int64 {
	if obj := h.lookup(handle); obj != nil {
		return obj.strong.Load()
	}
	return 0
}

// UnownedCount reports the current unowned count.
func (h *Heap) UnownedCount(handle uint64) int64 {
	if obj := h.lookup(handle); obj != nil {
		return obj.unowned.Load()
	}
	return 0
}

// WeakCount reports the current weak registration count.
func (h *Heap) WeakCount(handle uint64) int64 {
	if obj := h.lookup(handle); obj != nil {
		return obj.weak.Load()
	}
	return 0
}

// Live reports the number of objects still in the table.
func (h *Heap) Live() int {
	h.mu.RLock()
	n := len(h.objects)
	h.mu.RUnlock()
	return n
}
