package witness

import (
	"encoding/binary"

	"github.com/wippyai/layout-runtime/heap"
	"github.com/wippyai/layout-runtime/metadata"
)

// RefCounts is the reference-count runtime the engine drives. Handle-based
// operations receive the raw word loaded from the instance buffer; cell-based
// operations receive the 8-byte slice holding the reference so they can
// rewrite it (weak zeroing, take transfers).
type RefCounts interface {
	Retain(handle uint64)
	Release(handle uint64)
	UnownedRetain(handle uint64)
	UnownedRelease(handle uint64)

	WeakDestroy(cell []byte)
	WeakCopyInit(dest, src []byte)
	WeakTakeInit(dest, src []byte)

	UnknownRetain(handle uint64)
	UnknownRelease(handle uint64)
	UnknownUnownedDestroy(cell []byte)
	UnknownUnownedCopyInit(dest, src []byte)
	UnknownWeakDestroy(cell []byte)
	UnknownWeakCopyInit(dest, src []byte)
	UnknownWeakTakeInit(dest, src []byte)

	BridgeRetain(word uint64)
	BridgeRelease(word uint64)
	ErrorRetain(handle uint64)
	ErrorRelease(handle uint64)

	// Storage returns the payload bytes of an out-of-line box.
	Storage(handle uint64) []byte
}

// Engine interprets layout strings over opaque instance buffers.
type Engine struct {
	rc RefCounts
}

// NewEngine builds an engine over the given reference-count runtime.
func NewEngine(rc RefCounts) *Engine {
	return &Engine{rc: rc}
}

// Default returns an engine over the process-wide heap.
func Default() *Engine {
	return NewEngine(heap.Global())
}

// Destroy releases every reference the value holds, leaving its bytes
// deinitialized.
func (e *Engine) Destroy(value []byte, md *metadata.Metadata) {
	r := NewReader(md.LayoutString(), HeaderSize)
	var addrOffset uintptr
	e.walkDestroy(md, &r, &addrOffset, value)
}

// InitWithCopy initializes dest as a copy of src, retaining every reference
// the value holds. src remains initialized.
func (e *Engine) InitWithCopy(dest, src []byte, md *metadata.Metadata) {
	size := md.Size()
	copy(dest[:size], src[:size])

	r := NewReader(md.LayoutString(), HeaderSize)
	var addrOffset uintptr
	e.walkCopy(md, &r, &addrOffset, dest, src)
}

// InitWithTake initializes dest by moving src's value into it. src's bytes
// are dead afterwards. Bitwise-takable types need no record walk at all.
func (e *Engine) InitWithTake(dest, src []byte, md *metadata.Metadata) {
	size := md.Size()
	copy(dest[:size], src[:size])

	if md.IsBitwiseTakable() {
		return
	}

	r := NewReader(md.LayoutString(), HeaderSize)
	var addrOffset uintptr
	e.walkTake(md, &r, &addrOffset, dest, src)
}

// AssignWithCopy replaces dest's initialized value with a copy of src's.
func (e *Engine) AssignWithCopy(dest, src []byte, md *metadata.Metadata) {
	e.Destroy(dest, md)
	e.InitWithCopy(dest, src, md)
}

// AssignWithTake replaces dest's initialized value by moving src's into it.
func (e *Engine) AssignWithTake(dest, src []byte, md *metadata.Metadata) {
	e.Destroy(dest, md)
	e.InitWithTake(dest, src, md)
}

// InitializeBufferWithCopyOfBuffer copies a value buffer: inline values are
// copied in place, out-of-line values share the box under one more retain.
// It returns the buffer holding the value itself, which for a boxed value is
// the box's payload storage rather than dest.
func (e *Engine) InitializeBufferWithCopyOfBuffer(dest, src []byte, md *metadata.Metadata) []byte {
	if md.IsValueInline() {
		e.InitWithCopy(dest, src, md)
		return dest
	}
	handle := binary.LittleEndian.Uint64(src)
	binary.LittleEndian.PutUint64(dest, handle)
	e.rc.Retain(handle)
	return e.rc.Storage(handle)
}

// existentialType reads the dynamic type of an existential container: the
// metadata handle stored in the word after the inline value buffer.
func existentialType(container []byte) *metadata.Metadata {
	handle := binary.LittleEndian.Uint64(container[metadata.NumWordsValueBuffer*metadata.WordSize:])
	return metadata.Lookup(handle)
}

// resilientType materializes a resilient field's metadata by running the
// accessor referenced by the record body over the enclosing type's generic
// arguments.
func resilientType(md *metadata.Metadata, r *Reader) *metadata.Metadata {
	accessor := metadata.AccessorByRef(r.ReadRelativeRef())
	return accessor(md.GenericArgs())
}

func handleWord(buf []byte, offset uintptr) uint64 {
	return binary.LittleEndian.Uint64(buf[offset:])
}
