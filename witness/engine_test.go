package witness

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/wippyai/layout-runtime/heap"
	"github.com/wippyai/layout-runtime/metadata"
)

func mustLayout(t *testing.T, b *Builder) []byte {
	t.Helper()
	layout, err := b.Finish()
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	return layout
}

func newType(t *testing.T, name string, size uintptr, flags metadata.Flags, b *Builder) *metadata.Metadata {
	t.Helper()
	md := metadata.New(name, &metadata.ValueWitnessTable{Size: size, Flags: flags})
	if err := md.SetLayoutString(mustLayout(t, b)); err != nil {
		t.Fatalf("SetLayoutString: %v", err)
	}
	return md
}

func putWord(buf []byte, off int, v uint64) {
	binary.LittleEndian.PutUint64(buf[off:], v)
}

func word(buf []byte, off int) uint64 {
	return binary.LittleEndian.Uint64(buf[off:])
}

func TestDestroyReleasesStrongFields(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	// 24-byte struct: plain data, then two strong references.
	md := newType(t, "TwoRefs", 24, 0,
		NewBuilder().NativeStrong(8).NativeStrong(8))

	a, b := h.Allocate(0), h.Allocate(0)
	value := make([]byte, 24)
	putWord(value, 8, a)
	putWord(value, 16, b)

	e.Destroy(value, md)

	if h.StrongCount(a) != 0 || h.StrongCount(b) != 0 {
		t.Errorf("strong counts = %d, %d, want 0, 0", h.StrongCount(a), h.StrongCount(b))
	}
}

func TestInitWithCopyRetains(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	md := newType(t, "OneRef", 16, 0, NewBuilder().NativeStrong(0))

	handle := h.Allocate(0)
	src := make([]byte, 16)
	putWord(src, 0, handle)
	src[8] = 0x5A

	dest := make([]byte, 16)
	e.InitWithCopy(dest, src, md)

	if word(dest, 0) != handle || dest[8] != 0x5A {
		t.Error("dest bytes not copied")
	}
	if got := h.StrongCount(handle); got != 2 {
		t.Errorf("strong count = %d, want 2", got)
	}
}

func TestCopyDestroyBalance(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	md := newType(t, "Balanced", 8, 0, NewBuilder().NativeStrong(0))

	handle := h.Allocate(0)
	src := make([]byte, 8)
	putWord(src, 0, handle)

	dest := make([]byte, 8)
	e.InitWithCopy(dest, src, md)
	e.Destroy(dest, md)
	e.Destroy(src, md)

	if got := h.Live(); got != 0 {
		t.Errorf("live objects = %d, want 0", got)
	}
}

func TestTakeDestroyBalance(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	md := newType(t, "Moved", 16, 0,
		NewBuilder().NativeStrong(0).Unknown(8))

	src := make([]byte, 16)
	putWord(src, 0, h.Allocate(0))
	putWord(src, 8, h.Allocate(0))

	// A take transfers ownership with the bits: one destroy of dest must
	// bring both objects down, with src's bytes dead.
	dest := make([]byte, 16)
	e.InitWithTake(dest, src, md)
	e.Destroy(dest, md)

	if got := h.Live(); got != 0 {
		t.Errorf("live objects = %d, want 0", got)
	}
}

func TestInitWithTakeBitwiseTakableFastPath(t *testing.T) {
	// A bitwise-takable type never reaches the reference-count runtime or
	// the layout string, so neither needs to exist.
	e := NewEngine(nil)
	md := metadata.New("Trivial", &metadata.ValueWitnessTable{Size: 16})

	src := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16}
	dest := make([]byte, 16)
	e.InitWithTake(dest, src, md)

	for i := range src {
		if dest[i] != src[i] {
			t.Fatalf("dest[%d] = %d, want %d", i, dest[i], src[i])
		}
	}
}

func TestInitWithTakeMovesWeakRegistration(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	md := newType(t, "WeakBox", 8, metadata.FlagNonBitwiseTakable,
		NewBuilder().UnknownWeak(0))

	handle := h.Allocate(0)
	src := make([]byte, 8)
	h.WeakInit(src, handle)

	dest := make([]byte, 8)
	e.InitWithTake(dest, src, md)

	if word(dest, 0) != handle {
		t.Error("registration did not move to dest")
	}
	if word(src, 0) != 0 {
		t.Error("src cell not cleared")
	}
	if got := h.WeakCount(handle); got != 1 {
		t.Errorf("weak count = %d, want 1", got)
	}
}

func TestAssignWithCopyReleasesOldValue(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	md := newType(t, "Assigned", 8, 0, NewBuilder().NativeStrong(0))

	old, next := h.Allocate(0), h.Allocate(0)
	dest := make([]byte, 8)
	putWord(dest, 0, old)
	src := make([]byte, 8)
	putWord(src, 0, next)

	e.AssignWithCopy(dest, src, md)

	if got := h.StrongCount(old); got != 0 {
		t.Errorf("old strong count = %d, want 0", got)
	}
	if got := h.StrongCount(next); got != 2 {
		t.Errorf("next strong count = %d, want 2", got)
	}
	if word(dest, 0) != next {
		t.Error("dest does not hold the new reference")
	}
}

func TestWeakCellCopyAndDestroy(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	md := newType(t, "WeakCell", 8, 0, NewBuilder().NativeWeak(0))

	handle := h.Allocate(0)
	src := make([]byte, 8)
	h.WeakInit(src, handle)

	dest := make([]byte, 8)
	e.InitWithCopy(dest, src, md)
	if got := h.WeakCount(handle); got != 2 {
		t.Errorf("weak count after copy = %d, want 2", got)
	}

	e.Destroy(dest, md)
	e.Destroy(src, md)
	if got := h.WeakCount(handle); got != 0 {
		t.Errorf("weak count after destroy = %d, want 0", got)
	}
}

func TestErrorBoxRecord(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	md := newType(t, "ErrBox", 8, 0, NewBuilder().Error(0))

	box := h.AllocateError(errors.New("boom"))
	value := make([]byte, 8)
	putWord(value, 0, box)

	dest := make([]byte, 8)
	e.InitWithCopy(dest, value, md)
	if got := h.StrongCount(box); got != 2 {
		t.Errorf("strong count = %d, want 2", got)
	}

	e.Destroy(dest, md)
	e.Destroy(value, md)
	if got := h.StrongCount(box); got != 0 {
		t.Errorf("strong count = %d, want 0", got)
	}
}

func TestBridgeTaggedImmediate(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	md := newType(t, "BridgeWord", 8, 0, NewBuilder().Bridge(0))

	value := make([]byte, 8)
	putWord(value, 0, heap.BridgeTagMask|42)

	// Tagged immediates never touch the object table.
	e.Destroy(value, md)
	dest := make([]byte, 8)
	e.InitWithCopy(dest, value, md)

	handle := h.Allocate(0)
	putWord(value, 0, handle)
	e.Destroy(value, md)
	if got := h.StrongCount(handle); got != 0 {
		t.Errorf("strong count = %d, want 0", got)
	}
}

func TestMetatypeDelegation(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	var destroys, copies int
	inner := metadata.New("Inner", &metadata.ValueWitnessTable{
		Size:               8,
		Destroy:            func(value []byte) { destroys++ },
		InitializeWithCopy: func(dest, src []byte) { copies++ },
	})

	md := newType(t, "HasInner", 8, 0, NewBuilder().Metatype(0, inner))

	value := make([]byte, 8)
	dest := make([]byte, 8)
	e.InitWithCopy(dest, value, md)
	e.Destroy(value, md)

	if copies != 1 || destroys != 1 {
		t.Errorf("copies = %d, destroys = %d, want 1, 1", copies, destroys)
	}
}

func TestExistentialInline(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	var destroys int
	inline := metadata.New("InlineValue", &metadata.ValueWitnessTable{
		Size:    8,
		Destroy: func(value []byte) { destroys++ },
	})

	md := newType(t, "AnyInline", 32, 0, NewBuilder().Existential(0))

	container := make([]byte, 32)
	putWord(container, metadata.NumWordsValueBuffer*metadata.WordSize, inline.Handle())

	e.Destroy(container, md)
	if destroys != 1 {
		t.Errorf("destroys = %d, want 1", destroys)
	}
}

func TestExistentialBoxed(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	boxed := metadata.New("BoxedValue", &metadata.ValueWitnessTable{
		Size:  64,
		Flags: metadata.FlagNonInline,
	})

	md := newType(t, "AnyBoxed", 32, 0, NewBuilder().Existential(0))

	box := h.Allocate(64)
	container := make([]byte, 32)
	putWord(container, 0, box)
	putWord(container, metadata.NumWordsValueBuffer*metadata.WordSize, boxed.Handle())

	dest := make([]byte, 32)
	e.InitWithCopy(dest, container, md)
	if got := h.StrongCount(box); got != 2 {
		t.Errorf("strong count after copy = %d, want 2", got)
	}

	e.Destroy(dest, md)
	e.Destroy(container, md)
	if got := h.StrongCount(box); got != 0 {
		t.Errorf("strong count after destroy = %d, want 0", got)
	}
}

func TestInitializeBufferWithCopyOfBuffer(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	t.Run("inline", func(t *testing.T) {
		md := newType(t, "InlineBuf", 8, 0, NewBuilder().NativeStrong(0))

		handle := h.Allocate(0)
		src := make([]byte, 8)
		putWord(src, 0, handle)

		dest := make([]byte, 8)
		got := e.InitializeBufferWithCopyOfBuffer(dest, src, md)
		if &got[0] != &dest[0] {
			t.Error("inline value should live in dest")
		}
		if h.StrongCount(handle) != 2 {
			t.Errorf("strong count = %d, want 2", h.StrongCount(handle))
		}
	})

	t.Run("boxed", func(t *testing.T) {
		md := metadata.New("BoxedBuf", &metadata.ValueWitnessTable{
			Size:  64,
			Flags: metadata.FlagNonInline,
		})

		box := h.Allocate(64)
		h.Storage(box)[0] = 0x7E
		src := make([]byte, 8)
		putWord(src, 0, box)

		dest := make([]byte, 8)
		got := e.InitializeBufferWithCopyOfBuffer(dest, src, md)
		if got[0] != 0x7E {
			t.Error("returned buffer is not the box payload")
		}
		if word(dest, 0) != box {
			t.Error("dest does not share the box")
		}
		if h.StrongCount(box) != 2 {
			t.Errorf("strong count = %d, want 2", h.StrongCount(box))
		}
	})
}

// Single-payload enum over one strong reference, two empty cases encoded
// as extra inhabitants 250 and 251 of the payload's first byte.
func singleRefEnumType(t *testing.T, name string) *metadata.Metadata {
	t.Helper()
	return newType(t, name, 8, 0, NewBuilder().
		SinglePayloadEnumSimple(SinglePayloadEnumSimpleParams{
			PayloadSize:  8,
			XITagBytes:   1,
			ZeroTagValue: 250,
			XITagValues:  2,
			Payload:      func(b *Builder) { b.NativeStrong(0) },
		}))
}

func TestSinglePayloadEnumSimpleDestroy(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)
	md := singleRefEnumType(t, "RefOrNone")

	t.Run("payload case", func(t *testing.T) {
		handle := h.Allocate(0)
		value := make([]byte, 8)
		putWord(value, 0, handle)

		e.Destroy(value, md)
		if got := h.StrongCount(handle); got != 0 {
			t.Errorf("strong count = %d, want 0", got)
		}
	})

	t.Run("empty case", func(t *testing.T) {
		handle := h.Allocate(0)
		value := make([]byte, 8)
		value[0] = 251 // second empty case

		e.Destroy(value, md)
		if got := h.StrongCount(handle); got != 1 {
			t.Errorf("unrelated object released, strong count = %d", got)
		}
	})
}

func TestSinglePayloadEnumSimpleCopy(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)
	md := singleRefEnumType(t, "RefOrNoneCopy")

	handle := h.Allocate(0)
	src := make([]byte, 8)
	putWord(src, 0, handle)

	dest := make([]byte, 8)
	e.InitWithCopy(dest, src, md)
	if got := h.StrongCount(handle); got != 2 {
		t.Errorf("strong count = %d, want 2", got)
	}

	empty := make([]byte, 8)
	empty[0] = 250
	dest2 := make([]byte, 8)
	e.InitWithCopy(dest2, empty, md)
	if got := h.StrongCount(handle); got != 2 {
		t.Errorf("empty case retained, strong count = %d", got)
	}
}

// Extra tag bytes select the empty case even when the payload bits would
// look like a live reference.
func TestSinglePayloadEnumSimpleExtraTagBytes(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	md := newType(t, "RefOrMany", 9, 0, NewBuilder().
		SinglePayloadEnumSimple(SinglePayloadEnumSimpleParams{
			PayloadSize:   8,
			ExtraTagBytes: 1,
			XITagBytes:    1,
			ZeroTagValue:  250,
			XITagValues:   2,
			Payload:       func(b *Builder) { b.NativeStrong(0) },
		}))

	handle := h.Allocate(0)
	value := make([]byte, 9)
	putWord(value, 0, handle)
	value[8] = 1 // extra tag byte: empty case

	e.Destroy(value, md)
	if got := h.StrongCount(handle); got != 1 {
		t.Errorf("extra-tag empty case released payload, strong count = %d", got)
	}

	value[8] = 0 // payload case
	e.Destroy(value, md)
	if got := h.StrongCount(handle); got != 0 {
		t.Errorf("payload case not released, strong count = %d", got)
	}
}

// A record following an inline-payload enum joins both branches at the same
// field offset.
func TestSinglePayloadEnumSimpleTrailingField(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	md := newType(t, "EnumThenRef", 16, 0, NewBuilder().
		SinglePayloadEnumSimple(SinglePayloadEnumSimpleParams{
			PayloadSize:  8,
			XITagBytes:   1,
			ZeroTagValue: 250,
			XITagValues:  1,
			Payload:      func(b *Builder) { b.NativeStrong(0) },
		}).
		NativeStrong(8))

	payload, trailing := h.Allocate(0), h.Allocate(0)

	value := make([]byte, 16)
	putWord(value, 0, payload)
	putWord(value, 8, trailing)
	e.Destroy(value, md)
	if h.StrongCount(payload) != 0 || h.StrongCount(trailing) != 0 {
		t.Error("payload branch did not destroy both fields")
	}

	trailing2 := h.Allocate(0)
	value2 := make([]byte, 16)
	value2[0] = 250
	putWord(value2, 8, trailing2)
	e.Destroy(value2, md)
	if got := h.StrongCount(trailing2); got != 0 {
		t.Errorf("empty branch missed trailing field, strong count = %d", got)
	}
}

func TestSinglePayloadEnumFN(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	// Discriminant is the byte after the payload, read by a registered
	// tag function.
	ref := metadata.RegisterEnumTagFn(func(value []byte) uint32 {
		return uint32(value[8])
	})

	md := newType(t, "FnEnum", 9, 0, NewBuilder().
		SinglePayloadEnumFN(SinglePayloadEnumFNParams{
			TagFnRef: ref,
			Payload:  func(b *Builder) { b.NativeStrong(0) },
		}))

	handle := h.Allocate(0)
	value := make([]byte, 9)
	putWord(value, 0, handle)
	value[8] = 1 // empty case

	e.Destroy(value, md)
	if got := h.StrongCount(handle); got != 1 {
		t.Errorf("empty case released payload, strong count = %d", got)
	}

	value[8] = 0 // payload case
	e.Destroy(value, md)
	if got := h.StrongCount(handle); got != 0 {
		t.Errorf("payload case not released, strong count = %d", got)
	}
}

func TestSinglePayloadEnumGenericHandler(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	xi := metadata.New("XIByte", &metadata.ValueWitnessTable{
		Size:                8,
		NumExtraInhabitants: 2,
		GetEnumTagSinglePayload: func(value []byte, numEmptyCases uint32) uint32 {
			if value[0] >= 250 {
				return uint32(value[0]) - 249
			}
			return 0
		},
	})

	md := newType(t, "GenericEnum", 8, 0, NewBuilder().
		SinglePayloadEnumGeneric(SinglePayloadEnumGenericParams{
			PayloadSize:   8,
			XIType:        xi,
			NumEmptyCases: 2,
			Payload:       func(b *Builder) { b.NativeStrong(0) },
		}))

	handle := h.Allocate(0)
	value := make([]byte, 8)
	value[0] = 250 // empty case per the XI witness

	e.Destroy(value, md)
	if got := h.StrongCount(handle); got != 1 {
		t.Errorf("empty case released, strong count = %d", got)
	}

	putWord(value, 0, handle)
	e.Destroy(value, md)
	if got := h.StrongCount(handle); got != 0 {
		t.Errorf("payload case not released, strong count = %d", got)
	}
}

// 9-byte multi-payload enum: 8 payload bytes, one trailing tag byte,
// three cases where only the first holds a reference.
func multiRefEnumBuilder(tagFnRef int32) *Builder {
	cases := []func(*Builder){
		func(b *Builder) { b.NativeStrong(0) },
		func(b *Builder) {},
		func(b *Builder) { b.Unknown(0) },
	}
	if tagFnRef != 0 {
		return NewBuilder().MultiPayloadEnumFN(MultiPayloadEnumFNParams{
			TagFnRef: tagFnRef,
			EnumSize: 9,
			Cases:    cases,
		})
	}
	return NewBuilder().MultiPayloadEnumGeneric(MultiPayloadEnumGenericParams{
		TagBytes: 1,
		EnumSize: 9,
		Cases:    cases,
	})
}

func TestMultiPayloadEnumGenericDestroy(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	md := newType(t, "ThreeCases", 9, 0, multiRefEnumBuilder(0))

	tests := []struct {
		name     string
		tag      byte
		released bool
	}{
		{"strong case", 0, true},
		{"trivial case", 1, false},
		{"unknown case", 2, true},
		{"empty case", 7, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handle := h.Allocate(0)
			value := make([]byte, 9)
			putWord(value, 0, handle)
			value[8] = tc.tag

			e.Destroy(value, md)

			want := int64(1)
			if tc.released {
				want = 0
			}
			if got := h.StrongCount(handle); got != want {
				t.Errorf("strong count = %d, want %d", got, want)
			}
		})
	}
}

func TestMultiPayloadEnumFNTrailingField(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	ref := metadata.RegisterEnumTagFn(func(value []byte) uint32 {
		return uint32(value[8])
	})

	md := newType(t, "EnumPlusRef", 17, 0,
		multiRefEnumBuilder(ref).NativeStrong(0))

	payload, trailing := h.Allocate(0), h.Allocate(0)
	value := make([]byte, 17)
	putWord(value, 0, payload)
	value[8] = 0
	putWord(value, 9, trailing)

	e.Destroy(value, md)
	if h.StrongCount(payload) != 0 || h.StrongCount(trailing) != 0 {
		t.Errorf("strong counts = %d, %d, want 0, 0",
			h.StrongCount(payload), h.StrongCount(trailing))
	}
}

func TestMultiPayloadEnumCopyBalance(t *testing.T) {
	h := heap.New()
	e := NewEngine(h)

	md := newType(t, "ThreeCasesCopy", 9, 0, multiRefEnumBuilder(0))

	handle := h.Allocate(0)
	src := make([]byte, 9)
	putWord(src, 0, handle)

	dest := make([]byte, 9)
	e.InitWithCopy(dest, src, md)
	if got := h.StrongCount(handle); got != 2 {
		t.Errorf("strong count = %d, want 2", got)
	}

	e.Destroy(dest, md)
	e.Destroy(src, md)
	if got := h.Live(); got != 0 {
		t.Errorf("live objects = %d, want 0", got)
	}
}
