package witness

import (
	"bytes"
	"testing"

	"github.com/wippyai/layout-runtime/heap"
	"github.com/wippyai/layout-runtime/metadata"
)

func TestResolveRewritesResilientToMetatype(t *testing.T) {
	var destroys int
	concrete := metadata.New("ConcreteField", &metadata.ValueWitnessTable{
		Size:    8,
		Destroy: func(value []byte) { destroys++ },
	})
	ref := metadata.RegisterAccessor(func(args []*metadata.Metadata) *metadata.Metadata {
		return concrete
	})

	md := metadata.New("HasResilient", &metadata.ValueWitnessTable{Size: 8})
	layout := mustLayout(t, NewBuilder().Resilient(0, ref))

	ResolveLayoutString(layout, md)

	r := NewReader(layout, HeaderSize)
	_, kind := SplitRecordHeader(r.ReadUint64())
	if kind != KindMetatype {
		t.Fatalf("kind after resolve = %v, want metatype", kind)
	}
	if got := r.ReadUint64(); got != concrete.Handle() {
		t.Errorf("handle = %d, want %d", got, concrete.Handle())
	}

	// The resolved string drives destroy through the concrete type.
	if err := md.SetLayoutString(layout); err != nil {
		t.Fatal(err)
	}
	NewEngine(heap.New()).Destroy(make([]byte, 8), md)
	if destroys != 1 {
		t.Errorf("destroys = %d, want 1", destroys)
	}
}

func TestUnresolvedResilientStillWorks(t *testing.T) {
	// Before resolution the accessor runs on every operation.
	calls := 0
	concrete := metadata.New("LazyField", &metadata.ValueWitnessTable{Size: 8})
	ref := metadata.RegisterAccessor(func(args []*metadata.Metadata) *metadata.Metadata {
		calls++
		return concrete
	})

	md := newType(t, "LazyResilient", 8, 0, NewBuilder().Resilient(0, ref))

	e := NewEngine(heap.New())
	value := make([]byte, 8)
	e.Destroy(value, md)
	e.Destroy(value, md)
	if calls != 2 {
		t.Errorf("accessor calls = %d, want 2", calls)
	}
}

func TestResolveRewritesEnumFN(t *testing.T) {
	ref := metadata.RegisterEnumTagFn(func(value []byte) uint32 {
		return uint32(value[8])
	})
	md := metadata.New("FNEnumType", &metadata.ValueWitnessTable{Size: 9})

	layout := mustLayout(t, NewBuilder().
		SinglePayloadEnumFN(SinglePayloadEnumFNParams{
			TagFnRef: ref,
			Payload:  func(b *Builder) { b.NativeStrong(0) },
		}))

	ResolveLayoutString(layout, md)

	r := NewReader(layout, HeaderSize)
	_, kind := SplitRecordHeader(r.ReadUint64())
	if kind != KindSinglePayloadEnumFNResolved {
		t.Fatalf("kind after resolve = %v", kind)
	}
	key := r.ReadUint64()
	if metadata.EnumTagFnByKey(key) == nil {
		t.Error("resolved key does not look up a function")
	}

	// Behavior is unchanged after resolution.
	if err := md.SetLayoutString(layout); err != nil {
		t.Fatal(err)
	}
	h := heap.New()
	e := NewEngine(h)
	handle := h.Allocate(0)
	value := make([]byte, 9)
	putWord(value, 0, handle)
	e.Destroy(value, md)
	if got := h.StrongCount(handle); got != 0 {
		t.Errorf("strong count = %d, want 0", got)
	}
}

func TestResolveRecursesIntoMultiPayloadCases(t *testing.T) {
	concrete := metadata.New("CaseField", &metadata.ValueWitnessTable{Size: 8})
	accessorRef := metadata.RegisterAccessor(func(args []*metadata.Metadata) *metadata.Metadata {
		return concrete
	})
	tagRef := metadata.RegisterEnumTagFn(func(value []byte) uint32 {
		return uint32(value[8])
	})

	md := metadata.New("NestedResilient", &metadata.ValueWitnessTable{Size: 9})
	layout := mustLayout(t, NewBuilder().
		MultiPayloadEnumFN(MultiPayloadEnumFNParams{
			TagFnRef: tagRef,
			EnumSize: 9,
			Cases: []func(*Builder){
				func(b *Builder) { b.Resilient(0, accessorRef) },
				nil,
			},
		}))

	ResolveLayoutString(layout, md)

	r := NewReader(layout, HeaderSize)
	_, kind := SplitRecordHeader(r.ReadUint64())
	if kind != KindMultiPayloadEnumFNResolved {
		t.Fatalf("outer kind = %v", kind)
	}
	r.Skip(8) // resolved key
	numCases := int(r.ReadUint64())
	r.Skip(8 + 8 + numCases*8) // ref count bytes, enum size, offsets

	_, caseKind := SplitRecordHeader(r.ReadUint64())
	if caseKind != KindMetatype {
		t.Errorf("nested case kind = %v, want metatype", caseKind)
	}
	if got := r.ReadUint64(); got != concrete.Handle() {
		t.Errorf("nested handle = %d, want %d", got, concrete.Handle())
	}
}

func TestResolveIdempotent(t *testing.T) {
	concrete := metadata.New("StableField", &metadata.ValueWitnessTable{Size: 8})
	accessorRef := metadata.RegisterAccessor(func(args []*metadata.Metadata) *metadata.Metadata {
		return concrete
	})
	tagRef := metadata.RegisterEnumTagFn(func(value []byte) uint32 { return 0 })

	md := metadata.New("Idempotent", &metadata.ValueWitnessTable{Size: 24})
	layout := mustLayout(t, NewBuilder().
		Resilient(0, accessorRef).
		SinglePayloadEnumFN(SinglePayloadEnumFNParams{
			Skip:     8,
			TagFnRef: tagRef,
			Payload:  func(b *Builder) { b.NativeStrong(0) },
		}).
		NativeStrong(8))

	ResolveLayoutString(layout, md)
	first := bytes.Clone(layout)
	ResolveLayoutString(layout, md)

	if !bytes.Equal(first, layout) {
		t.Error("second resolution changed the string")
	}
}
