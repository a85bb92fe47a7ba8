package arena

import (
	"context"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/tetratelabs/wazero"

	liberrors "github.com/wippyai/layout-runtime/errors"
	"github.com/wippyai/layout-runtime/heap"
	"github.com/wippyai/layout-runtime/metadata"
	"github.com/wippyai/layout-runtime/witness"
)

func TestNativeAllocFree(t *testing.T) {
	a := NewNative()

	buf, err := a.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	if len(buf) != 16 {
		t.Errorf("len = %d, want 16", len(buf))
	}
	if a.Outstanding() != 1 {
		t.Errorf("outstanding = %d, want 1", a.Outstanding())
	}

	a.Free(buf)
	if a.Outstanding() != 0 {
		t.Errorf("outstanding after free = %d, want 0", a.Outstanding())
	}

	_, err = a.Alloc(0)
	if !errors.Is(err, &liberrors.Error{Phase: liberrors.PhaseAlloc, Kind: liberrors.KindAllocation}) {
		t.Errorf("Alloc(0) = %v, want allocation error", err)
	}
}

// Smallest module exporting one page of linear memory as "memory".
var guestModule = []byte{
	0x00, 0x61, 0x73, 0x6D, // magic
	0x01, 0x00, 0x00, 0x00, // version 1
	0x05, 0x03, 0x01, 0x00, 0x01, // memory section: 1 memory, min 1 page
	0x07, 0x0A, 0x01, // export section: 1 export
	0x06, 'm', 'e', 'm', 'o', 'r', 'y', // name
	0x02, 0x00, // memory index 0
}

func newGuestArena(t *testing.T) *Guest {
	t.Helper()
	ctx := context.Background()

	rt := wazero.NewRuntime(ctx)
	t.Cleanup(func() { rt.Close(ctx) })

	mod, err := rt.Instantiate(ctx, guestModule)
	if err != nil {
		t.Fatalf("instantiate guest: %v", err)
	}

	g, err := NewGuest(mod.Memory(), 1024)
	if err != nil {
		t.Fatalf("NewGuest: %v", err)
	}
	return g
}

func TestGuestAllocIsMemoryView(t *testing.T) {
	g := newGuestArena(t)

	buf, err := g.Alloc(32)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	binary.LittleEndian.PutUint64(buf, 0xCAFE)

	// The write is visible through a second view of the same region.
	view, ok := g.mem.Read(1024, 8)
	if !ok {
		t.Fatal("Read failed")
	}
	if binary.LittleEndian.Uint64(view) != 0xCAFE {
		t.Error("write through arena buffer not visible in linear memory")
	}
}

func TestGuestAllocZeroes(t *testing.T) {
	g := newGuestArena(t)

	buf, err := g.Alloc(16)
	if err != nil {
		t.Fatalf("Alloc: %v", err)
	}
	for i := range buf {
		buf[i] = 0xFF
	}
	g.Free(buf)

	buf2, err := g.Alloc(16)
	if err != nil {
		t.Fatalf("second Alloc: %v", err)
	}
	for i, b := range buf2 {
		if b != 0 {
			t.Fatalf("byte %d = %d, want 0", i, b)
		}
	}
}

func TestGuestFreeRewinds(t *testing.T) {
	g := newGuestArena(t)

	a, _ := g.Alloc(16)
	b, _ := g.Alloc(16)
	if g.Used() != 32 {
		t.Fatalf("used = %d, want 32", g.Used())
	}

	// Out-of-order free parks the region until the one above it goes too.
	g.Free(a)
	if g.Used() != 32 {
		t.Errorf("used after parking = %d, want 32", g.Used())
	}
	g.Free(b)
	if g.Used() != 0 {
		t.Errorf("used after rewind = %d, want 0", g.Used())
	}
}

func TestGuestAllocExhaustion(t *testing.T) {
	g := newGuestArena(t)

	// One page is 64 KiB; the arena starts at 1024.
	if _, err := g.Alloc(g.Size()); err == nil {
		t.Error("oversized Alloc should fail")
	}
	if _, err := g.Alloc(g.Size() - 1024); err != nil {
		t.Errorf("exact-fit Alloc failed: %v", err)
	}
}

// Value witnesses run directly over guest-resident values.
func TestWitnessesOverGuestMemory(t *testing.T) {
	g := newGuestArena(t)

	h := heap.New()
	e := witness.NewEngine(h)

	layout, err := witness.NewBuilder().NativeStrong(0).Finish()
	if err != nil {
		t.Fatal(err)
	}
	md := metadata.New("GuestRef", &metadata.ValueWitnessTable{Size: 8})
	if err := md.SetLayoutString(layout); err != nil {
		t.Fatal(err)
	}

	src, err := g.Alloc(8)
	if err != nil {
		t.Fatal(err)
	}
	dest, err := g.Alloc(8)
	if err != nil {
		t.Fatal(err)
	}

	handle := h.Allocate(0)
	binary.LittleEndian.PutUint64(src, handle)

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
