package metadata

import "sync"

// Process-global handle registry. Handle 0 is reserved.
var reg struct {
	mu       sync.RWMutex
	byHandle map[uint64]*Metadata
	next     uint64
}

func init() {
	reg.byHandle = make(map[uint64]*Metadata)
	reg.next = 1
}

func register(md *Metadata) uint64 {
	reg.mu.Lock()
	handle := reg.next
	reg.next++
	reg.byHandle[handle] = md
	reg.mu.Unlock()
	return handle
}

// Lookup resolves a handle from a layout string record body. Handle 0
// resolves to nil.
func Lookup(handle uint64) *Metadata {
	if handle == 0 {
		return nil
	}
	reg.mu.RLock()
	md := reg.byHandle[handle]
	reg.mu.RUnlock()
	return md
}

// EnumTagFn reads the logical case tag of an enum value.
type EnumTagFn func(value []byte) uint32

// AccessorFn materializes the concrete metadata of a resilient field from
// the enclosing type's generic arguments.
type AccessorFn func(args []*Metadata) *Metadata

var fns struct {
	mu        sync.RWMutex
	enumTags  []EnumTagFn
	accessors []AccessorFn
}

// RegisterEnumTagFn registers an enum tag function and returns its relative
// reference. References are positive; 0 is never issued.
func RegisterEnumTagFn(fn EnumTagFn) int32 {
	fns.mu.Lock()
	fns.enumTags = append(fns.enumTags, fn)
	ref := int32(len(fns.enumTags))
	fns.mu.Unlock()
	return ref
}

// EnumTagFnByRef resolves a relative enum tag reference. The layout string
// format is trusted; an unknown reference is a builder bug.
func EnumTagFnByRef(ref int32) EnumTagFn {
	fns.mu.RLock()
	defer fns.mu.RUnlock()
	if ref <= 0 || int(ref) > len(fns.enumTags) {
		panic("metadata: unknown enum tag function reference")
	}
	return fns.enumTags[ref-1]
}

// ResolveEnumTagRef converts a relative reference into the absolute key
// written back by resilient accessor resolution.
func ResolveEnumTagRef(ref int32) uint64 {
	// Force the lookup now so a bad reference fails at resolution time,
	// not on the hot path.
	_ = EnumTagFnByRef(ref)
	return uint64(uint32(ref))
}

// EnumTagFnByKey resolves an absolute key produced by ResolveEnumTagRef.
func EnumTagFnByKey(key uint64) EnumTagFn {
	return EnumTagFnByRef(int32(uint32(key)))
}

// RegisterAccessor registers a resilient type accessor and returns its
// relative reference.
func RegisterAccessor(fn AccessorFn) int32 {
	fns.mu.Lock()
	fns.accessors = append(fns.accessors, fn)
	ref := int32(len(fns.accessors))
	fns.mu.Unlock()
	return ref
}

// AccessorByRef resolves a relative accessor reference.
func AccessorByRef(ref int32) AccessorFn {
	fns.mu.RLock()
	defer fns.mu.RUnlock()
	if ref <= 0 || int(ref) > len(fns.accessors) {
		panic("metadata: unknown accessor reference")
	}
	return fns.accessors[ref-1]
}
