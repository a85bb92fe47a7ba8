package metadata

import (
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/layout-runtime/errors"
)

// NumWordsValueBuffer is the size, in 8-byte words, of the inline value
// buffer at the start of an existential container. The container's type
// metadata handle sits in the word immediately after the buffer.
const NumWordsValueBuffer = 3

// WordSize is the size of a handle word in instance buffers.
const WordSize = 8

// Flags describes value-witness properties that gate fast paths.
type Flags uint32

const (
	// FlagNonBitwiseTakable marks types whose move requires fixups beyond
	// a plain memory copy.
	FlagNonBitwiseTakable Flags = 1 << iota
	// FlagNonInline marks types stored out of line in value buffers.
	FlagNonInline
)

// ValueWitnessTable holds the per-type layout facts and operations the
// engine consults when a record delegates to a nested type.
type ValueWitnessTable struct {
	Size                uintptr
	Flags               Flags
	NumExtraInhabitants uint32

	Destroy            func(value []byte)
	InitializeWithCopy func(dest, src []byte)
	InitializeWithTake func(dest, src []byte)

	// Single-payload enum support: read or write the tag of a value whose
	// empty cases are encoded in this type's extra inhabitants.
	GetEnumTagSinglePayload   func(value []byte, numEmptyCases uint32) uint32
	StoreEnumTagSinglePayload func(value []byte, tag, numEmptyCases uint32)
}

// Metadata is a runtime type descriptor.
type Metadata struct {
	name        string
	vwt         *ValueWitnessTable
	genericArgs []*Metadata
	handle      uint64

	layoutMu  sync.Mutex
	layoutStr []byte
}

// New constructs a descriptor and registers it, assigning its handle.
func New(name string, vwt *ValueWitnessTable, genericArgs ...*Metadata) *Metadata {
	md := &Metadata{
		name:        name,
		vwt:         vwt,
		genericArgs: genericArgs,
	}
	md.handle = register(md)
	Logger().Debug("metadata registered",
		zap.String("name", name),
		zap.Uint64("handle", md.handle))
	return md
}

func (md *Metadata) Name() string { return md.name }

// Handle returns the registry handle stored in layout string record bodies.
func (md *Metadata) Handle() uint64 { return md.handle }

// Size returns the type's value size in bytes.
func (md *Metadata) Size() uintptr { return md.vwt.Size }

// ValueWitnesses returns the type's witness table.
func (md *Metadata) ValueWitnesses() *ValueWitnessTable { return md.vwt }

// IsBitwiseTakable reports whether a move is a plain memory copy.
func (md *Metadata) IsBitwiseTakable() bool {
	return md.vwt.Flags&FlagNonBitwiseTakable == 0
}

// IsValueInline reports whether values fit the inline value buffer.
func (md *Metadata) IsValueInline() bool {
	return md.vwt.Flags&FlagNonInline == 0
}

// GenericArgs returns the type's generic arguments.
func (md *Metadata) GenericArgs() []*Metadata { return md.genericArgs }

// LayoutString returns the associated layout string, or nil.
func (md *Metadata) LayoutString() []byte {
	md.layoutMu.Lock()
	defer md.layoutMu.Unlock()
	return md.layoutStr
}

// SetLayoutString associates the layout string. The association is set-once;
// a second call with a different string fails.
func (md *Metadata) SetLayoutString(layoutStr []byte) error {
	if layoutStr == nil {
		return errors.NilPointer(errors.PhaseRuntime, "layout string")
	}
	md.layoutMu.Lock()
	defer md.layoutMu.Unlock()
	if md.layoutStr != nil {
		if &md.layoutStr[0] == &layoutStr[0] {
			return nil // idempotent re-association
		}
		return errors.AlreadySet(errors.PhaseRuntime, "layout string for "+md.name)
	}
	md.layoutStr = layoutStr
	return nil
}

// VWDestroy invokes the type's destroy witness.
func (md *Metadata) VWDestroy(value []byte) {
	if md.vwt.Destroy != nil {
		md.vwt.Destroy(value)
	}
}

// VWInitializeWithCopy invokes the type's copy-init witness.
func (md *Metadata) VWInitializeWithCopy(dest, src []byte) {
	if md.vwt.InitializeWithCopy != nil {
		md.vwt.InitializeWithCopy(dest, src)
		return
	}
	copy(dest[:md.vwt.Size], src[:md.vwt.Size])
}

// VWInitializeWithTake invokes the type's take-init witness. Bitwise-takable
// types fall back to a plain copy.
func (md *Metadata) VWInitializeWithTake(dest, src []byte) {
	if md.vwt.InitializeWithTake != nil {
		md.vwt.InitializeWithTake(dest, src)
		return
	}
	copy(dest[:md.vwt.Size], src[:md.vwt.Size])
}

// VWGetEnumTagSinglePayload reads the tag of a single-payload enum whose
// empty cases borrow this type's extra inhabitants.
func (md *Metadata) VWGetEnumTagSinglePayload(value []byte, numEmptyCases uint32) uint32 {
	if md.vwt.GetEnumTagSinglePayload == nil {
		panic("metadata: GetEnumTagSinglePayload witness not installed for " + md.name)
	}
	return md.vwt.GetEnumTagSinglePayload(value, numEmptyCases)
}

// VWStoreEnumTagSinglePayload writes the tag of a single-payload enum whose
// empty cases borrow this type's extra inhabitants.
func (md *Metadata) VWStoreEnumTagSinglePayload(value []byte, tag, numEmptyCases uint32) {
	if md.vwt.StoreEnumTagSinglePayload == nil {
		panic("metadata: StoreEnumTagSinglePayload witness not installed for " + md.name)
	}
	md.vwt.StoreEnumTagSinglePayload(value, tag, numEmptyCases)
}
