package witness

import (
	"encoding/binary"

	"github.com/wippyai/layout-runtime/errors"
	"github.com/wippyai/layout-runtime/metadata"
)

// Builder assembles a layout string record by record. Methods chain; the
// first invalid operand sticks and Finish reports it.
type Builder struct {
	buf []byte
	err error
}

// NewBuilder creates an empty layout string builder.
func NewBuilder() *Builder {
	return &Builder{}
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) word(v uint64) {
	b.buf = binary.LittleEndian.AppendUint64(b.buf, v)
}

func (b *Builder) word32(v uint32) {
	b.buf = binary.LittleEndian.AppendUint32(b.buf, v)
}

func (b *Builder) record(kind RefCountKind, skip uintptr) {
	if uint64(skip) > recordSkipMask {
		b.fail(errors.New(errors.PhaseBuild, errors.KindOverflow).
			Value(skip).
			Detail("record skip exceeds 56 bits").
			Build())
		return
	}
	b.word(RecordHeader(kind, skip))
}

// tagBytesPattern encodes a tag byte count as the format's power-of-two
// pattern: count = 1 << (pattern - 1), pattern 0 meaning no tag bytes.
func (b *Builder) tagBytesPattern(count uint8, allowZero bool) uint8 {
	switch count {
	case 0:
		if allowZero {
			return 0
		}
	case 1:
		return 1
	case 2:
		return 2
	case 4:
		return 3
	case 8:
		return 4
	}
	b.fail(errors.InvalidWidth(errors.PhaseBuild, count))
	return 0
}

// extraTagBytesPattern is tagBytesPattern restricted to the two-bit field
// holding the extra tag byte count, which caps it at four bytes.
func (b *Builder) extraTagBytesPattern(count uint8) uint8 {
	if count == 8 {
		b.fail(errors.InvalidWidth(errors.PhaseBuild, count))
		return 0
	}
	return b.tagBytesPattern(count, true)
}

// sub runs fn over a fresh builder and returns its record bytes.
func (b *Builder) sub(fn func(*Builder)) []byte {
	nested := NewBuilder()
	if fn != nil {
		fn(nested)
	}
	if nested.err != nil {
		b.fail(nested.err)
	}
	return nested.buf
}

// Error appends a strong reference to an error box at skip bytes past the
// previous record's field.
func (b *Builder) Error(skip uintptr) *Builder {
	b.record(KindError, skip)
	return b
}

// NativeStrong appends a strong native object reference.
func (b *Builder) NativeStrong(skip uintptr) *Builder {
	b.record(KindNativeStrong, skip)
	return b
}

// NativeUnowned appends an unowned native object reference.
func (b *Builder) NativeUnowned(skip uintptr) *Builder {
	b.record(KindNativeUnowned, skip)
	return b
}

// NativeWeak appends a weak native reference cell.
func (b *Builder) NativeWeak(skip uintptr) *Builder {
	b.record(KindNativeWeak, skip)
	return b
}

// Unknown appends a strong reference of unknown object kind.
func (b *Builder) Unknown(skip uintptr) *Builder {
	b.record(KindUnknown, skip)
	return b
}

// UnknownUnowned appends an unowned reference cell of unknown object kind.
func (b *Builder) UnknownUnowned(skip uintptr) *Builder {
	b.record(KindUnknownUnowned, skip)
	return b
}

// UnknownWeak appends a weak reference cell of unknown object kind.
func (b *Builder) UnknownWeak(skip uintptr) *Builder {
	b.record(KindUnknownWeak, skip)
	return b
}

// Bridge appends a bridge object word.
func (b *Builder) Bridge(skip uintptr) *Builder {
	b.record(KindBridge, skip)
	return b
}

// Metatype appends a field whose operations delegate to a known type's
// value witnesses.
func (b *Builder) Metatype(skip uintptr, t *metadata.Metadata) *Builder {
	if t == nil {
		b.fail(errors.NilPointer(errors.PhaseBuild, "metatype record type"))
		return b
	}
	b.record(KindMetatype, skip)
	b.word(t.Handle())
	return b
}

// Existential appends an existential container field.
func (b *Builder) Existential(skip uintptr) *Builder {
	b.record(KindExistential, skip)
	return b
}

// Resilient appends a field whose type is materialized at resolution time
// by the referenced accessor.
func (b *Builder) Resilient(skip uintptr, accessorRef int32) *Builder {
	if accessorRef <= 0 {
		b.fail(errors.New(errors.PhaseBuild, errors.KindRegistration).
			Value(accessorRef).
			Detail("accessor reference must be positive").
			Build())
		return b
	}
	b.record(KindResilient, skip)
	b.word(uint64(uint32(accessorRef)))
	return b
}

// SinglePayloadEnumSimpleParams describes a single-payload enum whose empty
// cases are encoded directly in payload extra inhabitants and extra tag
// bytes, with no function call needed to read the discriminant.
type SinglePayloadEnumSimpleParams struct {
	Skip          uintptr // address skip before the enum
	PayloadSize   uintptr
	ExtraTagBytes uint8 // 0, 1, 2 or 4 tag bytes after the payload
	XITagBytes    uint8 // 1, 2, 4 or 8 bytes holding the XI tag
	XITagOffset   uint32
	ZeroTagValue  uint64 // XI tag value of the first empty case
	XITagValues   uint64 // number of empty cases encoded in extra inhabitants
	EnumSkip      uintptr // address skip past the enum when an empty case is selected
	Payload       func(*Builder)
}

// SinglePayloadEnumSimple appends a simple single-payload enum record with
// its inline payload sub-program. XITagBytes must be at least one byte even
// when the payload has no extra inhabitants (XITagValues 0), so the
// payload-case check stays well formed.
func (b *Builder) SinglePayloadEnumSimple(p SinglePayloadEnumSimpleParams) *Builder {
	extraPattern := b.extraTagBytesPattern(p.ExtraTagBytes)
	xiPattern := b.tagBytesPattern(p.XITagBytes, false)
	payload := b.sub(p.Payload)

	b.record(KindSinglePayloadEnumSimple, p.Skip)
	b.word(uint64(extraPattern)<<62 | uint64(xiPattern)<<59 | uint64(p.XITagOffset))
	b.word(uint64(p.PayloadSize))
	b.word(p.ZeroTagValue)
	b.word(p.XITagValues)
	b.word(uint64(len(payload)))
	b.word(uint64(p.EnumSkip))
	b.buf = append(b.buf, payload...)
	return b
}

// SinglePayloadEnumFNParams describes a single-payload enum whose
// discriminant is read by a registered tag function.
type SinglePayloadEnumFNParams struct {
	Skip     uintptr
	TagFnRef int32 // relative enum tag function reference
	EnumSkip uintptr
	Payload  func(*Builder)
}

// SinglePayloadEnumFN appends a function-discriminated single-payload enum
// record. Resolution rewrites it to the resolved form in place, which is
// why the reference occupies a full word.
func (b *Builder) SinglePayloadEnumFN(p SinglePayloadEnumFNParams) *Builder {
	if p.TagFnRef <= 0 {
		b.fail(errors.New(errors.PhaseBuild, errors.KindRegistration).
			Value(p.TagFnRef).
			Detail("enum tag function reference must be positive").
			Build())
		return b
	}
	payload := b.sub(p.Payload)

	b.record(KindSinglePayloadEnumFN, p.Skip)
	b.word(uint64(uint32(p.TagFnRef)))
	b.word(uint64(len(payload)))
	b.word(uint64(p.EnumSkip))
	b.buf = append(b.buf, payload...)
	return b
}

// SinglePayloadEnumGenericParams describes a single-payload enum whose
// extra-inhabitant handling delegates to the payload type's witnesses.
type SinglePayloadEnumGenericParams struct {
	Skip          uintptr
	PayloadSize   uintptr
	ExtraTagBytes uint8
	XITagOffset   uint32
	XIType        *metadata.Metadata // nil when the payload has no extra inhabitants
	NumEmptyCases uint32
	EnumSkip      uintptr
	Payload       func(*Builder)
}

// SinglePayloadEnumGeneric appends a generic single-payload enum record.
func (b *Builder) SinglePayloadEnumGeneric(p SinglePayloadEnumGenericParams) *Builder {
	extraPattern := b.extraTagBytesPattern(p.ExtraTagBytes)
	payload := b.sub(p.Payload)

	var xiHandle uint64
	if p.XIType != nil {
		xiHandle = p.XIType.Handle()
	}

	b.record(KindSinglePayloadEnumGeneric, p.Skip)
	b.word(uint64(extraPattern)<<62 | uint64(p.XITagOffset))
	b.word(uint64(p.PayloadSize))
	b.word(xiHandle)
	b.word32(p.NumEmptyCases)
	b.word(uint64(len(payload)))
	b.word(uint64(p.EnumSkip))
	b.buf = append(b.buf, payload...)
	return b
}

// MultiPayloadEnumFNParams describes a multi-payload enum discriminated by
// a registered tag function. Each case is an independent End-terminated
// sub-program.
type MultiPayloadEnumFNParams struct {
	Skip     uintptr
	TagFnRef int32
	EnumSize uintptr
	Cases    []func(*Builder)
}

// MultiPayloadEnumFN appends a function-discriminated multi-payload enum
// record with its case offset table and per-case sub-programs.
func (b *Builder) MultiPayloadEnumFN(p MultiPayloadEnumFNParams) *Builder {
	if p.TagFnRef <= 0 {
		b.fail(errors.New(errors.PhaseBuild, errors.KindRegistration).
			Value(p.TagFnRef).
			Detail("enum tag function reference must be positive").
			Build())
		return b
	}
	offsets, programs := b.casePrograms(p.Cases)

	b.record(KindMultiPayloadEnumFN, p.Skip)
	b.word(uint64(uint32(p.TagFnRef)))
	b.appendMultiPayloadBody(offsets, programs, p.EnumSize)
	return b
}

// MultiPayloadEnumGenericParams describes a multi-payload enum whose
// discriminant lives in trailing tag bytes of the value itself.
type MultiPayloadEnumGenericParams struct {
	Skip     uintptr
	TagBytes uint8 // 1, 2, 4 or 8 trailing discriminant bytes
	EnumSize uintptr
	Cases    []func(*Builder)
}

// MultiPayloadEnumGeneric appends a generic multi-payload enum record.
func (b *Builder) MultiPayloadEnumGeneric(p MultiPayloadEnumGenericParams) *Builder {
	b.tagBytesPattern(p.TagBytes, false) // width check only; stored as a count
	if uintptr(p.TagBytes) > p.EnumSize {
		b.fail(errors.New(errors.PhaseBuild, errors.KindInvalidData).
			Detail("enum size %d smaller than its %d tag bytes", p.EnumSize, p.TagBytes).
			Build())
		return b
	}
	offsets, programs := b.casePrograms(p.Cases)

	b.record(KindMultiPayloadEnumGeneric, p.Skip)
	b.word(uint64(p.TagBytes))
	b.appendMultiPayloadBody(offsets, programs, p.EnumSize)
	return b
}

// casePrograms builds each case's End-terminated sub-program and its offset
// into the concatenated program region.
func (b *Builder) casePrograms(cases []func(*Builder)) ([]uint64, []byte) {
	offsets := make([]uint64, len(cases))
	var programs []byte
	for i, fn := range cases {
		offsets[i] = uint64(len(programs))
		programs = append(programs, b.sub(fn)...)
		programs = binary.LittleEndian.AppendUint64(programs, RecordHeader(KindEnd, 0))
	}
	return offsets, programs
}

func (b *Builder) appendMultiPayloadBody(offsets []uint64, programs []byte, enumSize uintptr) {
	b.word(uint64(len(offsets)))
	b.word(uint64(len(programs)))
	b.word(uint64(enumSize))
	for _, off := range offsets {
		b.word(off)
	}
	b.buf = append(b.buf, programs...)
}

// Finish terminates the record section and prepends the string header. The
// returned buffer is ready for InstantiateLayoutString.
func (b *Builder) Finish() ([]byte, error) {
	if b.err != nil {
		return nil, b.err
	}

	records := len(b.buf) + 8 // including the End record

	out := make([]byte, 0, HeaderSize+records)
	out = binary.LittleEndian.AppendUint64(out, uint64(records))
	out = binary.LittleEndian.AppendUint64(out, 0) // reserved flags
	out = append(out, b.buf...)
	out = binary.LittleEndian.AppendUint64(out, RecordHeader(KindEnd, 0))
	return out, nil
}
