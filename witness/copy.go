package witness

import (
	"encoding/binary"

	"github.com/wippyai/layout-runtime/heap"
	"github.com/wippyai/layout-runtime/metadata"
)

type initFn func(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte)

// initWithCopyTable is indexed by RefCountKind. The entry points copy the
// value bytes before walking, so retain handlers read the already-copied
// dest word. Populated in init: the multi-payload handlers close over the
// walk, which reads the table, so a var initializer would form an
// initialization cycle.
var initWithCopyTable [NumRefCountKinds]initFn

func init() {
	initWithCopyTable = [NumRefCountKinds]initFn{
		KindError:                       copyError,
		KindNativeStrong:                copyNativeStrong,
		KindNativeUnowned:               copyNativeUnowned,
		KindNativeWeak:                  copyNativeWeak,
		KindUnknown:                     copyUnknown,
		KindUnknownUnowned:              copyUnknownUnowned,
		KindUnknownWeak:                 copyUnknownWeak,
		KindBridge:                      copyBridge,
		KindMetatype:                    copyMetatype,
		KindExistential:                 copyExistential,
		KindResilient:                   copyResilient,
		KindSinglePayloadEnumSimple:     copySinglePayloadEnumSimple,
		KindSinglePayloadEnumFN:         copySinglePayloadEnumFN,
		KindSinglePayloadEnumFNResolved: copySinglePayloadEnumFNResolved,
		KindSinglePayloadEnumGeneric:    copySinglePayloadEnumGeneric,
		KindMultiPayloadEnumFN:          copyMultiPayloadEnumFN,
		KindMultiPayloadEnumFNResolved:  copyMultiPayloadEnumFNResolved,
		KindMultiPayloadEnumGeneric:     copyMultiPayloadEnumGeneric,
	}
}

func (e *Engine) walkCopy(md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	for {
		skip, kind := SplitRecordHeader(r.ReadUint64())
		*addrOffset += skip

		if fn := initWithCopyTable[kind]; fn != nil {
			fn(e, md, r, addrOffset, dest, src)
		}
		if kind == KindEnd {
			return
		}
	}
}

func copyError(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	e.rc.ErrorRetain(handleWord(dest, *addrOffset))
}

func copyNativeStrong(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	e.rc.Retain(handleWord(dest, *addrOffset) &^ heap.SpareBitsMask)
}

func copyNativeUnowned(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	e.rc.UnownedRetain(handleWord(dest, *addrOffset) &^ heap.SpareBitsMask)
}

func copyNativeWeak(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	e.rc.WeakCopyInit(dest[*addrOffset:], src[*addrOffset:])
}

func copyUnknown(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	e.rc.UnknownRetain(handleWord(dest, *addrOffset))
}

func copyUnknownUnowned(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	e.rc.UnknownUnownedCopyInit(dest[*addrOffset:], src[*addrOffset:])
}

func copyUnknownWeak(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	e.rc.UnknownWeakCopyInit(dest[*addrOffset:], src[*addrOffset:])
}

func copyBridge(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	e.rc.BridgeRetain(handleWord(dest, *addrOffset))
}

func copyMetatype(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	t := metadata.Lookup(r.ReadUint64())
	t.VWInitializeWithCopy(dest[*addrOffset:], src[*addrOffset:])
}

func copyExistential(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	t := existentialType(src[*addrOffset:])
	if t.IsValueInline() {
		t.VWInitializeWithCopy(dest[*addrOffset:], src[*addrOffset:])
		return
	}
	handle := binary.LittleEndian.Uint64(src[*addrOffset:])
	binary.LittleEndian.PutUint64(dest[*addrOffset:], handle)
	e.rc.Retain(handle)
}

func copyResilient(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	t := resilientType(md, r)
	t.VWInitializeWithCopy(dest[*addrOffset:], src[*addrOffset:])
}

func copySinglePayloadEnumSimple(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	singlePayloadEnumSimple(r, addrOffset, dest)
}

func copySinglePayloadEnumFN(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	singlePayloadEnumFN(r, addrOffset, dest)
}

func copySinglePayloadEnumFNResolved(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	singlePayloadEnumFNResolved(r, addrOffset, dest)
}

func copySinglePayloadEnumGeneric(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	singlePayloadEnumGeneric(r, addrOffset, dest)
}

func (e *Engine) recurseCopy(md *metadata.Metadata, dest, src []byte) recurseFn {
	return func(nested Reader, nestedAddrOffset uintptr) {
		e.walkCopy(md, &nested, &nestedAddrOffset, dest, src)
	}
}

func copyMultiPayloadEnumFN(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	multiPayloadEnumFN(r, addrOffset, dest, e.recurseCopy(md, dest, src))
}

func copyMultiPayloadEnumFNResolved(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	multiPayloadEnumFNResolved(r, addrOffset, dest, e.recurseCopy(md, dest, src))
}

func copyMultiPayloadEnumGeneric(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	multiPayloadEnumGeneric(r, addrOffset, dest, e.recurseCopy(md, dest, src))
}
