package witness

import (
	"github.com/wippyai/layout-runtime/heap"
	"github.com/wippyai/layout-runtime/metadata"
)

type destroyFn func(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte)

// destroyTable is indexed by RefCountKind. A nil slot means destroy is a
// no-op for that kind. Populated in init: the multi-payload handlers close
// over the walk, which reads the table, so a var initializer would form an
// initialization cycle.
var destroyTable [NumRefCountKinds]destroyFn

func init() {
	destroyTable = [NumRefCountKinds]destroyFn{
		KindError:                       destroyError,
		KindNativeStrong:                destroyNativeStrong,
		KindNativeUnowned:               destroyNativeUnowned,
		KindNativeWeak:                  destroyNativeWeak,
		KindUnknown:                     destroyUnknown,
		KindUnknownUnowned:              destroyUnknownUnowned,
		KindUnknownWeak:                 destroyUnknownWeak,
		KindBridge:                      destroyBridge,
		KindMetatype:                    destroyMetatype,
		KindExistential:                 destroyExistential,
		KindResilient:                   destroyResilient,
		KindSinglePayloadEnumSimple:     destroySinglePayloadEnumSimple,
		KindSinglePayloadEnumFN:         destroySinglePayloadEnumFN,
		KindSinglePayloadEnumFNResolved: destroySinglePayloadEnumFNResolved,
		KindSinglePayloadEnumGeneric:    destroySinglePayloadEnumGeneric,
		KindMultiPayloadEnumFN:          destroyMultiPayloadEnumFN,
		KindMultiPayloadEnumFNResolved:  destroyMultiPayloadEnumFNResolved,
		KindMultiPayloadEnumGeneric:     destroyMultiPayloadEnumGeneric,
	}
}

// walkDestroy runs destroy records until End. Each record header adds its
// skip to addrOffset before dispatch.
func (e *Engine) walkDestroy(md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	for {
		skip, kind := SplitRecordHeader(r.ReadUint64())
		*addrOffset += skip

		if fn := destroyTable[kind]; fn != nil {
			fn(e, md, r, addrOffset, addr)
		}
		if kind == KindEnd {
			return
		}
	}
}

func destroyError(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	e.rc.ErrorRelease(handleWord(addr, *addrOffset))
}

func destroyNativeStrong(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	e.rc.Release(handleWord(addr, *addrOffset) &^ heap.SpareBitsMask)
}

func destroyNativeUnowned(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	e.rc.UnownedRelease(handleWord(addr, *addrOffset) &^ heap.SpareBitsMask)
}

func destroyNativeWeak(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	e.rc.WeakDestroy(addr[*addrOffset:])
}

func destroyUnknown(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	e.rc.UnknownRelease(handleWord(addr, *addrOffset))
}

func destroyUnknownUnowned(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	e.rc.UnknownUnownedDestroy(addr[*addrOffset:])
}

func destroyUnknownWeak(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	e.rc.UnknownWeakDestroy(addr[*addrOffset:])
}

func destroyBridge(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	e.rc.BridgeRelease(handleWord(addr, *addrOffset))
}

func destroyMetatype(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	t := metadata.Lookup(r.ReadUint64())
	t.VWDestroy(addr[*addrOffset:])
}

func destroyExistential(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	container := addr[*addrOffset:]
	t := existentialType(container)
	if t.IsValueInline() {
		t.VWDestroy(container)
	} else {
		e.rc.Release(handleWord(container, 0))
	}
}

func destroyResilient(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	t := resilientType(md, r)
	t.VWDestroy(addr[*addrOffset:])
}

func destroySinglePayloadEnumSimple(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	singlePayloadEnumSimple(r, addrOffset, addr)
}

func destroySinglePayloadEnumFN(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	singlePayloadEnumFN(r, addrOffset, addr)
}

func destroySinglePayloadEnumFNResolved(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	singlePayloadEnumFNResolved(r, addrOffset, addr)
}

func destroySinglePayloadEnumGeneric(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	singlePayloadEnumGeneric(r, addrOffset, addr)
}

func (e *Engine) recurseDestroy(md *metadata.Metadata, addr []byte) recurseFn {
	return func(nested Reader, nestedAddrOffset uintptr) {
		e.walkDestroy(md, &nested, &nestedAddrOffset, addr)
	}
}

func destroyMultiPayloadEnumFN(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	multiPayloadEnumFN(r, addrOffset, addr, e.recurseDestroy(md, addr))
}

func destroyMultiPayloadEnumFNResolved(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	multiPayloadEnumFNResolved(r, addrOffset, addr, e.recurseDestroy(md, addr))
}

func destroyMultiPayloadEnumGeneric(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, addr []byte) {
	multiPayloadEnumGeneric(r, addrOffset, addr, e.recurseDestroy(md, addr))
}
