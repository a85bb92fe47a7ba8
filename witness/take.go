package witness

import "github.com/wippyai/layout-runtime/metadata"

// initWithTakeTable is indexed by RefCountKind. Moving a value transfers
// its references with the bits, so every plainly reference-counted kind is
// bitwise-takable and its slot stays nil. Only containers with registration
// side tables (unknown weak), tagged bridge words, and delegating kinds
// need fixups after the byte copy. Populated in init: the multi-payload
// handlers close over the walk, which reads the table, so a var initializer
// would form an initialization cycle.
var initWithTakeTable [NumRefCountKinds]initFn

func init() {
	initWithTakeTable = [NumRefCountKinds]initFn{
		KindUnknownWeak:                 takeUnknownWeak,
		KindBridge:                      copyBridge,
		KindMetatype:                    takeMetatype,
		KindExistential:                 takeExistential,
		KindResilient:                   takeResilient,
		KindSinglePayloadEnumSimple:     copySinglePayloadEnumSimple,
		KindSinglePayloadEnumFN:         copySinglePayloadEnumFN,
		KindSinglePayloadEnumFNResolved: copySinglePayloadEnumFNResolved,
		KindSinglePayloadEnumGeneric:    copySinglePayloadEnumGeneric,
		KindMultiPayloadEnumFN:          takeMultiPayloadEnumFN,
		KindMultiPayloadEnumFNResolved:  takeMultiPayloadEnumFNResolved,
		KindMultiPayloadEnumGeneric:     takeMultiPayloadEnumGeneric,
	}
}

func (e *Engine) walkTake(md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	for {
		skip, kind := SplitRecordHeader(r.ReadUint64())
		*addrOffset += skip

		if fn := initWithTakeTable[kind]; fn != nil {
			fn(e, md, r, addrOffset, dest, src)
		}
		if kind == KindEnd {
			return
		}
	}
}

func takeUnknownWeak(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	e.rc.UnknownWeakTakeInit(dest[*addrOffset:], src[*addrOffset:])
}

func takeMetatype(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	t := metadata.Lookup(r.ReadUint64())
	if !t.IsBitwiseTakable() {
		t.VWInitializeWithTake(dest[*addrOffset:], src[*addrOffset:])
	}
}

func takeExistential(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	t := existentialType(src[*addrOffset:])
	if !t.IsBitwiseTakable() {
		t.VWInitializeWithTake(dest[*addrOffset:], src[*addrOffset:])
	}
}

func takeResilient(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	t := resilientType(md, r)
	if !t.IsBitwiseTakable() {
		t.VWInitializeWithTake(dest[*addrOffset:], src[*addrOffset:])
	}
}

func (e *Engine) recurseTake(md *metadata.Metadata, dest, src []byte) recurseFn {
	return func(nested Reader, nestedAddrOffset uintptr) {
		e.walkTake(md, &nested, &nestedAddrOffset, dest, src)
	}
}

func takeMultiPayloadEnumFN(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	multiPayloadEnumFN(r, addrOffset, dest, e.recurseTake(md, dest, src))
}

func takeMultiPayloadEnumFNResolved(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	multiPayloadEnumFNResolved(r, addrOffset, dest, e.recurseTake(md, dest, src))
}

func takeMultiPayloadEnumGeneric(e *Engine, md *metadata.Metadata, r *Reader, addrOffset *uintptr, dest, src []byte) {
	multiPayloadEnumGeneric(r, addrOffset, dest, e.recurseTake(md, dest, src))
}
