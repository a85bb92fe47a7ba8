package witness

// RefCountKind selects the handler for one layout string record. The set is
// closed: every kind has a slot in all three dispatch tables, where a nil
// slot means the operation is a no-op for that kind.
type RefCountKind uint8

const (
	KindEnd RefCountKind = iota
	KindError
	KindNativeStrong
	KindNativeUnowned
	KindNativeWeak
	KindUnknown
	KindUnknownUnowned
	KindUnknownWeak
	KindBridge
	KindBlock
	KindObjCStrong
	KindCustom
	KindMetatype
	KindGeneric
	KindExistential
	KindResilient
	KindSinglePayloadEnumSimple
	KindSinglePayloadEnumFN
	KindSinglePayloadEnumFNResolved
	KindSinglePayloadEnumGeneric
	KindMultiPayloadEnumFN
	KindMultiPayloadEnumFNResolved
	KindMultiPayloadEnumGeneric

	numRefCountKinds
)

// NumRefCountKinds is the size of the closed kind set.
const NumRefCountKinds = int(numRefCountKinds)

var kindNames = [...]string{
	KindEnd:                         "end",
	KindError:                       "error",
	KindNativeStrong:                "native_strong",
	KindNativeUnowned:               "native_unowned",
	KindNativeWeak:                  "native_weak",
	KindUnknown:                     "unknown",
	KindUnknownUnowned:              "unknown_unowned",
	KindUnknownWeak:                 "unknown_weak",
	KindBridge:                      "bridge",
	KindBlock:                       "block",
	KindObjCStrong:                  "objc_strong",
	KindCustom:                      "custom",
	KindMetatype:                    "metatype",
	KindGeneric:                     "generic",
	KindExistential:                 "existential",
	KindResilient:                   "resilient",
	KindSinglePayloadEnumSimple:     "single_payload_enum_simple",
	KindSinglePayloadEnumFN:         "single_payload_enum_fn",
	KindSinglePayloadEnumFNResolved: "single_payload_enum_fn_resolved",
	KindSinglePayloadEnumGeneric:    "single_payload_enum_generic",
	KindMultiPayloadEnumFN:          "multi_payload_enum_fn",
	KindMultiPayloadEnumFNResolved:  "multi_payload_enum_fn_resolved",
	KindMultiPayloadEnumGeneric:     "multi_payload_enum_generic",
}

func (k RefCountKind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "invalid"
}

// IsEnum reports whether the kind carries a nested enum layout.
func (k RefCountKind) IsEnum() bool {
	return k >= KindSinglePayloadEnumSimple && k <= KindMultiPayloadEnumGeneric
}

// HeaderSize is the fixed prefix of every layout string: the total byte
// length of the record section followed by reserved flags.
const HeaderSize = 16

// Record headers pack a 56-bit address skip under an 8-bit kind.
const (
	recordKindShift = 56
	recordSkipMask  = (uint64(1) << recordKindShift) - 1
)

// RecordHeader packs skip and kind into a record header word.
func RecordHeader(kind RefCountKind, skip uintptr) uint64 {
	return uint64(kind)<<recordKindShift | uint64(skip)&recordSkipMask
}

// SplitRecordHeader splits a record header word into its address skip and
// reference-count kind.
func SplitRecordHeader(word uint64) (skip uintptr, kind RefCountKind) {
	return uintptr(word & recordSkipMask), RefCountKind(word >> recordKindShift)
}
