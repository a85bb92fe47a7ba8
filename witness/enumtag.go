package witness

import (
	"github.com/wippyai/layout-runtime/metadata"
	"github.com/wippyai/layout-runtime/witness/internal/tag"
)

// Enum tag entry points. Each operates on a value whose layout string holds
// exactly one enum record, so operands start right after the string header
// and that record's header word.
const enumRecordOffset = HeaderSize + 8

// SingletonGetEnumTag returns the tag of a one-case enum, which is always 0.
func SingletonGetEnumTag(value []byte, md *metadata.Metadata) uint32 {
	return 0
}

// SingletonInjectEnumTag writes the tag of a one-case enum, which needs no
// representation at all.
func SingletonInjectEnumTag(value []byte, enumTag uint32, md *metadata.Metadata) {
}

type enumSimpleOperands struct {
	extraTagBytesPattern uint8
	xiTagBytesPattern    uint8
	xiTagBytesOffset     uintptr
	numExtraTagBytes     uintptr
	payloadSize          uintptr
	zeroTagValue         uint64
	payloadNumXI         uint64
}

func readEnumSimpleOperands(md *metadata.Metadata) enumSimpleOperands {
	r := NewReader(md.LayoutString(), enumRecordOffset)

	byteCountsAndOffset := r.ReadUint64()
	var ops enumSimpleOperands
	ops.extraTagBytesPattern = uint8(byteCountsAndOffset >> 62)
	ops.xiTagBytesPattern = uint8(byteCountsAndOffset>>59) & 0x7
	ops.xiTagBytesOffset = uintptr(byteCountsAndOffset & 0xFFFF_FFFF)
	if ops.extraTagBytesPattern != 0 {
		ops.numExtraTagBytes = uintptr(1) << (ops.extraTagBytesPattern - 1)
	}
	ops.payloadSize = uintptr(r.ReadUint64())
	ops.zeroTagValue = r.ReadUint64()
	ops.payloadNumXI = r.ReadUint64()
	return ops
}

// EnumSimpleGetEnumTag reads the case tag of a single-payload enum whose
// empty cases live in the payload's extra inhabitants and, past those, in
// extra tag bytes after the payload. Tag 0 is the payload case; empty cases
// follow from 1.
func EnumSimpleGetEnumTag(value []byte, md *metadata.Metadata) uint32 {
	ops := readEnumSimpleOperands(md)

	if ops.extraTagBytesPattern != 0 {
		tagBytes := tag.Read(value[ops.payloadSize:], uint8(ops.numExtraTagBytes))
		if tagBytes != 0 {
			var caseIndexFromExtraTagBits uint32
			if ops.payloadSize < 4 {
				caseIndexFromExtraTagBits = uint32(tagBytes-1) << (ops.payloadSize * 8)
			}
			caseIndexFromValue := uint32(tag.LoadElement(value, ops.payloadSize))
			noPayloadIndex := (caseIndexFromExtraTagBits | caseIndexFromValue) + uint32(ops.payloadNumXI)
			return noPayloadIndex + 1
		}
	}

	xiTagBytes := uint8(1) << (ops.xiTagBytesPattern - 1)
	tagBytes := tag.Read(value[ops.xiTagBytesOffset:], xiTagBytes) - ops.zeroTagValue
	if tagBytes < ops.payloadNumXI {
		return uint32(tagBytes) + 1
	}
	return 0
}

// EnumSimpleInjectEnumTag stores a case tag produced by EnumSimpleGetEnumTag
// back into the value, destroying the previous case representation.
func EnumSimpleInjectEnumTag(value []byte, enumTag uint32, md *metadata.Metadata) {
	ops := readEnumSimpleOperands(md)

	if ops.extraTagBytesPattern != 0 && uint64(enumTag) > ops.payloadNumXI {
		storeExtraTagCase(value, enumTag, uint32(ops.payloadNumXI), ops.payloadSize, ops.numExtraTagBytes)
		return
	}

	xiTagBytes := uint8(1) << (ops.xiTagBytesPattern - 1)
	if uint64(enumTag) <= ops.payloadNumXI {
		if ops.numExtraTagBytes != 0 {
			tag.StoreElement(value[ops.payloadSize:], 0, ops.numExtraTagBytes)
		}
		if enumTag == 0 {
			return
		}
		tag.StoreElement(value[ops.xiTagBytesOffset:], uint64(enumTag)-1+ops.zeroTagValue, uintptr(xiTagBytes))
	}
}

// storeExtraTagCase encodes an empty case that does not fit the payload's
// extra inhabitants: the case index past the XI range is split between the
// payload bits and the extra tag bytes.
func storeExtraTagCase(value []byte, enumTag, payloadNumXI uint32, payloadSize, numExtraTagBytes uintptr) {
	noPayloadIndex := enumTag - 1
	caseIndex := noPayloadIndex - payloadNumXI

	var payloadIndex, extraTagIndex uint32
	if payloadSize >= 4 {
		extraTagIndex = 1
		payloadIndex = caseIndex
	} else {
		payloadBits := uint(payloadSize * 8)
		extraTagIndex = 1 + (caseIndex >> payloadBits)
		payloadIndex = caseIndex & ((1 << payloadBits) - 1)
	}

	if payloadSize != 0 {
		tag.StoreElement(value, uint64(payloadIndex), payloadSize)
	}
	if numExtraTagBytes != 0 {
		tag.StoreElement(value[payloadSize:], uint64(extraTagIndex), numExtraTagBytes)
	}
}

// EnumFnGetEnumTag reads the case tag through the enum's registered tag
// function.
func EnumFnGetEnumTag(value []byte, md *metadata.Metadata) uint32 {
	r := NewReader(md.LayoutString(), enumRecordOffset)
	getEnumTag := metadata.EnumTagFnByRef(r.ReadRelativeRef())
	return getEnumTag(value)
}

// MultiPayloadEnumGenericGetEnumTag reads the case tag of a multi-payload
// enum whose discriminant lives in trailing tag bytes. Payload cases map
// directly to the tag value; empty cases additionally spill into the
// payload bits.
func MultiPayloadEnumGenericGetEnumTag(value []byte, md *metadata.Metadata) uint32 {
	r := NewReader(md.LayoutString(), enumRecordOffset)

	tagBytes := uintptr(r.ReadUint64())
	numPayloads := uint64(r.ReadUint64())
	r.Skip(8) // ref count bytes
	enumSize := uintptr(r.ReadUint64())
	payloadSize := enumSize - tagBytes

	enumTag := uint32(tag.Read(value[payloadSize:], uint8(tagBytes)))
	if uint64(enumTag) < numPayloads {
		return enumTag
	}

	payloadValue := uint32(tag.LoadElement(value, payloadSize))

	if payloadSize >= 4 {
		return uint32(numPayloads) + payloadValue
	}
	numPayloadBits := uint(payloadSize * 8)
	return (payloadValue | (enumTag-uint32(numPayloads))<<numPayloadBits) + uint32(numPayloads)
}

// MultiPayloadEnumGenericInjectEnumTag stores a case tag back into a
// multi-payload enum value.
func MultiPayloadEnumGenericInjectEnumTag(value []byte, enumTag uint32, md *metadata.Metadata) {
	r := NewReader(md.LayoutString(), enumRecordOffset)

	numTagBytes := uintptr(r.ReadUint64())
	numPayloads := uint64(r.ReadUint64())
	r.Skip(8) // ref count bytes
	enumSize := uintptr(r.ReadUint64())
	payloadSize := enumSize - numTagBytes

	if uint64(enumTag) < numPayloads {
		tag.StoreElement(value[payloadSize:], uint64(enumTag), numTagBytes)
		return
	}

	whichEmptyCase := enumTag - uint32(numPayloads)
	var whichTag, whichPayloadValue uint32
	if payloadSize >= 4 {
		whichTag = uint32(numPayloads)
		whichPayloadValue = whichEmptyCase
	} else {
		numPayloadBits := uint(payloadSize * 8)
		whichTag = uint32(numPayloads) + (whichEmptyCase >> numPayloadBits)
		whichPayloadValue = whichEmptyCase & ((1 << numPayloadBits) - 1)
	}
	tag.StoreElement(value[payloadSize:], uint64(whichTag), numTagBytes)
	tag.StoreElement(value, uint64(whichPayloadValue), payloadSize)
}

type enumGenericOperands struct {
	extraTagBytesPattern uint8
	xiTagBytesOffset     uintptr
	numExtraTagBytes     uintptr
	payloadSize          uintptr
	xiType               *metadata.Metadata
	numEmptyCases        uint32
}

func readEnumGenericOperands(md *metadata.Metadata) enumGenericOperands {
	r := NewReader(md.LayoutString(), enumRecordOffset)

	tagBytesAndOffset := r.ReadUint64()
	var ops enumGenericOperands
	ops.extraTagBytesPattern = uint8(tagBytesAndOffset >> 62)
	ops.xiTagBytesOffset = uintptr(tagBytesAndOffset & 0xFFFF_FFFF)
	if ops.extraTagBytesPattern != 0 {
		ops.numExtraTagBytes = uintptr(1) << (ops.extraTagBytesPattern - 1)
	}
	ops.payloadSize = uintptr(r.ReadUint64())
	ops.xiType = metadata.Lookup(r.ReadUint64())
	ops.numEmptyCases = r.ReadUint32()
	return ops
}

// SinglePayloadEnumGenericGetEnumTag reads the case tag of a single-payload
// enum whose extra-inhabitant handling is delegated to the payload type's
// own witnesses.
func SinglePayloadEnumGenericGetEnumTag(value []byte, md *metadata.Metadata) uint32 {
	ops := readEnumGenericOperands(md)

	if ops.extraTagBytesPattern != 0 {
		tagBytes := tag.Read(value[ops.payloadSize:], uint8(ops.numExtraTagBytes))
		if tagBytes != 0 {
			var payloadNumXI uint32
			if ops.xiType != nil {
				payloadNumXI = ops.xiType.ValueWitnesses().NumExtraInhabitants
			}
			var caseIndexFromExtraTagBits uint32
			if ops.payloadSize < 4 {
				caseIndexFromExtraTagBits = uint32(tagBytes-1) << (ops.payloadSize * 8)
			}
			caseIndexFromValue := uint32(tag.LoadElement(value, ops.payloadSize))
			noPayloadIndex := (caseIndexFromExtraTagBits | caseIndexFromValue) + payloadNumXI
			return noPayloadIndex + 1
		}
	}

	if ops.xiType != nil {
		return ops.xiType.VWGetEnumTagSinglePayload(value[ops.xiTagBytesOffset:], ops.numEmptyCases)
	}
	return 0
}

// SinglePayloadEnumGenericInjectEnumTag stores a case tag back into a
// single-payload enum value, delegating extra-inhabitant encoding to the
// payload type's witnesses.
func SinglePayloadEnumGenericInjectEnumTag(value []byte, enumTag uint32, md *metadata.Metadata) {
	ops := readEnumGenericOperands(md)

	var payloadNumXI uint32
	if ops.xiType != nil {
		payloadNumXI = ops.xiType.ValueWitnesses().NumExtraInhabitants
	}

	if ops.extraTagBytesPattern != 0 && enumTag > payloadNumXI {
		storeExtraTagCase(value, enumTag, payloadNumXI, ops.payloadSize, ops.numExtraTagBytes)
		return
	}

	if enumTag <= payloadNumXI {
		if ops.numExtraTagBytes != 0 {
			tag.StoreElement(value[ops.payloadSize:], 0, ops.numExtraTagBytes)
		}
		if enumTag == 0 {
			return
		}
		ops.xiType.VWStoreEnumTagSinglePayload(value[ops.xiTagBytesOffset:], enumTag, ops.numEmptyCases)
	}
}
