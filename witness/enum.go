package witness

import (
	"github.com/wippyai/layout-runtime/metadata"
	"github.com/wippyai/layout-runtime/witness/internal/tag"
)

// Shared enum handler cores. The destroy and init walks differ only in
// which buffer the discriminant is read from and which walk recurses into
// a live payload's sub-program, so each dispatch table binds these cores
// through a thin adapter.
//
// Single-payload cores decide between two continuations: an empty case is
// selected, so the nested payload records are skipped and addrOffset jumps
// past the enum, or the payload case is live and the walk simply continues
// into the inline payload records.

func singlePayloadEnumSimple(r *Reader, addrOffset *uintptr, addr []byte) {
	r.Modify(func(r *Reader) {
		byteCountsAndOffset := r.ReadUint64()
		payloadSize := uintptr(r.ReadUint64())
		zeroTagValue := r.ReadUint64()
		xiTagValues := r.ReadUint64()
		refCountBytes := int(r.ReadUint64())
		skip := uintptr(r.ReadUint64())

		extraTagBytesPattern := uint8(byteCountsAndOffset >> 62)
		xiTagBytesPattern := uint8(byteCountsAndOffset>>59) & 0x7
		xiTagBytesOffset := uintptr(byteCountsAndOffset & 0xFFFF_FFFF)

		if extraTagBytesPattern != 0 {
			extraTagBytes := uint8(1) << (extraTagBytesPattern - 1)
			if tag.Read(addr[*addrOffset+payloadSize:], extraTagBytes) != 0 {
				xiTagBytesPattern = 0
			}
		}

		if xiTagBytesPattern != 0 {
			xiTagBytes := uint8(1) << (xiTagBytesPattern - 1)
			// Values below zeroTagValue wrap around and land above
			// xiTagValues, selecting the payload case.
			tagValue := tag.Read(addr[*addrOffset+xiTagBytesOffset:], xiTagBytes) - zeroTagValue
			if tagValue >= xiTagValues {
				return
			}
		}

		r.Skip(refCountBytes)
		*addrOffset += skip
	})
}

func singlePayloadEnumFN(r *Reader, addrOffset *uintptr, addr []byte) {
	r.Modify(func(r *Reader) {
		getEnumTag := metadata.EnumTagFnByRef(r.ReadRelativeRef())

		if getEnumTag(addr[*addrOffset:]) == 0 {
			r.Skip(16)
			return
		}
		refCountBytes := int(r.ReadUint64())
		skip := uintptr(r.ReadUint64())
		r.Skip(refCountBytes)
		*addrOffset += skip
	})
}

func singlePayloadEnumFNResolved(r *Reader, addrOffset *uintptr, addr []byte) {
	r.Modify(func(r *Reader) {
		getEnumTag := metadata.EnumTagFnByKey(r.ReadUint64())
		refCountBytes := int(r.ReadUint64())
		skip := uintptr(r.ReadUint64())

		if getEnumTag(addr[*addrOffset:]) != 0 {
			r.Skip(refCountBytes)
			*addrOffset += skip
		}
	})
}

func singlePayloadEnumGeneric(r *Reader, addrOffset *uintptr, addr []byte) {
	r.Modify(func(r *Reader) {
		tagBytesAndOffset := r.ReadUint64()
		payloadSize := uintptr(r.ReadUint64())
		xiType := metadata.Lookup(r.ReadUint64())
		numEmptyCases := r.ReadUint32()
		refCountBytes := int(r.ReadUint64())
		skip := uintptr(r.ReadUint64())

		extraTagBytesPattern := uint8(tagBytesAndOffset >> 62)
		xiTagBytesOffset := uintptr(tagBytesAndOffset & 0xFFFF_FFFF)

		if extraTagBytesPattern != 0 {
			extraTagBytes := uint8(1) << (extraTagBytesPattern - 1)
			if tag.Read(addr[*addrOffset+payloadSize:], extraTagBytes) != 0 {
				xiType = nil
			}
		}

		if xiType != nil {
			caseTag := xiType.VWGetEnumTagSinglePayload(addr[*addrOffset+xiTagBytesOffset:], numEmptyCases)
			if caseTag == 0 {
				return
			}
		}

		r.Skip(refCountBytes)
		*addrOffset += skip
	})
}

// recurseFn runs one table's walk over a payload case's sub-program. The
// nested cursor and address offset are copies; the outer record accounts
// for the whole enum itself.
type recurseFn func(nested Reader, nestedAddrOffset uintptr)

func multiPayloadEnumBody(r *Reader, addrOffset *uintptr, addr []byte, getEnumTag metadata.EnumTagFn, recurse recurseFn) {
	numPayloads := r.ReadUint64()
	refCountBytes := int(r.ReadUint64())
	enumSize := uintptr(r.ReadUint64())

	enumTag := uint64(getEnumTag(addr[*addrOffset:]))

	if enumTag < numPayloads {
		refCountOffset := int(r.PeekUint64(int(enumTag) * 8))

		nested := *r
		nested.Skip(int(numPayloads)*8 + refCountOffset)
		recurse(nested, *addrOffset)
	}

	r.Skip(refCountBytes + int(numPayloads)*8)
	*addrOffset += enumSize
}

func multiPayloadEnumFN(r *Reader, addrOffset *uintptr, addr []byte, recurse recurseFn) {
	r.Modify(func(r *Reader) {
		getEnumTag := metadata.EnumTagFnByRef(r.ReadRelativeRef())
		multiPayloadEnumBody(r, addrOffset, addr, getEnumTag, recurse)
	})
}

func multiPayloadEnumFNResolved(r *Reader, addrOffset *uintptr, addr []byte, recurse recurseFn) {
	r.Modify(func(r *Reader) {
		getEnumTag := metadata.EnumTagFnByKey(r.ReadUint64())
		multiPayloadEnumBody(r, addrOffset, addr, getEnumTag, recurse)
	})
}

func multiPayloadEnumGeneric(r *Reader, addrOffset *uintptr, addr []byte, recurse recurseFn) {
	var (
		numPayloads      uint64
		enumTag          uint64
		nested           Reader
		nestedAddrOffset uintptr
	)
	r.Modify(func(r *Reader) {
		tagBytes := uint8(r.ReadUint64())
		numPayloads = r.ReadUint64()
		refCountBytes := int(r.ReadUint64())
		enumSize := uintptr(r.ReadUint64())

		nested = *r
		nestedAddrOffset = *addrOffset
		tagBytesOffset := enumSize - uintptr(tagBytes)

		r.Skip(refCountBytes + int(numPayloads)*8)
		enumTag = tag.Read(addr[*addrOffset+tagBytesOffset:], tagBytes)

		*addrOffset += enumSize
	})

	if enumTag < numPayloads {
		refCountOffset := int(nested.PeekUint64(int(enumTag) * 8))

		nested.Skip(int(numPayloads)*8 + refCountOffset)
		recurse(nested, nestedAddrOffset)
	}
}
