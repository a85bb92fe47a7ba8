package witness

import (
	"go.uber.org/zap"

	"github.com/wippyai/layout-runtime/metadata"
)

// ResolveLayoutString rewrites every relative reference in a layout string
// into a direct key, in place: resilient records become metatype records
// holding the materialized type's handle, and FN enum records become their
// FNResolved forms holding registry keys. The pass runs once, before the
// string goes on the hot path; resolved strings are idempotent under it.
func ResolveLayoutString(layoutStr []byte, md *metadata.Metadata) {
	ResolveResilientAccessors(layoutStr, HeaderSize, layoutStr[HeaderSize:], md)
	Logger().Debug("layout string resolved",
		zap.String("type", md.Name()),
		zap.Int("bytes", len(layoutStr)))
}

// ResolveResilientAccessors resolves one field's record region inside an
// enclosing layout string. layoutStrOffset is where the field's records
// start within layoutStr; fieldLayoutStr is the same region viewed from its
// first record; fieldType supplies the generic arguments resilient
// accessors run over. Composite instantiation calls this once per field
// after splicing the field's records into the enclosing string.
func ResolveResilientAccessors(layoutStr []byte, layoutStrOffset int, fieldLayoutStr []byte, fieldType *metadata.Metadata) {
	writer := NewWriter(layoutStr, layoutStrOffset)
	r := NewReader(fieldLayoutStr, 0)
	for {
		currentOffset := r.Offset()
		skip, kind := SplitRecordHeader(r.ReadUint64())

		switch kind {
		case KindEnd:
			return

		case KindResilient:
			t := resilientType(fieldType, &r)
			writer.Seek(layoutStrOffset + currentOffset)
			writer.WriteUint64(RecordHeader(KindMetatype, skip))
			writer.WriteUint64(t.Handle())

		case KindMetatype:
			r.Skip(8)

		case KindSinglePayloadEnumSimple:
			r.Skip(6 * 8)

		case KindSinglePayloadEnumFN:
			key := metadata.ResolveEnumTagRef(r.ReadRelativeRef())
			writer.Seek(layoutStrOffset + currentOffset)
			writer.WriteUint64(RecordHeader(KindSinglePayloadEnumFNResolved, skip))
			writer.WriteUint64(key)
			r.Skip(2 * 8)

		case KindSinglePayloadEnumFNResolved:
			r.Skip(3 * 8)

		case KindSinglePayloadEnumGeneric:
			// tag bytes and offset, payload size, XI metadata, empty cases
			r.Skip(8 + 8 + 8 + 4)
			refCountBytes := int(r.ReadUint64())
			r.Skip(8 + refCountBytes)

		case KindMultiPayloadEnumFN:
			key := metadata.ResolveEnumTagRef(r.ReadRelativeRef())
			writer.Seek(layoutStrOffset + currentOffset)
			writer.WriteUint64(RecordHeader(KindMultiPayloadEnumFNResolved, skip))
			writer.WriteUint64(key)

			numCases := int(r.ReadUint64())
			refCountBytes := int(r.ReadUint64())
			r.Skip(8) // enum size

			casesBeginOffset := layoutStrOffset + r.Offset() + numCases*8
			fieldCasesBegin := r.Offset() + numCases*8
			for j := 0; j < numCases; j++ {
				caseOffset := int(r.ReadUint64())
				ResolveResilientAccessors(layoutStr, casesBeginOffset+caseOffset,
					fieldLayoutStr[fieldCasesBegin+caseOffset:], fieldType)
			}
			r.Skip(refCountBytes)

		case KindMultiPayloadEnumFNResolved:
			r.Skip(8) // resolved key
			numCases := int(r.ReadUint64())
			refCountBytes := int(r.ReadUint64())
			r.Skip(8 + numCases*8 + refCountBytes)

		case KindMultiPayloadEnumGeneric:
			r.Skip(8) // tag bytes
			numPayloads := int(r.ReadUint64())
			refCountBytes := int(r.ReadUint64())
			r.Skip(8*(numPayloads+1) + refCountBytes)
		}
	}
}
