// Package inspect disassembles layout strings into record listings.
//
// Unlike the witness hot path, the disassembler trusts nothing: it bounds
// checks every read and reports structured errors for truncated strings and
// kinds outside the closed set, which makes it usable on files of unknown
// provenance.
package inspect

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/wippyai/layout-runtime/errors"
	"github.com/wippyai/layout-runtime/witness"
)

// Operand is one named value from a record body.
type Operand struct {
	Name  string
	Value uint64
}

// Record is one disassembled layout string record.
type Record struct {
	Offset   int // of the header word, within the whole string
	Kind     witness.RefCountKind
	Skip     uintptr
	Operands []Operand
	Cases    [][]Record // multi-payload sub-programs
}

// Listing is a fully disassembled layout string.
type Listing struct {
	SectionSize uint64
	Flags       uint64
	Records     []Record
}

type cursor struct {
	buf    []byte
	offset int
	base   int // offset of buf within the whole string, for reporting
}

func (c *cursor) uint64() (uint64, error) {
	if c.offset+8 > len(c.buf) {
		return 0, errors.Truncated(errors.PhaseInspect, c.base+c.offset+8, c.base+len(c.buf))
	}
	v := binary.LittleEndian.Uint64(c.buf[c.offset:])
	c.offset += 8
	return v, nil
}

func (c *cursor) uint32() (uint32, error) {
	if c.offset+4 > len(c.buf) {
		return 0, errors.Truncated(errors.PhaseInspect, c.base+c.offset+4, c.base+len(c.buf))
	}
	v := binary.LittleEndian.Uint32(c.buf[c.offset:])
	c.offset += 4
	return v, nil
}

// Disassemble parses a complete layout string, header included.
func Disassemble(layout []byte) (*Listing, error) {
	if len(layout) < witness.HeaderSize {
		return nil, errors.Truncated(errors.PhaseInspect, witness.HeaderSize, len(layout))
	}

	listing := &Listing{
		SectionSize: binary.LittleEndian.Uint64(layout),
		Flags:       binary.LittleEndian.Uint64(layout[8:]),
	}
	if int(listing.SectionSize) > len(layout)-witness.HeaderSize {
		return nil, errors.Truncated(errors.PhaseInspect,
			witness.HeaderSize+int(listing.SectionSize), len(layout))
	}

	c := &cursor{buf: layout[witness.HeaderSize:], base: witness.HeaderSize}
	records, err := disassembleRecords(c)
	if err != nil {
		return nil, err
	}
	listing.Records = records
	return listing, nil
}

// disassembleRecords parses records up to and including the End record.
func disassembleRecords(c *cursor) ([]Record, error) {
	var records []Record
	for {
		headerOffset := c.base + c.offset
		word, err := c.uint64()
		if err != nil {
			return nil, err
		}
		skip, kind := witness.SplitRecordHeader(word)
		if int(kind) >= witness.NumRefCountKinds {
			return nil, errors.UnknownKind(errors.PhaseInspect, uint8(kind), headerOffset)
		}

		rec := Record{Offset: headerOffset, Kind: kind, Skip: skip}
		if err := readBody(c, &rec); err != nil {
			return nil, err
		}
		records = append(records, rec)

		if kind == witness.KindEnd {
			return records, nil
		}
	}
}

func readBody(c *cursor, rec *Record) error {
	operand := func(name string) (uint64, error) {
		v, err := c.uint64()
		if err == nil {
			rec.Operands = append(rec.Operands, Operand{Name: name, Value: v})
		}
		return v, err
	}
	operand32 := func(name string) (uint64, error) {
		v, err := c.uint32()
		if err == nil {
			rec.Operands = append(rec.Operands, Operand{Name: name, Value: uint64(v)})
		}
		return uint64(v), err
	}
	operands := func(names ...string) error {
		for _, name := range names {
			if _, err := operand(name); err != nil {
				return err
			}
		}
		return nil
	}

	switch rec.Kind {
	case witness.KindMetatype:
		return operands("metadata")

	case witness.KindResilient:
		return operands("accessor_ref")

	case witness.KindSinglePayloadEnumSimple:
		return operands("byte_counts_and_offset", "payload_size", "zero_tag_value",
			"xi_tag_values", "ref_count_bytes", "skip")

	case witness.KindSinglePayloadEnumFN:
		return operands("tag_fn_ref", "ref_count_bytes", "skip")

	case witness.KindSinglePayloadEnumFNResolved:
		return operands("tag_fn_key", "ref_count_bytes", "skip")

	case witness.KindSinglePayloadEnumGeneric:
		if err := operands("tag_bytes_and_offset", "payload_size", "xi_type"); err != nil {
			return err
		}
		if _, err := operand32("num_empty_cases"); err != nil {
			return err
		}
		return operands("ref_count_bytes", "skip")

	case witness.KindMultiPayloadEnumFN, witness.KindMultiPayloadEnumFNResolved,
		witness.KindMultiPayloadEnumGeneric:
		first := "tag_fn_ref"
		switch rec.Kind {
		case witness.KindMultiPayloadEnumFNResolved:
			first = "tag_fn_key"
		case witness.KindMultiPayloadEnumGeneric:
			first = "tag_bytes"
		}
		if err := operands(first); err != nil {
			return err
		}
		numPayloads, err := operand("num_payloads")
		if err != nil {
			return err
		}
		if err := operands("ref_count_bytes", "enum_size"); err != nil {
			return err
		}
		for i := uint64(0); i < numPayloads; i++ {
			if _, err := operand(fmt.Sprintf("case_%d_offset", i)); err != nil {
				return err
			}
		}
		for i := uint64(0); i < numPayloads; i++ {
			nested, err := disassembleRecords(c)
			if err != nil {
				return err
			}
			rec.Cases = append(rec.Cases, nested)
		}
		return nil

	default:
		// Plain records are just the header word.
		return nil
	}
}

// String renders the listing one record per line, nested case programs
// indented under their enum.
func (l *Listing) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "section_size=%d flags=%#x\n", l.SectionSize, l.Flags)
	writeRecords(&b, l.Records, 0)
	return b.String()
}

func writeRecords(b *strings.Builder, records []Record, depth int) {
	indent := strings.Repeat("  ", depth)
	for _, rec := range records {
		fmt.Fprintf(b, "%s%06x  %-32s skip=%d", indent, rec.Offset, rec.Kind, rec.Skip)
		for _, op := range rec.Operands {
			fmt.Fprintf(b, " %s=%d", op.Name, op.Value)
		}
		b.WriteByte('\n')
		for i, nested := range rec.Cases {
			fmt.Fprintf(b, "%s  case %d:\n", indent, i)
			writeRecords(b, nested, depth+2)
		}
	}
}
