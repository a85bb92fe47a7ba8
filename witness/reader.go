package witness

import "encoding/binary"

// Reader is a cursor over an immutable layout string. It is a plain value:
// copying it snapshots the position, which is how nested sub-programs and
// speculative reads get an independent cursor over the shared buffer.
//
// The format is produced by the trusted builder; reads past the end of a
// malformed string panic rather than returning errors.
type Reader struct {
	layout []byte
	offset int
}

// NewReader positions a cursor at offset within layout.
func NewReader(layout []byte, offset int) Reader {
	return Reader{layout: layout, offset: offset}
}

// Offset returns the cursor position in bytes from the string start.
func (r *Reader) Offset() int { return r.offset }

// ReadUint64 returns the little-endian u64 at the cursor and advances.
func (r *Reader) ReadUint64() uint64 {
	v := binary.LittleEndian.Uint64(r.layout[r.offset:])
	r.offset += 8
	return v
}

// ReadUint32 returns the little-endian u32 at the cursor and advances.
func (r *Reader) ReadUint32() uint32 {
	v := binary.LittleEndian.Uint32(r.layout[r.offset:])
	r.offset += 4
	return v
}

// ReadRelativeRef reads a pointer-sized slot holding a signed 32-bit
// relative reference in its low bits.
func (r *Reader) ReadRelativeRef() int32 {
	return int32(uint32(r.ReadUint64()))
}

// PeekUint64 reads the u64 at extraOffset bytes past the cursor without
// advancing.
func (r *Reader) PeekUint64(extraOffset int) uint64 {
	return binary.LittleEndian.Uint64(r.layout[r.offset+extraOffset:])
}

// Skip advances the cursor by n bytes without reading.
func (r *Reader) Skip(n int) {
	r.offset += n
}

// Modify runs fn with a copy of the cursor and then commits the copy's
// final position. A handler that returns early from fn leaves the committed
// position wherever its reads stopped, so a conditional branch either
// consumes its operand run atomically or not at all.
func (r *Reader) Modify(fn func(*Reader)) {
	inner := *r
	fn(&inner)
	r.offset = inner.offset
}

// Writer overwrites previously reserved slots of a layout string in place.
// It never grows the buffer; it exists for the one-time resolution pass
// that rewrites relative references into absolute keys.
type Writer struct {
	layout []byte
	offset int
}

// NewWriter positions a writer at offset within layout.
func NewWriter(layout []byte, offset int) Writer {
	return Writer{layout: layout, offset: offset}
}

// Seek repositions the writer.
func (w *Writer) Seek(offset int) { w.offset = offset }

// WriteUint64 stores a little-endian u64 at the cursor and advances.
func (w *Writer) WriteUint64(v uint64) {
	binary.LittleEndian.PutUint64(w.layout[w.offset:], v)
	w.offset += 8
}
