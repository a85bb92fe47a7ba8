package layoutruntime

// Arena allocates instance buffers that value witnesses operate on.
type Arena interface {
	// Alloc returns a zeroed buffer of exactly size bytes. The buffer stays
	// valid until Free is called with the same buffer.
	Alloc(size uint32) ([]byte, error)
	Free(buf []byte)
}

// ArenaSizer reports the total capacity of an arena in bytes, when known.
type ArenaSizer interface {
	Size() uint32
}
