// Package arena allocates the instance buffers value witnesses operate on.
//
// Two allocators are provided:
//
//	Native - buffers on the Go heap, with outstanding-buffer tracking
//	Guest  - buffers carved from a WASM module's linear memory
//
// The Guest arena lets host-side value witnesses run directly over values
// that live in guest memory: Alloc returns a view of the linear memory, so
// writes through the slice are writes into the instance.
//
// Both satisfy the root package's Arena interface. Allocation errors use
// the structured types from the errors package under the alloc phase.
package arena
