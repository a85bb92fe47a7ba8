// Package metadata provides runtime type descriptors for the layout engine.
//
// A Metadata describes one type: its size, its value-witness table, its
// generic arguments, and (for types with non-trivial layout) the layout
// string that drives the generic witnesses. The layout string is associated
// exactly once, at metadata instantiation time, and is immutable afterwards
// apart from the one-time resilient accessor resolution pass performed by
// the witness package.
//
// # Handles
//
// Layout strings are flat byte programs and cannot hold Go pointers, so
// record bodies reference other types through 64-bit handles issued by a
// process-global registry. Register assigns a handle at construction;
// Lookup maps a handle back to its descriptor. Handle 0 is reserved and
// maps to nil.
//
// # Accessor registries
//
// Resilient fields and function-resolved enums reference functions the same
// way: a signed 32-bit relative reference stored in a pointer-sized slot.
// The reference is an index into a process-global registry populated at
// metadata build time. Resilient accessor resolution rewrites these slots in
// place to 64-bit resolved keys so the hot path never repeats the relative
// decode.
package metadata
