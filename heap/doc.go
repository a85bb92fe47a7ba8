// Package heap provides the reference-counting runtime that backs the
// witness engine.
//
// Instance buffers store references as 64-bit object handles. The heap owns
// the mapping from handles to objects and maintains three atomic counts per
// object, mirroring the usual strong/unowned/weak split:
//
//	strong    owning references; the object's payload dies when this hits zero
//	unowned   non-owning references that assert liveness on access
//	weak      registrations that must be torn down when the cell is destroyed
//
// Handle words may carry spare bits (pointer tagging); callers strip them
// with SpareBitsMask before presenting a handle. Handle 0 is never issued
// and all primitives treat it as a no-op, matching null-reference behavior.
//
// Weak and unknown-unowned references live in 8-byte cells inside the
// instance buffer; the cell-oriented primitives (WeakDestroy, WeakCopyInit,
// WeakTakeInit and their unknown-object variants) read and write those cells
// directly.
//
// All primitives are safe for concurrent use. The per-object counters are
// atomic; the handle table uses a read-mostly lock.
package heap
