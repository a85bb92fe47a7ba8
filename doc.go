// Package layoutruntime provides a runtime engine for generic value witnesses
// driven by layout strings.
//
// A layout string is a compact bytecode program, built once at type-metadata
// instantiation time, that describes where the non-trivial sub-regions of a
// value live: reference-counted fields, nested enums, existentials, and
// resilient fields whose concrete type is only known at run time. The engine
// interprets that program to destroy, copy, take, and assign values whose
// exact field layout is not known until run time, replacing a per-type
// specialized value-witness function with a single generic interpreter.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct responsibilities:
//
//	layoutruntime/       Root package with the Arena interface
//	├── witness/         Layout-string interpreter: dispatch tables, cursor,
//	│                    enum handlers, entry points, resilient resolution
//	├── metadata/        Type descriptors, value-witness tables, registries
//	├── heap/            Companion reference-counting runtime (atomic counts,
//	│                    weak cells, error boxes, object payload storage)
//	├── arena/           Instance buffer arenas (native and wazero-backed)
//	├── inspect/         Layout-string disassembler
//	├── errors/          Structured error types for build and tooling paths
//	└── cmd/layoutdump/  CLI to disassemble and browse layout string files
//
// # Quick Start
//
// Build a type's layout string, associate it with its metadata, and run the
// generic witnesses:
//
//	eng := witness.NewEngine(heap.Global())
//
//	layout, err := witness.NewBuilder().NativeStrong(0).Finish()
//	if err != nil {
//		return err
//	}
//	if err := witness.InstantiateLayoutString(layout, md); err != nil {
//		return err
//	}
//
//	eng.InitWithCopy(dest, src, md)
//	eng.Destroy(src, md)
//
// # Execution Model
//
// Every entry point runs to completion on the calling thread: no suspension,
// no I/O, no locks. Layout strings are immutable after the one-time resilient
// accessor resolution pass; concurrent witness calls on different instances of
// the same type share the string read-only. Exclusive access to a single
// instance is the caller's responsibility, as with any value operation.
//
// # Trust Model
//
// Layout strings are an internal format produced by the metadata builder, not
// attacker-controlled input. The interpreter performs no defensive bounds
// checking on the hot path; a malformed string indicates a builder bug and
// panics rather than returning an error.
package layoutruntime
