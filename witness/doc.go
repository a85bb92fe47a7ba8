// Package witness interprets layout strings: compact bytecode programs
// describing where the reference-counted fields of an opaque value live.
//
// # Layout String Format
//
// A layout string is a 16-byte header followed by a run of records ending
// in an End record:
//
//	┌──────────────┬──────────────┬─────────────────────────┬─────┐
//	│ section size │ flags (res.) │ records ...             │ End │
//	│ u64          │ u64          │                         │     │
//	└──────────────┴──────────────┴─────────────────────────┴─────┘
//
// Every record starts with one u64 header word:
//
//	bits 63..56   RefCountKind
//	bits 55..0    address skip, added to the field cursor before dispatch
//
// Plain records (strong, unowned, weak, bridge, error and their unknown
// variants) are just the header word. Delegating records carry a body:
//
//	Metatype           u64 metadata handle
//	Resilient          u64 slot, i32 relative accessor reference
//	Single-payload     discriminant operands + inline payload records
//	Multi-payload      discriminant operands + case offsets + sub-programs
//
// # Key Types
//
//	Engine    - Destroy / InitWithCopy / InitWithTake / AssignWith* over buffers
//	RefCounts - reference-count runtime the engine drives (heap.Heap fits)
//	Builder   - assembles layout strings record by record
//	Reader    - value-semantics cursor used by handlers and tooling
//
// # Execution Model
//
// Each operation walks the records once, keeping a cursor into the string
// and a byte offset into the value. Three dispatch tables share the walk
// shape; a nil table slot means the operation is a no-op for that kind.
// The take table is mostly nil because moving bits moves references.
//
// Enum records branch: an empty case skips the payload's nested records
// and jumps past the enum, a live payload case falls through into them
// (single-payload) or recurses into the selected case's sub-program
// (multi-payload).
//
// # Resolution
//
// Freshly built strings may carry relative references: resilient accessors
// and enum tag functions. ResolveLayoutString rewrites them in place into
// direct keys once, before the string is used. Resolution is idempotent.
//
// # Trust Model
//
// Layout strings come from the Builder or an equally trusted source. The
// hot path does not validate: a malformed string panics. Builder and
// disassembler errors use the structured types from the errors package.
package witness
