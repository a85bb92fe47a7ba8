// Package errors provides structured error types for the layout-runtime library.
//
// Errors are categorized by Phase (where the error occurred) and Kind (error category).
// The Error type includes rich context: record path, type name, and cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseBuild, errors.KindOutOfBounds).
//		Path("enum", "case 2").
//		Detail("case offset past ref-count section").
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.UnknownKind(errors.PhaseInspect, 42, 16)
//	err := errors.Truncated(errors.PhaseInspect, 24, 8)
//
// All errors implement the standard error interface and support errors.Is/As.
//
// The witness hot path never allocates or returns these errors; malformed
// layout strings are builder bugs and panic there. This package serves the
// build, resolution, arena, and tooling paths.
package errors
