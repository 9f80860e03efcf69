// Package errors provides structured error types for the wasm-handle library.
//
// Errors are categorized by Phase (where in the handle lifecycle the error
// occurred) and Kind (error category). The Error type carries the handle
// label, the boundary address involved and a cause chain.
//
// Use the Builder for structured error construction:
//
//	err := errors.New(errors.PhaseDestroy, errors.KindDestroyFailed).
//		Handle("session").
//		Address(0x10).
//		Cause(trap).
//		Build()
//
// Or use convenience constructors for common patterns:
//
//	err := errors.ConstructionFailed("session", cause)
//	err := errors.UseAfterInvalidation(errors.PhaseAccess, "session")
//
// The package-level sentinels match any error of their Kind:
//
//	if errors.Is(err, wherrors.ErrUseAfterInvalidation) { ... }
//
// Double destruction is not an error: destroying a dead handle is a no-op.
package errors
