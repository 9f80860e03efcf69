// Package handle implements the lifecycle of a single boundary-side resource.
//
// A Handle wraps the address returned by a boundary Factory. It moves through
// two states:
//
//	            Create succeeds
//	  [none] ───────────────────► [live]
//	                                │ Destroy / Move
//	                                ▼
//	                              [dead] ──Destroy──► [dead]  (no-op)
//
// Address returns the stored address while live and an error matching
// errors.ErrUseAfterInvalidation once dead. Destroy calls the boundary
// Destructor exactly once; later calls do nothing. IsValid is always safe.
//
// # Construction
//
//	h, err := handle.Create(ctx, boundary, params, handle.WithLabel("session"))
//	if err != nil {
//	    // errors.Is(err, errors.ErrConstructionFailed); nothing to release
//	}
//	defer h.Close()
//
// # Operations
//
// Use holds the handle live for the duration of an operation:
//
//	err := h.Use(func(addr wasmhandle.Address) error {
//	    return execute(addr, request)
//	})
//
// # Scopes
//
// A Scope releases many handles together in reverse order, mirroring
// stacked defers. With wraps the create-use-destroy sequence in one call.
//
// # Thread Safety
//
// All Handle methods are safe for concurrent use; a racing Address either
// sees the live address or the invalidation error, never a half-updated
// state. Callbacks (Use functions, destructors) must not re-enter the same
// handle. Ownership is still exclusive: share a *Handle only when the
// owner coordinates who destroys it.
//
// # Leaks
//
// A live handle that becomes unreachable is reported through the logger and
// an EventLeaked notification. The resource is not released for you.
package handle
