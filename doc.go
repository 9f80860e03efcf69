// Package wasmhandle manages the lifetime of resources that live across a
// runtime boundary and are addressed by an opaque integer.
//
// A resource is created by a boundary-side Factory, wrapped in a handle, used
// by reading its address out of the handle, and released exactly once through
// the matching Destructor. After release the handle is dead: reading its
// address fails instead of returning a stale value, and releasing it again is
// a no-op.
//
// # Architecture Overview
//
//	wasmhandle/          Root package with Address and Boundary interfaces
//	├── handle/          Handle state machine, scopes, lifecycle observers
//	├── arena/           In-process boundary backed by a slot table
//	├── guest/           WebAssembly guest boundary running on wazero
//	│   └── demo/        Built-in guest module used by tests and the CLI
//	├── errors/          Structured error types
//	└── cmd/run/         Command line driver with an interactive mode
//
// # Quick Start
//
//	eng, err := guest.Load(ctx)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	mod, err := eng.Compile(ctx, demo.Binary())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	inst, err := mod.Instantiate(ctx, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer inst.Close(ctx)
//
//	h, err := handle.Create(ctx, inst, []uint64{7})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer h.Close()
//
//	out, err := inst.Invoke(ctx, h, "execute", 35)
//
// # Ownership
//
// A handle has exactly one owner. Pass *handle.Handle values around, never
// copies, and transfer ownership explicitly with Move. Destroy is idempotent,
// so `defer h.Close()` is always safe even after an explicit Destroy.
package wasmhandle
