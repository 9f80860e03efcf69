// Package guest runs WebAssembly modules as handle boundaries.
//
// A guest module exports a factory function that allocates a resource and
// returns its address in linear memory, and a destructor that takes that
// address back. An Instance binds the two exports and implements
// wasmhandle.Boundary[[]uint64], so handle.Create works on it directly.
//
// # Loading
//
// Load returns the process-wide Engine. The wazero runtime behind it is
// created once, on first call, no matter how many goroutines race to load
// it. NewEngine creates a private engine with its own limits.
//
//	eng, err := guest.Load(ctx)
//	mod, err := eng.Compile(ctx, wasmBytes)
//	inst, err := mod.Instantiate(ctx, nil)
//	defer inst.Close(ctx)
//
//	h, err := handle.Create(ctx, inst, []uint64{api.EncodeI32(7)})
//	defer h.Close()
//
//	res, err := inst.Invoke(ctx, h, "execute", api.EncodeI32(35))
//
// # Concurrency
//
// Engine and Module are safe for concurrent use. An Instance serializes
// guest calls. Invoke holds the handle live for the whole guest call, so a
// concurrent Destroy waits until the call returns.
package guest
