// Package arena provides an in-process boundary backed by a slot table.
//
// Values are stored on the Go side and referenced by integer addresses, the
// same shape a native module uses when it hands out object pointers. An
// Arena implements wasmhandle.Boundary, so it plugs straight into the
// handle package:
//
//	sessions := arena.New[*Session]()
//
//	h, err := handle.Create(ctx, sessions, newSession())
//	if err != nil {
//	    return err
//	}
//	defer h.Close()
//
//	err = h.Use(func(addr wasmhandle.Address) error {
//	    s, _ := sessions.Get(addr)
//	    return s.Execute(req)
//	})
//
// Values implementing Dropper have Drop called when their slot is freed,
// either through Destroy or when the arena is closed.
//
// Addresses carry a generation counter. Once a slot is freed, every address
// issued for its earlier occupants stops resolving, even after the slot is
// reused.
//
// An Arena is safe for concurrent use.
package arena
