package handle

import (
	"go.uber.org/zap"

	wasmhandle "github.com/wippyai/wasm-handle"
)

// leak is what the garbage collector hands back when a live Handle becomes
// unreachable. It must not reference the Handle itself.
type leak struct {
	logger    *zap.Logger
	label     string
	observers []Observer
	addr      wasmhandle.Address
}

// reportLeak only reports: the boundary resource stays allocated because the
// destructor may have thread or context requirements the collector cannot meet.
func reportLeak(l leak) {
	l.logger.Warn("live handle collected without Destroy, boundary resource leaked",
		zap.String("handle", l.label),
		zap.Uint64("address", uint64(l.addr)))
	for _, o := range l.observers {
		o.OnHandleEvent(Event{Type: EventLeaked, Label: l.label, Address: l.addr})
	}
}
