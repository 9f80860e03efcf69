package handle

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"go.uber.org/zap"

	wasmhandle "github.com/wippyai/wasm-handle"
	"github.com/wippyai/wasm-handle/errors"
)

// Handle owns exactly one boundary-side resource.
//
// A Handle is live from construction until Destroy (or Move) and dead
// afterwards. Dead is terminal. Handles must not be copied; pass *Handle.
type Handle struct {
	dtor      wasmhandle.Destructor
	logger    *zap.Logger
	label     string
	observers []Observer
	cleanup   runtime.Cleanup
	mu        sync.RWMutex
	addr      wasmhandle.Address
	valid     bool
}

// Create asks the boundary for a new resource and wraps its address.
//
// If the factory fails, or reports success with the reserved zero address,
// no Handle is returned and the error matches errors.ErrConstructionFailed.
func Create[P any](ctx context.Context, b wasmhandle.Boundary[P], params P, opts ...Option) (*Handle, error) {
	o := buildOptions(opts)
	if b == nil {
		return nil, errors.InvalidInput(errors.PhaseConstruct, "nil boundary")
	}

	addr, err := b.Create(ctx, params)
	if err != nil {
		o.logger.Debug("construction failed",
			zap.String("handle", o.label),
			zap.Error(err))
		return nil, errors.ConstructionFailed(o.label, err)
	}
	if addr == 0 {
		o.logger.Debug("construction returned null address",
			zap.String("handle", o.label))
		return nil, errors.ConstructionFailed(o.label, nil)
	}

	h := newHandle(addr, b, o)
	h.notify(Event{Type: EventCreated, Label: h.label, Address: addr})
	return h, nil
}

// Adopt takes ownership of an address produced by a factory call made
// elsewhere. d must be the destructor matching that factory.
func Adopt(addr wasmhandle.Address, d wasmhandle.Destructor, opts ...Option) (*Handle, error) {
	o := buildOptions(opts)
	if d == nil {
		return nil, errors.InvalidInput(errors.PhaseConstruct, "nil destructor")
	}
	if addr == 0 {
		return nil, errors.ConstructionFailed(o.label, nil)
	}

	h := newHandle(addr, d, o)
	h.notify(Event{Type: EventCreated, Label: h.label, Address: addr})
	return h, nil
}

func newHandle(addr wasmhandle.Address, d wasmhandle.Destructor, o options) *Handle {
	h := &Handle{
		dtor:      d,
		logger:    o.logger,
		label:     o.label,
		observers: o.observers,
		addr:      addr,
		valid:     true,
	}
	h.cleanup = runtime.AddCleanup(h, reportLeak, leak{
		logger:    o.logger,
		label:     o.label,
		observers: o.observers,
		addr:      addr,
	})
	h.logger.Debug("handle created",
		zap.String("handle", h.label),
		zap.Uint64("address", uint64(addr)))
	return h
}

// Address returns the boundary address of a live handle.
// On a dead handle it returns an error matching errors.ErrUseAfterInvalidation.
func (h *Handle) Address() (wasmhandle.Address, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.valid {
		return 0, errors.UseAfterInvalidation(errors.PhaseAccess, h.label)
	}
	return h.addr, nil
}

// MustAddress is like Address but panics on a dead handle.
func (h *Handle) MustAddress() wasmhandle.Address {
	addr, err := h.Address()
	if err != nil {
		panic(err)
	}
	return addr
}

// IsValid reports whether the handle is live. Safe to call at any time.
func (h *Handle) IsValid() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.valid
}

// Owner returns the destructor the handle releases its resource through.
// An address only has meaning to its owner; boundaries use this to reject
// handles made elsewhere.
func (h *Handle) Owner() wasmhandle.Destructor {
	return h.dtor
}

// Label returns the name given with WithLabel.
func (h *Handle) Label() string {
	return h.label
}

// Use runs fn with the address of a live handle. Destroy and Move wait until
// fn returns, so the resource cannot be released underneath it.
// fn must not call methods of h.
func (h *Handle) Use(fn func(wasmhandle.Address) error) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.valid {
		return errors.UseAfterInvalidation(errors.PhaseInvoke, h.label)
	}
	return fn(h.addr)
}

// Destroy releases the resource and marks the handle dead.
//
// Destroying a dead handle is a no-op and returns nil; the destructor runs at
// most once per handle. If the destructor fails the handle is still dead and
// the failure is returned as an error matching errors.ErrDestroyFailed.
// A panicking destructor is reported the same way and then re-raised.
// The destructor must not call methods of h.
func (h *Handle) Destroy(ctx context.Context) error {
	h.mu.Lock()
	if !h.valid {
		h.mu.Unlock()
		return nil
	}
	addr := h.addr
	h.valid = false
	h.addr = 0
	h.cleanup.Stop()

	rec, err := h.release(ctx, addr)
	h.mu.Unlock()

	if rec != nil {
		derr := errors.DestroyFailed(h.label, uint64(addr), fmt.Errorf("destructor panic: %v", rec))
		h.logger.Warn("destructor panicked",
			zap.String("handle", h.label),
			zap.Uint64("address", uint64(addr)),
			zap.Any("panic", rec))
		h.notify(Event{Type: EventDestroyFailed, Label: h.label, Address: addr, Err: derr})
		panic(rec)
	}
	if err != nil {
		derr := errors.DestroyFailed(h.label, uint64(addr), err)
		h.logger.Warn("destructor failed",
			zap.String("handle", h.label),
			zap.Uint64("address", uint64(addr)),
			zap.Error(err))
		h.notify(Event{Type: EventDestroyFailed, Label: h.label, Address: addr, Err: derr})
		return derr
	}

	h.logger.Debug("handle destroyed",
		zap.String("handle", h.label),
		zap.Uint64("address", uint64(addr)))
	h.notify(Event{Type: EventDestroyed, Label: h.label, Address: addr})
	return nil
}

// release calls the destructor and returns a recovered panic instead of
// unwinding, so Destroy can drop the lock and report before re-panicking.
func (h *Handle) release(ctx context.Context, addr wasmhandle.Address) (rec any, err error) {
	defer func() {
		rec = recover()
	}()
	return nil, h.dtor.Destroy(ctx, addr)
}

// Close destroys the handle with a background context.
func (h *Handle) Close() error {
	return h.Destroy(context.Background())
}

// Move transfers ownership to a new Handle and leaves h dead without
// releasing the resource.
func (h *Handle) Move() (*Handle, error) {
	h.mu.Lock()
	if !h.valid {
		h.mu.Unlock()
		return nil, errors.UseAfterInvalidation(errors.PhaseAccess, h.label)
	}
	addr := h.addr
	h.valid = false
	h.addr = 0
	h.cleanup.Stop()
	h.mu.Unlock()

	moved := newHandle(addr, h.dtor, options{
		logger:    h.logger,
		label:     h.label,
		observers: h.observers,
	})
	h.notify(Event{Type: EventMoved, Label: h.label, Address: addr})
	return moved, nil
}

func (h *Handle) String() string {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.valid {
		return fmt.Sprintf("%s(dead)", h.label)
	}
	return fmt.Sprintf("%s(%#x)", h.label, uint64(h.addr))
}

func (h *Handle) notify(e Event) {
	for _, o := range h.observers {
		o.OnHandleEvent(e)
	}
}
