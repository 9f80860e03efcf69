package guest

import (
	"context"
	"math"
	"sync"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	wasmhandle "github.com/wippyai/wasm-handle"
	"github.com/wippyai/wasm-handle/errors"
	"github.com/wippyai/wasm-handle/handle"
)

// Instance is a running guest module acting as a boundary: its factory
// export creates resources and its destructor export releases them.
// It implements wasmhandle.Boundary[[]uint64].
//
// wazero instances are not safe for concurrent calls, so Instance runs one
// guest call at a time.
type Instance struct {
	module  *Module
	mod     api.Module
	create  api.Function
	destroy api.Function
	cfg     InstanceConfig
	mu      sync.Mutex
	closed  bool
}

var _ wasmhandle.Boundary[[]uint64] = (*Instance)(nil)

// Module returns the module the instance was created from.
func (i *Instance) Module() *Module {
	return i.module
}

// Create calls the factory export with raw core-value params and returns the
// address it produced. A zero address means the guest allocated nothing.
func (i *Instance) Create(ctx context.Context, params []uint64) (wasmhandle.Address, error) {
	def := i.create.Definition()
	if len(params) != len(def.ParamTypes()) {
		return 0, errors.New(errors.PhaseConstruct, errors.KindInvalidInput).
			Detail("factory %s expects %d params, got %d", i.cfg.CreateExport, len(def.ParamTypes()), len(params)).
			Build()
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return 0, errors.Closed(errors.PhaseConstruct, "instance")
	}

	res, err := i.create.Call(ctx, params...)
	if err != nil {
		return 0, errors.Trap(errors.PhaseConstruct, i.cfg.CreateExport, err)
	}
	return decodeAddress(def.ResultTypes()[0], res[0]), nil
}

// Destroy calls the destructor export with addr.
func (i *Instance) Destroy(ctx context.Context, addr wasmhandle.Address) error {
	def := i.destroy.Definition()
	raw, err := encodeAddress(def.ParamTypes()[0], addr)
	if err != nil {
		return err
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return errors.Closed(errors.PhaseDestroy, "instance")
	}

	if _, err := i.destroy.Call(ctx, raw); err != nil {
		return errors.Trap(errors.PhaseDestroy, i.cfg.DestroyExport, err)
	}
	return nil
}

// Invoke calls export with the handle's address as the first argument,
// followed by args. The handle is held live for the duration of the call;
// a dead handle fails with errors.ErrUseAfterInvalidation and the guest is
// not called. A handle created by another boundary is rejected: its address
// means nothing in this instance's memory.
func (i *Instance) Invoke(ctx context.Context, h *handle.Handle, export string, args ...uint64) ([]uint64, error) {
	if owner, ok := h.Owner().(*Instance); !ok || owner != i {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Handle(h.Label()).
			Detail("handle was not created by this instance").
			Build()
	}

	fn := i.mod.ExportedFunction(export)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseInvoke, "export", export)
	}
	def := fn.Definition()
	if len(def.ParamTypes()) != len(args)+1 {
		return nil, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
			Detail("%s expects %d args after the address, got %d", export, len(def.ParamTypes())-1, len(args)).
			Build()
	}

	var out []uint64
	err := h.Use(func(addr wasmhandle.Address) error {
		raw, err := encodeAddress(def.ParamTypes()[0], addr)
		if err != nil {
			return err
		}
		params := make([]uint64, 0, len(args)+1)
		params = append(params, raw)
		params = append(params, args...)

		out, err = i.call(ctx, fn, export, errors.PhaseInvoke, params)
		return err
	})
	if err != nil {
		Logger().Debug("invoke failed",
			zap.String("export", export),
			zap.String("handle", h.Label()),
			zap.Error(err))
	}
	return out, err
}

// Call calls an export that does not take an address.
func (i *Instance) Call(ctx context.Context, export string, args ...uint64) ([]uint64, error) {
	fn := i.mod.ExportedFunction(export)
	if fn == nil {
		return nil, errors.NotFound(errors.PhaseInvoke, "export", export)
	}
	return i.call(ctx, fn, export, errors.PhaseInvoke, args)
}

func (i *Instance) call(ctx context.Context, fn api.Function, export string, phase errors.Phase, params []uint64) ([]uint64, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil, errors.Closed(phase, "instance")
	}
	res, err := fn.Call(ctx, params...)
	if err != nil {
		return nil, errors.Trap(phase, export, err)
	}
	return res, nil
}

// Close closes the guest instance. Resources still allocated inside the
// guest go away with its memory; handles pointing at them will fail their
// Destroy with a closed error.
func (i *Instance) Close(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil
	}
	i.closed = true
	return i.mod.Close(ctx)
}

func decodeAddress(t api.ValueType, raw uint64) wasmhandle.Address {
	if t == api.ValueTypeI32 {
		return wasmhandle.Address(api.DecodeU32(raw))
	}
	return wasmhandle.Address(raw)
}

func encodeAddress(t api.ValueType, addr wasmhandle.Address) (uint64, error) {
	if t == api.ValueTypeI32 {
		if addr > math.MaxUint32 {
			return 0, errors.New(errors.PhaseInvoke, errors.KindInvalidInput).
				Address(uint64(addr)).
				Detail("address does not fit an i32 parameter").
				Build()
		}
		return api.EncodeU32(uint32(addr)), nil
	}
	return uint64(addr), nil
}
