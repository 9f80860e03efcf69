package guest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-handle/errors"
)

// Module is a compiled guest module. Instantiate it to get a boundary.
type Module struct {
	engine   *Engine
	compiled wazero.CompiledModule
	digest   [sha256.Size]byte
}

// ID returns a short content digest of the module binary.
func (m *Module) ID() string {
	return hex.EncodeToString(m.digest[:6])
}

// Exports returns the exported function names in sorted order.
func (m *Module) Exports() []string {
	defs := m.compiled.ExportedFunctions()
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Signature returns the parameter and result types of an export.
func (m *Module) Signature(export string) (params, results []api.ValueType, ok bool) {
	def, ok := m.compiled.ExportedFunctions()[export]
	if !ok {
		return nil, nil, false
	}
	return def.ParamTypes(), def.ResultTypes(), true
}

// Instantiate creates a running instance whose exports serve as the
// boundary factory and destructor named in cfg.
func (m *Module) Instantiate(ctx context.Context, cfg *InstanceConfig) (*Instance, error) {
	c := cfg.withDefaults()

	if err := m.checkFactory(c.CreateExport); err != nil {
		return nil, err
	}
	if err := m.checkDestructor(c.DestroyExport); err != nil {
		return nil, err
	}

	m.engine.mu.Lock()
	closed := m.engine.closed
	m.engine.mu.Unlock()
	if closed {
		return nil, errors.Closed(errors.PhaseLoad, "engine")
	}

	mod, err := m.engine.runtime.InstantiateModule(ctx, m.compiled, wazero.NewModuleConfig().WithName(c.Name))
	if err != nil {
		return nil, errors.Wrap(errors.PhaseLoad, errors.KindInvalidData, err, "instantiate module")
	}

	inst := &Instance{
		module:  m,
		mod:     mod,
		create:  mod.ExportedFunction(c.CreateExport),
		destroy: mod.ExportedFunction(c.DestroyExport),
		cfg:     c,
	}

	Logger().Debug("instance created",
		zap.String("module", m.ID()),
		zap.String("name", c.Name),
		zap.String("create", c.CreateExport),
		zap.String("destroy", c.DestroyExport))
	return inst, nil
}

func (m *Module) checkFactory(name string) error {
	_, results, ok := m.Signature(name)
	if !ok {
		return errors.NotFound(errors.PhaseLoad, "factory export", name)
	}
	if len(results) != 1 || !isAddressType(results[0]) {
		return errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Detail("factory export %q must return one i32 or i64 address", name).
			Build()
	}
	return nil
}

func (m *Module) checkDestructor(name string) error {
	params, _, ok := m.Signature(name)
	if !ok {
		return errors.NotFound(errors.PhaseLoad, "destructor export", name)
	}
	if len(params) != 1 || !isAddressType(params[0]) {
		return errors.New(errors.PhaseLoad, errors.KindInvalidData).
			Detail("destructor export %q must take exactly one i32 or i64 address", name).
			Build()
	}
	return nil
}

func isAddressType(t api.ValueType) bool {
	return t == api.ValueTypeI32 || t == api.ValueTypeI64
}
