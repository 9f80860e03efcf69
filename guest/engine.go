package guest

import (
	"context"
	"crypto/sha256"
	"sync"

	"github.com/tetratelabs/wazero"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-handle/errors"
)

// Engine owns a wazero runtime and the modules compiled on it.
// It is safe for concurrent use.
type Engine struct {
	runtime wazero.Runtime
	modules map[[sha256.Size]byte]*Module
	mu      sync.Mutex
	shared  bool
	closed  bool
}

var (
	sharedEngine *Engine
	sharedErr    error
	sharedOnce   sync.Once
)

// Load returns the process-wide engine, creating it on first use.
// Concurrent and repeated calls get the same engine, or the same error.
// Close on the shared engine is a no-op.
func Load(ctx context.Context) (*Engine, error) {
	sharedOnce.Do(func() {
		sharedEngine, sharedErr = NewEngine(ctx, nil)
		if sharedErr == nil {
			sharedEngine.shared = true
			Logger().Info("shared guest engine loaded")
		}
	})
	return sharedEngine, sharedErr
}

// NewEngine creates a private engine.
func NewEngine(ctx context.Context, cfg *EngineConfig) (*Engine, error) {
	runtimeCfg := wazero.NewRuntimeConfig()

	if cfg != nil {
		if cfg.MemoryLimitPages > 0 {
			runtimeCfg = runtimeCfg.WithMemoryLimitPages(cfg.MemoryLimitPages)
		}
		if cfg.CloseOnContextDone {
			runtimeCfg = runtimeCfg.WithCloseOnContextDone(true)
		}
	}

	return &Engine{
		runtime: wazero.NewRuntimeWithConfig(ctx, runtimeCfg),
		modules: make(map[[sha256.Size]byte]*Module),
	}, nil
}

// Compile validates and compiles a core module. Compiling the same bytes
// twice returns the cached module.
func (e *Engine) Compile(ctx context.Context, wasm []byte) (*Module, error) {
	if len(wasm) == 0 {
		return nil, errors.InvalidInput(errors.PhaseLoad, "empty module binary")
	}
	digest := sha256.Sum256(wasm)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, errors.Closed(errors.PhaseLoad, "engine")
	}
	if m, ok := e.modules[digest]; ok {
		return m, nil
	}

	compiled, err := e.runtime.CompileModule(ctx, wasm)
	if err != nil {
		return nil, errors.Load("compile module", err)
	}

	m := &Module{
		engine:   e,
		compiled: compiled,
		digest:   digest,
	}
	e.modules[digest] = m

	Logger().Debug("module compiled",
		zap.Int("size", len(wasm)),
		zap.Int("exports", len(compiled.ExportedFunctions())))
	return m, nil
}

// Close releases the runtime and every instance created from it.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shared || e.closed {
		return nil
	}
	e.closed = true
	e.modules = nil
	return e.runtime.Close(ctx)
}
