package guest

// EngineConfig holds configuration for engine creation.
type EngineConfig struct {
	// MemoryLimitPages sets the maximum memory per instance in pages (64KB each).
	// 0 means the wazero default (65536 pages = 4GB).
	MemoryLimitPages uint32

	// CloseOnContextDone aborts running guest calls when their context is
	// cancelled. It costs a check on every loop back-edge in guest code.
	CloseOnContextDone bool
}

// InstanceConfig names the exports that act as the boundary factory and
// destructor. Zero values select the defaults.
type InstanceConfig struct {
	// Name registers the instance under a module name. Empty keeps it
	// anonymous, which allows any number of instances of one module.
	Name string

	// CreateExport takes the construction params and returns an address,
	// or 0 when nothing was allocated. Default "create".
	CreateExport string

	// DestroyExport takes the address as its only parameter. Default "destroy".
	DestroyExport string
}

const (
	DefaultCreateExport  = "create"
	DefaultDestroyExport = "destroy"
)

func (c *InstanceConfig) withDefaults() InstanceConfig {
	var out InstanceConfig
	if c != nil {
		out = *c
	}
	if out.CreateExport == "" {
		out.CreateExport = DefaultCreateExport
	}
	if out.DestroyExport == "" {
		out.DestroyExport = DefaultDestroyExport
	}
	return out
}
