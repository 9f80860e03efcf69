package wasmhandle

import "context"

// Address identifies a resource on the far side of a boundary.
// Zero is reserved and never names a live resource.
type Address uint64

// Factory creates a boundary-side resource and returns its address.
// On error no resource may remain allocated.
type Factory[P any] interface {
	Create(ctx context.Context, params P) (Address, error)
}

// Destructor releases a resource previously returned by a Factory.
type Destructor interface {
	Destroy(ctx context.Context, addr Address) error
}

// Boundary pairs a Factory with the Destructor that releases its resources.
type Boundary[P any] interface {
	Factory[P]
	Destructor
}

// Funcs adapts a pair of functions to Boundary.
type Funcs[P any] struct {
	CreateFunc  func(ctx context.Context, params P) (Address, error)
	DestroyFunc func(ctx context.Context, addr Address) error
}

// Create implements Factory.
func (f Funcs[P]) Create(ctx context.Context, params P) (Address, error) {
	return f.CreateFunc(ctx, params)
}

// Destroy implements Destructor. A nil DestroyFunc releases nothing.
func (f Funcs[P]) Destroy(ctx context.Context, addr Address) error {
	if f.DestroyFunc == nil {
		return nil
	}
	return f.DestroyFunc(ctx, addr)
}
