package handle

import (
	"context"
	stderrors "errors"
	"sync"

	wasmhandle "github.com/wippyai/wasm-handle"
	"github.com/wippyai/wasm-handle/errors"
)

// Scope releases a group of handles together, newest first.
//
//	scope := handle.NewScope()
//	defer scope.Close(ctx)
//
//	h, err := handle.CreateIn(ctx, scope, boundary, params)
type Scope struct {
	handles []*Handle
	mu      sync.Mutex
	closed  bool
}

// NewScope creates an empty scope.
func NewScope() *Scope {
	return &Scope{}
}

// Track puts h under the scope's ownership. Tracking into a closed scope
// destroys h immediately and returns an error.
func (s *Scope) Track(ctx context.Context, h *Handle) (*Handle, error) {
	if h == nil {
		return nil, errors.InvalidInput(errors.PhaseConstruct, "nil handle")
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		derr := h.Destroy(ctx)
		return nil, stderrors.Join(errors.Closed(errors.PhaseConstruct, "scope"), derr)
	}
	s.handles = append(s.handles, h)
	s.mu.Unlock()
	return h, nil
}

// CreateIn creates a handle and tracks it in s.
func CreateIn[P any](ctx context.Context, s *Scope, b wasmhandle.Boundary[P], params P, opts ...Option) (*Handle, error) {
	h, err := Create(ctx, b, params, opts...)
	if err != nil {
		return nil, err
	}
	return s.Track(ctx, h)
}

// Len returns the number of tracked handles that are still live.
func (s *Scope) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, h := range s.handles {
		if h.IsValid() {
			n++
		}
	}
	return n
}

// Close destroys every tracked handle in reverse order of tracking and
// joins destructor failures. Handles already destroyed or moved are skipped.
// Close is idempotent.
func (s *Scope) Close(ctx context.Context) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	handles := s.handles
	s.handles = nil
	s.mu.Unlock()

	var errs []error
	for i := len(handles) - 1; i >= 0; i-- {
		if err := handles[i].Destroy(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}

// With creates a handle, passes it to fn and destroys it on every path out
// of fn, including panics. A destructor failure is returned only when fn
// itself succeeded.
func With[P any](ctx context.Context, b wasmhandle.Boundary[P], params P, fn func(*Handle) error, opts ...Option) (err error) {
	h, err := Create(ctx, b, params, opts...)
	if err != nil {
		return err
	}
	defer func() {
		if derr := h.Destroy(ctx); derr != nil && err == nil {
			err = derr
		}
	}()
	return fn(h)
}
