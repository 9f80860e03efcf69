package arena

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	wasmhandle "github.com/wippyai/wasm-handle"
)

var (
	ErrClosed         = errors.New("arena closed")
	ErrFull           = errors.New("arena at capacity")
	ErrInvalidAddress = errors.New("address does not name a live slot")
)

// Dropper is optionally implemented by stored values that need cleanup.
type Dropper interface {
	Drop()
}

// Arena is an in-process boundary: it keeps Go values in a slot table and
// hands out integer addresses for them. It implements wasmhandle.Boundary[T].
//
// An address packs the slot generation in the high 32 bits and the slot
// index plus one in the low 32 bits, so a recycled slot never answers to an
// address issued before it was freed.
type Arena[T any] struct {
	logger   *zap.Logger
	slots    []slot[T]
	freeList []uint32
	mu       sync.RWMutex
	capacity int
	live     int
	closed   bool
}

type slot[T any] struct {
	value T
	gen   uint32
	valid bool
}

// Option configures an Arena.
type Option func(*config)

type config struct {
	logger   *zap.Logger
	capacity int
}

// WithCapacity limits the number of live values. Zero means unlimited.
func WithCapacity(n int) Option {
	return func(c *config) {
		c.capacity = n
	}
}

// WithLogger overrides the package logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		c.logger = l
	}
}

// New creates an empty arena.
func New[T any](opts ...Option) *Arena[T] {
	var c config
	for _, opt := range opts {
		opt(&c)
	}
	if c.logger == nil {
		c.logger = Logger()
	}
	return &Arena[T]{
		logger:   c.logger,
		slots:    make([]slot[T], 0, 64),
		freeList: make([]uint32, 0, 16),
		capacity: c.capacity,
	}
}

func encode(idx, gen uint32) wasmhandle.Address {
	return wasmhandle.Address(uint64(gen)<<32 | uint64(idx+1))
}

func decode(addr wasmhandle.Address) (idx, gen uint32, ok bool) {
	low := uint32(addr)
	if low == 0 {
		return 0, 0, false
	}
	return low - 1, uint32(addr >> 32), true
}

// Create stores value and returns its address.
func (a *Arena[T]) Create(_ context.Context, value T) (wasmhandle.Address, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return 0, ErrClosed
	}
	if a.capacity > 0 && a.live >= a.capacity {
		return 0, ErrFull
	}

	var idx uint32
	if n := len(a.freeList); n > 0 {
		idx = a.freeList[n-1]
		a.freeList = a.freeList[:n-1]
	} else {
		a.slots = append(a.slots, slot[T]{gen: 1})
		idx = uint32(len(a.slots) - 1)
	}

	s := &a.slots[idx]
	s.value = value
	s.valid = true
	a.live++

	return encode(idx, s.gen), nil
}

// Get resolves a live address.
func (a *Arena[T]) Get(addr wasmhandle.Address) (T, bool) {
	var zero T

	idx, gen, ok := decode(addr)
	if !ok {
		return zero, false
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if int(idx) >= len(a.slots) {
		return zero, false
	}
	s := a.slots[idx]
	if !s.valid || s.gen != gen {
		return zero, false
	}
	return s.value, true
}

// Destroy frees the slot behind addr and drops its value.
func (a *Arena[T]) Destroy(_ context.Context, addr wasmhandle.Address) error {
	value, ok := a.take(addr)
	if !ok {
		a.logger.Debug("destroy of unknown address", zap.Uint64("address", uint64(addr)))
		return ErrInvalidAddress
	}
	drop(value)
	return nil
}

func (a *Arena[T]) take(addr wasmhandle.Address) (T, bool) {
	var zero T

	idx, gen, ok := decode(addr)
	if !ok {
		return zero, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if int(idx) >= len(a.slots) {
		return zero, false
	}
	s := &a.slots[idx]
	if !s.valid || s.gen != gen {
		return zero, false
	}

	value := s.value
	s.value = zero
	s.valid = false
	s.gen++
	a.live--
	a.freeList = append(a.freeList, idx)
	return value, true
}

func drop(value any) {
	if d, ok := value.(Dropper); ok {
		d.Drop()
	}
}

// Len returns the number of live values.
func (a *Arena[T]) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.live
}

// Each iterates over live values until fn returns false.
func (a *Arena[T]) Each(fn func(wasmhandle.Address, T) bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	for i, s := range a.slots {
		if s.valid {
			if !fn(encode(uint32(i), s.gen), s.value) {
				break
			}
		}
	}
}

// Close drops every live value and rejects further Create calls.
// Handles still pointing into the arena fail their Destroy with
// ErrInvalidAddress.
func (a *Arena[T]) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true

	var pending []T
	for i := range a.slots {
		if a.slots[i].valid {
			pending = append(pending, a.slots[i].value)
		}
	}
	a.slots = nil
	a.freeList = nil
	a.live = 0
	a.mu.Unlock()

	if len(pending) > 0 {
		a.logger.Info("arena closed with live values", zap.Int("count", len(pending)))
	}
	for _, v := range pending {
		drop(v)
	}
	return nil
}
