package handle

import (
	"go.uber.org/zap"

	wasmhandle "github.com/wippyai/wasm-handle"
)

// EventType identifies a handle lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDestroyed
	EventDestroyFailed
	EventMoved
	EventLeaked
)

func (t EventType) String() string {
	switch t {
	case EventCreated:
		return "created"
	case EventDestroyed:
		return "destroyed"
	case EventDestroyFailed:
		return "destroy-failed"
	case EventMoved:
		return "moved"
	case EventLeaked:
		return "leaked"
	default:
		return "unknown"
	}
}

// Event represents a handle lifecycle event.
type Event struct {
	Err     error
	Label   string
	Address wasmhandle.Address
	Type    EventType
}

// Observer receives notifications about handle lifecycle events.
// Events are delivered synchronously, after the state change and outside
// the handle's lock.
type Observer interface {
	OnHandleEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

// OnHandleEvent implements Observer.
func (f ObserverFunc) OnHandleEvent(e Event) {
	f(e)
}

// Option configures a handle at creation.
type Option func(*options)

type options struct {
	logger    *zap.Logger
	label     string
	observers []Observer
}

// WithLabel names the handle in errors, logs and events.
func WithLabel(label string) Option {
	return func(o *options) {
		o.label = label
	}
}

// WithObserver registers an observer for the handle's lifecycle events.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.observers = append(o.observers, obs)
		}
	}
}

// WithLogger overrides the package logger for one handle.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = Logger()
	}
	if o.label == "" {
		o.label = "handle"
	}
	return o
}
