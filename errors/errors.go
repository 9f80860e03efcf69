package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in the handle lifecycle the error occurred
type Phase string

const (
	PhaseConstruct Phase = "construct" // boundary factory
	PhaseAccess    Phase = "access"    // address reads
	PhaseDestroy   Phase = "destroy"   // boundary destructor
	PhaseLoad      Phase = "load"      // engine and module loading
	PhaseInvoke    Phase = "invoke"    // resource operations
	PhaseInput     Phase = "input"     // caller-supplied parameters
)

// Kind categorizes the error
type Kind string

const (
	KindConstructionFailed   Kind = "construction_failed"
	KindUseAfterInvalidation Kind = "use_after_invalidation"
	KindDestroyFailed        Kind = "destroy_failed"
	KindInvalidInput         Kind = "invalid_input"
	KindNotFound             Kind = "not_found"
	KindClosed               Kind = "closed"
	KindInvalidData          Kind = "invalid_data"
	KindTrap                 Kind = "trap"
)

// Sentinels for errors.Is. They carry no Phase, so they match any error of
// the same Kind.
var (
	ErrConstructionFailed   = &Error{Kind: KindConstructionFailed}
	ErrUseAfterInvalidation = &Error{Kind: KindUseAfterInvalidation}
	ErrDestroyFailed        = &Error{Kind: KindDestroyFailed}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	Handle  string
	Detail  string
	Address uint64
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	if e.Phase != "" {
		b.WriteByte('[')
		b.WriteString(string(e.Phase))
		b.WriteString("] ")
	}
	b.WriteString(string(e.Kind))

	if e.Handle != "" {
		b.WriteString(" on ")
		b.WriteString(e.Handle)
	}
	if e.Address != 0 {
		fmt.Fprintf(&b, " @%#x", e.Address)
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error.
// A target without a Phase matches on Kind alone.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Phase == "" {
		return e.Kind == t.Kind
	}
	return e.Phase == t.Phase && e.Kind == t.Kind
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Handle sets the handle label
func (b *Builder) Handle(label string) *Builder {
	b.err.Handle = label
	return b
}

// Address sets the boundary address involved
func (b *Builder) Address(addr uint64) *Builder {
	b.err.Address = addr
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// ConstructionFailed creates an error for a factory that produced no resource
func ConstructionFailed(label string, cause error) *Error {
	e := &Error{
		Phase:  PhaseConstruct,
		Kind:   KindConstructionFailed,
		Handle: label,
		Cause:  cause,
	}
	if cause == nil {
		e.Detail = "factory returned a null address"
	}
	return e
}

// UseAfterInvalidation creates an error for access to a destroyed handle
func UseAfterInvalidation(phase Phase, label string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUseAfterInvalidation,
		Handle: label,
		Detail: "handle has been destroyed",
	}
}

// DestroyFailed creates an error for a destructor that reported failure
func DestroyFailed(label string, addr uint64, cause error) *Error {
	return &Error{
		Phase:   PhaseDestroy,
		Kind:    KindDestroyFailed,
		Handle:  label,
		Address: addr,
		Cause:   cause,
	}
}

// Closed creates an error for operations on a closed container
func Closed(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindClosed,
		Detail: fmt.Sprintf("%s closed", what),
	}
}

// NotFound creates a not-found error
func NotFound(phase Phase, what, name string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Trap creates an error for a guest call that trapped
func Trap(phase Phase, export string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTrap,
		Detail: fmt.Sprintf("call %s", export),
		Cause:  cause,
	}
}

// Load creates a loading error
func Load(detail string, cause error) *Error {
	return &Error{
		Phase:  PhaseLoad,
		Kind:   KindInvalidData,
		Detail: detail,
		Cause:  cause,
	}
}

// Wrap wraps an existing error with additional context
func Wrap(phase Phase, kind Kind, cause error, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   kind,
		Detail: detail,
		Cause:  cause,
	}
}
