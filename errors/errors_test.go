package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *Error
		contains []string
	}{
		{
			name: "full error",
			err: &Error{
				Phase:   PhaseDestroy,
				Kind:    KindDestroyFailed,
				Handle:  "session",
				Address: 0x20,
				Detail:  "guest trapped",
			},
			contains: []string{"[destroy]", "destroy_failed", "session", "0x20", "guest trapped"},
		},
		{
			name: "minimal error",
			err: &Error{
				Phase: PhaseAccess,
				Kind:  KindUseAfterInvalidation,
			},
			contains: []string{"[access]", "use_after_invalidation"},
		},
		{
			name: "error with cause",
			err: &Error{
				Phase:  PhaseConstruct,
				Kind:   KindConstructionFailed,
				Detail: "arena full",
				Cause:  errors.New("underlying error"),
			},
			contains: []string{"[construct]", "construction_failed", "arena full", "caused by", "underlying error"},
		},
		{
			name:     "sentinel",
			err:      ErrUseAfterInvalidation,
			contains: []string{"use_after_invalidation"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := tt.err.Error()
			for _, s := range tt.contains {
				if !strings.Contains(msg, s) {
					t.Errorf("error message %q does not contain %q", msg, s)
				}
			}
		})
	}
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := &Error{
		Phase: PhaseConstruct,
		Kind:  KindConstructionFailed,
		Cause: cause,
	}

	if !errors.Is(err.Unwrap(), cause) {
		t.Error("Unwrap did not return cause")
	}
	if !errors.Is(err, cause) {
		t.Error("errors.Is did not reach cause")
	}
}

func TestError_Is(t *testing.T) {
	err := &Error{
		Phase:  PhaseAccess,
		Kind:   KindUseAfterInvalidation,
		Handle: "foo",
	}

	if !err.Is(&Error{Phase: PhaseAccess, Kind: KindUseAfterInvalidation}) {
		t.Error("Is should match same phase and kind")
	}
	if err.Is(&Error{Phase: PhaseInvoke, Kind: KindUseAfterInvalidation}) {
		t.Error("Is should not match different phase")
	}
	if err.Is(&Error{Phase: PhaseAccess, Kind: KindNotFound}) {
		t.Error("Is should not match different kind")
	}

	// Sentinels match on kind across phases
	if !errors.Is(err, ErrUseAfterInvalidation) {
		t.Error("errors.Is should match sentinel")
	}
	invoke := UseAfterInvalidation(PhaseInvoke, "foo")
	if !errors.Is(invoke, ErrUseAfterInvalidation) {
		t.Error("sentinel should match any phase")
	}
	if errors.Is(invoke, ErrConstructionFailed) {
		t.Error("sentinel should not match different kind")
	}
}

func TestBuilder(t *testing.T) {
	cause := errors.New("root")
	err := New(PhaseDestroy, KindDestroyFailed).
		Handle("conn").
		Address(0x40).
		Value(42).
		Cause(cause).
		Detail("export %s trapped", "destroy").
		Build()

	if err.Phase != PhaseDestroy {
		t.Errorf("Phase = %v, want %v", err.Phase, PhaseDestroy)
	}
	if err.Kind != KindDestroyFailed {
		t.Errorf("Kind = %v, want %v", err.Kind, KindDestroyFailed)
	}
	if err.Handle != "conn" {
		t.Errorf("Handle = %v, want conn", err.Handle)
	}
	if err.Address != 0x40 {
		t.Errorf("Address = %#x, want 0x40", err.Address)
	}
	if err.Value != 42 {
		t.Errorf("Value = %v, want 42", err.Value)
	}
	if !errors.Is(err.Cause, cause) {
		t.Errorf("Cause = %v, want %v", err.Cause, cause)
	}
	if err.Detail != "export destroy trapped" {
		t.Errorf("Detail = %v", err.Detail)
	}
}

func TestConvenienceConstructors(t *testing.T) {
	t.Run("ConstructionFailed without cause", func(t *testing.T) {
		err := ConstructionFailed("h", nil)
		if err.Kind != KindConstructionFailed {
			t.Errorf("Kind = %v", err.Kind)
		}
		if !strings.Contains(err.Detail, "null address") {
			t.Errorf("Detail = %q", err.Detail)
		}
	})

	t.Run("ConstructionFailed with cause", func(t *testing.T) {
		cause := errors.New("boom")
		err := ConstructionFailed("h", cause)
		if err.Detail != "" {
			t.Errorf("Detail = %q, want empty", err.Detail)
		}
		if !errors.Is(err, cause) {
			t.Error("cause not wrapped")
		}
	})

	t.Run("DestroyFailed", func(t *testing.T) {
		err := DestroyFailed("h", 8, errors.New("trap"))
		if !errors.Is(err, ErrDestroyFailed) {
			t.Error("should match ErrDestroyFailed")
		}
		if err.Address != 8 {
			t.Errorf("Address = %d", err.Address)
		}
	})

	t.Run("Closed", func(t *testing.T) {
		err := Closed(PhaseConstruct, "arena")
		if err.Kind != KindClosed || err.Detail != "arena closed" {
			t.Errorf("got %v", err)
		}
	})

	t.Run("NotFound", func(t *testing.T) {
		err := NotFound(PhaseInvoke, "export", "execute")
		if err.Kind != KindNotFound || !strings.Contains(err.Detail, `"execute"`) {
			t.Errorf("got %v", err)
		}
	})

	t.Run("Trap", func(t *testing.T) {
		err := Trap(PhaseInvoke, "execute", errors.New("unreachable"))
		if err.Kind != KindTrap || err.Detail != "call execute" {
			t.Errorf("got %v", err)
		}
	})
}
