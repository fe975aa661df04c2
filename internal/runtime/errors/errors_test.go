package errors

import (
	"errors"
	"testing"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		wantMsg string
	}{
		{"ErrNameClash", ErrNameClash, "flowmgmt: management name is already registered"},
		{"ErrNotFound", ErrNotFound, "flowmgmt: managed object not found"},
		{"ErrRegistrationDisabled", ErrRegistrationDisabled, "flowmgmt: management registration is disabled"},
		{"ErrStartupAborted", ErrStartupAborted, "flowmgmt: context startup aborted"},
		{"ErrDuplicateRouteID", ErrDuplicateRouteID, "flowmgmt: duplicate route id"},
		{"ErrNoConsumers", ErrNoConsumers, "flowmgmt: no consumers available on endpoint"},
		{"ErrConfigRequired", ErrConfigRequired, "flowmgmt: configuration is required"},
		{"ErrServiceStopped", ErrServiceStopped, "flowmgmt: service is stopped"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestConfigValidationError(t *testing.T) {
	inner := errors.New("invalid port")
	err := ConfigValidationError{Err: inner}

	if got := err.Error(); got != "flowmgmt: invalid configuration: invalid port" {
		t.Errorf("Error() = %q", got)
	}
	if !errors.Is(err, inner) {
		t.Error("expected errors.Is to find the wrapped error")
	}

	empty := ConfigValidationError{}
	if got := empty.Error(); got != "flowmgmt: invalid configuration" {
		t.Errorf("Error() = %q", got)
	}
}

func TestNewConfigValidationError(t *testing.T) {
	t.Run("nil error", func(t *testing.T) {
		if err := NewConfigValidationError(nil); err != nil {
			t.Errorf("NewConfigValidationError(nil) = %v, want nil", err)
		}
	})

	t.Run("wraps error", func(t *testing.T) {
		inner := errors.New("bad level")
		err := NewConfigValidationError(inner)
		var cfgErr ConfigValidationError
		if !errors.As(err, &cfgErr) {
			t.Fatalf("expected ConfigValidationError, got %T", err)
		}
		if cfgErr.Err != inner {
			t.Errorf("wrapped error = %v, want %v", cfgErr.Err, inner)
		}
	})
}
