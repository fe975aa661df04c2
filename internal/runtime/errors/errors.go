package errors

import sterrors "errors"

var (
	ErrNameClash            = sterrors.New("flowmgmt: management name is already registered")
	ErrNotFound             = sterrors.New("flowmgmt: managed object not found")
	ErrRegistrationDisabled = sterrors.New("flowmgmt: management registration is disabled")
	ErrStartupAborted       = sterrors.New("flowmgmt: context startup aborted")
	ErrDuplicateRouteID     = sterrors.New("flowmgmt: duplicate route id")
	ErrCapabilityMismatch   = sterrors.New("flowmgmt: managed object does not provide the requested capability")
	ErrUnknownOperation     = sterrors.New("flowmgmt: unknown operation")
	ErrUnknownAttribute     = sterrors.New("flowmgmt: unknown attribute")
	ErrInvalidArgument      = sterrors.New("flowmgmt: invalid operation argument")
	ErrNoConsumers          = sterrors.New("flowmgmt: no consumers available on endpoint")
	ErrUnknownComponent     = sterrors.New("flowmgmt: no component found for endpoint scheme")
	ErrContextNotStarted    = sterrors.New("flowmgmt: context is not started")
	ErrRouteNotFound        = sterrors.New("flowmgmt: route not found")
	ErrConfigRequired       = sterrors.New("flowmgmt: configuration is required")
	ErrLoggerRequired       = sterrors.New("flowmgmt: logger is required")
	ErrServiceStopped       = sterrors.New("flowmgmt: service is stopped")
)

// ConfigValidationError marks configuration problems detected before any
// managed object is registered.
type ConfigValidationError struct {
	Err error
}

func (e ConfigValidationError) Error() string {
	if e.Err == nil {
		return "flowmgmt: invalid configuration"
	}
	return "flowmgmt: invalid configuration: " + e.Err.Error()
}

func (e ConfigValidationError) Unwrap() error { return e.Err }

// NewConfigValidationError wraps err, returning nil for a nil error.
func NewConfigValidationError(err error) error {
	if err == nil {
		return nil
	}
	return ConfigValidationError{Err: err}
}
