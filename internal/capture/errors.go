package capture

import (
	"errors"
	"strings"
)

var (
	ErrPermissionDenied = errors.New("microphone permission denied")
	ErrDeviceNotFound   = errors.New("capture device not found")
	ErrDeviceBusy       = errors.New("capture device busy")
	ErrUnknownCapture   = errors.New("capture failed")
)

var taxonomy = []error{ErrPermissionDenied, ErrDeviceNotFound, ErrDeviceBusy, ErrUnknownCapture}

// Error is a classified capture failure. Error() is the human-readable
// message; errors.Is matches both the taxonomy kind and the driver cause.
type Error struct {
	Kind error
	Err  error
}

func (e *Error) Error() string {
	return Describe(e.Kind)
}

func (e *Error) Unwrap() []error {
	return []error{e.Kind, e.Err}
}

// Classify maps a driver error onto the capture taxonomy.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var classified *Error
	if errors.As(err, &classified) {
		return err
	}
	for _, kind := range taxonomy {
		if errors.Is(err, kind) {
			return &Error{Kind: kind, Err: err}
		}
	}
	return &Error{Kind: kindFromMessage(err.Error()), Err: err}
}

func kindFromMessage(msg string) error {
	msg = strings.ToLower(msg)
	switch {
	case containsAny(msg, "permission", "denied", "not allowed", "notallowed"):
		return ErrPermissionDenied
	case containsAny(msg, "not found", "no default input", "invalid device", "no such device", "notfound"):
		return ErrDeviceNotFound
	case containsAny(msg, "busy", "unavailable", "in use", "notreadable"):
		return ErrDeviceBusy
	default:
		return ErrUnknownCapture
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

// Describe returns the user-facing text for a capture failure.
func Describe(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPermissionDenied):
		return "Microphone access was denied. Allow microphone access and try again."
	case errors.Is(err, ErrDeviceNotFound):
		return "No matching microphone was found. Check that an input device is connected."
	case errors.Is(err, ErrDeviceBusy):
		return "The microphone is in use by another application."
	default:
		return "Audio capture failed unexpectedly."
	}
}
