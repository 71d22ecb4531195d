package partition

import (
	"errors"
	"fmt"
)

// Error kinds, matched with errors.Is.
var (
	// ErrDeviceIO means a read, write or sync of the device failed
	ErrDeviceIO = errors.New("device I/O failed")
	// ErrFormatInvalid means on-disk data is not a consistent table of the expected format
	ErrFormatInvalid = errors.New("invalid partition table")
	// ErrConstraintUnsatisfiable means no geometry satisfies the placement bounds and alignment
	ErrConstraintUnsatisfiable = errors.New("constraints cannot be satisfied")
	// ErrCapacityExceeded means a partition count or chain length limit was hit
	ErrCapacityExceeded = errors.New("capacity exceeded")
	// ErrConfigurationConflict means the requested layout cannot be expressed by the format
	ErrConfigurationConflict = errors.New("conflicting partition configuration")
	// ErrInvariantViolation means an internal consistency check failed
	ErrInvariantViolation = errors.New("internal consistency check failed")
	// ErrNotSupported means the label type lacks the requested feature
	ErrNotSupported = errors.New("not supported by this disk label")
	// ErrCanceled means a confirmation was answered with cancel
	ErrCanceled = errors.New("canceled")
)

// Error is a failed label operation. Kind is one of the Err* values above.
type Error struct {
	Kind  error
	Label string
	msg   string
	err   error
}

func (e *Error) Error() string {
	prefix := e.Kind.Error()
	if e.Label != "" {
		prefix = e.Label + ": " + prefix
	}
	switch {
	case e.msg != "" && e.err != nil:
		return fmt.Sprintf("%s: %s: %v", prefix, e.msg, e.err)
	case e.msg != "":
		return fmt.Sprintf("%s: %s", prefix, e.msg)
	case e.err != nil:
		return fmt.Sprintf("%s: %v", prefix, e.err)
	default:
		return prefix
	}
}

func (e *Error) Is(target error) bool {
	return target == e.Kind
}

func (e *Error) Unwrap() error {
	return e.err
}

// NewError returns an Error of the given kind with a formatted message.
func NewError(kind error, label, format string, args ...any) *Error {
	return &Error{
		Kind:  kind,
		Label: label,
		msg:   fmt.Sprintf(format, args...),
	}
}

// NewIOError wraps a device error as ErrDeviceIO.
func NewIOError(label, op string, err error) *Error {
	return &Error{
		Kind:  ErrDeviceIO,
		Label: label,
		msg:   op,
		err:   err,
	}
}

// NewFormatError wraps a parse failure as ErrFormatInvalid.
func NewFormatError(label, format string, args ...any) *Error {
	return NewError(ErrFormatInvalid, label, format, args...)
}
