package geometry

import "fmt"

// RangeError is a geometry that does not fit its device.
type RangeError struct {
	start  int64
	length int64
	reason string
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("invalid geometry start %d length %d: %s", e.start, e.length, e.reason)
}

func NewRangeError(start, length int64, reason string) *RangeError {
	return &RangeError{
		start:  start,
		length: length,
		reason: reason,
	}
}
