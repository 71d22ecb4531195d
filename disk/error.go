package disk

import (
	"errors"
	"fmt"
)

// ErrReadOnly is returned by writes to a device opened read-only.
var ErrReadOnly = errors.New("device is read-only")

// SectorRangeError is a request for sectors outside the device.
type SectorRangeError struct {
	start  int64
	count  int64
	length int64
}

func (e *SectorRangeError) Error() string {
	return fmt.Sprintf("sectors %d+%d are outside device of %d sectors", e.start, e.count, e.length)
}

func NewSectorRangeError(start, count, length int64) *SectorRangeError {
	return &SectorRangeError{
		start:  start,
		count:  count,
		length: length,
	}
}

// IOError is a failed transfer between the device and memory.
type IOError struct {
	Op     string
	Sector int64
	Count  int64
	Err    error
}

func (e *IOError) Error() string {
	if e.Op == "sync" {
		return fmt.Sprintf("sync failed: %v", e.Err)
	}
	return fmt.Sprintf("%s of %d sectors at %d failed: %v", e.Op, e.Count, e.Sector, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func NewIOError(op string, sector, count int64, err error) *IOError {
	return &IOError{
		Op:     op,
		Sector: sector,
		Count:  count,
		Err:    err,
	}
}
