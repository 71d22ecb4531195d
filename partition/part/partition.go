// Package part defines what callers can do with a single partition's contents.
package part

import (
	"io"
)

// Partition reference to an individual partition on disk
type Partition interface {
	// GetSize returns the size in bytes
	GetSize() int64
	// GetStart returns the offset in bytes from the start of the device
	GetStart() int64
	ReadContents(io.Writer) (int64, error)
	WriteContents(io.Reader) (uint64, error)
}
