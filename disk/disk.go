// Package disk provides sector-level access to a disk block device or image.
//
// A *Disk wraps a backend.Storage and implements Device, the contract that
// github.com/diskfs/go-disklabel/partition drivers and
// github.com/diskfs/go-disklabel/filesystem probes are written against.
package disk

import (
	"errors"
	"fmt"
	"io"

	"github.com/diskfs/go-disklabel/backend"
)

// Disk is a reference to a single disk block device or image that has been Create() or Open()
type Disk struct {
	Backend           backend.Storage
	Type              DeviceType
	Size              int64
	LogicalBlocksize  int64
	PhysicalBlocksize int64
	Writable          bool
}

// Device interface guard
var _ Device = (*Disk)(nil)

// SectorSize returns the logical block size used for sector addressing.
func (d *Disk) SectorSize() int64 {
	return d.LogicalBlocksize
}

// Length returns the number of whole logical sectors on the disk.
func (d *Disk) Length() int64 {
	if d.LogicalBlocksize <= 0 {
		return 0
	}
	return d.Size / d.LogicalBlocksize
}

func (d *Disk) ReadOnly() bool {
	return !d.Writable
}

// ReadSectors reads count sectors starting at sector start.
func (d *Disk) ReadSectors(start, count int64) ([]byte, error) {
	if err := d.checkRange(start, count); err != nil {
		return nil, err
	}
	b := make([]byte, count*d.LogicalBlocksize)
	n, err := d.Backend.ReadAt(b, start*d.LogicalBlocksize)
	if err != nil && !(errors.Is(err, io.EOF) && n == len(b)) {
		return nil, NewIOError("read", start, count, err)
	}
	if n != len(b) {
		return nil, NewIOError("read", start, count, fmt.Errorf("read %d bytes instead of %d", n, len(b)))
	}
	return b, nil
}

// WriteSectors writes b, which must be a whole number of sectors, starting at sector start.
func (d *Disk) WriteSectors(start int64, b []byte) error {
	if !d.Writable {
		return ErrReadOnly
	}
	if int64(len(b))%d.LogicalBlocksize != 0 {
		return fmt.Errorf("write of %d bytes is not a multiple of sector size %d", len(b), d.LogicalBlocksize)
	}
	count := int64(len(b)) / d.LogicalBlocksize
	if err := d.checkRange(start, count); err != nil {
		return err
	}
	w, err := d.Backend.Writable()
	if err != nil {
		return NewIOError("write", start, count, err)
	}
	n, err := w.WriteAt(b, start*d.LogicalBlocksize)
	if err != nil {
		return NewIOError("write", start, count, err)
	}
	if n != len(b) {
		return NewIOError("write", start, count, fmt.Errorf("wrote %d bytes instead of %d", n, len(b)))
	}
	return nil
}

// Sync flushes written sectors to stable storage where the backend is an OS file.
func (d *Disk) Sync() error {
	if !d.Writable {
		return nil
	}
	f, err := d.Backend.Sys()
	if errors.Is(err, backend.ErrNotSuitable) {
		return nil
	}
	if err != nil {
		return NewIOError("sync", 0, 0, err)
	}
	if err := f.Sync(); err != nil {
		return NewIOError("sync", 0, 0, err)
	}
	return nil
}

// Close closes the backend.
func (d *Disk) Close() error {
	return d.Backend.Close()
}

func (d *Disk) checkRange(start, count int64) error {
	if start < 0 || count < 0 || start+count > d.Length() {
		return NewSectorRangeError(start, count, d.Length())
	}
	return nil
}
