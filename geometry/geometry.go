// Package geometry implements sector-range algebra for placing partitions on a device:
// geometries (contiguous sector ranges), alignments (arithmetic progressions of sectors)
// and constraints (sets of acceptable geometries) with a nearest-fit solver.
package geometry

import (
	"fmt"

	"github.com/diskfs/go-disklabel/disk"
)

// Geometry is a contiguous range of sectors on a device.
//
// The device is referenced, never owned.
type Geometry struct {
	Dev    disk.Device
	Start  int64
	Length int64
}

// New returns the geometry of length sectors at start, validated against the device bounds.
func New(dev disk.Device, start, length int64) (*Geometry, error) {
	g := &Geometry{Dev: dev}
	if err := g.Set(start, length); err != nil {
		return nil, err
	}
	return g, nil
}

// FromRange is New for the inclusive sector range [start, end].
func FromRange(dev disk.Device, start, end int64) (*Geometry, error) {
	return New(dev, start, end-start+1)
}

// End returns the last sector of the range.
func (g *Geometry) End() int64 {
	return g.Start + g.Length - 1
}

func (g *Geometry) String() string {
	return fmt.Sprintf("%d-%d (%d sectors)", g.Start, g.End(), g.Length)
}

// Set moves and resizes the geometry, leaving it untouched on error.
func (g *Geometry) Set(start, length int64) error {
	if length < 1 {
		return NewRangeError(start, length, "can't have the end before the start")
	}
	if start < 0 || start+length-1 >= g.Dev.Length() {
		return NewRangeError(start, length, fmt.Sprintf("can't have a partition outside the device of %d sectors", g.Dev.Length()))
	}
	g.Start = start
	g.Length = length
	return nil
}

// SetStart moves the start keeping the end.
func (g *Geometry) SetStart(start int64) error {
	return g.Set(start, g.End()-start+1)
}

// SetEnd moves the end keeping the start.
func (g *Geometry) SetEnd(end int64) error {
	return g.Set(g.Start, end-g.Start+1)
}

// Duplicate returns an independent copy.
func (g *Geometry) Duplicate() *Geometry {
	if g == nil {
		return nil
	}
	c := *g
	return &c
}

// Equal reports whether both geometries cover the same sectors of the same device.
func (g *Geometry) Equal(o *Geometry) bool {
	if g == nil || o == nil {
		return g == o
	}
	return g.Dev == o.Dev && g.Start == o.Start && g.Length == o.Length
}

// Intersect returns the sectors covered by both geometries, or nil if they are disjoint
// or on different devices.
func (g *Geometry) Intersect(o *Geometry) *Geometry {
	if g == nil || o == nil || g.Dev != o.Dev {
		return nil
	}
	start := g.Start
	if o.Start > start {
		start = o.Start
	}
	end := g.End()
	if o.End() < end {
		end = o.End()
	}
	if start > end {
		return nil
	}
	return &Geometry{Dev: g.Dev, Start: start, Length: end - start + 1}
}

// TestOverlap reports whether the two geometries share at least one sector.
func (g *Geometry) TestOverlap(o *Geometry) bool {
	if g.Dev != o.Dev {
		return false
	}
	if g.Start < o.Start {
		return g.End() >= o.Start
	}
	return o.End() >= g.Start
}

// TestInside reports whether o lies entirely within g.
func (g *Geometry) TestInside(o *Geometry) bool {
	if g.Dev != o.Dev {
		return false
	}
	return o.Start >= g.Start && o.End() <= g.End()
}

// TestSectorInside reports whether sector lies within g.
func (g *Geometry) TestSectorInside(sector int64) bool {
	return sector >= g.Start && sector <= g.End()
}

// Read reads count sectors at offset, relative to the start of g.
func (g *Geometry) Read(offset, count int64) ([]byte, error) {
	if offset < 0 || count < 0 || offset+count > g.Length {
		return nil, disk.NewSectorRangeError(offset, count, g.Length)
	}
	return g.Dev.ReadSectors(g.Start+offset, count)
}

// Write writes whole sectors at offset, relative to the start of g.
func (g *Geometry) Write(offset int64, b []byte) error {
	count := int64(len(b)) / g.Dev.SectorSize()
	if offset < 0 || offset+count > g.Length {
		return disk.NewSectorRangeError(offset, count, g.Length)
	}
	return g.Dev.WriteSectors(g.Start+offset, b)
}

// Sync syncs the underlying device.
func (g *Geometry) Sync() error {
	return g.Dev.Sync()
}

// Region returns a disk.Device addressing only the sectors of g, with sector 0 at g.Start.
func (g *Geometry) Region() disk.Device {
	return region{g: *g}
}

type region struct {
	g Geometry
}

func (r region) SectorSize() int64 { return r.g.Dev.SectorSize() }
func (r region) Length() int64     { return r.g.Length }
func (r region) ReadOnly() bool    { return r.g.Dev.ReadOnly() }
func (r region) Sync() error       { return r.g.Sync() }

func (r region) ReadSectors(start, count int64) ([]byte, error) {
	return r.g.Read(start, count)
}

func (r region) WriteSectors(start int64, b []byte) error {
	return r.g.Write(start, b)
}
