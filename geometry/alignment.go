package geometry

import "fmt"

// Alignment is the set of sectors {Offset + k*GrainSize} for any integer k.
// A GrainSize of 0 means the single sector Offset.
type Alignment struct {
	Offset    int64
	GrainSize int64
}

var (
	// AlignAny admits every sector.
	AlignAny = Alignment{Offset: 0, GrainSize: 1}
	// AlignNone admits only sector 0.
	AlignNone = Alignment{Offset: 0, GrainSize: 0}
)

// NewAlignment returns a normalized alignment; the offset is reduced modulo a non-zero grain.
func NewAlignment(offset, grainSize int64) (*Alignment, error) {
	if grainSize < 0 {
		return nil, fmt.Errorf("alignment grain size %d is negative", grainSize)
	}
	if grainSize != 0 {
		offset = absMod(offset, grainSize)
	}
	return &Alignment{Offset: offset, GrainSize: grainSize}, nil
}

func (a *Alignment) String() string {
	return fmt.Sprintf("%d+k*%d", a.Offset, a.GrainSize)
}

// Duplicate returns an independent copy.
func (a *Alignment) Duplicate() *Alignment {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Equal compares normalized alignments.
func (a *Alignment) Equal(b *Alignment) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

type euclidTriple struct {
	gcd, x, y int64
}

// extendedEuclid returns gcd(a,b) and x, y with a*x + b*y = gcd.
func extendedEuclid(a, b int64) euclidTriple {
	if b == 0 {
		return euclidTriple{gcd: a, x: 1, y: 0}
	}
	t := extendedEuclid(b, a%b)
	return euclidTriple{gcd: t.gcd, x: t.y, y: t.x - (a/b)*t.y}
}

// IntersectAlignments returns the sectors common to both alignments, or nil if there are
// none. The grain of the result is the least common multiple of the two grains.
func IntersectAlignments(a, b *Alignment) *Alignment {
	if a == nil || b == nil {
		return nil
	}
	if a.GrainSize < b.GrainSize {
		a, b = b, a
	}

	// both single sectors
	if a.GrainSize == 0 && b.GrainSize == 0 {
		if a.Offset == b.Offset {
			return a.Duplicate()
		}
		return nil
	}

	// solve a.Offset + a.GrainSize*i == b.Offset + b.GrainSize*j
	e := extendedEuclid(a.GrainSize, b.GrainSize)
	deltaOnGCD := (b.Offset - a.Offset) / e.gcd
	newOffset := a.Offset + a.GrainSize*deltaOnGCD*e.x
	newGrain := a.GrainSize / e.gcd * b.GrainSize

	if newOffset != b.Offset-b.GrainSize*deltaOnGCD*e.y {
		return nil
	}
	r, err := NewAlignment(newOffset, newGrain)
	if err != nil {
		return nil
	}
	return r
}

// IsAligned reports whether sector belongs to the alignment and, when g is not nil,
// lies inside g.
func (a *Alignment) IsAligned(g *Geometry, sector int64) bool {
	if a == nil {
		return false
	}
	if g != nil && !g.TestSectorInside(sector) {
		return false
	}
	if a.GrainSize != 0 {
		return absMod(sector-a.Offset, a.GrainSize) == 0
	}
	return sector == a.Offset
}

// AlignUp returns the smallest aligned sector >= sector, moved inside g when g is not
// nil, or -1 if there is none.
func (a *Alignment) AlignUp(g *Geometry, sector int64) int64 {
	var result int64
	if a.GrainSize != 0 {
		result = roundUpTo(sector-a.Offset, a.GrainSize) + a.Offset
	} else {
		result = a.Offset
	}
	if g != nil {
		result = a.closestInside(g, result)
	}
	return result
}

// AlignDown returns the largest aligned sector <= sector, moved inside g when g is not
// nil, or -1 if there is none.
func (a *Alignment) AlignDown(g *Geometry, sector int64) int64 {
	var result int64
	if a.GrainSize != 0 {
		result = roundDownTo(sector-a.Offset, a.GrainSize) + a.Offset
	} else {
		result = a.Offset
	}
	if g != nil {
		result = a.closestInside(g, result)
	}
	return result
}

// AlignNearest returns the aligned sector inside g nearest to sector, or -1.
// Ties go to the lower sector.
func (a *Alignment) AlignNearest(g *Geometry, sector int64) int64 {
	return closest(sector, a.AlignUp(g, sector), a.AlignDown(g, sector))
}

func (a *Alignment) closestInside(g *Geometry, sector int64) int64 {
	if a.GrainSize == 0 {
		if a.IsAligned(g, sector) {
			return sector
		}
		return -1
	}
	if sector < g.Start {
		sector += roundUpTo(g.Start-sector, a.GrainSize)
	}
	if sector > g.End() {
		sector -= roundUpTo(sector-g.End(), a.GrainSize)
	}
	if !g.TestSectorInside(sector) {
		return -1
	}
	return sector
}

func closest(sector, a, b int64) int64 {
	if a == -1 {
		return b
	}
	if b == -1 {
		return a
	}
	if abs(sector-a) < abs(sector-b) {
		return a
	}
	return b
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}

func absMod(a, b int64) int64 {
	r := a % b
	if r < 0 {
		r += b
	}
	return r
}

func roundDownTo(sector, grain int64) int64 {
	return sector - absMod(sector, grain)
}

func roundUpTo(sector, grain int64) int64 {
	if absMod(sector, grain) != 0 {
		return roundDownTo(sector, grain) + grain
	}
	return sector
}
