package geometry

import (
	"fmt"

	"github.com/diskfs/go-disklabel/disk"
)

// Constraint describes the set of geometries acceptable for a placement: the start
// and end sectors must be aligned and inside their ranges, and the length must lie in
// [MinSize, MaxSize].
//
// A nil *Constraint passed to Intersect means "unconstrained"; returned from Intersect
// it means no geometry can satisfy both operands.
type Constraint struct {
	StartAlign *Alignment
	EndAlign   *Alignment
	StartRange *Geometry
	EndRange   *Geometry
	MinSize    int64
	MaxSize    int64
}

// NewConstraint copies its arguments into a new Constraint.
func NewConstraint(startAlign, endAlign *Alignment, startRange, endRange *Geometry, minSize, maxSize int64) (*Constraint, error) {
	if startAlign == nil || endAlign == nil || startRange == nil || endRange == nil {
		return nil, fmt.Errorf("constraint requires alignments and ranges")
	}
	if minSize <= 0 || maxSize <= 0 {
		return nil, fmt.Errorf("constraint sizes must be positive, got min %d max %d", minSize, maxSize)
	}
	if startRange.Dev != endRange.Dev {
		return nil, fmt.Errorf("constraint ranges are on different devices")
	}
	return &Constraint{
		StartAlign: startAlign.Duplicate(),
		EndAlign:   endAlign.Duplicate(),
		StartRange: startRange.Duplicate(),
		EndRange:   endRange.Duplicate(),
		MinSize:    minSize,
		MaxSize:    maxSize,
	}, nil
}

// Any returns the constraint admitting every geometry on dev.
func Any(dev disk.Device) *Constraint {
	full := &Geometry{Dev: dev, Start: 0, Length: dev.Length()}
	return &Constraint{
		StartAlign: AlignAny.Duplicate(),
		EndAlign:   AlignAny.Duplicate(),
		StartRange: full,
		EndRange:   full.Duplicate(),
		MinSize:    1,
		MaxSize:    dev.Length(),
	}
}

// Exact returns the constraint admitting only g.
func Exact(g *Geometry) *Constraint {
	return &Constraint{
		StartAlign: &Alignment{Offset: g.Start, GrainSize: 0},
		EndAlign:   &Alignment{Offset: g.End(), GrainSize: 0},
		StartRange: &Geometry{Dev: g.Dev, Start: g.Start, Length: 1},
		EndRange:   &Geometry{Dev: g.Dev, Start: g.End(), Length: 1},
		MinSize:    1,
		MaxSize:    g.Dev.Length(),
	}
}

// FromMax returns the constraint admitting any geometry inside bound.
func FromMax(bound *Geometry) *Constraint {
	return &Constraint{
		StartAlign: AlignAny.Duplicate(),
		EndAlign:   AlignAny.Duplicate(),
		StartRange: bound.Duplicate(),
		EndRange:   bound.Duplicate(),
		MinSize:    1,
		MaxSize:    bound.Length,
	}
}

// FromMinMax returns the constraint admitting any geometry containing inner and inside outer.
func FromMinMax(inner, outer *Geometry) (*Constraint, error) {
	if !outer.TestInside(inner) {
		return nil, fmt.Errorf("geometry %v is not inside %v", inner, outer)
	}
	startRange := &Geometry{Dev: inner.Dev, Start: outer.Start, Length: inner.Start - outer.Start + 1}
	endRange := &Geometry{Dev: inner.Dev, Start: inner.End(), Length: outer.End() - inner.End() + 1}
	return NewConstraint(&AlignAny, &AlignAny, startRange, endRange, inner.Length, outer.Length)
}

// FromMin returns the constraint admitting any geometry containing inner.
func FromMin(inner *Geometry) (*Constraint, error) {
	full := &Geometry{Dev: inner.Dev, Start: 0, Length: inner.Dev.Length()}
	return FromMinMax(inner, full)
}

// Duplicate returns an independent copy.
func (c *Constraint) Duplicate() *Constraint {
	if c == nil {
		return nil
	}
	return &Constraint{
		StartAlign: c.StartAlign.Duplicate(),
		EndAlign:   c.EndAlign.Duplicate(),
		StartRange: c.StartRange.Duplicate(),
		EndRange:   c.EndRange.Duplicate(),
		MinSize:    c.MinSize,
		MaxSize:    c.MaxSize,
	}
}

// Equal reports whether both constraints have identical components.
func (c *Constraint) Equal(o *Constraint) bool {
	if c == nil || o == nil {
		return c == o
	}
	return c.StartAlign.Equal(o.StartAlign) && c.EndAlign.Equal(o.EndAlign) &&
		c.StartRange.Equal(o.StartRange) && c.EndRange.Equal(o.EndRange) &&
		c.MinSize == o.MinSize && c.MaxSize == o.MaxSize
}

func (c *Constraint) String() string {
	if c == nil {
		return "<unsatisfiable>"
	}
	return fmt.Sprintf("start %v in %v, end %v in %v, size %d..%d",
		c.StartAlign, c.StartRange, c.EndAlign, c.EndRange, c.MinSize, c.MaxSize)
}

// Intersect returns the constraint admitting exactly the geometries admitted by both.
// A nil operand is unconstrained; the result is nil when the ranges do not meet, the
// alignments are incompatible or the size bounds cross.
func Intersect(a, b *Constraint) *Constraint {
	if a == nil {
		return b.Duplicate()
	}
	if b == nil {
		return a.Duplicate()
	}
	startAlign := IntersectAlignments(a.StartAlign, b.StartAlign)
	if startAlign == nil {
		return nil
	}
	endAlign := IntersectAlignments(a.EndAlign, b.EndAlign)
	if endAlign == nil {
		return nil
	}
	startRange := a.StartRange.Intersect(b.StartRange)
	if startRange == nil {
		return nil
	}
	endRange := a.EndRange.Intersect(b.EndRange)
	if endRange == nil {
		return nil
	}
	minSize := a.MinSize
	if b.MinSize > minSize {
		minSize = b.MinSize
	}
	maxSize := a.MaxSize
	if b.MaxSize < maxSize {
		maxSize = b.MaxSize
	}
	if minSize > maxSize {
		return nil
	}
	return &Constraint{
		StartAlign: startAlign,
		EndAlign:   endAlign,
		StartRange: startRange,
		EndRange:   endRange,
		MinSize:    minSize,
		MaxSize:    maxSize,
	}
}

// IsSolution reports whether g satisfies every component of c.
func (c *Constraint) IsSolution(g *Geometry) bool {
	if c == nil || g == nil {
		return false
	}
	return c.StartAlign.IsAligned(nil, g.Start) &&
		c.EndAlign.IsAligned(nil, g.End()) &&
		c.StartRange.TestSectorInside(g.Start) &&
		c.EndRange.TestSectorInside(g.End()) &&
		g.Length >= c.MinSize &&
		g.Length <= c.MaxSize
}

// canonicalStartRange narrows the start range to the starts that can still reach an
// aligned end within the size bounds.
func (c *Constraint) canonicalStartRange() *Geometry {
	if c.MinSize > c.MaxSize {
		return nil
	}
	firstEnd := c.EndAlign.AlignDown(c.EndRange, c.EndRange.Start)
	lastEnd := c.EndAlign.AlignUp(c.EndRange, c.EndRange.End())
	if firstEnd == -1 || lastEnd == -1 || firstEnd > lastEnd || lastEnd < c.MinSize {
		return nil
	}
	minStart := firstEnd - c.MaxSize + 1
	if minStart < 0 {
		minStart = 0
	}
	maxStart := lastEnd - c.MinSize + 1
	if maxStart < 0 {
		return nil
	}
	g := &Geometry{Dev: c.StartRange.Dev, Start: minStart, Length: maxStart - minStart + 1}
	return g.Intersect(c.StartRange)
}

// endRangeFor returns the valid ends for a geometry beginning at start.
func (c *Constraint) endRangeFor(start int64) *Geometry {
	devLength := c.EndRange.Dev.Length()
	first := start + c.MinSize - 1
	if first > devLength-1 {
		return nil
	}
	last := start + c.MaxSize - 1
	if last > devLength-1 {
		last = devLength - 1
	}
	g := &Geometry{Dev: c.EndRange.Dev, Start: first, Length: last - first + 1}
	return g.Intersect(c.EndRange)
}

// SolveNearest returns the geometry satisfying c whose start is nearest to ideal's start
// and, given that start, whose end is nearest to ideal's end. It returns nil when no
// aligned start exists or the chosen start admits no valid end.
func SolveNearest(c *Constraint, ideal *Geometry) *Geometry {
	if c == nil || ideal == nil {
		return nil
	}
	startRange := c.canonicalStartRange()
	if startRange == nil {
		return nil
	}
	start := c.StartAlign.AlignNearest(startRange, ideal.Start)
	if start == -1 {
		return nil
	}
	endRange := c.endRangeFor(start)
	if endRange == nil {
		return nil
	}
	end := c.EndAlign.AlignNearest(endRange, ideal.End())
	if end == -1 {
		return nil
	}
	g := &Geometry{Dev: ideal.Dev, Start: start, Length: end - start + 1}
	if !c.IsSolution(g) {
		return nil
	}
	return g
}

// SolveMax returns the solution nearest to the whole device, i.e. the largest one.
func SolveMax(c *Constraint) *Geometry {
	if c == nil {
		return nil
	}
	dev := c.StartRange.Dev
	return SolveNearest(c, &Geometry{Dev: dev, Start: 0, Length: dev.Length()})
}
