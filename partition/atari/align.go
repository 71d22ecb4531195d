package atari

import (
	"github.com/diskfs/go-disklabel/geometry"
	"github.com/diskfs/go-disklabel/partition"
)

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// firstLogical returns the lowest number held by a logical partition, or -1.
func firstLogical(t *partition.Table) int {
	last := t.LastPartitionNum()
	for n := 1; n <= last; n++ {
		if p := t.Partition(n); p != nil && p.Type&partition.Logical != 0 {
			return n
		}
	}
	return -1
}

// logicals returns the logical entries of t in table order, metadata included.
func logicals(t *partition.Table) []*partition.Partition {
	var l []*partition.Partition
	for _, p := range t.Partitions() {
		if p.Type&partition.Logical != 0 && p.Type&partition.Freespace == 0 {
			l = append(l, p)
		}
	}
	return l
}

// logConstraint bounds a logical partition by its neighbours inside the extended
// partition. Every logical partition but the first needs the sector before it for its
// auxiliary root sector; the first one uses the first sector of the extended partition.
func logConstraint(p *partition.Partition) *geometry.Constraint {
	t := p.Table()
	ext := t.ExtendedPartition()
	if ext == nil {
		return nil
	}
	first := firstLogical(t)
	if first == -1 {
		first = p.Num
	}
	notFirst := b2i(p.Num != first)
	reserved := func(w *partition.Partition) int64 {
		return b2i(w.Num != first)
	}

	minStart := ext.Geometry.Start + 1 + notFirst
	maxEnd := ext.Geometry.End()
	level := logicals(t)
	i := 0
	for ; i < len(level); i++ {
		w := level[i]
		ws := w.Geometry.Start - reserved(w)
		if ws >= p.Geometry.Start-notFirst && ws >= minStart {
			break
		}
		if w != p && w.IsActive() {
			minStart = w.Geometry.End() + 1 + notFirst
		}
	}
	for i < len(level) && (level[i] == p || !level[i].IsActive()) {
		i++
	}
	if i < len(level) {
		maxEnd = level[i].Geometry.Start - 1 - reserved(level[i])
	}
	if minStart >= maxEnd {
		return nil
	}
	return geometry.FromMax(&geometry.Geometry{Dev: t.Device(), Start: minStart, Length: maxEnd - minStart + 1})
}

// minExtendedGeometry returns the smallest extent the extended partition can have
// while holding its logical partitions and their auxiliary root sectors, or nil when
// there are none.
func minExtendedGeometry(t *partition.Table) *geometry.Geometry {
	first := firstLogical(t)
	if first == -1 {
		return nil
	}
	fp := t.Partition(first)
	start, end := fp.Geometry.Start-1, fp.Geometry.End()
	for _, w := range logicals(t) {
		if !w.IsActive() || w.Num == first {
			continue
		}
		if w.Geometry.Start < start {
			start = w.Geometry.Start - 2
		}
		if w.Geometry.End() > end {
			end = w.Geometry.End()
		}
	}
	return &geometry.Geometry{Dev: t.Device(), Start: start, Length: end - start + 1}
}

func extConstraint(p *partition.Partition) *geometry.Constraint {
	dev := p.Table().Device()
	startRange := &geometry.Geometry{Dev: dev, Start: 1, Length: dev.Length() - 1}
	endRange := startRange.Duplicate()
	if inner := minExtendedGeometry(p.Table()); inner != nil {
		if inner.Start < 1 {
			return nil
		}
		startRange = &geometry.Geometry{Dev: dev, Start: 1, Length: inner.Start}
		endRange = &geometry.Geometry{Dev: dev, Start: inner.End(), Length: dev.Length() - inner.End()}
	}
	c, err := geometry.NewConstraint(&geometry.AlignAny, &geometry.AlignAny, startRange, endRange, 1, dev.Length())
	if err != nil {
		return nil
	}
	return c
}

// primConstraint keeps primary partitions off the root sector.
func primConstraint(p *partition.Partition) *geometry.Constraint {
	dev := p.Table().Device()
	return geometry.FromMax(&geometry.Geometry{Dev: dev, Start: 1, Length: dev.Length() - 1})
}

// tryConstraint solves external and internal together for p; a nil internal has no solution.
func tryConstraint(p *partition.Partition, external, internal *geometry.Constraint) *geometry.Geometry {
	if internal == nil || external == nil {
		return nil
	}
	return geometry.SolveNearest(geometry.Intersect(external, internal), &p.Geometry)
}

// bestSolution prefers the longer geometry, a on ties.
func bestSolution(a, b *geometry.Geometry) *geometry.Geometry {
	switch {
	case a == nil:
		return b
	case b == nil:
		return a
	case a.Length < b.Length:
		return b
	default:
		return a
	}
}

// primAlign places a primary or extended partition either before or after the bad
// sector list, whichever leaves it larger.
func primAlign(p *partition.Partition, c, internal *geometry.Constraint) bool {
	s, err := stateOf(p.Table())
	if err != nil {
		return false
	}
	dev := p.Table().Device()
	if s.bslStart == 0 && s.bslCount == 0 {
		g := tryConstraint(p, c, internal)
		if g == nil {
			return false
		}
		p.Geometry = *g
		return true
	}

	var solution *geometry.Geometry
	if s.bslStart > 1 {
		cut := geometry.FromMax(&geometry.Geometry{Dev: dev, Start: 1, Length: int64(s.bslStart) - 1})
		solution = bestSolution(solution, tryConstraint(p, c, intersectBoth(internal, cut)))
	}
	bslEnd := int64(s.bslStart) + int64(s.bslCount)
	if bslEnd < dev.Length() {
		cut := geometry.FromMax(&geometry.Geometry{Dev: dev, Start: bslEnd, Length: dev.Length() - bslEnd})
		solution = bestSolution(solution, tryConstraint(p, c, intersectBoth(internal, cut)))
	}
	if solution == nil {
		return false
	}
	p.Geometry = *solution
	return true
}

// intersectBoth is geometry.Intersect where a nil operand means no solution.
func intersectBoth(a, b *geometry.Constraint) *geometry.Constraint {
	if a == nil || b == nil {
		return nil
	}
	return geometry.Intersect(a, b)
}

// Align places p at the solution nearest to its geometry that satisfies c, stays off
// the root sector and the bad sector list, and leaves room for auxiliary root sectors.
func (d *Driver) Align(p *partition.Partition, c *geometry.Constraint) error {
	var ok bool
	switch p.Type {
	case partition.Logical:
		if g := tryConstraint(p, c, logConstraint(p)); g != nil {
			p.Geometry = *g
			ok = true
		}
	case partition.Extended:
		ok = primAlign(p, c, extConstraint(p))
	default:
		ok = primAlign(p, c, primConstraint(p))
	}
	if !ok {
		return partition.NewError(partition.ErrConstraintUnsatisfiable, Name, "unable to satisfy all constraints on the partition")
	}
	return nil
}
