package partition

import (
	"sort"

	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/geometry"
)

// pushUpdateMode enters update mode. Metadata pseudo-partitions are dropped on the
// outermost entry so that edits only see active partitions.
func (t *Table) pushUpdateMode() {
	if t.updateMode == 0 {
		t.removePseudo()
	}
	t.updateMode++
}

// popUpdateMode leaves update mode, asking the driver for its metadata on the outermost exit.
func (t *Table) popUpdateMode() {
	if t.updateMode == 1 {
		t.allocMetadata()
	}
	t.updateMode--
}

func (t *Table) allocMetadata() {
	// keeps the driver's own AddPartition calls from recursing back here
	t.updateMode++
	if err := t.driver.AllocMetadata(t); err != nil {
		t.log.WithError(err).Warn("could not allocate label metadata")
	}
	t.updateMode--
}

func (t *Table) removePseudo() {
	kept := t.parts[:0]
	for _, p := range t.parts {
		if p.IsActive() {
			kept = append(kept, p)
		}
	}
	for i := len(kept); i < len(t.parts); i++ {
		t.parts[i] = nil
	}
	t.parts = kept
}

// snapshot records everything AddPartition may change, so a failed add leaves no trace.
type snapshot struct {
	parts    []*Partition
	nums     map[*Partition]int
	specific Payload
	geom     geometry.Geometry
	num      int
	typ      Type
	fs       filesystem.Type
	pspec    Payload
}

func (t *Table) snapshot(p *Partition) *snapshot {
	s := &snapshot{
		parts: append([]*Partition(nil), t.parts...),
		nums:  make(map[*Partition]int, len(t.parts)),
		geom:  p.Geometry,
		num:   p.Num,
		typ:   p.Type,
		fs:    p.FS,
	}
	for _, q := range t.parts {
		s.nums[q] = q.Num
	}
	if t.Specific != nil {
		s.specific = t.Specific.Clone()
	}
	if p.Specific != nil {
		s.pspec = p.Specific.Clone()
	}
	return s
}

func (t *Table) restore(s *snapshot, p *Partition) {
	t.parts = s.parts
	for q, num := range s.nums {
		q.Num = num
	}
	t.Specific = s.specific
	p.Geometry = s.geom
	p.Num = s.num
	p.Type = s.typ
	p.FS = s.fs
	p.Specific = s.pspec
}

func (t *Table) checkBasicSanity(p *Partition) error {
	if p.table != t {
		return NewError(ErrInvariantViolation, t.Type(), "partition belongs to another table")
	}
	for _, q := range t.parts {
		if q == p {
			return NewError(ErrInvariantViolation, t.Type(), "partition %d is already in the table", p.Num)
		}
	}
	if p.Type&(Extended|Logical) != 0 && !t.driver.Features().Has(FeatureExtended) {
		return NewError(ErrNotSupported, t.Type(), "%s disk labels do not support extended partitions", t.Type())
	}
	if p.Type == Extended && t.ExtendedPartition() != nil {
		return NewError(ErrConfigurationConflict, t.Type(), "only one extended partition is allowed")
	}
	if p.Type&Logical != 0 && t.ExtendedPartition() == nil {
		return NewError(ErrConfigurationConflict, t.Type(), "cannot add a logical partition without an extended partition")
	}
	return nil
}

// siblings returns the partitions on the same level as p: the logical partitions when p
// is logical, all other partitions otherwise, in table order.
func (t *Table) siblings(p *Partition) []*Partition {
	var level []*Partition
	for _, q := range t.parts {
		if q.Type&Freespace != 0 {
			continue
		}
		if (q.Type&Logical != 0) == (p.Type&Logical != 0) {
			level = append(level, q)
		}
	}
	return level
}

// overlapConstraint returns the largest free gap around g that p may occupy without
// overlapping its siblings, or nil when there is none.
func (t *Table) overlapConstraint(p *Partition, g *geometry.Geometry) *geometry.Constraint {
	minStart, maxEnd := int64(0), t.dev.Length()-1
	if p.Type&Logical != 0 {
		ext := t.ExtendedPartition()
		minStart, maxEnd = ext.Geometry.Start, ext.Geometry.End()
	}
	level := t.siblings(p)
	i := 0
	for ; i < len(level); i++ {
		w := level[i]
		if w.Geometry.Start >= g.Start && minStart < w.Geometry.Start {
			break
		}
		if w != p {
			minStart = w.Geometry.End() + 1
		}
	}
	if i < len(level) && level[i] == p {
		i++
	}
	if i < len(level) {
		maxEnd = level[i].Geometry.Start - 1
	}
	if minStart >= maxEnd {
		return nil
	}
	return geometry.FromMax(&geometry.Geometry{Dev: t.dev, Start: minStart, Length: maxEnd - minStart + 1})
}

func (t *Table) checkExtended(p *Partition) error {
	for _, q := range t.parts {
		if q == p {
			continue
		}
		if q.Type == Extended {
			return NewError(ErrConfigurationConflict, t.Type(), "only one extended partition is allowed")
		}
		if q.Type&Logical != 0 && !p.Geometry.TestInside(&q.Geometry) {
			return NewError(ErrConfigurationConflict, t.Type(), "the extended partition must contain logical partition %d", q.Num)
		}
	}
	return nil
}

func (t *Table) overlaps(p *Partition) *Partition {
	for _, q := range t.parts {
		if q == p || q.Type&Freespace != 0 {
			continue
		}
		if p.Type == Extended && q.Type&Logical != 0 {
			continue
		}
		if p.Type&Logical != 0 && q.Type == Extended && q.Geometry.TestInside(&p.Geometry) {
			continue
		}
		if p.Geometry.TestOverlap(&q.Geometry) {
			return q
		}
	}
	return nil
}

func (t *Table) checkPartition(p *Partition) error {
	ext := t.ExtendedPartition()
	if p.Type == Extended {
		if err := t.checkExtended(p); err != nil {
			return err
		}
	}
	if p.Type&Logical != 0 && (ext == nil || !ext.Geometry.TestInside(&p.Geometry)) {
		return NewError(ErrConfigurationConflict, t.Type(), "a logical partition must lie inside the extended partition")
	}
	if q := t.overlaps(p); q != nil {
		return NewError(ErrConfigurationConflict, t.Type(), "partition %s overlaps partition %s", p.Geometry.String(), q.Geometry.String())
	}
	if p.Type&Logical == 0 && ext != nil && ext != p && ext.Geometry.TestInside(&p.Geometry) {
		return NewError(ErrConfigurationConflict, t.Type(), "cannot have a primary partition inside the extended partition")
	}
	if p.Type&Metadata == 0 {
		if err := t.driver.Check(p); err != nil {
			return err
		}
	}
	return nil
}

// insert adds p in start order; at equal starts non-logical partitions come first.
func (t *Table) insert(p *Partition) {
	i := sort.Search(len(t.parts), func(i int) bool {
		q := t.parts[i]
		if q.Geometry.Start != p.Geometry.Start {
			return q.Geometry.Start > p.Geometry.Start
		}
		return p.Type&Logical == 0 && q.Type&Logical != 0
	})
	t.parts = append(t.parts, nil)
	copy(t.parts[i+1:], t.parts[i:])
	t.parts[i] = p
}

func (t *Table) remove(p *Partition) bool {
	for i, q := range t.parts {
		if q == p {
			t.parts = append(t.parts[:i], t.parts[i+1:]...)
			return true
		}
	}
	return false
}

// AddPartition numbers p, places it at the solution of c nearest to its current
// geometry and adds it to t. A nil c leaves placement to the driver and the neighbours.
// On error t and p are left exactly as they were.
func (t *Table) AddPartition(p *Partition, c *geometry.Constraint) error {
	if err := t.checkBasicSanity(p); err != nil {
		return err
	}
	t.pushUpdateMode()
	defer t.popUpdateMode()

	s := t.snapshot(p)
	if err := t.addPartition(p, c); err != nil {
		t.restore(s, p)
		return err
	}
	if p.IsActive() && p.Type != Extended && p.FS == filesystem.TypeNone {
		p.FS = t.ProbeFilesystem(&p.Geometry)
	}
	return nil
}

func (t *Table) addPartition(p *Partition, c *geometry.Constraint) error {
	if p.IsActive() {
		overlap := t.overlapConstraint(p, &p.Geometry)
		if overlap == nil {
			return NewError(ErrConstraintUnsatisfiable, t.Type(), "can't have overlapping partitions")
		}
		if c == nil {
			c = geometry.Any(t.dev)
		}
		constraint := geometry.Intersect(overlap, c)
		if constraint == nil {
			return NewError(ErrConstraintUnsatisfiable, t.Type(), "can't have overlapping partitions")
		}
		if err := t.driver.Enumerate(p); err != nil {
			return err
		}
		if p.Num == Unnumbered {
			return NewError(ErrInvariantViolation, t.Type(), "partition was not numbered")
		}
		if p.Type&Logical == 0 && t.PrimaryCount()+1 > t.MaxPrimaryCount() {
			return NewError(ErrCapacityExceeded, t.Type(), "too many primary partitions, at most %d are allowed", t.MaxPrimaryCount())
		}
		if err := t.driver.Align(p, constraint); err != nil {
			return err
		}
	}
	if err := t.checkPartition(p); err != nil {
		return err
	}
	t.insert(p)
	return nil
}

// RemovePartition takes p out of t without renumbering the rest. An extended partition
// must be emptied first.
func (t *Table) RemovePartition(p *Partition) error {
	if p.IsBusy() {
		return NewError(ErrConfigurationConflict, t.Type(), "the extended partition still holds logical partitions")
	}
	t.pushUpdateMode()
	defer t.popUpdateMode()
	if !t.remove(p) {
		return NewError(ErrInvariantViolation, t.Type(), "partition %d is not in the table", p.Num)
	}
	return nil
}

// DeletePartition removes p, together with its logical partitions when p is extended,
// and destroys it.
func (t *Table) DeletePartition(p *Partition) error {
	t.pushUpdateMode()
	defer t.popUpdateMode()
	if p.Type == Extended {
		for _, l := range t.LogicalPartitions() {
			if err := t.DeletePartition(l); err != nil {
				return err
			}
		}
	}
	if err := t.RemovePartition(p); err != nil {
		return err
	}
	t.driver.DestroyPartition(p)
	return nil
}

// DeleteAll deletes every partition.
func (t *Table) DeleteAll() error {
	t.pushUpdateMode()
	defer t.popUpdateMode()
	for _, p := range t.Partitions() {
		if !p.IsActive() || p.Type&Logical != 0 {
			continue
		}
		if err := t.DeletePartition(p); err != nil {
			return err
		}
	}
	return nil
}

// SetPartitionGeometry moves p to the solution of c nearest to [start, end].
// On error p keeps its geometry.
func (t *Table) SetPartitionGeometry(p *Partition, c *geometry.Constraint, start, end int64) error {
	g, err := geometry.FromRange(t.dev, start, end)
	if err != nil {
		return NewError(ErrConstraintUnsatisfiable, t.Type(), "invalid partition geometry: %v", err)
	}
	old := p.Geometry
	t.pushUpdateMode()
	defer t.popUpdateMode()

	overlap := t.overlapConstraint(p, g)
	if c == nil {
		c = geometry.Any(t.dev)
	}
	constraint := geometry.Intersect(overlap, c)
	if overlap == nil || constraint == nil {
		return NewError(ErrConstraintUnsatisfiable, t.Type(), "can't have overlapping partitions")
	}
	p.Geometry = *g
	if err := t.driver.Align(p, constraint); err != nil {
		p.Geometry = old
		return err
	}
	if err := t.checkPartition(p); err != nil {
		p.Geometry = old
		return err
	}
	t.remove(p)
	t.insert(p)
	return nil
}

// MaximizePartition grows p into the free space around it.
func (t *Table) MaximizePartition(p *Partition, c *geometry.Constraint) error {
	t.pushUpdateMode()
	defer t.popUpdateMode()

	minStart, maxEnd := int64(0), t.dev.Length()-1
	if p.Type&Logical != 0 {
		ext := t.ExtendedPartition()
		minStart, maxEnd = ext.Geometry.Start, ext.Geometry.End()
	}
	level := t.siblings(p)
	for i, q := range level {
		if q != p {
			continue
		}
		if i > 0 {
			minStart = level[i-1].Geometry.End() + 1
		}
		if i+1 < len(level) {
			maxEnd = level[i+1].Geometry.Start - 1
		}
		break
	}
	return t.SetPartitionGeometry(p, c, minStart, maxEnd)
}
