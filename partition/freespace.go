package partition

import (
	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/geometry"
)

// FreeSpace returns the unallocated gaps of t as Freespace partitions, numbered -1.
// Gaps inside the extended partition are typed Logical|Freespace.
func (t *Table) FreeSpace() []*Partition {
	var top, logical []*Partition
	for _, p := range t.parts {
		if p.Type&Logical != 0 {
			logical = append(logical, p)
		} else {
			top = append(top, p)
		}
	}
	free := t.gaps(top, 0, t.dev.Length()-1, Freespace)
	if ext := t.ExtendedPartition(); ext != nil {
		free = append(free, t.gaps(logical, ext.Geometry.Start, ext.Geometry.End(), Logical|Freespace)...)
	}
	return free
}

// Layout returns the partitions and free space of t in start order, as shown to users.
func (t *Table) Layout() []*Partition {
	all := append([]*Partition(nil), t.parts...)
	for _, f := range t.FreeSpace() {
		all = insertSorted(all, f)
	}
	return all
}

func insertSorted(parts []*Partition, p *Partition) []*Partition {
	i := 0
	for i < len(parts) && (parts[i].Geometry.Start < p.Geometry.Start ||
		(parts[i].Geometry.Start == p.Geometry.Start && parts[i].Type&Logical == 0)) {
		i++
	}
	parts = append(parts, nil)
	copy(parts[i+1:], parts[i:])
	parts[i] = p
	return parts
}

func (t *Table) gaps(level []*Partition, start, end int64, typ Type) []*Partition {
	var free []*Partition
	add := func(from, to int64) {
		if from > to {
			return
		}
		free = append(free, &Partition{
			Type:     typ,
			Num:      Unnumbered,
			Geometry: geometry.Geometry{Dev: t.dev, Start: from, Length: to - from + 1},
			FS:       filesystem.TypeNone,
			table:    t,
		})
	}
	next := start
	for _, p := range level {
		add(next, p.Geometry.Start-1)
		if e := p.Geometry.End() + 1; e > next {
			next = e
		}
	}
	add(next, end)
	return free
}
