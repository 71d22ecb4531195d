package atari

import (
	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/geometry"
	"github.com/diskfs/go-disklabel/partition"
)

func addMetadata(t *partition.Table, start, end int64, typ partition.Type) error {
	p, err := partition.AllocPartition(t, typ|partition.Metadata, filesystem.TypeNone, start, end)
	if err != nil {
		return err
	}
	return t.AddPartition(p, geometry.Exact(&p.Geometry))
}

// AllocMetadata reserves the root sector, the bad sector list and the auxiliary root
// sector of every logical partition.
func (d *Driver) AllocMetadata(t *partition.Table) error {
	s, err := stateOf(t)
	if err != nil {
		return err
	}
	if err := addMetadata(t, 0, 0, partition.Normal); err != nil {
		return err
	}
	if s.bslStart != 0 || s.bslCount != 0 {
		if err := addMetadata(t, int64(s.bslStart), int64(s.bslStart)+int64(s.bslCount)-1, partition.Normal); err != nil {
			return err
		}
	}
	ext := t.ExtendedPartition()
	if ext == nil {
		return nil
	}
	if err := addMetadata(t, ext.Geometry.Start, ext.Geometry.Start, partition.Logical); err != nil {
		return err
	}
	first := firstLogical(t)
	for _, l := range logicals(t) {
		if !l.IsActive() || l.Num == first {
			continue
		}
		if err := addMetadata(t, l.Geometry.Start-1, l.Geometry.Start-1, partition.Logical); err != nil {
			return err
		}
	}
	return nil
}
