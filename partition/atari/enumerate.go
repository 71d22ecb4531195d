package atari

import (
	"github.com/diskfs/go-disklabel/partition"
)

// xgmBegin reports whether the first slot must stay empty because the table, with p
// added, starts with a logical partition.
func xgmBegin(t *partition.Table, p *partition.Partition) bool {
	if first := t.Partition(1); first != nil {
		return first.Type&partition.Logical != 0
	}
	return p != nil && p.Num == partition.Unnumbered && p.Type&partition.Logical != 0
}

// computeFormat returns the format needed once p, which may be nil, is in t. Extended
// partitions force XGM, more than four primaries force ICD, and the two cannot be
// combined.
func computeFormat(t *partition.Table, p *partition.Partition) (Format, error) {
	primaries := t.PrimaryCount()
	if xgmBegin(t, p) {
		primaries++
	}
	wantXGM := t.ExtendedPartition() != nil
	if p != nil {
		if p.Num == partition.Unnumbered && p.Type&partition.Logical == 0 {
			primaries++
		}
		wantXGM = wantXGM || p.Type&partition.Extended != 0
	}
	wantICD := primaries > nAHDI

	switch {
	case !wantXGM && !wantICD:
		return FormatAHDI, nil
	case wantXGM && !wantICD:
		return FormatXGM, nil
	case !wantXGM && wantICD:
		return FormatICD, nil
	}
	return 0, partition.NewError(partition.ErrConfigurationConflict, Name,
		"you can't use more than %d primary partitions (ICD mode) if you use an extended XGM partition, if XGM is the first partition it counts for two", nAHDI)
}

// currentFormat is the format of the partitions t holds now.
func currentFormat(t *partition.Table) (Format, error) {
	return computeFormat(t, nil)
}

// Enumerate recomputes the table format and numbers p. The extended partition is
// always 0. New partitions get the lowest free number; numbered ones move down to the
// lowest free number below their own, if any.
func (d *Driver) Enumerate(p *partition.Partition) error {
	t := p.Table()
	s, err := stateOf(t)
	if err != nil {
		return err
	}
	format, err := computeFormat(t, p)
	if err != nil {
		return err
	}
	s.format = format

	if p.Num == 0 {
		return nil
	}
	if p.Num != partition.Unnumbered {
		for n := 1; n < p.Num; n++ {
			if t.Partition(n) == nil {
				p.Num = n
				break
			}
		}
		return nil
	}
	if p.Type&partition.Extended != 0 {
		p.Num = 0
		return nil
	}

	numMax := nAHDI + nICD
	if s.format == FormatXGM {
		numMax = maxParts
	}
	if p.Type&partition.Logical != 0 {
		if err := roomForLogical(t); err != nil {
			return err
		}
	}
	for n := 1; n <= numMax; n++ {
		if t.Partition(n) == nil {
			p.Num = n
			return nil
		}
	}
	return partition.NewError(partition.ErrCapacityExceeded, Name, "unable to allocate a partition number")
}

// roomForLogical moves every primary numbered after the last logical partition up by
// one, so a new logical partition can take the number after the last logical one.
func roomForLogical(t *partition.Table) error {
	last := t.LastPartitionNum()
	if last >= maxParts {
		return partition.NewError(partition.ErrCapacityExceeded, Name, "at most %d partitions are allowed", maxParts)
	}
	lastLogical := 0
	for n := 1; n <= last; n++ {
		if p := t.Partition(n); p != nil && p.Type&partition.Logical != 0 {
			lastLogical = n
		}
	}
	if lastLogical == 0 {
		return nil
	}
	for n := last; n > lastLogical; n-- {
		p := t.Partition(n)
		if p != nil && p.Type&(partition.Logical|partition.Extended) == 0 && p.Num > 0 {
			p.Num++
		}
	}
	return nil
}
