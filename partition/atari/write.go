package atari

import (
	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/partition"
)

// bslMarker is written at byte 3 of the first sector of a fresh bad sector list
const bslMarker = 0xA5

// Write persists t: the root sector, the ICD slots when needed, the chain of auxiliary
// root sectors when there is an extended partition, and a fresh bad sector list.
// The bootability of the existing root sector is kept.
func (d *Driver) Write(t *partition.Table) error {
	s, err := stateOf(t)
	if err != nil {
		return err
	}
	if err := d.write(t, s); err != nil {
		s.hasBeenRead = false
		return err
	}
	s.hasBeenRead = true
	return nil
}

// nextPartition returns the first partition numbered pnum or higher, up to last, and
// the number it was found at.
func nextPartition(t *partition.Table, pnum, last int) (*partition.Partition, int) {
	for ; pnum <= last; pnum++ {
		if p := t.Partition(pnum); p != nil {
			return p, pnum
		}
	}
	return nil, pnum
}

func (d *Driver) write(t *partition.Table, s *diskState) error {
	dev := t.Device()
	primCount := t.PrimaryCount()
	lastNum := t.LastPartitionNum()
	ext := t.ExtendedPartition()
	begin := 0
	if xgmBegin(t, nil) {
		begin = 1
	}
	format, err := currentFormat(t)
	if err != nil {
		return err
	}
	s.format = format
	if err := canUseDevice(dev); err != nil {
		return err
	}

	r, err := readRootSector(dev, 0)
	if err != nil {
		return err
	}
	boot := r.bootable()
	r.bslStart = s.bslStart
	r.bslCount = s.bslCount

	hdSize, err := loadFixHDSize(t, s, r)
	if err != nil {
		return err
	}

	appendExt := ext != nil && len(t.LogicalPartitions()) == 0
	putSign := primCount == 0
	pnum := 1
	for i := range r.ahdi {
		var p *partition.Partition
		p, pnum = nextPartition(t, pnum, lastNum)
		if putSign {
			r.ahdi[i].putSignature()
			continue
		}
		if p == nil && i != 0 && appendExt {
			p = ext
			appendExt = false
		}
		if p == nil || (i == 0 && begin == 1) {
			r.ahdi[i].clearUsed()
			continue
		}
		if p.Type&partition.Logical != 0 {
			p = ext
		}
		ps, err := partStateOf(p)
		if err != nil {
			return err
		}
		r.ahdi[i].fill(ps.flag, ps.partID, uint32(p.Geometry.Start), uint32(p.Geometry.Length))
		if p.Type&partition.Extended == 0 {
			pnum++
			continue
		}
		for ; pnum <= lastNum; pnum++ {
			if q := t.Partition(pnum); q != nil && q.Type&partition.Logical == 0 {
				break
			}
		}
	}

	if (ext != nil || s.format == FormatAHDI) && pnum <= lastNum {
		return partition.NewError(partition.ErrInvariantViolation, Name, "there were remaining partitions after filling the main AHDI table")
	}
	if pnum > lastNum && (s.format == FormatICD || ext == nil) {
		s.format = FormatAHDI
	}

	if s.format == FormatAHDI && r.icd[0].valid(hdSize) && r.icd[0].known(knownICDIDs) {
		answer := t.Confirm(partition.Question{
			Severity: partition.SeverityWarning,
			Message: "the main AHDI table has been filled with all partitions but the ICD table is not empty " +
				"so more partitions of unknown size and position will be detected by ICD compatible software, " +
				"do you want to invalidate the ICD table?",
			Options: partition.AnswerYes | partition.AnswerNo | partition.AnswerCancel,
		})
		switch answer {
		case partition.AnswerYes, partition.AnswerUnhandled:
			r.icd[0].clearUsed()
		case partition.AnswerCancel:
			return partition.NewError(partition.ErrCanceled, Name, "stale ICD table kept")
		}
	}

	if !putSign {
		if s.format == FormatICD {
			for i := range r.icd {
				var p *partition.Partition
				p, pnum = nextPartition(t, pnum, lastNum)
				if p == nil {
					r.icd[i].clearUsed()
					continue
				}
				if p.Type&(partition.Extended|partition.Logical) != 0 {
					return partition.NewError(partition.ErrInvariantViolation, Name, "ICD entries can't contain extended or logical partitions")
				}
				ps, err := partStateOf(p)
				if err != nil {
					return err
				}
				r.icd[i].fill(ps.flag, ps.icdID, uint32(p.Geometry.Start), uint32(p.Geometry.Length))
				pnum++
			}
		}
		if s.format == FormatXGM {
			if err := writeLogicals(t); err != nil {
				return err
			}
		}
		if pnum <= lastNum {
			return partition.NewError(partition.ErrInvariantViolation, Name, "there were remaining partitions after filling the tables")
		}
	}

	r.setBoot(boot)
	if err := writeRootSector(dev, 0, r); err != nil {
		return err
	}
	if err := dev.Sync(); err != nil {
		return partition.NewIOError(Name, "sync", err)
	}
	if s.hdxCompat {
		if err := initBSL(t, s); err != nil {
			return err
		}
	}
	if err := dev.Sync(); err != nil {
		return partition.NewIOError(Name, "sync", err)
	}
	return nil
}

// loadFixHDSize returns the sector count to store, replacing a stale one in r unless
// the handler says otherwise. Fresh tables are fixed without asking.
func loadFixHDSize(t *partition.Table, s *diskState, r *rootSector) (uint32, error) {
	length := t.Device().Length()
	if int64(r.hdSize) == length {
		return r.hdSize, nil
	}
	answer := partition.AnswerUnhandled
	if s.hasBeenRead {
		answer = t.Confirm(partition.Question{
			Severity: partition.SeverityWarning,
			Message: "the sector count that is stored in the partition table does not correspond to the size of your device, " +
				"do you want to fix the partition table?",
			Options: partition.AnswerFix | partition.AnswerIgnore | partition.AnswerCancel,
		})
		if answer == partition.AnswerCancel {
			return 0, partition.NewError(partition.ErrCanceled, Name, "stored sector count %d left unfixed", r.hdSize)
		}
	}
	if answer == partition.AnswerUnhandled || answer == partition.AnswerFix {
		r.hdSize = uint32(length)
	}
	return r.hdSize, nil
}

// writeLogicals writes the chain of auxiliary root sectors, one per logical partition
// in number order. Each holds its data partition relative to itself and a link to the
// next one relative to the start of the extended partition.
func writeLogicals(t *partition.Table) error {
	dev := t.Device()
	ext := t.ExtendedPartition()
	exts := ext.Geometry.Start
	ars := exts
	first := firstLogical(t)
	pnum := first

	logical := func(n int) *partition.Partition {
		if n == -1 {
			return nil
		}
		if p := t.Partition(n); p != nil && p.Type&partition.Logical != 0 {
			return p
		}
		return nil
	}

	for {
		cur, next := logical(pnum), logical(pnum+1)
		if pnum != first && cur == nil {
			return partition.NewError(partition.ErrInvariantViolation, Name, "logical partition %d is missing from the chain", pnum)
		}
		if q := t.PartitionBySector(ars); q != nil && q.IsActive() {
			if cur != nil {
				return partition.NewError(partition.ErrConfigurationConflict, Name,
					"no room at sector %d to store the auxiliary root sector of logical partition %d", ars, pnum)
			}
			return partition.NewError(partition.ErrConfigurationConflict, Name, "no room at sector %d to store the auxiliary root sector", ars)
		}

		r, err := readRootSector(dev, ars)
		if err != nil {
			return err
		}
		for i := range r.ahdi {
			r.ahdi[i].clearUsed()
		}
		if cur != nil {
			ps, err := partStateOf(cur)
			if err != nil {
				return err
			}
			r.ahdi[0].fill(ps.flag, ps.partID, uint32(cur.Geometry.Start-ars), uint32(cur.Geometry.Length))
			if next != nil {
				r.ahdi[1].fill(0, "XGM", uint32(next.Geometry.Start-1-exts), uint32(next.Geometry.Length+1))
			}
		}
		r.setBoot(false)
		if err := writeRootSector(dev, ars, r); err != nil {
			return err
		}
		if cur == nil || next == nil {
			return nil
		}
		ars = next.Geometry.Start - 1
		pnum++
	}
}

// initBSL writes an empty bad sector list, as HDX expects to find one.
func initBSL(t *partition.Table, s *diskState) error {
	dev := t.Device()
	for sec := int64(s.bslStart); sec < int64(s.bslStart)+int64(s.bslCount); sec++ {
		b := make([]byte, sectorSize)
		if sec == int64(s.bslStart) {
			b[3] = bslMarker
		}
		if q := t.PartitionBySector(sec); q != nil && q.IsActive() {
			return partition.NewError(partition.ErrConfigurationConflict, Name, "no room at sector %d to store the bad sector list", sec)
		}
		if err := dev.WriteSectors(sec, b); err != nil {
			return partition.NewIOError(Name, "writing bad sector list", err)
		}
	}
	s.hdxCompat = false
	return nil
}

// Clobber clears the root sector from the sector count on, keeping the boot code and
// the ICD slots.
func (d *Driver) Clobber(dev disk.Device) error {
	b, err := dev.ReadSectors(0, 1)
	if err != nil {
		return partition.NewIOError(Name, "reading root sector", err)
	}
	for i := hdSizeOffset; i < sectorSize; i++ {
		b[i] = 0
	}
	if err := dev.WriteSectors(0, b); err != nil {
		return partition.NewIOError(Name, "writing root sector", err)
	}
	return nil
}
