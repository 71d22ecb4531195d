package atari

import (
	"errors"

	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/geometry"
	"github.com/diskfs/go-disklabel/partition"
)

// Read replaces the partitions of t with those on its device. When the device does not
// hold a valid table the handler is asked whether to parse it anyway; whatever cannot
// be parsed then fails the read.
func (d *Driver) Read(t *partition.Table) error {
	s, err := stateOf(t)
	if err != nil {
		return err
	}
	s.reset()
	if err := t.DeleteAll(); err != nil {
		return err
	}

	dev := t.Device()
	if err := validate(dev); err != nil {
		if !errors.Is(err, partition.ErrFormatInvalid) {
			return err
		}
		answer := t.Confirm(partition.Question{
			Severity: partition.SeverityError,
			Message:  "there doesn't seem to be an Atari partition table on this disk, or it is corrupted: " + err.Error(),
			Options:  partition.AnswerIgnore | partition.AnswerCancel,
		})
		if answer != partition.AnswerIgnore {
			return err
		}
		t.Logger().WithError(err).Warn("parsing an invalid partition table")
	}

	if err := d.read(t, s); err != nil {
		s.reset()
		_ = t.DeleteAll()
		return err
	}
	s.hasBeenRead = true
	return nil
}

func (d *Driver) read(t *partition.Table, s *diskState) error {
	r, err := readRootSector(t.Device(), 0)
	if err != nil {
		return err
	}
	hdSize := r.hdSize
	s.bslStart = r.bslStart
	s.bslCount = r.bslCount
	s.hdxCompat = false

	pnum, pcount := 1, 0
	xgm := false
	for i := range r.ahdi {
		e := &r.ahdi[i]
		if !e.used() {
			continue
		}
		pcount++
		if e.idString() == "XGM" {
			s.format = FormatXGM
			xgm = true
			if err := d.addRaw(t, partition.Extended, 0, 0, e); err != nil {
				return err
			}
			if err := d.readLogicals(t, int64(e.start), &pnum); err != nil {
				return err
			}
			continue
		}
		if err := d.addRaw(t, partition.Normal, 0, pnum, e); err != nil {
			return err
		}
		pnum++
	}

	if xgm || pcount == 0 || !r.icd[0].valid(hdSize) || !r.icd[0].known(knownICDIDs) {
		return nil
	}
	for i := range r.icd {
		e := &r.icd[i]
		if !e.known(knownICDIDs) || !e.used() {
			continue
		}
		s.format = FormatICD
		if err := d.addRaw(t, partition.Normal, 0, pnum, e); err != nil {
			return err
		}
		pnum++
	}
	return nil
}

// readLogicals follows the chain of auxiliary root sectors starting at exts, the first
// sector of the extended partition. Data entries are relative to their own sector,
// links to the next sector are relative to exts.
func (d *Driver) readLogicals(t *partition.Table, exts int64, pnum *int) error {
	ars := exts
	emptyAllowed := true
	for hops := 0; ; hops++ {
		if hops >= maxParts {
			return partition.NewError(partition.ErrCapacityExceeded, Name,
				"more than %d auxiliary root sectors, the XGM chain probably loops", maxParts)
		}
		r, err := readRootSector(t.Device(), ars)
		if err != nil {
			return err
		}
		i := dataSlot(r)
		if i == -1 && emptyAllowed {
			return nil
		}
		if i == -1 || r.ahdi[i].idString() == "XGM" {
			return partition.NewFormatError(Name, "no data partition found in the auxiliary root sector at %d", ars)
		}
		emptyAllowed = false

		if err := d.addRaw(t, partition.Logical, ars, *pnum, &r.ahdi[i]); err != nil {
			return err
		}
		*pnum++

		next := &r.ahdi[i+1]
		if !next.used() {
			return nil
		}
		if next.idString() != "XGM" {
			return partition.NewFormatError(Name, "the entry of the next auxiliary root sector is not of type XGM in the one at %d", ars)
		}
		ars = exts + int64(next.start)
	}
}

// addRaw adds the partition described by e, its start relative to offset, exactly
// where it is and checks that enumeration gave it the number num.
func (d *Driver) addRaw(t *partition.Table, typ partition.Type, offset int64, num int, e *rawEntry) error {
	start := offset + int64(e.start)
	end := start + int64(e.size) - 1
	p, err := d.NewPartition(t, typ, filesystem.TypeNone, start, end)
	if err != nil {
		return err
	}
	ps, err := partStateOf(p)
	if err != nil {
		return err
	}
	ps.setRaw(e.idString(), e.flag)

	if err := t.AddPartition(p, geometry.Exact(&p.Geometry)); err != nil {
		d.DestroyPartition(p)
		return err
	}
	if p.Num != num {
		return partition.NewError(partition.ErrInvariantViolation, Name, "partition at %d was numbered %d instead of %d", start, p.Num, num)
	}
	return nil
}
