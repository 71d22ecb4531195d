package atari

import (
	"errors"

	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/partition"
)

func readRootSector(dev disk.Device, sector int64) (*rootSector, error) {
	b, err := dev.ReadSectors(sector, 1)
	if err != nil {
		return nil, partition.NewIOError(Name, "reading root sector", err)
	}
	r, err := rootSectorFromBytes(b)
	if err != nil {
		return nil, partition.NewFormatError(Name, "%v", err)
	}
	return r, nil
}

func writeRootSector(dev disk.Device, sector int64, r *rootSector) error {
	if err := dev.WriteSectors(sector, r.toBytes()); err != nil {
		return partition.NewIOError(Name, "writing root sector", err)
	}
	return nil
}

// Probe reports whether dev holds an Atari table. Without a magic number the whole
// layout is checked, the logical chain included. A chain longer than the partition
// limit is reported as ErrCapacityExceeded.
func (d *Driver) Probe(dev disk.Device) (bool, error) {
	if err := canUseDevice(dev); err != nil {
		d.log.Debugf("not probing: %v", err)
		return false, nil
	}
	err := validate(dev)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, partition.ErrFormatInvalid):
		d.log.Debugf("rejected: %v", err)
		return false, nil
	default:
		return false, err
	}
}

// validate checks the root sector and the logical chain of dev, returning an
// ErrFormatInvalid error that says why the layout is not an Atari table.
func validate(dev disk.Device) error {
	r, err := readRootSector(dev, 0)
	if err != nil {
		return err
	}
	hdSize := r.hdSize
	if int64(hdSize) > dev.Length() || hdSize < 2 {
		return partition.NewFormatError(Name, "stored sector count %d does not fit a device of %d sectors", hdSize, dev.Length())
	}
	if (r.bslStart != 0 || r.bslCount != 0) && !startSizeCorrect(r.bslStart, r.bslCount, hdSize) {
		return partition.NewFormatError(Name, "bad sector list at %d (%d sectors) is out of range", r.bslStart, r.bslCount)
	}

	var validCount, signCount, xgmCount, xgmSlot int
	for i := range r.ahdi {
		e := &r.ahdi[i]
		switch {
		case e.valid(hdSize):
			validCount++
			if e.idString() == "XGM" {
				xgmCount++
				xgmSlot = i
			}
		case e.trash(hdSize):
			return partition.NewFormatError(Name, "AHDI entry %d is used but invalid", i)
		}
		if e.isSignature() {
			signCount++
		}
	}
	switch {
	case validCount == 0 && signCount != nAHDI:
		return partition.NewFormatError(Name, "no valid partition and no empty table signature")
	case xgmCount > 1:
		return partition.NewFormatError(Name, "more than one XGM partition")
	case xgmCount == 1 && xgmSlot == 0:
		return partition.NewFormatError(Name, "XGM partition in the first slot")
	}

	if xgmCount == 1 {
		return validateChain(dev, hdSize, r.ahdi[xgmSlot].start, validCount)
	}
	if r.icd[0].valid(hdSize) && r.icd[0].known(knownICDIDs) {
		for i := 1; i < nICD; i++ {
			if r.icd[i].trash(hdSize) {
				return partition.NewFormatError(Name, "ICD entry %d is used but invalid", i)
			}
		}
	}
	return nil
}

// dataSlot returns the first used slot among the first three, or -1.
func dataSlot(r *rootSector) int {
	for i := 0; i < nAHDI-1; i++ {
		if r.ahdi[i].used() {
			return i
		}
	}
	return -1
}

// validateChain walks the auxiliary root sectors of the extended partition at exts.
func validateChain(dev disk.Device, hdSize, exts uint32, total int) error {
	ars := exts
	emptyAllowed := true
	for {
		if int64(ars) >= dev.Length() {
			return partition.NewFormatError(Name, "auxiliary root sector %d is past the end of the device", ars)
		}
		r, err := readRootSector(dev, int64(ars))
		if err != nil {
			return err
		}
		i := dataSlot(r)
		if i == -1 && emptyAllowed {
			return nil
		}
		if i == -1 || !r.ahdi[i].correct(hdSize-ars) || r.ahdi[i].idString() == "XGM" {
			return partition.NewFormatError(Name, "no valid data partition in the auxiliary root sector at %d", ars)
		}
		emptyAllowed = false

		total++
		if total > maxParts {
			return partition.NewError(partition.ErrCapacityExceeded, Name,
				"more than %d partitions detected, the XGM chain probably loops", maxParts)
		}

		next := &r.ahdi[i+1]
		if !next.used() {
			return nil
		}
		if !next.correct(hdSize-exts) || next.idString() != "XGM" {
			return partition.NewFormatError(Name, "bad link to the next auxiliary root sector at %d", ars)
		}
		ars = exts + next.start
	}
}
