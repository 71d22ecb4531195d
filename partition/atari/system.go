package atari

import (
	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/partition"
)

// fsIDs maps a filesystem to the id of the partition holding it. Entries are tried in
// order; maxSectors bounds the partition length for the entry to apply.
var fsIDs = []struct {
	fs         filesystem.Type
	id         string
	maxSectors int64
}{
	{filesystem.TypeExt2, "LNX", maxDeviceSectors},
	{filesystem.TypeExt3, "LNX", maxDeviceSectors},
	{filesystem.TypeExt4, "LNX", maxDeviceSectors},
	{filesystem.TypeFat16, "GEM", gemMax},
	{filesystem.TypeFat16, "BGM", maxDeviceSectors},
	{filesystem.TypeFat32, "F32", maxDeviceSectors},
	{filesystem.TypeF2FS, "LNX", maxDeviceSectors},
	{filesystem.TypeBtrfs, "LNX", maxDeviceSectors},
	{filesystem.TypeHFS, "MAC", maxDeviceSectors},
	{filesystem.TypeHFSPlus, "MAC", maxDeviceSectors},
	{filesystem.TypeHFSX, "MAC", maxDeviceSectors},
	{filesystem.TypeJFS, "LNX", maxDeviceSectors},
	{filesystem.TypeLinuxSwap, "SWP", maxDeviceSectors},
	{filesystem.TypeReiserFS, "LNX", maxDeviceSectors},
	{filesystem.TypeHPUFS, "LNX", maxDeviceSectors},
	{filesystem.TypeSunUFS, "LNX", maxDeviceSectors},
	{filesystem.TypeXFS, "LNX", maxDeviceSectors},
	{filesystem.TypeNTFS, "RAW", maxDeviceSectors},
}

// idFor returns the partition id for a filesystem in a partition of length sectors.
func idFor(fs filesystem.Type, length int64) string {
	for _, e := range fsIDs {
		if e.fs == fs && length < e.maxSectors {
			return e.id
		}
	}
	return "RAW"
}

// bootFlags maps partition ids to the boot hint set by the boot flag; any other id
// gets flagBootUNK.
var bootFlags = map[string]uint8{
	"GEM": flagBootGEM,
	"BGM": flagBootGEM,
	"UNX": flagBootASV,
	"LNX": flagBootLNX,
}

func (d *Driver) NewPartition(t *partition.Table, typ partition.Type, fs filesystem.Type, start, end int64) (*partition.Partition, error) {
	if err := xgmInICD(t, typ); err != nil {
		return nil, err
	}
	p, err := partition.AllocPartition(t, typ, fs, start, end)
	if err != nil {
		return nil, err
	}
	if p.IsActive() {
		p.Specific = &partState{partID: "RAW", icdID: "RAW"}
	}
	return p, nil
}

func (d *Driver) DuplicatePartition(p *partition.Partition) (*partition.Partition, error) {
	np, err := d.NewPartition(p.Table(), p.Type, p.FS, p.Geometry.Start, p.Geometry.End())
	if err != nil {
		return nil, err
	}
	np.Num = p.Num
	if p.IsActive() {
		ps, err := partStateOf(p)
		if err != nil {
			return nil, err
		}
		np.Specific = ps.Clone()
	}
	return np, nil
}

func (d *Driver) DestroyPartition(p *partition.Partition) {
	p.Specific = nil
}

// xgmInICD rejects an extended partition on a table in ICD format.
func xgmInICD(t *partition.Table, typ partition.Type) error {
	if typ&partition.Extended == 0 {
		return nil
	}
	f, err := currentFormat(t)
	if err != nil {
		return err
	}
	if f == FormatICD {
		return partition.NewError(partition.ErrConfigurationConflict, Name,
			"you can't use an extended XGM partition in ICD mode (more than %d primary partitions, if XGM is the first one it counts for two)", nAHDI)
	}
	return nil
}

// SetSystem tags p with the id for fs. Extended partitions are always XGM.
func (d *Driver) SetSystem(p *partition.Partition, fs filesystem.Type) error {
	ps, err := partStateOf(p)
	if err != nil {
		return err
	}
	p.FS = fs
	if err := xgmInICD(p.Table(), p.Type); err != nil {
		return err
	}
	switch {
	case p.Type&partition.Extended != 0:
		ps.partID, ps.icdID = "XGM", "XGM"
	default:
		ps.partID = idFor(fs, p.Geometry.Length)
		ps.icdID = icdID(ps.partID)
	}
	return nil
}

// SetFlag supports only the boot flag, stored as the boot hint matching the partition id.
func (d *Driver) SetFlag(p *partition.Partition, f partition.Flag, state bool) error {
	if f != partition.FlagBoot {
		return partition.NewError(partition.ErrNotSupported, Name, "the flag %q is not available", f)
	}
	ps, err := partStateOf(p)
	if err != nil {
		return err
	}
	if !state {
		ps.flag = 0
		return nil
	}
	flag, ok := bootFlags[ps.partID]
	if !ok {
		flag = flagBootUNK
	}
	ps.flag = flag
	return nil
}

func (d *Driver) GetFlag(p *partition.Partition, f partition.Flag) bool {
	if f != partition.FlagBoot {
		return false
	}
	ps, err := partStateOf(p)
	if err != nil {
		return false
	}
	return ps.flag != 0
}

func (d *Driver) IsFlagAvailable(_ *partition.Partition, f partition.Flag) bool {
	return f == partition.FlagBoot
}

// Check rejects partitions whose start or length do not fit the 32-bit entry fields.
func (d *Driver) Check(p *partition.Partition) error {
	t := p.Table()
	if p.Geometry.Start > d.MaxStartSector(t) {
		return partition.NewError(partition.ErrCapacityExceeded, Name,
			"partition start sector %d exceeds the maximum of %d", p.Geometry.Start, d.MaxStartSector(t))
	}
	if p.Geometry.Length > d.MaxLength(t) {
		return partition.NewError(partition.ErrCapacityExceeded, Name,
			"partition length of %d sectors exceeds the maximum of %d", p.Geometry.Length, d.MaxLength(t))
	}
	return nil
}

// PartitionID returns the id p is written with in an AHDI slot, e.g. "GEM" or "XGM".
func PartitionID(p *partition.Partition) (string, error) {
	ps, err := partStateOf(p)
	if err != nil {
		return "", err
	}
	return ps.partID, nil
}
