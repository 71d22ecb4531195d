// Package atari implements the Atari ST hard disk partition table in its three
// flavours: plain AHDI with four primary slots, ICD with eight more primary slots in
// the root sector, and AHDI 3 XGM with a chain of auxiliary root sectors holding
// logical partitions.
//
// The format carries no magic number, so Probe parses the whole layout, chain
// included, before claiming a device.
package atari

import (
	"fmt"

	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/partition"
	"github.com/sirupsen/logrus"
)

// Name is the label type name.
const Name = "atari"

const (
	sectorSize = 512

	bootableChecksum    uint16 = 0x1234
	nonBootableChecksum uint16 = 0x4321

	// gemMax is the largest partition, in sectors, still tagged GEM rather than BGM
	gemMax = 32 * 1024 * 1024 / sectorSize

	flagUsed    uint8 = 0x01
	flagBootGEM uint8 = 0x80
	flagBootASV uint8 = 0x40
	flagBootBSD uint8 = 0x20
	flagBootLNX uint8 = 0x10
	flagBootUNK uint8 = 0x08

	nAHDI = 4
	nICD  = 8

	// maxParts bounds the partitions on a disk, and so the length of the logical chain
	maxParts = 64

	maxDeviceSectors = 1<<31 - 1
	maxField         = 1<<32 - 1
)

// signature fills the id, start and size of the four AHDI slots of an empty table
// written by this package, so that it can be recognised again.
var signature = []byte("PARTEDATARI")

// forbiddenChecksums are checksum values a non-bootable root sector must not carry,
// the MS-DOS boot signature among them.
var forbiddenChecksums = []uint16{0x55AA}

// knownICDIDs are the ids other software accepts in ICD slots; any other id is written
// there as RAW.
var knownICDIDs = []string{"BGM", "GEM", "LNX", "SWP", "RAW"}

// Format is the flavour of the table. It always follows from the layout.
type Format int

const (
	// FormatAHDI uses the four root slots only
	FormatAHDI Format = iota
	// FormatXGM has an extended partition; ICD slots are unusable
	FormatXGM
	// FormatICD has more than four primaries; no extended partition is allowed
	FormatICD
)

func (f Format) String() string {
	switch f {
	case FormatAHDI:
		return "AHDI"
	case FormatXGM:
		return "XGM"
	case FormatICD:
		return "ICD"
	default:
		return fmt.Sprintf("Format(%d)", int(f))
	}
}

// diskState is the Atari payload of a partition.Table.
type diskState struct {
	format Format
	// hasBeenRead is set once the table matches the device, after a read or a write
	hasBeenRead bool
	bslStart    uint32
	bslCount    uint32
	// hdxCompat makes the next write initialise the bad sector list
	hdxCompat bool
}

func (*diskState) Label() string { return Name }

func (s *diskState) Clone() partition.Payload {
	c := *s
	return &c
}

// reset puts the state of a fresh table: AHDI, a one-sector bad sector list at sector 1.
func (s *diskState) reset() {
	s.format = FormatAHDI
	s.hasBeenRead = false
	s.bslStart = 1
	s.bslCount = 1
	s.hdxCompat = true
}

// partState is the Atari payload of an active partition.
type partState struct {
	partID string
	// icdID is the id used when the partition goes into an ICD slot
	icdID string
	// flag holds the boot hint bits, never flagUsed
	flag uint8
}

func (*partState) Label() string { return Name }

func (s *partState) Clone() partition.Payload {
	c := *s
	return &c
}

// setRaw takes id and flag as found in a slot.
func (s *partState) setRaw(id string, flag uint8) {
	s.flag = flag &^ flagUsed
	s.partID = id
	s.icdID = icdID(id)
}

func icdID(id string) string {
	if knownID(id, knownICDIDs) {
		return id
	}
	return "RAW"
}

func knownID(id string, list []string) bool {
	for _, known := range list {
		if id == known {
			return true
		}
	}
	return false
}

// Driver is the Atari label driver. Its only state is the logger; tables carry the
// rest. See partition.Driver.
type Driver struct {
	log *logrus.Entry
}

var _ partition.Driver = (*Driver)(nil)

// Option configures a Driver.
type Option func(*Driver)

// WithLogger sets the logger used when probing and inherited by the tables the driver
// allocates.
func WithLogger(l *logrus.Entry) Option {
	return func(d *Driver) {
		d.log = l.WithField("label", Name)
	}
}

// New returns the Atari driver.
func New(opts ...Option) *Driver {
	d := &Driver{log: logrus.WithField("label", Name)}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (d *Driver) allocTable(dev disk.Device, s *diskState) *partition.Table {
	t := partition.AllocTable(dev, d, s)
	partition.WithLogger(d.log)(t)
	return t
}

func (d *Driver) Name() string {
	return Name
}

func (d *Driver) Features() partition.Feature {
	return partition.FeatureExtended
}

func stateOf(t *partition.Table) (*diskState, error) {
	s, ok := t.Specific.(*diskState)
	if !ok {
		return nil, partition.NewError(partition.ErrInvariantViolation, Name, "table payload is %T, not an Atari table", t.Specific)
	}
	return s, nil
}

func partStateOf(p *partition.Partition) (*partState, error) {
	s, ok := p.Specific.(*partState)
	if !ok {
		return nil, partition.NewError(partition.ErrInvariantViolation, Name, "partition payload is %T, not an Atari partition", p.Specific)
	}
	return s, nil
}

// canUseDevice rejects devices the format cannot describe.
func canUseDevice(dev disk.Device) error {
	if dev.SectorSize() != sectorSize {
		return partition.NewError(partition.ErrNotSupported, Name,
			"can't use Atari partition tables on disks with a sector size not equal to %d bytes", sectorSize)
	}
	if dev.Length() > maxDeviceSectors {
		return partition.NewError(partition.ErrNotSupported, Name,
			"can't use Atari partition tables on disks with more than %d sectors", maxDeviceSectors)
	}
	return nil
}

// Alloc returns an empty AHDI table with a one-sector bad sector list at sector 1.
func (d *Driver) Alloc(dev disk.Device) (*partition.Table, error) {
	if err := canUseDevice(dev); err != nil {
		return nil, err
	}
	s := &diskState{}
	s.reset()
	return d.allocTable(dev, s), nil
}

func (d *Driver) Duplicate(t *partition.Table) (*partition.Table, error) {
	s, err := stateOf(t)
	if err != nil {
		return nil, err
	}
	return d.allocTable(t.Device(), s.Clone().(*diskState)), nil
}

func (d *Driver) MaxPrimaryCount(t *partition.Table) int {
	if f, err := currentFormat(t); err != nil || f == FormatXGM {
		return nAHDI
	}
	return nAHDI + nICD
}

func (d *Driver) MaxSupportedCount(t *partition.Table) int {
	return d.MaxPrimaryCount(t)
}

func (d *Driver) MaxStartSector(*partition.Table) int64 {
	return maxField
}

func (d *Driver) MaxLength(*partition.Table) int64 {
	return maxField
}

// FormatOf returns the flavour t would be written in, derived from its partitions.
func FormatOf(t *partition.Table) (Format, error) {
	if _, err := stateOf(t); err != nil {
		return 0, err
	}
	return currentFormat(t)
}
