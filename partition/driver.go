package partition

import (
	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/geometry"
)

// Feature is a capability a label type may have.
type Feature int

const (
	// FeatureExtended allows an extended partition holding logical partitions
	FeatureExtended Feature = 1 << iota
	// FeaturePartitionName allows partitions to be named
	FeaturePartitionName
)

// Has reports whether all of want are set.
func (f Feature) Has(want Feature) bool {
	return f&want == want
}

// Payload is driver-specific state attached to a Table or a Partition. A driver
// type-asserts the payloads it created and rejects any other.
type Payload interface {
	// Label is the name of the driver that created the payload
	Label() string
	Clone() Payload
}

// Driver implements one on-disk partition label format. A Driver is stateless and may
// be shared by any number of tables; all state lives in Table and Partition payloads.
type Driver interface {
	Name() string
	Features() Feature

	// Probe reports whether dev carries this label. It must validate the whole structure
	// when the format has no magic number. Errors are I/O failures or fatal structural
	// problems, never a plain mismatch.
	Probe(dev disk.Device) (bool, error)
	// Read replaces the partitions of t with those on its device.
	Read(t *Table) error
	// Write persists t to its device.
	Write(t *Table) error
	// Clobber destroys the label on dev so it no longer probes.
	Clobber(dev disk.Device) error
	// Alloc returns a new empty table for dev, created with AllocTable.
	Alloc(dev disk.Device) (*Table, error)
	// Duplicate returns an empty table with a copy of t's driver state.
	Duplicate(t *Table) (*Table, error)

	// NewPartition creates an unnumbered partition bound to t, created with AllocPartition.
	NewPartition(t *Table, typ Type, fs filesystem.Type, start, end int64) (*Partition, error)
	DuplicatePartition(p *Partition) (*Partition, error)
	DestroyPartition(p *Partition)
	SetSystem(p *Partition, fs filesystem.Type) error
	SetFlag(p *Partition, f Flag, state bool) error
	GetFlag(p *Partition, f Flag) bool
	IsFlagAvailable(p *Partition, f Flag) bool

	// Align moves p to the solution of c and the format's own placement rules nearest to
	// its current geometry.
	Align(p *Partition, c *geometry.Constraint) error
	// Enumerate assigns p a number, or validates the one it has.
	Enumerate(p *Partition) error
	// Check validates p against format limits such as field widths.
	Check(p *Partition) error
	// AllocMetadata adds the metadata partitions describing the label's own sectors.
	AllocMetadata(t *Table) error

	MaxPrimaryCount(t *Table) int
	MaxSupportedCount(t *Table) int
	// MaxStartSector and MaxLength bound the fields of a partition entry, in sectors.
	MaxStartSector(t *Table) int64
	MaxLength(t *Table) int64
}
