package partition

import (
	"fmt"
	"testing"

	"github.com/diskfs/go-disklabel/backend/memory"
	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/geometry"
)

// fakeDriver is a minimal label: sector 0 holds the label, numbers start at 1 and at most
// maxPrimary non-logical partitions are allowed.
type fakeDriver struct {
	name       string
	maxPrimary int
	// found is what Probe reports
	found   bool
	clobber int
	writes  int
}

type fakeDisk struct {
	enumerations int
}

func (fakeDisk) Label() string     { return "fake" }
func (d *fakeDisk) Clone() Payload { c := *d; return &c }

type fakePart struct {
	boot   bool
	reject bool
}

func (fakePart) Label() string     { return "fake" }
func (p *fakePart) Clone() Payload { c := *p; return &c }

var _ Driver = (*fakeDriver)(nil)

func (d *fakeDriver) Name() string      { return d.name }
func (d *fakeDriver) Features() Feature { return FeatureExtended }

func (d *fakeDriver) Probe(disk.Device) (bool, error) { return d.found, nil }
func (d *fakeDriver) Read(t *Table) error             { return t.DeleteAll() }

func (d *fakeDriver) Write(*Table) error {
	d.writes++
	return nil
}

func (d *fakeDriver) Clobber(disk.Device) error {
	d.clobber++
	d.found = false
	return nil
}

func (d *fakeDriver) Alloc(dev disk.Device) (*Table, error) {
	return AllocTable(dev, d, &fakeDisk{}), nil
}

func (d *fakeDriver) Duplicate(t *Table) (*Table, error) {
	return AllocTable(t.Device(), d, t.Specific.Clone()), nil
}

func (d *fakeDriver) NewPartition(t *Table, typ Type, fs filesystem.Type, start, end int64) (*Partition, error) {
	p, err := AllocPartition(t, typ, fs, start, end)
	if err != nil {
		return nil, err
	}
	if p.IsActive() {
		p.Specific = &fakePart{}
	}
	return p, nil
}

func (d *fakeDriver) DuplicatePartition(p *Partition) (*Partition, error) {
	np, err := d.NewPartition(p.Table(), p.Type, p.FS, p.Geometry.Start, p.Geometry.End())
	if err != nil {
		return nil, err
	}
	np.Num = p.Num
	if p.Specific != nil {
		np.Specific = p.Specific.Clone()
	}
	return np, nil
}

func (d *fakeDriver) DestroyPartition(*Partition) {}

func (d *fakeDriver) SetSystem(p *Partition, fs filesystem.Type) error {
	p.FS = fs
	return nil
}

func (d *fakeDriver) SetFlag(p *Partition, f Flag, state bool) error {
	p.Specific.(*fakePart).boot = state
	return nil
}

func (d *fakeDriver) GetFlag(p *Partition, f Flag) bool {
	return p.Specific.(*fakePart).boot
}

func (d *fakeDriver) IsFlagAvailable(p *Partition, f Flag) bool {
	return f == FlagBoot && p.Type&Extended == 0
}

// Align keeps partitions off the label sector.
func (d *fakeDriver) Align(p *Partition, c *geometry.Constraint) error {
	dev := p.Table().Device()
	usable := geometry.FromMax(&geometry.Geometry{Dev: dev, Start: 1, Length: dev.Length() - 1})
	return p.AttemptAlign(geometry.Intersect(c, usable))
}

func (d *fakeDriver) Enumerate(p *Partition) error {
	p.Table().Specific.(*fakeDisk).enumerations++
	if p.Num != Unnumbered {
		return nil
	}
	if p.Type == Extended {
		p.Num = 0
		return nil
	}
	for n := 1; n <= d.MaxSupportedCount(p.Table()); n++ {
		if p.Table().Partition(n) == nil {
			p.Num = n
			return nil
		}
	}
	return NewError(ErrCapacityExceeded, d.name, "no free partition number")
}

func (d *fakeDriver) Check(p *Partition) error {
	if p.Specific.(*fakePart).reject {
		return fmt.Errorf("rejected")
	}
	return nil
}

func (d *fakeDriver) AllocMetadata(t *Table) error {
	p, err := AllocPartition(t, Metadata, filesystem.TypeNone, 0, 0)
	if err != nil {
		return err
	}
	return t.AddPartition(p, geometry.Exact(&p.Geometry))
}

func (d *fakeDriver) MaxPrimaryCount(*Table) int    { return d.maxPrimary }
func (d *fakeDriver) MaxSupportedCount(*Table) int  { return 16 }
func (d *fakeDriver) MaxStartSector(*Table) int64   { return 1<<32 - 1 }
func (d *fakeDriver) MaxLength(*Table) int64        { return 1<<32 - 1 }

// newDevice returns a writable in-memory device of the given number of 512-byte sectors.
func newDevice(t *testing.T, sectors int64) *disk.Disk {
	t.Helper()
	s, err := memory.New(sectors * 512)
	if err != nil {
		t.Fatalf("unable to create memory backend: %v", err)
	}
	return &disk.Disk{
		Backend:           s,
		Type:              disk.DeviceTypeFile,
		Size:              sectors * 512,
		LogicalBlocksize:  512,
		PhysicalBlocksize: 512,
		Writable:          true,
	}
}

func newFakeTable(t *testing.T, sectors int64) (*Table, *fakeDriver) {
	t.Helper()
	d := &fakeDriver{name: "fake", maxPrimary: 4}
	r, err := NewRegistry(d)
	if err != nil {
		t.Fatalf("unable to create registry: %v", err)
	}
	table, err := r.New(newDevice(t, sectors), "fake", WithProber(nil))
	if err != nil {
		t.Fatalf("unable to create table: %v", err)
	}
	return table, d
}

func addNew(t *testing.T, table *Table, typ Type, start, end int64) *Partition {
	t.Helper()
	p, err := table.NewPartition(typ, filesystem.TypeNone, start, end)
	if err != nil {
		t.Fatalf("unable to create partition: %v", err)
	}
	if err := table.AddPartition(p, nil); err != nil {
		t.Fatalf("unable to add partition %d-%d: %v", start, end, err)
	}
	return p
}
