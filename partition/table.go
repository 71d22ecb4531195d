package partition

import (
	"errors"

	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/filesystem/probe"
	"github.com/diskfs/go-disklabel/geometry"
	"github.com/sirupsen/logrus"
)

// FilesystemProber identifies the filesystem inside a partition.
type FilesystemProber interface {
	Detect(dev disk.Device) (*filesystem.Result, error)
}

// Table is the in-memory partition table of one device: the driver that owns its format,
// the driver's state, and the partitions ordered by start sector, logical partitions
// following the extended partition that contains them.
//
// A Table is not safe for concurrent use, and exclusive access to the device between
// Read and Commit is the caller's responsibility.
type Table struct {
	// Specific is the driver's state for this table
	Specific Payload

	dev          disk.Device
	driver       Driver
	registry     *Registry
	parts        []*Partition
	updateMode   int
	needsClobber bool
	log          *logrus.Entry
	handler      Handler
	prober       FilesystemProber
}

// Option configures a Table.
type Option func(*Table)

// WithLogger sets the logger; entries get a "label" field.
func WithLogger(l *logrus.Entry) Option {
	return func(t *Table) {
		t.log = l.WithField("label", t.driver.Name())
	}
}

// WithHandler sets who answers confirmation questions.
func WithHandler(h Handler) Option {
	return func(t *Table) {
		t.handler = h
	}
}

// WithProber sets the filesystem prober used to tag partitions; nil disables probing.
func WithProber(p FilesystemProber) Option {
	return func(t *Table) {
		t.prober = p
	}
}

// AllocTable returns an empty table for drivers to return from Alloc and Duplicate.
func AllocTable(dev disk.Device, d Driver, specific Payload) *Table {
	return &Table{
		Specific: specific,
		dev:      dev,
		driver:   d,
		log:      logrus.WithField("label", d.Name()),
		handler:  unhandled{},
		prober:   probe.Default(),
	}
}

func (t *Table) Device() disk.Device {
	return t.dev
}

func (t *Table) Driver() Driver {
	return t.driver
}

// Type returns the label type name.
func (t *Table) Type() string {
	return t.driver.Name()
}

func (t *Table) Logger() *logrus.Entry {
	return t.log
}

// Confirm asks the table's handler q. An answer outside q.Options counts as unhandled.
func (t *Table) Confirm(q Question) Answer {
	a := t.handler.Confirm(q)
	if a != AnswerUnhandled && (a&q.Options != a || a&(a-1) != 0) {
		t.log.WithField("answer", a).Warn("ignoring answer not offered by the question")
		a = AnswerUnhandled
	}
	t.log.WithFields(logrus.Fields{
		"severity": q.Severity,
		"options":  q.Options,
		"answer":   a,
	}).Info(q.Message)
	return a
}

// ProbeFilesystem returns the filesystem found in g, or filesystem.TypeNone.
func (t *Table) ProbeFilesystem(g *geometry.Geometry) filesystem.Type {
	if t.prober == nil {
		return filesystem.TypeNone
	}
	r, err := t.prober.Detect(g.Region())
	if err != nil {
		if !errors.Is(err, filesystem.ErrNotDetected) {
			t.log.WithError(err).WithField("geometry", g.String()).Debug("filesystem probe failed")
		}
		return filesystem.TypeNone
	}
	return r.Type
}

// Partitions returns every partition, metadata included, in table order.
func (t *Table) Partitions() []*Partition {
	return append([]*Partition(nil), t.parts...)
}

// Partition returns the active partition numbered num, or nil.
func (t *Table) Partition(num int) *Partition {
	for _, p := range t.parts {
		if p.IsActive() && p.Num == num {
			return p
		}
	}
	return nil
}

// PartitionBySector returns the innermost non-extended partition containing sector, or nil.
func (t *Table) PartitionBySector(sector int64) *Partition {
	for _, p := range t.parts {
		if p.Type != Extended && p.Geometry.TestSectorInside(sector) {
			return p
		}
	}
	return nil
}

// ExtendedPartition returns the extended partition, or nil.
func (t *Table) ExtendedPartition() *Partition {
	for _, p := range t.parts {
		if p.Type == Extended {
			return p
		}
	}
	return nil
}

// LogicalPartitions returns the active logical partitions in table order.
func (t *Table) LogicalPartitions() []*Partition {
	var logs []*Partition
	for _, p := range t.parts {
		if p.IsActive() && p.Type&Logical != 0 {
			logs = append(logs, p)
		}
	}
	return logs
}

// PrimaryCount counts active partitions that are not logical, the extended one included.
func (t *Table) PrimaryCount() int {
	count := 0
	for _, p := range t.parts {
		if p.IsActive() && p.Type&Logical == 0 {
			count++
		}
	}
	return count
}

// LastPartitionNum returns the highest number in use, or 0 when there is none.
func (t *Table) LastPartitionNum() int {
	last := 0
	for _, p := range t.parts {
		if p.IsActive() && p.Num > last {
			last = p.Num
		}
	}
	return last
}

func (t *Table) MaxPrimaryCount() int {
	return t.driver.MaxPrimaryCount(t)
}

func (t *Table) MaxSupportedCount() int {
	return t.driver.MaxSupportedCount(t)
}

// NewPartition creates a partition bound to t but not yet added to it.
func (t *Table) NewPartition(typ Type, fs filesystem.Type, start, end int64) (*Partition, error) {
	if typ&(Extended|Logical) != 0 && !t.driver.Features().Has(FeatureExtended) {
		return nil, NewError(ErrNotSupported, t.Type(), "logical and extended partitions are not supported")
	}
	p, err := t.driver.NewPartition(t, typ, fs, start, end)
	if err != nil {
		return nil, err
	}
	if fs != filesystem.TypeNone || typ&Extended != 0 {
		if err := t.driver.SetSystem(p, fs); err != nil {
			t.driver.DestroyPartition(p)
			return nil, err
		}
	}
	return p, nil
}

func (t *Table) SetSystem(p *Partition, fs filesystem.Type) error {
	return t.driver.SetSystem(p, fs)
}

func (t *Table) SetFlag(p *Partition, f Flag, state bool) error {
	if !t.driver.IsFlagAvailable(p, f) {
		return NewError(ErrNotSupported, t.Type(), "the flag %q is not available", f)
	}
	return t.driver.SetFlag(p, f, state)
}

func (t *Table) GetFlag(p *Partition, f Flag) bool {
	if !t.driver.IsFlagAvailable(p, f) {
		return false
	}
	return t.driver.GetFlag(p, f)
}

func (t *Table) IsFlagAvailable(p *Partition, f Flag) bool {
	return t.driver.IsFlagAvailable(p, f)
}

// Duplicate returns an independent copy of t for trial edits.
func (t *Table) Duplicate() (*Table, error) {
	nt, err := t.driver.Duplicate(t)
	if err != nil {
		return nil, err
	}
	nt.registry = t.registry
	nt.log = t.log
	nt.handler = t.handler
	nt.prober = t.prober

	nt.pushUpdateMode()
	defer nt.popUpdateMode()
	for _, p := range t.parts {
		if !p.IsActive() {
			continue
		}
		np, err := t.driver.DuplicatePartition(p)
		if err != nil {
			return nil, err
		}
		np.table = nt
		if err := nt.AddPartition(np, geometry.Exact(&np.Geometry)); err != nil {
			return nil, err
		}
	}
	nt.needsClobber = t.needsClobber
	return nt, nil
}

// Commit writes t to its device. A fresh table first clobbers any other label found there.
func (t *Table) Commit() error {
	if t.dev.ReadOnly() {
		return NewIOError(t.Type(), "commit", disk.ErrReadOnly)
	}
	if t.needsClobber && t.registry != nil {
		if err := t.registry.clobberOthers(t.dev, t.Type()); err != nil {
			return err
		}
	}
	t.needsClobber = false
	return t.driver.Write(t)
}

// Clobber destroys t's label on the device.
func (t *Table) Clobber() error {
	return t.driver.Clobber(t.dev)
}
