package partition

import (
	"fmt"
	"sort"

	"github.com/diskfs/go-disklabel/disk"
)

// Registry resolves label drivers by name and by probing.
type Registry struct {
	drivers []Driver
}

// NewRegistry returns a registry holding drivers, probed in the given order.
func NewRegistry(drivers ...Driver) (*Registry, error) {
	r := &Registry{}
	for _, d := range drivers {
		if err := r.Register(d); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds d; names must be unique.
func (r *Registry) Register(d Driver) error {
	if d == nil {
		return fmt.Errorf("cannot register nil driver")
	}
	if r.Get(d.Name()) != nil {
		return fmt.Errorf("disk label %q already registered", d.Name())
	}
	r.drivers = append(r.drivers, d)
	return nil
}

// Get returns the driver registered as name, or nil.
func (r *Registry) Get(name string) Driver {
	for _, d := range r.drivers {
		if d.Name() == name {
			return d
		}
	}
	return nil
}

// Names returns the registered label names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.drivers))
	for _, d := range r.drivers {
		names = append(names, d.Name())
	}
	sort.Strings(names)
	return names
}

// Probe returns the first driver whose Probe accepts dev.
func (r *Registry) Probe(dev disk.Device) (Driver, error) {
	for _, d := range r.drivers {
		ok, err := d.Probe(dev)
		if err != nil {
			return nil, err
		}
		if ok {
			return d, nil
		}
	}
	return nil, NewFormatError("", "unrecognised disk label")
}

// New returns an empty table of the named label type for dev. Nothing is written
// until Commit, which also clobbers any other label found on the device.
func (r *Registry) New(dev disk.Device, name string, opts ...Option) (*Table, error) {
	d := r.Get(name)
	if d == nil {
		return nil, NewError(ErrNotSupported, name, "unknown disk label type")
	}
	t, err := d.Alloc(dev)
	if err != nil {
		return nil, err
	}
	t.registry = r
	for _, opt := range opts {
		opt(t)
	}
	t.pushUpdateMode()
	t.popUpdateMode()
	t.needsClobber = true
	return t, nil
}

// Read probes dev and reads its partition table.
func (r *Registry) Read(dev disk.Device, opts ...Option) (*Table, error) {
	d, err := r.Probe(dev)
	if err != nil {
		return nil, err
	}
	t, err := d.Alloc(dev)
	if err != nil {
		return nil, err
	}
	t.registry = r
	for _, opt := range opts {
		opt(t)
	}
	t.pushUpdateMode()
	err = d.Read(t)
	t.popUpdateMode()
	if err != nil {
		return nil, err
	}
	t.needsClobber = false
	return t, nil
}

// clobberOthers destroys every label except keep found on dev.
func (r *Registry) clobberOthers(dev disk.Device, keep string) error {
	for _, d := range r.drivers {
		if d.Name() == keep {
			continue
		}
		ok, err := d.Probe(dev)
		if err != nil {
			return err
		}
		if !ok {
			continue
		}
		if err := d.Clobber(dev); err != nil {
			return fmt.Errorf("could not clobber %s label: %w", d.Name(), err)
		}
	}
	return nil
}
