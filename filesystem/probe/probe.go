// Package probe runs an ordered chain of filesystem probers over a device or region.
package probe

import (
	"errors"

	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/filesystem/ext4"
	"github.com/diskfs/go-disklabel/filesystem/f2fs"
	"github.com/diskfs/go-disklabel/filesystem/fat32"
	"github.com/diskfs/go-disklabel/filesystem/magic"
	"github.com/diskfs/go-disklabel/filesystem/udf"
)

// Chain tries each prober in order.
type Chain []filesystem.Prober

// Default returns every known prober. UDF precedes ISO9660 because bridge discs carry
// both descriptors; FAT comes last because its boot sector checks are the loosest.
func Default() Chain {
	c := Chain{
		udf.Prober{},
		f2fs.Prober{},
		ext4.Prober{},
		&magic.Prober{Label: "linux-swap", Type: filesystem.TypeLinuxSwap, Magics: []magic.Magic{
			{Offset: 4096 - 10, Value: []byte("SWAPSPACE2")},
			{Offset: 4096 - 10, Value: []byte("SWAP-SPACE")},
		}},
	}
	c = append(c, magic.Simple()...)
	return append(c, fat32.Prober{})
}

// Detect returns the result of the first prober that recognizes dev, or
// filesystem.ErrNotDetected. I/O errors stop the chain.
func (c Chain) Detect(dev disk.Device) (*filesystem.Result, error) {
	for _, p := range c {
		r, err := p.Probe(dev)
		if err == nil {
			return r, nil
		}
		if !errors.Is(err, filesystem.ErrNotDetected) {
			return nil, err
		}
	}
	return nil, filesystem.ErrNotDetected
}

// Names lists the probers in the order they are tried.
func (c Chain) Names() []string {
	names := make([]string, 0, len(c))
	for _, p := range c {
		names = append(names, p.Name())
	}
	return names
}
