// Package diskfs opens disks and disk images and reads, creates and rewrites their
// partition labels.
//
// It does not mount anything. Labels are read and written by manipulating the bytes on
// the device directly, through the drivers in github.com/diskfs/go-disklabel/partition.
//
// Some examples:
//
// 1. Print the partitions of an Atari disk image.
//
//	d, err := diskfs.Open("/tmp/atari.img", diskfs.WithOpenMode(diskfs.ReadOnly))
//	table, err := diskfs.ReadTable(d)
//	for _, p := range table.Partitions() {
//		fmt.Println(p)
//	}
//
// 2. Create a 64MB image holding an AHDI table with one GEM partition.
//
//	d, err := diskfs.Create("/tmp/atari.img", 64*1024*1024, diskfs.SectorSizeDefault)
//	table, err := diskfs.NewTable(d, atari.Name)
//	p, err := table.NewPartition(partition.Normal, filesystem.TypeFat16, 2, 65535)
//	err = table.AddPartition(p, nil)
//	err = diskfs.CommitTable(d, table)
package diskfs

import (
	"errors"
	"fmt"
	"io"
	"os"

	log "github.com/sirupsen/logrus"

	"github.com/diskfs/go-disklabel/backend"
	"github.com/diskfs/go-disklabel/backend/file"
	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/partition"
	"github.com/diskfs/go-disklabel/partition/atari"
)

// OpenModeOption represents file open modes
type OpenModeOption int

const (
	// ReadOnly open file in read only mode
	ReadOnly OpenModeOption = iota
	// ReadWriteExclusive open file in read-write exclusive mode
	ReadWriteExclusive
)

// OpenModeOption.String()
func (m OpenModeOption) String() string {
	switch m {
	case ReadOnly:
		return "read-only"
	case ReadWriteExclusive:
		return "read-write exclusive"
	default:
		return "unknown"
	}
}

// SectorSize is the logical sector size a disk is addressed with
type SectorSize int

const (
	// SectorSizeDefault asks the kernel for block devices and uses 512 for images
	SectorSizeDefault SectorSize = 0
	SectorSize512     SectorSize = 512
	SectorSize4k      SectorSize = 4096
)

// images carry no sector size of their own
const defaultBlocksize int64 = 512

type openOpts struct {
	mode       OpenModeOption
	sectorSize SectorSize
}

// OpenOpt configures Open and OpenBackend
type OpenOpt func(o *openOpts) error

// WithOpenMode sets the open mode, ReadWriteExclusive by default.
func WithOpenMode(mode OpenModeOption) OpenOpt {
	return func(o *openOpts) error {
		if mode != ReadOnly && mode != ReadWriteExclusive {
			return fmt.Errorf("unsupported file open mode %d", mode)
		}
		o.mode = mode
		return nil
	}
}

// WithSectorSize forces the logical sector size instead of detecting it.
func WithSectorSize(sectorSize SectorSize) OpenOpt {
	return func(o *openOpts) error {
		switch sectorSize {
		case SectorSizeDefault, SectorSize512, SectorSize4k:
		default:
			return fmt.Errorf("unsupported sector size %d", sectorSize)
		}
		o.sectorSize = sectorSize
		return nil
	}
}

func applyOpts(opts []OpenOpt) (*openOpts, error) {
	o := &openOpts{mode: ReadWriteExclusive, sectorSize: SectorSizeDefault}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

func initDisk(b backend.Storage, o *openOpts) (*disk.Disk, error) {
	log.Debug("initDisk(): start")

	var (
		size     int64
		lblksize = defaultBlocksize
		pblksize = defaultBlocksize
	)
	diskType, err := disk.DetermineDeviceType(b)
	if err != nil {
		return nil, err
	}
	switch diskType {
	case disk.DeviceTypeFile:
		log.Debug("initDisk(): regular file")
		size, err = backend.Size(b)
		if err != nil {
			return nil, fmt.Errorf("could not get size of image: %w", err)
		}
		if size <= 0 {
			return nil, errors.New("could not get file size for image")
		}
	case disk.DeviceTypeBlockDevice:
		log.Debug("initDisk(): block device")
		size, err = b.Seek(0, io.SeekEnd)
		if err != nil {
			return nil, fmt.Errorf("error seeking to end of block device: %w", err)
		}
		f, err := b.Sys()
		if err != nil {
			return nil, fmt.Errorf("block device has no file descriptor: %w", err)
		}
		lblksize, pblksize, err = getSectorSizes(f)
		if err != nil {
			return nil, fmt.Errorf("unable to get block sizes for device %s: %w", f.Name(), err)
		}
		log.Debugf("initDisk(): logical block size %d, physical block size %d", lblksize, pblksize)
	}

	if o.sectorSize != SectorSizeDefault {
		lblksize = int64(o.sectorSize)
		if pblksize < lblksize {
			pblksize = lblksize
		}
	}

	return &disk.Disk{
		Backend:           b,
		Type:              diskType,
		Size:              size,
		LogicalBlocksize:  lblksize,
		PhysicalBlocksize: pblksize,
		Writable:          o.mode == ReadWriteExclusive,
	}, nil
}

// Open a Disk from a path to a device, read-write exclusive unless WithOpenMode says
// otherwise. Should pass a path to a block device e.g. /dev/sda or a path to a file
// /tmp/foo.img. The provided device must exist at the time you call Open().
func Open(device string, opts ...OpenOpt) (*disk.Disk, error) {
	o, err := applyOpts(opts)
	if err != nil {
		return nil, err
	}
	b, err := file.OpenFromPath(device, o.mode == ReadOnly)
	if err != nil {
		return nil, err
	}
	d, err := initDisk(b, o)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return d, nil
}

// OpenBackend wraps an already open backend, e.g. an in-memory image.
func OpenBackend(b backend.Storage, opts ...OpenOpt) (*disk.Disk, error) {
	o, err := applyOpts(opts)
	if err != nil {
		return nil, err
	}
	if o.mode == ReadWriteExclusive {
		if _, err := b.Writable(); err != nil {
			return nil, fmt.Errorf("backend cannot be opened for writing: %w", err)
		}
	}
	return initDisk(b, o)
}

// Create a Disk image file of size bytes. The file must not exist at the time you
// call Create().
func Create(device string, size int64, sectorSize SectorSize) (*disk.Disk, error) {
	b, err := file.CreateFromPath(device, size)
	if err != nil {
		return nil, err
	}
	o, err := applyOpts([]OpenOpt{WithSectorSize(sectorSize)})
	if err != nil {
		_ = b.Close()
		_ = os.Remove(device)
		return nil, err
	}
	d, err := initDisk(b, o)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return d, nil
}

// Labels returns a registry of every disk label type this module can read and write.
func Labels() *partition.Registry {
	r, err := partition.NewRegistry(atari.New())
	if err != nil {
		// names are fixed at compile time
		panic(err)
	}
	return r
}

// ReadTable detects the label on d and reads its partitions.
func ReadTable(d *disk.Disk, opts ...partition.Option) (*partition.Table, error) {
	return Labels().Read(d, opts...)
}

// NewTable returns an empty label of type name for d. Nothing is written until
// CommitTable.
func NewTable(d *disk.Disk, name string, opts ...partition.Option) (*partition.Table, error) {
	return Labels().New(d, name, opts...)
}

// CommitTable writes table to d and asks the kernel to re-read it when d is a block device.
func CommitTable(d *disk.Disk, table *partition.Table) error {
	if table.Device() != disk.Device(d) {
		return errors.New("partition table belongs to another disk")
	}
	if err := table.Commit(); err != nil {
		return err
	}
	return d.ReReadPartitionTable()
}
