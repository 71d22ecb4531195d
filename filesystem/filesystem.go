// Package filesystem provides the types shared by filesystem and volume signature probes.
// All interesting implementations are in subpackages, e.g. github.com/diskfs/go-disklabel/filesystem/udf
package filesystem

import (
	"errors"
	"fmt"
	"sort"

	"github.com/diskfs/go-disklabel/disk"
	"github.com/google/uuid"
)

var (
	// ErrNotDetected means the probed region does not carry the prober's signature.
	ErrNotDetected = errors.New("filesystem signature not detected")
	// ErrUnknownType is returned by TypeFromName for names with no registered type.
	ErrUnknownType = errors.New("unknown filesystem type")
)

// Type is the name of a filesystem or volume format. The zero value means none.
type Type string

const (
	TypeNone      Type = ""
	TypeExt2      Type = "ext2"
	TypeExt3      Type = "ext3"
	TypeExt4      Type = "ext4"
	TypeFat16     Type = "fat16"
	TypeFat32     Type = "fat32"
	TypeF2FS      Type = "f2fs"
	TypeUDF       Type = "udf"
	TypeISO9660   Type = "iso9660"
	TypeLinuxSwap Type = "linux-swap"
	TypeNTFS      Type = "ntfs"
	TypeXFS       Type = "xfs"
	TypeJFS       Type = "jfs"
	TypeReiserFS  Type = "reiserfs"
	TypeHFS       Type = "hfs"
	TypeHFSPlus   Type = "hfs+"
	TypeHFSX      Type = "hfsx"
	TypeSquashfs  Type = "squashfs"
	TypeBtrfs     Type = "btrfs"
	TypeHPUFS     Type = "hp-ufs"
	TypeSunUFS    Type = "sun-ufs"
)

var knownTypes = map[Type]bool{
	TypeExt2: true, TypeExt3: true, TypeExt4: true, TypeFat16: true, TypeFat32: true,
	TypeF2FS: true, TypeUDF: true, TypeISO9660: true, TypeLinuxSwap: true, TypeNTFS: true,
	TypeXFS: true, TypeJFS: true, TypeReiserFS: true, TypeHFS: true, TypeHFSPlus: true,
	TypeHFSX: true, TypeSquashfs: true, TypeBtrfs: true, TypeHPUFS: true, TypeSunUFS: true,
}

func (t Type) String() string {
	if t == TypeNone {
		return "none"
	}
	return string(t)
}

// TypeFromName returns the Type registered under name.
func TypeFromName(name string) (Type, error) {
	t := Type(name)
	if !knownTypes[t] {
		return TypeNone, fmt.Errorf("%w: %q", ErrUnknownType, name)
	}
	return t, nil
}

// Types returns every known type, sorted by name.
func Types() []Type {
	types := make([]Type, 0, len(knownTypes))
	for t := range knownTypes {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}

// Result describes a detected filesystem. UUID and Label are set when the format carries them.
type Result struct {
	Type      Type
	UUID      *uuid.UUID
	Label     string
	BlockSize uint32
}

// Prober detects one family of filesystem formats on a device or a region of one.
//
// Probe returns ErrNotDetected when the signature is absent. Other errors are I/O failures.
// Probers keep no state and never write.
type Prober interface {
	Name() string
	Probe(dev disk.Device) (*Result, error)
}

// ReadBytes reads count bytes at a byte offset of a sector-addressed device.
// Ranges past the end of the device are reported as ErrNotDetected.
func ReadBytes(dev disk.Device, offset int64, count int) ([]byte, error) {
	ss := dev.SectorSize()
	if offset < 0 || count <= 0 || ss <= 0 {
		return nil, fmt.Errorf("invalid read of %d bytes at %d", count, offset)
	}
	first := offset / ss
	last := (offset + int64(count) - 1) / ss
	if last >= dev.Length() {
		return nil, fmt.Errorf("%w: %d bytes at %d are past the end of the device", ErrNotDetected, count, offset)
	}
	b, err := dev.ReadSectors(first, last-first+1)
	if err != nil {
		return nil, err
	}
	within := offset - first*ss
	return b[within : within+int64(count)], nil
}
