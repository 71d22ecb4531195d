// Package fat32 detects FAT filesystems from their boot sector and reports whether the
// BIOS parameter block describes a FAT12/16 or a FAT32 layout.
//
// The 0x55AA boot signature is not required: Atari GEMDOS partitions carry a valid BPB
// without it.
package fat32

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/filesystem"
)

const (
	bootSectorSize = 512
	// fat12/16 clusters stop here; see the Microsoft FAT specification
	maxFat16Clusters = 65524
)

// dos20BPB is the DOS 2.0 BIOS parameter block at byte 11 of the boot sector
type dos20BPB struct {
	bytesPerSector       uint16
	sectorsPerCluster    uint8
	reservedSectors      uint16
	fatCount             uint8
	rootDirectoryEntries uint16
	totalSectors         uint16
	mediaType            uint8
	sectorsPerFat        uint16
}

func dos20BPBFromBytes(b []byte) (*dos20BPB, error) {
	if len(b) != 13 {
		return nil, fmt.Errorf("cannot read DOS 2.0 BPB from invalid byte slice, must be precisely 13 bytes ")
	}
	bpb := &dos20BPB{
		bytesPerSector:       binary.LittleEndian.Uint16(b[0:2]),
		sectorsPerCluster:    b[2],
		reservedSectors:      binary.LittleEndian.Uint16(b[3:5]),
		fatCount:             b[5],
		rootDirectoryEntries: binary.LittleEndian.Uint16(b[6:8]),
		totalSectors:         binary.LittleEndian.Uint16(b[8:10]),
		mediaType:            b[10],
		sectorsPerFat:        binary.LittleEndian.Uint16(b[11:13]),
	}
	switch bpb.bytesPerSector {
	case 512, 1024, 2048, 4096:
	default:
		return nil, fmt.Errorf("invalid sector size %d provided in DOS 2.0 BPB", bpb.bytesPerSector)
	}
	spc := bpb.sectorsPerCluster
	if spc == 0 || spc&(spc-1) != 0 {
		return nil, fmt.Errorf("invalid sectors per cluster %d provided in DOS 2.0 BPB", spc)
	}
	if bpb.reservedSectors == 0 {
		return nil, fmt.Errorf("invalid reserved sectors 0 provided in DOS 2.0 BPB")
	}
	if bpb.fatCount != 1 && bpb.fatCount != 2 {
		return nil, fmt.Errorf("invalid FAT count %d provided in DOS 2.0 BPB", bpb.fatCount)
	}
	if bpb.mediaType != 0xf0 && bpb.mediaType < 0xf8 {
		return nil, fmt.Errorf("invalid media type %#x provided in DOS 2.0 BPB", bpb.mediaType)
	}
	return bpb, nil
}

type bootSector struct {
	bpb          *dos20BPB
	totalSectors uint32
	fatSectors   uint32
	fsType       filesystem.Type
	label        string
}

func bootSectorFromBytes(b []byte) (*bootSector, error) {
	if len(b) != bootSectorSize {
		return nil, fmt.Errorf("cannot read boot sector from invalid byte slice, length %d instead of %d", len(b), bootSectorSize)
	}
	bpb, err := dos20BPBFromBytes(b[11:24])
	if err != nil {
		return nil, err
	}
	bs := &bootSector{
		bpb:          bpb,
		totalSectors: uint32(bpb.totalSectors),
		fatSectors:   uint32(bpb.sectorsPerFat),
	}
	if bs.totalSectors == 0 {
		bs.totalSectors = binary.LittleEndian.Uint32(b[32:36])
	}
	if bs.totalSectors == 0 {
		return nil, fmt.Errorf("boot sector has no sector count")
	}

	if bpb.sectorsPerFat == 0 && bpb.rootDirectoryEntries == 0 {
		// DOS 7.1 extended BPB
		bs.fatSectors = binary.LittleEndian.Uint32(b[36:40])
		if bs.fatSectors == 0 {
			return nil, fmt.Errorf("FAT32 boot sector has no FAT size")
		}
		bs.fsType = filesystem.TypeFat32
		if b[66] == 0x28 || b[66] == 0x29 {
			bs.label = strings.TrimRight(string(b[71:82]), " \x00")
		}
		return bs, nil
	}

	rootSectors := (uint32(bpb.rootDirectoryEntries)*32 + uint32(bpb.bytesPerSector) - 1) / uint32(bpb.bytesPerSector)
	meta := uint32(bpb.reservedSectors) + uint32(bpb.fatCount)*bs.fatSectors + rootSectors
	if meta >= bs.totalSectors {
		return nil, fmt.Errorf("FAT metadata of %d sectors does not fit in %d sectors", meta, bs.totalSectors)
	}
	clusters := (bs.totalSectors - meta) / uint32(bpb.sectorsPerCluster)
	if clusters > maxFat16Clusters {
		return nil, fmt.Errorf("%d clusters is too many for FAT16 without a FAT32 BPB", clusters)
	}
	bs.fsType = filesystem.TypeFat16
	if b[38] == 0x28 || b[38] == 0x29 {
		bs.label = strings.TrimRight(string(b[43:54]), " \x00")
	}
	return bs, nil
}

// Prober detects FAT12, FAT16 (both reported as fat16) and FAT32.
type Prober struct{}

// filesystem.Prober interface guard
var _ filesystem.Prober = Prober{}

func (Prober) Name() string {
	return "fat"
}

func (Prober) Probe(dev disk.Device) (*filesystem.Result, error) {
	b, err := filesystem.ReadBytes(dev, 0, bootSectorSize)
	if err != nil {
		return nil, err
	}
	bs, err := bootSectorFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", filesystem.ErrNotDetected, err)
	}
	if bs.label == "NO NAME" {
		bs.label = ""
	}
	return &filesystem.Result{
		Type:      bs.fsType,
		Label:     bs.label,
		BlockSize: uint32(bs.bpb.bytesPerSector) * uint32(bs.bpb.sectorsPerCluster),
	}, nil
}
