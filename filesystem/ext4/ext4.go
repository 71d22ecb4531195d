// Package ext4 detects the ext2, ext3 and ext4 family of filesystems and tells them apart
// by the feature flags in the superblock.
package ext4

import (
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/filesystem/magic"
	"github.com/google/uuid"
)

const (
	superblockOffset    = 1024
	superblockSize      = 1024
	superblockSignature = 0xef53

	logBlockSizeOffset   = 0x18
	magicOffset          = 0x38
	featureCompatOffset  = 0x5c
	featureIncompOffset  = 0x60
	featureROCompOffset  = 0x64
	uuidOffset           = 0x68
	volumeNameOffset     = 0x78
	volumeNameLength     = 16
	maxLogBlockSizeShift = 6
)

type featureCompat uint32

const (
	compatHasJournal featureCompat = 0x4
)

type featureIncompat uint32

const (
	incompatJournalDev featureIncompat = 0x8
	incompatExtents    featureIncompat = 0x40
	incompat64Bit      featureIncompat = 0x80
	incompatFlexBG     featureIncompat = 0x200
)

type featureROCompat uint32

const (
	roCompatHugeFile     featureROCompat = 0x8
	roCompatGDTCsum      featureROCompat = 0x10
	roCompatDirNlink     featureROCompat = 0x20
	roCompatExtraIsize   featureROCompat = 0x40
	roCompatMetadataCsum featureROCompat = 0x400
)

const (
	ext4Incompat = incompatExtents | incompat64Bit | incompatFlexBG
	ext4ROCompat = roCompatHugeFile | roCompatGDTCsum | roCompatDirNlink | roCompatExtraIsize | roCompatMetadataCsum
)

var signature = magic.Magic{Offset: superblockOffset + magicOffset, Value: magic.LE16(superblockSignature)}

type superblock struct {
	logBlockSize uint32
	compat       featureCompat
	incompat     featureIncompat
	roCompat     featureROCompat
	uuid         uuid.UUID
	volumeName   string
}

func superblockFromBytes(b []byte) (*superblock, error) {
	if len(b) != superblockSize {
		return nil, fmt.Errorf("cannot read superblock from invalid byte slice, length %d instead of %d", len(b), superblockSize)
	}
	if m := binary.LittleEndian.Uint16(b[magicOffset : magicOffset+2]); m != superblockSignature {
		return nil, fmt.Errorf("invalid superblock signature %#x", m)
	}
	u, err := uuid.FromBytes(b[uuidOffset : uuidOffset+16])
	if err != nil {
		return nil, fmt.Errorf("invalid filesystem uuid: %w", err)
	}
	return &superblock{
		logBlockSize: binary.LittleEndian.Uint32(b[logBlockSizeOffset : logBlockSizeOffset+4]),
		compat:       featureCompat(binary.LittleEndian.Uint32(b[featureCompatOffset : featureCompatOffset+4])),
		incompat:     featureIncompat(binary.LittleEndian.Uint32(b[featureIncompOffset : featureIncompOffset+4])),
		roCompat:     featureROCompat(binary.LittleEndian.Uint32(b[featureROCompOffset : featureROCompOffset+4])),
		uuid:         u,
		volumeName:   strings.TrimRight(string(b[volumeNameOffset:volumeNameOffset+volumeNameLength]), "\x00"),
	}, nil
}

// fsType picks the most specific family member the features allow.
func (sb *superblock) fsType() filesystem.Type {
	switch {
	case sb.incompat&ext4Incompat != 0 || sb.roCompat&ext4ROCompat != 0:
		return filesystem.TypeExt4
	case sb.compat&compatHasJournal != 0:
		return filesystem.TypeExt3
	default:
		return filesystem.TypeExt2
	}
}

// Prober detects ext2, ext3 and ext4.
type Prober struct{}

// filesystem.Prober interface guard
var _ filesystem.Prober = Prober{}

func (Prober) Name() string {
	return "ext"
}

func (Prober) Probe(dev disk.Device) (*filesystem.Result, error) {
	ok, err := signature.Matches(dev)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, filesystem.ErrNotDetected
	}
	b, err := filesystem.ReadBytes(dev, superblockOffset, superblockSize)
	if err != nil {
		return nil, err
	}
	sb, err := superblockFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", filesystem.ErrNotDetected, err)
	}
	// an external journal device is not a filesystem
	if sb.incompat&incompatJournalDev != 0 || sb.logBlockSize > maxLogBlockSizeShift {
		return nil, filesystem.ErrNotDetected
	}
	return &filesystem.Result{
		Type:      sb.fsType(),
		UUID:      &sb.uuid,
		Label:     sb.volumeName,
		BlockSize: 1024 << sb.logBlockSize,
	}, nil
}
