// Package f2fs detects Flash-Friendly File System volumes.
package f2fs

import (
	"encoding/binary"
	"fmt"
	"strings"
	"unicode/utf16"

	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/filesystem/magic"
	"github.com/google/uuid"
)

const (
	superblockMagic  uint32 = 0xF2F52010
	superblockOffset        = 1024

	logBlockSizeOffset = 16
	uuidOffset         = 108
	volumeNameOffset   = 124
	volumeNameLength   = 512
	superblockSize     = volumeNameOffset + volumeNameLength*2
)

var signature = magic.Magic{Offset: superblockOffset, Value: magic.LE32(superblockMagic)}

type superblock struct {
	logBlockSize uint32
	uuid         uuid.UUID
	volumeName   string
}

func superblockFromBytes(b []byte) (*superblock, error) {
	if len(b) < superblockSize {
		return nil, fmt.Errorf("cannot read f2fs superblock from invalid byte slice, length %d instead of %d", len(b), superblockSize)
	}
	if m := binary.LittleEndian.Uint32(b[0:4]); m != superblockMagic {
		return nil, fmt.Errorf("invalid f2fs magic %#x", m)
	}
	sb := &superblock{
		logBlockSize: binary.LittleEndian.Uint32(b[logBlockSizeOffset : logBlockSizeOffset+4]),
	}
	u, err := uuid.FromBytes(b[uuidOffset : uuidOffset+16])
	if err != nil {
		return nil, fmt.Errorf("invalid f2fs uuid: %w", err)
	}
	sb.uuid = u
	name := make([]uint16, volumeNameLength)
	for i := range name {
		name[i] = binary.LittleEndian.Uint16(b[volumeNameOffset+2*i:])
	}
	sb.volumeName = strings.TrimRight(string(utf16.Decode(name)), "\x00")
	return sb, nil
}

// Prober detects f2fs.
type Prober struct{}

// filesystem.Prober interface guard
var _ filesystem.Prober = Prober{}

func (Prober) Name() string {
	return "f2fs"
}

func (Prober) Probe(dev disk.Device) (*filesystem.Result, error) {
	ok, err := signature.Matches(dev)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, filesystem.ErrNotDetected
	}
	r := &filesystem.Result{Type: filesystem.TypeF2FS}
	b, err := filesystem.ReadBytes(dev, superblockOffset, superblockSize)
	if err != nil {
		// a truncated superblock still carries the signature
		return r, nil
	}
	sb, err := superblockFromBytes(b)
	if err != nil {
		return r, nil
	}
	if sb.logBlockSize < 32 {
		r.BlockSize = 1 << sb.logBlockSize
	}
	r.UUID = &sb.uuid
	r.Label = sb.volumeName
	return r, nil
}
