// Package udf detects Universal Disk Format volumes.
//
// UDF has no fixed block size, so detection runs in two stages for each candidate size:
// the volume recognition sequence at byte 32768 must contain an NSR descriptor, then an
// anchor volume descriptor pointer must be found, self-located, at one of the anchor
// blocks counted from the start or the end of the device.
package udf

import (
	"encoding/binary"
	"errors"

	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/filesystem"
)

const (
	// vrsOffset is the byte offset of the volume recognition sequence for every block size
	vrsOffset = 32768
	// maxDescriptors bounds the recognition sequence scan
	maxDescriptors = 64
	// identOffset is the position of the 5-byte identifier within a volume structure descriptor
	identOffset = 1

	tagIdentAVDP       = 0x0002
	tagLocationOffset  = 12
	tagSize            = 16
	minBlocksForTailed = 257

	minBlockSize      = 512
	smallBlockSizeMax = 2048
	maxBlockSize      = 32768
)

// anchors are the candidate anchor blocks; negative values count back from the last block
var anchors = []int64{256, -257, -1, 512}

var (
	terminalIdents = map[string]bool{"NSR02": true, "NSR03": true}
	skipIdents     = map[string]bool{"BEA01": true, "BOOT2": true, "CD001": true, "CDW02": true, "TEA01": true}
)

// Prober detects UDF.
type Prober struct{}

// filesystem.Prober interface guard
var _ filesystem.Prober = Prober{}

func (Prober) Name() string {
	return "udf"
}

// Probe returns the detected block size in the Result.
func (Prober) Probe(dev disk.Device) (*filesystem.Result, error) {
	blockSize, err := detect(dev)
	if err != nil {
		return nil, err
	}
	return &filesystem.Result{Type: filesystem.TypeUDF, BlockSize: uint32(blockSize)}, nil
}

// detect returns the first block size that passes both stages. Block sizes up to 2048
// use a recognition sequence of 2048-byte descriptors; larger ones use descriptors of
// their own size.
func detect(dev disk.Device) (int64, error) {
	ok, err := checkVRS(dev, smallBlockSizeMax)
	if err != nil {
		return 0, err
	}
	if ok {
		for bs := int64(minBlockSize); bs <= smallBlockSizeMax; bs *= 2 {
			found, err := checkAnchors(dev, bs)
			if err != nil {
				return 0, err
			}
			if found {
				return bs, nil
			}
		}
	}
	for bs := int64(smallBlockSizeMax * 2); bs <= maxBlockSize; bs *= 2 {
		ok, err := checkVRS(dev, bs)
		if err != nil {
			return 0, err
		}
		if !ok {
			continue
		}
		found, err := checkAnchors(dev, bs)
		if err != nil {
			return 0, err
		}
		if found {
			return bs, nil
		}
	}
	return 0, filesystem.ErrNotDetected
}

// checkVRS scans the recognition sequence with descriptors of vsdSize bytes.
func checkVRS(dev disk.Device, vsdSize int64) (bool, error) {
	for i := int64(0); i < maxDescriptors; i++ {
		ident, err := filesystem.ReadBytes(dev, vrsOffset+i*vsdSize+identOffset, 5)
		if errors.Is(err, filesystem.ErrNotDetected) {
			return false, nil
		}
		if err != nil {
			return false, err
		}
		s := string(ident)
		switch {
		case terminalIdents[s]:
			return true, nil
		case skipIdents[s]:
			continue
		default:
			return false, nil
		}
	}
	return false, nil
}

func checkAnchors(dev disk.Device, blockSize int64) (bool, error) {
	for _, rel := range anchors {
		found, err := checkAnchor(dev, blockSize, rel)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}
	return false, nil
}

// checkAnchor reads the descriptor tag at anchor block rel and checks that it is an anchor
// volume descriptor pointer recording its own block number.
func checkAnchor(dev disk.Device, blockSize, rel int64) (bool, error) {
	block := rel
	if rel < 0 {
		blocks := dev.Length() * dev.SectorSize() / blockSize
		if blocks <= -rel {
			return false, nil
		}
		block = blocks + rel
		if block < minBlocksForTailed {
			return false, nil
		}
	}
	tag, err := filesystem.ReadBytes(dev, block*blockSize, tagSize)
	if errors.Is(err, filesystem.ErrNotDetected) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if binary.LittleEndian.Uint16(tag[0:2]) != tagIdentAVDP {
		return false, nil
	}
	return int64(binary.LittleEndian.Uint32(tag[tagLocationOffset:tagLocationOffset+4])) == block, nil
}
