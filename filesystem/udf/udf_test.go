package udf

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/stretchr/testify/require"
)

type imageDevice struct {
	data  []byte
	reads []int64
}

func (d *imageDevice) SectorSize() int64 { return 512 }
func (d *imageDevice) Length() int64     { return int64(len(d.data)) / 512 }
func (d *imageDevice) ReadOnly() bool    { return true }
func (d *imageDevice) Sync() error       { return nil }
func (d *imageDevice) ReadSectors(start, count int64) ([]byte, error) {
	d.reads = append(d.reads, start*512)
	b := make([]byte, count*512)
	copy(b, d.data[start*512:(start+count)*512])
	return b, nil
}
func (d *imageDevice) WriteSectors(start int64, b []byte) error {
	return errors.New("read-only")
}

func newImage(size int) *imageDevice {
	return &imageDevice{data: make([]byte, size)}
}

func (d *imageDevice) putVRS(vsdSize int, idents ...string) {
	for i, id := range idents {
		copy(d.data[vrsOffset+i*vsdSize+identOffset:], id)
	}
}

func (d *imageDevice) putAnchor(blockSize int, block, selfLocation uint32) {
	off := int(block) * blockSize
	binary.LittleEndian.PutUint16(d.data[off:], tagIdentAVDP)
	binary.LittleEndian.PutUint32(d.data[off+tagLocationOffset:], selfLocation)
}

func TestProbe(t *testing.T) {
	t.Run("2048 byte blocks with anchor at 256", func(t *testing.T) {
		dev := newImage(2 * 1024 * 1024)
		dev.putVRS(2048, "BEA01", "NSR02", "TEA01")
		dev.putAnchor(2048, 256, 256)
		r, err := Prober{}.Probe(dev)
		require.NoError(t, err)
		require.Equal(t, filesystem.TypeUDF, r.Type)
		require.EqualValues(t, 2048, r.BlockSize)
	})
	t.Run("anchor at last block", func(t *testing.T) {
		dev := newImage(2 * 1024 * 1024)
		dev.putVRS(2048, "BEA01", "NSR03")
		last := uint32(len(dev.data)/2048 - 1)
		dev.putAnchor(2048, last, last)
		r, err := Prober{}.Probe(dev)
		require.NoError(t, err)
		require.EqualValues(t, 2048, r.BlockSize)
	})
	t.Run("no anchor", func(t *testing.T) {
		dev := newImage(2 * 1024 * 1024)
		dev.putVRS(2048, "BEA01", "NSR02", "TEA01")
		_, err := Prober{}.Probe(dev)
		require.ErrorIs(t, err, filesystem.ErrNotDetected)
	})
	t.Run("anchor with wrong self location", func(t *testing.T) {
		dev := newImage(2 * 1024 * 1024)
		dev.putVRS(2048, "BEA01", "NSR02")
		dev.putAnchor(2048, 256, 257)
		_, err := Prober{}.Probe(dev)
		require.ErrorIs(t, err, filesystem.ErrNotDetected)
	})
	t.Run("no terminal descriptor", func(t *testing.T) {
		dev := newImage(2 * 1024 * 1024)
		dev.putVRS(2048, "BEA01", "CD001", "TEA01")
		dev.putAnchor(2048, 256, 256)
		_, err := Prober{}.Probe(dev)
		require.ErrorIs(t, err, filesystem.ErrNotDetected)
	})
	t.Run("unknown descriptor stops the scan", func(t *testing.T) {
		dev := newImage(2 * 1024 * 1024)
		dev.putVRS(2048, "BEA01", "XXXXX", "NSR02")
		dev.putAnchor(2048, 256, 256)
		_, err := Prober{}.Probe(dev)
		require.ErrorIs(t, err, filesystem.ErrNotDetected)
	})
	t.Run("device too small for tail anchors", func(t *testing.T) {
		dev := newImage(128 * 1024)
		dev.putVRS(2048, "BEA01", "NSR02")
		last := uint32(len(dev.data)/2048 - 1)
		dev.putAnchor(2048, last, last)
		_, err := Prober{}.Probe(dev)
		require.ErrorIs(t, err, filesystem.ErrNotDetected)
	})
	t.Run("4096 byte blocks", func(t *testing.T) {
		dev := newImage(2 * 1024 * 1024)
		dev.putVRS(4096, "BEA01", "NSR03", "TEA01")
		dev.putAnchor(4096, 256, 256)
		r, err := Prober{}.Probe(dev)
		require.NoError(t, err)
		require.EqualValues(t, 4096, r.BlockSize)
	})
}

func TestSmallBlockSizesFirst(t *testing.T) {
	// valid for both 2048 and 4096 byte blocks: BEA01 at 32768, NSR02 at 34816
	// and NSR03 at 36864, anchors at block 256 for both sizes
	dev := newImage(2 * 1024 * 1024)
	dev.putVRS(2048, "BEA01", "NSR02", "NSR03")
	dev.putAnchor(2048, 256, 256)
	dev.putAnchor(4096, 256, 256)

	r, err := Prober{}.Probe(dev)
	require.NoError(t, err)
	require.EqualValues(t, 2048, r.BlockSize)

	// the 4096 byte anchor must never have been looked at
	require.NotContains(t, dev.reads, int64(256*4096))
}
