package probe_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/filesystem/probe"
	"github.com/stretchr/testify/require"
)

type imageDevice []byte

func (d imageDevice) SectorSize() int64 { return 512 }
func (d imageDevice) Length() int64     { return int64(len(d)) / 512 }
func (d imageDevice) ReadOnly() bool    { return true }
func (d imageDevice) Sync() error       { return nil }
func (d imageDevice) ReadSectors(start, count int64) ([]byte, error) {
	b := make([]byte, count*512)
	copy(b, d[start*512:(start+count)*512])
	return b, nil
}
func (d imageDevice) WriteSectors(start int64, b []byte) error {
	return errors.New("read-only")
}

type failingDevice struct {
	imageDevice
}

func (d failingDevice) ReadSectors(start, count int64) ([]byte, error) {
	return nil, errors.New("medium error")
}

func TestDetect(t *testing.T) {
	t.Run("swap", func(t *testing.T) {
		img := make(imageDevice, 64*1024)
		copy(img[4086:], "SWAPSPACE2")
		r, err := probe.Default().Detect(img)
		require.NoError(t, err)
		require.Equal(t, filesystem.TypeLinuxSwap, r.Type)
	})
	t.Run("f2fs before anything else", func(t *testing.T) {
		img := make(imageDevice, 64*1024)
		binary.LittleEndian.PutUint32(img[1024:], 0xF2F52010)
		r, err := probe.Default().Detect(img)
		require.NoError(t, err)
		require.Equal(t, filesystem.TypeF2FS, r.Type)
	})
	t.Run("blank", func(t *testing.T) {
		_, err := probe.Default().Detect(make(imageDevice, 64*1024))
		require.ErrorIs(t, err, filesystem.ErrNotDetected)
	})
	t.Run("io error stops the chain", func(t *testing.T) {
		_, err := probe.Default().Detect(failingDevice{make(imageDevice, 64*1024)})
		require.Error(t, err)
		require.NotErrorIs(t, err, filesystem.ErrNotDetected)
	})
	t.Run("order", func(t *testing.T) {
		names := probe.Default().Names()
		require.Equal(t, "udf", names[0])
		require.Equal(t, "fat", names[len(names)-1])
	})
}
