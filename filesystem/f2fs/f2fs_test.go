package f2fs

import (
	"encoding/binary"
	"errors"
	"testing"
	"unicode/utf16"

	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/google/uuid"
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

func TestProbe(t *testing.T) {
	id := uuid.MustParse("6b5c3d2e-1f0a-4b9c-8d7e-6f5a4b3c2d1e")

	t.Run("valid superblock", func(t *testing.T) {
		img := make([]byte, 16*512)
		sb := img[superblockOffset:]
		binary.LittleEndian.PutUint32(sb[0:4], superblockMagic)
		binary.LittleEndian.PutUint32(sb[logBlockSizeOffset:], 12)
		copy(sb[uuidOffset:], id[:])
		for i, c := range utf16.Encode([]rune("atari")) {
			binary.LittleEndian.PutUint16(sb[volumeNameOffset+2*i:], c)
		}

		r, err := Prober{}.Probe(imageDevice(img))
		require.NoError(t, err)
		require.Equal(t, filesystem.TypeF2FS, r.Type)
		require.EqualValues(t, 4096, r.BlockSize)
		require.Equal(t, "atari", r.Label)
		require.NotNil(t, r.UUID)
		require.Equal(t, id, *r.UUID)
	})
	t.Run("wrong magic", func(t *testing.T) {
		img := make([]byte, 16*512)
		binary.LittleEndian.PutUint32(img[superblockOffset:], superblockMagic-1)
		_, err := Prober{}.Probe(imageDevice(img))
		require.ErrorIs(t, err, filesystem.ErrNotDetected)
	})
	t.Run("magic only on a short device", func(t *testing.T) {
		img := make([]byte, 3*512)
		binary.LittleEndian.PutUint32(img[superblockOffset:], superblockMagic)
		r, err := Prober{}.Probe(imageDevice(img))
		require.NoError(t, err)
		require.Equal(t, filesystem.TypeF2FS, r.Type)
		require.Nil(t, r.UUID)
	})
}
