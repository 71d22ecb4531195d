package magic_test

import (
	"encoding/binary"
	"errors"
	"testing"

	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/filesystem/magic"
	"github.com/stretchr/testify/require"
)

// sliceDevice is a read-only device over a byte slice that counts reads
type sliceDevice struct {
	data  []byte
	reads []int64
}

func (d *sliceDevice) SectorSize() int64 { return 512 }
func (d *sliceDevice) Length() int64     { return int64(len(d.data)) / 512 }
func (d *sliceDevice) ReadOnly() bool    { return true }
func (d *sliceDevice) Sync() error       { return nil }
func (d *sliceDevice) ReadSectors(start, count int64) ([]byte, error) {
	d.reads = append(d.reads, start)
	b := make([]byte, count*512)
	copy(b, d.data[start*512:(start+count)*512])
	return b, nil
}
func (d *sliceDevice) WriteSectors(start int64, b []byte) error {
	return errors.New("read-only")
}

const f2fsMagic = 0xF2F52010

func TestMatches(t *testing.T) {
	m := magic.Magic{Offset: 1024, Value: magic.LE32(f2fsMagic)}

	t.Run("exact constant", func(t *testing.T) {
		dev := &sliceDevice{data: make([]byte, 8*512)}
		binary.LittleEndian.PutUint32(dev.data[1024:], f2fsMagic)
		ok, err := m.Matches(dev)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, []int64{2}, dev.reads, "must read exactly the sector holding the offset")
	})

	for _, v := range []uint32{0, f2fsMagic + 1, f2fsMagic ^ 0x80000000, 0x1020F5F2} {
		v := v
		t.Run("rejects other value", func(t *testing.T) {
			dev := &sliceDevice{data: make([]byte, 8*512)}
			binary.LittleEndian.PutUint32(dev.data[1024:], v)
			before := append([]byte(nil), dev.data...)
			ok, err := m.Matches(dev)
			require.NoError(t, err)
			require.False(t, ok)
			require.Equal(t, before, dev.data)
		})
	}

	t.Run("device too short", func(t *testing.T) {
		dev := &sliceDevice{data: make([]byte, 2*512)}
		ok, err := m.Matches(dev)
		require.NoError(t, err)
		require.False(t, ok)
		require.Empty(t, dev.reads)
	})

	t.Run("field crossing sectors", func(t *testing.T) {
		dev := &sliceDevice{data: make([]byte, 4*512)}
		copy(dev.data[510:], "XFSB")
		ok, err := magic.Magic{Offset: 510, Value: []byte("XFSB")}.Matches(dev)
		require.NoError(t, err)
		require.True(t, ok)
	})
}

func TestSimpleProbers(t *testing.T) {
	dev := &sliceDevice{data: make([]byte, 80*1024)}
	copy(dev.data[32769:], "CD001")
	found := filesystem.TypeNone
	for _, p := range magic.Simple() {
		r, err := p.Probe(dev)
		if errors.Is(err, filesystem.ErrNotDetected) {
			continue
		}
		require.NoError(t, err)
		found = r.Type
	}
	require.Equal(t, filesystem.TypeISO9660, found)
}
