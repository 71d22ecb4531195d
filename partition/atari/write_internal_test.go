package atari

import (
	"bytes"
	"testing"

	"github.com/diskfs/go-disklabel/backend/memory"
	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/partition"
	"github.com/stretchr/testify/require"
)

func tmpTable(t *testing.T, sectors int64) (*partition.Table, []byte) {
	t.Helper()
	b := make([]byte, sectors*sectorSize)
	dev := &disk.Disk{
		Backend:           memory.FromBytes(b, false),
		Type:              disk.DeviceTypeFile,
		Size:              sectors * sectorSize,
		LogicalBlocksize:  sectorSize,
		PhysicalBlocksize: sectorSize,
		Writable:          true,
	}
	r, err := partition.NewRegistry(New())
	require.NoError(t, err)
	table, err := r.New(dev, Name)
	require.NoError(t, err)
	return table, b
}

func addPart(t *testing.T, table *partition.Table, typ partition.Type, start, end int64) *partition.Partition {
	t.Helper()
	p, err := table.NewPartition(typ, filesystem.TypeNone, start, end)
	require.NoError(t, err)
	require.NoError(t, table.AddPartition(p, nil))
	return p
}

func TestWritePlacementConflicts(t *testing.T) {
	t.Run("auxiliary root sector inside a partition", func(t *testing.T) {
		table, b := tmpTable(t, 2000)
		addPart(t, table, partition.Extended, 100, 1999)
		first := addPart(t, table, partition.Logical, 101, 999)
		second := addPart(t, table, partition.Logical, 1001, 1999)
		require.Equal(t, int64(1001), second.Geometry.Start)
		require.NoError(t, table.Commit())

		s, err := stateOf(table)
		require.NoError(t, err)
		require.True(t, s.hasBeenRead)
		root := append([]byte(nil), b[:sectorSize]...)

		// the link sector of the second logical partition now belongs to the first
		require.NoError(t, first.Geometry.SetEnd(1000))
		err = table.Commit()
		require.ErrorIs(t, err, partition.ErrConfigurationConflict)
		expected := "atari: conflicting partition configuration: no room at sector 1000 to store the auxiliary root sector of logical partition 2"
		require.Equal(t, expected, err.Error())
		require.False(t, s.hasBeenRead)
		require.True(t, bytes.Equal(root, b[:sectorSize]), "root sector written despite the conflict")
	})
	t.Run("bad sector list inside a partition", func(t *testing.T) {
		table, b := tmpTable(t, 1000)
		addPart(t, table, partition.Normal, 2, 999)
		s, err := stateOf(table)
		require.NoError(t, err)
		s.bslStart = 500

		err = table.Commit()
		require.ErrorIs(t, err, partition.ErrConfigurationConflict)
		require.False(t, s.hasBeenRead)
		require.True(t, s.hdxCompat)
		require.Equal(t, byte(0), b[500*sectorSize+3])
	})
}

func TestFormatFollowsLayout(t *testing.T) {
	table, _ := tmpTable(t, 10000)
	ext := addPart(t, table, partition.Extended, 5000, 9999)
	addPart(t, table, partition.Logical, 5001, 5999)
	s, err := stateOf(table)
	require.NoError(t, err)
	require.Equal(t, FormatXGM, s.format)

	require.NoError(t, table.DeletePartition(ext))
	format, err := currentFormat(table)
	require.NoError(t, err)
	require.Equal(t, FormatAHDI, format)
	require.NoError(t, xgmInICD(table, partition.Extended))

	// a stale working value is replaced on write
	require.NoError(t, table.Commit())
	require.Equal(t, FormatAHDI, s.format)
}
