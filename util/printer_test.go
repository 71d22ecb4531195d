package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDumpByteSlice(t *testing.T) {
	b := []byte("ATARI partition\x00\x01")
	out := DumpByteSlice(b, 0x200, nil)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasPrefix(lines[0], "00000200: "), lines[0])
	require.True(t, strings.HasSuffix(lines[0], "ATARI partition."), lines[0])
	require.True(t, strings.HasPrefix(lines[1], "00000210: "), lines[1])
	require.Contains(t, lines[1], " 01")
}

func TestDumpByteSlicesWithDiffs(t *testing.T) {
	a := make([]byte, 64)
	b := make([]byte, 64)
	different, out := DumpByteSlicesWithDiffs(a, b)
	require.False(t, different)
	require.Empty(t, out)

	b[40] = 0xA5
	different, out = DumpByteSlicesWithDiffs(a, b)
	require.True(t, different)
	// only the row holding offset 40 is shown, once per slice
	require.Equal(t, 2, strings.Count(out, "00000020: "))
	require.NotContains(t, out, "00000000: ")
}

func TestDumpSectorDiffs(t *testing.T) {
	a := make([]byte, 4*512)
	b := make([]byte, 4*512)
	different, _ := DumpSectorDiffs(a, b, 512)
	require.False(t, different)

	b[2*512+3] = 0xA5
	different, out := DumpSectorDiffs(a, b, 512)
	require.True(t, different)
	require.Contains(t, out, "sector 2:\n")
	require.NotContains(t, out, "sector 1:")
	require.Contains(t, out, "00000400: ")

	t.Run("length mismatch", func(t *testing.T) {
		different, out := DumpSectorDiffs(a, append(append([]byte(nil), a...), 1), 512)
		require.True(t, different)
		require.Contains(t, out, "sector 4:\n")
	})
}
