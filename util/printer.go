// Package util holds helpers for inspecting raw sectors in tests and tools.
package util

import (
	"fmt"
	"strings"
)

// DumpByteSlice renders b like xxd, 16 bytes per row with an ASCII column. Rows are
// numbered from base. When only is not nil, just the rows holding one of those
// offsets are shown, with those bytes highlighted.
func DumpByteSlice(b []byte, base int, only map[int]bool) string {
	const perRow = 16
	var out strings.Builder
	for first := 0; first < len(b); first += perRow {
		if only != nil && !rowHas(only, first, perRow) {
			continue
		}
		fmt.Fprintf(&out, "%08x: ", base+first)
		ascii := make([]byte, 0, perRow)
		for j := first; j < first+perRow; j++ {
			if j%8 == 0 {
				out.WriteByte(' ')
			}
			if j >= len(b) {
				out.WriteString("   ")
				ascii = append(ascii, ' ')
				continue
			}
			hex := fmt.Sprintf(" %02x", b[j])
			if only[j] {
				hex = "\033[1m\033[31m" + hex + "\033[0m"
			}
			out.WriteString(hex)
			if b[j] < 32 || b[j] > 126 {
				ascii = append(ascii, '.')
			} else {
				ascii = append(ascii, b[j])
			}
		}
		fmt.Fprintf(&out, "  %s\n", ascii)
	}
	return out.String()
}

func rowHas(only map[int]bool, first, perRow int) bool {
	for j := first; j < first+perRow; j++ {
		if only[j] {
			return true
		}
	}
	return false
}

// diffOffsets returns the offsets at which a and b differ, a missing byte counting as 0.
func diffOffsets(a, b []byte) map[int]bool {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	diffs := map[int]bool{}
	for i := 0; i < n; i++ {
		var x, y byte
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		if x != y {
			diffs[i] = true
		}
	}
	return diffs
}

// DumpByteSlicesWithDiffs shows the rows of a and b that differ, with the differing
// bytes highlighted.
func DumpByteSlicesWithDiffs(a, b []byte) (different bool, out string) {
	diffs := diffOffsets(a, b)
	if len(diffs) == 0 {
		return false, ""
	}
	return true, DumpByteSlice(a, 0, diffs) + "\n" + DumpByteSlice(b, 0, diffs)
}

// DumpSectorDiffs compares two disk images sector by sector and describes every
// sector that differs, offsets shown relative to the start of the image.
func DumpSectorDiffs(a, b []byte, sectorSize int) (different bool, out string) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	var sb strings.Builder
	for start := 0; start < n; start += sectorSize {
		sa, sbb := sector(a, start, sectorSize), sector(b, start, sectorSize)
		diffs := diffOffsets(sa, sbb)
		if len(diffs) == 0 {
			continue
		}
		different = true
		fmt.Fprintf(&sb, "sector %d:\n", start/sectorSize)
		sb.WriteString(DumpByteSlice(sa, start, diffs))
		sb.WriteString("---\n")
		sb.WriteString(DumpByteSlice(sbb, start, diffs))
	}
	return different, sb.String()
}

func sector(b []byte, start, size int) []byte {
	if start >= len(b) {
		return nil
	}
	end := start + size
	if end > len(b) {
		end = len(b)
	}
	return b[start:end]
}
