// Package magic implements fixed-offset signature detection: a constant compared against
// the bytes at a fixed byte offset, read with whole-sector I/O from the sector that
// contains the offset.
package magic

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/filesystem"
)

// Magic is a signature of len(Value) bytes at byte Offset from the start of the device.
type Magic struct {
	Offset int64
	Value  []byte
}

// LE32 encodes v as a little-endian signature value.
func LE32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// LE16 encodes v as a little-endian signature value.
func LE16(v uint16) []byte {
	b := make([]byte, 2)
	binary.LittleEndian.PutUint16(b, v)
	return b
}

// Matches reads the sector holding Offset, plus the next ones if the value crosses a
// sector boundary, and compares the whole field. A device too short to hold the field
// does not match.
func (m Magic) Matches(dev disk.Device) (bool, error) {
	ss := dev.SectorSize()
	if ss <= 0 || len(m.Value) == 0 {
		return false, fmt.Errorf("invalid magic %x at %d for sector size %d", m.Value, m.Offset, ss)
	}
	sector := m.Offset / ss
	within := m.Offset % ss
	count := (within + int64(len(m.Value)) + ss - 1) / ss
	if sector+count > dev.Length() {
		return false, nil
	}
	b, err := dev.ReadSectors(sector, count)
	if err != nil {
		return false, err
	}
	return bytes.Equal(b[within:within+int64(len(m.Value))], m.Value), nil
}

// Prober detects a single Type when any one of its magics matches.
type Prober struct {
	Label  string
	Type   filesystem.Type
	Magics []Magic
}

// filesystem.Prober interface guard
var _ filesystem.Prober = (*Prober)(nil)

func (p *Prober) Name() string {
	return p.Label
}

func (p *Prober) Probe(dev disk.Device) (*filesystem.Result, error) {
	for _, m := range p.Magics {
		ok, err := m.Matches(dev)
		if err != nil {
			return nil, err
		}
		if ok {
			return &filesystem.Result{Type: p.Type}, nil
		}
	}
	return nil, filesystem.ErrNotDetected
}

// Simple returns probers for the formats recognizable by magic alone.
func Simple() []filesystem.Prober {
	return []filesystem.Prober{
		&Prober{Label: "iso9660", Type: filesystem.TypeISO9660, Magics: []Magic{
			{Offset: 32769, Value: []byte("CD001")},
		}},
		&Prober{Label: "xfs", Type: filesystem.TypeXFS, Magics: []Magic{
			{Offset: 0, Value: []byte("XFSB")},
		}},
		&Prober{Label: "btrfs", Type: filesystem.TypeBtrfs, Magics: []Magic{
			{Offset: 65600, Value: []byte("_BHRfS_M")},
		}},
		&Prober{Label: "ntfs", Type: filesystem.TypeNTFS, Magics: []Magic{
			{Offset: 3, Value: []byte("NTFS    ")},
		}},
		&Prober{Label: "squashfs", Type: filesystem.TypeSquashfs, Magics: []Magic{
			{Offset: 0, Value: []byte("hsqs")},
		}},
		&Prober{Label: "jfs", Type: filesystem.TypeJFS, Magics: []Magic{
			{Offset: 32768, Value: []byte("JFS1")},
		}},
		&Prober{Label: "reiserfs", Type: filesystem.TypeReiserFS, Magics: []Magic{
			{Offset: 65536 + 52, Value: []byte("ReIsErFs")},
			{Offset: 65536 + 52, Value: []byte("ReIsEr2Fs")},
			{Offset: 65536 + 52, Value: []byte("ReIsEr3Fs")},
			{Offset: 8192 + 52, Value: []byte("ReIsErFs")},
		}},
		&Prober{Label: "hfs+", Type: filesystem.TypeHFSPlus, Magics: []Magic{
			{Offset: 1024, Value: []byte("H+")},
		}},
		&Prober{Label: "hfsx", Type: filesystem.TypeHFSX, Magics: []Magic{
			{Offset: 1024, Value: []byte("HX")},
		}},
		&Prober{Label: "hfs", Type: filesystem.TypeHFS, Magics: []Magic{
			{Offset: 1024, Value: []byte("BD")},
		}},
	}
}
