package partition

import (
	"fmt"
	"io"

	"github.com/diskfs/go-disklabel/filesystem"
	"github.com/diskfs/go-disklabel/geometry"
	"github.com/diskfs/go-disklabel/partition/part"
)

// Unnumbered is the Num of a partition that has not been enumerated yet.
const Unnumbered = -1

// Partition is one entry of a Table: an active partition, or a free space or metadata
// pseudo-partition synthesised for display.
type Partition struct {
	Type     Type
	Num      int
	Geometry geometry.Geometry
	FS       filesystem.Type
	// Specific is the driver's state for this partition
	Specific Payload

	table *Table
}

var _ part.Partition = (*Partition)(nil)

// AllocPartition returns an unnumbered partition of t covering [start, end].
func AllocPartition(t *Table, typ Type, fs filesystem.Type, start, end int64) (*Partition, error) {
	g, err := geometry.FromRange(t.dev, start, end)
	if err != nil {
		return nil, NewError(ErrConstraintUnsatisfiable, t.Type(), "invalid partition geometry: %v", err)
	}
	return &Partition{
		Type:     typ,
		Num:      Unnumbered,
		Geometry: *g,
		FS:       fs,
		table:    t,
	}, nil
}

// Table returns the table the partition belongs to.
func (p *Partition) Table() *Table {
	return p.table
}

func (p *Partition) IsActive() bool {
	return p.Type.IsActive()
}

// IsBusy reports whether p is an extended partition that still holds logical partitions.
func (p *Partition) IsBusy() bool {
	if p.Type != Extended {
		return false
	}
	for _, q := range p.table.parts {
		if q.IsActive() && q.Type&Logical != 0 {
			return true
		}
	}
	return false
}

func (p *Partition) String() string {
	return fmt.Sprintf("%d %s %s %s", p.Num, p.Type, p.Geometry.String(), p.FS)
}

// AttemptAlign moves p to the solution of c nearest to its current geometry, for use by
// driver Align implementations.
func (p *Partition) AttemptAlign(c *geometry.Constraint) error {
	g := geometry.SolveNearest(c, &p.Geometry)
	if g == nil {
		return NewError(ErrConstraintUnsatisfiable, p.table.Type(), "unable to satisfy all constraints on the partition")
	}
	p.Geometry = *g
	return nil
}

// GetSize returns the partition size in bytes.
func (p *Partition) GetSize() int64 {
	return p.Geometry.Length * p.table.dev.SectorSize()
}

// GetStart returns the partition offset in bytes.
func (p *Partition) GetStart() int64 {
	return p.Geometry.Start * p.table.dev.SectorSize()
}

// readChunk is the number of sectors moved per device call when copying contents
const readChunk int64 = 2048

// ReadContents copies the partition's sectors to out.
func (p *Partition) ReadContents(out io.Writer) (int64, error) {
	var total int64
	for offset := int64(0); offset < p.Geometry.Length; offset += readChunk {
		count := readChunk
		if left := p.Geometry.Length - offset; left < count {
			count = left
		}
		b, err := p.Geometry.Read(offset, count)
		if err != nil {
			return total, fmt.Errorf("error reading from partition at sector %d: %w", p.Geometry.Start+offset, err)
		}
		n, err := out.Write(b)
		total += int64(n)
		if err != nil {
			return total, fmt.Errorf("error writing partition contents: %w", err)
		}
	}
	return total, nil
}

// WriteContents fills the partition from in. A reader shorter than the partition yields
// an IncompletePartitionWriteError; a trailing partial sector is zero-padded.
func (p *Partition) WriteContents(in io.Reader) (uint64, error) {
	sectorSize := p.table.dev.SectorSize()
	size := uint64(p.GetSize())
	buf := make([]byte, readChunk*sectorSize)
	var written uint64
	for offset := int64(0); offset < p.Geometry.Length; {
		count := readChunk
		if left := p.Geometry.Length - offset; left < count {
			count = left
		}
		b := buf[:count*sectorSize]
		n, err := io.ReadFull(in, b)
		if n == 0 {
			break
		}
		if err != nil && err != io.ErrUnexpectedEOF {
			return written, fmt.Errorf("error reading partition contents: %w", err)
		}
		used := (int64(n) + sectorSize - 1) / sectorSize
		for i := n; i < int(used*sectorSize); i++ {
			b[i] = 0
		}
		if err := p.Geometry.Write(offset, b[:used*sectorSize]); err != nil {
			return written, fmt.Errorf("error writing to partition at sector %d: %w", p.Geometry.Start+offset, err)
		}
		written += uint64(n)
		offset += used
		if int64(n) < count*sectorSize {
			break
		}
	}
	if written < size {
		return written, part.NewIncompletePartitionWriteError(written, size)
	}
	return written, nil
}
