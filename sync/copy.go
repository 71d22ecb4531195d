// Package sync clones partition tables, and the partitions they describe, from one disk
// to another.
package sync

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/diskfs/go-disklabel/disk"
	"github.com/diskfs/go-disklabel/geometry"
	"github.com/diskfs/go-disklabel/partition"
	"github.com/diskfs/go-disklabel/partition/part"
	"golang.org/x/sync/errgroup"
)

// CopyTable creates a label of the same type as src on dst with every partition of src
// at the same sectors and with the same numbers, filesystem and flags, commits it and
// copies the contents of each partition. dst must hold at least as many sectors as src
// uses and have the same sector size.
func CopyTable(src *partition.Table, dst disk.Device, opts ...partition.Option) (*partition.Table, error) {
	if src.Device().SectorSize() != dst.SectorSize() {
		return nil, fmt.Errorf("sector size %d of the target differs from %d", dst.SectorSize(), src.Device().SectorSize())
	}
	r, err := partition.NewRegistry(src.Driver())
	if err != nil {
		return nil, err
	}
	table, err := r.New(dst, src.Type(), opts...)
	if err != nil {
		return nil, err
	}

	parts := src.Partitions()
	sort.SliceStable(parts, func(i, j int) bool { return parts[i].Num < parts[j].Num })
	var pairs [][2]*partition.Partition
	for _, p := range parts {
		if !p.IsActive() {
			continue
		}
		np, err := copyPartition(table, p)
		if err != nil {
			return nil, fmt.Errorf("failed to recreate partition %d: %w", p.Num, err)
		}
		if p.Type != partition.Extended {
			pairs = append(pairs, [2]*partition.Partition{p, np})
		}
	}
	if err := table.Commit(); err != nil {
		return nil, err
	}

	for _, pair := range pairs {
		if err := CopyPartitionRaw(pair[0], pair[1]); err != nil {
			return nil, err
		}
		table.Logger().Debugf("partition %d: contents copied and verified", pair[0].Num)
	}
	return table, nil
}

func copyPartition(table *partition.Table, p *partition.Partition) (*partition.Partition, error) {
	np, err := table.NewPartition(p.Type, p.FS, p.Geometry.Start, p.Geometry.End())
	if err != nil {
		return nil, err
	}
	src := p.Table()
	for _, f := range partition.Flags() {
		if !src.IsFlagAvailable(p, f) || !src.GetFlag(p, f) {
			continue
		}
		if err := table.SetFlag(np, f, true); err != nil {
			return nil, err
		}
	}
	if err := table.AddPartition(np, geometry.Exact(&np.Geometry)); err != nil {
		return nil, err
	}
	if np.Num != p.Num {
		return nil, fmt.Errorf("was numbered %d on the target", np.Num)
	}
	return np, nil
}

// CopyPartitionRaw copies raw data from one partition to another and verifies the copy.
// The target must be at least as large as the source; any space left over is not touched.
func CopyPartitionRaw(from, to part.Partition) error {
	if to.GetSize() < from.GetSize() {
		return fmt.Errorf("target partition of %d bytes cannot hold %d bytes", to.GetSize(), from.GetSize())
	}
	// copy raw data using a pipe so reads feed writes concurrently
	pr, pw := io.Pipe()
	var (
		g    errgroup.Group
		read int64
	)
	g.Go(func() error {
		var err error
		read, err = from.ReadContents(pw)
		_ = pw.CloseWithError(err)
		if err != nil {
			return fmt.Errorf("failed to read raw data at byte %d: %v", from.GetStart(), err)
		}
		return nil
	})

	written, err := to.WriteContents(pr)
	var ierr *part.IncompletePartitionWriteError
	if err != nil && !errors.As(err, &ierr) {
		_ = pr.CloseWithError(err)
		_ = g.Wait()
		return fmt.Errorf("failed to write raw data at byte %d: %v", to.GetStart(), err)
	}
	if err := g.Wait(); err != nil {
		return err
	}
	if uint64(read) != written {
		return fmt.Errorf("mismatched read/write sizes: read %d bytes, wrote %d bytes", read, written)
	}
	if err := VerifyPartitionCopy(from, to, read); err != nil {
		return fmt.Errorf("verification failed: %v", err)
	}
	return nil
}
