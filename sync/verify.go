package sync

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"github.com/diskfs/go-disklabel/partition"
	"github.com/diskfs/go-disklabel/partition/part"
)

// VerifyPartitionCopy checks that the first expectedSize bytes of both partitions match.
func VerifyPartitionCopy(orig, target part.Partition, expectedSize int64) error {
	// create a sha256sum of both partitions and compare
	// but limit it to expectedSize
	origHasher := sha256.New()
	size, err := orig.ReadContents(origHasher)
	if err != nil {
		return err
	}
	if size != expectedSize {
		return fmt.Errorf("original partition size %d is different than expected size %d", size, expectedSize)
	}
	origResult := origHasher.Sum(nil)

	targetHasher := sha256.New()
	// a larger target stops being read once expectedSize bytes are hashed
	size, err = target.ReadContents(NewLimitWriter(targetHasher, expectedSize))
	if err != nil && !errors.Is(err, ErrWriteLimit) {
		return err
	}
	if size < expectedSize {
		return fmt.Errorf("target partition size %d is smaller than expected size %d", size, expectedSize)
	}
	targetResult := targetHasher.Sum(nil)

	if !bytes.Equal(origResult, targetResult) {
		return fmt.Errorf("data mismatch between original and target partitions")
	}
	return nil
}

// CompareTables checks that two tables have the same type and the same active
// partitions, compared by number, type, sectors and flags.
func CompareTables(a, b *partition.Table) error {
	if a.Type() != b.Type() {
		return fmt.Errorf("label type %s differs from %s", a.Type(), b.Type())
	}
	pa, pb := active(a), active(b)
	if len(pa) != len(pb) {
		return fmt.Errorf("%d partitions differ from %d", len(pa), len(pb))
	}
	for i := range pa {
		x, y := pa[i], pb[i]
		if x.Num != y.Num || x.Type != y.Type || x.Geometry.Start != y.Geometry.Start || x.Geometry.Length != y.Geometry.Length {
			return fmt.Errorf("partition %q differs from %q", x, y)
		}
		for _, f := range partition.Flags() {
			if a.GetFlag(x, f) != b.GetFlag(y, f) {
				return fmt.Errorf("flag %s of partition %d differs", f, x.Num)
			}
		}
	}
	return nil
}

func active(t *partition.Table) []*partition.Partition {
	var l []*partition.Partition
	for _, p := range t.Partitions() {
		if p.IsActive() {
			l = append(l, p)
		}
	}
	return l
}

// ErrWriteLimit is returned by a LimitedWriter asked to write past its limit.
var ErrWriteLimit = errors.New("write limit reached")

// LimitedWriter writes to W but limits the total amount of data written to N bytes.
// A write crossing the limit writes what fits and returns ErrWriteLimit.
type LimitedWriter struct {
	W io.Writer // underlying writer
	N int64     // max bytes remaining
}

func (l *LimitedWriter) Write(p []byte) (n int, err error) {
	if l.N <= 0 {
		return 0, ErrWriteLimit
	}
	truncated := int64(len(p)) > l.N
	if truncated {
		p = p[:l.N]
	}
	n, err = l.W.Write(p)
	l.N -= int64(n)
	if err == nil && truncated {
		err = ErrWriteLimit
	}
	return n, err
}

// NewLimitWriter creates a new LimitedWriter.
func NewLimitWriter(w io.Writer, n int64) io.Writer {
	return &LimitedWriter{W: w, N: n}
}
