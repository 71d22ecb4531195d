package geometry

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDevice is a sector-addressed device with no storage behind it
type fakeDevice struct {
	length int64
}

func (f *fakeDevice) SectorSize() int64 { return 512 }
func (f *fakeDevice) Length() int64     { return f.length }
func (f *fakeDevice) ReadOnly() bool    { return true }
func (f *fakeDevice) Sync() error       { return nil }
func (f *fakeDevice) ReadSectors(start, count int64) ([]byte, error) {
	return make([]byte, count*512), nil
}
func (f *fakeDevice) WriteSectors(start int64, b []byte) error {
	return errors.New("read-only")
}

func TestNew(t *testing.T) {
	dev := &fakeDevice{length: 100}
	tests := []struct {
		name          string
		start, length int64
		ok            bool
	}{
		{"whole device", 0, 100, true},
		{"last sector", 99, 1, true},
		{"zero length", 10, 0, false},
		{"negative start", -1, 5, false},
		{"past end", 90, 11, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, err := New(dev, tt.start, tt.length)
			if !tt.ok {
				var rangeErr *RangeError
				require.ErrorAs(t, err, &rangeErr)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.start+tt.length-1, g.End())
		})
	}
}

func TestGeometryRelations(t *testing.T) {
	dev := &fakeDevice{length: 100}
	a := &Geometry{Dev: dev, Start: 10, Length: 20}
	b := &Geometry{Dev: dev, Start: 25, Length: 10}
	c := &Geometry{Dev: dev, Start: 30, Length: 5}

	require.True(t, a.TestOverlap(b))
	require.True(t, b.TestOverlap(a))
	require.False(t, a.TestOverlap(c))
	require.True(t, b.TestInside(c))
	require.False(t, a.TestInside(b))
	require.True(t, a.Intersect(b).Equal(&Geometry{Dev: dev, Start: 25, Length: 5}))
	require.Nil(t, a.Intersect(c))
	require.Nil(t, a.Intersect(&Geometry{Dev: &fakeDevice{length: 100}, Start: 10, Length: 20}))

	require.NoError(t, a.SetEnd(40))
	require.EqualValues(t, 31, a.Length)
	require.Error(t, a.SetStart(41))
	require.EqualValues(t, 10, a.Start)
}

func TestRegion(t *testing.T) {
	dev := &fakeDevice{length: 100}
	g := &Geometry{Dev: dev, Start: 10, Length: 20}
	r := g.Region()
	require.EqualValues(t, 20, r.Length())
	b, err := r.ReadSectors(19, 1)
	require.NoError(t, err)
	require.Len(t, b, 512)
	_, err = r.ReadSectors(19, 2)
	require.Error(t, err)
}
