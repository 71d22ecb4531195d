package geometry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIntersectAlignments(t *testing.T) {
	tests := []struct {
		name     string
		a, b     Alignment
		expected *Alignment
	}{
		{"any with any", AlignAny, AlignAny, &AlignAny},
		{"coprime grains", Alignment{0, 2}, Alignment{1, 3}, &Alignment{4, 6}},
		{"common factor", Alignment{2, 4}, Alignment{0, 6}, &Alignment{6, 12}},
		{"incompatible parity", Alignment{0, 2}, Alignment{1, 2}, nil},
		{"incompatible with common factor", Alignment{1, 4}, Alignment{0, 6}, nil},
		{"single sector on grid", Alignment{5, 0}, Alignment{1, 2}, &Alignment{5, 0}},
		{"single sector off grid", Alignment{4, 0}, Alignment{1, 2}, nil},
		{"same single sector", Alignment{7, 0}, Alignment{7, 0}, &Alignment{7, 0}},
		{"different single sectors", Alignment{7, 0}, Alignment{8, 0}, nil},
		{"none with any", AlignNone, AlignAny, &AlignNone},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ab := IntersectAlignments(&tt.a, &tt.b)
			ba := IntersectAlignments(&tt.b, &tt.a)
			require.True(t, ab.Equal(tt.expected), "got %v, expected %v", ab, tt.expected)
			require.True(t, ba.Equal(ab), "not commutative: %v vs %v", ab, ba)
		})
	}
}

func TestAlignUpDownNearest(t *testing.T) {
	dev := &fakeDevice{length: 100}
	g := &Geometry{Dev: dev, Start: 10, Length: 50}
	a, err := NewAlignment(3, 8)
	require.NoError(t, err)

	tests := []struct {
		name                    string
		sector                  int64
		up, down, nearest       int64
	}{
		{"on grid", 27, 27, 27, 27},
		{"between, nearer down", 28, 35, 27, 27},
		{"between, nearer up", 34, 35, 27, 35},
		{"tie goes down", 31, 35, 27, 27},
		{"below range", 0, 11, 11, 11},
		{"above range", 80, 59, 59, 59},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.up, a.AlignUp(g, tt.sector))
			require.Equal(t, tt.down, a.AlignDown(g, tt.sector))
			require.Equal(t, tt.nearest, a.AlignNearest(g, tt.sector))
		})
	}

	t.Run("no aligned sector in range", func(t *testing.T) {
		narrow := &Geometry{Dev: dev, Start: 12, Length: 5}
		require.EqualValues(t, -1, a.AlignUp(narrow, 12))
		require.EqualValues(t, -1, a.AlignNearest(narrow, 14))
	})
	t.Run("single sector", func(t *testing.T) {
		single := &Alignment{Offset: 40, GrainSize: 0}
		require.EqualValues(t, 40, single.AlignNearest(g, 0))
		require.EqualValues(t, -1, single.AlignNearest(&Geometry{Dev: dev, Start: 0, Length: 5}, 0))
	})
}

func TestNewAlignmentNormalizes(t *testing.T) {
	a, err := NewAlignment(-1, 8)
	require.NoError(t, err)
	require.Equal(t, Alignment{7, 8}, *a)
	_, err = NewAlignment(0, -1)
	require.Error(t, err)
}
