package noise

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allBases = []Basis{BasisSimplex, BasisPerlin, BasisClassic}

func TestSampleDeterminism(t *testing.T) {
	for i := 0; i < 200; i++ {
		x := float64(i) * 1.37
		y := float64(i) * -0.53
		a, err := Sample(x, y, 12345, 5, 40)
		require.NoError(t, err)
		b, err := Sample(x, y, 12345, 5, 40)
		require.NoError(t, err)
		assert.Equal(t, math.Float64bits(a), math.Float64bits(b))
	}
}

func TestFieldsAgreeAcrossInstances(t *testing.T) {
	for _, basis := range allBases {
		f1, err := New(basis, 99)
		require.NoError(t, err)
		f2, err := New(basis, 99)
		require.NoError(t, err)

		fr1, err := f1.Fractal(6, 25, 0.4)
		require.NoError(t, err)
		fr2, err := f2.Fractal(6, 25, 0.4)
		require.NoError(t, err)

		for i := 0; i < 500; i++ {
			x := float64(i%37) * 3.1
			y := float64(i/37) * 2.7
			assert.Equal(t, fr1.At(x, y), fr2.At(x, y), "basis %s at (%v, %v)", basis, x, y)
		}
	}
}

func TestSeedChangesField(t *testing.T) {
	pairs := []struct {
		a, b int64
	}{
		{1, 2},
		{5, 5 | 1<<40},
		{-1, 1<<32 - 1},
	}

	for _, basis := range allBases {
		for _, pair := range pairs {
			f1, err := New(basis, pair.a)
			require.NoError(t, err)
			f2, err := New(basis, pair.b)
			require.NoError(t, err)
			fr1, _ := f1.Fractal(4, 16, 0)
			fr2, _ := f2.Fractal(4, 16, 0)

			differ := false
			for i := 0; i < 100 && !differ; i++ {
				x, y := float64(i)*1.9+0.3, float64(i)*0.7+0.1
				differ = fr1.At(x, y) != fr2.At(x, y)
			}
			assert.True(t, differ, "basis %s: seeds %d and %d give the same field", basis, pair.a, pair.b)
		}
	}
}

func TestFoldSeedKeepsHighBits(t *testing.T) {
	assert.Equal(t, uint32(7), foldSeed(7))
	assert.NotEqual(t, foldSeed(5), foldSeed(5|1<<40))
	assert.Equal(t, uint32(0), foldSeed(-1))
}

func TestRange(t *testing.T) {
	for _, basis := range allBases {
		f, err := New(basis, 42)
		require.NoError(t, err)
		for _, roughness := range []float64{0, 0.5, 1} {
			fr, err := f.Fractal(8, 10, roughness)
			require.NoError(t, err)
			for i := 0; i < 5000; i++ {
				x := float64(i)*0.71 - 900
				y := float64(i)*0.29 - 400
				v := fr.At(x, y)
				assert.True(t, v >= -1 && v <= 1, "basis %s: %v out of range", basis, v)
			}
		}
	}
}

func TestLargerScaleIsSmoother(t *testing.T) {
	f, err := New(BasisSimplex, 7)
	require.NoError(t, err)
	fine, _ := f.Fractal(1, 2, 0)
	coarse, _ := f.Fractal(1, 200, 0)

	var dFine, dCoarse float64
	for i := 0; i < 500; i++ {
		x := float64(i)
		dFine += math.Abs(fine.At(x+1, 3) - fine.At(x, 3))
		dCoarse += math.Abs(coarse.At(x+1, 3) - coarse.At(x, 3))
	}
	assert.Less(t, dCoarse, dFine)
}

func TestPersistence(t *testing.T) {
	assert.Equal(t, SmoothPersistence, Persistence(0))
	assert.Equal(t, RoughPersistence, Persistence(1))
	assert.InDelta(t, 0.7, Persistence(0.5), 1e-12)
}

func TestInvalidParameters(t *testing.T) {
	f, err := New(BasisSimplex, 1)
	require.NoError(t, err)

	cases := []struct {
		name      string
		level     int
		scale     float64
		roughness float64
	}{
		{"zero level", 0, 10, 0},
		{"negative level", -3, 10, 0},
		{"too many octaves", MaxLevel + 1, 10, 0},
		{"zero scale", 1, 0, 0},
		{"negative scale", 1, -5, 0},
		{"nan scale", 1, math.NaN(), 0},
		{"infinite scale", 1, math.Inf(1), 0},
		{"roughness above one", 1, 10, 1.5},
		{"nan roughness", 1, 10, math.NaN()},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.Fractal(tc.level, tc.scale, tc.roughness)
			assert.ErrorIs(t, err, ErrInvalidParameter)
		})
	}

	_, err = Sample(0, 0, 1, 0, 10)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestParseBasis(t *testing.T) {
	b, err := ParseBasis("")
	require.NoError(t, err)
	assert.Equal(t, BasisSimplex, b)

	b, err = ParseBasis("classic")
	require.NoError(t, err)
	assert.Equal(t, BasisClassic, b)

	_, err = ParseBasis("worley")
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = New("worley", 1)
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestClassicPermutationIsBijective(t *testing.T) {
	c := newClassic(0xC0FFEE)
	var seen [256]bool
	for i := 0; i < 256; i++ {
		seen[c.perm[i]] = true
		assert.Equal(t, c.perm[i], c.perm[i+256])
		assert.Equal(t, c.perm[i]&15, c.perm15[i])
	}
	for i, ok := range seen {
		assert.True(t, ok, "value %d missing from permutation", i)
	}
}
