package terrain

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siohaza/terragen/pkg/noise"
)

func shapeParams() Params {
	p := DefaultParams()
	p.Seed = 2024
	p.Level = 5
	p.Scale = 12
	p.Height = 80
	p.Sigma = 1.5
	p.Roughness = 0.4
	p.Flatness = 0
	return p
}

func TestGenerateDeterministic(t *testing.T) {
	for _, basis := range []noise.Basis{noise.BasisSimplex, noise.BasisPerlin, noise.BasisClassic} {
		p := shapeParams()
		p.Basis = basis

		a, err := Generate(context.Background(), 33, 21, p)
		require.NoError(t, err)
		b, err := Generate(context.Background(), 33, 21, p)
		require.NoError(t, err)

		av, bv := a.Values(), b.Values()
		require.Len(t, av, 33*21)
		for i := range av {
			assert.Equal(t, math.Float64bits(av[i]), math.Float64bits(bv[i]), "basis %s index %d", basis, i)
		}
	}
}

func TestGenerateWithinHeight(t *testing.T) {
	p := shapeParams()
	p.Sigma = 0
	hm, err := Generate(context.Background(), 40, 40, p)
	require.NoError(t, err)

	lo, hi := hm.Range()
	assert.GreaterOrEqual(t, lo, -p.Height)
	assert.LessOrEqual(t, hi, p.Height)
	assert.Less(t, lo, hi)
}

func TestSigmaReducesVariation(t *testing.T) {
	p := shapeParams()
	p.Scale = 3
	p.Sigma = 0
	raw, err := Generate(context.Background(), 48, 48, p)
	require.NoError(t, err)

	p.Sigma = 3
	smooth, err := Generate(context.Background(), 48, 48, p)
	require.NoError(t, err)

	assert.Less(t, roughnessOf(smooth), roughnessOf(raw))
}

func roughnessOf(hm *Heightmap) float64 {
	total := 0.0
	for row := 0; row < hm.Height(); row++ {
		for col := 1; col < hm.Width(); col++ {
			total += math.Abs(hm.At(row, col) - hm.At(row, col-1))
		}
	}
	return total
}

func TestFlatnessMonotonicVariance(t *testing.T) {
	p := shapeParams()
	prev := math.Inf(1)
	for step := 0; step <= 10; step++ {
		p.Flatness = float64(step) / 10
		hm, err := Generate(context.Background(), 32, 32, p)
		require.NoError(t, err)

		v := hm.Stats().Variance
		assert.LessOrEqual(t, v, prev+1e-9, "flatness %.1f increased variance", p.Flatness)
		prev = v
	}
}

func TestFlatnessZeroIsIdentity(t *testing.T) {
	p := shapeParams()
	a, err := Generate(context.Background(), 16, 16, p)
	require.NoError(t, err)

	p.Flatness = 0
	r := &run{ctx: context.Background(), params: p, batchRows: DefaultBatchRows}
	b := a.clone()
	require.NoError(t, r.flatten(b, 0, p.Height))
	assert.Equal(t, a.Values(), b.Values())
}

func TestFlattenValue(t *testing.T) {
	k := FlattenExponent(1)
	assert.Equal(t, 8.0, k)
	assert.Equal(t, 0.0, flattenValue(0, 100, k))
	assert.InDelta(t, 100/k, flattenValue(100, 100, k), 1e-12)
	assert.InDelta(t, -100/k, flattenValue(-100, 100, k), 1e-12)

	// mid elevations collapse much faster than the peaks
	mid := flattenValue(50, 100, k) / flattenValue(100, 100, k)
	assert.Less(t, mid, 0.01)
}

func TestGaussianKernel(t *testing.T) {
	k := gaussianKernel(1.2)
	require.Len(t, k, 2*4+1)

	sum := 0.0
	for i, w := range k {
		sum += w
		assert.InDelta(t, w, k[len(k)-1-i], 1e-15)
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
	assert.Greater(t, k[4], k[3])
}

func TestSmoothPreservesConstantGrid(t *testing.T) {
	values := make([]float64, 7*5)
	for i := range values {
		values[i] = 12.5
	}
	hm, err := NewHeightmap(7, 5, values)
	require.NoError(t, err)

	r := &run{ctx: context.Background(), batchRows: 2}
	require.NoError(t, r.smooth(hm, 2))
	for _, v := range hm.Values() {
		assert.InDelta(t, 12.5, v, 1e-9)
	}
}

func TestGenerateRejectsInvalid(t *testing.T) {
	p := shapeParams()
	p.Level = 0
	_, err := Generate(context.Background(), 8, 8, p)
	assert.ErrorIs(t, err, ErrInvalidParameter)

	_, err = Generate(context.Background(), 0, 8, shapeParams())
	assert.ErrorIs(t, err, ErrInvalidParameter)
}

func TestNewHeightmapLength(t *testing.T) {
	_, err := NewHeightmap(2, 2, []float64{1, 2, 3})
	assert.Error(t, err)

	hm, err := NewHeightmap(2, 2, []float64{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 3.0, hm.At(1, 0))

	s := hm.Stats()
	assert.Equal(t, 1.0, s.Min)
	assert.Equal(t, 4.0, s.Max)
	assert.Equal(t, 2.5, s.Mean)
	assert.Equal(t, 1.25, s.Variance)
}
