package terrain

import (
	"context"
	"math"

	"github.com/siohaza/terragen/pkg/noise"
)

// DefaultBatchRows is how many rows a stage processes between
// cancellation checks.
const DefaultBatchRows = 16

// maximum flatness exponent minus one
const flattenSpan = 7.0

type run struct {
	ctx       context.Context
	params    Params
	batchRows int
	progress  ProgressFunc
}

// rows calls fn for every row in [0, total), checking for cancellation
// before each batch.
func (r *run) rows(stage Stage, total int, fn func(row int)) error {
	for start := 0; start < total; start += r.batchRows {
		if err := r.ctx.Err(); err != nil {
			return cancelled(err)
		}
		end := min(start+r.batchRows, total)
		for row := start; row < end; row++ {
			fn(row)
		}
		if r.progress != nil {
			r.progress(r.params.Clone(), stage, end, total)
		}
	}
	return nil
}

// Generate builds a heightmap: fractal noise scaled by Height, smoothed by
// Sigma, then compressed towards zero by Flatness.
func Generate(ctx context.Context, width, height int, p Params) (*Heightmap, error) {
	p = p.Clone()
	if err := ValidateGrid(width, height); err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	field, err := noise.New(p.Basis, p.Seed)
	if err != nil {
		return nil, err
	}

	r := &run{ctx: ctx, params: p, batchRows: DefaultBatchRows}
	return r.heightmap(field, width, height)
}

func (r *run) heightmap(field *noise.Field, width, height int) (*Heightmap, error) {
	p := r.params
	fr, err := field.Fractal(p.Level, p.Scale, p.Roughness)
	if err != nil {
		return nil, err
	}

	hm := newHeightmap(width, height)
	err = r.rows(StageNoise, height, func(row int) {
		base := row * width
		for col := 0; col < width; col++ {
			hm.data[base+col] = fr.At(float64(col), float64(row)) * p.Height
		}
	})
	if err != nil {
		return nil, err
	}

	if err := r.smooth(hm, p.Sigma); err != nil {
		return nil, err
	}
	if err := r.flatten(hm, p.Flatness, p.Height); err != nil {
		return nil, err
	}
	return hm, nil
}

func gaussianKernel(sigma float64) []float64 {
	radius := int(math.Ceil(3 * sigma))
	kernel := make([]float64, 2*radius+1)
	sum := 0.0
	for k := -radius; k <= radius; k++ {
		w := math.Exp(-float64(k*k) / (2 * sigma * sigma))
		kernel[k+radius] = w
		sum += w
	}
	for i := range kernel {
		kernel[i] /= sum
	}
	return kernel
}

func clampIndex(i, n int) int {
	if i < 0 {
		return 0
	}
	if i >= n {
		return n - 1
	}
	return i
}

// smooth applies a separable gaussian blur with clamp-to-edge borders.
func (r *run) smooth(hm *Heightmap, sigma float64) error {
	if sigma <= 0 {
		return nil
	}

	kernel := gaussianKernel(sigma)
	radius := len(kernel) / 2
	w, h := hm.width, hm.height
	tmp := make([]float64, len(hm.data))

	err := r.rows(StageSmooth, h, func(row int) {
		base := row * w
		for col := 0; col < w; col++ {
			sum := 0.0
			for k := -radius; k <= radius; k++ {
				sum += hm.data[base+clampIndex(col+k, w)] * kernel[k+radius]
			}
			tmp[base+col] = sum
		}
	})
	if err != nil {
		return err
	}

	return r.rows(StageSmooth, h, func(row int) {
		for col := 0; col < w; col++ {
			sum := 0.0
			for k := -radius; k <= radius; k++ {
				sum += tmp[clampIndex(row+k, h)*w+col] * kernel[k+radius]
			}
			hm.data[row*w+col] = sum
		}
	})
}

// FlattenExponent is the power applied to normalised elevation magnitude.
func FlattenExponent(flatness float64) float64 {
	return 1 + flattenSpan*flatness
}

// flattenValue pulls v towards zero along |v|^k / k (normalised to height).
// The curve never has slope above one, so raising flatness can only shrink
// the spread of the grid while mid elevations fall off fastest.
func flattenValue(v, height, k float64) float64 {
	t := math.Min(math.Abs(v)/height, 1)
	return math.Copysign(height*math.Pow(t, k)/k, v)
}

func (r *run) flatten(hm *Heightmap, flatness, height float64) error {
	if flatness <= 0 {
		return nil
	}

	k := FlattenExponent(flatness)
	w := hm.width
	return r.rows(StageFlatten, hm.height, func(row int) {
		base := row * w
		for col := 0; col < w; col++ {
			hm.data[base+col] = flattenValue(hm.data[base+col], height, k)
		}
	})
}
