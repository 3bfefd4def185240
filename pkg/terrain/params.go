package terrain

import (
	"fmt"
	"math"
	"slices"

	"github.com/siohaza/terragen/pkg/noise"
	"github.com/siohaza/terragen/pkg/palette"
)

const (
	MaxGridSize = 4096
	MaxSigma    = 64.0
)

// Params is the full parameter snapshot of one generation.
type Params struct {
	Seed  int64
	Basis noise.Basis

	Level     int
	Scale     float64
	Height    float64
	Sigma     float64
	Roughness float64
	Flatness  float64

	WaterEnabled bool
	ColorEnabled bool
	Blend        bool

	Bands palette.Bands
}

func DefaultParams() Params {
	return Params{
		Basis:        noise.BasisSimplex,
		Level:        6,
		Scale:        64,
		Height:       100,
		Sigma:        1,
		Roughness:    0.3,
		Flatness:     0.2,
		WaterEnabled: true,
		ColorEnabled: true,
		Bands:        palette.DefaultBands(100),
	}
}

// Clone returns a copy that shares no memory with p.
func (p Params) Clone() Params {
	p.Bands = slices.Clone(p.Bands)
	return p
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func (p Params) Validate() error {
	if p.Level < 1 {
		return invalid("level", p.Level, "must be at least 1")
	}
	if p.Level > noise.MaxLevel {
		return invalid("level", p.Level, fmt.Sprintf("must be at most %d", noise.MaxLevel))
	}
	if !finite(p.Scale) || p.Scale <= 0 {
		return invalid("scale", p.Scale, "must be positive")
	}
	if !finite(p.Height) || p.Height <= 0 {
		return invalid("height", p.Height, "must be positive")
	}
	if !finite(p.Sigma) || p.Sigma < 0 || p.Sigma > MaxSigma {
		return invalid("sigma", p.Sigma, fmt.Sprintf("must be within 0..%g", MaxSigma))
	}
	if !(p.Roughness >= 0 && p.Roughness <= 1) {
		return invalid("roughness", p.Roughness, "must be within 0..1")
	}
	if !(p.Flatness >= 0 && p.Flatness <= 1) {
		return invalid("flatness", p.Flatness, "must be within 0..1")
	}
	if _, err := noise.ParseBasis(string(p.Basis)); err != nil {
		return invalid("basis", p.Basis, "unknown noise basis")
	}

	if p.ColorEnabled || len(p.Bands) > 0 {
		if len(p.Bands) != palette.BandCount {
			return invalid("bands", len(p.Bands), fmt.Sprintf("need exactly %d bands", palette.BandCount))
		}
	}
	for i, b := range p.Bands {
		if !finite(b.Threshold) {
			return invalid(fmt.Sprintf("bands[%d].threshold", i), b.Threshold, "must be finite")
		}
	}

	return nil
}

func ValidateGrid(width, height int) error {
	if width < 1 || width > MaxGridSize {
		return invalid("width", width, fmt.Sprintf("must be within 1..%d", MaxGridSize))
	}
	if height < 1 || height > MaxGridSize {
		return invalid("height_cells", height, fmt.Sprintf("must be within 1..%d", MaxGridSize))
	}
	return nil
}
