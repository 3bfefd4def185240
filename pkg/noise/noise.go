// Package noise provides deterministic fractal noise fields over the plane.
package noise

import (
	"errors"
	"fmt"
	"math"

	"github.com/aquilax/go-perlin"
	"github.com/ojrac/opensimplex-go"
)

type Basis string

const (
	BasisSimplex Basis = "simplex"
	BasisPerlin  Basis = "perlin"
	BasisClassic Basis = "classic"
)

const (
	MaxLevel = 16

	// per-octave amplitude decay at roughness 0 and 1
	SmoothPersistence = 0.5
	RoughPersistence  = 0.9
)

var ErrInvalidParameter = errors.New("invalid parameter")

// octave i is shifted by octaveShift*i so lattice zeros do not line up
// across octaves at the origin.
var octaveShift = [2]float64{19.19, 7.73}

type source interface {
	Eval2(x, y float64) float64
}

type perlinSource struct {
	p *perlin.Perlin
}

func (s perlinSource) Eval2(x, y float64) float64 {
	return s.p.Noise2D(x, y) * math.Sqrt2
}

// Field is a seeded noise source. A Field holds no mutable state after
// construction and may be shared between goroutines.
type Field struct {
	basis Basis
	seed  int64
	src   source
}

func ParseBasis(s string) (Basis, error) {
	switch Basis(s) {
	case "", BasisSimplex:
		return BasisSimplex, nil
	case BasisPerlin:
		return BasisPerlin, nil
	case BasisClassic:
		return BasisClassic, nil
	default:
		return "", fmt.Errorf("%w: unknown noise basis %q", ErrInvalidParameter, s)
	}
}

func New(basis Basis, seed int64) (*Field, error) {
	b, err := ParseBasis(string(basis))
	if err != nil {
		return nil, err
	}

	f := &Field{basis: b, seed: seed}
	switch b {
	case BasisSimplex:
		f.src = opensimplex.New(seed)
	case BasisPerlin:
		f.src = perlinSource{p: perlin.NewPerlin(2, 2, 1, seed)}
	case BasisClassic:
		f.src = newClassic(foldSeed(seed))
	}
	return f, nil
}

// foldSeed reduces a seed to the classic generator's 32-bit state so the
// high half still matters. Distinct seeds can still collide.
func foldSeed(seed int64) uint32 {
	u := uint64(seed)
	return uint32(u ^ u>>32)
}

func (f *Field) Basis() Basis { return f.basis }
func (f *Field) Seed() int64  { return f.seed }

// Persistence maps roughness in [0,1] onto the per-octave amplitude decay.
func Persistence(roughness float64) float64 {
	return SmoothPersistence + (RoughPersistence-SmoothPersistence)*roughness
}

// Fractal is a validated octave configuration bound to a Field.
type Fractal struct {
	src         source
	octaves     int
	frequency   float64
	persistence float64
	norm        float64
}

func (f *Field) Fractal(level int, scale, roughness float64) (Fractal, error) {
	if level < 1 || level > MaxLevel {
		return Fractal{}, fmt.Errorf("%w: level %d outside 1..%d", ErrInvalidParameter, level, MaxLevel)
	}
	if !(scale > 0) || math.IsInf(scale, 0) {
		return Fractal{}, fmt.Errorf("%w: scale must be positive and finite, got %v", ErrInvalidParameter, scale)
	}
	if !(roughness >= 0 && roughness <= 1) {
		return Fractal{}, fmt.Errorf("%w: roughness %v outside 0..1", ErrInvalidParameter, roughness)
	}

	p := Persistence(roughness)
	total := 0.0
	amp := 1.0
	for i := 0; i < level; i++ {
		total += amp
		amp *= p
	}

	return Fractal{
		src:         f.src,
		octaves:     level,
		frequency:   1 / scale,
		persistence: p,
		norm:        1 / total,
	}, nil
}

func (fr Fractal) Octaves() int { return fr.octaves }

// At returns the fractal sum at (x, y) in [-1, 1].
func (fr Fractal) At(x, y float64) float64 {
	sum := 0.0
	amp := 1.0
	freq := fr.frequency
	for o := 0; o < fr.octaves; o++ {
		ox := octaveShift[0] * float64(o)
		oy := octaveShift[1] * float64(o)
		sum += fr.src.Eval2(x*freq+ox, y*freq+oy) * amp
		amp *= fr.persistence
		freq *= 2
	}

	v := sum * fr.norm
	if v < -1 {
		return -1
	}
	if v > 1 {
		return 1
	}
	return v
}

// Sample evaluates the default simplex basis with smooth octave decay.
func Sample(x, y float64, seed int64, level int, scale float64) (float64, error) {
	f, err := New(BasisSimplex, seed)
	if err != nil {
		return 0, err
	}
	fr, err := f.Fractal(level, scale, 0)
	if err != nil {
		return 0, err
	}
	return fr.At(x, y), nil
}
