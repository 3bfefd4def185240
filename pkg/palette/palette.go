// Package palette maps elevations onto colours through ordered threshold bands.
package palette

import (
	"image/color"
	"math"
	"slices"
	"sort"

	"github.com/hsluv/hsluv-go"
)

// BandCount is the number of bands a generator palette carries.
const BandCount = 8

type Band struct {
	Threshold float64
	Color     color.RGBA
}

type Bands []Band

var defaultFractions = [BandCount]float64{-1, -0.35, -0.08, 0, 0.06, 0.3, 0.55, 0.8}

var defaultColors = [BandCount]color.RGBA{
	{R: 12, G: 36, B: 92, A: 255},    // deep water
	{R: 28, G: 72, B: 150, A: 255},   // water
	{R: 64, G: 128, B: 190, A: 255},  // shallows
	{R: 214, G: 200, B: 142, A: 255}, // sand
	{R: 88, G: 150, B: 62, A: 255},   // grass
	{R: 40, G: 98, B: 44, A: 255},    // forest
	{R: 120, G: 110, B: 100, A: 255}, // rock
	{R: 245, G: 245, B: 250, A: 255}, // snow
}

// DefaultBands lays the stock palette over [-height, height].
func DefaultBands(height float64) Bands {
	bands := make(Bands, BandCount)
	for i := range bands {
		bands[i] = Band{
			Threshold: defaultFractions[i] * height,
			Color:     defaultColors[i],
		}
	}
	return bands
}

// Normalize returns a copy sorted ascending by threshold. Bands sharing a
// threshold keep their relative order.
func Normalize(bands Bands) Bands {
	out := slices.Clone(bands)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Threshold < out[j].Threshold
	})
	return out
}

func (b Bands) Sorted() bool {
	return sort.SliceIsSorted(b, func(i, j int) bool {
		return b[i].Threshold < b[j].Threshold
	})
}

// Index returns the highest band whose threshold is <= elevation. On equal
// thresholds the later band wins; below every threshold it clamps to 0.
// b must be sorted.
func (b Bands) Index(elevation float64) int {
	i := sort.Search(len(b), func(i int) bool {
		return b[i].Threshold > elevation
	}) - 1
	if i < 0 {
		return 0
	}
	return i
}

// Greyscale maps elevation linearly from lo (black) to hi (white). A flat
// range maps to black.
func Greyscale(elevation, lo, hi float64) color.RGBA {
	v := 0.0
	if hi > lo {
		v = (elevation - lo) / (hi - lo)
	}
	v = math.Max(0, math.Min(1, v))
	g := uint8(math.Round(v * 255))
	return color.RGBA{R: g, G: g, B: g, A: 255}
}

// ColorFor colours a single elevation. bands must already be normalised.
func ColorFor(elevation float64, bands Bands, enabled bool, lo, hi float64) color.RGBA {
	if !enabled || len(bands) == 0 {
		return Greyscale(elevation, lo, hi)
	}
	return bands[bands.Index(elevation)].Color
}

// Mapper is a ColorFor bound to one normalised palette and elevation range.
type Mapper struct {
	bands   Bands
	enabled bool
	blend   bool
	lo, hi  float64
}

func NewMapper(bands Bands, enabled, blend bool, lo, hi float64) *Mapper {
	return &Mapper{
		bands:   Normalize(bands),
		enabled: enabled,
		blend:   blend,
		lo:      lo,
		hi:      hi,
	}
}

func (m *Mapper) Bands() Bands { return slices.Clone(m.bands) }

func (m *Mapper) ColorFor(elevation float64) color.RGBA {
	if !m.enabled || len(m.bands) == 0 {
		return Greyscale(elevation, m.lo, m.hi)
	}

	i := m.bands.Index(elevation)
	c := m.bands[i].Color
	if !m.blend || i+1 >= len(m.bands) || elevation < m.bands[i].Threshold {
		return c
	}

	gap := m.bands[i+1].Threshold - m.bands[i].Threshold
	if gap <= 0 {
		return c
	}
	return Blend(c, m.bands[i+1].Color, (elevation-m.bands[i].Threshold)/gap)
}

// Blend interpolates two colours in HSLuv space, taking the short way round
// the hue circle. Alpha is interpolated linearly.
func Blend(a, b color.RGBA, t float64) color.RGBA {
	t = math.Max(0, math.Min(1, t))

	h1, s1, l1 := hsluv.HsluvFromRGB(float64(a.R)/255, float64(a.G)/255, float64(a.B)/255)
	h2, s2, l2 := hsluv.HsluvFromRGB(float64(b.R)/255, float64(b.G)/255, float64(b.B)/255)

	dh := h2 - h1
	if dh > 180 {
		dh -= 360
	} else if dh < -180 {
		dh += 360
	}
	h := math.Mod(h1+dh*t+360, 360)

	r, g, bl := hsluv.HsluvToRGB(h, s1+(s2-s1)*t, l1+(l2-l1)*t)
	return color.RGBA{
		R: toByte(r),
		G: toByte(g),
		B: toByte(bl),
		A: uint8(math.Round(float64(a.A) + (float64(b.A)-float64(a.A))*t)),
	}
}

func toByte(v float64) uint8 {
	return uint8(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
