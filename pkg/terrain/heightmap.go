package terrain

import (
	"fmt"
	"math"
	"slices"
)

// Heightmap is a row-major grid of elevations. It is never modified once a
// generation has handed it out.
type Heightmap struct {
	width  int
	height int
	data   []float64
}

func newHeightmap(width, height int) *Heightmap {
	return &Heightmap{
		width:  width,
		height: height,
		data:   make([]float64, width*height),
	}
}

// NewHeightmap copies values (row-major, width*height entries).
func NewHeightmap(width, height int, values []float64) (*Heightmap, error) {
	if err := ValidateGrid(width, height); err != nil {
		return nil, err
	}
	if len(values) != width*height {
		return nil, fmt.Errorf("heightmap %dx%d needs %d values, got %d", width, height, width*height, len(values))
	}
	return &Heightmap{width: width, height: height, data: slices.Clone(values)}, nil
}

func (h *Heightmap) Width() int  { return h.width }
func (h *Heightmap) Height() int { return h.height }
func (h *Heightmap) Len() int    { return len(h.data) }

func (h *Heightmap) index(row, col int) int {
	return row*h.width + col
}

func (h *Heightmap) At(row, col int) float64 {
	return h.data[h.index(row, col)]
}

// Values returns a copy of the grid in row-major order.
func (h *Heightmap) Values() []float64 {
	return slices.Clone(h.data)
}

func (h *Heightmap) clone() *Heightmap {
	return &Heightmap{width: h.width, height: h.height, data: slices.Clone(h.data)}
}

func (h *Heightmap) Range() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, v := range h.data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

type Stats struct {
	Min      float64
	Max      float64
	Mean     float64
	Variance float64
}

func (h *Heightmap) Stats() Stats {
	var s Stats
	s.Min, s.Max = h.Range()

	n := float64(len(h.data))
	for _, v := range h.data {
		s.Mean += v
	}
	s.Mean /= n

	for _, v := range h.data {
		d := v - s.Mean
		s.Variance += d * d
	}
	s.Variance /= n
	return s
}

func (h *Heightmap) checkFinite() error {
	for i, v := range h.data {
		if !finite(v) {
			return fmt.Errorf("non-finite elevation %v at row %d col %d", v, i/h.width, i%h.width)
		}
	}
	return nil
}
