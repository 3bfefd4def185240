package terrain

import (
	"image/color"
	"slices"
	"time"
)

// Cell is the derived view of one grid position.
type Cell struct {
	Row       int
	Col       int
	Elevation float64
	Color     color.RGBA
	IsWater   bool
}

// Model is the immutable result of one pipeline run.
type Model struct {
	heightmap   *Heightmap
	colors      []color.RGBA
	water       []bool
	min         float64
	max         float64
	seaLevel    float64
	waterCells  int
	params      Params
	generatedAt time.Time
}

func (m *Model) Heightmap() *Heightmap  { return m.heightmap }
func (m *Model) Width() int             { return m.heightmap.width }
func (m *Model) Height() int            { return m.heightmap.height }
func (m *Model) Min() float64           { return m.min }
func (m *Model) Max() float64           { return m.max }
func (m *Model) WaterCells() int        { return m.waterCells }
func (m *Model) Seed() int64            { return m.params.Seed }
func (m *Model) GeneratedAt() time.Time { return m.generatedAt }

// SeaLevel is only meaningful when the run had water enabled.
func (m *Model) SeaLevel() float64 { return m.seaLevel }
func (m *Model) HasWater() bool    { return m.params.WaterEnabled }

// Params returns the normalised parameter snapshot the model was built from.
func (m *Model) Params() Params { return m.params.Clone() }

func (m *Model) Elevation(row, col int) float64 { return m.heightmap.At(row, col) }

func (m *Model) Color(row, col int) color.RGBA {
	return m.colors[m.heightmap.index(row, col)]
}

func (m *Model) IsWater(row, col int) bool {
	return m.water[m.heightmap.index(row, col)]
}

func (m *Model) Cell(row, col int) Cell {
	i := m.heightmap.index(row, col)
	return Cell{
		Row:       row,
		Col:       col,
		Elevation: m.heightmap.data[i],
		Color:     m.colors[i],
		IsWater:   m.water[i],
	}
}

func (m *Model) Colors() []color.RGBA { return slices.Clone(m.colors) }
func (m *Model) WaterMask() []bool    { return slices.Clone(m.water) }
