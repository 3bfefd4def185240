// Package render turns terrain models into images and terminal previews.
package render

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	"golang.org/x/text/encoding/charmap"

	"github.com/siohaza/terragen/pkg/terrain"
)

// Image paints one pixel per cell; column is x and row is y.
func Image(m *terrain.Model) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, m.Width(), m.Height()))
	for row := 0; row < m.Height(); row++ {
		for col := 0; col < m.Width(); col++ {
			img.SetRGBA(col, row, m.Color(row, col))
		}
	}
	return img
}

func WritePNG(w io.Writer, m *terrain.Model) error {
	if err := png.Encode(w, Image(m)); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}

// ShadeRamp runs from lowest to highest land.
var ShadeRamp = []rune(" ░▒▓█")

const WaterGlyph = '≈'

// Text renders a shaded preview cols characters wide. Rows are halved to
// account for terminal glyph aspect.
func Text(m *terrain.Model, cols int) string {
	cols = max(1, min(cols, m.Width()))
	rows := max(1, int(float64(m.Height())*float64(cols)/float64(m.Width())/2+0.5))

	lo, hi := m.Min(), m.Max()
	var sb strings.Builder
	for r := 0; r < rows; r++ {
		row := (2*r + 1) * m.Height() / (2 * rows)
		for c := 0; c < cols; c++ {
			col := (2*c + 1) * m.Width() / (2 * cols)
			sb.WriteRune(glyph(m, row, col, lo, hi))
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

func glyph(m *terrain.Model, row, col int, lo, hi float64) rune {
	if m.IsWater(row, col) {
		return WaterGlyph
	}
	if hi <= lo {
		return ShadeRamp[0]
	}
	v := (m.Elevation(row, col) - lo) / (hi - lo)
	i := min(int(v*float64(len(ShadeRamp))), len(ShadeRamp)-1)
	return ShadeRamp[max(i, 0)]
}

// TextCP437 is Text encoded for DOS code page 437 terminals.
func TextCP437(m *terrain.Model, cols int) ([]byte, error) {
	out, err := charmap.CodePage437.NewEncoder().Bytes([]byte(Text(m, cols)))
	if err != nil {
		return nil, fmt.Errorf("failed to encode preview: %w", err)
	}
	return out, nil
}
