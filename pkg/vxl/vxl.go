// Package vxl encodes heightfields in the column-span voxel map format.
package vxl

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

const (
	MaxDepth     = 256
	DefaultColor = 0x674028

	colorMark = 0x7F000000
)

var ErrMalformed = errors.New("malformed vxl data")

type span struct {
	length     uint8
	colorStart uint8
	colorEnd   uint8
	airStart   uint8
}

func (s span) dataLength() int {
	if s.length > 0 {
		return int(s.length) * 4
	}
	return (int(s.colorEnd) + 2 - int(s.colorStart)) * 4
}

func readSpan(data []byte, offset int) span {
	return span{
		length:     data[offset],
		colorStart: data[offset+1],
		colorEnd:   data[offset+2],
		airStart:   data[offset+3],
	}
}

// Heightfield is a map with exactly one solid run per column, from Top down
// to the bottom of the volume. z=0 is the sky.
type Heightfield struct {
	Width  int
	Height int
	Depth  int
	Top    []int
	Color  []uint32
}

func NewHeightfield(width, height, depth int) (*Heightfield, error) {
	h := &Heightfield{
		Width:  width,
		Height: height,
		Depth:  depth,
		Top:    make([]int, width*height),
		Color:  make([]uint32, width*height),
	}
	if err := h.Validate(); err != nil {
		return nil, err
	}
	for i := range h.Top {
		h.Top[i] = depth - 1
		h.Color[i] = DefaultColor
	}
	return h, nil
}

func (h *Heightfield) Validate() error {
	if h.Width <= 0 || h.Height <= 0 {
		return fmt.Errorf("invalid dimensions %dx%d", h.Width, h.Height)
	}
	if h.Depth < 2 || h.Depth > MaxDepth {
		return fmt.Errorf("depth must be between 2 and %d, got %d", MaxDepth, h.Depth)
	}
	n := h.Width * h.Height
	if len(h.Top) != n || len(h.Color) != n {
		return fmt.Errorf("column data length mismatch: want %d", n)
	}
	for i, z := range h.Top {
		if z < 0 || z >= h.Depth {
			return fmt.Errorf("column %d: top %d outside 0..%d", i, z, h.Depth-1)
		}
	}
	return nil
}

func (h *Heightfield) index(x, y int) int { return x + y*h.Width }

func (h *Heightfield) At(x, y int) (top int, color uint32) {
	i := h.index(x, y)
	return h.Top[i], h.Color[i]
}

func (h *Heightfield) Set(x, y, top int, color uint32) {
	i := h.index(x, y)
	h.Top[i] = top
	h.Color[i] = color & 0xFFFFFF
}

// exposedEnd returns the deepest z in column (x, y) that has air beside it.
// Columns beyond the map edge count as solid.
func (h *Heightfield) exposedEnd(x, y int) int {
	top := h.Top[h.index(x, y)]
	end := top
	neighbors := [4][2]int{{x + 1, y}, {x - 1, y}, {x, y + 1}, {x, y - 1}}
	for _, n := range neighbors {
		if n[0] < 0 || n[1] < 0 || n[0] >= h.Width || n[1] >= h.Height {
			continue
		}
		if nt := h.Top[h.index(n[0], n[1])] - 1; nt > end {
			end = nt
		}
	}
	return min(end, h.Depth-1)
}

// Encode writes every column as a single terminal span covering the surface
// voxel and any side voxels exposed to a lower neighbour.
func (h *Heightfield) Encode() ([]byte, error) {
	if err := h.Validate(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	for y := 0; y < h.Height; y++ {
		for x := 0; x < h.Width; x++ {
			if err := h.writeColumn(x, y, &buf); err != nil {
				return nil, err
			}
		}
	}
	return buf.Bytes(), nil
}

func (h *Heightfield) writeColumn(x, y int, w io.Writer) error {
	top, color := h.At(x, y)
	end := h.exposedEnd(x, y)

	s := span{
		length:     0,
		colorStart: uint8(top),
		colorEnd:   uint8(end),
		airStart:   0,
	}
	if err := binary.Write(w, binary.LittleEndian, s); err != nil {
		return err
	}

	for z := top; z <= end; z++ {
		if err := binary.Write(w, binary.LittleEndian, color&0xFFFFFF|colorMark); err != nil {
			return err
		}
	}
	return nil
}

func (h *Heightfield) WriteCompressed(w io.Writer) error {
	data, err := h.Encode()
	if err != nil {
		return err
	}

	zw := zlib.NewWriter(w)
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		return err
	}
	return zw.Close()
}

// Decode reads width*height columns. The top of a column is the first
// coloured voxel of its first span; deeper spans are skipped.
func Decode(width, height, depth int, data []byte) (*Heightfield, error) {
	h := &Heightfield{
		Width:  width,
		Height: height,
		Depth:  depth,
		Top:    make([]int, width*height),
		Color:  make([]uint32, width*height),
	}

	offset := 0
	for i := 0; i < width*height; i++ {
		first := true
		for {
			if offset+4 > len(data) {
				return nil, fmt.Errorf("%w: unexpected end of data at column %d", ErrMalformed, i)
			}
			s := readSpan(data, offset)
			length := s.dataLength()
			if length < 4 || offset+length > len(data) {
				return nil, fmt.Errorf("%w: span exceeds data length at column %d", ErrMalformed, i)
			}

			if first {
				h.Top[i] = int(s.colorStart)
				if length >= 8 {
					h.Color[i] = binary.LittleEndian.Uint32(data[offset+4:]) & 0xFFFFFF
				}
				first = false
			}

			offset += length
			if s.length == 0 {
				break
			}
		}
	}

	if offset != len(data) {
		return nil, fmt.Errorf("%w: %d trailing bytes", ErrMalformed, len(data)-offset)
	}
	if err := h.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return h, nil
}

func DecodeCompressed(width, height, depth int, r io.Reader) (*Heightfield, error) {
	zr, err := zlib.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to open zlib stream: %w", err)
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress map: %w", err)
	}
	return Decode(width, height, depth, data)
}

// Size infers the side length and depth of a square map from its spans.
func Size(data []byte) (size, depth int, err error) {
	offset := 0
	columns := 0
	maxDepth := 0

	for offset+4 <= len(data) {
		s := readSpan(data, offset)

		if int(s.colorEnd)+1 > maxDepth {
			maxDepth = int(s.colorEnd) + 1
		}

		if s.length == 0 {
			columns++
		}

		length := s.dataLength()
		if length < 4 {
			return 0, 0, fmt.Errorf("%w: empty span", ErrMalformed)
		}
		offset += length
		if offset > len(data) {
			return 0, 0, fmt.Errorf("%w: span exceeds data length", ErrMalformed)
		}
	}

	if columns == 0 {
		return 0, 0, fmt.Errorf("%w: no columns", ErrMalformed)
	}

	depth = 1 << int(math.Ceil(math.Log2(float64(max(maxDepth, 2)))))
	size = int(math.Sqrt(float64(columns)))
	return size, depth, nil
}
