// Package export writes generated terrain to a filesystem as PNG, VXL and a
// TOML sidecar.
package export

import (
	"bytes"
	"fmt"
	"log/slog"
	"math"

	"gopkg.in/src-d/go-billy.v4"
	"gopkg.in/src-d/go-billy.v4/util"

	"github.com/siohaza/terragen/internal/mapmeta"
	"github.com/siohaza/terragen/internal/render"
	"github.com/siohaza/terragen/pkg/terrain"
	"github.com/siohaza/terragen/pkg/vxl"
)

const (
	FormatPNG  = "png"
	FormatVXL  = "vxl"
	FormatTOML = "toml"
)

// Heightfield lays the model into a voxel volume of the given depth. The
// elevation range maps onto z in [0, depth-2] with the highest cell at z=0;
// a flat model sits at depth-2.
func Heightfield(m *terrain.Model, depth int) (*vxl.Heightfield, error) {
	h, err := vxl.NewHeightfield(m.Width(), m.Height(), depth)
	if err != nil {
		return nil, err
	}

	lo, hi := m.Min(), m.Max()
	span := float64(depth - 2)
	for row := 0; row < m.Height(); row++ {
		for col := 0; col < m.Width(); col++ {
			t := 0.0
			if hi > lo {
				t = (m.Elevation(row, col) - lo) / (hi - lo)
			}
			top := depth - 2 - int(math.Round(t*span))
			c := m.Color(row, col)
			h.Set(col, row, top, uint32(c.R)<<16|uint32(c.G)<<8|uint32(c.B))
		}
	}
	return h, nil
}

type Writer struct {
	fs     billy.Filesystem
	depth  int
	logger *slog.Logger
}

func NewWriter(fs billy.Filesystem, depth int, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Writer{fs: fs, depth: depth, logger: logger}
}

// Write stores m under name in every requested format and returns the
// paths written. The sidecar is written last so it can list the others.
func (w *Writer) Write(name string, m *terrain.Model, formats []string) ([]string, error) {
	files := make(map[string]string)
	var written []string
	wantSidecar := false

	for _, format := range formats {
		path := w.fs.Join(name + "." + format)

		var data []byte
		var err error
		switch format {
		case FormatPNG:
			data, err = w.png(m)
		case FormatVXL:
			data, err = w.vxl(m)
		case FormatTOML:
			wantSidecar = true
			continue
		default:
			return written, fmt.Errorf("unknown output format %q", format)
		}
		if err != nil {
			return written, err
		}

		if err := util.WriteFile(w.fs, path, data, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		files[format] = path
		written = append(written, path)
		w.logger.Debug("wrote terrain file", "path", path, "bytes", len(data))
	}

	if wantSidecar {
		path := w.fs.Join(name + "." + FormatTOML)
		meta := mapmeta.FromModel(name, m)
		meta.Files = files
		data, err := meta.Encode()
		if err != nil {
			return written, err
		}
		if err := util.WriteFile(w.fs, path, data, 0o644); err != nil {
			return written, fmt.Errorf("failed to write %s: %w", path, err)
		}
		written = append(written, path)
		w.logger.Debug("wrote terrain file", "path", path, "bytes", len(data))
	}

	w.logger.Info("terrain exported", "name", name, "files", len(written))
	return written, nil
}

func (w *Writer) png(m *terrain.Model) ([]byte, error) {
	var buf bytes.Buffer
	if err := render.WritePNG(&buf, m); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (w *Writer) vxl(m *terrain.Model) ([]byte, error) {
	h, err := Heightfield(m, w.depth)
	if err != nil {
		return nil, fmt.Errorf("failed to build heightfield: %w", err)
	}
	data, err := h.Encode()
	if err != nil {
		return nil, fmt.Errorf("failed to encode vxl: %w", err)
	}
	return data, nil
}
