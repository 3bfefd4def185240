// Package mapmeta reads and writes the TOML sidecar stored next to exported
// terrain. The sidecar carries everything needed to regenerate the model.
package mapmeta

import (
	"bytes"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/siohaza/terragen/pkg/config"
	"github.com/siohaza/terragen/pkg/terrain"
)

type Metadata struct {
	Metadata  MetadataInfo           `toml:"metadata"`
	Generator config.GeneratorConfig `toml:"generator"`
	Bands     []config.BandConfig    `toml:"bands"`
	Stats     Stats                  `toml:"stats"`
	Files     map[string]string      `toml:"files,omitempty"`
}

type MetadataInfo struct {
	Name        string `toml:"name"`
	Version     string `toml:"version,omitempty"`
	Author      string `toml:"author,omitempty"`
	Description string `toml:"description,omitempty"`
}

type Stats struct {
	Min         float64   `toml:"min"`
	Max         float64   `toml:"max"`
	Mean        float64   `toml:"mean"`
	Variance    float64   `toml:"variance"`
	SeaLevel    float64   `toml:"sea_level"`
	WaterCells  int       `toml:"water_cells"`
	GeneratedAt time.Time `toml:"generated_at"`
}

// FromModel describes m under the given name.
func FromModel(name string, m *terrain.Model) *Metadata {
	cfg := config.Config{}
	cfg.SetParams(m.Params())
	cfg.Generator.Width = m.Width()
	cfg.Generator.HeightCells = m.Height()

	st := m.Heightmap().Stats()
	return &Metadata{
		Metadata:  MetadataInfo{Name: name},
		Generator: cfg.Generator,
		Bands:     cfg.Bands,
		Stats: Stats{
			Min:         m.Min(),
			Max:         m.Max(),
			Mean:        st.Mean,
			Variance:    st.Variance,
			SeaLevel:    m.SeaLevel(),
			WaterCells:  m.WaterCells(),
			GeneratedAt: m.GeneratedAt().UTC(),
		},
	}
}

func (m *Metadata) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(m); err != nil {
		return nil, fmt.Errorf("failed to encode metadata: %w", err)
	}
	return buf.Bytes(), nil
}

func Parse(content []byte) (*Metadata, error) {
	var meta Metadata
	if _, err := toml.Decode(normalizeInput(string(content)), &meta); err != nil {
		return nil, fmt.Errorf("failed to parse metadata: %w", err)
	}

	if meta.Metadata.Name == "" {
		return nil, fmt.Errorf("no name found")
	}

	return &meta, nil
}

// Params returns the generator parameters recorded in the sidecar.
func (m *Metadata) Params() (terrain.Params, error) {
	cfg := config.Config{Generator: m.Generator, Bands: m.Bands}
	p := cfg.Params()
	if err := p.Validate(); err != nil {
		return terrain.Params{}, err
	}
	return p, nil
}

// Grid returns the recorded width and height in cells.
func (m *Metadata) Grid() (width, height int, err error) {
	width, height = m.Generator.Width, m.Generator.HeightCells
	if err := terrain.ValidateGrid(width, height); err != nil {
		return 0, 0, err
	}
	return width, height, nil
}

func normalizeInput(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = strings.TrimPrefix(s, "\ufeff")
	return s
}
