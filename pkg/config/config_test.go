package config

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siohaza/terragen/pkg/noise"
	"github.com/siohaza/terragen/pkg/palette"
	"github.com/siohaza/terragen/pkg/terrain"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "simplex", cfg.Generator.Basis)
	assert.Equal(t, 256, cfg.Generator.Width)
	assert.Equal(t, 256, cfg.Generator.HeightCells)
	assert.Len(t, cfg.Bands, palette.BandCount)
	assert.Equal(t, []string{"png", "vxl", "toml"}, cfg.Output.Formats)
	assert.Equal(t, 8192, cfg.Server.ChunkSize)

	p := cfg.Params()
	def := terrain.DefaultParams()
	assert.Equal(t, def.Level, p.Level)
	assert.Equal(t, def.Sigma, p.Sigma)
	assert.Equal(t, def.Roughness, p.Roughness)
	assert.Equal(t, def.Flatness, p.Flatness)
	assert.True(t, p.WaterEnabled)
	assert.True(t, p.ColorEnabled)
}

func TestParseKeepsExplicitZero(t *testing.T) {
	cfg, err := Parse([]byte(`
[generator]
seed = 42
basis = "perlin"
sigma = 0.0
flatness = 0.0
water = false
`))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	p := cfg.Params()
	assert.Equal(t, int64(42), p.Seed)
	assert.Equal(t, noise.BasisPerlin, p.Basis)
	assert.Zero(t, p.Sigma)
	assert.Zero(t, p.Flatness)
	assert.False(t, p.WaterEnabled)
	assert.True(t, p.ColorEnabled)
}

func TestParseRejectsExplicitZero(t *testing.T) {
	tests := []struct {
		name  string
		toml  string
		field string
	}{
		{"level", "[generator]\nlevel = 0\n", "level"},
		{"scale", "[generator]\nscale = 0.0\n", "scale"},
		{"height", "[generator]\nheight = 0.0\n", "height"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := Parse([]byte(tt.toml))
			require.NoError(t, err)

			err = cfg.Validate()
			require.ErrorIs(t, err, terrain.ErrInvalidParameter)
			var perr *terrain.ParamError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.field, perr.Field)
		})
	}
}

func TestParseBands(t *testing.T) {
	cfg, err := Parse([]byte(`
[generator]
height = 10.0

[[bands]]
threshold = -10.0
color = [0, 0, 128]

[[bands]]
threshold = 0.0
color = [240, 220, 160, 200]
`))
	require.NoError(t, err)
	require.Len(t, cfg.Bands, 2)

	bands := BandsFromConfig(cfg.Bands)
	assert.Equal(t, color.RGBA{0, 0, 128, 255}, bands[0].Color)
	assert.Equal(t, color.RGBA{240, 220, 160, 200}, bands[1].Color)

	// colour mapping needs exactly eight bands
	assert.ErrorIs(t, cfg.Validate(), terrain.ErrInvalidParameter)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"basis", func(c *Config) { c.Generator.Basis = "worley" }},
		{"width", func(c *Config) { c.Generator.Width = -1 }},
		{"grid too large", func(c *Config) { c.Generator.HeightCells = terrain.MaxGridSize + 1 }},
		{"level", func(c *Config) { c.Generator.Level = intPtr(40) }},
		{"band color", func(c *Config) { c.Bands[0].Color = []int{1, 2} }},
		{"band component", func(c *Config) { c.Bands[0].Color = []int{1, 2, 300} }},
		{"format", func(c *Config) { c.Output.Formats = []string{"gif"} }},
		{"depth", func(c *Config) { c.Output.VXLDepth = 1 }},
		{"port", func(c *Config) { c.Server.Port = 70000 }},
		{"chunk", func(c *Config) { c.Server.ChunkSize = -5 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSetParamsRoundTrip(t *testing.T) {
	p := terrain.DefaultParams()
	p.Seed = -7
	p.Basis = noise.BasisClassic
	p.Sigma = 0
	p.Blend = true

	cfg := Default()
	cfg.SetParams(p)

	var buf bytes.Buffer
	require.NoError(t, cfg.Encode(&buf))

	parsed, err := Parse(buf.Bytes())
	require.NoError(t, err)
	require.NoError(t, parsed.Validate())
	assert.Equal(t, p, parsed.Params())
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "terragen.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\nport = 4000\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 4000, cfg.Server.Port)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
