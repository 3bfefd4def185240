package config

import (
	"fmt"
	"image/color"
	"io"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/siohaza/terragen/pkg/noise"
	"github.com/siohaza/terragen/pkg/palette"
	"github.com/siohaza/terragen/pkg/terrain"
)

type Config struct {
	Generator GeneratorConfig `toml:"generator"`
	Bands     []BandConfig    `toml:"bands"`
	Output    OutputConfig    `toml:"output"`
	Server    ServerConfig    `toml:"server"`
	Script    ScriptConfig    `toml:"script"`
}

type GeneratorConfig struct {
	Seed  int64  `toml:"seed"`
	Basis string `toml:"basis"`

	// unset stays nil so an explicit zero reaches Validate
	Level  *int     `toml:"level"`
	Scale  *float64 `toml:"scale"`
	Height *float64 `toml:"height"`

	// zero is a meaningful value for these, so unset stays nil
	Sigma     *float64 `toml:"sigma"`
	Roughness *float64 `toml:"roughness"`
	Flatness  *float64 `toml:"flatness"`
	Water     *bool    `toml:"water"`
	Color     *bool    `toml:"color"`
	Blend     bool     `toml:"blend"`

	Width       int `toml:"width"`
	HeightCells int `toml:"height_cells"`
}

type BandConfig struct {
	Threshold float64 `toml:"threshold"`
	Color     []int   `toml:"color"`
}

type OutputConfig struct {
	Dir      string   `toml:"dir"`
	Name     string   `toml:"name"`
	Formats  []string `toml:"formats"`
	VXLDepth int      `toml:"vxl_depth"`
}

type ServerConfig struct {
	Name      string `toml:"name"`
	Port      int    `toml:"port"`
	MaxPeers  int    `toml:"max_peers"`
	ChunkSize int    `toml:"chunk_size"`
	LogToFile bool   `toml:"log_to_file"`

	// answers UDP probes on port+1
	Discovery *bool `toml:"discovery"`
}

type ScriptConfig struct {
	Preset string `toml:"preset"`
}

func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	config.applyDefaults()
	return &config, nil
}

// Default returns a configuration populated only with default values.
func Default() *Config {
	config := &Config{}
	config.applyDefaults()
	return config
}

func intPtr(v int) *int             { return &v }
func float64Ptr(v float64) *float64 { return &v }
func boolPtr(v bool) *bool          { return &v }

func (c *Config) applyDefaults() {
	defaults := terrain.DefaultParams()

	// generator defaults
	if c.Generator.Basis == "" {
		c.Generator.Basis = string(defaults.Basis)
	}
	if c.Generator.Level == nil {
		c.Generator.Level = intPtr(defaults.Level)
	}
	if c.Generator.Scale == nil {
		c.Generator.Scale = float64Ptr(defaults.Scale)
	}
	if c.Generator.Height == nil {
		c.Generator.Height = float64Ptr(defaults.Height)
	}
	if c.Generator.Sigma == nil {
		c.Generator.Sigma = float64Ptr(defaults.Sigma)
	}
	if c.Generator.Roughness == nil {
		c.Generator.Roughness = float64Ptr(defaults.Roughness)
	}
	if c.Generator.Flatness == nil {
		c.Generator.Flatness = float64Ptr(defaults.Flatness)
	}
	if c.Generator.Water == nil {
		c.Generator.Water = boolPtr(defaults.WaterEnabled)
	}
	if c.Generator.Color == nil {
		c.Generator.Color = boolPtr(defaults.ColorEnabled)
	}
	if c.Generator.Width == 0 {
		c.Generator.Width = 256
	}
	if c.Generator.HeightCells == 0 {
		c.Generator.HeightCells = 256
	}

	if len(c.Bands) == 0 {
		c.Bands = BandsToConfig(palette.DefaultBands(*c.Generator.Height))
	}

	// output defaults
	if c.Output.Dir == "" {
		c.Output.Dir = "out"
	}
	if c.Output.Name == "" {
		c.Output.Name = "terrain"
	}
	if len(c.Output.Formats) == 0 {
		c.Output.Formats = []string{"png", "vxl", "toml"}
	}
	if c.Output.VXLDepth == 0 {
		c.Output.VXLDepth = 64
	}

	// server defaults
	if c.Server.Name == "" {
		c.Server.Name = "terragen"
	}
	if c.Server.Discovery == nil {
		c.Server.Discovery = boolPtr(true)
	}
	if c.Server.Port == 0 {
		c.Server.Port = 32890
	}
	if c.Server.MaxPeers == 0 {
		c.Server.MaxPeers = 8
	}
	if c.Server.ChunkSize == 0 {
		c.Server.ChunkSize = 8192
	}
}

func (c *Config) Validate() error {
	if _, err := noise.ParseBasis(c.Generator.Basis); err != nil {
		return err
	}

	if err := terrain.ValidateGrid(c.Generator.Width, c.Generator.HeightCells); err != nil {
		return err
	}

	for i, b := range c.Bands {
		if len(b.Color) != 3 && len(b.Color) != 4 {
			return fmt.Errorf("bands[%d]: color needs 3 or 4 components, got %d", i, len(b.Color))
		}
		for _, v := range b.Color {
			if v < 0 || v > 255 {
				return fmt.Errorf("bands[%d]: color component %d outside 0..255", i, v)
			}
		}
	}

	for _, f := range c.Output.Formats {
		switch f {
		case "png", "vxl", "toml":
		default:
			return fmt.Errorf("unknown output format %q", f)
		}
	}

	if c.Output.VXLDepth < 2 || c.Output.VXLDepth > 256 {
		return fmt.Errorf("vxl_depth must be between 2 and 256")
	}

	if c.Server.Port <= 0 || c.Server.Port > 65534 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}

	if c.Server.ChunkSize <= 0 || c.Server.ChunkSize > 65535 {
		return fmt.Errorf("chunk_size must be between 1 and 65535")
	}

	return c.Params().Validate()
}

// Params converts the generator and band sections into pipeline parameters.
func (c *Config) Params() terrain.Params {
	g := c.Generator
	p := terrain.Params{
		Seed:  g.Seed,
		Basis: noise.Basis(g.Basis),
		Blend: g.Blend,
		Bands: BandsFromConfig(c.Bands),
	}
	if g.Level != nil {
		p.Level = *g.Level
	}
	if g.Scale != nil {
		p.Scale = *g.Scale
	}
	if g.Height != nil {
		p.Height = *g.Height
	}
	if g.Sigma != nil {
		p.Sigma = *g.Sigma
	}
	if g.Roughness != nil {
		p.Roughness = *g.Roughness
	}
	if g.Flatness != nil {
		p.Flatness = *g.Flatness
	}
	if g.Water != nil {
		p.WaterEnabled = *g.Water
	}
	if g.Color != nil {
		p.ColorEnabled = *g.Color
	}
	return p
}

// SetParams writes p back into the generator and band sections.
func (c *Config) SetParams(p terrain.Params) {
	c.Generator.Seed = p.Seed
	c.Generator.Basis = string(p.Basis)
	c.Generator.Level = intPtr(p.Level)
	c.Generator.Scale = float64Ptr(p.Scale)
	c.Generator.Height = float64Ptr(p.Height)
	c.Generator.Sigma = float64Ptr(p.Sigma)
	c.Generator.Roughness = float64Ptr(p.Roughness)
	c.Generator.Flatness = float64Ptr(p.Flatness)
	c.Generator.Water = boolPtr(p.WaterEnabled)
	c.Generator.Color = boolPtr(p.ColorEnabled)
	c.Generator.Blend = p.Blend
	c.Bands = BandsToConfig(p.Bands)
}

func BandsFromConfig(bands []BandConfig) palette.Bands {
	out := make(palette.Bands, 0, len(bands))
	for _, b := range bands {
		out = append(out, palette.Band{
			Threshold: b.Threshold,
			Color:     toRGBA(b.Color),
		})
	}
	return out
}

func BandsToConfig(bands palette.Bands) []BandConfig {
	out := make([]BandConfig, 0, len(bands))
	for _, b := range bands {
		c := []int{int(b.Color.R), int(b.Color.G), int(b.Color.B)}
		if b.Color.A != 255 {
			c = append(c, int(b.Color.A))
		}
		out = append(out, BandConfig{Threshold: b.Threshold, Color: c})
	}
	return out
}

func clampByte(v int) uint8 {
	if v < 0 {
		return 0
	}
	if v > 255 {
		return 255
	}
	return uint8(v)
}

func toRGBA(c []int) color.RGBA {
	out := color.RGBA{A: 255}
	if len(c) > 0 {
		out.R = clampByte(c[0])
	}
	if len(c) > 1 {
		out.G = clampByte(c[1])
	}
	if len(c) > 2 {
		out.B = clampByte(c[2])
	}
	if len(c) > 3 {
		out.A = clampByte(c[3])
	}
	return out
}

// Encode writes the configuration as TOML.
func (c *Config) Encode(w io.Writer) error {
	encoder := toml.NewEncoder(w)
	encoder.Indent = ""
	return encoder.Encode(c)
}
