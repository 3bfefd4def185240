package lua

import (
	"image/color"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siohaza/terragen/pkg/noise"
	"github.com/siohaza/terragen/pkg/terrain"
)

func TestSandboxRemovesUnsafeLibraries(t *testing.T) {
	vm := NewVM()
	for _, name := range []string{"io", "os", "debug", "dofile", "loadfile"} {
		assert.False(t, vm.HasGlobal(name), name)
	}
	assert.True(t, vm.HasGlobal("math"))
	assert.Error(t, vm.LoadString(`os.exit(1)`))
}

func TestHsluvBuiltin(t *testing.T) {
	vm := NewVM()

	white, err := vm.CallFunctionWithReturn("hsluv", 3, 0.0, 0.0, 100.0)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{255.0, 255.0, 255.0}, white)

	black, err := vm.CallFunctionWithReturn("hsluv", 3, 0.0, 0.0, 0.0)
	require.NoError(t, err)
	assert.Equal(t, []interface{}{0.0, 0.0, 0.0}, black)

	_, err = vm.CallFunctionWithReturn("missing", 1)
	assert.Error(t, err)
}

func TestNoiseBuiltin(t *testing.T) {
	vm := NewVM()

	results, err := vm.CallFunctionWithReturn("noise", 1, 3.5, 7.25, 99, 4, 16)
	require.NoError(t, err)

	want, err := noise.Sample(3.5, 7.25, 99, 4, 16)
	require.NoError(t, err)
	require.IsType(t, 0.0, results[0])
	assert.InDelta(t, want, results[0].(float64), 1e-12)

	assert.Error(t, vm.LoadString(`noise(0, 0, 1, 99)`))
}

func TestPresetOverlaysBase(t *testing.T) {
	base := terrain.DefaultParams()
	p, err := LoadPresetString(`
terrain = {
	seed = 1234,
	basis = "perlin",
	level = 8,
	flatness = 0,
	water = false,
}`, base)
	require.NoError(t, err)

	assert.Equal(t, int64(1234), p.Seed)
	assert.Equal(t, noise.BasisPerlin, p.Basis)
	assert.Equal(t, 8, p.Level)
	assert.Zero(t, p.Flatness)
	assert.False(t, p.WaterEnabled)

	assert.Equal(t, base.Scale, p.Scale)
	assert.Equal(t, base.Sigma, p.Sigma)
	assert.Equal(t, base.Bands, p.Bands)
}

func TestPresetBands(t *testing.T) {
	p, err := LoadPresetString(`
local bands = {}
for i = 1, 8 do
	local r, g, b = hsluv(i * 40, 80, 50)
	bands[i] = { threshold = (i - 5) * 20, color = { r, g, b } }
end
bands[8].color = { 10, 20, 30, 128 }
terrain = { height = 80, bands = bands }
`, terrain.DefaultParams())
	require.NoError(t, err)

	require.Len(t, p.Bands, 8)
	assert.Equal(t, -80.0, p.Bands[0].Threshold)
	assert.Equal(t, 60.0, p.Bands[7].Threshold)
	assert.Equal(t, color.RGBA{10, 20, 30, 128}, p.Bands[7].Color)
	assert.Equal(t, uint8(255), p.Bands[0].Color.A)
}

func TestPresetErrors(t *testing.T) {
	base := terrain.DefaultParams()
	tests := []struct {
		name string
		code string
	}{
		{"missing table", `x = 1`},
		{"wrong type", `terrain = { level = "six" }`},
		{"bad basis", `terrain = { basis = "voronoi" }`},
		{"invalid level", `terrain = { level = 0 }`},
		{"band count", `terrain = { bands = { { threshold = 0, color = { 1, 2, 3 } } } }`},
		{"band color", `terrain = { bands = { { threshold = 0, color = { 1, 2 } } } }`},
		{"syntax", `terrain = {`},
		{"not a table", `terrain = 5`},
		{"reseed returns string", `function reseed(s) return "x" end`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPresetString(tt.code, base)
			assert.Error(t, err)
		})
	}

	_, err := LoadPresetString(`terrain = { roughness = 2 }`, base)
	assert.ErrorIs(t, err, terrain.ErrInvalidParameter)
}

func TestLoadPresetFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "islands.lua")
	require.NoError(t, os.WriteFile(path, []byte(`terrain = { scale = 32 }`), 0o644))

	p, err := LoadPreset(path, terrain.DefaultParams())
	require.NoError(t, err)
	assert.Equal(t, 32.0, p.Scale)

	_, err = LoadPreset(filepath.Join(t.TempDir(), "missing.lua"), terrain.DefaultParams())
	assert.Error(t, err)
}

func TestPresetRejectsFractionalIntegers(t *testing.T) {
	base := terrain.DefaultParams()
	tests := []struct {
		name  string
		code  string
		field string
	}{
		{"fractional level", `terrain = { level = 1.7 }`, "level"},
		{"fractional seed", `terrain = { seed = 2.5 }`, "seed"},
		{"seed beyond exact range", `terrain = { seed = 2^60 }`, "seed"},
		{"fractional reseed", `function reseed(s) return s + 0.5 end`, "seed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPresetString(tt.code, base)
			require.ErrorIs(t, err, terrain.ErrInvalidParameter)

			var perr *terrain.ParamError
			require.ErrorAs(t, err, &perr)
			assert.Equal(t, tt.field, perr.Field)
		})
	}

	p, err := LoadPresetString(`terrain = { seed = -9007199254740992, level = 3.0 }`, base)
	require.NoError(t, err)
	assert.Equal(t, int64(-1<<53), p.Seed)
	assert.Equal(t, 3, p.Level)
}

func TestPresetReseedHook(t *testing.T) {
	base := terrain.DefaultParams()
	base.Seed = 10

	p, err := LoadPresetString(`function reseed(s) return s * 3 + 1 end`, base)
	require.NoError(t, err)
	assert.Equal(t, int64(31), p.Seed)
	assert.Equal(t, base.Level, p.Level)

	// the hook sees the seed the terrain table assigned
	p, err = LoadPresetString(`
terrain = { seed = 5, scale = 20 }
function reseed(s) return s + 100 end
`, base)
	require.NoError(t, err)
	assert.Equal(t, int64(105), p.Seed)
	assert.Equal(t, 20.0, p.Scale)
}
