package lua

import (
	"fmt"
	"image/color"
	"math"

	"github.com/siohaza/terragen/pkg/noise"
	"github.com/siohaza/terragen/pkg/palette"
	"github.com/siohaza/terragen/pkg/terrain"
)

const (
	// PresetGlobal is the table a preset script assigns.
	PresetGlobal = "terrain"
	// ReseedFunction, if a preset defines it, maps the seed to the one used.
	ReseedFunction = "reseed"

	// maxExactSeed bounds seeds a Lua number holds without rounding.
	maxExactSeed = 1 << 53
)

// LoadPreset runs the script at path and overlays its terrain table on base.
// Fields the script leaves out keep their base values.
func LoadPreset(path string, base terrain.Params) (terrain.Params, error) {
	vm := NewVM()
	if err := vm.LoadFile(path); err != nil {
		return terrain.Params{}, err
	}
	return vm.Preset(base)
}

func LoadPresetString(code string, base terrain.Params) (terrain.Params, error) {
	vm := NewVM()
	if err := vm.LoadString(code); err != nil {
		return terrain.Params{}, err
	}
	return vm.Preset(base)
}

// Preset reads the terrain table left behind by an already executed script,
// then applies the reseed hook if the script defines one.
func (vm *VM) Preset(base terrain.Params) (terrain.Params, error) {
	hasTable := vm.HasGlobal(PresetGlobal)
	hasHook := vm.HasFunction(ReseedFunction)
	if !hasTable && !hasHook {
		return terrain.Params{}, fmt.Errorf("preset: script defines neither %s nor %s()", PresetGlobal, ReseedFunction)
	}

	p := base.Clone()
	if hasTable {
		if err := vm.presetTable(&p); err != nil {
			return terrain.Params{}, fmt.Errorf("preset: %w", err)
		}
	}
	if hasHook {
		if err := vm.reseed(&p); err != nil {
			return terrain.Params{}, fmt.Errorf("preset: %w", err)
		}
	}

	if err := p.Validate(); err != nil {
		return terrain.Params{}, fmt.Errorf("preset: %w", err)
	}
	return p, nil
}

// integral rejects values a Params integer field would silently truncate.
func integral(field string, v, limit float64) error {
	if v != math.Trunc(v) || math.IsInf(v, 0) {
		return &terrain.ParamError{Field: field, Value: v, Reason: "must be an integer"}
	}
	if math.Abs(v) > limit {
		return &terrain.ParamError{Field: field, Value: v, Reason: fmt.Sprintf("must be within ±%g", limit)}
	}
	return nil
}

func (vm *VM) reseed(p *terrain.Params) error {
	results, err := vm.CallFunctionWithReturn(ReseedFunction, 1, int(p.Seed))
	if err != nil {
		return err
	}
	v, ok := results[0].(float64)
	if !ok {
		return fmt.Errorf("%s() must return a number, got %T", ReseedFunction, results[0])
	}
	if err := integral("seed", v, maxExactSeed); err != nil {
		return err
	}
	p.Seed = int64(v)
	return nil
}

func (vm *VM) presetTable(p *terrain.Params) error {
	if err := vm.GetGlobalTable(PresetGlobal); err != nil {
		return err
	}
	defer vm.PopTable()

	numbers := []struct {
		key string
		set func(float64) error
	}{
		{"seed", func(v float64) error {
			if err := integral("seed", v, maxExactSeed); err != nil {
				return err
			}
			p.Seed = int64(v)
			return nil
		}},
		{"level", func(v float64) error {
			if err := integral("level", v, math.MaxInt32); err != nil {
				return err
			}
			p.Level = int(v)
			return nil
		}},
		{"scale", func(v float64) error { p.Scale = v; return nil }},
		{"height", func(v float64) error { p.Height = v; return nil }},
		{"sigma", func(v float64) error { p.Sigma = v; return nil }},
		{"roughness", func(v float64) error { p.Roughness = v; return nil }},
		{"flatness", func(v float64) error { p.Flatness = v; return nil }},
	}
	for _, n := range numbers {
		if !vm.TableHas(n.key) {
			continue
		}
		v, err := vm.GetTableNumber(n.key)
		if err != nil {
			return err
		}
		if err := n.set(v); err != nil {
			return err
		}
	}

	flags := []struct {
		key string
		set func(bool)
	}{
		{"water", func(v bool) { p.WaterEnabled = v }},
		{"color", func(v bool) { p.ColorEnabled = v }},
		{"blend", func(v bool) { p.Blend = v }},
	}
	for _, f := range flags {
		if !vm.TableHas(f.key) {
			continue
		}
		v, err := vm.GetTableBool(f.key)
		if err != nil {
			return err
		}
		f.set(v)
	}

	if vm.TableHas("basis") {
		s, err := vm.GetTableString("basis")
		if err != nil {
			return err
		}
		basis, err := noise.ParseBasis(s)
		if err != nil {
			return err
		}
		p.Basis = basis
	}

	if vm.TableHas("bands") {
		bands, err := vm.presetBands()
		if err != nil {
			return err
		}
		p.Bands = bands
	}

	return nil
}

func (vm *VM) presetBands() (palette.Bands, error) {
	var bands palette.Bands
	err := vm.EachTableEntry("bands", func(i int) error {
		threshold, err := vm.GetTableNumber("threshold")
		if err != nil {
			return fmt.Errorf("bands[%d]: %w", i, err)
		}
		c, err := vm.GetTableIntArray("color")
		if err != nil {
			return fmt.Errorf("bands[%d]: %w", i, err)
		}
		if len(c) != 3 && len(c) != 4 {
			return fmt.Errorf("bands[%d]: color needs 3 or 4 components", i)
		}

		rgba := color.RGBA{A: 255}
		for j, v := range c {
			if v < 0 || v > 255 {
				return fmt.Errorf("bands[%d]: color component %d outside 0..255", i, v)
			}
			switch j {
			case 0:
				rgba.R = uint8(v)
			case 1:
				rgba.G = uint8(v)
			case 2:
				rgba.B = uint8(v)
			case 3:
				rgba.A = uint8(v)
			}
		}
		bands = append(bands, palette.Band{Threshold: threshold, Color: rgba})
		return nil
	})
	return bands, err
}
