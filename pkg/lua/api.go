package lua

import (
	"math"

	"github.com/Shopify/go-lua"
	"github.com/hsluv/hsluv-go"

	"github.com/siohaza/terragen/pkg/noise"
)

func registerBuiltins(vm *VM) {
	vm.RegisterFunction("hsluv", hsluvToRGB)
	vm.RegisterFunction("noise", sampleNoise)
}

// hsluv(h, s, l) returns the colour as three bytes r, g, b.
func hsluvToRGB(state *lua.State) int {
	h := lua.CheckNumber(state, 1)
	s := lua.CheckNumber(state, 2)
	l := lua.CheckNumber(state, 3)

	r, g, b := hsluv.HsluvToRGB(h, s, l)
	state.PushInteger(toByte(r))
	state.PushInteger(toByte(g))
	state.PushInteger(toByte(b))
	return 3
}

// noise(x, y, seed [, level [, scale]]) samples normalised fractal noise.
func sampleNoise(state *lua.State) int {
	x := lua.CheckNumber(state, 1)
	y := lua.CheckNumber(state, 2)
	seed := lua.CheckNumber(state, 3)
	level := lua.OptInteger(state, 4, 1)
	scale := lua.OptNumber(state, 5, 1)

	v, err := noise.Sample(x, y, int64(seed), level, scale)
	if err != nil {
		lua.Errorf(state, "%s", err.Error())
		return 0
	}
	state.PushNumber(v)
	return 1
}

func toByte(v float64) int {
	return int(math.Round(math.Max(0, math.Min(1, v)) * 255))
}
