// classic gradient noise
// lattice and hashing after the genland generator by Tom Dobrowolski and Ken Silverman
// https://web.archive.org/web/20170223015419/http://moonedit.com/tom/vox1_en.htm#genland

package noise

import "math"

const (
	classicMask  = 255
	classicPlane = 9.5
)

type classic struct {
	perm   [512]uint8
	perm15 [512]uint8
}

type lcg struct {
	state uint32
}

func (r *lcg) next() uint32 {
	r.state = r.state*214013 + 2531011
	return (r.state >> 16) & 0x7FFF
}

func newClassic(seed uint32) *classic {
	c := &classic{}
	rng := &lcg{state: seed}

	for i := 255; i >= 0; i-- {
		c.perm[i] = uint8(i)
	}
	for i := 255; i > 0; i-- {
		j := (rng.next() * uint32(i+1)) >> 15
		c.perm[i], c.perm[j] = c.perm[j], c.perm[i]
	}
	for i := 255; i >= 0; i-- {
		c.perm[i+256] = c.perm[i]
	}
	for i := range c.perm {
		c.perm15[i] = c.perm[i] & 15
	}
	return c
}

func grad(h uint8, x, y, z float64) float64 {
	switch h {
	case 0, 12:
		return x + y
	case 1, 13:
		return -x + y
	case 2:
		return x - y
	case 3:
		return -x - y
	case 4:
		return x + z
	case 5:
		return -x + z
	case 6:
		return x - z
	case 7:
		return -x - z
	case 8:
		return y + z
	case 9:
		return -y + z
	case 10, 14:
		return y - z
	case 11, 15:
		return -y - z
	}
	return 0
}

func fade(t float64) float64 {
	return (3.0 - 2.0*t) * t * t
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

// Eval2 samples the lattice on a fixed z plane.
func (c *classic) Eval2(x, y float64) float64 {
	return c.eval3(x, y, classicPlane)
}

func (c *classic) eval3(x, y, z float64) float64 {
	fx, fy, fz := math.Floor(x), math.Floor(y), math.Floor(z)
	px, py, pz := x-fx, y-fy, z-fz

	x0 := int(fx) & classicMask
	y0 := int(fy) & classicMask
	z0 := int(fz) & classicMask
	x1 := (x0 + 1) & classicMask
	y1 := (y0 + 1) & classicMask
	z1 := (z0 + 1) & classicMask

	i := int(c.perm[x0])
	a00 := int(c.perm[i+y0])
	a01 := int(c.perm[i+y1])
	i = int(c.perm[x1])
	a10 := int(c.perm[i+y0])
	a11 := int(c.perm[i+y1])

	n000 := grad(c.perm15[a00+z0], px, py, pz)
	n100 := grad(c.perm15[a10+z0], px-1, py, pz)
	n010 := grad(c.perm15[a01+z0], px, py-1, pz)
	n110 := grad(c.perm15[a11+z0], px-1, py-1, pz)
	n001 := grad(c.perm15[a00+z1], px, py, pz-1)
	n101 := grad(c.perm15[a10+z1], px-1, py, pz-1)
	n011 := grad(c.perm15[a01+z1], px, py-1, pz-1)
	n111 := grad(c.perm15[a11+z1], px-1, py-1, pz-1)

	u, v, w := fade(px), fade(py), fade(pz)

	n00 := lerp(n000, n001, w)
	n10 := lerp(n100, n101, w)
	n01 := lerp(n010, n011, w)
	n11 := lerp(n110, n111, w)

	n0 := lerp(n00, n01, v)
	n1 := lerp(n10, n11, v)

	return lerp(n0, n1, u)
}
