package terrain

import "context"

// SeaLevel is the midpoint between the lowest and highest elevation.
func SeaLevel(hm *Heightmap) float64 {
	lo, hi := hm.Range()
	return lo + (hi-lo)/2
}

// ApplyWater flags every cell at or below sea level and clamps it to sea
// level. The input heightmap is never modified; when water is disabled it
// is returned as is with an all-false mask.
func ApplyWater(hm *Heightmap, enabled bool) (*Heightmap, []bool, float64) {
	r := &run{ctx: context.Background(), batchRows: DefaultBatchRows}
	out, mask, sea, _ := r.water(hm, enabled)
	return out, mask, sea
}

func (r *run) water(hm *Heightmap, enabled bool) (*Heightmap, []bool, float64, error) {
	mask := make([]bool, len(hm.data))
	if !enabled {
		return hm, mask, 0, nil
	}

	sea := SeaLevel(hm)
	out := hm.clone()
	w := out.width
	err := r.rows(StageWater, out.height, func(row int) {
		base := row * w
		for col := 0; col < w; col++ {
			i := base + col
			if out.data[i] <= sea {
				out.data[i] = sea
				mask[i] = true
			}
		}
	})
	if err != nil {
		return nil, nil, 0, err
	}
	return out, mask, sea, nil
}
