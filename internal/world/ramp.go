package world

import (
	"github.com/go-theft-craft/voxel/internal/terrain"
)

// smoothRamps raises paved columns until no two adjacent paved columns in
// the chunk differ by more than one block. Neighbors outside the chunk are
// recomputed from the terrain and act as fixed heights.
func (c *Chunk) smoothRamps(t *terrain.Terrain, cols []column) {
	cfg := t.Config()
	S := c.size
	ox, oz := c.cx*S, c.cz*S

	tops := make([]int, S*S)
	for i, col := range cols {
		if col.road.Paved {
			tops[i] = col.height
		}
	}

	// Heights of paved columns bordering the chunk, keyed by local coords.
	edge := make(map[[2]int]int)
	for i := -1; i <= S; i++ {
		for _, p := range [][2]int{{i, -1}, {i, S}, {-1, i}, {S, i}} {
			if _, ok := edge[p]; ok {
				continue
			}
			if h, r := t.Column(ox+p[0], oz+p[1]); r.Paved {
				edge[p] = h
			}
		}
	}

	neighborTop := func(x, z int) (int, bool) {
		if x >= 0 && x < S && z >= 0 && z < S {
			if !cols[z*S+x].road.Paved {
				return 0, false
			}
			return tops[z*S+x], true
		}
		h, ok := edge[[2]int{x, z}]
		return h, ok
	}

	// A column is raised to one below its highest paved neighbor, not level
	// with it, so a climb reads as one-block steps.
	for changed := true; changed; {
		changed = false
		for z := 0; z < S; z++ {
			for x := 0; x < S; x++ {
				i := z*S + x
				if !cols[i].road.Paved {
					continue
				}
				for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
					nh, ok := neighborTop(x+d[0], z+d[1])
					if ok && nh-1 > tops[i] {
						tops[i] = nh - 1
						changed = true
					}
				}
			}
		}
	}

	for z := 0; z < S; z++ {
		for x := 0; x < S; x++ {
			col := cols[z*S+x]
			top := tops[z*S+x]
			if !col.road.Paved || top == col.height {
				continue
			}
			surface := col.road.Surface(cfg.Roads)
			for y := col.height; y < top; y++ {
				c.Set(x, y, z, surface)
			}
			c.clearAbove(x, top, z, cfg.Roads.Headroom)
		}
	}
}
