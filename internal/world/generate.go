package world

import (
	"github.com/go-theft-craft/voxel/internal/block"
	"github.com/go-theft-craft/voxel/internal/config"
	"github.com/go-theft-craft/voxel/internal/terrain"
)

// column is the per-column result of the fill pass, reused by later passes.
type column struct {
	height int
	road   terrain.Road
}

// Generate fills the chunk from the terrain. It runs at most once; later
// calls are no-ops.
func (c *Chunk) Generate(t *terrain.Terrain) {
	if c.generated {
		return
	}
	cfg := t.Config()
	S := c.size
	ox, oz := c.cx*S, c.cz*S

	cols := make([]column, S*S)
	for z := 0; z < S; z++ {
		for x := 0; x < S; x++ {
			h, r := t.Column(ox+x, oz+z)
			cols[z*S+x] = column{height: h, road: r}
			c.fillColumn(x, z, h, r, cfg)
		}
	}

	c.carveCaves(t, cols)
	c.decorate(t, cols)
	c.smoothRamps(t, cols)

	c.generated = true
	c.dirty = true
}

func (c *Chunk) fillColumn(x, z, h int, r terrain.Road, cfg config.World) {
	c.Set(x, 0, z, block.Bedrock)
	for y := 1; y < h-4; y++ {
		c.Set(x, y, z, block.Stone)
	}
	for y := max(1, h-4); y < h-1; y++ {
		c.Set(x, y, z, block.Dirt)
	}

	if top := h - 1; top > 0 {
		switch {
		case r.Paved:
			c.Set(x, top, z, r.Surface(cfg.Roads))
		case h <= cfg.WaterLevel+1:
			c.Set(x, top, z, block.Sand)
		default:
			c.Set(x, top, z, block.Grass)
		}
	}

	for y := h; y < cfg.WaterLevel; y++ {
		c.Set(x, y, z, block.Water)
	}

	if r.Paved {
		c.clearAbove(x, h, z, cfg.Roads.Headroom)
	}
}

// clearAbove sets n cells starting at y to air.
func (c *Chunk) clearAbove(x, y, z, n int) {
	for i := 0; i < n; i++ {
		c.Set(x, y+i, z, block.Air)
	}
}

// carveCaves hollows out cells where the cave noise is high. Road columns
// and flooded columns are left intact.
func (c *Chunk) carveCaves(t *terrain.Terrain, cols []column) {
	S := c.size
	ox, oz := c.cx*S, c.cz*S
	water := t.Config().WaterLevel
	for z := 0; z < S; z++ {
		for x := 0; x < S; x++ {
			col := cols[z*S+x]
			if col.road.On() || col.height <= water {
				continue
			}
			for y := 1; y < col.height-1; y++ {
				if t.Cave(ox+x, y, oz+z) {
					c.Set(x, y, z, block.Air)
				}
			}
		}
	}
}
