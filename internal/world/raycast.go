package world

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/go-theft-craft/voxel/internal/block"
)

// Hit is the result of a successful raycast.
type Hit struct {
	Block    block.Type
	Pos      BlockPos // the solid block that stopped the ray
	Prev     BlockPos // last air or water cell before Pos, for placing against the hit face
	Distance float64  // distance along the ray to the sample that hit
}

// Raycast marches from origin along dir in fixed steps of RaycastStep and
// returns the first block that is neither air nor water within maxDist.
// Water does not stop the ray.
func (w *World) Raycast(origin, dir mgl64.Vec3, maxDist float64) (Hit, bool) {
	if dir.Len() == 0 || maxDist < 0 {
		return Hit{}, false
	}
	dir = dir.Normalize()
	step := w.cfg.RaycastStep

	prev := cellOf(origin)
	for i := 0; ; i++ {
		t := float64(i) * step
		if t > maxDist {
			return Hit{}, false
		}
		cell := cellOf(origin.Add(dir.Mul(t)))
		bt := w.Block(cell.X, cell.Y, cell.Z)
		if bt != block.Air && !bt.Fluid() {
			return Hit{Block: bt, Pos: cell, Prev: prev, Distance: t}, true
		}
		prev = cell
	}
}

func cellOf(p mgl64.Vec3) BlockPos {
	return BlockPos{
		X: int(math.Floor(p.X())),
		Y: int(math.Floor(p.Y())),
		Z: int(math.Floor(p.Z())),
	}
}
