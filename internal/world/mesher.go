package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/go-theft-craft/voxel/internal/block"
	"github.com/go-theft-craft/voxel/internal/mesh"
)

// BuildMesh rebuilds the chunk's node from its visible faces and swaps it
// into scene. Cells past the chunk's horizontal edges are read through
// neighbors; a nil reader treats them as air.
func (c *Chunk) BuildMesh(neighbors BlockReader, materials mesh.MaterialProvider, scene mesh.Scene) *mesh.Node {
	var groups [block.Count][6]*mesh.Geometry

	for y := 0; y < c.height; y++ {
		for z := 0; z < c.size; z++ {
			for x := 0; x < c.size; x++ {
				bt := c.blocks[c.index(x, y, z)]
				if bt == block.Air || !bt.Valid() {
					continue
				}
				for _, f := range mesh.Faces {
					dx, dy, dz := f.Offset()
					if !faceVisible(bt, c.neighbor(neighbors, x+dx, y+dy, z+dz)) {
						continue
					}
					g := groups[bt][f]
					if g == nil {
						g = &mesh.Geometry{}
						groups[bt][f] = g
					}
					g.AddFace(f, x, y, z)
				}
			}
		}
	}

	node := &mesh.Node{
		Name:   fmt.Sprintf("chunk_%d_%d", c.cx, c.cz),
		Origin: mgl32.Vec3{float32(c.cx * c.size), 0, float32(c.cz * c.size)},
	}
	for bt := range groups {
		var mats [6]mesh.Material
		loaded := false
		for f, g := range groups[bt] {
			if g == nil {
				continue
			}
			if !loaded {
				mats = materials.Materials(block.Type(bt))
				loaded = true
			}
			node.Surfaces = append(node.Surfaces, &mesh.Surface{
				Block:       block.Type(bt),
				Face:        mesh.Face(f),
				Material:    mats[f],
				DoubleSided: block.Type(bt).DoubleSided(),
				Geometry:    g,
			})
		}
	}

	c.Dispose(scene)
	scene.Add(node)
	c.mesh = node
	c.dirty = false
	return node
}

// neighbor reads a cell in local coordinates that may lie outside the chunk.
func (c *Chunk) neighbor(r BlockReader, x, y, z int) block.Type {
	if y < 0 || y >= c.height {
		return block.Air
	}
	if x >= 0 && x < c.size && z >= 0 && z < c.size {
		return c.blocks[c.index(x, y, z)]
	}
	if r == nil {
		return block.Air
	}
	return r.Block(c.cx*c.size+x, y, c.cz*c.size+z)
}

// faceVisible reports whether a face of bt bordering n must be drawn.
// Contiguous water and smoke hide their shared faces.
func faceVisible(bt, n block.Type) bool {
	if !n.Transparent() {
		return false
	}
	if bt == n && (bt == block.Water || bt == block.Smoke) {
		return false
	}
	return true
}
