// Package mesh holds the renderer-agnostic chunk geometry and the interfaces
// the engine uses to reach the host's materials and scene graph.
package mesh

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/go-theft-craft/voxel/internal/block"
)

// Face is a cube face index. The numbering is part of the material contract.
type Face uint8

const (
	PosX Face = iota
	NegX
	PosY
	NegY
	PosZ
	NegZ
)

// Faces lists every face in index order.
var Faces = [6]Face{PosX, NegX, PosY, NegY, PosZ, NegZ}

var faceNames = [6]string{"+x", "-x", "+y", "-y", "+z", "-z"}

var faceOffsets = [6][3]int{
	{1, 0, 0}, {-1, 0, 0},
	{0, 1, 0}, {0, -1, 0},
	{0, 0, 1}, {0, 0, -1},
}

func (f Face) String() string {
	if int(f) < len(faceNames) {
		return faceNames[f]
	}
	return fmt.Sprintf("face(%d)", f)
}

// Offset returns the unit step to the neighbor across the face.
func (f Face) Offset() (dx, dy, dz int) {
	o := faceOffsets[f]
	return o[0], o[1], o[2]
}

// Normal returns the outward unit normal.
func (f Face) Normal() mgl32.Vec3 {
	o := faceOffsets[f]
	return mgl32.Vec3{float32(o[0]), float32(o[1]), float32(o[2])}
}

// Opposite returns the face pointing the other way.
func (f Face) Opposite() Face { return f ^ 1 }

type corner struct {
	pos [3]float32
	uv  mgl32.Vec2
}

// faceCorners are ordered so that (0,1,2) and (2,1,3) wind counter-clockwise
// seen from outside the cube.
var faceCorners = [6][4]corner{
	PosX: {{[3]float32{1, 1, 1}, mgl32.Vec2{0, 1}}, {[3]float32{1, 0, 1}, mgl32.Vec2{0, 0}}, {[3]float32{1, 1, 0}, mgl32.Vec2{1, 1}}, {[3]float32{1, 0, 0}, mgl32.Vec2{1, 0}}},
	NegX: {{[3]float32{0, 1, 0}, mgl32.Vec2{0, 1}}, {[3]float32{0, 0, 0}, mgl32.Vec2{0, 0}}, {[3]float32{0, 1, 1}, mgl32.Vec2{1, 1}}, {[3]float32{0, 0, 1}, mgl32.Vec2{1, 0}}},
	PosY: {{[3]float32{0, 1, 1}, mgl32.Vec2{1, 1}}, {[3]float32{1, 1, 1}, mgl32.Vec2{0, 1}}, {[3]float32{0, 1, 0}, mgl32.Vec2{1, 0}}, {[3]float32{1, 1, 0}, mgl32.Vec2{0, 0}}},
	NegY: {{[3]float32{1, 0, 1}, mgl32.Vec2{1, 0}}, {[3]float32{0, 0, 1}, mgl32.Vec2{0, 0}}, {[3]float32{1, 0, 0}, mgl32.Vec2{1, 1}}, {[3]float32{0, 0, 0}, mgl32.Vec2{0, 1}}},
	PosZ: {{[3]float32{0, 0, 1}, mgl32.Vec2{0, 0}}, {[3]float32{1, 0, 1}, mgl32.Vec2{1, 0}}, {[3]float32{0, 1, 1}, mgl32.Vec2{0, 1}}, {[3]float32{1, 1, 1}, mgl32.Vec2{1, 1}}},
	NegZ: {{[3]float32{1, 0, 0}, mgl32.Vec2{0, 0}}, {[3]float32{0, 0, 0}, mgl32.Vec2{1, 0}}, {[3]float32{1, 1, 0}, mgl32.Vec2{0, 1}}, {[3]float32{0, 1, 0}, mgl32.Vec2{1, 1}}},
}

// Geometry is an indexed triangle buffer in chunk-local coordinates.
type Geometry struct {
	Positions []mgl32.Vec3
	Normals   []mgl32.Vec3
	UVs       []mgl32.Vec2
	Indices   []uint32
}

// AddFace appends one quad for face f of the voxel at (x, y, z):
// 4 vertices and 2 triangles.
func (g *Geometry) AddFace(f Face, x, y, z int) {
	base := uint32(len(g.Positions))
	n := f.Normal()
	origin := mgl32.Vec3{float32(x), float32(y), float32(z)}
	for _, c := range faceCorners[f] {
		g.Positions = append(g.Positions, origin.Add(mgl32.Vec3{c.pos[0], c.pos[1], c.pos[2]}))
		g.Normals = append(g.Normals, n)
		g.UVs = append(g.UVs, c.uv)
	}
	g.Indices = append(g.Indices, base, base+1, base+2, base+2, base+1, base+3)
}

// FaceCount returns the number of quads in the buffer.
func (g *Geometry) FaceCount() int { return len(g.Indices) / 6 }

// Dispose releases the buffers.
func (g *Geometry) Dispose() {
	g.Positions = nil
	g.Normals = nil
	g.UVs = nil
	g.Indices = nil
}

// Material is an opaque renderable surface owned by the host.
type Material any

// MaterialProvider returns the material for each face of a block type,
// indexed by Face.
type MaterialProvider interface {
	Materials(t block.Type) [6]Material
}

// Surface is the geometry of every visible face sharing a block type and
// orientation, drawn with a single material.
type Surface struct {
	Block       block.Type
	Face        Face
	Material    Material
	DoubleSided bool
	Geometry    *Geometry
}

// Node is the renderable for one chunk.
type Node struct {
	Name     string
	Origin   mgl32.Vec3 // world position of the chunk's local origin
	Surfaces []*Surface

	disposed bool
}

// FaceCount returns the number of quads across all surfaces.
func (n *Node) FaceCount() int {
	var c int
	for _, s := range n.Surfaces {
		c += s.Geometry.FaceCount()
	}
	return c
}

// Dispose releases every surface's geometry. The node must already be
// detached from the scene.
func (n *Node) Dispose() {
	for _, s := range n.Surfaces {
		s.Geometry.Dispose()
	}
	n.Surfaces = nil
	n.disposed = true
}

// Disposed reports whether Dispose has been called.
func (n *Node) Disposed() bool { return n.disposed }

// Scene is the host's scene graph.
type Scene interface {
	Add(n *Node)
	Remove(n *Node)
}

// NopScene discards nodes. It is used by headless hosts.
type NopScene struct{}

func (NopScene) Add(*Node)    {}
func (NopScene) Remove(*Node) {}

// NopMaterials supplies nil materials for every face.
type NopMaterials struct{}

func (NopMaterials) Materials(block.Type) [6]Material { return [6]Material{} }
