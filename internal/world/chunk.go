package world

import (
	"github.com/go-theft-craft/voxel/internal/block"
	"github.com/go-theft-craft/voxel/internal/mesh"
)

// BlockReader is the read-only view of the world a chunk uses to look past
// its own edges. It never generates chunks.
type BlockReader interface {
	Block(wx, wy, wz int) block.Type
}

// Chunk is a full-height column of voxels, size×height×size.
type Chunk struct {
	cx, cz       int
	size, height int
	blocks       []block.Type

	generated bool
	dirty     bool
	queued    bool // present in the world's rebuild queue
	mesh      *mesh.Node

	// onDirty is installed by the owning World so direct writes reach its
	// rebuild queue.
	onDirty func(*Chunk)
}

// NewChunk returns an empty, ungenerated chunk at chunk coordinates (cx, cz).
func NewChunk(cx, cz, size, height int) *Chunk {
	return &Chunk{
		cx:     cx,
		cz:     cz,
		size:   size,
		height: height,
		blocks: make([]block.Type, size*size*height),
	}
}

// Pos returns the chunk coordinates.
func (c *Chunk) Pos() (cx, cz int) { return c.cx, c.cz }

// Generated reports whether procedural generation has run.
func (c *Chunk) Generated() bool { return c.generated }

// Dirty reports whether the mesh is out of date.
func (c *Chunk) Dirty() bool { return c.dirty }

// Mesh returns the current mesh node, or nil if none has been built.
func (c *Chunk) Mesh() *mesh.Node { return c.mesh }

func (c *Chunk) inBounds(x, y, z int) bool {
	return x >= 0 && x < c.size && z >= 0 && z < c.size && y >= 0 && y < c.height
}

func (c *Chunk) index(x, y, z int) int {
	return (y*c.size+z)*c.size + x
}

// Get returns the block at local coordinates. Out of range reads as air.
func (c *Chunk) Get(x, y, z int) block.Type {
	if !c.inBounds(x, y, z) {
		return block.Air
	}
	return c.blocks[c.index(x, y, z)]
}

// Set writes the block at local coordinates and marks the mesh stale.
// Out of range writes are ignored.
func (c *Chunk) Set(x, y, z int, t block.Type) {
	if !c.inBounds(x, y, z) {
		return
	}
	c.blocks[c.index(x, y, z)] = t
	c.dirty = true
	if c.onDirty != nil {
		c.onDirty(c)
	}
}

// Blocks returns a copy of the dense block array.
func (c *Chunk) Blocks() []block.Type {
	out := make([]block.Type, len(c.blocks))
	copy(out, c.blocks)
	return out
}

// Dispose detaches the chunk's mesh from scene and releases it.
func (c *Chunk) Dispose(scene mesh.Scene) {
	if c.mesh == nil {
		return
	}
	scene.Remove(c.mesh)
	c.mesh.Dispose()
	c.mesh = nil
}
