// Package world owns the chunk map: generation and eviction around
// viewpoints, global block access, throttled mesh rebuilds, road queries
// and the voxel raycaster.
//
// A World is not safe for concurrent use. Hosts call it from a single loop
// and hand edits from other goroutines over channels.
package world

import (
	"log/slog"
	"math"

	"github.com/go-theft-craft/voxel/internal/block"
	"github.com/go-theft-craft/voxel/internal/config"
	"github.com/go-theft-craft/voxel/internal/mesh"
	"github.com/go-theft-craft/voxel/internal/noise"
	"github.com/go-theft-craft/voxel/internal/terrain"
)

// ChunkPos identifies a chunk by its horizontal chunk coordinates.
type ChunkPos struct {
	X, Z int
}

// BlockPos is an integer world position.
type BlockPos struct {
	X, Y, Z int
}

// Edit is a block delta exchanged between peers and persisted in edit logs.
type Edit struct {
	X, Y, Z int
	Block   block.Type
}

// View is a viewpoint chunks are loaded around.
type View struct {
	X, Z float64
}

// UpdateStats reports what one Update call did.
type UpdateStats struct {
	Generated int
	Rebuilt   int
	Evicted   int
	Pending   int // dirty chunks still waiting for a rebuild
	Loaded    int
}

// World is a chunked voxel world generated from a seed.
type World struct {
	cfg       config.World
	terrain   *terrain.Terrain
	materials mesh.MaterialProvider
	scene     mesh.Scene
	log       *slog.Logger

	chunks  map[ChunkPos]*Chunk
	rebuild []*Chunk // FIFO of dirty chunks

	// overrides holds every edit by chunk, reapplied whenever that chunk is
	// generated again.
	overrides map[ChunkPos]map[BlockPos]block.Type
}

// New creates an empty World. Chunks are generated by Update.
func New(cfg config.World, src noise.Source, materials mesh.MaterialProvider, scene mesh.Scene, log *slog.Logger) *World {
	if materials == nil {
		materials = mesh.NopMaterials{}
	}
	if scene == nil {
		scene = mesh.NopScene{}
	}
	if log == nil {
		log = slog.Default()
	}
	return &World{
		cfg:       cfg,
		terrain:   terrain.New(cfg, src),
		materials: materials,
		scene:     scene,
		log:       log,
		chunks:    make(map[ChunkPos]*Chunk),
		overrides: make(map[ChunkPos]map[BlockPos]block.Type),
	}
}

// Config returns the world contract.
func (w *World) Config() config.World { return w.cfg }

// Terrain returns the height and road model the world generates from.
func (w *World) Terrain() *terrain.Terrain { return w.terrain }

// Chunk returns the loaded chunk at (cx, cz), or nil.
func (w *World) Chunk(cx, cz int) *Chunk { return w.chunks[ChunkPos{cx, cz}] }

// ChunkCount returns the number of loaded chunks.
func (w *World) ChunkCount() int { return len(w.chunks) }

// ChunkAt returns the chunk position containing world column (wx, wz).
func (w *World) ChunkAt(wx, wz int) ChunkPos {
	return ChunkPos{terrain.FloorDiv(wx, w.cfg.ChunkSize), terrain.FloorDiv(wz, w.cfg.ChunkSize)}
}

// Block returns the block at world coordinates. Unloaded chunks and
// positions outside the world height read as air.
func (w *World) Block(wx, wy, wz int) block.Type {
	if wy < 0 || wy >= w.cfg.ChunkHeight {
		return block.Air
	}
	c := w.chunks[w.ChunkAt(wx, wz)]
	if c == nil || !c.generated {
		return block.Air
	}
	S := w.cfg.ChunkSize
	return c.Get(terrain.FloorMod(wx, S), wy, terrain.FloorMod(wz, S))
}

// SetBlock writes a block at world coordinates and marks the owning chunk,
// and any neighbor sharing the touched edge, for a mesh rebuild. The edit is
// remembered so it survives eviction. Writes to unloaded chunks are dropped
// and reported as false.
func (w *World) SetBlock(wx, wy, wz int, t block.Type) bool {
	if wy < 0 || wy >= w.cfg.ChunkHeight {
		return false
	}
	pos := w.ChunkAt(wx, wz)
	c := w.chunks[pos]
	if c == nil || !c.generated {
		return false
	}
	S := w.cfg.ChunkSize
	lx, lz := terrain.FloorMod(wx, S), terrain.FloorMod(wz, S)
	c.Set(lx, wy, lz, t)
	w.override(pos, BlockPos{wx, wy, wz}, t)

	if lx == 0 {
		w.markDirtyAt(pos.X-1, pos.Z)
	}
	if lx == S-1 {
		w.markDirtyAt(pos.X+1, pos.Z)
	}
	if lz == 0 {
		w.markDirtyAt(pos.X, pos.Z-1)
	}
	if lz == S-1 {
		w.markDirtyAt(pos.X, pos.Z+1)
	}
	return true
}

// ApplyEdits writes a batch of edits in order and returns how many landed
// in loaded chunks. Edits for chunks that are not loaded are kept and
// applied when the chunk is generated.
func (w *World) ApplyEdits(edits []Edit) int {
	var n int
	for _, e := range edits {
		if w.SetBlock(e.X, e.Y, e.Z, e.Block) {
			n++
			continue
		}
		if e.Y >= 0 && e.Y < w.cfg.ChunkHeight {
			w.override(w.ChunkAt(e.X, e.Z), BlockPos{e.X, e.Y, e.Z}, e.Block)
		}
	}
	return n
}

// Overrides returns the number of edited positions the world remembers.
func (w *World) Overrides() int {
	var n int
	for _, m := range w.overrides {
		n += len(m)
	}
	return n
}

func (w *World) override(pos ChunkPos, p BlockPos, t block.Type) {
	m := w.overrides[pos]
	if m == nil {
		m = make(map[BlockPos]block.Type)
		w.overrides[pos] = m
	}
	m[p] = t
}

func (w *World) markDirtyAt(cx, cz int) {
	if c := w.chunks[ChunkPos{cx, cz}]; c != nil && c.generated {
		w.markDirty(c)
	}
}

func (w *World) markDirty(c *Chunk) {
	c.dirty = true
	if !c.queued {
		c.queued = true
		w.rebuild = append(w.rebuild, c)
	}
}

// Update loads, rebuilds and evicts chunks around a single viewpoint.
func (w *World) Update(viewX, viewZ float64) UpdateStats {
	return w.UpdateViews([]View{{X: viewX, Z: viewZ}})
}

// UpdateViews generates every missing chunk within the load radius of any
// view, rebuilds a bounded number of dirty meshes, and evicts chunks beyond
// the radius plus hysteresis of every view.
func (w *World) UpdateViews(views []View) UpdateStats {
	var stats UpdateStats
	if len(views) == 0 {
		stats.Pending = len(w.rebuild)
		stats.Loaded = len(w.chunks)
		return stats
	}
	centers := make([]ChunkPos, len(views))
	for i, v := range views {
		centers[i] = w.ChunkAt(int(math.Floor(v.X)), int(math.Floor(v.Z)))
	}

	R := w.cfg.LoadRadius
	for _, center := range centers {
		// Nearest rings first so their meshes enter the rebuild queue first.
		for ring := 0; ring <= R; ring++ {
			for dz := -ring; dz <= ring; dz++ {
				for dx := -ring; dx <= ring; dx++ {
					if max(abs(dx), abs(dz)) != ring {
						continue
					}
					if w.load(ChunkPos{center.X + dx, center.Z + dz}) {
						stats.Generated++
					}
				}
			}
		}
	}

	stats.Rebuilt = w.rebuildDirty(centers)
	stats.Evicted = w.evict(centers)
	stats.Pending = len(w.rebuild)
	stats.Loaded = len(w.chunks)
	return stats
}

// load generates the chunk at pos if it is missing.
func (w *World) load(pos ChunkPos) bool {
	if _, ok := w.chunks[pos]; ok {
		return false
	}
	c := NewChunk(pos.X, pos.Z, w.cfg.ChunkSize, w.cfg.ChunkHeight)
	c.Generate(w.terrain)
	S := w.cfg.ChunkSize
	for p, t := range w.overrides[pos] {
		c.Set(terrain.FloorMod(p.X, S), p.Y, terrain.FloorMod(p.Z, S), t)
	}
	c.onDirty = w.markDirty
	w.chunks[pos] = c
	w.markDirty(c)
	// Neighbors culled their shared faces against air; they need a rebuild.
	w.markDirtyAt(pos.X-1, pos.Z)
	w.markDirtyAt(pos.X+1, pos.Z)
	w.markDirtyAt(pos.X, pos.Z-1)
	w.markDirtyAt(pos.X, pos.Z+1)
	w.log.Debug("chunk generated", "cx", pos.X, "cz", pos.Z)
	return true
}

// rebuildDirty rebuilds up to MaxRebuildsPerUpdate queued chunks within the
// load radius. Chunks outside the radius stay queued in order.
func (w *World) rebuildDirty(centers []ChunkPos) int {
	var rebuilt int
	keep := w.rebuild[:0]
	for _, c := range w.rebuild {
		if w.chunks[ChunkPos{c.cx, c.cz}] != c || !c.dirty {
			c.queued = false
			continue
		}
		if rebuilt < w.cfg.MaxRebuildsPerUpdate && c.generated && w.within(c, centers, w.cfg.LoadRadius) {
			c.BuildMesh(w, w.materials, w.scene)
			c.queued = false
			rebuilt++
			continue
		}
		keep = append(keep, c)
	}
	clear(w.rebuild[len(keep):])
	w.rebuild = keep
	return rebuilt
}

// evict drops every chunk beyond LoadRadius+Hysteresis of all centers.
func (w *World) evict(centers []ChunkPos) int {
	var evicted int
	limit := w.cfg.LoadRadius + w.cfg.Hysteresis
	for pos, c := range w.chunks {
		if w.within(c, centers, limit) {
			continue
		}
		c.Dispose(w.scene)
		c.onDirty = nil
		delete(w.chunks, pos)
		evicted++
		w.log.Debug("chunk evicted", "cx", pos.X, "cz", pos.Z)
	}
	if evicted > 0 {
		keep := w.rebuild[:0]
		for _, c := range w.rebuild {
			if w.chunks[ChunkPos{c.cx, c.cz}] == c {
				keep = append(keep, c)
			}
		}
		clear(w.rebuild[len(keep):])
		w.rebuild = keep
	}
	return evicted
}

func (w *World) within(c *Chunk, centers []ChunkPos, radius int) bool {
	for _, center := range centers {
		if max(abs(c.cx-center.X), abs(c.cz-center.Z)) <= radius {
			return true
		}
	}
	return false
}

// Dispose evicts every chunk and releases its mesh.
func (w *World) Dispose() {
	for pos, c := range w.chunks {
		c.Dispose(w.scene)
		c.onDirty = nil
		delete(w.chunks, pos)
	}
	w.rebuild = nil
}

// SpawnHeight returns the surface height of the column, the first air cell
// above generated terrain.
func (w *World) SpawnHeight(wx, wz int) int {
	h, _ := w.terrain.Column(wx, wz)
	return h
}

// RoadSurfaceHeight returns the blended surface height at a column on or
// near a road. ok is false elsewhere.
func (w *World) RoadSurfaceHeight(wx, wz int) (h int, ok bool) {
	return w.terrain.SurfaceHeight(wx, wz)
}

// NearestRoadEdgeHeight returns the height of the nearest road for a column
// on or near one, for aligning structures flush with the road. ok is false
// elsewhere.
func (w *World) NearestRoadEdgeHeight(wx, wz int) (h int, ok bool) {
	return w.terrain.NearestEdgeHeight(wx, wz)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
