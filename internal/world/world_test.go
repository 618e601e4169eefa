package world

import (
	"fmt"
	"slices"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/go-theft-craft/voxel/internal/block"
	"github.com/go-theft-craft/voxel/internal/config"
	"github.com/go-theft-craft/voxel/internal/mesh"
	"github.com/go-theft-craft/voxel/internal/noise"
	"github.com/go-theft-craft/voxel/internal/terrain"
)

// recordingScene tracks which nodes are attached.
type recordingScene struct {
	live    map[*mesh.Node]bool
	removed []*mesh.Node
}

func newRecordingScene() *recordingScene {
	return &recordingScene{live: make(map[*mesh.Node]bool)}
}

func (s *recordingScene) Add(n *mesh.Node) { s.live[n] = true }

func (s *recordingScene) Remove(n *mesh.Node) {
	delete(s.live, n)
	s.removed = append(s.removed, n)
}

// faceMaterials names each material after its block and face.
type faceMaterials struct{}

func (faceMaterials) Materials(t block.Type) [6]mesh.Material {
	var out [6]mesh.Material
	for _, f := range mesh.Faces {
		out[f] = fmt.Sprintf("%s%s", t, f)
	}
	return out
}

func testConfig(radius int) config.World {
	cfg := config.DefaultWorld()
	cfg.LoadRadius = radius
	cfg.Hysteresis = 1
	return cfg
}

// drain updates at (x, z) until no rebuilds are pending.
func drain(t *testing.T, w *World, x, z float64) {
	t.Helper()
	for i := 0; i < 200; i++ {
		if st := w.Update(x, z); st.Pending == 0 {
			return
		}
	}
	t.Fatal("rebuild queue never drained")
}

func TestGenerateDeterministic(t *testing.T) {
	cfg := config.DefaultWorld()
	tr := terrain.New(cfg, noise.New(cfg.Seed))

	for _, pos := range []ChunkPos{{0, 0}, {-1, 2}, {3, -4}} {
		a := NewChunk(pos.X, pos.Z, cfg.ChunkSize, cfg.ChunkHeight)
		b := NewChunk(pos.X, pos.Z, cfg.ChunkSize, cfg.ChunkHeight)
		a.Generate(tr)
		// A second terrain instance stands in for a fresh process.
		b.Generate(terrain.New(cfg, noise.New(cfg.Seed)))
		if !slices.Equal(a.Blocks(), b.Blocks()) {
			t.Fatalf("chunk %v generated differently", pos)
		}
	}
}

func TestGenerateRunsOnce(t *testing.T) {
	cfg := config.DefaultWorld()
	tr := terrain.New(cfg, noise.New(cfg.Seed))
	c := NewChunk(0, 0, cfg.ChunkSize, cfg.ChunkHeight)
	c.Generate(tr)
	c.Set(1, 60, 1, block.Glass)
	c.Generate(tr)
	if c.Get(1, 60, 1) != block.Glass {
		t.Error("second Generate must not regenerate the chunk")
	}
}

func TestColumnFill(t *testing.T) {
	cfg := config.DefaultWorld()
	c := NewChunk(0, 0, cfg.ChunkSize, cfg.ChunkHeight)
	c.Generate(terrain.New(cfg, noise.Constant(0)))

	// Constant noise: height 28 everywhere, (10,10) is away from roads.
	want := map[int]block.Type{
		0:  block.Bedrock,
		1:  block.Stone,
		23: block.Stone,
		24: block.Dirt,
		26: block.Dirt,
		27: block.Grass,
		28: block.Air,
	}
	for y, bt := range want {
		if got := c.Get(10, y, 10); got != bt {
			t.Errorf("y=%d: got %v, want %v", y, got, bt)
		}
	}
	if got := c.Get(5, 27, 0); got != block.Asphalt && got != block.RoadMarking {
		t.Errorf("road surface = %v, want asphalt or marking", got)
	}
	for y := 28; y < 28+cfg.Roads.Headroom; y++ {
		if got := c.Get(5, y, 0); got != block.Air {
			t.Errorf("road headroom y=%d = %v", y, got)
		}
	}
}

func TestFloodedColumn(t *testing.T) {
	cfg := config.DefaultWorld()
	cfg.WaterLevel = 35
	c := NewChunk(0, 0, cfg.ChunkSize, cfg.ChunkHeight)
	c.Generate(terrain.New(cfg, noise.Constant(0)))

	if got := c.Get(10, 27, 10); got != block.Sand {
		t.Errorf("surface under water = %v, want sand", got)
	}
	for y := 28; y < 35; y++ {
		if got := c.Get(10, y, 10); got != block.Water {
			t.Fatalf("y=%d = %v, want water", y, got)
		}
	}
	if got := c.Get(10, 35, 10); got != block.Air {
		t.Errorf("above water line = %v, want air", got)
	}
	// Roads below the water line are not paved.
	if got := c.Get(5, 27, 0); got != block.Sand {
		t.Errorf("sunken road surface = %v, want sand", got)
	}
}

func TestDecorationsStayOffRoads(t *testing.T) {
	cfg := config.DefaultWorld()
	tr := terrain.New(cfg, noise.New(cfg.Seed))
	decorative := map[block.Type]bool{
		block.CigaretteFilter: true, block.CigaretteBody: true, block.Ember: true,
		block.PipeBowl: true, block.PipeStem: true, block.PipeTube: true, block.PipeMouthpiece: true,
	}

	for cz := -3; cz <= 3; cz++ {
		for cx := -3; cx <= 3; cx++ {
			c := NewChunk(cx, cz, cfg.ChunkSize, cfg.ChunkHeight)
			c.Generate(tr)
			for z := 0; z < cfg.ChunkSize; z++ {
				for x := 0; x < cfg.ChunkSize; x++ {
					if !tr.RoadAt(cx*cfg.ChunkSize+x, cz*cfg.ChunkSize+z).Near() {
						continue
					}
					for y := 0; y < cfg.ChunkHeight; y++ {
						if bt := c.Get(x, y, z); decorative[bt] {
							t.Fatalf("%v on road column (%d,%d) of chunk (%d,%d)", bt, x, z, cx, cz)
						}
					}
				}
			}
		}
	}
}

func TestCoordinateWrap(t *testing.T) {
	cfg := testConfig(2)
	w := New(cfg, noise.New(cfg.Seed), nil, nil, nil)
	w.Update(0, 0)

	S := cfg.ChunkSize
	for wx := -32; wx < 32; wx += 3 {
		for wz := -32; wz < 32; wz += 5 {
			c := w.Chunk(terrain.FloorDiv(wx, S), terrain.FloorDiv(wz, S))
			if c == nil {
				t.Fatalf("chunk for (%d,%d) not loaded", wx, wz)
			}
			lx, lz := ((wx%S)+S)%S, ((wz%S)+S)%S
			for y := 0; y < cfg.ChunkHeight; y += 7 {
				if got, want := w.Block(wx, y, wz), c.Get(lx, y, lz); got != want {
					t.Fatalf("Block(%d,%d,%d) = %v, chunk cell = %v", wx, y, wz, got, want)
				}
			}
		}
	}

	c := w.Chunk(-1, -1)
	c.Set(15, 50, 15, block.Concrete)
	if got := w.Block(-1, 50, -1); got != block.Concrete {
		t.Errorf("Block(-1,50,-1) = %v, want concrete from chunk (-1,-1) local (15,50,15)", got)
	}
}

func TestSetBlockRoundTrip(t *testing.T) {
	cfg := testConfig(1)
	w := New(cfg, noise.New(cfg.Seed), nil, nil, nil)
	w.Update(0, 0)

	for _, p := range []BlockPos{{0, 1, 0}, {-1, 30, -1}, {15, 63, 15}, {-16, 10, 31}, {20, 40, -7}} {
		for _, bt := range []block.Type{block.Glass, block.Air, block.Water} {
			if !w.SetBlock(p.X, p.Y, p.Z, bt) {
				t.Fatalf("SetBlock(%v) dropped", p)
			}
			if got := w.Block(p.X, p.Y, p.Z); got != bt {
				t.Fatalf("Block(%v) = %v after setting %v", p, got, bt)
			}
		}
	}
}

func TestSetBlockUnloaded(t *testing.T) {
	cfg := testConfig(1)
	w := New(cfg, noise.New(cfg.Seed), nil, nil, nil)
	w.Update(0, 0)

	if w.SetBlock(1000, 30, 1000, block.Stone) {
		t.Error("edit to an unloaded chunk should be dropped")
	}
	if w.Block(1000, 30, 1000) != block.Air {
		t.Error("unloaded chunk should read as air")
	}
	if w.SetBlock(0, -1, 0, block.Stone) || w.SetBlock(0, cfg.ChunkHeight, 0, block.Stone) {
		t.Error("edit outside the world height should be dropped")
	}
	if w.Block(0, -1, 0) != block.Air || w.Block(0, cfg.ChunkHeight, 0) != block.Air {
		t.Error("outside the world height should read as air")
	}
}

func TestApplyEdits(t *testing.T) {
	cfg := testConfig(1)
	w := New(cfg, noise.New(cfg.Seed), nil, nil, nil)
	w.Update(0, 0)

	n := w.ApplyEdits([]Edit{
		{X: 3, Y: 50, Z: 3, Block: block.Stone},
		{X: 3, Y: 50, Z: 3, Block: block.Glass},
		{X: 5000, Y: 50, Z: 3, Block: block.Stone},
	})
	if n != 2 {
		t.Errorf("applied %d edits, want 2", n)
	}
	if got := w.Block(3, 50, 3); got != block.Glass {
		t.Errorf("later edit should win, got %v", got)
	}
}

func TestSetBlockDirtiesNeighbors(t *testing.T) {
	cfg := testConfig(1)
	w := New(cfg, noise.Constant(0), nil, nil, nil)
	drain(t, w, 8, 8)

	dirty := func() []ChunkPos {
		var out []ChunkPos
		for cz := -1; cz <= 1; cz++ {
			for cx := -1; cx <= 1; cx++ {
				if w.Chunk(cx, cz).Dirty() {
					out = append(out, ChunkPos{cx, cz})
				}
			}
		}
		return out
	}

	w.SetBlock(8, 40, 8, block.Stone)
	if got := dirty(); !slices.Equal(got, []ChunkPos{{0, 0}}) {
		t.Errorf("interior edit dirtied %v", got)
	}
	drain(t, w, 8, 8)

	w.SetBlock(0, 40, 5, block.Stone)
	if got := dirty(); !slices.Equal(got, []ChunkPos{{-1, 0}, {0, 0}}) {
		t.Errorf("west edge edit dirtied %v", got)
	}
	drain(t, w, 8, 8)

	w.SetBlock(-1, 40, -1, block.Stone)
	if got := dirty(); !slices.Equal(got, []ChunkPos{{-1, -1}, {0, -1}, {-1, 0}}) {
		t.Errorf("corner edit dirtied %v", got)
	}
}

func TestBoundedRebuild(t *testing.T) {
	cfg := testConfig(2)
	cfg.MaxRebuildsPerUpdate = 2
	w := New(cfg, noise.New(cfg.Seed), nil, nil, nil)
	drain(t, w, 8, 8)

	edited := []ChunkPos{
		{-2, -2}, {-1, -2}, {0, -2}, {1, -2}, {2, -2},
		{-2, 2}, {-1, 2}, {0, 2}, {1, 2}, {2, 2},
	}
	for _, p := range edited {
		if !w.SetBlock(p.X*16+8, 62, p.Z*16+8, block.Glass) {
			t.Fatalf("edit in chunk %v dropped", p)
		}
	}

	st := w.Update(8, 8)
	if st.Rebuilt != 2 {
		t.Fatalf("rebuilt %d chunks, want 2", st.Rebuilt)
	}
	var stillDirty int
	for _, p := range edited {
		if w.Chunk(p.X, p.Z).Dirty() {
			stillDirty++
		}
	}
	if stillDirty != 8 || st.Pending != 8 {
		t.Fatalf("dirty after one update = %d (pending %d), want 8", stillDirty, st.Pending)
	}

	for i := 0; i < 4; i++ {
		w.Update(8, 8)
	}
	for _, p := range edited {
		if w.Chunk(p.X, p.Z).Dirty() {
			t.Errorf("chunk %v still dirty after five updates", p)
		}
	}
}

func TestEviction(t *testing.T) {
	cfg := testConfig(1)
	scene := newRecordingScene()
	w := New(cfg, noise.Constant(0), faceMaterials{}, scene, nil)
	drain(t, w, 8, 8)

	if w.ChunkCount() != 9 {
		t.Fatalf("loaded %d chunks, want 9", w.ChunkCount())
	}
	node := w.Chunk(-1, 0).Mesh()
	if node == nil || !scene.live[node] {
		t.Fatal("chunk (-1,0) should have an attached mesh")
	}

	// Move two chunks east: x=-1 is now 3 away, beyond radius+hysteresis.
	st := w.Update(40, 8)
	if st.Evicted != 3 {
		t.Errorf("evicted %d chunks, want 3", st.Evicted)
	}
	if w.Chunk(-1, 0) != nil {
		t.Error("chunk (-1,0) still loaded")
	}
	if scene.live[node] || !node.Disposed() {
		t.Error("evicted chunk's mesh should be detached and disposed")
	}
	if w.Chunk(0, 0) == nil {
		t.Error("chunk (0,0) is within hysteresis and should stay")
	}
}

func TestRebuildReplacesMesh(t *testing.T) {
	cfg := testConfig(0)
	scene := newRecordingScene()
	w := New(cfg, noise.Constant(0), faceMaterials{}, scene, nil)
	drain(t, w, 8, 8)

	old := w.Chunk(0, 0).Mesh()
	w.SetBlock(8, 50, 8, block.Stone)
	drain(t, w, 8, 8)

	cur := w.Chunk(0, 0).Mesh()
	if cur == old || !old.Disposed() || scene.live[old] {
		t.Error("old mesh should be removed and disposed")
	}
	if !scene.live[cur] || len(scene.live) != 1 {
		t.Errorf("scene holds %d nodes, want only the new mesh", len(scene.live))
	}
	for _, s := range cur.Surfaces {
		if want := fmt.Sprintf("%s%s", s.Block, s.Face); s.Material != want {
			t.Errorf("surface material = %v, want %s", s.Material, want)
		}
	}
}

func TestRaycast(t *testing.T) {
	cfg := testConfig(1)
	w := New(cfg, noise.Constant(0), nil, nil, nil)
	w.Update(0, 0)
	w.SetBlock(5, 50, 0, block.Concrete)

	origin := mgl64.Vec3{0.5, 50.5, 0.5}
	dir := mgl64.Vec3{1, 0, 0}

	hit, ok := w.Raycast(origin, dir, 8)
	if !ok {
		t.Fatal("expected a hit")
	}
	if hit.Block != block.Concrete || hit.Pos != (BlockPos{5, 50, 0}) {
		t.Errorf("hit %v at %v, want concrete at (5,50,0)", hit.Block, hit.Pos)
	}
	if hit.Prev != (BlockPos{4, 50, 0}) {
		t.Errorf("prev = %v, want (4,50,0)", hit.Prev)
	}

	if _, ok := w.Raycast(origin, dir, 4); ok {
		t.Error("block beyond maxDist should not be hit")
	}
	if _, ok := w.Raycast(origin, mgl64.Vec3{}, 8); ok {
		t.Error("zero direction should not hit")
	}

	down, ok := w.Raycast(mgl64.Vec3{10.5, 45.5, 10.5}, mgl64.Vec3{0, -3, 0}, 40)
	if !ok || down.Pos != (BlockPos{10, 27, 10}) || down.Block != block.Grass {
		t.Errorf("downward ray = %+v, %v, want grass at y=27", down, ok)
	}
}

func TestRaycastThroughWater(t *testing.T) {
	cfg := testConfig(1)
	cfg.WaterLevel = 35
	w := New(cfg, noise.Constant(0), nil, nil, nil)
	w.Update(0, 0)

	hit, ok := w.Raycast(mgl64.Vec3{10.5, 45.5, 10.5}, mgl64.Vec3{0, -1, 0}, 30)
	if !ok {
		t.Fatal("expected a hit below the water")
	}
	if hit.Pos != (BlockPos{10, 27, 10}) || hit.Block != block.Sand {
		t.Errorf("hit %v at %v, want sand at y=27", hit.Block, hit.Pos)
	}
	if hit.Prev != (BlockPos{10, 28, 10}) || w.Block(10, 28, 10) != block.Water {
		t.Errorf("prev = %v, want the water cell above the sand", hit.Prev)
	}
}

// stepSource makes the coarse terrain jump by two octave amplitudes at
// wx=5, producing road heights that step by more than one block.
type stepSource struct{}

func (stepSource) Noise2D(x, _ float64) float64 {
	switch {
	case x > 5000: // flatness channel: fully rough
		return -1
	case x >= 0.05:
		return 1
	default:
		return -1
	}
}

func (stepSource) Noise3D(_, _, _ float64) float64 { return -1 }

func TestRoadContinuity(t *testing.T) {
	sources := map[string]noise.Source{
		"step":    stepSource{},
		"simplex": noise.New(config.WorldSeed),
	}
	for name, src := range sources {
		t.Run(name, func(t *testing.T) {
			cfg := config.DefaultWorld()
			cfg.WaterLevel = 5 // pave every road
			tr := terrain.New(cfg, src)
			S, H := cfg.ChunkSize, cfg.ChunkHeight

			var pairs, rawGaps int
			for cz := -2; cz <= 2; cz++ {
				for cx := -2; cx <= 2; cx++ {
					c := NewChunk(cx, cz, S, H)
					c.Generate(tr)

					top := func(x, z int) int {
						for y := H - 1; y >= 0; y-- {
							if c.Get(x, y, z) != block.Air {
								return y
							}
						}
						return -1
					}
					for z := 0; z < S; z++ {
						for x := 0; x < S; x++ {
							ha, ra := tr.Column(cx*S+x, cz*S+z)
							if !ra.Paved {
								continue
							}
							for _, d := range [2][2]int{{1, 0}, {0, 1}} {
								nx, nz := x+d[0], z+d[1]
								if nx >= S || nz >= S {
									continue
								}
								hb, rb := tr.Column(cx*S+nx, cz*S+nz)
								if !rb.Paved {
									continue
								}
								pairs++
								if abs(ha-hb) > 1 {
									rawGaps++
								}
								if gap := abs(top(x, z) - top(nx, nz)); gap > 1 {
									t.Fatalf("chunk (%d,%d): step of %d between (%d,%d) and (%d,%d)", cx, cz, gap, x, z, nx, nz)
								}
							}
						}
					}
				}
			}
			if pairs == 0 {
				t.Fatal("no adjacent paved columns generated")
			}
			if name == "step" && rawGaps == 0 {
				t.Fatal("step terrain should produce raw road steps for smoothing to fix")
			}
		})
	}
}

func TestChunkSetQueuesRebuild(t *testing.T) {
	cfg := testConfig(1)
	w := New(cfg, noise.New(cfg.Seed), nil, nil, nil)
	drain(t, w, 8, 8)

	c := w.Chunk(0, 0)
	c.Set(3, 50, 3, block.Concrete)
	if !c.Dirty() {
		t.Fatal("Set should mark the chunk dirty")
	}
	st := w.Update(8, 8)
	if st.Rebuilt != 1 {
		t.Errorf("rebuilt %d chunks, want 1", st.Rebuilt)
	}
	if c.Dirty() {
		t.Error("chunk edited through Set was never rebuilt")
	}
}

func TestApplyEditsBeforeLoad(t *testing.T) {
	cfg := testConfig(1)
	w := New(cfg, noise.New(cfg.Seed), nil, nil, nil)

	n := w.ApplyEdits([]Edit{
		{X: 2, Y: 50, Z: 2, Block: block.Concrete},
		{X: -3, Y: 51, Z: 17, Block: block.Glass},
		{X: 2, Y: cfg.ChunkHeight, Z: 2, Block: block.Stone},
	})
	if n != 0 {
		t.Errorf("applied %d edits before any chunk loaded, want 0", n)
	}
	if w.Overrides() != 2 {
		t.Errorf("remembered %d edits, want 2", w.Overrides())
	}

	w.Update(8, 8)
	if got := w.Block(2, 50, 2); got != block.Concrete {
		t.Errorf("Block(2,50,2) = %v after load, want concrete", got)
	}
	if got := w.Block(-3, 51, 17); got != block.Glass {
		t.Errorf("Block(-3,51,17) = %v after load, want glass", got)
	}
}

func TestEditsSurviveEviction(t *testing.T) {
	cfg := testConfig(1)
	w := New(cfg, noise.New(cfg.Seed), nil, nil, nil)
	drain(t, w, 8, 8)

	if !w.SetBlock(-8, 55, 8, block.PipeBowl) {
		t.Fatal("edit in loaded chunk dropped")
	}
	w.Update(40, 8)
	if w.Chunk(-1, 0) != nil {
		t.Fatal("chunk (-1,0) should be evicted")
	}
	w.Update(8, 8)
	if got := w.Block(-8, 55, 8); got != block.PipeBowl {
		t.Errorf("Block after reload = %v, want pipe_bowl", got)
	}
}

func TestUpdateWithoutViews(t *testing.T) {
	cfg := testConfig(1)
	w := New(cfg, noise.New(cfg.Seed), nil, nil, nil)
	drain(t, w, 8, 8)

	st := w.UpdateViews(nil)
	if st.Evicted != 0 || st.Generated != 0 || st.Rebuilt != 0 {
		t.Errorf("empty view list changed the world: %+v", st)
	}
	if w.ChunkCount() != 9 || st.Loaded != 9 {
		t.Errorf("loaded %d chunks (stats %d), want 9", w.ChunkCount(), st.Loaded)
	}
}
