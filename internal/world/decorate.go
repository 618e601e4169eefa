package world

import (
	"github.com/go-theft-craft/voxel/internal/block"
	"github.com/go-theft-craft/voxel/internal/terrain"
)

// Decoration noise channels. Each samples the shared source at its own
// frequency and offset.
const (
	decorationMargin = 2 // minimum surface height above the water line

	flatBiome = 0.5 // flatness above which cigarettes grow in groves

	groveFrequency   = 0.02
	groveOffset      = 300.0
	groveThreshold   = 0.35
	densityFrequency = 0.6
	densityOffset    = 900.0
	densityThreshold = 0.5

	sparseFrequency = 0.9
	sparseOffset    = 1500.0
	sparseThreshold = 0.72

	pipeFrequency = 0.7
	pipeOffset    = 4100.0
	pipeThreshold = 0.8

	decorationSalt = 0x5eed
)

// decorate places cigarette and pipe structures on natural grass columns
// away from roads.
func (c *Chunk) decorate(t *terrain.Terrain, cols []column) {
	cfg := t.Config()
	src := t.Source()
	S := c.size
	ox, oz := c.cx*S, c.cz*S
	rng := newChunkRNG(cfg.Seed, c.cx, c.cz, decorationSalt)

	sample := func(wx, wz int, freq, offset float64) float64 {
		return src.Noise2D(float64(wx)*freq+offset, float64(wz)*freq+offset)
	}

	// taken marks columns already holding part of a structure.
	taken := make([]bool, S*S)

	for z := 0; z < S; z++ {
		for x := 0; x < S; x++ {
			col := cols[z*S+x]
			h := col.height
			if taken[z*S+x] || col.road.Near() || h <= cfg.WaterLevel+decorationMargin || c.Get(x, h-1, z) != block.Grass {
				continue
			}
			wx, wz := ox+x, oz+z

			var cigarette bool
			if t.Flatness(wx, wz) > flatBiome {
				cigarette = sample(wx, wz, groveFrequency, groveOffset) > groveThreshold &&
					sample(wx, wz, densityFrequency, densityOffset) > densityThreshold
			} else {
				cigarette = sample(wx, wz, sparseFrequency, sparseOffset) > sparseThreshold
			}
			if cigarette {
				c.placeCigarette(x, h, z, rng)
				taken[z*S+x] = true
				continue
			}

			if sample(wx, wz, pipeFrequency, pipeOffset) > pipeThreshold {
				length := 3 + rng.nextN(2)
				if x+length+1 < S && c.pipeClear(cols, taken, x, z, length) {
					c.placePipe(x, h, z, length, rng)
					for i := 0; i <= length; i++ {
						taken[z*S+x+i] = true
					}
				}
			}
		}
	}
}

// placeCigarette stacks filter, body, ember and smoke upward from y.
// Cells above the chunk are dropped by Set.
func (c *Chunk) placeCigarette(x, y, z int, rng *chunkRNG) {
	stack := make([]block.Type, 0, 11)
	stack = append(stack, block.CigaretteFilter, block.CigaretteFilter)
	for i, n := 0, 4+rng.nextN(2); i < n; i++ {
		stack = append(stack, block.CigaretteBody)
	}
	stack = append(stack, block.Ember)
	for i, n := 0, 2+rng.nextN(2); i < n; i++ {
		stack = append(stack, block.Smoke)
	}
	for i, bt := range stack {
		c.Set(x, y+i, z, bt)
	}
}

// pipeClear reports whether the tube run east of (x, z) stays off roads and
// clear of other structures.
func (c *Chunk) pipeClear(cols []column, taken []bool, x, z, length int) bool {
	for i := 1; i <= length; i++ {
		if j := z*c.size + x + i; taken[j] || cols[j].road.Near() {
			return false
		}
	}
	return true
}

// placePipe builds an L: two stems with the bowl on top at x, a tube run
// along +x at the base, an upturned mouthpiece at the far end, and smoke
// above the bowl.
func (c *Chunk) placePipe(x, y, z, length int, rng *chunkRNG) {
	c.Set(x, y, z, block.PipeStem)
	c.Set(x, y+1, z, block.PipeStem)
	c.Set(x, y+2, z, block.PipeBowl)
	for i := 1; i <= length; i++ {
		c.Set(x+i, y, z, block.PipeTube)
	}
	c.Set(x+length, y+1, z, block.PipeMouthpiece)

	c.Set(x, y+3, z, block.Smoke)
	if rng.nextN(2) == 0 {
		c.Set(x, y+4, z, block.Smoke)
	}
}

// chunkRNG is a deterministic LCG seeded per chunk, so decoration variance
// is identical on every peer.
type chunkRNG struct {
	state int64
}

func newChunkRNG(seed int64, cx, cz int, salt int64) *chunkRNG {
	return &chunkRNG{state: seed ^ (int64(cx)*341873128712 + int64(cz)*132897987541 + salt)}
}

func (r *chunkRNG) next() int64 {
	r.state = r.state*6364136223846793005 + 1442695040888963407
	return r.state
}

// nextN returns a value in [0, n).
func (r *chunkRNG) nextN(n int) int {
	v := int(r.next()>>33) % n
	if v < 0 {
		v = -v
	}
	return v
}
