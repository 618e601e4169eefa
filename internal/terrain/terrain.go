// Package terrain computes the procedural height field and road network.
//
// Every function here is pure in (wx, wz), the noise seed and the world
// config, so peers sharing a seed agree on terrain without exchanging blocks.
package terrain

import (
	"math"

	"github.com/go-theft-craft/voxel/internal/config"
	"github.com/go-theft-craft/voxel/internal/noise"
)

// Noise channel offsets. Each channel samples the shared source at its own
// offset so the channels are uncorrelated.
const (
	caveOffset2   = 173.0
	jitterOffsetX = 911.0
	jitterOffsetZ = 1723.0
)

// Terrain evaluates column heights and road descriptors.
type Terrain struct {
	cfg config.World
	src noise.Source
}

// New returns a Terrain sampling src with the constants in cfg.
func New(cfg config.World, src noise.Source) *Terrain {
	return &Terrain{cfg: cfg, src: src}
}

// Config returns the world contract the terrain was built with.
func (t *Terrain) Config() config.World { return t.cfg }

// Source returns the shared noise source.
func (t *Terrain) Source() noise.Source { return t.src }

// Flatness returns how flat the landscape is at the column, in [0, 1].
func (t *Terrain) Flatness(wx, wz int) float64 {
	tc := t.cfg.Terrain
	n := t.src.Noise2D(
		float64(wx)*tc.FlatnessFrequency+tc.FlatnessOffset,
		float64(wz)*tc.FlatnessFrequency+tc.FlatnessOffset,
	)
	// Stretch the middle of the range so both plains and mountains cover
	// large areas instead of hovering at 0.5.
	v := ((n+1)/2 - 0.3) / 0.4
	return smoothstep(clamp(v, 0, 1))
}

// MountainScale maps flatness to an amplitude multiplier: 1 in rough
// terrain down to FlatScale in fully flat terrain.
func (t *Terrain) MountainScale(flatness float64) float64 {
	return lerp(1, t.cfg.Terrain.FlatScale, flatness)
}

// Height returns the natural terrain height of the column, ignoring roads.
func (t *Terrain) Height(wx, wz int) int {
	scale := t.MountainScale(t.Flatness(wx, wz))
	var sum float64
	for _, o := range t.cfg.Terrain.Octaves {
		sum += t.src.Noise2D(float64(wx)*o.Frequency, float64(wz)*o.Frequency) * o.Amplitude
	}
	return t.clampHeight(int(math.Floor(t.cfg.Terrain.Baseline + scale*sum)))
}

// broadHeight is Height with only the coarsest octave and no flooring.
func (t *Terrain) broadHeight(wx, wz int) float64 {
	o := t.cfg.Terrain.Octaves[0]
	scale := t.MountainScale(t.Flatness(wx, wz))
	return t.cfg.Terrain.Baseline + scale*t.src.Noise2D(float64(wx)*o.Frequency, float64(wz)*o.Frequency)*o.Amplitude
}

// Column returns the final surface height of the column with roads blended
// in, together with the column's road descriptor.
func (t *Terrain) Column(wx, wz int) (int, Road) {
	r := t.RoadAt(wx, wz)
	switch {
	case r.On():
		return r.Height, r
	case r.Near():
		natural := t.Height(wx, wz)
		u := (r.Dist - t.cfg.Roads.HalfWidth) / t.cfg.Roads.Blend
		s := smoothstep(clamp(u, 0, 1))
		h := float64(r.Height) + (float64(natural)-float64(r.Height))*s
		return t.clampHeight(int(math.Floor(h + 0.5))), r
	default:
		return t.Height(wx, wz), r
	}
}

// Cave reports whether the cell is carved out by the cave noise.
func (t *Terrain) Cave(wx, wy, wz int) bool {
	f := t.cfg.Terrain.CaveFrequencies
	x, y, z := float64(wx), float64(wy), float64(wz)
	n1 := t.src.Noise3D(x*f[0], y*f[0], z*f[0])
	n2 := t.src.Noise3D(x*f[1]+caveOffset2, y*f[1], z*f[1]+caveOffset2)
	return n1+n2 > t.cfg.Terrain.CaveThreshold
}

func (t *Terrain) clampHeight(h int) int {
	return max(1, min(h, t.cfg.ChunkHeight-2))
}

func lerp(a, b, f float64) float64 { return a + (b-a)*f }

func smoothstep(x float64) float64 { return x * x * (3 - 2*x) }

func clamp(v, lo, hi float64) float64 { return math.Max(lo, math.Min(hi, v)) }

// FloorDiv divides rounding toward negative infinity.
func FloorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// FloorMod returns a modulo b in [0, b) for positive b.
func FloorMod(a, b int) int {
	return ((a % b) + b) % b
}
