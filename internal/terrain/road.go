package terrain

import (
	"math"

	"github.com/go-theft-craft/voxel/internal/block"
	"github.com/go-theft-craft/voxel/internal/config"
)

// Axis is the direction a road runs along.
type Axis uint8

const (
	AxisNone Axis = iota
	AxisX         // runs along x, centerlines at z ≈ k*Spacing
	AxisZ         // runs along z, centerlines at x ≈ k*Spacing
)

func (a Axis) String() string {
	switch a {
	case AxisX:
		return "x"
	case AxisZ:
		return "z"
	default:
		return "none"
	}
}

// Road describes a column's relation to the road network. It is derived on
// demand and never stored.
type Road struct {
	OnX, OnZ     bool    // within the half-width of a road of that family
	NearX, NearZ bool    // within half-width plus blend; implies nothing about On
	DistX, DistZ float64 // perpendicular distance to the nearest centerline of each family
	Intersection bool    // on roads of both families

	// The fields below describe the governing road: the family with the
	// nearer centerline among those the column is near. Zero when Axis is
	// AxisNone.
	Axis   Axis
	Height int     // un-blended road surface height
	Dist   float64 // distance to the governing centerline
	Along  int     // position along the governing road's axis
	Paved  bool    // on a road whose surface sits above the water line
}

// On reports whether the column lies on a road of either family.
func (r Road) On() bool { return r.OnX || r.OnZ }

// Near reports whether the column lies within the blend margin of a road,
// including columns on a road.
func (r Road) Near() bool { return r.NearX || r.NearZ }

// Surface classifies the top block of a paved column.
func (r Road) Surface(cfg config.Roads) block.Type {
	edge := cfg.HalfWidth - 0.5
	if r.Intersection {
		if r.DistX >= edge && r.DistZ >= edge {
			return block.Curb
		}
		return block.Asphalt
	}
	if r.Dist >= edge {
		return block.Curb
	}
	if r.Dist < 0.5 && FloorMod(r.Along, cfg.DashPeriod) < cfg.DashLength {
		return block.RoadMarking
	}
	return block.Asphalt
}

// RoadAt computes the road descriptor for a column.
func (t *Terrain) RoadAt(wx, wz int) Road {
	rc := t.cfg.Roads
	near := rc.HalfWidth + rc.Blend

	// X family: centerlines are lines of constant z.
	distX, kx := t.nearestCenterline(wz, wx, jitterOffsetX)
	distZ, kz := t.nearestCenterline(wx, wz, jitterOffsetZ)

	r := Road{
		DistX: distX,
		DistZ: distZ,
		OnX:   distX <= rc.HalfWidth,
		OnZ:   distZ <= rc.HalfWidth,
		NearX: distX <= near,
		NearZ: distZ <= near,
	}
	r.Intersection = r.OnX && r.OnZ

	switch {
	case r.NearX && (!r.NearZ || distX <= distZ):
		r.Axis = AxisX
		r.Dist = distX
		r.Along = wx
		r.Height = t.roadHeight(wx, kx*rc.Spacing, AxisX)
	case r.NearZ:
		r.Axis = AxisZ
		r.Dist = distZ
		r.Along = wz
		r.Height = t.roadHeight(wz, kz*rc.Spacing, AxisZ)
	}
	r.Paved = r.On() && r.Height > t.cfg.WaterLevel
	return r
}

// nearestCenterline returns the distance from perp to the nearest jittered
// centerline of a road family, and that centerline's index. along is the
// position on the family's own axis, which drives the jitter.
func (t *Terrain) nearestCenterline(perp, along int, offset float64) (float64, int) {
	spacing := t.cfg.Roads.Spacing
	k0 := FloorDiv(perp, spacing)
	best, bestK := math.Inf(1), k0
	for k := k0; k <= k0+1; k++ {
		c := float64(k*spacing) + t.jitter(along, k, offset)
		if d := math.Abs(float64(perp) - c); d < best {
			best, bestK = d, k
		}
	}
	return best, bestK
}

func (t *Terrain) jitter(along, k int, offset float64) float64 {
	rc := t.cfg.Roads
	return rc.JitterAmplitude * t.src.Noise2D(float64(along)*rc.JitterFrequency, float64(k)*31.7+offset)
}

// roadHeight averages broadHeight along the road's axis at its un-jittered
// centerline. The window is symmetric around along.
func (t *Terrain) roadHeight(along, center int, axis Axis) int {
	rc := t.cfg.Roads
	half := (rc.SampleCount - 1) / 2
	var sum float64
	for i := -half; i <= rc.SampleCount-1-half; i++ {
		p := along + i*rc.SampleStep
		if axis == AxisX {
			sum += t.broadHeight(p, center)
		} else {
			sum += t.broadHeight(center, p)
		}
	}
	return t.clampHeight(int(math.Floor(sum / float64(rc.SampleCount))))
}

// SurfaceHeight returns the blended surface height for columns on or near a
// road. ok is false elsewhere.
func (t *Terrain) SurfaceHeight(wx, wz int) (h int, ok bool) {
	h, r := t.Column(wx, wz)
	if !r.Near() {
		return 0, false
	}
	return h, true
}

// NearestEdgeHeight returns the un-blended height of the nearest road for
// columns on or near one. ok is false elsewhere.
func (t *Terrain) NearestEdgeHeight(wx, wz int) (h int, ok bool) {
	r := t.RoadAt(wx, wz)
	if !r.Near() {
		return 0, false
	}
	return r.Height, true
}
