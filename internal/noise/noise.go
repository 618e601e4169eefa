// Package noise provides the deterministic coherent noise that world
// generation samples. Every peer seeded with the same value sees the same
// terrain without exchanging block data.
package noise

// Source is a deterministic coherent noise function. Results are in [-1, 1]
// and depend only on the coordinates and the seed the source was built with.
type Source interface {
	Noise2D(x, z float64) float64
	Noise3D(x, y, z float64) float64
}

// gradients for simplex noise; the 2D variant only reads the first two components.
var gradients = [12][3]float64{
	{1, 1, 0}, {-1, 1, 0}, {1, -1, 0}, {-1, -1, 0},
	{1, 0, 1}, {-1, 0, 1}, {1, 0, -1}, {-1, 0, -1},
	{0, 1, 1}, {0, -1, 1}, {0, 1, -1}, {0, -1, -1},
}

// Simplex is a seeded simplex noise Source.
type Simplex struct {
	perm [512]uint8
}

// New builds a Simplex source whose permutation table is shuffled from seed.
func New(seed int64) *Simplex {
	var p [256]uint8
	for i := range p {
		p[i] = uint8(i)
	}

	s := uint64(seed)
	for i := 255; i > 0; i-- {
		s = s*6364136223846793005 + 1442695040888963407
		j := int((s >> 33) % uint64(i+1))
		p[i], p[j] = p[j], p[i]
	}

	sx := &Simplex{}
	for i := range sx.perm {
		sx.perm[i] = p[i&255]
	}
	return sx
}

func (sx *Simplex) hash(i int) int { return int(sx.perm[i&511]) }

// Noise2D returns 2D simplex noise at (x, z).
func (sx *Simplex) Noise2D(x, z float64) float64 {
	const (
		f2 = 0.36602540378443864676 // (sqrt(3) - 1) / 2
		g2 = 0.21132486540518711775 // (3 - sqrt(3)) / 6
	)

	s := (x + z) * f2
	i := floor(x + s)
	j := floor(z + s)

	t := float64(i+j) * g2
	x0 := x - (float64(i) - t)
	z0 := z - (float64(j) - t)

	i1, j1 := 0, 1
	if x0 > z0 {
		i1, j1 = 1, 0
	}

	x1 := x0 - float64(i1) + g2
	z1 := z0 - float64(j1) + g2
	x2 := x0 - 1 + 2*g2
	z2 := z0 - 1 + 2*g2

	ii := i & 255
	jj := j & 255
	g0 := sx.hash(ii+sx.hash(jj)) % 12
	g1 := sx.hash(ii+i1+sx.hash(jj+j1)) % 12
	gl := sx.hash(ii+1+sx.hash(jj+1)) % 12

	return 70 * (corner2(g0, x0, z0) + corner2(g1, x1, z1) + corner2(gl, x2, z2))
}

// Noise3D returns 3D simplex noise at (x, y, z).
func (sx *Simplex) Noise3D(x, y, z float64) float64 {
	const (
		f3 = 1.0 / 3.0
		g3 = 1.0 / 6.0
	)

	s := (x + y + z) * f3
	i := floor(x + s)
	j := floor(y + s)
	k := floor(z + s)

	t := float64(i+j+k) * g3
	x0 := x - (float64(i) - t)
	y0 := y - (float64(j) - t)
	z0 := z - (float64(k) - t)

	var i1, j1, k1, i2, j2, k2 int
	switch {
	case x0 >= y0 && y0 >= z0:
		i1, j1, k1, i2, j2, k2 = 1, 0, 0, 1, 1, 0
	case x0 >= y0 && x0 >= z0:
		i1, j1, k1, i2, j2, k2 = 1, 0, 0, 1, 0, 1
	case x0 >= y0:
		i1, j1, k1, i2, j2, k2 = 0, 0, 1, 1, 0, 1
	case y0 < z0:
		i1, j1, k1, i2, j2, k2 = 0, 0, 1, 0, 1, 1
	case x0 < z0:
		i1, j1, k1, i2, j2, k2 = 0, 1, 0, 0, 1, 1
	default:
		i1, j1, k1, i2, j2, k2 = 0, 1, 0, 1, 1, 0
	}

	x1 := x0 - float64(i1) + g3
	y1 := y0 - float64(j1) + g3
	z1 := z0 - float64(k1) + g3
	x2 := x0 - float64(i2) + 2*g3
	y2 := y0 - float64(j2) + 2*g3
	z2 := z0 - float64(k2) + 2*g3
	x3 := x0 - 1 + 3*g3
	y3 := y0 - 1 + 3*g3
	z3 := z0 - 1 + 3*g3

	ii := i & 255
	jj := j & 255
	kk := k & 255
	g0 := sx.hash(ii+sx.hash(jj+sx.hash(kk))) % 12
	g1 := sx.hash(ii+i1+sx.hash(jj+j1+sx.hash(kk+k1))) % 12
	gm := sx.hash(ii+i2+sx.hash(jj+j2+sx.hash(kk+k2))) % 12
	gl := sx.hash(ii+1+sx.hash(jj+1+sx.hash(kk+1))) % 12

	return 32 * (corner3(g0, x0, y0, z0) + corner3(g1, x1, y1, z1) +
		corner3(gm, x2, y2, z2) + corner3(gl, x3, y3, z3))
}

func corner2(g int, x, z float64) float64 {
	t := 0.5 - x*x - z*z
	if t < 0 {
		return 0
	}
	t *= t
	return t * t * (gradients[g][0]*x + gradients[g][1]*z)
}

func corner3(g int, x, y, z float64) float64 {
	t := 0.6 - x*x - y*y - z*z
	if t < 0 {
		return 0
	}
	t *= t
	return t * t * (gradients[g][0]*x + gradients[g][1]*y + gradients[g][2]*z)
}

// Constant is a Source that returns the same value everywhere.
type Constant float64

func (c Constant) Noise2D(_, _ float64) float64    { return float64(c) }
func (c Constant) Noise3D(_, _, _ float64) float64 { return float64(c) }

func floor(x float64) int {
	xi := int(x)
	if x < float64(xi) {
		return xi - 1
	}
	return xi
}
