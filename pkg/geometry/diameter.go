package geometry

import (
	"math"

	"gonum.org/v1/gonum/spatial/r2"
)

// parallelEps is the smallest cross product treated as a real intersection
const parallelEps = 1e-12

// DiameterPair is a measured chord between two points
type DiameterPair struct {
	First  r2.Vec
	Second r2.Vec
}

// SquaredLength returns the squared Euclidean length of the chord
func (d DiameterPair) SquaredLength() float64 {
	return r2.Norm2(r2.Sub(d.Second, d.First))
}

// Length returns the Euclidean length of the chord
func (d DiameterPair) Length() float64 {
	return math.Sqrt(d.SquaredLength())
}

func pairOf(a, b Vertex) DiameterPair {
	return DiameterPair{First: a.Vec(), Second: b.Vec()}
}

// triangleArea returns twice the unsigned area of triangle abc
func triangleArea(a, b, c Vertex) int {
	v := (b.X-a.X)*(c.Y-a.Y) - (b.Y-a.Y)*(c.X-a.X)
	if v < 0 {
		return -v
	}
	return v
}

// FindDiameter returns the longest chord between vertices of a convex hull
// using rotating calipers. One vertex gives a zero-length pair, two give
// the segment between them, an empty hull gives the zero pair.
func FindDiameter(hull []Vertex) DiameterPair {
	n := len(hull)
	switch n {
	case 0:
		return DiameterPair{}
	case 1:
		return pairOf(hull[0], hull[0])
	case 2:
		return pairOf(hull[0], hull[1])
	}

	// Antipodal vertex of the edge (hull[n-1], hull[0]).
	k := 1
	for steps := 0; steps < n && triangleArea(hull[n-1], hull[0], hull[(k+1)%n]) >
		triangleArea(hull[n-1], hull[0], hull[k]); steps++ {
		k = (k + 1) % n
	}

	best := pairOf(hull[0], hull[k])
	bestLen := best.SquaredLength()
	consider := func(a, b Vertex) {
		p := pairOf(a, b)
		if l := p.SquaredLength(); l >= bestLen {
			best, bestLen = p, l
		}
	}

	// Sweep every edge (i, i+1) while j tracks its farthest vertex. Both
	// edge endpoints are paired with j so that parallel edge pairs still
	// see both diagonals.
	j := k
	for i := 0; i < n; i++ {
		next := (i + 1) % n
		for steps := 0; steps < n && triangleArea(hull[i], hull[next], hull[(j+1)%n]) >
			triangleArea(hull[i], hull[next], hull[j]); steps++ {
			j = (j + 1) % n
		}
		consider(hull[i], hull[j])
		consider(hull[next], hull[j])
	}
	return best
}

// line is the parametric form Origin + t*Dir
type line struct {
	Origin r2.Vec
	Dir    r2.Vec
}

func lineThrough(p, q r2.Vec) line {
	return line{Origin: p, Dir: r2.Sub(q, p)}
}

// perpendicular returns the line through p orthogonal to l
func (l line) perpendicular(p r2.Vec) line {
	return line{Origin: p, Dir: r2.Vec{X: -l.Dir.Y, Y: l.Dir.X}}
}

// intersect returns the point where l meets m, and false when they are
// parallel.
func (l line) intersect(m line) (r2.Vec, bool) {
	den := r2.Cross(l.Dir, m.Dir)
	if math.Abs(den) < parallelEps {
		return r2.Vec{}, false
	}
	t := r2.Cross(r2.Sub(m.Origin, l.Origin), m.Dir) / den
	return r2.Add(l.Origin, r2.Scale(t, l.Dir)), true
}

func indexOf(hull []Vertex, p r2.Vec) int {
	for i, v := range hull {
		if v.Vec() == p {
			return i
		}
	}
	return -1
}

// chain is the run of hull edges from one diameter endpoint to the other,
// with the projection of each edge's end vertex onto the diameter.
type chain struct {
	edges  []line
	breaks []r2.Vec
}

func walkChain(hull []Vertex, from, to int, axis line) chain {
	var c chain
	n := len(hull)
	for i := from; i != to; i = (i + 1) % n {
		next := (i + 1) % n
		c.edges = append(c.edges, lineThrough(hull[i].Vec(), hull[next].Vec()))
		foot, _ := axis.intersect(axis.perpendicular(hull[next].Vec()))
		c.breaks = append(c.breaks, foot)
	}
	return c
}

// sample intersects the perpendicular at each split point with the chain,
// advancing along the chain as the split points move away from origin.
func (c chain) sample(axis line, origin r2.Vec, splits []r2.Vec) ([]r2.Vec, []bool) {
	points := make([]r2.Vec, len(splits))
	ok := make([]bool, len(splits))
	cur := 0
	for i, s := range splits {
		d := r2.Norm2(r2.Sub(s, origin))
		for cur < len(c.breaks)-1 && d > r2.Norm2(r2.Sub(c.breaks[cur], origin)) {
			cur++
		}
		points[i], ok[i] = c.edges[cur].intersect(axis.perpendicular(s))
	}
	return points, ok
}

// FindOrthogonalDiameter returns the widest chord of the hull perpendicular
// to diameter. The diameter is split every delta units of length; at each
// split point a perpendicular is intersected with both sides of the hull.
// ok is false when the hull has fewer than three vertices, the diameter
// endpoints are not hull vertices, or no split point yields a chord.
func FindOrthogonalDiameter(hull []Vertex, diameter DiameterPair, delta float64) (DiameterPair, bool) {
	if len(hull) < 3 || !(delta > 0) {
		return DiameterPair{}, false
	}
	bottom := indexOf(hull, diameter.First)
	up := indexOf(hull, diameter.Second)
	if bottom < 0 || up < 0 || bottom == up {
		return DiameterPair{}, false
	}

	axis := lineThrough(diameter.Second, diameter.First)
	left := walkChain(hull, up, bottom, axis)
	right := walkChain(hull, bottom, up, axis)

	length := diameter.Length()
	var splits []r2.Vec
	for n := 1; float64(n)*delta < length; n++ {
		t := float64(n) * delta / length
		splits = append(splits, r2.Add(diameter.Second, r2.Scale(t, axis.Dir)))
	}
	if len(splits) == 0 {
		return DiameterPair{}, false
	}

	leftPoints, leftOK := left.sample(axis, diameter.Second, splits)

	reversed := make([]r2.Vec, len(splits))
	for i, s := range splits {
		reversed[len(splits)-1-i] = s
	}
	rightPoints, rightOK := right.sample(axis, diameter.First, reversed)

	var best DiameterPair
	bestLen := 0.0
	found := false
	for i := range leftPoints {
		m := len(splits) - 1 - i
		if !leftOK[i] || !rightOK[m] {
			continue
		}
		p := DiameterPair{First: leftPoints[i], Second: rightPoints[m]}
		if l := p.SquaredLength(); l > bestLen {
			best, bestLen, found = p, l, true
		}
	}
	return best, found
}
