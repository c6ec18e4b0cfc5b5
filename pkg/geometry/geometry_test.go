package geometry

import (
	"math"
	"math/rand"
	"testing"

	"gonum.org/v1/gonum/spatial/r2"
)

// maskFrom builds a width*height mask with the given pixels set
func maskFrom(width, height int, pixels ...Vertex) []int32 {
	mask := make([]int32, width*height)
	for _, p := range pixels {
		mask[p.Y*width+p.X] = 1
	}
	return mask
}

// discMask builds a mask containing a filled disc
func discMask(size int, r float64) []int32 {
	mask := make([]int32, size*size)
	c := float64(size-1) / 2
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dx, dy := float64(x)-c, float64(y)-c
			if dx*dx+dy*dy <= r*r {
				mask[y*size+x] = 1
			}
		}
	}
	return mask
}

// insideOrOn reports whether p lies inside or on a canonical hull
func insideOrOn(hull []Vertex, p Vertex) bool {
	n := len(hull)
	for i := 0; i < n; i++ {
		if Cross(hull[i], hull[(i+1)%n], p) > 0 {
			return false
		}
	}
	return true
}

func containsVertex(vs []Vertex, v Vertex) bool {
	for _, u := range vs {
		if u == v {
			return true
		}
	}
	return false
}

// TestCrossScenario runs the 5x5 cross through the full pipeline
func TestCrossScenario(t *testing.T) {
	mask := maskFrom(5, 5,
		Vertex{2, 2}, Vertex{1, 2}, Vertex{3, 2}, Vertex{2, 1}, Vertex{2, 3})

	vertices := ExtractVertices(mask, 5, 5)
	if len(vertices) != 4 {
		t.Fatalf("Expected 4 vertices, got %d: %v", len(vertices), vertices)
	}
	if containsVertex(vertices, Vertex{2, 2}) {
		t.Error("Center pixel is flanked and should be degenerate")
	}
	for _, tip := range []Vertex{{1, 2}, {3, 2}, {2, 1}, {2, 3}} {
		if !containsVertex(vertices, tip) {
			t.Errorf("Arm tip %v missing from vertices", tip)
		}
	}
	if vertices[0] != (Vertex{2, 3}) {
		t.Errorf("Expected bottom point (2,3) first, got %v", vertices[0])
	}

	hull := BuildHull(vertices)
	if len(hull) != 4 || !IsConvex(hull) {
		t.Fatalf("Expected a convex diamond, got %v", hull)
	}

	d := FindDiameter(hull)
	if got := d.SquaredLength(); got != 4 {
		t.Errorf("Expected squared diameter 4 between opposite tips, got %g", got)
	}
}

func TestPolarAngle(t *testing.T) {
	bottom := Vertex{2, 3}
	cases := []struct {
		v    Vertex
		want float64
	}{
		{Vertex{2, 3}, 0},
		{Vertex{4, 3}, 0},
		{Vertex{3, 2}, 45},
		{Vertex{2, 0}, 90},
		{Vertex{1, 2}, 135},
	}
	for _, c := range cases {
		if got := PolarAngle(c.v, bottom); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("PolarAngle(%v) = %g, expected %g", c.v, got, c.want)
		}
	}
}

func TestExtractVerticesEmpty(t *testing.T) {
	if vs := ExtractVertices(make([]int32, 9), 3, 3); len(vs) != 0 {
		t.Errorf("Expected no vertices for empty mask, got %v", vs)
	}
}

// TestExtractVerticesSortedByAngle checks the ordering contract
func TestExtractVerticesSortedByAngle(t *testing.T) {
	size := 15
	mask := discMask(size, 6)
	vertices := ExtractVertices(mask, size, size)
	if len(vertices) < 3 {
		t.Fatalf("Expected boundary vertices, got %d", len(vertices))
	}

	bottom := vertices[0]
	prev := -1.0
	for _, v := range vertices {
		a := PolarAngle(v, bottom)
		if a < prev {
			t.Fatalf("Vertices not sorted by angle: %g after %g", a, prev)
		}
		prev = a
	}
}

func TestBuildHullSquare(t *testing.T) {
	mask := maskFrom(2, 2, Vertex{0, 0}, Vertex{1, 0}, Vertex{0, 1}, Vertex{1, 1})

	hull := BuildHull(ExtractVertices(mask, 2, 2))
	if len(hull) != 4 {
		t.Fatalf("Expected 4 hull vertices, got %v", hull)
	}
	if !IsConvex(hull) {
		t.Errorf("Square hull is not convex: %v", hull)
	}
}

// TestBuildHullConcaveL verifies that the concave corner of an L shape is
// excluded and that every mask pixel is enclosed
func TestBuildHullConcaveL(t *testing.T) {
	size := 5
	var pixels []Vertex
	for y := 0; y < size; y++ {
		for x := 0; x < 2; x++ {
			pixels = append(pixels, Vertex{x, y})
		}
	}
	for y := 3; y < size; y++ {
		for x := 2; x < size; x++ {
			pixels = append(pixels, Vertex{x, y})
		}
	}
	mask := maskFrom(size, size, pixels...)

	hull := BuildHull(ExtractVertices(mask, size, size))
	if !IsConvex(hull) {
		t.Fatalf("L-shape hull is not convex: %v", hull)
	}
	for _, corner := range []Vertex{{0, 0}, {1, 0}, {0, 4}, {4, 4}, {4, 3}} {
		if !containsVertex(hull, corner) {
			t.Errorf("Expected extreme corner %v on hull %v", corner, hull)
		}
	}
	if containsVertex(hull, Vertex{2, 3}) || containsVertex(hull, Vertex{1, 2}) {
		t.Errorf("Concave corner must not be a hull vertex: %v", hull)
	}
	for _, p := range pixels {
		if !insideOrOn(hull, p) {
			t.Errorf("Pixel %v lies outside the hull", p)
		}
	}
}

// TestHullConvexOnRandomMasks checks the turn invariant on arbitrary blobs
func TestHullConvexOnRandomMasks(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	size := 12
	for trial := 0; trial < 200; trial++ {
		mask := make([]int32, size*size)
		var pixels []Vertex
		for i := range mask {
			if rng.Float64() < 0.3 {
				mask[i] = 1
				pixels = append(pixels, Vertex{i % size, i / size})
			}
		}

		vertices := ExtractVertices(mask, size, size)
		hull := BuildHull(vertices)
		if len(hull) < 3 {
			continue
		}
		if !IsConvex(hull) {
			t.Fatalf("Trial %d: hull not convex: %v", trial, hull)
		}
		for _, v := range vertices {
			if !insideOrOn(hull, v) {
				t.Fatalf("Trial %d: vertex %v outside hull %v", trial, v, hull)
			}
		}
	}
}

func TestBuildHullCollinear(t *testing.T) {
	// A horizontal run: every point shares angle 0 with the bottom point.
	mask := maskFrom(5, 1, Vertex{0, 0}, Vertex{1, 0}, Vertex{2, 0}, Vertex{3, 0}, Vertex{4, 0})
	hull := BuildHull(ExtractVertices(mask, 5, 1))
	if len(hull) != 2 {
		t.Fatalf("Expected collinear run to collapse to its endpoints, got %v", hull)
	}
	if d := FindDiameter(hull); d.SquaredLength() != 16 {
		t.Errorf("Expected squared length 16, got %g", d.SquaredLength())
	}
}

func TestFindDiameterUnitSquare(t *testing.T) {
	hull := []Vertex{{0, 0}, {1, 0}, {1, 1}, {0, 1}}
	if got := FindDiameter(hull).SquaredLength(); got != 2 {
		t.Errorf("Expected squared diameter 2, got %g", got)
	}
}

func TestFindDiameterDegenerate(t *testing.T) {
	if d := FindDiameter(nil); d.SquaredLength() != 0 {
		t.Errorf("Expected zero pair for empty hull")
	}
	if d := FindDiameter([]Vertex{{3, 4}}); d.SquaredLength() != 0 {
		t.Errorf("Expected zero-length pair for single vertex")
	}
	if d := FindDiameter([]Vertex{{0, 0}, {3, 4}}); d.SquaredLength() != 25 {
		t.Errorf("Expected squared length 25, got %g", d.SquaredLength())
	}
}

// TestFindDiameterMatchesBruteForce compares calipers against all pairs
func TestFindDiameterMatchesBruteForce(t *testing.T) {
	for _, r := range []float64{2, 3.5, 5, 7.2} {
		size := 17
		hull := BuildHull(ExtractVertices(discMask(size, r), size, size))

		best := 0.0
		for i := range hull {
			for j := range hull {
				if l := pairOf(hull[i], hull[j]).SquaredLength(); l > best {
					best = l
				}
			}
		}
		if got := FindDiameter(hull).SquaredLength(); got != best {
			t.Errorf("Radius %g: calipers %g, brute force %g", r, got, best)
		}
	}
}

func hexagon() []Vertex {
	return []Vertex{{2, 0}, {6, 0}, {8, 3}, {6, 6}, {2, 6}, {0, 3}}
}

func TestFindOrthogonalDiameterHexagon(t *testing.T) {
	hull := hexagon()
	d := FindDiameter(hull)
	if got := d.SquaredLength(); got != 64 {
		t.Fatalf("Expected horizontal diameter of squared length 64, got %g", got)
	}

	o, ok := FindOrthogonalDiameter(hull, d, 0.1)
	if !ok {
		t.Fatal("Expected an orthogonal diameter")
	}

	axis := r2.Sub(d.Second, d.First)
	chord := r2.Sub(o.Second, o.First)
	cos := r2.Dot(axis, chord) / (r2.Norm(axis) * r2.Norm(chord))
	if math.Abs(cos) > 1e-9 {
		t.Errorf("Orthogonal chord not perpendicular: cos %g", cos)
	}
	if math.Abs(o.Length()-6) > 1e-6 {
		t.Errorf("Expected orthogonal length 6, got %g", o.Length())
	}
}

func TestFindOrthogonalDiameterRejectsBadInput(t *testing.T) {
	hull := hexagon()
	d := FindDiameter(hull)

	if _, ok := FindOrthogonalDiameter(hull[:2], d, 0.1); ok {
		t.Error("Expected failure for hull with two vertices")
	}
	if _, ok := FindOrthogonalDiameter(hull, d, 0); ok {
		t.Error("Expected failure for zero delta")
	}
	stray := DiameterPair{First: r2.Vec{X: 100, Y: 100}, Second: d.Second}
	if _, ok := FindOrthogonalDiameter(hull, stray, 0.1); ok {
		t.Error("Expected failure when endpoints are not hull vertices")
	}
}

// TestPipelineIdempotent runs the same mask twice and expects identical output
func TestPipelineIdempotent(t *testing.T) {
	size := 21
	mask := discMask(size, 8)
	snapshot := append([]int32(nil), mask...)

	run := func() (DiameterPair, DiameterPair) {
		hull := BuildHull(ExtractVertices(mask, size, size))
		d := FindDiameter(hull)
		o, _ := FindOrthogonalDiameter(hull, d, 0.1)
		return d, o
	}

	d1, o1 := run()
	d2, o2 := run()
	if d1 != d2 || o1 != o2 {
		t.Errorf("Repeated runs differ: %v/%v vs %v/%v", d1, o1, d2, o2)
	}
	for i := range mask {
		if mask[i] != snapshot[i] {
			t.Fatal("Pipeline mutated its input mask")
		}
	}
}
