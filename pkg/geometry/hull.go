package geometry

// Cross returns the z component of (q-p) x (r-q) in raw mask coordinates.
// Because rows grow downward, a turn that looks counterclockwise on screen
// has a negative value.
func Cross(p, q, r Vertex) int {
	return (q.X-p.X)*(r.Y-q.Y) - (q.Y-p.Y)*(r.X-q.X)
}

// BuildHull runs a Graham scan over vertices already sorted by polar angle
// about their bottom point (see ExtractVertices).
//
// The hull starts at the bottom point and reads counterclockwise as
// displayed, so Cross is strictly negative for every consecutive triple,
// including the two that wrap around. Collinear points are dropped.
// Inputs with fewer than three vertices are returned as a copy.
func BuildHull(vertices []Vertex) []Vertex {
	if len(vertices) < 3 {
		return append([]Vertex(nil), vertices...)
	}

	hull := make([]Vertex, 0, len(vertices))
	hull = append(hull, vertices[0], vertices[1])

	for _, v := range vertices[2:] {
		for len(hull) >= 2 && Cross(hull[len(hull)-2], hull[len(hull)-1], v) >= 0 {
			hull = hull[:len(hull)-1]
		}
		hull = append(hull, v)
	}

	// Points sharing the last polar angle are scanned farthest first and
	// can leave the tail collinear with the start.
	for len(hull) >= 3 && Cross(hull[len(hull)-2], hull[len(hull)-1], hull[0]) >= 0 {
		hull = hull[:len(hull)-1]
	}
	return hull
}

// IsConvex reports whether every cyclic triple of hull turns the canonical
// way. Hulls with fewer than three vertices are not convex polygons.
func IsConvex(hull []Vertex) bool {
	n := len(hull)
	if n < 3 {
		return false
	}
	for i := 0; i < n; i++ {
		if Cross(hull[i], hull[(i+1)%n], hull[(i+2)%n]) >= 0 {
			return false
		}
	}
	return true
}
