// Package geometry extracts boundary polygons from binary masks and
// measures them: convex hull by Graham scan, maximal diameter by rotating
// calipers, and the widest chord perpendicular to that diameter.
//
// Coordinates are mask-local: X is the column and Y the row, with rows
// growing downward.
package geometry

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r2"
)

// Vertex is an integer pixel position in a mask
type Vertex struct {
	X, Y int
}

// Vec converts the vertex to a gonum vector
func (v Vertex) Vec() r2.Vec {
	return r2.Vec{X: float64(v.X), Y: float64(v.Y)}
}

// flankPairs are the four lines through a pixel used by the degeneracy test
var flankPairs = [4][2]Vertex{
	{{-1, -1}, {1, 1}},
	{{0, -1}, {0, 1}},
	{{1, -1}, {-1, 1}},
	{{-1, 0}, {1, 0}},
}

// BottomPoint returns the labeled pixel with the largest row, leftmost on
// ties. ok is false for an empty mask.
func BottomPoint(mask []int32, width, height int) (bottom Vertex, ok bool) {
	for y := height - 1; y >= 0; y-- {
		for x := 0; x < width; x++ {
			if mask[y*width+x] == 1 {
				return Vertex{X: x, Y: y}, true
			}
		}
	}
	return Vertex{}, false
}

// IsDegenerate reports whether v is flanked by labeled pixels on both sides
// of some line through it, which makes it interior to the silhouette.
func IsDegenerate(mask []int32, width, height int, v Vertex) bool {
	inside := func(p Vertex) bool {
		return p.X >= 0 && p.Y >= 0 && p.X < width && p.Y < height
	}
	for _, pair := range flankPairs {
		a := Vertex{X: v.X + pair[0].X, Y: v.Y + pair[0].Y}
		b := Vertex{X: v.X + pair[1].X, Y: v.Y + pair[1].Y}
		if !inside(a) || !inside(b) {
			continue
		}
		if mask[a.Y*width+a.X] == 1 && mask[b.Y*width+b.X] == 1 {
			return true
		}
	}
	return false
}

// PolarAngle returns the angle of v about bottom in degrees, in [0, 180).
// The bottom point itself has angle 0.
func PolarAngle(v, bottom Vertex) float64 {
	if v == bottom {
		return 0
	}
	dy := float64(bottom.Y - v.Y)
	dx := float64(v.X - bottom.X)
	// dx == 0 yields +Inf and an angle of 90.
	angle := math.Atan(dy/dx) * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}
	return angle
}

// ExtractVertices returns the non-degenerate pixels of a binary mask sorted
// by polar angle about the bottom point. Pixels with equal angles keep
// their row-major scan order. The result is ready for BuildHull.
func ExtractVertices(mask []int32, width, height int) []Vertex {
	bottom, ok := BottomPoint(mask, width, height)
	if !ok {
		return nil
	}

	type polar struct {
		v     Vertex
		angle float64
	}
	var points []polar
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if mask[y*width+x] != 1 {
				continue
			}
			v := Vertex{X: x, Y: y}
			if IsDegenerate(mask, width, height, v) {
				continue
			}
			points = append(points, polar{v: v, angle: PolarAngle(v, bottom)})
		}
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].angle < points[j].angle
	})

	vertices := make([]Vertex, len(points))
	for i, p := range points {
		vertices[i] = p.v
	}
	return vertices
}
