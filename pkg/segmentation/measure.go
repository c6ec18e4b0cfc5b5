package segmentation

import (
	"errors"
	"fmt"

	log "github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/spatial/r2"

	"segcaliper/internal/models"
	"segcaliper/pkg/arena"
	"segcaliper/pkg/geometry"
)

// Measurement is the maximal diameter of a segment on one slice together
// with the widest chord perpendicular to it. Pairs are stored in the
// coordinates of the bounding-box mask; use Endpoints for volume indices.
type Measurement struct {
	Segment int32
	Slice   int
	Box     models.BoundingBox

	Diameter      geometry.DiameterPair
	Orthogonal    geometry.DiameterPair
	HasOrthogonal bool

	// MaxLabel and OrthogonalLabel name the two lines for display
	MaxLabel        string
	OrthogonalLabel string
}

func (m *Measurement) offset(p geometry.DiameterPair) geometry.DiameterPair {
	o := r2.Vec{X: float64(m.Box.MinX), Y: float64(m.Box.MinY)}
	return geometry.DiameterPair{First: r2.Add(p.First, o), Second: r2.Add(p.Second, o)}
}

// Endpoints returns both chords in volume index space on slice m.Slice.
// The orthogonal pair is zero when HasOrthogonal is false.
func (m *Measurement) Endpoints() (diameter, orthogonal geometry.DiameterPair) {
	diameter = m.offset(m.Diameter)
	if m.HasOrthogonal {
		orthogonal = m.offset(m.Orthogonal)
	}
	return diameter, orthogonal
}

// Extended returns the Endpoints pushed half a voxel outward on each axis,
// so a drawn line covers the end voxels instead of stopping at their centers.
func (m *Measurement) Extended() (diameter, orthogonal geometry.DiameterPair) {
	diameter, orthogonal = m.Endpoints()
	diameter = extendHalfVoxel(diameter)
	if m.HasOrthogonal {
		orthogonal = extendHalfVoxel(orthogonal)
	}
	return diameter, orthogonal
}

// LengthMM returns the physical length of both extended chords
func (m *Measurement) LengthMM(spacing models.Spacing) (diameter, orthogonal float64) {
	d, o := m.Extended()
	diameter = physicalLength(d, spacing)
	if m.HasOrthogonal {
		orthogonal = physicalLength(o, spacing)
	}
	return diameter, orthogonal
}

func extendHalfVoxel(p geometry.DiameterPair) geometry.DiameterPair {
	push := func(a, b float64) (float64, float64) {
		switch {
		case a > b:
			return a + 0.5, b - 0.5
		case a < b:
			return a - 0.5, b + 0.5
		}
		// a shared coordinate moves to the voxel edge and keeps a zero component
		return a - 0.5, b - 0.5
	}
	p.First.X, p.Second.X = push(p.First.X, p.Second.X)
	p.First.Y, p.Second.Y = push(p.First.Y, p.Second.Y)
	return p
}

func physicalLength(p geometry.DiameterPair, spacing models.Spacing) float64 {
	d := r2.Sub(p.Second, p.First)
	return r2.Norm(r2.Vec{X: d.X * spacing.X, Y: d.Y * spacing.Y})
}

func (e *Engine) segmentName(segment int32) string {
	if name, ok := e.opts.Segments[segment]; ok && name != "" {
		return name
	}
	return fmt.Sprintf("Segment %d", segment)
}

// MeasureSlice measures the diameter of segment on slice z of the labelmap.
// It returns ErrDegenerateRegion when the segment's bounding box is less
// than 2 pixels wide or high.
func (e *Engine) MeasureSlice(lm *models.Labelmap, z int, segment int32) (*Measurement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := lm.Validate(); err != nil {
		return nil, err
	}
	if err := checkSegment(segment); err != nil {
		return nil, err
	}
	if z < 0 || z >= lm.Depth {
		return nil, fmt.Errorf("slice %d outside depth %d", z, lm.Depth)
	}
	defer e.arena.Reset()
	return e.measureSlice(lm, z, segment)
}

func (e *Engine) measureSlice(lm *models.Labelmap, z int, segment int32) (*Measurement, error) {
	labels := lm.Slice(z)
	box := e.kernels.Boxer.BoundingBox(labels, segment, lm.Height, lm.Width)
	w, h := box.InclusiveSize()
	if box.Empty() || w < 2 || h < 2 {
		return nil, fmt.Errorf("segment %d on slice %d spans %dx%d: %w", segment, z, w, h, ErrDegenerateRegion)
	}

	mask, err := e.arena.Int32s(arena.Mask, w*h)
	if err != nil {
		return nil, err
	}
	for i := 0; i < h; i++ {
		row := labels[(box.MinY+i)*lm.Width+box.MinX:]
		for j := 0; j < w; j++ {
			if row[j] == segment {
				mask[i*w+j] = 1
			}
		}
	}

	hull := geometry.BuildHull(geometry.ExtractVertices(mask, w, h))
	d := geometry.FindDiameter(hull)
	o, ok := geometry.FindOrthogonalDiameter(hull, d, e.opts.Delta)

	name := e.segmentName(segment)
	m := &Measurement{
		Segment:         segment,
		Slice:           z,
		Box:             box,
		Diameter:        d,
		Orthogonal:      o,
		HasOrthogonal:   ok,
		MaxLabel:        name + " max",
		OrthogonalLabel: name + " orthogonal",
	}
	e.log.WithFields(log.Fields{
		"segment":    segment,
		"slice":      z,
		"hull":       len(hull),
		"diameter":   d.Length(),
		"orthogonal": o.Length(),
	}).Debug("Slice measured")
	return m, nil
}

// MeasureVolume measures segment on every slice and returns the slice with
// the longest diameter. Slices where the segment is degenerate are skipped.
func (e *Engine) MeasureVolume(lm *models.Labelmap, segment int32) (*Measurement, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := lm.Validate(); err != nil {
		return nil, err
	}
	if err := checkSegment(segment); err != nil {
		return nil, err
	}

	var best *Measurement
	for z := 0; z < lm.Depth; z++ {
		m, err := e.measureSlice(lm, z, segment)
		e.arena.Reset()
		if errors.Is(err, ErrDegenerateRegion) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if best == nil || m.Diameter.SquaredLength() > best.Diameter.SquaredLength() {
			best = m
		}
	}
	if best == nil {
		return nil, fmt.Errorf("segment %d on any slice: %w", segment, ErrDegenerateRegion)
	}
	return best, nil
}
