// Package kernel defines the call contract between the segmentation engine
// and its numeric kernels, and ships builtin implementations of each one.
//
// The engine only talks to the interfaces below. Buffers are owned by the
// caller and passed as slices; kernels write their results in place and
// never retain a buffer after returning.
package kernel

import (
	"context"
	"errors"
	"fmt"

	"segcaliper/internal/models"
)

// ErrMalformedBuffer is returned when a buffer does not match the declared
// dimensions of a kernel call.
var ErrMalformedBuffer = errors.New("malformed kernel buffer")

// BoundingBoxer finds the bounding box of one segment on a label slice of
// height rows by width columns.
type BoundingBoxer interface {
	BoundingBox(labels []int32, segment int32, height, width int) models.BoundingBox
}

// GrowRequest is the input of a seeded-threshold growth
type GrowRequest struct {
	// Radius of the brush; the window is (2*Radius+1)^2
	Radius int

	// Sensitivity controls the width of the accepted intensity band
	Sensitivity float64

	// Intensities is the VOI-normalized window. NaN marks pixels outside
	// the volume.
	Intensities []float64

	// Out receives 1 for grown pixels and 0 elsewhere
	Out []int32
}

// ThresholdGrower grows a binary region from the center of a window
type ThresholdGrower interface {
	Grow(req GrowRequest) error
}

// RefineParams are the fixed numeric coefficients of the active contour
type RefineParams struct {
	MaxIterations   int
	Tension         float64
	FidelityInside  float64
	FidelityOutside float64
	TimeStep        float64
}

// DefaultRefineParams returns the coefficients used by the viewer tool
func DefaultRefineParams() RefineParams {
	return RefineParams{
		MaxIterations:   1000,
		Tension:         0.2,
		FidelityInside:  0.5,
		FidelityOutside: 0.5,
		TimeStep:        0.5,
	}
}

// RefineRequest is the input of an active-contour refinement
type RefineRequest struct {
	Width, Height int

	// Mask holds the prior on input and the refined mask on output
	Mask []int32

	// Intensities is the VOI-normalized image under the mask
	Intensities []float64

	Params RefineParams

	// Work is scratch space of at least WorkLen(Width, Height) elements
	Work []float64
}

// ContourRefiner corrects a binary mask toward image edges
type ContourRefiner interface {
	Refine(req RefineRequest) error
	WorkLen(width, height int) int
}

// Set bundles the three kernels the engine needs
type Set struct {
	Grower  ThresholdGrower
	Refiner ContourRefiner
	Boxer   BoundingBoxer
}

// Validate checks that every kernel is present
func (s *Set) Validate() error {
	if s == nil || s.Grower == nil || s.Refiner == nil || s.Boxer == nil {
		return errors.New("kernel set is incomplete")
	}
	return nil
}

// Loader initializes a kernel set. Loading may be slow and may fail.
type Loader interface {
	Load(ctx context.Context) (*Set, error)
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(ctx context.Context) (*Set, error)

// Load calls f(ctx)
func (f LoaderFunc) Load(ctx context.Context) (*Set, error) {
	return f(ctx)
}

// Builtin returns a loader for the pure Go kernels in this package
func Builtin() Loader {
	return LoaderFunc(func(ctx context.Context) (*Set, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &Set{
			Grower:  SeededThreshold{},
			Refiner: ChanVese{},
			Boxer:   LabelBox{},
		}, nil
	})
}

// Static returns a loader that hands out an already built set
func Static(set *Set) Loader {
	return LoaderFunc(func(ctx context.Context) (*Set, error) {
		return set, nil
	})
}

func checkLen(name string, got, want int) error {
	if got < want {
		return fmt.Errorf("%w: %s has %d elements, need %d", ErrMalformedBuffer, name, got, want)
	}
	return nil
}
