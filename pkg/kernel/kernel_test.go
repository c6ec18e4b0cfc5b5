package kernel

import (
	"context"
	"errors"
	"math"
	"testing"

	"segcaliper/internal/models"
)

// disk returns a w*h plane with value inside a circle and 0 elsewhere
func disk(w, h int, cx, cy, r float64, value float64) []float64 {
	data := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)-cx, float64(y)-cy
			if dx*dx+dy*dy <= r*r {
				data[y*w+x] = value
			}
		}
	}
	return data
}

func toMask(plane []float64) []int32 {
	mask := make([]int32, len(plane))
	for i, v := range plane {
		if v > 0 {
			mask[i] = 1
		}
	}
	return mask
}

func intersectionOverUnion(a, b []int32) float64 {
	inter, union := 0, 0
	for i := range a {
		if a[i] == 1 && b[i] == 1 {
			inter++
		}
		if a[i] == 1 || b[i] == 1 {
			union++
		}
	}
	if union == 0 {
		return 1
	}
	return float64(inter) / float64(union)
}

func TestLabelBox(t *testing.T) {
	w, h := 6, 5
	labels := make([]int32, w*h)
	labels[1*w+2] = 3
	labels[3*w+4] = 3
	labels[4*w+0] = 1

	box := LabelBox{}.BoundingBox(labels, 3, h, w)
	want := models.BoundingBox{MinX: 2, MinY: 1, MaxX: 4, MaxY: 3}
	if box != want {
		t.Errorf("Expected %+v, got %+v", want, box)
	}

	// An all-zero slice must give a degenerate box for any segment.
	for _, seg := range []int32{1, 2, 255} {
		empty := LabelBox{}.BoundingBox(make([]int32, w*h), seg, h, w)
		if bw, bh := empty.InclusiveSize(); bw >= 2 || bh >= 2 {
			t.Errorf("Segment %d: expected degenerate box, got %dx%d", seg, bw, bh)
		}
	}
}

// TestSeededThresholdGrowsBrightDisk verifies that growth stays within the
// bright structure under the seed
func TestSeededThresholdGrowsBrightDisk(t *testing.T) {
	radius := 5
	size := 2*radius + 1
	window := disk(size, size, 5, 5, 3, 1)
	out := make([]int32, size*size)

	err := SeededThreshold{}.Grow(GrowRequest{
		Radius:      radius,
		Sensitivity: 0.5,
		Intensities: window,
		Out:         out,
	})
	if err != nil {
		t.Fatalf("Grow failed: %v", err)
	}

	want := toMask(window)
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("Pixel (%d,%d): expected %d, got %d", i%size, i/size, want[i], out[i])
		}
	}
}

// TestSeededThresholdSkipsOutsideVolume verifies that NaN pixels are never grown
func TestSeededThresholdSkipsOutsideVolume(t *testing.T) {
	radius := 3
	size := 2*radius + 1
	window := make([]float64, size*size)
	for y := 0; y < size; y++ {
		window[y*size] = math.NaN()
	}
	out := make([]int32, size*size)

	if err := (SeededThreshold{}).Grow(GrowRequest{Radius: radius, Sensitivity: 0.5, Intensities: window, Out: out}); err != nil {
		t.Fatalf("Grow failed: %v", err)
	}
	for y := 0; y < size; y++ {
		if out[y*size] != 0 {
			t.Errorf("NaN pixel at row %d was grown", y)
		}
	}
	if out[radius*size+radius] != 1 {
		t.Error("Seed pixel should always be grown")
	}
	// The brush is round: window corners lie outside the circle.
	if out[size-1] != 0 {
		t.Error("Corner outside the brush circle was grown")
	}
}

func TestSeededThresholdRejectsShortBuffers(t *testing.T) {
	err := SeededThreshold{}.Grow(GrowRequest{Radius: 2, Intensities: make([]float64, 3), Out: make([]int32, 25)})
	if !errors.Is(err, ErrMalformedBuffer) {
		t.Errorf("Expected ErrMalformedBuffer, got %v", err)
	}
}

// TestChanVeseGrowsTowardEdges verifies that an undersized prior expands to
// the bright disk it sits in
func TestChanVeseGrowsTowardEdges(t *testing.T) {
	w, h := 20, 20
	image := disk(w, h, 10, 10, 6, 1)
	mask := toMask(disk(w, h, 10, 10, 4, 1))

	cv := ChanVese{}
	err := cv.Refine(RefineRequest{
		Width:       w,
		Height:      h,
		Mask:        mask,
		Intensities: image,
		Params:      DefaultRefineParams(),
		Work:        make([]float64, cv.WorkLen(w, h)),
	})
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}

	if iou := intersectionOverUnion(mask, toMask(image)); iou < 0.85 {
		t.Errorf("Expected refined mask to match the disk, IoU %.3f", iou)
	}
	if mask[10*w+10] != 1 {
		t.Error("Disk center lost during refinement")
	}
	if mask[0] != 0 {
		t.Error("Background corner was captured")
	}
}

func TestChanVeseEmptyPrior(t *testing.T) {
	w, h := 8, 8
	mask := make([]int32, w*h)
	cv := ChanVese{}
	err := cv.Refine(RefineRequest{
		Width:       w,
		Height:      h,
		Mask:        mask,
		Intensities: disk(w, h, 4, 4, 2, 1),
		Params:      DefaultRefineParams(),
		Work:        make([]float64, cv.WorkLen(w, h)),
	})
	if err != nil {
		t.Fatalf("Refine failed: %v", err)
	}
	for i, v := range mask {
		if v != 0 {
			t.Fatalf("Expected empty output, got 1 at %d", i)
		}
	}
}

func TestChanVeseRejectsShortWork(t *testing.T) {
	err := ChanVese{}.Refine(RefineRequest{
		Width:       4,
		Height:      4,
		Mask:        make([]int32, 16),
		Intensities: make([]float64, 16),
		Work:        make([]float64, 16),
	})
	if !errors.Is(err, ErrMalformedBuffer) {
		t.Errorf("Expected ErrMalformedBuffer, got %v", err)
	}
}

func TestBuiltinLoader(t *testing.T) {
	set, err := Builtin().Load(context.Background())
	if err != nil {
		t.Fatalf("Builtin loader failed: %v", err)
	}
	if err := set.Validate(); err != nil {
		t.Errorf("Builtin set invalid: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := Builtin().Load(ctx); err == nil {
		t.Error("Expected cancelled context to fail loading")
	}

	var empty *Set
	if empty.Validate() == nil {
		t.Error("Expected nil set to be invalid")
	}
}
