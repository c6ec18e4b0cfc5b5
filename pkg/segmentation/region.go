package segmentation

import (
	"fmt"
	"math"

	log "github.com/sirupsen/logrus"

	"segcaliper/internal/models"
	"segcaliper/pkg/arena"
	"segcaliper/pkg/kernel"
)

// GrowAndRefine grows a region from the seed with the threshold kernel,
// writes it into the labelmap at segment, then corrects the segment's
// boundary on the seed slice with the active-contour kernel. Only pixels
// inside the segment's bounding box are rewritten by the refinement.
//
// It returns the set of modified slices, which is always the seed slice,
// and notifies the Notifier once.
func (e *Engine) GrowAndRefine(vol *models.Volume, lm *models.Labelmap, seed models.Seed, segment int32) (SliceSet, error) {
	slices, err := e.growAndRefine(vol, lm, seed, segment)
	e.notify(lm.ID, slices)
	return slices, err
}

// Segment runs GrowAndRefine and, when propagate is set, Propagate with the
// seed's radius, reporting all modified slices in a single notification.
func (e *Engine) Segment(vol *models.Volume, lm *models.Labelmap, seed models.Seed, segment int32, propagate bool) (SliceSet, error) {
	slices, err := e.growAndRefine(vol, lm, seed, segment)
	if err == nil && propagate {
		var res PropagationResult
		res, err = e.propagate(vol, lm, seed.Z, segment, seed.Radius)
		slices.Merge(res.Slices)
	}
	e.notify(lm.ID, slices)
	return slices, err
}

func (e *Engine) checkSeed(vol *models.Volume, seed models.Seed) error {
	if !vol.Contains(seed.X, seed.Y, seed.Z) {
		return fmt.Errorf("%w: (%d, %d, %d) outside %dx%dx%d volume", ErrInvalidSeed,
			seed.X, seed.Y, seed.Z, vol.Width, vol.Height, vol.Depth)
	}
	if seed.Radius < 1 {
		return fmt.Errorf("%w: radius %d", ErrInvalidSeed, seed.Radius)
	}
	if seed.Sensitivity < 0 || math.IsNaN(seed.Sensitivity) {
		return fmt.Errorf("%w: sensitivity %g", ErrInvalidSeed, seed.Sensitivity)
	}
	return nil
}

func (e *Engine) growAndRefine(vol *models.Volume, lm *models.Labelmap, seed models.Seed, segment int32) (SliceSet, error) {
	slices := NewSliceSet()
	if err := e.ready(); err != nil {
		return slices, err
	}
	if err := checkPair(vol, lm); err != nil {
		return slices, err
	}
	if err := checkSegment(segment); err != nil {
		return slices, err
	}
	if err := e.checkSeed(vol, seed); err != nil {
		return slices, err
	}
	defer e.arena.Reset()

	logger := e.log.WithFields(log.Fields{"segment": segment, "slice": seed.Z})

	r := seed.Radius
	size := 2*r + 1
	window, err := e.arena.Float64s(arena.Window, size*size)
	if err != nil {
		return slices, err
	}
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			x, y := seed.X-r+j, seed.Y-r+i
			if !vol.Contains(x, y, seed.Z) {
				window[i*size+j] = math.NaN()
				continue
			}
			window[i*size+j] = vol.Window.Normalize(vol.Data[vol.Index(x, y, seed.Z)])
		}
	}

	grown, err := e.arena.Int32s(arena.WindowMask, size*size)
	if err != nil {
		return slices, err
	}
	err = e.kernels.Grower.Grow(kernel.GrowRequest{
		Radius:      r,
		Sensitivity: seed.Sensitivity,
		Intensities: window,
		Out:         grown,
	})
	if err != nil {
		return slices, fmt.Errorf("seed growth failed: %w", err)
	}

	written := 0
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			x, y := seed.X-r+j, seed.Y-r+i
			if grown[i*size+j] != 1 || !vol.Contains(x, y, seed.Z) {
				continue
			}
			idx := lm.Index(x, y, seed.Z)
			if e.writable(lm.Data[idx], segment) {
				lm.Data[idx] = segment
				written++
			}
		}
	}
	slices.Add(seed.Z)
	logger.WithField("written", written).Debug("Seed region grown")

	labels := lm.Slice(seed.Z)
	box := e.kernels.Boxer.BoundingBox(labels, segment, lm.Height, lm.Width)
	w, h := box.ExclusiveSize()
	if w < 2 || h < 2 {
		logger.Debugf("Skipping refinement of %dx%d region", w, h)
		return slices, nil
	}

	mask, err := e.refineOnto(vol, labels, seed.Z, box, w, h, segment)
	if err != nil {
		return slices, err
	}
	written = e.commit(lm, seed.Z, box, w, h, mask, segment)
	logger.WithField("written", written).Debug("Seed region refined")
	return slices, nil
}

// refineOnto runs the active contour over box on slice z of vol, using the
// voxels of segment in priorLabels as the initial mask. The returned mask
// is an arena view.
func (e *Engine) refineOnto(vol *models.Volume, priorLabels []int32, z int, box models.BoundingBox, w, h int, segment int32) ([]int32, error) {
	intensities, err := e.arena.Float64s(arena.Intensities, w*h)
	if err != nil {
		return nil, err
	}
	mask, err := e.arena.Int32s(arena.Mask, w*h)
	if err != nil {
		return nil, err
	}
	work, err := e.arena.Float64s(arena.Work, e.kernels.Refiner.WorkLen(w, h))
	if err != nil {
		return nil, err
	}

	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			x, y := box.MinX+j, box.MinY+i
			intensities[i*w+j] = vol.Window.Normalize(vol.Data[vol.Index(x, y, z)])
			if priorLabels[y*vol.Width+x] == segment {
				mask[i*w+j] = 1
			}
		}
	}

	err = e.kernels.Refiner.Refine(kernel.RefineRequest{
		Width:       w,
		Height:      h,
		Mask:        mask,
		Intensities: intensities,
		Params:      e.opts.Refine,
		Work:        work,
	})
	if err != nil {
		return nil, fmt.Errorf("contour refinement failed on slice %d: %w", z, err)
	}
	return mask, nil
}

// countWritable returns how many refined voxels commit would label
func (e *Engine) countWritable(lm *models.Labelmap, z int, box models.BoundingBox, w, h int, mask []int32, segment int32) int {
	labels := lm.Slice(z)
	count := 0
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			if mask[i*w+j] == 1 && e.writable(labels[(box.MinY+i)*lm.Width+box.MinX+j], segment) {
				count++
			}
		}
	}
	return count
}

// commit labels the refined voxels of mask inside box on slice z with
// segment. Voxels the refinement left out keep their label, so earlier
// strokes survive a later refinement. Locked segments are never overwritten.
// It returns the number of voxels labeled with segment.
func (e *Engine) commit(lm *models.Labelmap, z int, box models.BoundingBox, w, h int, mask []int32, segment int32) int {
	labels := lm.Slice(z)
	written := 0
	for i := 0; i < h; i++ {
		for j := 0; j < w; j++ {
			idx := (box.MinY+i)*lm.Width + box.MinX + j
			if mask[i*w+j] == 1 && e.writable(labels[idx], segment) {
				labels[idx] = segment
				written++
			}
		}
	}
	return written
}
