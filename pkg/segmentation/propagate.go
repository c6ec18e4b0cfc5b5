package segmentation

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"segcaliper/internal/models"
)

// HaltReason tells why propagation stopped in one direction
type HaltReason int

const (
	// HaltRadius means the step budget was used up
	HaltRadius HaltReason = iota
	// HaltVolumeEdge means the next slice lies outside the volume
	HaltVolumeEdge
	// HaltDegenerate means the previous slice's region was too small to
	// refine from
	HaltDegenerate
	// HaltAreaCollapse means the refined region fell below the minimum area
	HaltAreaCollapse
)

func (r HaltReason) String() string {
	switch r {
	case HaltRadius:
		return "radius"
	case HaltVolumeEdge:
		return "volume edge"
	case HaltDegenerate:
		return "degenerate region"
	case HaltAreaCollapse:
		return "area collapse"
	default:
		return fmt.Sprintf("HaltReason(%d)", int(r))
	}
}

// Halt records where one propagation direction stopped
type Halt struct {
	// Direction is -1 for decreasing slice index and +1 for increasing
	Direction int

	// Slice is the slice that was not written
	Slice int

	Reason HaltReason

	// Area is the writable voxel count that triggered HaltAreaCollapse
	Area int
}

// PropagationResult lists the slices written by Propagate and where each
// direction stopped
type PropagationResult struct {
	Slices SliceSet
	Halts  []Halt
}

// Propagate carries the segment from seedSlice to its neighbours, first
// toward decreasing slice index and then toward increasing, at most
// radius-1 slices each way. Every step refines the next slice using the
// previous slice's region as the prior and its bounding box as the
// refinement window. A direction stops when the refined region would write
// fewer than MinArea voxels; that slice is left unchanged.
//
// The seed slice itself is never rewritten. Modified slices are reported in
// one notification.
func (e *Engine) Propagate(vol *models.Volume, lm *models.Labelmap, seedSlice int, segment int32, radius int) (PropagationResult, error) {
	res, err := e.propagate(vol, lm, seedSlice, segment, radius)
	e.notify(lm.ID, res.Slices)
	return res, err
}

func (e *Engine) propagate(vol *models.Volume, lm *models.Labelmap, seedSlice int, segment int32, radius int) (PropagationResult, error) {
	res := PropagationResult{Slices: NewSliceSet()}
	if err := e.ready(); err != nil {
		return res, err
	}
	if err := checkPair(vol, lm); err != nil {
		return res, err
	}
	if err := checkSegment(segment); err != nil {
		return res, err
	}
	if seedSlice < 0 || seedSlice >= vol.Depth {
		return res, fmt.Errorf("%w: slice %d outside depth %d", ErrInvalidSeed, seedSlice, vol.Depth)
	}
	defer e.arena.Reset()

	for _, dir := range []int{-1, 1} {
		halt, err := e.propagateDirection(vol, lm, seedSlice, segment, radius, dir, res.Slices)
		if err != nil {
			return res, err
		}
		res.Halts = append(res.Halts, halt)
	}

	e.log.WithFields(log.Fields{
		"segment": segment,
		"seed":    seedSlice,
		"slices":  res.Slices.Len(),
	}).Debug("Propagation finished")
	return res, nil
}

func (e *Engine) propagateDirection(vol *models.Volume, lm *models.Labelmap, seedSlice int, segment int32, radius, dir int, written SliceSet) (Halt, error) {
	logger := e.log.WithFields(log.Fields{"segment": segment, "direction": dir})

	for step := 1; step < radius; step++ {
		cur := seedSlice + dir*step
		prev := cur - dir
		if cur < 0 || cur >= vol.Depth {
			return Halt{Direction: dir, Slice: cur, Reason: HaltVolumeEdge}, nil
		}

		e.arena.Reset()
		labels := lm.Slice(prev)
		box := e.kernels.Boxer.BoundingBox(labels, segment, lm.Height, lm.Width)
		w, h := box.InclusiveSize()
		if box.Empty() || w < 2 || h < 2 {
			logger.Debugf("Slice %d region is %dx%d, stopping", prev, w, h)
			return Halt{Direction: dir, Slice: cur, Reason: HaltDegenerate}, nil
		}

		mask, err := e.refineOnto(vol, labels, cur, box, w, h, segment)
		if err != nil {
			return Halt{}, err
		}
		area := e.countWritable(lm, cur, box, w, h, mask, segment)
		if area < e.opts.MinArea {
			logger.Debugf("Slice %d would receive %d voxels, stopping", cur, area)
			return Halt{Direction: dir, Slice: cur, Reason: HaltAreaCollapse, Area: area}, nil
		}

		e.commit(lm, cur, box, w, h, mask, segment)
		written.Add(cur)
		logger.WithFields(log.Fields{"slice": cur, "written": area}).Debug("Slice propagated")
	}
	return Halt{Direction: dir, Slice: seedSlice + dir*radius, Reason: HaltRadius}, nil
}
