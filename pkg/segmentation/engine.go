// Package segmentation implements the interactive labelmap operations: seed
// growth with active-contour refinement, propagation of a refined region to
// neighbouring slices, and diameter measurement of a labeled region.
//
// An Engine is created once, initialized once, and then serves operations.
// Operations on the same labelmap must not run concurrently; the engine
// does no locking of its own.
package segmentation

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	log "github.com/sirupsen/logrus"

	"segcaliper/internal/models"
	"segcaliper/pkg/arena"
	"segcaliper/pkg/kernel"
)

var (
	// ErrKernelNotReady is returned by every operation issued before Init
	// has completed successfully. No data is modified.
	ErrKernelNotReady = errors.New("numeric kernels not initialized")

	// ErrDegenerateRegion is returned when a segment's bounding box on a
	// slice is narrower or shorter than 2 pixels.
	ErrDegenerateRegion = errors.New("degenerate region")

	// ErrDimensionMismatch is returned when a labelmap does not share the
	// dimensions of its volume.
	ErrDimensionMismatch = errors.New("labelmap and volume dimensions differ")

	// ErrInvalidSeed is returned for seeds outside the volume or with a
	// non-positive radius.
	ErrInvalidSeed = errors.New("invalid seed")

	// ErrInvalidSegment is returned for segment indices <= 0.
	ErrInvalidSegment = errors.New("invalid segment index")
)

// State is the kernel lifecycle of an Engine
type State int32

const (
	Uninitialized State = iota
	Ready
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case Ready:
		return "ready"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Options configures an Engine
type Options struct {
	// Refine holds the active-contour coefficients
	Refine kernel.RefineParams

	// MinArea is the written-voxel count below which propagation stops
	MinArea int

	// Delta is the sampling step along the diameter for the orthogonal
	// diameter search
	Delta float64

	// Locked lists segment indices whose voxels are never overwritten
	Locked []int32

	// Segments maps segment indices to display names for measurement labels
	Segments map[int32]string

	// Notifier receives modified-slice notifications. May be nil.
	Notifier Notifier

	// Logger defaults to the standard logrus logger
	Logger *log.Entry
}

// DefaultOptions returns the settings used by the viewer tools
func DefaultOptions() Options {
	return Options{
		Refine:  kernel.DefaultRefineParams(),
		MinArea: 20,
		Delta:   0.1,
	}
}

// Engine owns the kernels and scratch memory used by every operation
type Engine struct {
	opts    Options
	loader  kernel.Loader
	kernels *kernel.Set
	state   atomic.Int32
	arena   *arena.Arena
	locked  map[int32]bool
	log     *log.Entry
}

// New creates an uninitialized engine. Call Init before any operation.
func New(loader kernel.Loader, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.NewEntry(log.StandardLogger())
	}
	locked := make(map[int32]bool, len(opts.Locked))
	for _, s := range opts.Locked {
		locked[s] = true
	}
	return &Engine{
		opts:   opts,
		loader: loader,
		arena:  arena.New(1<<16, 1<<16),
		locked: locked,
		log:    logger,
	}
}

// Init loads the kernels and moves the engine to Ready. On failure the
// engine stays Uninitialized and Init may be retried.
func (e *Engine) Init(ctx context.Context) error {
	if e.State() == Ready {
		return nil
	}
	set, err := e.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load kernels: %w", err)
	}
	if err := set.Validate(); err != nil {
		return fmt.Errorf("failed to load kernels: %w", err)
	}
	e.kernels = set
	e.state.Store(int32(Ready))
	e.log.Debug("Kernels initialized")
	return nil
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	return State(e.state.Load())
}

func (e *Engine) ready() error {
	if e.State() != Ready {
		return ErrKernelNotReady
	}
	return nil
}

// writable reports whether a voxel currently holding label may be
// overwritten with segment
func (e *Engine) writable(label, segment int32) bool {
	return label == segment || label == 0 || !e.locked[label]
}

func (e *Engine) notify(id string, slices SliceSet) {
	if e.opts.Notifier == nil || slices.Len() == 0 {
		return
	}
	e.opts.Notifier.SegmentationDataModified(id, slices.Sorted())
}

func checkPair(vol *models.Volume, lm *models.Labelmap) error {
	if err := vol.Validate(); err != nil {
		return err
	}
	if err := lm.Validate(); err != nil {
		return err
	}
	if !lm.SameShape(vol) {
		return fmt.Errorf("%w: volume %dx%dx%d, labelmap %dx%dx%d", ErrDimensionMismatch,
			vol.Width, vol.Height, vol.Depth, lm.Width, lm.Height, lm.Depth)
	}
	return nil
}

func checkSegment(segment int32) error {
	if segment <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSegment, segment)
	}
	return nil
}
