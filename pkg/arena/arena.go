// Package arena provides the per-operation scratch memory used by the
// segmentation engine. Buffers are carved as named views that are zeroed on
// creation and capped to their requested length, so a kernel writing past
// the end of one view panics instead of silently corrupting its neighbour.
package arena

import (
	"errors"
	"fmt"
)

// ErrViewExists is returned when a view name is carved twice within one
// operation.
var ErrViewExists = errors.New("arena view already exists")

// View names used by the engine
const (
	Window      = "window"
	WindowMask  = "window-mask"
	Intensities = "intensities"
	Mask        = "mask"
	Work        = "work"
)

type span struct {
	floats bool
	off    int
	n      int
}

// Arena owns float64 and int32 backing stores. It is not safe for
// concurrent use; the engine serializes operations per labelmap.
type Arena struct {
	floats []float64
	ints   []int32

	floatOff int
	intOff   int

	views map[string]span
}

// New creates an arena with the given initial capacities. Capacity grows on
// demand; it never shrinks.
func New(floatCap, intCap int) *Arena {
	return &Arena{
		floats: make([]float64, floatCap),
		ints:   make([]int32, intCap),
		views:  make(map[string]span),
	}
}

// Reset forgets every view. Memory is kept for the next operation but views
// handed out earlier must not be used afterwards.
func (a *Arena) Reset() {
	a.floatOff = 0
	a.intOff = 0
	clear(a.views)
}

// Float64s carves a zeroed float view of length n
func (a *Arena) Float64s(name string, n int) ([]float64, error) {
	if err := a.claim(name, n); err != nil {
		return nil, err
	}
	if a.floatOff+n > len(a.floats) {
		// Existing views keep referencing the old store, which stays alive
		// for as long as they do.
		a.floats = make([]float64, grow(len(a.floats), a.floatOff+n))
		a.floatOff = 0
	}
	v := a.floats[a.floatOff : a.floatOff+n : a.floatOff+n]
	clear(v)
	a.views[name] = span{floats: true, off: a.floatOff, n: n}
	a.floatOff += n
	return v, nil
}

// Int32s carves a zeroed int view of length n
func (a *Arena) Int32s(name string, n int) ([]int32, error) {
	if err := a.claim(name, n); err != nil {
		return nil, err
	}
	if a.intOff+n > len(a.ints) {
		a.ints = make([]int32, grow(len(a.ints), a.intOff+n))
		a.intOff = 0
	}
	v := a.ints[a.intOff : a.intOff+n : a.intOff+n]
	clear(v)
	a.views[name] = span{off: a.intOff, n: n}
	a.intOff += n
	return v, nil
}

// Len returns the length of a carved view and whether it exists
func (a *Arena) Len(name string) (int, bool) {
	s, ok := a.views[name]
	return s.n, ok
}

// InUse reports how many float and int elements the current operation holds
func (a *Arena) InUse() (floats, ints int) {
	for _, s := range a.views {
		if s.floats {
			floats += s.n
		} else {
			ints += s.n
		}
	}
	return floats, ints
}

func (a *Arena) claim(name string, n int) error {
	if n < 0 {
		return fmt.Errorf("arena view %q: negative length %d", name, n)
	}
	if _, ok := a.views[name]; ok {
		return fmt.Errorf("%w: %q", ErrViewExists, name)
	}
	return nil
}

func grow(have, need int) int {
	if have < 1024 {
		have = 1024
	}
	for have < need {
		have *= 2
	}
	return have
}
