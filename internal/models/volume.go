package models

import (
	"errors"
	"fmt"
)

// ErrInvalidWindow is returned when a VOI window has Upper <= Lower.
var ErrInvalidWindow = errors.New("invalid VOI window")

// Spacing is the physical size of a voxel in mm along each axis
type Spacing struct {
	X, Y, Z float64
}

// VOIWindow is the display intensity range used to clip and normalize
// intensities before they are handed to the numeric kernels.
type VOIWindow struct {
	Lower float64
	Upper float64
}

// Validate checks that the window has a positive width
func (w VOIWindow) Validate() error {
	if !(w.Upper > w.Lower) {
		return fmt.Errorf("%w: lower %g, upper %g", ErrInvalidWindow, w.Lower, w.Upper)
	}
	return nil
}

// Normalize clamps v into [Lower, Upper] and maps it onto [0, 1].
// Values outside the window saturate.
func (w VOIWindow) Normalize(v float64) float64 {
	if v > w.Upper {
		v = w.Upper
	} else if v < w.Lower {
		v = w.Lower
	}
	return (v - w.Lower) / (w.Upper - w.Lower)
}

// Volume represents a 3D scalar image volume
type Volume struct {
	// Data is the 3D intensity data as a 1D array indexed z*W*H + y*W + x
	Data []float64

	// Width, Height, Depth are the dimensions of the volume in voxels
	Width  int
	Height int
	Depth  int

	// Window is the VOI range used for normalization
	Window VOIWindow

	// Spacing is the physical size of each voxel
	Spacing Spacing
}

// Index returns the flat buffer index of voxel (x, y, z)
func (v *Volume) Index(x, y, z int) int {
	return z*v.Width*v.Height + y*v.Width + x
}

// Contains reports whether (x, y, z) lies inside the volume
func (v *Volume) Contains(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < v.Width && y < v.Height && z < v.Depth
}

// SliceLen is the number of voxels in one axial slice
func (v *Volume) SliceLen() int {
	return v.Width * v.Height
}

// Validate checks that the buffer matches the declared dimensions
func (v *Volume) Validate() error {
	if v.Width <= 0 || v.Height <= 0 || v.Depth <= 0 {
		return fmt.Errorf("volume dimensions must be positive, got %dx%dx%d", v.Width, v.Height, v.Depth)
	}
	if len(v.Data) != v.Width*v.Height*v.Depth {
		return fmt.Errorf("volume buffer has %d voxels, dimensions require %d",
			len(v.Data), v.Width*v.Height*v.Depth)
	}
	return v.Window.Validate()
}

// Labelmap is a per-voxel segment membership volume parallel to an
// intensity Volume. 0 means unlabeled.
type Labelmap struct {
	// ID identifies the segmentation in modification notifications
	ID string

	Data []int32

	Width  int
	Height int
	Depth  int

	Spacing Spacing
}

// NewLabelmap allocates an empty labelmap matching the given volume
func NewLabelmap(id string, vol *Volume) *Labelmap {
	return &Labelmap{
		ID:      id,
		Data:    make([]int32, vol.Width*vol.Height*vol.Depth),
		Width:   vol.Width,
		Height:  vol.Height,
		Depth:   vol.Depth,
		Spacing: vol.Spacing,
	}
}

// Index returns the flat buffer index of voxel (x, y, z)
func (l *Labelmap) Index(x, y, z int) int {
	return z*l.Width*l.Height + y*l.Width + x
}

// At returns the segment index stored at (x, y, z)
func (l *Labelmap) At(x, y, z int) int32 {
	return l.Data[l.Index(x, y, z)]
}

// Slice returns a view of slice z that shares memory with the labelmap
func (l *Labelmap) Slice(z int) []int32 {
	n := l.Width * l.Height
	return l.Data[z*n : (z+1)*n : (z+1)*n]
}

// Count returns the number of voxels on slice z holding segment
func (l *Labelmap) Count(z int, segment int32) int {
	count := 0
	for _, v := range l.Slice(z) {
		if v == segment {
			count++
		}
	}
	return count
}

// SameShape reports whether the labelmap shares dimensions with vol
func (l *Labelmap) SameShape(vol *Volume) bool {
	return l.Width == vol.Width && l.Height == vol.Height && l.Depth == vol.Depth
}

// Validate checks that the buffer matches the declared dimensions
func (l *Labelmap) Validate() error {
	if l.Width <= 0 || l.Height <= 0 || l.Depth <= 0 {
		return fmt.Errorf("labelmap dimensions must be positive, got %dx%dx%d", l.Width, l.Height, l.Depth)
	}
	if len(l.Data) != l.Width*l.Height*l.Depth {
		return fmt.Errorf("labelmap buffer has %d voxels, dimensions require %d",
			len(l.Data), l.Width*l.Height*l.Depth)
	}
	return nil
}

// Seed is a user click in index space together with the brush settings
// active at the time of the click.
type Seed struct {
	X, Y, Z int

	// Radius is the brush radius in voxels
	Radius int

	// Sensitivity controls how aggressively the threshold grows
	Sensitivity float64
}

// BoundingBox is an axis-aligned rectangle on one slice. MaxX and MaxY are
// the coordinates of the last labeled column and row.
type BoundingBox struct {
	MinX, MinY int
	MaxX, MaxY int
}

// EmptyBox is returned for slices that do not contain the segment
var EmptyBox = BoundingBox{MinX: 0, MinY: 0, MaxX: -1, MaxY: -1}

// ExclusiveSize returns MaxX-MinX by MaxY-MinY, leaving out the last
// labeled column and row.
func (b BoundingBox) ExclusiveSize() (width, height int) {
	return b.MaxX - b.MinX, b.MaxY - b.MinY
}

// InclusiveSize returns the full extent of the labeled pixels
func (b BoundingBox) InclusiveSize() (width, height int) {
	return b.MaxX - b.MinX + 1, b.MaxY - b.MinY + 1
}

// Empty reports whether the box encloses no pixel
func (b BoundingBox) Empty() bool {
	return b.MaxX < b.MinX || b.MaxY < b.MinY
}
