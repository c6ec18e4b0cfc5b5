// Package visualization renders volume slices with their segmentation
// overlay and measured diameters to PNG files.
package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"golang.org/x/image/vector"

	"segcaliper/internal/models"
	"segcaliper/pkg/geometry"
	"segcaliper/pkg/segmentation"
)

// palette colors segments by index, cycling past its end
var palette = []color.NRGBA{
	{R: 230, G: 60, B: 60, A: 255},
	{R: 60, G: 200, B: 90, A: 255},
	{R: 70, G: 120, B: 230, A: 255},
	{R: 240, G: 200, B: 50, A: 255},
	{R: 200, G: 80, B: 220, A: 255},
	{R: 60, G: 210, B: 210, A: 255},
}

var (
	diameterColor   = color.NRGBA{R: 255, G: 255, B: 0, A: 255}
	orthogonalColor = color.NRGBA{R: 0, G: 255, B: 255, A: 255}
)

// SegmentColor returns the overlay color of a segment
func SegmentColor(segment int32) color.NRGBA {
	if segment <= 0 {
		return color.NRGBA{}
	}
	return palette[int(segment-1)%len(palette)]
}

// Viewer renders slices of a volume and its labelmap
type Viewer struct {
	vol *models.Volume
	lm  *models.Labelmap

	// scale is the nearest-neighbour upscale factor of rendered slices
	scale int

	// opacity of the segment fill in [0, 1]
	opacity float64
}

// NewViewer creates a viewer. lm may be nil to render intensities only.
func NewViewer(vol *models.Volume, lm *models.Labelmap, scale int) *Viewer {
	if scale < 1 {
		scale = 1
	}
	return &Viewer{vol: vol, lm: lm, scale: scale, opacity: 0.5}
}

// ExtractSlice extracts a VOI-normalized 2D slice along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray16, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	var (
		cols, rows int
		at         func(col, row int) int
	)
	switch axis {
	case "x", "X":
		if position >= v.vol.Width {
			return nil, fmt.Errorf("position %d exceeds width %d", position, v.vol.Width)
		}
		cols, rows = v.vol.Depth, v.vol.Height
		at = func(z, y int) int { return v.vol.Index(position, y, z) }
	case "y", "Y":
		if position >= v.vol.Height {
			return nil, fmt.Errorf("position %d exceeds height %d", position, v.vol.Height)
		}
		cols, rows = v.vol.Width, v.vol.Depth
		at = func(x, z int) int { return v.vol.Index(x, position, z) }
	case "z", "Z":
		if position >= v.vol.Depth {
			return nil, fmt.Errorf("position %d exceeds depth %d", position, v.vol.Depth)
		}
		cols, rows = v.vol.Width, v.vol.Height
		at = func(x, y int) int { return v.vol.Index(x, y, position) }
	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	img := image.NewGray16(image.Rect(0, 0, cols, rows))
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			n := v.vol.Window.Normalize(v.vol.Data[at(col, row)])
			img.SetGray16(col, row, color.Gray16{Y: uint16(math.Round(n * 65535))})
		}
	}
	return img, nil
}

// RenderSlice returns axial slice z with every labeled voxel tinted by its
// segment color, upscaled by the viewer's scale factor
func (v *Viewer) RenderSlice(z int) (*image.NRGBA, error) {
	gray, err := v.ExtractSlice("z", z)
	if err != nil {
		return nil, err
	}
	img := imaging.Clone(gray)

	if v.lm != nil {
		if !v.lm.SameShape(v.vol) {
			return nil, segmentation.ErrDimensionMismatch
		}
		labels := v.lm.Slice(z)
		for y := 0; y < v.vol.Height; y++ {
			for x := 0; x < v.vol.Width; x++ {
				seg := labels[y*v.vol.Width+x]
				if seg == 0 {
					continue
				}
				img.SetNRGBA(x, y, blend(img.NRGBAAt(x, y), SegmentColor(seg), v.opacity))
			}
		}
	}

	if v.scale > 1 {
		img = imaging.Resize(img, v.vol.Width*v.scale, v.vol.Height*v.scale, imaging.NearestNeighbor)
	}
	return img, nil
}

func blend(dst, src color.NRGBA, alpha float64) color.NRGBA {
	mix := func(a, b uint8) uint8 {
		return uint8(math.Round(float64(a)*(1-alpha) + float64(b)*alpha))
	}
	return color.NRGBA{R: mix(dst.R, src.R), G: mix(dst.G, src.G), B: mix(dst.B, src.B), A: 255}
}

// DrawMeasurement draws both chords of m onto an image produced by
// RenderSlice, with their labels next to the first endpoint
func (v *Viewer) DrawMeasurement(img *image.NRGBA, m *segmentation.Measurement) {
	d, o := m.Extended()
	v.drawChord(img, d, diameterColor)
	v.drawLabel(img, d.First.X, d.First.Y, m.MaxLabel, diameterColor)
	if m.HasOrthogonal {
		v.drawChord(img, o, orthogonalColor)
		v.drawLabel(img, o.First.X, o.First.Y, m.OrthogonalLabel, orthogonalColor)
	}
}

// drawChord rasterizes a chord given in voxel coordinates as a quad one
// output pixel wide. Voxel (x, y) covers [x, x+1) after scaling, so centers
// are shifted by half a voxel.
func (v *Viewer) drawChord(img *image.NRGBA, p geometry.DiameterPair, c color.NRGBA) {
	s := float64(v.scale)
	x0, y0 := (p.First.X+0.5)*s, (p.First.Y+0.5)*s
	x1, y1 := (p.Second.X+0.5)*s, (p.Second.Y+0.5)*s

	dx, dy := x1-x0, y1-y0
	length := math.Hypot(dx, dy)
	if length == 0 {
		return
	}
	const halfWidth = 0.75
	nx, ny := -dy/length*halfWidth, dx/length*halfWidth

	b := img.Bounds()
	r := vector.NewRasterizer(b.Dx(), b.Dy())
	r.DrawOp = draw.Over
	r.MoveTo(float32(x0+nx), float32(y0+ny))
	r.LineTo(float32(x1+nx), float32(y1+ny))
	r.LineTo(float32(x1-nx), float32(y1-ny))
	r.LineTo(float32(x0-nx), float32(y0-ny))
	r.ClosePath()
	r.Draw(img, b, image.NewUniform(c), image.Point{})
}

func (v *Viewer) drawLabel(img *image.NRGBA, x, y float64, text string, c color.NRGBA) {
	if text == "" {
		return
	}
	s := float64(v.scale)
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(int(x*s)+4, int(y*s)-4),
	}
	d.DrawString(text)
}

// SaveSlice writes img to filename; the format follows the extension
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0755); err != nil {
		return err
	}
	return imaging.Save(img, filename)
}

// SaveSliceSequence renders and saves every axial slice into outputDir
func (v *Viewer) SaveSliceSequence(outputDir string) error {
	for z := 0; z < v.vol.Depth; z++ {
		img, err := v.RenderSlice(z)
		if err != nil {
			return err
		}
		filename := filepath.Join(outputDir, fmt.Sprintf("slice_z_%03d.png", z))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}
	return nil
}

// OverlayWriter renders every slice reported modified into Dir, one
// subdirectory per segmentation id
type OverlayWriter struct {
	Viewer *Viewer
	Dir    string

	// Measurements are drawn on the slice they were taken on
	Measurements []*segmentation.Measurement

	// Written collects the files produced so far
	Written []string
}

// SegmentationDataModified renders the modified slices. Failures are
// logged and skipped.
func (w *OverlayWriter) SegmentationDataModified(segmentationID string, slices []int) {
	for _, z := range slices {
		img, err := w.Viewer.RenderSlice(z)
		if err != nil {
			log.WithField("slice", z).Warnf("Failed to render overlay: %v", err)
			continue
		}
		for _, m := range w.Measurements {
			if m.Slice == z {
				w.Viewer.DrawMeasurement(img, m)
			}
		}
		filename := filepath.Join(w.Dir, segmentationID, fmt.Sprintf("slice_z_%03d.png", z))
		if err := w.Viewer.SaveSlice(img, filename); err != nil {
			log.WithField("slice", z).Warnf("Failed to save overlay: %v", err)
			continue
		}
		w.Written = append(w.Written, filename)
	}
}
