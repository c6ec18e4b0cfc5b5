// Package volumeio loads intensity volumes from slice images or raw voxel
// dumps and stores labelmaps in a compressed file format.
package volumeio

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"
	log "github.com/sirupsen/logrus"

	"segcaliper/internal/models"
)

var sliceExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".tif":  true,
	".tiff": true,
	".bmp":  true,
}

// LoadSliceStack reads every image in dir as one axial slice, ordered by
// the number embedded in the file name. Intensities are the grey level in
// [0, 1]; the VOI window spans the loaded range.
func LoadSliceStack(dir string, spacing models.Spacing) (*models.Volume, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if sliceExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, entry.Name())
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no slice images found in %s", dir)
	}

	sort.SliceStable(files, func(i, j int) bool {
		return extractNumber(files[i]) < extractNumber(files[j])
	})

	vol := &models.Volume{Depth: len(files), Spacing: spacing}
	for z, name := range files {
		img, err := imaging.Open(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to load image %s: %w", name, err)
		}
		gray := imaging.Grayscale(img)
		b := gray.Bounds()
		if z == 0 {
			vol.Width, vol.Height = b.Dx(), b.Dy()
			vol.Data = make([]float64, vol.Width*vol.Height*vol.Depth)
		} else if b.Dx() != vol.Width || b.Dy() != vol.Height {
			return nil, fmt.Errorf("slice %s is %dx%d, expected %dx%d", name, b.Dx(), b.Dy(), vol.Width, vol.Height)
		}

		for y := 0; y < vol.Height; y++ {
			for x := 0; x < vol.Width; x++ {
				// Grayscale leaves equal channels; read red.
				v := gray.Pix[y*gray.Stride+x*4]
				vol.Data[vol.Index(x, y, z)] = float64(v) / 255.0
			}
		}
	}

	vol.Window = AutoWindow(vol.Data)
	log.WithFields(log.Fields{
		"dir":    dir,
		"slices": vol.Depth,
		"width":  vol.Width,
		"height": vol.Height,
	}).Debug("Slice stack loaded")
	return vol, nil
}

// extractNumber returns the digits of a file name as an integer, or 0 when
// there are none
func extractNumber(filename string) int {
	var digits strings.Builder
	for _, c := range filepath.Base(filename) {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	num, err := strconv.Atoi(digits.String())
	if err != nil {
		return 0
	}
	return num
}
