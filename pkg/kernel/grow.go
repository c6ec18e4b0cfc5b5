package kernel

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// minBand keeps a flat window from rejecting the seed's own neighbours
const minBand = 1e-3

// SeededThreshold grows a 4-connected region from the window center,
// accepting pixels inside the brush circle whose intensity lies within
// Sensitivity standard deviations of the seed neighbourhood mean.
type SeededThreshold struct{}

// Grow implements ThresholdGrower
func (SeededThreshold) Grow(req GrowRequest) error {
	size := 2*req.Radius + 1
	n := size * size
	if err := checkLen("intensities", len(req.Intensities), n); err != nil {
		return err
	}
	if err := checkLen("output mask", len(req.Out), n); err != nil {
		return err
	}
	clear(req.Out[:n])

	center := req.Radius*size + req.Radius
	if math.IsNaN(req.Intensities[center]) {
		return nil
	}

	valid := make([]float64, 0, n)
	for _, v := range req.Intensities[:n] {
		if !math.IsNaN(v) {
			valid = append(valid, v)
		}
	}
	_, spread := stat.MeanStdDev(valid, nil)
	if math.IsNaN(spread) {
		spread = 0
	}

	seed := make([]float64, 0, 9)
	for dy := -1; dy <= 1; dy++ {
		for dx := -1; dx <= 1; dx++ {
			x, y := req.Radius+dx, req.Radius+dy
			if x < 0 || y < 0 || x >= size || y >= size {
				continue
			}
			if v := req.Intensities[y*size+x]; !math.IsNaN(v) {
				seed = append(seed, v)
			}
		}
	}
	seedMean := stat.Mean(seed, nil)

	band := math.Max(req.Sensitivity*spread, minBand)
	r2 := req.Radius * req.Radius

	accept := func(x, y int) bool {
		dx, dy := x-req.Radius, y-req.Radius
		if dx*dx+dy*dy > r2 {
			return false
		}
		v := req.Intensities[y*size+x]
		return !math.IsNaN(v) && math.Abs(v-seedMean) <= band
	}

	// The clicked pixel always belongs to the region.
	queue := []int{center}
	req.Out[center] = 1
	for len(queue) > 0 {
		idx := queue[0]
		queue = queue[1:]
		x, y := idx%size, idx/size
		for _, d := range [4][2]int{{1, 0}, {-1, 0}, {0, 1}, {0, -1}} {
			nx, ny := x+d[0], y+d[1]
			if nx < 0 || ny < 0 || nx >= size || ny >= size {
				continue
			}
			nidx := ny*size + nx
			if req.Out[nidx] == 1 || !accept(nx, ny) {
				continue
			}
			req.Out[nidx] = 1
			queue = append(queue, nidx)
		}
	}
	return nil
}
