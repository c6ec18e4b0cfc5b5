package kernel

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// eta regularizes the gradient magnitude in the curvature weights
const eta = 1e-8

// ChanVese refines a mask with the two-phase Chan-Vese active contour,
// solved with a semi-implicit Gauss-Seidel scheme. The level set is
// initialized as the signed distance to the prior mask boundary.
type ChanVese struct{}

// WorkLen returns the scratch size: level set plus two weight planes
func (ChanVese) WorkLen(width, height int) int {
	return 3 * width * height
}

// Refine implements ContourRefiner
func (c ChanVese) Refine(req RefineRequest) error {
	w, h := req.Width, req.Height
	n := w * h
	if err := checkLen("mask", len(req.Mask), n); err != nil {
		return err
	}
	if err := checkLen("intensities", len(req.Intensities), n); err != nil {
		return err
	}
	if err := checkLen("work", len(req.Work), c.WorkLen(w, h)); err != nil {
		return err
	}
	if n == 0 {
		return nil
	}

	phi := req.Work[:n]
	in := req.Work[n : 2*n]
	out := req.Work[2*n : 3*n]

	if !initLevelSet(req.Mask[:n], w, h, phi, in, out) {
		// Empty prior: there is nothing to evolve.
		clear(req.Mask[:n])
		return nil
	}

	p := req.Params
	f := req.Intensities[:n]

	for iter := 0; iter < p.MaxIterations; iter++ {
		insideCount := 0
		for i, v := range phi {
			if v > 0 {
				in[i], out[i] = 1, 0
				insideCount++
			} else {
				in[i], out[i] = 0, 1
			}
		}
		if insideCount == 0 {
			break
		}
		c1 := stat.Mean(f, in)
		c2 := c1
		if insideCount < n {
			c2 = stat.Mean(f, out)
		}

		for y := 0; y < h; y++ {
			ym, yp := max(y-1, 0), min(y+1, h-1)
			for x := 0; x < w; x++ {
				xm, xp := max(x-1, 0), min(x+1, w-1)
				i := y*w + x

				cur := phi[i]
				right, left := phi[y*w+xp], phi[y*w+xm]
				down, up := phi[yp*w+x], phi[ym*w+x]

				c1w := 1 / math.Sqrt(eta+sq(right-cur)+sq(down-up)/4)
				c2w := 1 / math.Sqrt(eta+sq(cur-left)+sq(phi[yp*w+xm]-phi[ym*w+xm])/4)
				c3w := 1 / math.Sqrt(eta+sq(right-left)/4+sq(down-cur))
				c4w := 1 / math.Sqrt(eta+sq(phi[ym*w+xp]-phi[ym*w+xm])/4+sq(cur-up))

				delta := p.TimeStep / (math.Pi * (1 + cur*cur))
				data := -p.FidelityInside*sq(f[i]-c1) + p.FidelityOutside*sq(f[i]-c2)

				num := cur + delta*(p.Tension*(c1w*right+c2w*left+c3w*down+c4w*up)+data)
				den := 1 + delta*p.Tension*(c1w+c2w+c3w+c4w)
				phi[i] = num / den
			}
		}
	}

	for i, v := range phi {
		if v > 0 {
			req.Mask[i] = 1
		} else {
			req.Mask[i] = 0
		}
	}
	return nil
}

// initLevelSet writes the signed distance to the mask boundary into phi,
// positive inside. It returns false when the mask is empty.
func initLevelSet(mask []int32, w, h int, phi, dIn, dOut []float64) bool {
	inside := 0
	for i, v := range mask {
		if v == 1 {
			inside++
			dIn[i], dOut[i] = math.Inf(1), 0
		} else {
			dIn[i], dOut[i] = 0, math.Inf(1)
		}
	}
	if inside == 0 {
		return false
	}
	chamfer(dIn, w, h)
	chamfer(dOut, w, h)

	// A mask covering the whole box has no boundary to measure from.
	limit := float64(w + h)
	for i := range phi {
		if mask[i] == 1 {
			phi[i] = math.Min(dIn[i], limit) - 0.5
		} else {
			phi[i] = -(math.Min(dOut[i], limit) - 0.5)
		}
	}
	return true
}

// chamfer runs a two-pass 3x3 chamfer distance transform in place. Zero
// entries are the features; every other entry receives its distance to
// the nearest feature.
func chamfer(d []float64, w, h int) {
	const diag = math.Sqrt2
	at := func(x, y int) float64 {
		if x < 0 || y < 0 || x >= w || y >= h {
			return math.Inf(1)
		}
		return d[y*w+x]
	}
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := y*w + x
			d[i] = math.Min(d[i], math.Min(
				math.Min(at(x-1, y)+1, at(x, y-1)+1),
				math.Min(at(x-1, y-1)+diag, at(x+1, y-1)+diag)))
		}
	}
	for y := h - 1; y >= 0; y-- {
		for x := w - 1; x >= 0; x-- {
			i := y*w + x
			d[i] = math.Min(d[i], math.Min(
				math.Min(at(x+1, y)+1, at(x, y+1)+1),
				math.Min(at(x+1, y+1)+diag, at(x-1, y+1)+diag)))
		}
	}
}

func sq(v float64) float64 {
	return v * v
}
