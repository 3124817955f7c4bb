package flow

import (
	"image"
	"math"
	"sort"
)

type point struct {
	x, y float64
}

// detectCorners finds up to cfg.MaxCorners Shi-Tomasi features in img,
// strongest first, with at least cfg.MinDistance pixels between any two.
func detectCorners(img *image.Gray, cfg Config) []point {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	if w < cfg.BlockSize+2 || h < cfg.BlockSize+2 {
		return nil
	}

	ix, iy := sobelGradients(img)
	response := minEigenvalues(ix, iy, w, h, cfg.BlockSize)

	var maxResp float64
	for _, r := range response {
		if r > maxResp {
			maxResp = r
		}
	}
	if maxResp == 0 {
		return nil
	}
	threshold := maxResp * cfg.QualityLevel

	candidates := localMaxima(response, w, h, threshold)
	sort.Slice(candidates, func(i, j int) bool {
		return response[candidates[i].idx] > response[candidates[j].idx]
	})

	return spaceFilter(candidates, cfg.MaxCorners, cfg.MinDistance)
}

// sobelGradients computes per-pixel horizontal and vertical derivatives with
// 3x3 Sobel kernels, normalized by 1/8 so the response stays in pixel units.
// Border pixels are left at zero.
func sobelGradients(img *image.Gray) (ix, iy []float64) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	ix = make([]float64, w*h)
	iy = make([]float64, w*h)

	at := func(x, y int) float64 {
		return float64(img.Pix[(y)*img.Stride+(x)])
	}

	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			gx := at(x+1, y-1) - at(x-1, y-1) +
				2*(at(x+1, y)-at(x-1, y)) +
				at(x+1, y+1) - at(x-1, y+1)
			gy := at(x-1, y+1) - at(x-1, y-1) +
				2*(at(x, y+1)-at(x, y-1)) +
				at(x+1, y+1) - at(x+1, y-1)
			ix[y*w+x] = gx / 8
			iy[y*w+x] = gy / 8
		}
	}
	return ix, iy
}

// minEigenvalues computes the smaller eigenvalue of the structure tensor
// summed over a blockSize window at every pixel, using summed-area tables so
// each window sum is O(1).
func minEigenvalues(ix, iy []float64, w, h, blockSize int) []float64 {
	ixx := make([]float64, w*h)
	iyy := make([]float64, w*h)
	ixy := make([]float64, w*h)
	for i := range ix {
		ixx[i] = ix[i] * ix[i]
		iyy[i] = iy[i] * iy[i]
		ixy[i] = ix[i] * iy[i]
	}

	satXX := summedArea(ixx, w, h)
	satYY := summedArea(iyy, w, h)
	satXY := summedArea(ixy, w, h)

	r := blockSize / 2
	response := make([]float64, w*h)
	for y := r; y < h-r; y++ {
		for x := r; x < w-r; x++ {
			sxx := boxSum(satXX, w, x-r, y-r, x+r, y+r)
			syy := boxSum(satYY, w, x-r, y-r, x+r, y+r)
			sxy := boxSum(satXY, w, x-r, y-r, x+r, y+r)

			// Smaller eigenvalue of [[sxx, sxy], [sxy, syy]].
			trace := sxx + syy
			diff := sxx - syy
			response[y*w+x] = (trace - math.Sqrt(diff*diff+4*sxy*sxy)) / 2
		}
	}
	return response
}

// summedArea builds a (w+1)x(h+1) integral image with a zero first row and
// column.
func summedArea(src []float64, w, h int) []float64 {
	sw := w + 1
	sat := make([]float64, sw*(h+1))
	for y := 0; y < h; y++ {
		var rowSum float64
		for x := 0; x < w; x++ {
			rowSum += src[y*w+x]
			sat[(y+1)*sw+(x+1)] = sat[y*sw+(x+1)] + rowSum
		}
	}
	return sat
}

// boxSum returns the sum over the inclusive pixel rectangle [x0,x1]x[y0,y1].
func boxSum(sat []float64, w, x0, y0, x1, y1 int) float64 {
	sw := w + 1
	return sat[(y1+1)*sw+(x1+1)] - sat[y0*sw+(x1+1)] - sat[(y1+1)*sw+x0] + sat[y0*sw+x0]
}

type candidate struct {
	idx  int
	x, y int
}

// localMaxima returns pixels at or above threshold that dominate their 3x3
// neighborhood. Ties toward earlier pixels break with a strict comparison on
// the already-visited half of the neighborhood.
func localMaxima(response []float64, w, h int, threshold float64) []candidate {
	var out []candidate
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			v := response[y*w+x]
			if v < threshold || v <= 0 {
				continue
			}
			isMax := true
			for dy := -1; dy <= 1 && isMax; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					n := response[(y+dy)*w+(x+dx)]
					before := dy < 0 || (dy == 0 && dx < 0)
					if (before && n >= v) || (!before && n > v) {
						isMax = false
						break
					}
				}
			}
			if isMax {
				out = append(out, candidate{idx: y*w + x, x: x, y: y})
			}
		}
	}
	return out
}

// spaceFilter greedily accepts candidates strongest-first, skipping any
// within minDistance of an already accepted corner.
func spaceFilter(sorted []candidate, maxCorners int, minDistance float64) []point {
	minDistSq := minDistance * minDistance
	var accepted []point
	for _, c := range sorted {
		if len(accepted) >= maxCorners {
			break
		}
		ok := true
		for _, a := range accepted {
			dx := float64(c.x) - a.x
			dy := float64(c.y) - a.y
			if dx*dx+dy*dy < minDistSq {
				ok = false
				break
			}
		}
		if ok {
			accepted = append(accepted, point{x: float64(c.x), y: float64(c.y)})
		}
	}
	return accepted
}
