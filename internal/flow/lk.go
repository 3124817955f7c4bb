package flow

import (
	"image"
	"math"
)

// trackPoint follows pt from the prev pyramid into the curr pyramid using
// iterative Lucas-Kanade, coarsest level first, doubling the flow estimate
// between levels. Returns the point's position in curr and whether tracking
// succeeded.
func trackPoint(prevPyr, currPyr []*image.Gray, pt point, cfg Config) (point, bool) {
	levels := len(prevPyr)
	if len(currPyr) < levels {
		levels = len(currPyr)
	}

	var flowX, flowY float64
	for level := levels - 1; level >= 0; level-- {
		scale := 1.0 / float64(int(1)<<uint(level))
		px := pt.x * scale
		py := pt.y * scale

		dx, dy, ok := lkAtLevel(prevPyr[level], currPyr[level], px, py, flowX, flowY, cfg)
		if !ok {
			return point{}, false
		}
		flowX, flowY = dx, dy

		if level > 0 {
			flowX *= 2
			flowY *= 2
		}
	}

	moved := point{x: pt.x + flowX, y: pt.y + flowY}
	b := currPyr[0].Bounds()
	if moved.x < 0 || moved.y < 0 || moved.x > float64(b.Dx()-1) || moved.y > float64(b.Dy()-1) {
		return point{}, false
	}
	return moved, true
}

// lkAtLevel refines the flow (initX, initY) for the point (px, py) at one
// pyramid level. The spatial gradient matrix comes from the prev window and
// stays fixed across iterations.
func lkAtLevel(prev, curr *image.Gray, px, py, initX, initY float64, cfg Config) (float64, float64, bool) {
	r := cfg.WindowSize / 2
	n := cfg.WindowSize * cfg.WindowSize

	// Window intensities and gradients in prev, sampled once.
	tmpl := make([]float64, n)
	gradX := make([]float64, n)
	gradY := make([]float64, n)

	var gxx, gxy, gyy float64
	i := 0
	for wy := -r; wy <= r; wy++ {
		for wx := -r; wx <= r; wx++ {
			x := px + float64(wx)
			y := py + float64(wy)
			tmpl[i] = sample(prev, x, y)
			gx := (sample(prev, x+1, y) - sample(prev, x-1, y)) / 2
			gy := (sample(prev, x, y+1) - sample(prev, x, y-1)) / 2
			gradX[i] = gx
			gradY[i] = gy
			gxx += gx * gx
			gxy += gx * gy
			gyy += gy * gy
			i++
		}
	}

	det := gxx*gyy - gxy*gxy
	if det < 1e-6 {
		return 0, 0, false
	}

	flowX, flowY := initX, initY
	for iter := 0; iter < cfg.MaxIterations; iter++ {
		var bx, by float64
		i = 0
		for wy := -r; wy <= r; wy++ {
			for wx := -r; wx <= r; wx++ {
				diff := sample(curr, px+flowX+float64(wx), py+flowY+float64(wy)) - tmpl[i]
				bx += diff * gradX[i]
				by += diff * gradY[i]
				i++
			}
		}

		stepX := (gyy*(-bx) - gxy*(-by)) / det
		stepY := (gxx*(-by) - gxy*(-bx)) / det
		flowX += stepX
		flowY += stepY

		if math.Hypot(stepX, stepY) < cfg.Epsilon {
			break
		}
	}

	return flowX, flowY, true
}

// sample reads img at a subpixel position with bilinear interpolation,
// clamping coordinates to the image bounds.
func sample(img *image.Gray, x, y float64) float64 {
	b := img.Bounds()
	maxX := float64(b.Dx() - 1)
	maxY := float64(b.Dy() - 1)

	if x < 0 {
		x = 0
	} else if x > maxX {
		x = maxX
	}
	if y < 0 {
		y = 0
	} else if y > maxY {
		y = maxY
	}

	x0 := int(x)
	y0 := int(y)
	x1 := x0 + 1
	y1 := y0 + 1
	if x1 > b.Dx()-1 {
		x1 = x0
	}
	if y1 > b.Dy()-1 {
		y1 = y0
	}

	fx := x - float64(x0)
	fy := y - float64(y0)

	p00 := float64(img.Pix[y0*img.Stride+x0])
	p10 := float64(img.Pix[y0*img.Stride+x1])
	p01 := float64(img.Pix[y1*img.Stride+x0])
	p11 := float64(img.Pix[y1*img.Stride+x1])

	top := p00 + fx*(p10-p00)
	bottom := p01 + fx*(p11-p01)
	return top + fy*(bottom-top)
}
