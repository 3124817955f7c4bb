package flow

import (
	"image"

	xdraw "golang.org/x/image/draw"
)

// buildPyramid returns img followed by up to maxLevel half-resolution
// copies, coarsest last. Levels stop early once a dimension would drop
// below 8 pixels.
func buildPyramid(img *image.Gray, maxLevel int) []*image.Gray {
	levels := []*image.Gray{img}
	for i := 0; i < maxLevel; i++ {
		prev := levels[len(levels)-1]
		w := prev.Bounds().Dx() / 2
		h := prev.Bounds().Dy() / 2
		if w < 8 || h < 8 {
			break
		}
		next := image.NewGray(image.Rect(0, 0, w, h))
		xdraw.BiLinear.Scale(next, next.Bounds(), prev, prev.Bounds(), xdraw.Src, nil)
		levels = append(levels, next)
	}
	return levels
}
