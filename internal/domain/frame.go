package domain

import (
	"image"
	"image/draw"
)

// Frame is one decoded video frame. JPEG holds the encoded bytes exactly as
// emitted by the decoder so adapters that speak JPEG don't pay a re-encode;
// Image is the decoded raster. A frame is owned by the pipeline for a single
// iteration step and discarded afterwards.
type Frame struct {
	Index int
	JPEG  []byte
	Image image.Image
}

// ToGray converts a frame image to 8-bit grayscale. JPEG frames decode to
// YCbCr, whose Y plane already is the full-resolution luma, so that path is
// a row copy instead of a per-pixel color conversion.
func ToGray(img image.Image) *image.Gray {
	if y, ok := img.(*image.YCbCr); ok {
		return grayFromLuma(y)
	}
	b := img.Bounds()
	gray := image.NewGray(b)
	draw.Draw(gray, b, img, b.Min, draw.Src)
	return gray
}

func grayFromLuma(img *image.YCbCr) *image.Gray {
	b := img.Bounds()
	gray := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		src := img.YOffset(b.Min.X, y)
		dst := gray.PixOffset(b.Min.X, y)
		copy(gray.Pix[dst:dst+b.Dx()], img.Y[src:src+b.Dx()])
	}
	return gray
}
