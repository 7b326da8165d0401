// Package testdata builds synthetic camera frames for tests.
package testdata

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// Frame returns a BGR frame of the given size with a vertical gradient and a
// filled circle whose horizontal position depends on seed. Callers own the
// returned Mat.
func Frame(width, height, seed int) *gocv.Mat {
	mat := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)

	for y := 0; y < height; y++ {
		shade := uint8(y * 255 / max(height-1, 1))
		gocv.Line(&mat, image.Pt(0, y), image.Pt(width-1, y), color.RGBA{B: shade, G: shade / 2, R: 64}, 1)
	}

	center := image.Pt((seed*37)%max(width, 1), height/2)
	gocv.Circle(&mat, center, max(height/8, 1), color.RGBA{R: 230, G: 190, B: 160}, -1)

	return &mat
}

// Sequence returns n frames with a moving circle. Release them with Close.
func Sequence(n, width, height int) []*gocv.Mat {
	frames := make([]*gocv.Mat, 0, n)
	for i := 0; i < n; i++ {
		frames = append(frames, Frame(width, height, i))
	}
	return frames
}

// Close releases every frame.
func Close(frames []*gocv.Mat) {
	for _, f := range frames {
		if f != nil {
			f.Close()
		}
	}
}
