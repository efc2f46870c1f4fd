package report

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"math"

	"contagion/epidemic"
)

// Intensities maps each density cell to a display intensity in [0, 255], log-compressed and
// scaled against the current maximum so a few hot spots do not wash out the rest of the field.
func Intensities(ds epidemic.DensitySnapshot) []uint8 {
	out := make([]uint8, len(ds.Cells))
	scale := math.Log1p(ds.Max() + 1e-5)
	for i, v := range ds.Cells {
		if v <= 0 {
			continue
		}
		out[i] = uint8(math.Min(math.Log1p(v)/scale, 1) * 255)
	}
	return out
}

// RenderHeatmap writes the density field to @w as a PNG, one @pixelSize square per cell,
// with intensity on the red channel.
func RenderHeatmap(w io.Writer, ds epidemic.DensitySnapshot, pixelSize int) error {
	if pixelSize < 1 {
		pixelSize = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, ds.Cols*pixelSize, ds.Rows*pixelSize))
	intensities := Intensities(ds)
	for y := 0; y < ds.Rows; y++ {
		for x := 0; x < ds.Cols; x++ {
			c := color.RGBA{R: intensities[y*ds.Cols+x], A: 255}
			for py := 0; py < pixelSize; py++ {
				for px := 0; px < pixelSize; px++ {
					img.SetRGBA(x*pixelSize+px, y*pixelSize+py, c)
				}
			}
		}
	}
	return png.Encode(w, img)
}
