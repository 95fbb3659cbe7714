package rimage

import (
	"image"
	"image/color"
	"image/draw"
	"math"

	"go.viam.com/cloudmosh/utils"
)

// FromImage converts img into a Batch 1 array. Grayscale images become 1 channel (16 bit gray
// keeps its full range), opaque color images become 3 channels and translucent ones 4. Color
// values are in [0, 255].
func FromImage(img image.Image) *Array {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	switch typed := img.(type) {
	case *image.Gray:
		arr := NewArray(1, width, height, 1)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				arr.Set(0, x, y, 0, float64(typed.GrayAt(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
		return arr
	case *image.Gray16:
		arr := NewArray(1, width, height, 1)
		for y := 0; y < height; y++ {
			for x := 0; x < width; x++ {
				arr.Set(0, x, y, 0, float64(typed.Gray16At(bounds.Min.X+x, bounds.Min.Y+y).Y))
			}
		}
		return arr
	}

	nrgba, ok := img.(*image.NRGBA)
	if !ok {
		nrgba = image.NewNRGBA(image.Rect(0, 0, width, height))
		draw.Draw(nrgba, nrgba.Bounds(), img, bounds.Min, draw.Src)
		bounds = nrgba.Bounds()
	}

	channels := 3
	if !nrgba.Opaque() {
		channels = 4
	}
	arr := NewArray(1, width, height, channels)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			c := nrgba.NRGBAAt(bounds.Min.X+x, bounds.Min.Y+y)
			arr.Set(0, x, y, 0, float64(c.R))
			arr.Set(0, x, y, 1, float64(c.G))
			arr.Set(0, x, y, 2, float64(c.B))
			if channels == 4 {
				arr.Set(0, x, y, 3, float64(c.A))
			}
		}
	}
	return arr
}

// ToImage converts batch entry b into an image of Rows x Cols pixels. One channel becomes 8 bit
// gray when every value fits in [0, 255] and 16 bit gray otherwise. Three channels become an
// opaque NRGBA image and four channels a translucent one.
func (a *Array) ToImage(b int) (image.Image, error) {
	rect := image.Rect(0, 0, a.Rows, a.Cols)
	switch a.Channels {
	case 1:
		if fitsUint8(a.Image(b).Data) {
			img := image.NewGray(rect)
			for y := 0; y < a.Cols; y++ {
				for x := 0; x < a.Rows; x++ {
					img.SetGray(x, y, color.Gray{utils.ClampUint8(a.At(b, x, y, 0))})
				}
			}
			return img, nil
		}
		img := image.NewGray16(rect)
		for y := 0; y < a.Cols; y++ {
			for x := 0; x < a.Rows; x++ {
				v := math.Round(utils.Clamp(a.At(b, x, y, 0), 0, math.MaxUint16))
				img.SetGray16(x, y, color.Gray16{uint16(v)})
			}
		}
		return img, nil
	case 3, 4:
		img := image.NewNRGBA(rect)
		plane := a.Plane(b)
		for y := 0; y < a.Cols; y++ {
			for x := 0; x < a.Rows; x++ {
				img.SetNRGBA(x, y, plane.ColorAt(x, y))
			}
		}
		return img, nil
	default:
		return nil, utils.NewShapeError("cannot make an image from %d channels", a.Channels)
	}
}

func fitsUint8(values []float64) bool {
	for _, v := range values {
		if v < 0 || v > 255 {
			return false
		}
	}
	return true
}
