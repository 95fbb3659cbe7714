package rimage

import (
	"image"
	"image/color"
	"math"

	"github.com/nfnt/resize"
)

// Resize returns arr with every batch entry resampled to rows x cols using bilinear
// interpolation. Each channel is resampled on its own through a 16 bit gray image spanning the
// channel's value range, so arbitrary float ranges (such as depth) survive the trip with 1/65535
// relative precision.
func Resize(arr *Array, rows, cols int) *Array {
	if arr.Rows == rows && arr.Cols == cols {
		return arr.Clone()
	}
	out := NewArray(arr.Batch, rows, cols, arr.Channels)
	for b := 0; b < arr.Batch; b++ {
		for ch := 0; ch < arr.Channels; ch++ {
			resizeChannel(arr, out, b, ch)
		}
	}
	return out
}

func resizeChannel(in, out *Array, b, ch int) {
	lo, hi := math.Inf(1), math.Inf(-1)
	for row := 0; row < in.Rows; row++ {
		for col := 0; col < in.Cols; col++ {
			v := in.At(b, row, col, ch)
			lo = math.Min(lo, v)
			hi = math.Max(hi, v)
		}
	}
	span := hi - lo
	if span == 0 || math.IsInf(span, 0) || math.IsNaN(span) {
		for row := 0; row < out.Rows; row++ {
			for col := 0; col < out.Cols; col++ {
				out.Set(b, row, col, ch, lo)
			}
		}
		return
	}

	gray := image.NewGray16(image.Rect(0, 0, in.Rows, in.Cols))
	for row := 0; row < in.Rows; row++ {
		for col := 0; col < in.Cols; col++ {
			scaled := (in.At(b, row, col, ch) - lo) / span * math.MaxUint16
			gray.SetGray16(row, col, color.Gray16{uint16(math.Round(scaled))})
		}
	}

	resized := resize.Resize(uint(out.Rows), uint(out.Cols), gray, resize.Bilinear)
	for row := 0; row < out.Rows; row++ {
		for col := 0; col < out.Cols; col++ {
			v := color.Gray16Model.Convert(resized.At(row, col)).(color.Gray16).Y
			out.Set(b, row, col, ch, lo+float64(v)/math.MaxUint16*span)
		}
	}
}
