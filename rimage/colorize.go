package rimage

import (
	"github.com/lucasb-eyer/go-colorful"

	"go.viam.com/cloudmosh/utils"
)

// DefaultNearColor and DefaultFarColor are the endpoints used by ColorizeDepth by default.
var (
	DefaultNearColor = colorful.Color{R: 1, G: 0.85, B: 0.2}
	DefaultFarColor  = colorful.Color{R: 0.1, G: 0.1, B: 0.45}
)

// ColorizeDepth maps a 1 channel depth array to a 3 channel RGB array. Every batch entry is
// normalized over its own depth range and each pixel is blended from near to far in CIE-Lab.
func ColorizeDepth(depth *Array, near, far colorful.Color) (*Array, error) {
	if depth.Channels != 1 {
		return nil, utils.NewShapeError("can only colorize 1 channel depth, got %s", depth.ShapeString())
	}
	out := NewArray(depth.Batch, depth.Rows, depth.Cols, 3)
	for b := 0; b < depth.Batch; b++ {
		lo, hi := depth.Image(b).MinMax()
		span := hi - lo
		for row := 0; row < depth.Rows; row++ {
			for col := 0; col < depth.Cols; col++ {
				t := 0.0
				if span > 0 {
					t = (depth.At(b, row, col, 0) - lo) / span
				}
				r, g, bl := near.BlendLab(far, t).Clamped().RGB255()
				out.Set(b, row, col, 0, float64(r))
				out.Set(b, row, col, 1, float64(g))
				out.Set(b, row, col, 2, float64(bl))
			}
		}
	}
	return out, nil
}
