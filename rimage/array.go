// Package rimage holds the media buffers that flow through cloudmosh pipelines, along with the
// conversions between them and standard images, the codecs used to read and write them, and a
// few image operations (resizing, depth colorizing, captions).
package rimage

import (
	"fmt"
	"image/color"
	"math"

	"go.viam.com/cloudmosh/utils"
)

// Array is a dense (Batch, Rows, Cols, Channels) buffer of float64 values in row-major order.
//
// Rows runs along the image width and Cols along the image height, so pixel (x, y) of batch
// entry b is at (b, x, y). Channels is 1 for depth or grayscale, 3 for RGB and 4 for RGBA.
type Array struct {
	Batch, Rows, Cols, Channels int
	Data                        []float64
}

// Frames is every frame of one GIF or video, in order. Each frame has Batch 1.
type Frames []*Array

// NewArray returns a zeroed array of the given shape.
func NewArray(batch, rows, cols, channels int) *Array {
	return &Array{
		Batch:    batch,
		Rows:     rows,
		Cols:     cols,
		Channels: channels,
		Data:     make([]float64, batch*rows*cols*channels),
	}
}

// NewArrayFromData wraps data, which must have exactly batch*rows*cols*channels values.
func NewArrayFromData(batch, rows, cols, channels int, data []float64) (*Array, error) {
	if len(data) != batch*rows*cols*channels {
		return nil, utils.NewShapeError("%d values do not fill shape (%d, %d, %d, %d)",
			len(data), batch, rows, cols, channels)
	}
	return &Array{Batch: batch, Rows: rows, Cols: cols, Channels: channels, Data: data}, nil
}

func (a *Array) index(b, row, col, ch int) int {
	return ((b*a.Rows+row)*a.Cols+col)*a.Channels + ch
}

// At returns the value at (b, row, col, ch).
func (a *Array) At(b, row, col, ch int) float64 {
	return a.Data[a.index(b, row, col, ch)]
}

// Set stores v at (b, row, col, ch).
func (a *Array) Set(b, row, col, ch int, v float64) {
	a.Data[a.index(b, row, col, ch)] = v
}

// PixelCount is Rows*Cols.
func (a *Array) PixelCount() int {
	return a.Rows * a.Cols
}

// ImageSize is the number of values in one batch entry.
func (a *Array) ImageSize() int {
	return a.Rows * a.Cols * a.Channels
}

// Image returns a copy of batch entry b as its own array with Batch 1.
func (a *Array) Image(b int) *Array {
	size := a.ImageSize()
	out := NewArray(1, a.Rows, a.Cols, a.Channels)
	copy(out.Data, a.Data[b*size:(b+1)*size])
	return out
}

// Images splits the array into one Batch 1 array per entry.
func (a *Array) Images() []*Array {
	out := make([]*Array, a.Batch)
	for b := range out {
		out[b] = a.Image(b)
	}
	return out
}

// Clone returns a deep copy.
func (a *Array) Clone() *Array {
	out := *a
	out.Data = append([]float64(nil), a.Data...)
	return &out
}

// SameImageShape reports whether a and other have equal Rows, Cols and Channels.
func (a *Array) SameImageShape(other *Array) bool {
	return a.Rows == other.Rows && a.Cols == other.Cols && a.Channels == other.Channels
}

// ShapeString formats the shape as "(B, R, C, CH)".
func (a *Array) ShapeString() string {
	return fmt.Sprintf("(%d, %d, %d, %d)", a.Batch, a.Rows, a.Cols, a.Channels)
}

// Equal reports whether both arrays have the same shape and values.
func (a *Array) Equal(other *Array) bool {
	if a.Batch != other.Batch || !a.SameImageShape(other) || len(a.Data) != len(other.Data) {
		return false
	}
	for i, v := range a.Data {
		if v != other.Data[i] {
			return false
		}
	}
	return true
}

// Stack concatenates arrays along the batch axis. They must share one image shape.
func Stack(arrays ...*Array) (*Array, error) {
	if len(arrays) == 0 {
		return nil, utils.NewShapeError("nothing to stack")
	}
	first := arrays[0]
	out := &Array{Rows: first.Rows, Cols: first.Cols, Channels: first.Channels}
	for _, a := range arrays {
		if !a.SameImageShape(first) {
			return nil, utils.NewShapeError("cannot stack %s onto %s", a.ShapeString(), first.ShapeString())
		}
		out.Batch += a.Batch
		out.Data = append(out.Data, a.Data...)
	}
	return out, nil
}

// MinMax returns the smallest and largest values, or (0, 0) for an empty array.
func (a *Array) MinMax() (float64, float64) {
	if len(a.Data) == 0 {
		return 0, 0
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range a.Data {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return lo, hi
}

// Plane is one batch entry of an array viewed as a grid of pixels.
type Plane struct {
	arr *Array
	b   int
}

// Plane returns batch entry b as a grid.
func (a *Array) Plane(b int) Plane {
	return Plane{arr: a, b: b}
}

// Dims returns (Rows, Cols).
func (p Plane) Dims() (int, int) {
	return p.arr.Rows, p.arr.Cols
}

// DepthAt returns the first channel at (row, col).
func (p Plane) DepthAt(row, col int) float64 {
	return p.arr.At(p.b, row, col, 0)
}

// ColorAt returns the pixel at (row, col) as a color. Values are rounded and clamped to
// [0, 255]. One channel is replicated to gray, and alpha is taken from the fourth channel when
// present.
func (p Plane) ColorAt(row, col int) color.NRGBA {
	switch p.arr.Channels {
	case 1:
		v := utils.ClampUint8(p.arr.At(p.b, row, col, 0))
		return color.NRGBA{v, v, v, 255}
	case 3:
		return color.NRGBA{
			utils.ClampUint8(p.arr.At(p.b, row, col, 0)),
			utils.ClampUint8(p.arr.At(p.b, row, col, 1)),
			utils.ClampUint8(p.arr.At(p.b, row, col, 2)),
			255,
		}
	default:
		return color.NRGBA{
			utils.ClampUint8(p.arr.At(p.b, row, col, 0)),
			utils.ClampUint8(p.arr.At(p.b, row, col, 1)),
			utils.ClampUint8(p.arr.At(p.b, row, col, 2)),
			utils.ClampUint8(p.arr.At(p.b, row, col, 3)),
		}
	}
}
