package rimage

import (
	"errors"
	"image/color"
	"testing"

	"go.viam.com/test"

	"go.viam.com/cloudmosh/utils"
)

// gradient returns a (batch, rows, cols, channels) array whose values count up from start.
func gradient(batch, rows, cols, channels int, start float64) *Array {
	arr := NewArray(batch, rows, cols, channels)
	for i := range arr.Data {
		arr.Data[i] = start + float64(i)
	}
	return arr
}

func TestArrayIndexing(t *testing.T) {
	arr := gradient(2, 3, 4, 2, 0)
	test.That(t, arr.ShapeString(), test.ShouldEqual, "(2, 3, 4, 2)")
	test.That(t, arr.At(0, 0, 0, 1), test.ShouldEqual, 1.0)
	test.That(t, arr.At(0, 1, 0, 0), test.ShouldEqual, 8.0)
	test.That(t, arr.At(1, 0, 0, 0), test.ShouldEqual, 24.0)

	arr.Set(1, 2, 3, 1, -1)
	test.That(t, arr.Data[len(arr.Data)-1], test.ShouldEqual, -1.0)
	test.That(t, arr.PixelCount(), test.ShouldEqual, 12)
	test.That(t, arr.ImageSize(), test.ShouldEqual, 24)
}

func TestImageAndStack(t *testing.T) {
	arr := gradient(2, 2, 2, 1, 0)
	second := arr.Image(1)
	test.That(t, second.Batch, test.ShouldEqual, 1)
	test.That(t, second.Data, test.ShouldResemble, []float64{4, 5, 6, 7})

	second.Data[0] = 100
	test.That(t, arr.At(1, 0, 0, 0), test.ShouldEqual, 4.0)

	images := arr.Images()
	test.That(t, images, test.ShouldHaveLength, 2)
	stacked, err := Stack(images...)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, stacked.Equal(arr), test.ShouldBeTrue)
	test.That(t, stacked.Equal(arr.Image(0)), test.ShouldBeFalse)

	_, err = Stack(arr, gradient(1, 2, 3, 1, 0))
	test.That(t, errors.Is(err, utils.ErrShape), test.ShouldBeTrue)
	_, err = Stack()
	test.That(t, errors.Is(err, utils.ErrShape), test.ShouldBeTrue)

	_, err = NewArrayFromData(1, 2, 2, 1, []float64{1, 2, 3})
	test.That(t, errors.Is(err, utils.ErrShape), test.ShouldBeTrue)
}

func TestPlane(t *testing.T) {
	rgba := NewArray(1, 1, 2, 4)
	copy(rgba.Data, []float64{1, 2, 3, 4, 300, -2, 7.6, 255})
	plane := rgba.Plane(0)
	rows, cols := plane.Dims()
	test.That(t, rows, test.ShouldEqual, 1)
	test.That(t, cols, test.ShouldEqual, 2)
	test.That(t, plane.ColorAt(0, 0), test.ShouldResemble, color.NRGBA{1, 2, 3, 4})
	test.That(t, plane.ColorAt(0, 1), test.ShouldResemble, color.NRGBA{255, 0, 8, 255})
	test.That(t, plane.DepthAt(0, 1), test.ShouldEqual, 300.0)

	gray := gradient(1, 1, 1, 1, 9)
	test.That(t, gray.Plane(0).ColorAt(0, 0), test.ShouldResemble, color.NRGBA{9, 9, 9, 255})

	lo, hi := rgba.MinMax()
	test.That(t, lo, test.ShouldEqual, -2.0)
	test.That(t, hi, test.ShouldEqual, 300.0)
}
