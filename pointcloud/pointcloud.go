// Package pointcloud defines the depth cloud: an ordered, optionally colored point cloud with one
// point per pixel of the depth map it came from.
//
// A DepthCloud never changes once built. Every transform returns a new cloud, and the accessors
// hand out copies, so a cloud can be shared between pipeline stages without coordination.
package pointcloud

import (
	"image/color"

	"github.com/golang/geo/r3"

	"go.viam.com/cloudmosh/utils"
)

// DepthGrid is a rows x cols grid of depth values.
type DepthGrid interface {
	Dims() (rows, cols int)
	DepthAt(row, col int) float64
}

// ColorGrid is a rows x cols grid of colors.
type ColorGrid interface {
	Dims() (rows, cols int)
	ColorAt(row, col int) color.NRGBA
}

// DepthCloud is an ordered point cloud. Point i of a cloud built from a depth map of `cols`
// columns is (i / cols, i % cols, depth).
type DepthCloud struct {
	points []r3.Vector
	colors []color.NRGBA
	meta   MetaData
}

// New returns a cloud over copies of points and colors. colors may be nil; otherwise it must have
// one entry per point.
func New(points []r3.Vector, colors []color.NRGBA) (*DepthCloud, error) {
	if colors != nil && len(colors) != len(points) {
		return nil, utils.NewShapeError("cloud has %d points but %d colors", len(points), len(colors))
	}
	return newOwned(append([]r3.Vector(nil), points...), copyColors(colors)), nil
}

// NewFromDepth returns an uncolored cloud with one point (row, col, depth) per pixel of depth,
// in row-major order.
func NewFromDepth(depth DepthGrid) *DepthCloud {
	rows, cols := depth.Dims()
	points := make([]r3.Vector, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			points = append(points, r3.Vector{X: float64(row), Y: float64(col), Z: depth.DepthAt(row, col)})
		}
	}
	return newOwned(points, nil)
}

// newOwned takes ownership of its arguments.
func newOwned(points []r3.Vector, colors []color.NRGBA) *DepthCloud {
	return &DepthCloud{
		points: points,
		colors: colors,
		meta:   computeMetaData(points, colors != nil),
	}
}

func copyColors(colors []color.NRGBA) []color.NRGBA {
	if colors == nil {
		return nil
	}
	return append(make([]color.NRGBA, 0, len(colors)), colors...)
}

// Size returns the number of points in the cloud.
func (dc *DepthCloud) Size() int {
	return len(dc.points)
}

// HasColor reports whether colors have been assigned.
func (dc *DepthCloud) HasColor() bool {
	return dc.colors != nil
}

// MetaData returns the bounds and centroid of the cloud.
func (dc *DepthCloud) MetaData() MetaData {
	return dc.meta
}

// Points returns a copy of the points.
func (dc *DepthCloud) Points() []r3.Vector {
	return append([]r3.Vector(nil), dc.points...)
}

// Colors returns a copy of the colors, or nil.
func (dc *DepthCloud) Colors() []color.NRGBA {
	return copyColors(dc.colors)
}

// At returns point i and its color. The color is the zero value when the cloud has none.
func (dc *DepthCloud) At(i int) (r3.Vector, color.NRGBA) {
	if dc.colors == nil {
		return dc.points[i], color.NRGBA{}
	}
	return dc.points[i], dc.colors[i]
}

// Zs returns the depth coordinate of every point.
func (dc *DepthCloud) Zs() []float64 {
	zs := make([]float64, len(dc.points))
	for i, p := range dc.points {
		zs[i] = p.Z
	}
	return zs
}

// Iterate calls fn for every point in order until fn returns false.
func (dc *DepthCloud) Iterate(fn func(i int, p r3.Vector, c color.NRGBA, hasColor bool) bool) {
	hasColor := dc.colors != nil
	for i, p := range dc.points {
		var c color.NRGBA
		if hasColor {
			c = dc.colors[i]
		}
		if !fn(i, p, c, hasColor) {
			return
		}
	}
}

// WithPoints returns a cloud with the given points and this cloud's colors.
func (dc *DepthCloud) WithPoints(points []r3.Vector) (*DepthCloud, error) {
	if len(points) != len(dc.points) {
		return nil, utils.NewShapeError("cannot replace %d points with %d", len(dc.points), len(points))
	}
	return newOwned(append([]r3.Vector(nil), points...), dc.colors), nil
}

// WithZs returns a cloud whose point i has depth zs[i]. x and y are kept.
func (dc *DepthCloud) WithZs(zs []float64) (*DepthCloud, error) {
	if len(zs) != len(dc.points) {
		return nil, utils.NewShapeError("cannot replace the depth of %d points with %d values", len(dc.points), len(zs))
	}
	points := make([]r3.Vector, len(dc.points))
	for i, p := range dc.points {
		points[i] = r3.Vector{X: p.X, Y: p.Y, Z: zs[i]}
	}
	return newOwned(points, dc.colors), nil
}

// WithColors returns a cloud with this cloud's points and the given colors.
func (dc *DepthCloud) WithColors(colors []color.NRGBA) (*DepthCloud, error) {
	return New(dc.points, colors)
}

// WithDepthImage returns a cloud whose points are recomputed as (row, col, depth) from depth.
// Colors are kept. The depth grid must have one pixel per point.
func (dc *DepthCloud) WithDepthImage(depth DepthGrid) (*DepthCloud, error) {
	rows, cols := depth.Dims()
	if rows*cols != len(dc.points) {
		return nil, utils.NewShapeError("depth image has %d pixels but cloud has %d points", rows*cols, len(dc.points))
	}
	fresh := NewFromDepth(depth)
	return newOwned(fresh.points, dc.colors), nil
}

// WithColorImage returns a cloud colored from img in row-major order. The image must have one
// pixel per point. Alpha is forced opaque.
func (dc *DepthCloud) WithColorImage(img ColorGrid) (*DepthCloud, error) {
	rows, cols := img.Dims()
	if rows*cols != len(dc.points) {
		return nil, utils.NewShapeError("color image has %d pixels but cloud has %d points", rows*cols, len(dc.points))
	}
	colors := make([]color.NRGBA, 0, rows*cols)
	for row := 0; row < rows; row++ {
		for col := 0; col < cols; col++ {
			c := img.ColorAt(row, col)
			c.A = 255
			colors = append(colors, c)
		}
	}
	return newOwned(dc.points, colors), nil
}
