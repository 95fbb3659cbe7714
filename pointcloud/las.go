package pointcloud

import (
	"image/color"

	"github.com/edaniels/lidario"
	"github.com/golang/geo/r3"
	"go.uber.org/multierr"
	"go.viam.com/utils"
)

// WriteToLASFile writes the point cloud out to a LAS file. Colored clouds use point format 2.
func WriteToLASFile(cloud *DepthCloud, fn string) (err error) {
	lf, err := lidario.NewLasFile(fn, "w")
	if err != nil {
		return
	}
	defer func() {
		cerr := lf.Close()
		err = multierr.Combine(err, cerr)
	}()

	pointFormatID := 0
	if cloud.HasColor() {
		pointFormatID = 2
	}
	if err = lf.AddHeader(lidario.LasHeader{
		PointFormatID: byte(pointFormatID),
	}); err != nil {
		return
	}

	cloud.Iterate(func(_ int, pos r3.Vector, c color.NRGBA, hasColor bool) bool {
		var lp lidario.LasPointer
		pr0 := &lidario.PointRecord0{
			X: pos.X,
			Y: pos.Y,
			Z: pos.Z,
			BitField: lidario.PointBitField{
				Value: (1) | (1 << 3) | (0 << 6) | (0 << 7),
			},
			ClassBitField: lidario.ClassificationBitField{
				Value: 0,
			},
			PointSourceID: 1,
		}
		lp = pr0

		if hasColor {
			lp = &lidario.PointRecord2{
				PointRecord0: pr0,
				RGB: &lidario.RgbData{
					Red:   uint16(c.R) * 256,
					Green: uint16(c.G) * 256,
					Blue:  uint16(c.B) * 256,
				},
			}
		}
		if err = lf.AddLasPoint(lp); err != nil {
			return false
		}
		return true
	})
	return
}

// NewFromLASFile reads a cloud from a LAS file written by WriteToLASFile.
func NewFromLASFile(fn string) (*DepthCloud, error) {
	lf, err := lidario.NewLasFile(fn, "r")
	if err != nil {
		return nil, err
	}
	defer utils.UncheckedErrorFunc(lf.Close)

	colored := lf.Header.PointFormatID == 2
	points := make([]r3.Vector, 0, lf.Header.NumberPoints)
	var colors []color.NRGBA
	if colored {
		colors = make([]color.NRGBA, 0, lf.Header.NumberPoints)
	}
	for i := 0; i < lf.Header.NumberPoints; i++ {
		p, err := lf.LasPoint(i)
		if err != nil {
			return nil, err
		}
		data := p.PointData()
		points = append(points, r3.Vector{X: data.X, Y: data.Y, Z: data.Z})
		if colored {
			c := color.NRGBA{A: 255}
			if rgb := p.RgbData(); rgb != nil {
				c.R = uint8(rgb.Red / 256)
				c.G = uint8(rgb.Green / 256)
				c.B = uint8(rgb.Blue / 256)
			}
			colors = append(colors, c)
		}
	}
	return newOwned(points, colors), nil
}
