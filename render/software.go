package render

import (
	"context"
	"image"
	"image/color"
	"math"

	"github.com/fogleman/gg"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/cloudmosh/rimage"
	"go.viam.com/cloudmosh/utils"
)

// DefaultPointSize is the side in pixels of the square drawn for each point.
const DefaultPointSize = 9

// SoftwareBackend rasterizes scenes on the CPU. Every point is projected and drawn as a square
// of PointSize pixels, nearest point wins.
type SoftwareBackend struct {
	PointSize int
	// CaptionSize is the caption font size in points.
	CaptionSize float64
}

// NewSoftwareBackend returns a backend with the default point size.
func NewSoftwareBackend() *SoftwareBackend {
	return &SoftwareBackend{PointSize: DefaultPointSize, CaptionSize: 14}
}

// Render draws scene as seen from pose.
func (sb *SoftwareBackend) Render(ctx context.Context, scene *Scene, pose mgl64.Mat4) (*rimage.Array, error) {
	_, span := trace.StartSpan(ctx, "render::SoftwareBackend::Render")
	defer span.End()

	if scene.Width <= 0 || scene.Height <= 0 {
		return nil, utils.NewShapeError("cannot render a %dx%d viewport", scene.Width, scene.Height)
	}
	if scene.Colors != nil && len(scene.Colors) != len(scene.Points) {
		return nil, utils.NewShapeError("scene has %d points but %d colors", len(scene.Points), len(scene.Colors))
	}
	if math.Abs(pose.Det()) < 1e-12 {
		return nil, errors.New("camera pose is not invertible")
	}

	dc := gg.NewContext(scene.Width, scene.Height)
	dc.SetColor(scene.Background)
	dc.Clear()
	canvas, ok := dc.Image().(*image.RGBA)
	if !ok {
		return nil, utils.NewUnexpectedTypeError(canvas, dc.Image())
	}

	mvp := scene.Camera.Projection().Mul4(pose.Inv())
	zbuf := make([]float64, scene.Width*scene.Height)
	for i := range zbuf {
		zbuf[i] = math.Inf(1)
	}
	size := sb.PointSize
	if size < 1 {
		size = 1
	}
	half := size / 2

	for i, p := range scene.Points {
		if i%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		clip := mvp.Mul4x1(mgl64.Vec4{p.X, p.Y, p.Z, 1})
		if clip.W() <= 0 {
			continue
		}
		ndc := clip.Vec3().Mul(1 / clip.W())
		if ndc.Z() < -1 || ndc.Z() > 1 {
			continue
		}
		cx := int(math.Floor((ndc.X() + 1) / 2 * float64(scene.Width)))
		cy := int(math.Floor((1 - ndc.Y()) / 2 * float64(scene.Height)))
		c := shade(scene, i)
		for y := cy - half; y < cy-half+size; y++ {
			if y < 0 || y >= scene.Height {
				continue
			}
			for x := cx - half; x < cx-half+size; x++ {
				if x < 0 || x >= scene.Width {
					continue
				}
				if ndc.Z() >= zbuf[y*scene.Width+x] {
					continue
				}
				zbuf[y*scene.Width+x] = ndc.Z()
				canvas.SetRGBA(x, y, c)
			}
		}
	}

	rimage.DrawCaption(dc, scene.Caption, color.White, sb.CaptionSize)
	return rimage.FromImage(canvas), nil
}

// shade lights point i with the scene's ambient light.
func shade(scene *Scene, i int) color.RGBA {
	c := color.NRGBA{255, 255, 255, 255}
	if scene.Colors != nil {
		c = scene.Colors[i]
	}
	return color.RGBA{
		R: utils.ClampUint8(float64(c.R) * scene.AmbientLight),
		G: utils.ClampUint8(float64(c.G) * scene.AmbientLight),
		B: utils.ClampUint8(float64(c.B) * scene.AmbientLight),
		A: 255,
	}
}
