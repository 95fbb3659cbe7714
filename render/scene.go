// Package render turns clouds into images: scenes and cameras, a software rasterizer backend,
// and the stages that render a stream of clouds or show a merged view of all of them.
package render

import (
	"context"
	"image/color"
	"math"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"

	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/rimage"
)

// Default viewport size of rendered images.
const (
	DefaultWidth  = 640
	DefaultHeight = 480
)

// Camera is a perspective camera looking down its local -Z axis with +Y up.
type Camera struct {
	YFov        float64
	AspectRatio float64
	ZNear       float64
	ZFar        float64
}

// DefaultCamera has a 60 degree vertical field of view and a square aspect ratio regardless of
// the viewport.
var DefaultCamera = Camera{
	YFov:        math.Pi / 3,
	AspectRatio: 1,
	ZNear:       0.05,
	ZFar:        1e6,
}

// Projection returns the camera's projection matrix.
func (c Camera) Projection() mgl64.Mat4 {
	return mgl64.Perspective(c.YFov, c.AspectRatio, c.ZNear, c.ZFar)
}

// A Scene is everything a Backend needs to draw one frame except the camera pose.
type Scene struct {
	Points []r3.Vector
	// Colors holds one color per point, or is nil to draw every point white.
	Colors []color.NRGBA

	AmbientLight float64
	Background   color.NRGBA
	Camera       Camera
	Width        int
	Height       int

	// Caption is drawn in the top left corner when set.
	Caption string

	meta pointcloud.MetaData
}

// NewScene builds a black background, fully lit scene holding every point of clouds.
func NewScene(clouds ...*pointcloud.DepthCloud) *Scene {
	scene := &Scene{
		AmbientLight: 1,
		Background:   color.NRGBA{A: 255},
		Camera:       DefaultCamera,
		Width:        DefaultWidth,
		Height:       DefaultHeight,
		meta:         pointcloud.NewMetaData(),
	}
	anyColor := false
	for _, cloud := range clouds {
		anyColor = anyColor || cloud.HasColor()
	}
	for _, cloud := range clouds {
		scene.Points = append(scene.Points, cloud.Points()...)
		if anyColor {
			if cloud.HasColor() {
				scene.Colors = append(scene.Colors, cloud.Colors()...)
			} else {
				for i := 0; i < cloud.Size(); i++ {
					scene.Colors = append(scene.Colors, color.NRGBA{255, 255, 255, 255})
				}
			}
		}
		scene.meta = scene.meta.Combine(cloud.MetaData())
	}
	return scene
}

// MetaData returns the bounds and centroid of the scene's points.
func (s *Scene) MetaData() pointcloud.MetaData {
	return s.meta
}

// A Backend draws a scene seen from a camera at pose, a camera-to-world transform.
type Backend interface {
	Render(ctx context.Context, scene *Scene, pose mgl64.Mat4) (*rimage.Array, error)
}

// A PoseFunc chooses the camera pose for a scene.
type PoseFunc func(meta pointcloud.MetaData) mgl64.Mat4

// FixedCameraPose is the pose every frame is rendered from unless told otherwise.
var FixedCameraPose = mgl64.Mat4FromRows(
	mgl64.Vec4{-0.67965718, -0.67467772, 0.28788207, 218.90296805},
	mgl64.Vec4{-0.5763984, 0.24848092, -0.77847422, -201.12334648},
	mgl64.Vec4{0.45368601, -0.69503036, -0.557765, -31.37713392},
	mgl64.Vec4{0, 0, 0, 1},
)

// FixedPose always returns pose.
func FixedPose(pose mgl64.Mat4) PoseFunc {
	return func(pointcloud.MetaData) mgl64.Mat4 { return pose }
}

// DefaultCameraPose looks down at the centroid from above and to the side, close enough that a
// unit sized scene fills the view.
func DefaultCameraPose(meta pointcloud.MetaData) mgl64.Mat4 {
	const scale = 0.5
	s2 := 1 / math.Sqrt2
	hfov := math.Pi / 6
	dist := scale / (2 * math.Tan(hfov))
	centroid := meta.Centroid()
	return mgl64.Mat4FromRows(
		mgl64.Vec4{0, -s2, s2, dist + centroid.X},
		mgl64.Vec4{1, 0, 0, centroid.Y},
		mgl64.Vec4{0, s2, s2, dist + centroid.Z},
		mgl64.Vec4{0, 0, 0, 1},
	)
}
