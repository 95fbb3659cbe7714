package render

import (
	"context"
	"errors"
	"image/color"
	"math"
	"path/filepath"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/rimage"
	"go.viam.com/cloudmosh/utils"
)

type fakeBackend struct {
	scenes []*Scene
	poses  []mgl64.Mat4
	err    error
}

func (fb *fakeBackend) Render(ctx context.Context, scene *Scene, pose mgl64.Mat4) (*rimage.Array, error) {
	if fb.err != nil {
		return nil, fb.err
	}
	fb.scenes = append(fb.scenes, scene)
	fb.poses = append(fb.poses, pose)
	img := rimage.NewArray(1, scene.Width, scene.Height, 3)
	img.Set(0, 0, 0, 0, float64(len(scene.Points)))
	return img, nil
}

type recordingViewer struct {
	images []*rimage.Array
}

func (rv *recordingViewer) View(ctx context.Context, img *rimage.Array) error {
	rv.images = append(rv.images, img)
	return nil
}

func makeCloud(t *testing.T, n int, colored bool) *pointcloud.DepthCloud {
	t.Helper()
	points := make([]r3.Vector, n)
	var colors []color.NRGBA
	for i := range points {
		points[i] = r3.Vector{X: float64(i), Y: 1, Z: 2}
		if colored {
			colors = append(colors, color.NRGBA{10, 20, 30, 255})
		}
	}
	cloud, err := pointcloud.New(points, colors)
	test.That(t, err, test.ShouldBeNil)
	return cloud
}

func TestOffscreenCloudRender(t *testing.T) {
	backend := &fakeBackend{}
	r := OffscreenCloudRender(backend).WithLogger(logging.NewTestLogger(t))

	seq, err := pipeline.Shift(context.Background(), pipeline.Of(makeCloud(t, 3, true), makeCloud(t, 5, false)),
		pipeline.Stage[*pointcloud.DepthCloud, *rimage.Array](r))
	test.That(t, err, test.ShouldBeNil)
	images, err := pipeline.Collect(seq)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, images, test.ShouldHaveLength, 2)
	test.That(t, images[0].ShapeString(), test.ShouldEqual, "(1, 640, 480, 3)")
	test.That(t, images[0].At(0, 0, 0, 0), test.ShouldEqual, 3.0)
	test.That(t, images[1].At(0, 0, 0, 0), test.ShouldEqual, 5.0)

	test.That(t, backend.poses[0], test.ShouldResemble, FixedCameraPose)
	test.That(t, backend.scenes[0].Camera, test.ShouldResemble, DefaultCamera)
	test.That(t, backend.scenes[0].AmbientLight, test.ShouldEqual, 1.0)
	test.That(t, backend.scenes[0].Background, test.ShouldResemble, color.NRGBA{A: 255})
	test.That(t, backend.scenes[1].Colors, test.ShouldBeNil)

	backend = &fakeBackend{}
	r = OffscreenCloudRender(backend).WithSize(32, 16).WithPose(DefaultCameraPose)
	img, err := r.Render(context.Background(), makeCloud(t, 3, false))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.ShapeString(), test.ShouldEqual, "(1, 32, 16, 3)")
	test.That(t, backend.poses[0].Col(3)[0], test.ShouldAlmostEqual, 1+0.5/(2*math.Tan(math.Pi/6)))
}

func TestOffscreenCloudRenderErrors(t *testing.T) {
	ctx := context.Background()
	backendErr := errors.New("gpu on fire")
	seq, err := pipeline.Shift(ctx, pipeline.Of(makeCloud(t, 1, true)),
		pipeline.Stage[*pointcloud.DepthCloud, *rimage.Array](OffscreenCloudRender(&fakeBackend{err: backendErr})))
	test.That(t, err, test.ShouldBeNil)
	_, err = pipeline.Collect(seq)
	test.That(t, err, test.ShouldEqual, backendErr)

	_, err = OffscreenCloudRender(nil).Attach(ctx, pipeline.Of(makeCloud(t, 1, true)))
	test.That(t, errors.Is(err, utils.ErrUsage), test.ShouldBeTrue)
	_, err = OffscreenCloudRender(&fakeBackend{}).Attach(ctx, nil)
	test.That(t, errors.Is(err, utils.ErrUsage), test.ShouldBeTrue)
}

func TestDefaultCameraPose(t *testing.T) {
	cloud := makeCloud(t, 3, false)
	pose := DefaultCameraPose(cloud.MetaData())
	dist := 0.5 / (2 * math.Tan(math.Pi/6))
	translation := pose.Col(3)
	test.That(t, translation[0], test.ShouldAlmostEqual, 1+dist)
	test.That(t, translation[1], test.ShouldAlmostEqual, 1.0)
	test.That(t, translation[2], test.ShouldAlmostEqual, 2+dist)
	test.That(t, translation[3], test.ShouldEqual, 1.0)
	test.That(t, pose.Mat3().Det(), test.ShouldAlmostEqual, 1.0)
}

func singlePointScene(points []r3.Vector, colors []color.NRGBA) *Scene {
	scene := &Scene{
		Points:       points,
		Colors:       colors,
		AmbientLight: 1,
		Background:   color.NRGBA{A: 255},
		Camera:       DefaultCamera,
		Width:        64,
		Height:       48,
	}
	return scene
}

func TestSoftwareBackend(t *testing.T) {
	ctx := context.Background()
	backend := &SoftwareBackend{PointSize: 3}
	red := color.NRGBA{255, 0, 0, 255}
	blue := color.NRGBA{0, 0, 255, 255}

	img, err := backend.Render(ctx, singlePointScene([]r3.Vector{{Z: -10}}, []color.NRGBA{red}), mgl64.Ident4())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.ShapeString(), test.ShouldEqual, "(1, 64, 48, 3)")
	test.That(t, img.At(0, 32, 24, 0), test.ShouldEqual, 255.0)
	test.That(t, img.At(0, 33, 25, 0), test.ShouldEqual, 255.0)
	test.That(t, img.At(0, 31, 23, 2), test.ShouldEqual, 0.0)
	test.That(t, img.At(0, 35, 24, 0), test.ShouldEqual, 0.0)
	test.That(t, img.At(0, 0, 0, 0), test.ShouldEqual, 0.0)

	// The nearer point wins whatever the draw order.
	for _, order := range [][]int{{0, 1}, {1, 0}} {
		points := []r3.Vector{{Z: -10}, {Z: -5}}
		colors := []color.NRGBA{red, blue}
		scene := singlePointScene(
			[]r3.Vector{points[order[0]], points[order[1]]},
			[]color.NRGBA{colors[order[0]], colors[order[1]]},
		)
		img, err := backend.Render(ctx, scene, mgl64.Ident4())
		test.That(t, err, test.ShouldBeNil)
		test.That(t, img.At(0, 32, 24, 0), test.ShouldEqual, 0.0)
		test.That(t, img.At(0, 32, 24, 2), test.ShouldEqual, 255.0)
	}

	// Behind the camera.
	img, err = backend.Render(ctx, singlePointScene([]r3.Vector{{Z: 10}}, nil), mgl64.Ident4())
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.At(0, 32, 24, 0), test.ShouldEqual, 0.0)

	// Uncolored points are white and the camera pose moves the view.
	img, err = backend.Render(ctx, singlePointScene([]r3.Vector{{X: 5, Z: -10}}, nil), mgl64.Translate3D(5, 0, 0))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.At(0, 32, 24, 1), test.ShouldEqual, 255.0)

	scene := singlePointScene([]r3.Vector{{Z: -10}}, nil)
	scene.Caption = "hello"
	_, err = NewSoftwareBackend().Render(ctx, scene, mgl64.Ident4())
	test.That(t, err, test.ShouldBeNil)
}

func TestSoftwareBackendErrors(t *testing.T) {
	ctx := context.Background()
	backend := NewSoftwareBackend()
	_, err := backend.Render(ctx, singlePointScene([]r3.Vector{{Z: -1}}, nil), mgl64.Mat4{})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = backend.Render(ctx, singlePointScene([]r3.Vector{{Z: -1}}, []color.NRGBA{{}, {}}), mgl64.Ident4())
	test.That(t, errors.Is(err, utils.ErrShape), test.ShouldBeTrue)

	scene := singlePointScene(nil, nil)
	scene.Width = 0
	_, err = backend.Render(ctx, scene, mgl64.Ident4())
	test.That(t, errors.Is(err, utils.ErrShape), test.ShouldBeTrue)

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = backend.Render(cancelled, singlePointScene([]r3.Vector{{Z: -1}}, nil), mgl64.Ident4())
	test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
}

func TestSimpleCloudView(t *testing.T) {
	ctx := context.Background()
	backend := &fakeBackend{}
	viewer := &recordingViewer{}
	err := pipeline.Run[*pointcloud.DepthCloud](ctx,
		pipeline.FromSlice("clouds", []*pointcloud.DepthCloud{makeCloud(t, 3, true), makeCloud(t, 5, false)}),
		SimpleCloudView(backend, viewer))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, backend.scenes, test.ShouldHaveLength, 1)
	test.That(t, viewer.images, test.ShouldHaveLength, 1)

	scene := backend.scenes[0]
	test.That(t, scene.Points, test.ShouldHaveLength, 8)
	test.That(t, scene.Colors, test.ShouldHaveLength, 8)
	test.That(t, scene.Colors[0], test.ShouldResemble, color.NRGBA{10, 20, 30, 255})
	test.That(t, scene.Colors[7], test.ShouldResemble, color.NRGBA{255, 255, 255, 255})
	test.That(t, scene.Caption, test.ShouldEqual, "2 clouds, 8 points")
	test.That(t, backend.poses[0], test.ShouldResemble, DefaultCameraPose(scene.MetaData()))

	_, err = SimpleCloudView(backend, nil).Attach(ctx, pipeline.Of(makeCloud(t, 1, true)))
	test.That(t, errors.Is(err, utils.ErrUsage), test.ShouldBeTrue)
}

func TestImageFileViewer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "view.png")
	cloud := makeCloud(t, 4, true)
	err := pipeline.Run[*pointcloud.DepthCloud](context.Background(),
		pipeline.FromSlice("clouds", []*pointcloud.DepthCloud{cloud}),
		SimpleCloudView(NewSoftwareBackend(), ImageFileViewer{Path: path}))
	test.That(t, err, test.ShouldBeNil)

	img, err := rimage.ReadArrayFile(path)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.ShapeString(), test.ShouldEqual, "(1, 640, 480, 3)")
}
