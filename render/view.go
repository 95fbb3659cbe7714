package render

import (
	"context"
	"fmt"

	"go.opencensus.io/trace"

	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/rimage"
	"go.viam.com/cloudmosh/utils"
)

// A Viewer presents a finished render.
type Viewer interface {
	View(ctx context.Context, img *rimage.Array) error
}

// ImageFileViewer writes the render to Path, in the format named by its extension.
type ImageFileViewer struct {
	Path string
}

// View saves img.
func (v ImageFileViewer) View(ctx context.Context, img *rimage.Array) error {
	return rimage.WriteArrayFile(v.Path, img)
}

// CloudView is a sink that merges every upstream cloud into one scene and shows it once.
type CloudView struct {
	backend Backend
	viewer  Viewer
	pose    PoseFunc
	logger  logging.Logger
}

// SimpleCloudView returns a sink rendering everything it receives with backend and handing the
// image to viewer. The camera looks at the centroid of all points.
func SimpleCloudView(backend Backend, viewer Viewer) *CloudView {
	return &CloudView{backend: backend, viewer: viewer, pose: DefaultCameraPose}
}

// WithPose sets how the camera pose is chosen.
func (cv *CloudView) WithPose(pose PoseFunc) *CloudView {
	cv.pose = pose
	return cv
}

// WithLogger sets the logger.
func (cv *CloudView) WithLogger(logger logging.Logger) *CloudView {
	cv.logger = logger
	return cv
}

// Name returns "SimpleCloudView".
func (cv *CloudView) Name() string { return "SimpleCloudView" }

// Role is RoleSink.
func (cv *CloudView) Role() pipeline.Role { return pipeline.RoleSink }

// Attach drains upstream, renders the merged scene and views it.
func (cv *CloudView) Attach(
	ctx context.Context,
	upstream pipeline.Seq[*pointcloud.DepthCloud],
) (pipeline.Seq[pipeline.Nothing], error) {
	ctx, span := trace.StartSpan(ctx, "render::SimpleCloudView::Attach")
	defer span.End()

	if upstream == nil {
		return nil, utils.NewMissingInputError(cv.Name())
	}
	if cv.backend == nil || cv.viewer == nil {
		return nil, utils.NewUsageError("%s needs a render backend and a viewer", cv.Name())
	}
	clouds, err := pipeline.Collect(upstream)
	if err != nil {
		return nil, err
	}
	scene := NewScene(clouds...)
	scene.Caption = fmt.Sprintf("%d clouds, %d points", len(clouds), len(scene.Points))
	logging.OrGlobal(cv.logger).CDebugw(ctx, "viewing clouds", "clouds", len(clouds), "points", len(scene.Points))

	img, err := cv.backend.Render(ctx, scene, cv.pose(scene.MetaData()))
	if err != nil {
		return nil, err
	}
	return nil, cv.viewer.View(ctx, img)
}
