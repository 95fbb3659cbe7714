package render

import (
	"context"

	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/rimage"
	"go.viam.com/cloudmosh/utils"
)

// OffscreenRenderer is a transform rendering every upstream cloud to one RGB image.
type OffscreenRenderer struct {
	backend       Backend
	pose          PoseFunc
	width, height int
	camera        Camera
	logger        logging.Logger
}

// OffscreenCloudRender returns a renderer drawing DefaultWidth x DefaultHeight images with
// backend from FixedCameraPose.
func OffscreenCloudRender(backend Backend) *OffscreenRenderer {
	return &OffscreenRenderer{
		backend: backend,
		pose:    FixedPose(FixedCameraPose),
		width:   DefaultWidth,
		height:  DefaultHeight,
		camera:  DefaultCamera,
	}
}

// WithSize sets the size of rendered images.
func (r *OffscreenRenderer) WithSize(width, height int) *OffscreenRenderer {
	r.width, r.height = width, height
	return r
}

// WithPose sets how the camera pose is chosen for each cloud, for example DefaultCameraPose.
func (r *OffscreenRenderer) WithPose(pose PoseFunc) *OffscreenRenderer {
	r.pose = pose
	return r
}

// WithCamera replaces DefaultCamera.
func (r *OffscreenRenderer) WithCamera(camera Camera) *OffscreenRenderer {
	r.camera = camera
	return r
}

// WithLogger sets the logger used for per-frame diagnostics.
func (r *OffscreenRenderer) WithLogger(logger logging.Logger) *OffscreenRenderer {
	r.logger = logger
	return r
}

// Name returns "OffscreenCloudRender".
func (r *OffscreenRenderer) Name() string { return "OffscreenCloudRender" }

// Role is RoleTransform.
func (r *OffscreenRenderer) Role() pipeline.Role { return pipeline.RoleTransform }

// Attach renders upstream lazily, one frame per cloud.
func (r *OffscreenRenderer) Attach(
	ctx context.Context,
	upstream pipeline.Seq[*pointcloud.DepthCloud],
) (pipeline.Seq[*rimage.Array], error) {
	if upstream == nil {
		return nil, utils.NewMissingInputError(r.Name())
	}
	if r.backend == nil {
		return nil, utils.NewUsageError("%s needs a render backend", r.Name())
	}
	logger := logging.OrGlobal(r.logger)
	return func(yield func(*rimage.Array, error) bool) {
		frame := 0
		for cloud, err := range upstream {
			if err != nil {
				yield(nil, err)
				return
			}
			img, err := r.Render(ctx, cloud)
			if err != nil {
				yield(nil, err)
				return
			}
			logger.CDebugw(ctx, "rendered cloud", "frame", frame, "points", cloud.Size())
			frame++
			if !yield(img, nil) {
				return
			}
		}
	}, nil
}

// Render draws a single cloud.
func (r *OffscreenRenderer) Render(ctx context.Context, cloud *pointcloud.DepthCloud) (*rimage.Array, error) {
	scene := NewScene(cloud)
	scene.Width, scene.Height = r.width, r.height
	scene.Camera = r.camera
	return r.backend.Render(ctx, scene, r.pose(scene.MetaData()))
}
