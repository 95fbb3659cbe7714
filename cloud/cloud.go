// Package cloud contains the pipeline stages that build, color, reshape and blend depth clouds,
// and the sink that exports them as point cloud files.
package cloud

import (
	"context"

	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/rimage"
	"go.viam.com/cloudmosh/utils"
)

// DepthConverter is a transform from depth batches to clouds.
type DepthConverter struct {
	logger logging.Logger
}

// DepthToClouds returns a transform that turns every image of every (B, R, C, 1) depth batch
// into one uncolored cloud, in batch order and then image order.
func DepthToClouds() *DepthConverter {
	return &DepthConverter{}
}

// WithLogger sets the logger used for per-cloud diagnostics.
func (dc *DepthConverter) WithLogger(logger logging.Logger) *DepthConverter {
	dc.logger = logger
	return dc
}

// Name returns "DepthToClouds".
func (dc *DepthConverter) Name() string { return "DepthToClouds" }

// Role is RoleTransform.
func (dc *DepthConverter) Role() pipeline.Role { return pipeline.RoleTransform }

// Attach converts upstream lazily.
func (dc *DepthConverter) Attach(
	ctx context.Context,
	upstream pipeline.Seq[*rimage.Array],
) (pipeline.Seq[*pointcloud.DepthCloud], error) {
	if upstream == nil {
		return nil, utils.NewMissingInputError(dc.Name())
	}
	logger := logging.OrGlobal(dc.logger)
	return func(yield func(*pointcloud.DepthCloud, error) bool) {
		for depth, err := range upstream {
			if err != nil {
				yield(nil, err)
				return
			}
			if depth.Channels != 1 {
				yield(nil, utils.NewShapeError("%s needs 1 channel depth, got %s", dc.Name(), depth.ShapeString()))
				return
			}
			for b := 0; b < depth.Batch; b++ {
				cloud := pointcloud.NewFromDepth(depth.Plane(b))
				logger.CDebugw(ctx, "converted depth to cloud", "points", cloud.Size())
				if !yield(cloud, nil) {
					return
				}
			}
		}
	}, nil
}

// Convert turns every image of a depth batch into a cloud.
func Convert(depth *rimage.Array) ([]*pointcloud.DepthCloud, error) {
	if depth.Channels != 1 {
		return nil, utils.NewShapeError("need 1 channel depth, got %s", depth.ShapeString())
	}
	clouds := make([]*pointcloud.DepthCloud, depth.Batch)
	for b := range clouds {
		clouds[b] = pointcloud.NewFromDepth(depth.Plane(b))
	}
	return clouds, nil
}
