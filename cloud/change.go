package cloud

import (
	"context"

	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/rimage"
	"go.viam.com/cloudmosh/utils"
)

// DepthUpdate pairs clouds with a depth batch holding one new depth image per cloud.
type DepthUpdate struct {
	Clouds []*pointcloud.DepthCloud
	Depth  *rimage.Array
}

// DepthChanger is a transform that re-derives cloud points from new depth images.
type DepthChanger struct{}

// ChangeDepth returns a transform that yields, for every upstream update, each cloud with its
// points recomputed from the matching depth image. Colors are kept.
func ChangeDepth() *DepthChanger {
	return &DepthChanger{}
}

// Name returns "ChangeDepth".
func (c *DepthChanger) Name() string { return "ChangeDepth" }

// Role is RoleTransform.
func (c *DepthChanger) Role() pipeline.Role { return pipeline.RoleTransform }

// Attach applies every update lazily.
func (c *DepthChanger) Attach(
	ctx context.Context,
	upstream pipeline.Seq[DepthUpdate],
) (pipeline.Seq[*pointcloud.DepthCloud], error) {
	if upstream == nil {
		return nil, utils.NewMissingInputError(c.Name())
	}
	return func(yield func(*pointcloud.DepthCloud, error) bool) {
		for update, err := range upstream {
			if err != nil {
				yield(nil, err)
				return
			}
			changed, err := ReplaceDepth(update.Clouds, update.Depth)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, cloud := range changed {
				if !yield(cloud, nil) {
					return
				}
			}
		}
	}, nil
}

// ReplaceDepth returns new clouds whose points are (row, col, depth) from the matching image of
// depth. There must be exactly one depth image per cloud.
func ReplaceDepth(clouds []*pointcloud.DepthCloud, depth *rimage.Array) ([]*pointcloud.DepthCloud, error) {
	if depth == nil {
		return nil, utils.NewUsageError("ChangeDepth needs a depth batch")
	}
	if len(clouds) != depth.Batch {
		return nil, utils.NewCountMismatchError("ChangeDepth", len(clouds), "clouds", depth.Batch, "depth images")
	}
	if depth.Channels != 1 {
		return nil, utils.NewShapeError("ChangeDepth needs 1 channel depth, got %s", depth.ShapeString())
	}
	out := make([]*pointcloud.DepthCloud, len(clouds))
	for i, cloud := range clouds {
		changed, err := cloud.WithDepthImage(depth.Plane(i))
		if err != nil {
			return nil, err
		}
		out[i] = changed
	}
	return out, nil
}
