package cloud

import (
	"context"

	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/rimage"
	"go.viam.com/cloudmosh/utils"
)

// Painter is a transform that colors each upstream cloud from the matching color image.
type Painter struct {
	images pipeline.Seq[*rimage.Array]
	source pipeline.Stage[pipeline.Nothing, *rimage.Array]
}

// PaintClouds returns a painter taking its colors from images, one (1, R, C, ch) image per
// cloud.
func PaintClouds(images pipeline.Seq[*rimage.Array]) *Painter {
	return &Painter{images: images}
}

// PaintCloudsFrom returns a painter taking its colors from a source stage. The source is opened
// each time the painter is attached.
func PaintCloudsFrom(source pipeline.Stage[pipeline.Nothing, *rimage.Array]) *Painter {
	return &Painter{source: source}
}

// Name returns "PaintClouds".
func (p *Painter) Name() string { return "PaintClouds" }

// Role is RoleTransform.
func (p *Painter) Role() pipeline.Role { return pipeline.RoleTransform }

// Attach materializes both the clouds and the images, pairs them by index and yields new
// colored clouds in order. RGBA images lose their alpha and gray images are replicated to RGB.
func (p *Painter) Attach(
	ctx context.Context,
	upstream pipeline.Seq[*pointcloud.DepthCloud],
) (pipeline.Seq[*pointcloud.DepthCloud], error) {
	if upstream == nil {
		return nil, utils.NewMissingInputError(p.Name())
	}
	images := p.images
	if p.source != nil {
		var err error
		if images, err = pipeline.Open(ctx, p.source); err != nil {
			return nil, err
		}
	}
	if images == nil {
		return nil, utils.NewUsageError("%s needs color images", p.Name())
	}

	return func(yield func(*pointcloud.DepthCloud, error) bool) {
		clouds, err := pipeline.Collect(upstream)
		if err != nil {
			yield(nil, err)
			return
		}
		colors, err := pipeline.Collect(images)
		if err != nil {
			yield(nil, err)
			return
		}
		if len(clouds) != len(colors) {
			yield(nil, utils.NewShapeError("%s received %d clouds but %d images", p.Name(), len(clouds), len(colors)))
			return
		}
		for i, cloud := range clouds {
			painted, err := Paint(cloud, colors[i])
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(painted, nil) {
				return
			}
		}
	}, nil
}

// Paint returns cloud colored from a single image.
func Paint(cloud *pointcloud.DepthCloud, img *rimage.Array) (*pointcloud.DepthCloud, error) {
	if img.Batch != 1 {
		return nil, utils.NewShapeError("can only paint from one image, got %s", img.ShapeString())
	}
	return cloud.WithColorImage(img.Plane(0))
}
