package cli

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"go.viam.com/cloudmosh/cloud"
	"go.viam.com/cloudmosh/config"
	"go.viam.com/cloudmosh/effect"
	"go.viam.com/cloudmosh/media"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/rimage"
)

// RenderAction is the corresponding Action for 'render'.
func RenderAction(c *cli.Context) error {
	depths := c.StringSlice(depthFlag)
	colors := c.StringSlice(colorFlag)
	outputs := c.StringSlice(outFlag)
	if len(colors) > 0 && len(colors) != len(depths) {
		return errors.Errorf("need one --%s per --%s, got %d and %d", colorFlag, depthFlag, len(colors), len(depths))
	}
	if c.Int(levelsFlag) < 0 {
		return errors.Errorf("--%s must not be negative", levelsFlag)
	}
	renderConf := config.RenderConfig{PointSize: c.Int(pointSizeFlag), Camera: c.String(cameraFlag)}
	if err := renderConf.Validate(cameraFlag); err != nil {
		return err
	}
	logger, ctx, err := newRunLogger(c, "")
	if err != nil {
		return err
	}

	depthSeq, err := pipeline.Open[*rimage.Array](ctx, media.ReadImage(depths...).WithLogger(logger))
	if err != nil {
		return err
	}
	clouds, err := pipeline.Shift[*rimage.Array, *pointcloud.DepthCloud](ctx, depthSeq, cloud.DepthToClouds().WithLogger(logger))
	if err != nil {
		return err
	}
	if len(colors) > 0 {
		painter := cloud.PaintCloudsFrom(media.ReadImage(colors...).WithLogger(logger))
		if clouds, err = pipeline.Shift[*pointcloud.DepthCloud, *pointcloud.DepthCloud](ctx, clouds, painter); err != nil {
			return err
		}
	}
	if levels := c.Int(levelsFlag); levels > 0 {
		posterizer := effect.PosterizeDepth(effect.PosterizeConfig{Levels: levels}).WithLogger(logger)
		if clouds, err = pipeline.Shift[*pointcloud.DepthCloud, *pointcloud.DepthCloud](ctx, clouds, posterizer); err != nil {
			return err
		}
	}

	renderer, err := newRenderer(renderConf, logger.Sublogger("render"))
	if err != nil {
		return err
	}
	frames, err := pipeline.Shift[*pointcloud.DepthCloud, *rimage.Array](ctx, clouds, renderer)
	if err != nil {
		return err
	}
	bar := newProgressBar(c.App.ErrWriter, len(outputs), "rendering")
	if frames, err = withProgress(ctx, frames, bar); err != nil {
		return err
	}
	if _, err := pipeline.Shift[*rimage.Array, pipeline.Nothing](ctx, frames,
		media.SaveImage(outputs...).WithLogger(logger)); err != nil {
		return err
	}
	return bar.Finish()
}
