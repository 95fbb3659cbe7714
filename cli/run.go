package cli

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/cloudmosh/cloud"
	"go.viam.com/cloudmosh/config"
	"go.viam.com/cloudmosh/depth"
	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/media"
	"go.viam.com/cloudmosh/ml"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/render"
	"go.viam.com/cloudmosh/rimage"
)

// RunAction is the corresponding Action for 'run'.
func RunAction(c *cli.Context) error {
	// The config is read with a throwaway logger since its log level is not known yet.
	cfg, err := config.Read(c.Context, c.Path(configFlag), logging.NewBlankLogger("config"))
	if err != nil {
		return err
	}
	logger, ctx, err := newRunLogger(c, cfg.Log.Level)
	if err != nil {
		return err
	}
	logger.Infow("starting run", "config", cfg.ConfigFilePath, "outputs", len(cfg.Outputs))
	if err := runConfig(ctx, cfg, logger, c.App.ErrWriter); err != nil {
		logger.Errorw("run failed", "error", err)
		return err
	}
	logger.Infow("run finished", "outputs", len(cfg.Outputs))
	return nil
}

// runConfig builds the pipeline cfg describes and drives it into its outputs.
func runConfig(ctx context.Context, cfg *config.Config, logger logging.Logger, progress io.Writer) (err error) {
	var depthSeq pipeline.Seq[*rimage.Array]
	if len(cfg.DepthInputs) > 0 {
		depthSeq, err = pipeline.Open[*rimage.Array](ctx, media.ReadFrames(cfg.DepthInputs...).WithLogger(logger))
		if err != nil {
			return err
		}
	} else {
		var model *ml.ProcessModel
		model, err = ml.NewProcessModel(ctx, ml.ProcessConfig{
			Command:   cfg.Model.Command,
			ModelPath: cfg.Model.Path,
			Env:       cfg.Model.Env,
		}, logger)
		if err != nil {
			return errors.Wrap(err, "failed to start depth model")
		}
		defer func() {
			err = multierr.Combine(err, model.Close())
		}()
		var estimator *depth.Estimator
		if estimator, err = depth.NewEstimator(model, cfg.Model.Config, logger.Sublogger("depth")); err != nil {
			return err
		}
		var images pipeline.Seq[*rimage.Array]
		if images, err = pipeline.Open[*rimage.Array](ctx, media.ReadFrames(cfg.Inputs...).WithLogger(logger)); err != nil {
			return err
		}
		if depthSeq, err = pipeline.Shift[*rimage.Array, *rimage.Array](ctx, images, estimator); err != nil {
			return err
		}
	}

	clouds, err := pipeline.Shift[*rimage.Array, *pointcloud.DepthCloud](ctx, depthSeq, cloud.DepthToClouds().WithLogger(logger))
	if err != nil {
		return err
	}
	if len(cfg.Inputs) > 0 {
		painter := cloud.PaintCloudsFrom(media.ReadFrames(cfg.Inputs...).WithLogger(logger))
		if clouds, err = pipeline.Shift[*pointcloud.DepthCloud, *pointcloud.DepthCloud](ctx, clouds, painter); err != nil {
			return err
		}
	}
	effects, err := cfg.BuildEffects(logger.Sublogger("effects"))
	if err != nil {
		return err
	}
	for _, eff := range effects {
		if clouds, err = pipeline.Shift(ctx, clouds, eff); err != nil {
			return err
		}
	}

	kind, err := cfg.OutputKind()
	if err != nil {
		return err
	}
	if kind == config.OutputClouds {
		pcdType, err := cfg.PCDType()
		if err != nil {
			return err
		}
		bar := newProgressBar(progress, len(cfg.Outputs), "saving clouds")
		if clouds, err = withProgress(ctx, clouds, bar); err != nil {
			return err
		}
		if _, err := pipeline.Shift[*pointcloud.DepthCloud, pipeline.Nothing](ctx, clouds,
			cloud.SaveClouds(cfg.Outputs...).WithPCDType(pcdType).WithLogger(logger)); err != nil {
			return err
		}
		return bar.Finish()
	}

	renderer, err := newRenderer(cfg.Render, logger.Sublogger("render"))
	if err != nil {
		return err
	}
	frames, err := pipeline.Shift[*pointcloud.DepthCloud, *rimage.Array](ctx, clouds, renderer)
	if err != nil {
		return err
	}
	total := len(cfg.Outputs)
	if kind == config.OutputGIF {
		total = -1
	}
	bar := newProgressBar(progress, total, "rendering")
	if frames, err = withProgress(ctx, frames, bar); err != nil {
		return err
	}

	if kind == config.OutputImages {
		if _, err := pipeline.Shift[*rimage.Array, pipeline.Nothing](ctx, frames,
			media.SaveImage(cfg.Outputs...).WithLogger(logger)); err != nil {
			return err
		}
		return bar.Finish()
	}

	animation, err := pipeline.Shift[*rimage.Array, rimage.Frames](ctx, frames, gatherFrames())
	if err != nil {
		return err
	}
	writer := media.SaveGIF(cfg.Outputs...).WithLogger(logger)
	if cfg.Render.GIFDelay > 0 {
		writer = writer.WithDelay(cfg.Render.GIFDelay)
	}
	if _, err := pipeline.Shift[rimage.Frames, pipeline.Nothing](ctx, animation, writer); err != nil {
		return err
	}
	return bar.Finish()
}

// newRenderer sets up a software renderer as conf asks.
func newRenderer(conf config.RenderConfig, logger logging.Logger) (*render.OffscreenRenderer, error) {
	backend := render.NewSoftwareBackend()
	if conf.PointSize > 0 {
		backend.PointSize = conf.PointSize
	}
	renderer := render.OffscreenCloudRender(backend).WithLogger(logger)
	if conf.Width > 0 || conf.Height > 0 {
		width, height := conf.Width, conf.Height
		if width == 0 {
			width = render.DefaultWidth
		}
		if height == 0 {
			height = render.DefaultHeight
		}
		renderer = renderer.WithSize(width, height)
	}
	pose, err := conf.PoseMatrix()
	if err != nil {
		return nil, err
	}
	switch {
	case conf.Camera == config.CameraCentroid:
		renderer = renderer.WithPose(render.DefaultCameraPose)
	case pose != nil:
		renderer = renderer.WithPose(render.FixedPose(*pose))
	}
	return renderer, nil
}

// gatherFrames collects every upstream image into one animation.
func gatherFrames() *pipeline.TransformFunc[*rimage.Array, rimage.Frames] {
	return pipeline.NewTransform("GatherFrames",
		func(ctx context.Context, upstream pipeline.Seq[*rimage.Array]) (pipeline.Seq[rimage.Frames], error) {
			return func(yield func(rimage.Frames, error) bool) {
				frames, err := pipeline.Collect(upstream)
				if err != nil {
					yield(nil, err)
					return
				}
				yield(frames, nil)
			}, nil
		})
}
