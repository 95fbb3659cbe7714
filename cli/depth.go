package cli

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"

	"go.viam.com/cloudmosh/depth"
	"go.viam.com/cloudmosh/effect"
	"go.viam.com/cloudmosh/media"
	"go.viam.com/cloudmosh/ml"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/rimage"
)

// DepthAction is the corresponding Action for 'depth'.
func DepthAction(c *cli.Context) (err error) {
	inputs := c.Args().Slice()
	outputs := c.StringSlice(outFlag)
	if len(inputs) == 0 {
		return errors.New("no input images given")
	}
	logger, ctx, err := newRunLogger(c, "")
	if err != nil {
		return err
	}

	model, err := ml.NewProcessModel(ctx, ml.ProcessConfig{
		Command:   strings.Fields(c.String(workerFlag)),
		ModelPath: c.Path(modelFlag),
	}, logger)
	if err != nil {
		return errors.Wrap(err, "failed to start depth model")
	}
	defer func() {
		err = multierr.Combine(err, model.Close())
	}()
	estimator, err := depth.NewEstimator(model, depth.Config{}, logger.Sublogger("depth"))
	if err != nil {
		return err
	}

	images, err := pipeline.Open[*rimage.Array](ctx, media.ReadImage(inputs...).WithLogger(logger))
	if err != nil {
		return err
	}
	depthSeq, err := pipeline.Shift[*rimage.Array, *rimage.Array](ctx, images, estimator)
	if err != nil {
		return err
	}
	if c.Bool(colorizeFlag) {
		colorizer, err := effect.ColorizeDepth(effect.ColorizeConfig{})
		if err != nil {
			return err
		}
		if depthSeq, err = pipeline.Shift[*rimage.Array, *rimage.Array](ctx, depthSeq, colorizer); err != nil {
			return err
		}
	}
	bar := newProgressBar(c.App.ErrWriter, len(outputs), "estimating depth")
	if depthSeq, err = withProgress(ctx, depthSeq, bar); err != nil {
		return err
	}
	if _, err := pipeline.Shift[*rimage.Array, pipeline.Nothing](ctx, depthSeq,
		media.SaveImage(outputs...).WithLogger(logger)); err != nil {
		return err
	}
	if err := bar.Finish(); err != nil {
		return err
	}
	logger.Infow("saved depth", "images", len(outputs))
	return nil
}
