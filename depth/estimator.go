// Package depth turns color images into depth maps with a monocular depth-estimation network.
package depth

import (
	"context"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/ml"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/rimage"
	"go.viam.com/cloudmosh/utils"
)

const (
	// ModelRows and ModelCols are the image size the network expects, in array convention
	// (rows run along the width).
	ModelRows = 640
	ModelCols = 480

	// DefaultMinDepth is the smallest depth the estimator assigns.
	DefaultMinDepth = 10.0
	// DefaultMaxDepth is the largest depth the estimator assigns.
	DefaultMaxDepth = 1000.0
	// DefaultBatchSize is how many images are sent to the model at once.
	DefaultBatchSize = 2
)

// Config tunes an Estimator. An unset MinDepth and zero MaxDepth or BatchSize take the defaults.
type Config struct {
	MinDepth  *float64 `json:"min_depth,omitempty"`
	MaxDepth  float64  `json:"max_depth,omitempty"`
	BatchSize int      `json:"batch_size,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *Config) Validate(path string) error {
	minDepth, maxDepth, _ := cfg.resolve()
	if minDepth < 0 {
		return errors.Errorf("%s: min_depth must not be negative, got %v", path, minDepth)
	}
	if cfg.MaxDepth < 0 {
		return errors.Errorf("%s: max_depth must not be negative, got %v", path, cfg.MaxDepth)
	}
	if minDepth > maxDepth {
		return errors.Errorf("%s: min_depth %v is larger than max_depth %v", path, minDepth, maxDepth)
	}
	if cfg.BatchSize < 0 {
		return errors.Errorf("%s: batch_size must not be negative, got %d", path, cfg.BatchSize)
	}
	return nil
}

// resolve returns the depth range and batch size with defaults applied.
func (cfg *Config) resolve() (float64, float64, int) {
	minDepth, maxDepth, batchSize := DefaultMinDepth, DefaultMaxDepth, DefaultBatchSize
	if cfg.MinDepth != nil {
		minDepth = *cfg.MinDepth
	}
	if cfg.MaxDepth != 0 {
		maxDepth = cfg.MaxDepth
	}
	if cfg.BatchSize != 0 {
		batchSize = cfg.BatchSize
	}
	return minDepth, maxDepth, batchSize
}

// Estimator is a transform from image batches to depth batches. Each upstream array of shape
// (B, R, C, ch) yields one (B, R, C, 1) depth array with values in [MinDepth, MaxDepth].
type Estimator struct {
	model              ml.Model
	minDepth, maxDepth float64
	batchSize          int
	logger             logging.Logger
}

// NewEstimator returns an estimator running model. The estimator does not own the model.
func NewEstimator(model ml.Model, cfg Config, logger logging.Logger) (*Estimator, error) {
	if model == nil {
		return nil, utils.NewUsageError("depth estimator needs a model")
	}
	if err := cfg.Validate("depth"); err != nil {
		return nil, errors.Wrap(utils.ErrUsage, err.Error())
	}
	est := &Estimator{model: model, logger: logging.OrGlobal(logger)}
	est.minDepth, est.maxDepth, est.batchSize = cfg.resolve()
	return est, nil
}

// Name returns "DepthEstimator".
func (e *Estimator) Name() string { return "DepthEstimator" }

// Role is RoleTransform.
func (e *Estimator) Role() pipeline.Role { return pipeline.RoleTransform }

// Attach estimates depth for every upstream array, one array at a time.
func (e *Estimator) Attach(ctx context.Context, upstream pipeline.Seq[*rimage.Array]) (pipeline.Seq[*rimage.Array], error) {
	if upstream == nil {
		return nil, utils.NewMissingInputError(e.Name())
	}
	return func(yield func(*rimage.Array, error) bool) {
		for images, err := range upstream {
			if err != nil {
				yield(nil, err)
				return
			}
			depth, err := e.Estimate(ctx, images)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(depth, nil) {
				return
			}
		}
	}, nil
}

// Estimate runs the model over every image of images and returns the depth maps at the
// original size.
func (e *Estimator) Estimate(ctx context.Context, images *rimage.Array) (*rimage.Array, error) {
	ctx, span := trace.StartSpan(ctx, "depth::Estimator::Estimate")
	defer span.End()

	input, err := prepare(images)
	if err != nil {
		return nil, err
	}

	predictions := make([]*rimage.Array, 0, input.Batch)
	for start := 0; start < input.Batch; start += e.batchSize {
		end := min(start+e.batchSize, input.Batch)
		chunk, err := e.infer(ctx, input, start, end)
		if err != nil {
			return nil, err
		}
		predictions = append(predictions, chunk)
	}
	prediction, err := rimage.Stack(predictions...)
	if err != nil {
		return nil, err
	}

	for i, v := range prediction.Data {
		prediction.Data[i] = utils.Clamp(e.maxDepth/v, e.minDepth, e.maxDepth)
	}
	depth := rimage.Resize(prediction, images.Rows, images.Cols)
	e.logger.CDebugw(ctx, "estimated depth", "in", images.ShapeString(), "out", depth.ShapeString())
	return depth, nil
}

// infer runs the model on batch entries [start, end) of input.
func (e *Estimator) infer(ctx context.Context, input *rimage.Array, start, end int) (*rimage.Array, error) {
	size := input.ImageSize()
	data := input.Data[start*size : end*size]
	tensor := ml.Float32Tensor(data, end-start, input.Rows, input.Cols, input.Channels)

	out, err := e.model.Infer(ctx, ml.Tensors{ml.InputTensorName: tensor})
	if err != nil {
		return nil, err
	}
	output, err := ml.Output(out)
	if err != nil {
		return nil, err
	}
	values, err := ml.Float64Data(output)
	if err != nil {
		return nil, err
	}

	shape := output.Shape()
	switch {
	case len(shape) == 4 && shape[3] == 1, len(shape) == 3:
	default:
		return nil, utils.NewShapeError("model returned shape %v, expected (n, rows, cols, 1)", shape)
	}
	if shape[0] != end-start {
		return nil, utils.NewShapeError("model returned %d predictions for %d images", shape[0], end-start)
	}
	return rimage.NewArrayFromData(shape[0], shape[1], shape[2], 1, append([]float64(nil), values...))
}

// prepare scales images to [0, 1], converts them to RGB and resizes them to the model size.
func prepare(images *rimage.Array) (*rimage.Array, error) {
	if images.Channels != 1 && images.Channels != 3 && images.Channels != 4 {
		return nil, utils.NewShapeError("cannot estimate depth for %d channel images", images.Channels)
	}
	rgb := rimage.NewArray(images.Batch, images.Rows, images.Cols, 3)
	for b := 0; b < images.Batch; b++ {
		for row := 0; row < images.Rows; row++ {
			for col := 0; col < images.Cols; col++ {
				for ch := 0; ch < 3; ch++ {
					src := ch
					if images.Channels == 1 {
						src = 0
					}
					rgb.Set(b, row, col, ch, utils.Clamp(images.At(b, row, col, src)/255, 0, 1))
				}
			}
		}
	}
	return rimage.Resize(rgb, ModelRows, ModelCols), nil
}
