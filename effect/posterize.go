// Package effect holds the stylizing stages that run on clouds and depth batches, and the
// registry that builds cloud effects from configuration attributes.
package effect

import (
	"context"

	"github.com/montanaflynn/stats"
	"github.com/muesli/clusters"
	"github.com/muesli/kmeans"
	"github.com/pkg/errors"
	"github.com/samber/lo"

	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/utils"
)

// DefaultLevels is how many depth levels a posterizer keeps when none is configured.
const DefaultLevels = 5

// PosterizeConfig configures PosterizeDepth.
type PosterizeConfig struct {
	Levels   int      `json:"levels"`
	ZPadding *float64 `json:"z_padding,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *PosterizeConfig) Validate(path string) error {
	if cfg.Levels < 0 {
		return errors.Errorf("%s: levels must be positive, got %d", fieldPath(path, "levels"), cfg.Levels)
	}
	return nil
}

// Posterizer is a transform that snaps every z of a cloud to one of a few k-means centroids.
type Posterizer struct {
	levels  int
	padding float64
	logger  logging.Logger
}

// PosterizeDepth returns a posterizer. A zero Levels means DefaultLevels.
func PosterizeDepth(cfg PosterizeConfig) *Posterizer {
	p := &Posterizer{levels: cfg.Levels}
	if p.levels == 0 {
		p.levels = DefaultLevels
	}
	if cfg.ZPadding != nil {
		p.padding = *cfg.ZPadding
	}
	return p
}

// WithLogger sets the logger used for per-cloud diagnostics.
func (p *Posterizer) WithLogger(logger logging.Logger) *Posterizer {
	p.logger = logger
	return p
}

// Name returns "PosterizeDepth".
func (p *Posterizer) Name() string { return "PosterizeDepth" }

// Role is RoleTransform.
func (p *Posterizer) Role() pipeline.Role { return pipeline.RoleTransform }

// Attach posterizes upstream lazily, one cloud at a time.
func (p *Posterizer) Attach(
	ctx context.Context,
	upstream pipeline.Seq[*pointcloud.DepthCloud],
) (pipeline.Seq[*pointcloud.DepthCloud], error) {
	if upstream == nil {
		return nil, utils.NewMissingInputError(p.Name())
	}
	logger := logging.OrGlobal(p.logger)
	return func(yield func(*pointcloud.DepthCloud, error) bool) {
		for cloud, err := range upstream {
			if err != nil {
				yield(nil, err)
				return
			}
			out, centroids, err := p.Posterize(cloud)
			if err != nil {
				yield(nil, err)
				return
			}
			logger.CDebugw(ctx, "posterized cloud", "points", cloud.Size(), "centroids", centroids)
			if !yield(out, nil) {
				return
			}
		}
	}, nil
}

// Posterize returns cloud with every z replaced by its level, along with the levels used.
func (p *Posterizer) Posterize(cloud *pointcloud.DepthCloud) (*pointcloud.DepthCloud, []float64, error) {
	zs, centroids, err := Quantize(cloud.Zs(), p.levels, p.padding)
	if err != nil {
		return nil, nil, err
	}
	out, err := cloud.WithZs(zs)
	if err != nil {
		return nil, nil, err
	}
	return out, centroids, nil
}

// convergenceThreshold is the fraction of moved values below which k-means stops early. It is
// small enough that, for any cloud that fits in memory, clustering only stops once no value
// changes cluster (or the iteration cap of the library is reached).
const convergenceThreshold = 1e-12

// Quantize clusters values into levels groups with k-means on whitened data and returns every
// value replaced by its group's centroid plus padding, and the padded centroids themselves.
func Quantize(values []float64, levels int, padding float64) ([]float64, []float64, error) {
	if levels < 1 {
		return nil, nil, errors.Wrapf(utils.ErrClustering, "need at least one level, got %d", levels)
	}
	if distinct := len(lo.Uniq(values)); levels > distinct {
		return nil, nil, errors.Wrapf(utils.ErrClustering,
			"cannot split %d distinct values into %d levels", distinct, levels)
	}

	deviation, err := stats.StandardDeviationPopulation(values)
	if err != nil {
		return nil, nil, errors.Wrap(utils.ErrClustering, err.Error())
	}
	if deviation == 0 {
		deviation = 1
	}

	observations := make(clusters.Observations, len(values))
	for i, v := range values {
		observations[i] = clusters.Coordinates{v / deviation}
	}
	km, err := kmeans.NewWithOptions(convergenceThreshold, nil)
	if err != nil {
		return nil, nil, errors.Wrap(utils.ErrClustering, err.Error())
	}
	partition, err := km.Partition(observations, levels)
	if err != nil {
		return nil, nil, errors.Wrap(utils.ErrClustering, err.Error())
	}

	centroids := lo.Map(partition, func(c clusters.Cluster, _ int) float64 {
		return c.Center[0]*deviation + padding
	})
	out := make([]float64, len(values))
	for i, obs := range observations {
		out[i] = centroids[partition.Nearest(obs)]
	}
	return out, centroids, nil
}

func fieldPath(path, field string) string {
	if path == "" {
		return field
	}
	return path + "." + field
}
