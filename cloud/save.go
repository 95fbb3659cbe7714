package cloud

import (
	"bufio"
	"context"
	"os"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"
	"go.uber.org/multierr"

	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/utils"
)

// Saver is a sink that writes the i-th upstream cloud to the i-th path.
type Saver struct {
	paths   []string
	pcdType pointcloud.PCDType
	logger  logging.Logger
}

// SaveClouds returns a sink exporting clouds by extension: `.pcd` or `.las`.
func SaveClouds(paths ...string) *Saver {
	return &Saver{paths: paths, pcdType: pointcloud.PCDBinary}
}

// WithPCDType chooses between binary (default) and ascii PCD output.
func (s *Saver) WithPCDType(pcdType pointcloud.PCDType) *Saver {
	s.pcdType = pcdType
	return s
}

// WithLogger sets the logger used for per-file diagnostics.
func (s *Saver) WithLogger(logger logging.Logger) *Saver {
	s.logger = logger
	return s
}

// Name returns "SaveClouds".
func (s *Saver) Name() string { return "SaveClouds" }

// Role is RoleSink.
func (s *Saver) Role() pipeline.Role { return pipeline.RoleSink }

// Attach drains upstream and writes every cloud. The number of clouds must match the number of
// paths.
func (s *Saver) Attach(
	ctx context.Context,
	upstream pipeline.Seq[*pointcloud.DepthCloud],
) (pipeline.Seq[pipeline.Nothing], error) {
	ctx, span := trace.StartSpan(ctx, "cloud::SaveClouds::Attach")
	defer span.End()

	clouds, err := pipeline.CollectN(s.Name(), upstream, "clouds", len(s.paths), "paths")
	if err != nil {
		return nil, err
	}
	logger := logging.OrGlobal(s.logger)
	for i, cloud := range clouds {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := WriteCloudFile(s.paths[i], cloud, s.pcdType); err != nil {
			return nil, err
		}
		logger.CDebugw(ctx, "saved cloud", "path", s.paths[i], "points", cloud.Size())
	}
	return nil, nil
}

// WriteCloudFile writes cloud to path in the format named by its extension.
func WriteCloudFile(path string, cloud *pointcloud.DepthCloud, pcdType pointcloud.PCDType) error {
	switch utils.MimeTypeFromPath(path) {
	case utils.MimeTypeLAS:
		return pointcloud.WriteToLASFile(cloud, path)
	case utils.MimeTypePCD:
		return writePCDFile(path, cloud, pcdType)
	default:
		return errors.Errorf("do not know how to write point cloud file %q", path)
	}
}

func writePCDFile(path string, cloud *pointcloud.DepthCloud, pcdType pointcloud.PCDType) (err error) {
	//nolint:gosec
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		err = multierr.Combine(err, f.Close())
	}()
	w := bufio.NewWriter(f)
	if err := pointcloud.ToPCD(cloud, w, pcdType); err != nil {
		return err
	}
	return w.Flush()
}
