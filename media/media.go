// Package media contains the file sources and sinks of a pipeline: still images, animated GIFs
// and videos in, still images and animated GIFs out.
package media

import (
	"context"
	"os"

	"github.com/pkg/errors"
	"go.opencensus.io/trace"

	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/rimage"
	"go.viam.com/cloudmosh/utils"
)

// ImageReader is a source that yields one Batch 1 array per path.
type ImageReader struct {
	paths  []string
	logger logging.Logger
}

// ReadImage returns a source over the images at paths. Every new iteration starts again at the
// first path.
func ReadImage(paths ...string) *ImageReader {
	return &ImageReader{paths: paths}
}

// WithLogger sets the logger used for per-file diagnostics.
func (r *ImageReader) WithLogger(logger logging.Logger) *ImageReader {
	r.logger = logger
	return r
}

// Name returns "ReadImage".
func (r *ImageReader) Name() string { return "ReadImage" }

// Role is RoleSource.
func (r *ImageReader) Role() pipeline.Role { return pipeline.RoleSource }

// Attach starts the source. Any upstream is a usage error.
func (r *ImageReader) Attach(ctx context.Context, upstream pipeline.Seq[pipeline.Nothing]) (pipeline.Seq[*rimage.Array], error) {
	if upstream != nil {
		return nil, utils.NewSourceInputError(r.Name())
	}
	logger := logging.OrGlobal(r.logger)
	return readEach(ctx, r.paths, func(path string) (*rimage.Array, error) {
		arr, err := rimage.ReadArrayFile(path)
		if err != nil {
			return nil, err
		}
		logger.CDebugw(ctx, "read image", "path", path, "shape", arr.ShapeString())
		return arr, nil
	}), nil
}

// FramesReader is a source that yields every frame of one GIF or video per path.
type FramesReader struct {
	paths  []string
	logger logging.Logger
}

// ReadVideoOrGIF returns a source over the animations at paths. `.gif` files are decoded
// directly and everything else is handed to ffmpeg. Every new iteration starts again at the
// first path.
func ReadVideoOrGIF(paths ...string) *FramesReader {
	return &FramesReader{paths: paths}
}

// WithLogger sets the logger used for per-file diagnostics.
func (r *FramesReader) WithLogger(logger logging.Logger) *FramesReader {
	r.logger = logger
	return r
}

// Name returns "ReadVideoOrGIF".
func (r *FramesReader) Name() string { return "ReadVideoOrGIF" }

// Role is RoleSource.
func (r *FramesReader) Role() pipeline.Role { return pipeline.RoleSource }

// Attach starts the source. Any upstream is a usage error.
func (r *FramesReader) Attach(ctx context.Context, upstream pipeline.Seq[pipeline.Nothing]) (pipeline.Seq[rimage.Frames], error) {
	if upstream != nil {
		return nil, utils.NewSourceInputError(r.Name())
	}
	logger := logging.OrGlobal(r.logger)
	return readEach(ctx, r.paths, func(path string) (rimage.Frames, error) {
		frames, err := readAnimation(ctx, path)
		if err != nil {
			return nil, err
		}
		logger.CDebugw(ctx, "read frames", "path", path, "count", len(frames))
		return frames, nil
	}), nil
}

func readAnimation(ctx context.Context, path string) (rimage.Frames, error) {
	if utils.MimeTypeFromPath(path) == utils.MimeTypeGIF {
		return rimage.ReadGIFFrames(path)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, errors.Wrapf(err, "reading video %q", path)
	}
	return rimage.ReadVideoFrames(ctx, path)
}

// FrameReader is a source that yields one Batch 1 array per still image and one per frame of
// every GIF or video, in path order.
type FrameReader struct {
	paths  []string
	logger logging.Logger
}

// ReadFrames returns a source over paths that mixes still images with animations. Every new
// iteration starts again at the first path.
func ReadFrames(paths ...string) *FrameReader {
	return &FrameReader{paths: paths}
}

// WithLogger sets the logger used for per-file diagnostics.
func (r *FrameReader) WithLogger(logger logging.Logger) *FrameReader {
	r.logger = logger
	return r
}

// Name returns "ReadFrames".
func (r *FrameReader) Name() string { return "ReadFrames" }

// Role is RoleSource.
func (r *FrameReader) Role() pipeline.Role { return pipeline.RoleSource }

// Attach starts the source. Any upstream is a usage error.
func (r *FrameReader) Attach(ctx context.Context, upstream pipeline.Seq[pipeline.Nothing]) (pipeline.Seq[*rimage.Array], error) {
	if upstream != nil {
		return nil, utils.NewSourceInputError(r.Name())
	}
	logger := logging.OrGlobal(r.logger)
	files := readEach(ctx, r.paths, func(path string) (rimage.Frames, error) {
		if !utils.IsAnimated(utils.MimeTypeFromPath(path)) {
			arr, err := rimage.ReadArrayFile(path)
			if err != nil {
				return nil, err
			}
			return rimage.Frames{arr}, nil
		}
		frames, err := readAnimation(ctx, path)
		if err != nil {
			return nil, err
		}
		logger.CDebugw(ctx, "expanded animation", "path", path, "frames", len(frames))
		return frames, nil
	})
	return func(yield func(*rimage.Array, error) bool) {
		for frames, err := range files {
			if err != nil {
				yield(nil, err)
				return
			}
			for _, frame := range frames {
				if !yield(frame, nil) {
					return
				}
			}
		}
	}, nil
}

// readEach lazily loads one item per path. The context is checked before each file.
func readEach[T any](ctx context.Context, paths []string, load func(path string) (T, error)) pipeline.Seq[T] {
	return func(yield func(T, error) bool) {
		var zero T
		for _, path := range paths {
			if err := ctx.Err(); err != nil {
				yield(zero, err)
				return
			}
			item, err := load(path)
			if err != nil {
				yield(zero, err)
				return
			}
			if !yield(item, nil) {
				return
			}
		}
	}
}

// ImageWriter is a sink that writes the i-th upstream array to the i-th path.
type ImageWriter struct {
	paths  []string
	logger logging.Logger
}

// SaveImage returns a sink writing to paths. The format is chosen by each path's extension.
func SaveImage(paths ...string) *ImageWriter {
	return &ImageWriter{paths: paths}
}

// WithLogger sets the logger used for per-file diagnostics.
func (w *ImageWriter) WithLogger(logger logging.Logger) *ImageWriter {
	w.logger = logger
	return w
}

// Name returns "SaveImage".
func (w *ImageWriter) Name() string { return "SaveImage" }

// Role is RoleSink.
func (w *ImageWriter) Role() pipeline.Role { return pipeline.RoleSink }

// Attach drains upstream and writes every array. The number of arrays must match the number of
// paths.
func (w *ImageWriter) Attach(ctx context.Context, upstream pipeline.Seq[*rimage.Array]) (pipeline.Seq[pipeline.Nothing], error) {
	ctx, span := trace.StartSpan(ctx, "media::SaveImage::Attach")
	defer span.End()

	arrays, err := pipeline.CollectN(w.Name(), upstream, "images", len(w.paths), "paths")
	if err != nil {
		return nil, err
	}
	logger := logging.OrGlobal(w.logger)
	for i, arr := range arrays {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rimage.WriteArrayFile(w.paths[i], arr); err != nil {
			return nil, err
		}
		logger.CDebugw(ctx, "saved image", "path", w.paths[i], "shape", arr.ShapeString())
	}
	return nil, nil
}

// GIFWriter is a sink that writes the i-th upstream frame sequence to the i-th path.
type GIFWriter struct {
	paths  []string
	delay  int
	logger logging.Logger
}

// SaveGIF returns a sink writing animated GIFs to paths.
func SaveGIF(paths ...string) *GIFWriter {
	return &GIFWriter{paths: paths, delay: rimage.DefaultGIFDelay}
}

// WithDelay sets the time between frames in 100ths of a second.
func (w *GIFWriter) WithDelay(delay int) *GIFWriter {
	w.delay = delay
	return w
}

// WithLogger sets the logger used for per-file diagnostics.
func (w *GIFWriter) WithLogger(logger logging.Logger) *GIFWriter {
	w.logger = logger
	return w
}

// Name returns "SaveGIF".
func (w *GIFWriter) Name() string { return "SaveGIF" }

// Role is RoleSink.
func (w *GIFWriter) Role() pipeline.Role { return pipeline.RoleSink }

// Attach drains upstream and writes every frame sequence. The number of sequences must match
// the number of paths.
func (w *GIFWriter) Attach(ctx context.Context, upstream pipeline.Seq[rimage.Frames]) (pipeline.Seq[pipeline.Nothing], error) {
	ctx, span := trace.StartSpan(ctx, "media::SaveGIF::Attach")
	defer span.End()

	sequences, err := pipeline.CollectN(w.Name(), upstream, "sequences", len(w.paths), "paths")
	if err != nil {
		return nil, err
	}
	logger := logging.OrGlobal(w.logger)
	for i, frames := range sequences {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := rimage.WriteGIF(w.paths[i], frames, w.delay); err != nil {
			return nil, err
		}
		logger.CDebugw(ctx, "saved gif", "path", w.paths[i], "frames", len(frames))
	}
	return nil, nil
}
