package cli

import (
	"context"
	"io"

	"github.com/schollz/progressbar/v3"

	"go.viam.com/cloudmosh/pipeline"
)

// newProgressBar counts written items. A negative total shows a spinner instead of a bar.
func newProgressBar(w io.Writer, total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(description),
		progressbar.OptionShowCount(),
		progressbar.OptionSetItsString("frames"),
		progressbar.OptionShowIts(),
		progressbar.OptionClearOnFinish(),
	)
}

// withProgress advances bar once for every item of seq that is pulled.
func withProgress[T any](ctx context.Context, seq pipeline.Seq[T], bar *progressbar.ProgressBar) (pipeline.Seq[T], error) {
	return pipeline.Shift[T, T](ctx, seq, pipeline.Map("Progress", func(_ context.Context, item T) (T, error) {
		return item, bar.Add(1)
	}))
}
