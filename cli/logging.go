package cli

import (
	"context"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"go.viam.com/cloudmosh/logging"
)

// newRunLogger returns a logger writing to the app's error output and a context that carries
// debug mode when --debug is set. level comes from a config file and may be empty. Every entry
// carries the run's id.
func newRunLogger(c *cli.Context, level string) (logging.Logger, context.Context, error) {
	logger := logging.NewBlankLogger("cloudmosh")
	logger.AddAppender(logging.NewWriterAppender(c.App.ErrWriter))
	logger.SetLevel(logging.INFO)
	if level != "" {
		parsed, err := logging.LevelFromString(level)
		if err != nil {
			return nil, nil, err
		}
		logger.SetLevel(parsed)
	}
	ctx := c.Context
	if ctx == nil {
		ctx = context.Background()
	}
	if c.Bool(debugFlag) {
		logger.SetLevel(logging.DEBUG)
		ctx = logging.EnableDebugMode(ctx)
	}
	return logger.WithFields("run_id", uuid.NewString()), ctx, nil
}
