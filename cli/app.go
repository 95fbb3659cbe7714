// Package cli contains the cloudmosh command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

const (
	debugFlag     = "debug"
	configFlag    = "config"
	modelFlag     = "model"
	workerFlag    = "worker"
	outFlag       = "out"
	colorizeFlag  = "colorize"
	depthFlag     = "depth"
	colorFlag     = "color"
	levelsFlag    = "levels"
	pointSizeFlag = "point-size"
	cameraFlag    = "camera"
)

// NewApp returns a new app with the CLI API, Writer set to out, and ErrWriter
// set to errOut.
func NewApp(out, errOut io.Writer) *cli.App {
	return &cli.App{
		Name:            "cloudmosh",
		Usage:           "turn images into stylized point cloud renders",
		HideHelpCommand: true,
		Writer:          out,
		ErrWriter:       errOut,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    debugFlag,
				Aliases: []string{"vvv"},
				Usage:   "enable debug logging",
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run the pipeline described by a config file",
				UsageText: "cloudmosh run --config FILE",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     configFlag,
						Aliases:  []string{"c"},
						Required: true,
						Usage:    "load the pipeline from `FILE`",
					},
				},
				Action: RunAction,
			},
			{
				Name:      "depth",
				Usage:     "estimate depth for images and save it",
				UsageText: "cloudmosh depth --model PATH [--worker CMD] [--colorize] --out OUT... IN...",
				Flags: []cli.Flag{
					&cli.PathFlag{
						Name:     modelFlag,
						Required: true,
						Usage:    "depth estimation model at `PATH`",
					},
					&cli.StringFlag{
						Name:  workerFlag,
						Usage: "command serving the model",
						Value: "python3 -u worker.py",
					},
					&cli.StringSliceFlag{
						Name:     outFlag,
						Aliases:  []string{"o"},
						Required: true,
						Usage:    "one output image per input",
					},
					&cli.BoolFlag{
						Name:  colorizeFlag,
						Usage: "save colored depth previews instead of raw depth",
					},
				},
				Action: DepthAction,
			},
			{
				Name:      "render",
				Usage:     "render depth and color images as point clouds",
				UsageText: "cloudmosh render --depth D [--color C] --out O [--levels N]",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:     depthFlag,
						Required: true,
						Usage:    "grayscale depth images",
					},
					&cli.StringSliceFlag{
						Name:  colorFlag,
						Usage: "color images, one per depth image",
					},
					&cli.StringSliceFlag{
						Name:     outFlag,
						Aliases:  []string{"o"},
						Required: true,
						Usage:    "one output image per depth image",
					},
					&cli.IntFlag{
						Name:  levelsFlag,
						Usage: "posterize depth to `N` levels, 0 to keep every depth",
					},
					&cli.IntFlag{
						Name:  pointSizeFlag,
						Usage: "side of each drawn point in pixels",
						Value: 9,
					},
					&cli.StringFlag{
						Name:  cameraFlag,
						Usage: "camera placement, fixed or centroid",
						Value: "fixed",
					},
				},
				Action: RenderAction,
			},
		},
	}
}
