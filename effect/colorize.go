package effect

import (
	"context"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/pkg/errors"

	"go.viam.com/cloudmosh/pipeline"
	"go.viam.com/cloudmosh/rimage"
	"go.viam.com/cloudmosh/utils"
)

// ColorizeConfig picks the colors used for the nearest and farthest depth, as hex strings like
// "#ffd933". Empty fields use rimage.DefaultNearColor and rimage.DefaultFarColor.
type ColorizeConfig struct {
	Near string `json:"near,omitempty"`
	Far  string `json:"far,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (cfg *ColorizeConfig) Validate(path string) error {
	_, _, err := cfg.colors(path)
	return err
}

func (cfg *ColorizeConfig) colors(path string) (colorful.Color, colorful.Color, error) {
	near, far := rimage.DefaultNearColor, rimage.DefaultFarColor
	var err error
	if cfg.Near != "" {
		if near, err = colorful.Hex(cfg.Near); err != nil {
			return near, far, errors.Wrapf(err, "%s", fieldPath(path, "near"))
		}
	}
	if cfg.Far != "" {
		if far, err = colorful.Hex(cfg.Far); err != nil {
			return near, far, errors.Wrapf(err, "%s", fieldPath(path, "far"))
		}
	}
	return near, far, nil
}

// Colorizer is a transform from 1 channel depth batches to RGB previews.
type Colorizer struct {
	near, far colorful.Color
}

// ColorizeDepth returns a colorizer for cfg.
func ColorizeDepth(cfg ColorizeConfig) (*Colorizer, error) {
	near, far, err := cfg.colors("")
	if err != nil {
		return nil, utils.NewUsageError("ColorizeDepth: %v", err)
	}
	return &Colorizer{near: near, far: far}, nil
}

// Name returns "ColorizeDepth".
func (c *Colorizer) Name() string { return "ColorizeDepth" }

// Role is RoleTransform.
func (c *Colorizer) Role() pipeline.Role { return pipeline.RoleTransform }

// Attach colorizes upstream lazily.
func (c *Colorizer) Attach(
	ctx context.Context,
	upstream pipeline.Seq[*rimage.Array],
) (pipeline.Seq[*rimage.Array], error) {
	if upstream == nil {
		return nil, utils.NewMissingInputError(c.Name())
	}
	return func(yield func(*rimage.Array, error) bool) {
		for depth, err := range upstream {
			if err != nil {
				yield(nil, err)
				return
			}
			colored, err := rimage.ColorizeDepth(depth, c.near, c.far)
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(colored, nil) {
				return
			}
		}
	}, nil
}
