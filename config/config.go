// Package config defines the JSON pipeline file the cloudmosh CLI runs.
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"go.viam.com/cloudmosh/depth"
	"go.viam.com/cloudmosh/effect"
	"go.viam.com/cloudmosh/logging"
	"go.viam.com/cloudmosh/pointcloud"
	"go.viam.com/cloudmosh/utils"
)

// Config describes one cloudmosh run: where images and depth come from, which effects are
// applied to the clouds, how they are rendered and where the results go.
type Config struct {
	Inputs      []string       `json:"inputs,omitempty"`
	DepthInputs []string       `json:"depth_inputs,omitempty"`
	Model       *ModelConfig   `json:"model,omitempty"`
	Effects     []EffectConfig `json:"effects,omitempty"`
	Render      RenderConfig   `json:"render"`
	Outputs     []string       `json:"outputs"`
	PCDFormat   string         `json:"pcd_format,omitempty"`
	Log         LogConfig      `json:"log"`

	ConfigFilePath string `json:"-"`
}

// ModelConfig describes the depth estimation model and the worker serving it.
type ModelConfig struct {
	Path    string   `json:"path"`
	Command []string `json:"command,omitempty"`
	Env     []string `json:"env,omitempty"`
	depth.Config
}

// Validate ensures all parts of the config are valid.
func (conf *ModelConfig) Validate(path string) error {
	if conf.Path == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "path")
	}
	return conf.Config.Validate(path)
}

// EffectConfig names a registered cloud effect and its attributes.
type EffectConfig struct {
	Type       string             `json:"type"`
	Attributes utils.AttributeMap `json:"attributes,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *EffectConfig) Validate(path string) error {
	if conf.Type == "" {
		return goutils.NewConfigValidationFieldRequiredError(path, "type")
	}
	_, err := effect.Build(path, conf.Type, conf.Attributes, nil)
	return err
}

// Camera pose modes.
const (
	CameraFixed    = "fixed"
	CameraCentroid = "centroid"
)

// RenderConfig sets up the offscreen renderer. Zero values take the renderer defaults.
type RenderConfig struct {
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	PointSize int    `json:"point_size,omitempty"`
	Camera    string `json:"camera,omitempty"`
	// Pose is a row-major 4x4 camera-to-world transform used by the fixed camera.
	Pose [][]float64 `json:"pose,omitempty"`
	// GIFDelay is the delay between GIF frames in hundredths of a second.
	GIFDelay int `json:"gif_delay,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *RenderConfig) Validate(path string) error {
	if conf.Width < 0 || conf.Height < 0 {
		return goutils.NewConfigValidationError(path,
			errors.Errorf("width and height must not be negative, got %dx%d", conf.Width, conf.Height))
	}
	if conf.PointSize < 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("point_size must not be negative, got %d", conf.PointSize))
	}
	if conf.GIFDelay < 0 {
		return goutils.NewConfigValidationError(path, errors.Errorf("gif_delay must not be negative, got %d", conf.GIFDelay))
	}
	switch conf.Camera {
	case "", CameraFixed, CameraCentroid:
	default:
		return goutils.NewConfigValidationError(path,
			errors.Errorf("camera must be %q or %q, got %q", CameraFixed, CameraCentroid, conf.Camera))
	}
	if conf.Pose != nil {
		if _, err := conf.PoseMatrix(); err != nil {
			return goutils.NewConfigValidationError(path, err)
		}
	}
	return nil
}

// PoseMatrix returns Pose as a matrix, or nil when no pose is set.
func (conf *RenderConfig) PoseMatrix() (*mgl64.Mat4, error) {
	if conf.Pose == nil {
		return nil, nil
	}
	if len(conf.Pose) != 4 {
		return nil, errors.Errorf("pose must have 4 rows, got %d", len(conf.Pose))
	}
	var rows [4]mgl64.Vec4
	for i, row := range conf.Pose {
		if len(row) != 4 {
			return nil, errors.Errorf("pose row %d must have 4 values, got %d", i, len(row))
		}
		copy(rows[i][:], row)
	}
	m := mgl64.Mat4FromRows(rows[0], rows[1], rows[2], rows[3])
	return &m, nil
}

// LogConfig sets the log level of a run.
type LogConfig struct {
	Level string `json:"level,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *LogConfig) Validate(path string) error {
	if conf.Level == "" {
		return nil
	}
	if _, err := logging.LevelFromString(conf.Level); err != nil {
		return goutils.NewConfigValidationError(path, err)
	}
	return nil
}

// OutputKind is what a run writes.
type OutputKind int

// The output kinds, chosen by the extensions of Outputs.
const (
	OutputImages OutputKind = iota
	OutputGIF
	OutputClouds
)

// OutputKind returns what Outputs asks for. Every output must be of the same kind.
func (c *Config) OutputKind() (OutputKind, error) {
	if len(c.Outputs) == 0 {
		return 0, goutils.NewConfigValidationFieldRequiredError("", "outputs")
	}
	kinds := make([]OutputKind, len(c.Outputs))
	for i, out := range c.Outputs {
		switch utils.MimeTypeFromPath(out) {
		case utils.MimeTypeGIF:
			kinds[i] = OutputGIF
		case utils.MimeTypePCD, utils.MimeTypeLAS:
			kinds[i] = OutputClouds
		case utils.MimeTypeVideo:
			return 0, goutils.NewConfigValidationError(fmt.Sprintf("outputs.%d", i),
				errors.Errorf("cannot write %q, expected an image, gif, pcd or las path", filepath.Base(out)))
		default:
			kinds[i] = OutputImages
		}
		if kinds[i] != kinds[0] {
			return 0, goutils.NewConfigValidationError(fmt.Sprintf("outputs.%d", i),
				errors.Errorf("cannot mix %s and %s outputs", filepath.Ext(c.Outputs[0]), filepath.Ext(out)))
		}
	}
	if kinds[0] == OutputGIF && len(c.Outputs) > 1 {
		return 0, goutils.NewConfigValidationError("outputs",
			errors.Errorf("every frame goes into a single gif, got %d outputs", len(c.Outputs)))
	}
	return kinds[0], nil
}

// PCD encodings accepted in "pcd_format".
const (
	PCDFormatBinary = "binary"
	PCDFormatASCII  = "ascii"
)

// PCDType maps "pcd_format" to a PCD encoding. Binary is the default.
func (c *Config) PCDType() (pointcloud.PCDType, error) {
	switch c.PCDFormat {
	case "", PCDFormatBinary:
		return pointcloud.PCDBinary, nil
	case PCDFormatASCII:
		return pointcloud.PCDAscii, nil
	default:
		return 0, goutils.NewConfigValidationError("pcd_format",
			errors.Errorf("unknown pcd format %q, expected %q or %q", c.PCDFormat, PCDFormatBinary, PCDFormatASCII))
	}
}

func hasAnimation(paths []string) bool {
	for _, path := range paths {
		if utils.IsAnimated(utils.MimeTypeFromPath(path)) {
			return true
		}
	}
	return false
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	switch {
	case len(c.DepthInputs) > 0:
		// Animations expand to one frame each, so paths only pair up when every input is a still.
		if len(c.Inputs) > 0 && len(c.Inputs) != len(c.DepthInputs) &&
			!hasAnimation(c.Inputs) && !hasAnimation(c.DepthInputs) {
			return goutils.NewConfigValidationError("inputs",
				errors.Errorf("need one color input per depth input, got %d inputs and %d depth_inputs",
					len(c.Inputs), len(c.DepthInputs)))
		}
	case len(c.Inputs) > 0:
		if c.Model == nil {
			return goutils.NewConfigValidationFieldRequiredError("", "model")
		}
	default:
		return goutils.NewConfigValidationError("",
			errors.New(`either "inputs" with a "model" or "depth_inputs" must be given`))
	}
	for i, in := range append(append([]string{}, c.Inputs...), c.DepthInputs...) {
		if strings.TrimSpace(in) == "" {
			return goutils.NewConfigValidationError("inputs", errors.Errorf("input %d is empty", i))
		}
	}
	if c.Model != nil {
		if err := c.Model.Validate("model"); err != nil {
			return err
		}
	}
	for idx := range c.Effects {
		if err := c.Effects[idx].Validate(fmt.Sprintf("%s.%d", "effects", idx)); err != nil {
			return err
		}
	}
	if err := c.Render.Validate("render"); err != nil {
		return err
	}
	if _, err := c.OutputKind(); err != nil {
		return err
	}
	if _, err := c.PCDType(); err != nil {
		return err
	}
	return c.Log.Validate("log")
}

// BuildEffects constructs the configured effects in order.
func (c *Config) BuildEffects(logger logging.Logger) ([]effect.CloudEffect, error) {
	effects := make([]effect.CloudEffect, 0, len(c.Effects))
	for idx, conf := range c.Effects {
		eff, err := effect.Build(fmt.Sprintf("%s.%d", "effects", idx), conf.Type, conf.Attributes, logger)
		if err != nil {
			return nil, err
		}
		effects = append(effects, eff)
	}
	return effects, nil
}
